package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-nbgen/pkg/catalog"
	"github.com/goliatone/go-nbgen/pkg/render"
)

const maxBodyBytes = 1 << 20

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRenderOptions appends options applied to every renderer the server
// builds.
func WithRenderOptions(options ...render.Option) Option {
	return func(s *Server) {
		s.renderOptions = append(s.renderOptions, options...)
	}
}

// WithMetrics records render metrics on reg and serves them on /metrics.
func WithMetrics(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.metrics = reg
	}
}

// Server renders notebooks for HTTP callers.
type Server struct {
	catalog       *catalog.Catalog
	registry      *render.Registry
	inline        *render.Renderer
	renderOptions []render.Option
	logger        *slog.Logger
	metrics       *prometheus.Registry
	router        chi.Router
}

// New builds a server for every template in c.
func New(c *catalog.Catalog, options ...Option) (*Server, error) {
	if c == nil {
		return nil, errors.New("server: catalog is required")
	}
	s := &Server{
		catalog: c,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}

	renderOptions := append([]render.Option{render.WithLogger(s.logger)}, s.renderOptions...)
	if s.metrics != nil {
		renderOptions = append(renderOptions, render.WithMetrics(s.metrics))
	}

	registry, err := c.Registry(renderOptions...)
	if err != nil {
		return nil, err
	}
	inline, err := render.New(append([]render.Option{render.WithName("inline")}, renderOptions...)...)
	if err != nil {
		return nil, err
	}
	s.registry = registry
	s.inline = inline
	s.router = s.routes()
	return s, nil
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/templates", s.handleTemplates)
	r.Post("/templates/{name}/notebook", s.handleTemplateNotebook)
	r.Post("/render", s.handleRender)
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}))
	}
	return r
}

type templateInfo struct {
	Name        string        `json:"name"`
	Title       string        `json:"title,omitempty"`
	Description string        `json:"description,omitempty"`
	Format      render.Format `json:"template_format"`
	Tags        []string      `json:"tags,omitempty"`
}

func (s *Server) handleTemplates(w http.ResponseWriter, _ *http.Request) {
	templates := s.catalog.Templates()
	out := make([]templateInfo, 0, len(templates))
	for _, tpl := range templates {
		out = append(out, templateInfo{
			Name:        tpl.Name,
			Title:       tpl.Title,
			Description: tpl.Description,
			Format:      tpl.Format,
			Tags:        tpl.Tags,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

// handleTemplateNotebook accepts {"uuids": [...], "group_token": "...", ...}.
// Remaining fields become template variables. A bearer token is used when
// the body carries no group_token.
func (s *Server) handleTemplateNotebook(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	renderer, err := s.registry.Get(name)
	if err != nil {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("template %q not found", name))
		return
	}

	var body map[string]any
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	uuids, err := stringList(body[render.KeyUUIDs])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	var token string
	if raw, ok := body[render.KeyGroupToken]; ok && raw != nil {
		token, ok = raw.(string)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %s must be a string, got %T", render.ErrInvalidRequest, render.KeyGroupToken, raw))
			return
		}
	}
	if token == "" {
		token = bearerToken(r)
	}

	req, err := s.catalog.Request(name, uuids, token, body)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	out, err := renderer.Render(r.Context(), req)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeNotebook(w, renderer, out)
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	req, err := render.DecodeRequest(r.Body)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	if _, err := req.Token(); err != nil {
		if token := bearerToken(r); token != "" {
			req = req.WithGroupToken(token)
		}
	}

	out, err := s.inline.Render(r.Context(), req)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeNotebook(w, s.inline, out)
}

func (s *Server) writeNotebook(w http.ResponseWriter, renderer *render.Renderer, out []byte) {
	w.Header().Set("Content-Type", renderer.ContentType())
	if _, err := w.Write(out); err != nil {
		s.logger.Warn("write response", slog.Any("error", err))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("write json response", slog.Any("error", err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("render failed", slog.Any("error", err))
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// statusFor maps render errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, render.ErrUnsupportedFormat),
		errors.Is(err, render.ErrMissingField),
		errors.Is(err, render.ErrInvalidRequest),
		errors.Is(err, render.ErrInvalidTemplate):
		return http.StatusBadRequest
	case errors.Is(err, render.ErrAssetNotFound):
		return http.StatusNotFound
	case errors.Is(err, render.ErrTemplateParse):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func stringList(value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("uuids[%d] must be a string", i)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, errors.New("uuids must be a list of strings")
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
