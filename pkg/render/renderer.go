package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-nbgen/pkg/client"
	"github.com/goliatone/go-nbgen/pkg/generators"
	"github.com/goliatone/go-nbgen/pkg/notebook"
	"github.com/goliatone/go-nbgen/pkg/render/template"
	"github.com/goliatone/go-nbgen/pkg/render/template/gotemplate"
)

const tracerName = "github.com/goliatone/go-nbgen/pkg/render"

var errContextRequired = errors.New("render: context is required")

// Renderer dispatches a Request to the generation strategy named by its
// template format and serialises the resulting notebook. A Renderer holds no
// per-request state; each call builds its own client.
type Renderer struct {
	name           string
	engine         template.Engine
	files          template.FileEngine
	assets         Assets
	clients        generators.ClientFactory
	logger         *slog.Logger
	strict         bool
	markdownPolicy *bluemonday.Policy
	registerer     prometheus.Registerer
	metrics        *metrics
	tracer         trace.Tracer
}

// New constructs a Renderer. Without options it renders templates with the
// pongo2 engine and fetches data through the HTTP search client.
func New(options ...Option) (*Renderer, error) {
	r := &Renderer{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}

	if r.engine == nil {
		engine, err := gotemplate.New(gotemplate.WithFS(r.assets.FS))
		if err != nil {
			return nil, fmt.Errorf("render: default engine: %w", err)
		}
		r.engine = engine
		if r.assets.FS != nil {
			r.files = engine
		}
	}
	if r.clients == nil {
		r.clients = client.Factory()
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracerName)
	}
	if r.registerer != nil {
		m, err := newMetrics(r.registerer)
		if err != nil {
			return nil, fmt.Errorf("render: register metrics: %w", err)
		}
		r.metrics = m
	}
	return r, nil
}

// MustNew panics when New fails. Useful for init-time wiring.
func MustNew(options ...Option) *Renderer {
	r, err := New(options...)
	if err != nil {
		panic(err)
	}
	return r
}

// Name returns the name the renderer was configured with.
func (r *Renderer) Name() string {
	return r.name
}

// ContentType reports the media type of Render output.
func (r *Renderer) ContentType() string {
	return "application/x-ipynb+json"
}

// Render builds the notebook for req and returns it serialised as JSON.
func (r *Renderer) Render(ctx context.Context, req Request) ([]byte, error) {
	if ctx == nil {
		return nil, errContextRequired
	}
	format := req.Metadata.Format
	attrs := []attribute.KeyValue{
		attribute.String("nbgen.template", r.name),
		attribute.String("nbgen.format", string(format)),
	}
	if ids, err := req.IDs(); err == nil {
		attrs = append(attrs, attribute.Int("nbgen.uuids", len(ids)))
	}
	ctx, span := r.tracer.Start(ctx, "nbgen.render", trace.WithAttributes(attrs...))
	defer span.End()

	started := time.Now()
	payload, err := r.render(ctx, req)
	r.metrics.observe(r.name, format, started, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.DebugContext(ctx, "render failed",
			slog.String("template", r.name),
			slog.String("format", string(format)),
			slog.Any("error", err),
		)
		return nil, err
	}
	return payload, nil
}

// RenderMap validates payload with RequestFromMap and renders it.
func (r *Renderer) RenderMap(ctx context.Context, payload map[string]any) ([]byte, error) {
	req, err := RequestFromMap(payload)
	if err != nil {
		return nil, err
	}
	return r.Render(ctx, req)
}

func (r *Renderer) render(ctx context.Context, req Request) ([]byte, error) {
	nb, err := r.Notebook(ctx, req)
	if err != nil {
		return nil, err
	}
	payload, err := nb.Marshal()
	if err != nil {
		return nil, fmt.Errorf("render: encode notebook: %w", err)
	}
	return payload, nil
}

// Notebook builds the notebook document for req without serialising it.
func (r *Renderer) Notebook(ctx context.Context, req Request) (notebook.Notebook, error) {
	if ctx == nil {
		return notebook.Notebook{}, errContextRequired
	}
	if err := ctx.Err(); err != nil {
		return notebook.Notebook{}, err
	}

	switch req.Metadata.Format {
	case FormatPython:
		return notebook.New(r.PythonCells(req)), nil
	case FormatJSON:
		cells, err := r.ItemizedCells(ctx, req)
		if err != nil {
			return notebook.Notebook{}, err
		}
		return notebook.New(cells), nil
	case FormatJinja:
		doc, err := r.FreeformDocument(ctx, req)
		if err != nil {
			return notebook.Notebook{}, err
		}
		return freeformNotebook(doc)
	default:
		return notebook.Notebook{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, req.Metadata.Format)
	}
}

// PythonCells is the python strategy. It has no generation logic and always
// yields an empty cell sequence.
func (r *Renderer) PythonCells(Request) []notebook.Cell {
	return []notebook.Cell{}
}

// ItemizedCells is the json strategy: it walks the itemized definition in
// order and collects the cells each item produces.
func (r *Renderer) ItemizedCells(ctx context.Context, req Request) ([]notebook.Cell, error) {
	token, err := req.Token()
	if err != nil {
		return nil, err
	}
	dataClient, err := r.clients(token)
	if err != nil {
		return nil, fmt.Errorf("render: build client: %w", err)
	}

	vars, err := req.Variables()
	if err != nil {
		return nil, err
	}
	uuids := vars[KeyUUIDs].([]string)

	def, err := req.Definition()
	if err != nil {
		return nil, err
	}
	if def == nil {
		def, err = r.assets.LoadDefinition()
		if err != nil {
			return nil, err
		}
	}

	cells := make([]notebook.Cell, 0, len(def))
	for i, item := range def {
		switch item.CellType {
		case ItemTemplateCell:
			name := generators.Name(strings.TrimSpace(item.Src))
			if !generators.Known(name) {
				if err := r.skip(ctx, i, item); err != nil {
					return nil, err
				}
				continue
			}
			generated, err := generators.Generate(ctx, name, uuids, dataClient)
			if err != nil {
				return nil, fmt.Errorf("render: item %d: %w", i, err)
			}
			cells = append(cells, generated...)
		case ItemCodeCell:
			source, err := r.renderText(item.Src, vars, i)
			if err != nil {
				return nil, err
			}
			cells = append(cells, notebook.NewCodeCell(source))
		case ItemMarkdownCell:
			source, err := r.renderText(item.Src, vars, i)
			if err != nil {
				return nil, err
			}
			if r.markdownPolicy != nil {
				source = sanitizeMarkdown(r.markdownPolicy, source)
			}
			cells = append(cells, notebook.NewMarkdownCell(source))
		default:
			if err := r.skip(ctx, i, item); err != nil {
				return nil, err
			}
		}
	}
	return cells, nil
}

// FreeformDocument is the jinja strategy: the text asset is rendered as a
// whole, with the data client available as util_client, and decoded as JSON.
// Empty output yields an empty map. A top-level array is taken as the cell
// list and wrapped under "cells". The request's template field is ignored.
func (r *Renderer) FreeformDocument(ctx context.Context, req Request) (map[string]any, error) {
	token, err := req.Token()
	if err != nil {
		return nil, err
	}
	dataClient, err := r.clients(token)
	if err != nil {
		return nil, fmt.Errorf("render: build client: %w", err)
	}

	vars, err := req.Variables()
	if err != nil {
		return nil, err
	}
	vars[KeyClient] = &templateClient{ctx: ctx, client: dataClient}

	rendered, err := r.renderFreeform(vars)
	if err != nil {
		return nil, err
	}
	rendered = strings.TrimSpace(rendered)
	if rendered == "" {
		return map[string]any{}, nil
	}

	var decoded any
	if err := json.Unmarshal([]byte(rendered), &decoded); err != nil {
		return nil, fmt.Errorf("%w: freeform output is not JSON: %v", ErrTemplateParse, err)
	}
	switch doc := decoded.(type) {
	case map[string]any:
		return doc, nil
	case []any:
		return map[string]any{"cells": doc}, nil
	default:
		return nil, fmt.Errorf("%w: freeform output must be an object or array, got %T", ErrTemplateParse, decoded)
	}
}

// renderFreeform renders the text asset. A renderer that built its own engine
// renders it by name so the template can include sibling files; an injected
// engine gets the asset text.
func (r *Renderer) renderFreeform(vars map[string]any) (string, error) {
	name := r.assets.textPath()
	if r.files != nil {
		rendered, err := r.files.RenderTemplate(name, vars)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", fmt.Errorf("%w: %s", ErrAssetNotFound, name)
			}
			return "", fmt.Errorf("%w: freeform template: %v", ErrTemplateParse, err)
		}
		return rendered, nil
	}

	text, err := r.assets.LoadText()
	if err != nil {
		return "", err
	}
	rendered, err := r.engine.RenderString(text, vars)
	if err != nil {
		return "", fmt.Errorf("%w: freeform template: %v", ErrTemplateParse, err)
	}
	return rendered, nil
}

func (r *Renderer) renderText(src string, vars map[string]any, index int) (string, error) {
	rendered, err := r.engine.RenderString(src, vars)
	if err != nil {
		return "", fmt.Errorf("%w: item %d: %v", ErrTemplateParse, index, err)
	}
	return strings.TrimSpace(rendered), nil
}

func (r *Renderer) skip(ctx context.Context, index int, item TemplateItem) error {
	if r.strict {
		return fmt.Errorf("%w: item %d has cell_type %q src %q", ErrInvalidTemplate, index, item.CellType, item.Src)
	}
	r.logger.DebugContext(ctx, "skipping template item",
		slog.String("template", r.name),
		slog.Int("index", index),
		slog.String("cell_type", string(item.CellType)),
		slog.String("src", item.Src),
	)
	return nil
}

// freeformNotebook maps a freeform document onto the notebook envelope. An
// empty document has no cells; a non-empty one must carry a cells list.
func freeformNotebook(doc map[string]any) (notebook.Notebook, error) {
	if len(doc) > 0 {
		if _, ok := doc["cells"]; !ok {
			return notebook.Notebook{}, fmt.Errorf("%w: freeform document has no cells", ErrTemplateParse)
		}
	}
	nb, err := notebook.FromDocument(doc)
	if err != nil {
		return notebook.Notebook{}, fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}
	return nb, nil
}

// templateClient exposes the data client to freeform templates, binding the
// render context so templates can call it without one.
type templateClient struct {
	ctx    context.Context
	client generators.Client
}

func (c *templateClient) Metadata(uuids []string) ([]map[string]any, error) {
	return c.client.Metadata(c.ctx, uuids)
}

func (c *templateClient) Files(uuids []string) (map[string][]generators.File, error) {
	return c.client.Files(c.ctx, uuids)
}

func (c *templateClient) AnnData(uuids []string) (map[string][]generators.File, error) {
	return c.client.AnnData(c.ctx, uuids)
}
