package gotemplate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-nbgen/pkg/render/template"
)

// Option configures the engine before construction.
type Option func(*config)

type config struct {
	files      fs.FS
	autoescape bool
}

// WithFS makes named templates, and the files they include, resolvable from
// files.
func WithFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.files = files
	}
}

// WithAutoescape toggles HTML autoescaping for this engine. Notebook sources
// are code and markdown, not HTML, so values render verbatim by default.
func WithAutoescape(enabled bool) Option {
	return func(cfg *config) {
		cfg.autoescape = enabled
	}
}

// Engine renders Jinja2-syntax templates ({{ name }}, {% for %}, filters)
// through a pongo2 template set.
type Engine struct {
	mu sync.RWMutex

	templateSet *pongo2.TemplateSet
	files       fs.FS
	templates   map[string]*pongo2.Template
	escapeOpen  string
}

var _ template.FileEngine = (*Engine)(nil)

// extendsTag matches a template whose first tag is extends. pongo2 only
// accepts extends at the root level, so such templates cannot be wrapped in
// an autoescape block.
var extendsTag = regexp.MustCompile(`^\s*\{%-?\s*extends\b`)

// New constructs an Engine. Without WithFS the engine still renders template
// strings; named templates and includes fail to resolve.
func New(options ...Option) (*Engine, error) {
	cfg := &config{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(cfg)
	}

	files := cfg.files
	if files == nil {
		files = emptyFS{}
	}

	// pongo2 keeps its autoescape default process-wide. Every source is
	// wrapped in an explicit autoescape block instead of touching it.
	escapeOpen := "{% autoescape off %}"
	if cfg.autoescape {
		escapeOpen = "{% autoescape on %}"
	}

	engine := &Engine{
		templateSet: pongo2.NewSet("nbgen", wrappingLoader{files: files, open: escapeOpen}),
		files:       files,
		templates:   make(map[string]*pongo2.Template),
		escapeOpen:  escapeOpen,
	}
	registerDefaultFilters()
	return engine, nil
}

// RenderTemplate renders the template stored at name in the engine's fs.FS.
// Parsed templates are cached by name. A missing file yields an error
// wrapping fs.ErrNotExist.
func (e *Engine) RenderTemplate(name string, data any, out ...io.Writer) (string, error) {
	if e == nil || e.templateSet == nil {
		return "", errors.New("gotemplate: engine is nil")
	}
	tmpl, err := e.getTemplate(name)
	if err != nil {
		return "", err
	}
	return e.execute(tmpl, data, fmt.Sprintf("template %q", name), out)
}

// RenderString parses and renders inline template text.
func (e *Engine) RenderString(templateContent string, data any, out ...io.Writer) (string, error) {
	if e == nil || e.templateSet == nil {
		return "", errors.New("gotemplate: engine is nil")
	}
	tmpl, err := e.parse(templateContent)
	if err != nil {
		return "", fmt.Errorf("gotemplate: parse template string: %w", err)
	}
	return e.execute(tmpl, data, "template string", out)
}

func (e *Engine) parse(source string) (*pongo2.Template, error) {
	wrapped, err := wrap(e.escapeOpen, source)
	if err != nil {
		return nil, err
	}
	return e.templateSet.FromString(wrapped)
}

func wrap(open, source string) (string, error) {
	if extendsTag.MatchString(source) {
		return "", errors.New("extends is not supported, use include")
	}
	return open + source + "{% endautoescape %}", nil
}

// wrappingLoader serves included files wrapped in the engine's autoescape
// block. Include paths are relative to the root of files.
type wrappingLoader struct {
	files fs.FS
	open  string
}

func (l wrappingLoader) Abs(_, name string) string {
	return path.Clean(strings.TrimPrefix(name, "/"))
}

func (l wrappingLoader) Get(name string) (io.Reader, error) {
	source, err := fs.ReadFile(l.files, name)
	if err != nil {
		return nil, err
	}
	wrapped, err := wrap(l.open, string(source))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return strings.NewReader(wrapped), nil
}

func (e *Engine) execute(tmpl *pongo2.Template, data any, label string, out []io.Writer) (string, error) {
	viewContext, err := convertToContext(data)
	if err != nil {
		return "", fmt.Errorf("gotemplate: convert data: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteWriter(viewContext, &buf); err != nil {
		return "", fmt.Errorf("gotemplate: execute %s: %w", label, err)
	}

	rendered := buf.String()
	for _, w := range out {
		if _, err := io.WriteString(w, rendered); err != nil {
			return "", err
		}
	}
	return rendered, nil
}

func (e *Engine) getTemplate(name string) (*pongo2.Template, error) {
	e.mu.RLock()
	if tmpl, ok := e.templates[name]; ok {
		e.mu.RUnlock()
		return tmpl, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if tmpl, ok := e.templates[name]; ok {
		return tmpl, nil
	}

	source, err := fs.ReadFile(e.files, name)
	if err != nil {
		return nil, fmt.Errorf("gotemplate: load template %q: %w", name, err)
	}
	tmpl, err := e.parse(string(source))
	if err != nil {
		return nil, fmt.Errorf("gotemplate: parse template %q: %w", name, err)
	}

	e.templates[name] = tmpl
	return tmpl, nil
}

type emptyFS struct{}

func (emptyFS) Open(name string) (fs.File, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// convertToContext normalises map keys and nested maps/slices. Other values
// keep their Go type so pongo2 can resolve fields and call methods on them.
func convertToContext(data any) (pongo2.Context, error) {
	switch v := data.(type) {
	case nil:
		return pongo2.Context{}, nil
	case pongo2.Context:
		return convertMapToContext(map[string]any(v)), nil
	case map[string]any:
		return convertMapToContext(v), nil
	default:
		m, err := jsonToMap(v)
		if err != nil {
			return nil, err
		}
		return convertMapToContext(m), nil
	}
}

func convertMapToContext(in map[string]any) pongo2.Context {
	out := make(pongo2.Context, len(in))
	for key, value := range in {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out[key] = convertValue(value)
	}
	return out
}

func convertValue(value any) any {
	switch v := value.(type) {
	case pongo2.Context:
		return convertMap(map[string]any(v))
	case map[string]any:
		return convertMap(v)
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			out = append(out, convertValue(item))
		}
		return out
	default:
		return value
	}
}

func convertMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = convertValue(value)
	}
	return out
}

func jsonToMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func registerDefaultFilters() {
	if !pongo2.FilterExists("trim") {
		_ = pongo2.RegisterFilter("trim", filterTrim)
	}
	if !pongo2.FilterExists("tojson") {
		_ = pongo2.RegisterFilter("tojson", filterToJSON)
	}
}

func filterTrim(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	if in.Len() <= 0 {
		return pongo2.AsValue(""), nil
	}
	return pongo2.AsValue(strings.TrimSpace(in.String())), nil
}

// filterToJSON serialises the value so templates can embed request data in
// generated Python or JSON without hand-quoting.
func filterToJSON(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	payload, err := json.Marshal(in.Interface())
	if err != nil {
		return nil, &pongo2.Error{Sender: "filter:tojson", OrigError: err}
	}
	return pongo2.AsSafeValue(string(payload)), nil
}
