package render

import (
	"log/slog"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-nbgen/pkg/generators"
	"github.com/goliatone/go-nbgen/pkg/render/template"
)

// Option customises a Renderer.
type Option func(*Renderer)

// WithName sets the name the renderer is registered under. Metrics and spans
// are labelled with it.
func WithName(name string) Option {
	return func(r *Renderer) {
		r.name = strings.TrimSpace(name)
	}
}

// WithEngine injects the template engine used for code, markdown, and
// freeform templates. Defaults to the pongo2 adapter.
func WithEngine(engine template.Engine) Option {
	return func(r *Renderer) {
		if engine != nil {
			r.engine = engine
		}
	}
}

// WithAssets configures where template.json and template.txt are read from.
func WithAssets(assets Assets) Option {
	return func(r *Renderer) {
		r.assets = assets
	}
}

// WithClientFactory sets how the data client is built from a group token.
func WithClientFactory(factory generators.ClientFactory) Option {
	return func(r *Renderer) {
		if factory != nil {
			r.clients = factory
		}
	}
}

// WithLogger sets the structured logger. Defaults to a logger that discards
// records.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithStrictItems makes unknown cell types and generator names fail the
// render with ErrInvalidTemplate instead of being skipped.
func WithStrictItems(strict bool) Option {
	return func(r *Renderer) {
		r.strict = strict
	}
}

// WithMarkdownPolicy sanitises rendered markdown cells with policy.
func WithMarkdownPolicy(policy *bluemonday.Policy) Option {
	return func(r *Renderer) {
		r.markdownPolicy = policy
	}
}

// WithSanitizedMarkdown sanitises rendered markdown cells with bluemonday's
// user generated content policy.
func WithSanitizedMarkdown() Option {
	return WithMarkdownPolicy(bluemonday.UGCPolicy())
}

// WithMetrics registers render counters and latency histograms on reg.
// Renderers sharing a registerer share the collectors.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(r *Renderer) {
		r.registerer = reg
	}
}

// WithTracer sets the tracer used for render spans. Defaults to the global
// OpenTelemetry tracer provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Renderer) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}
