// Package nbgen renders Jupyter notebooks from templates. The root package
// re-exports the common entry points of pkg/render and pkg/catalog for
// callers that want a single import.
package nbgen

import (
	"context"

	"github.com/goliatone/go-nbgen/pkg/catalog"
	"github.com/goliatone/go-nbgen/pkg/render"
)

// Request aliases render.Request.
type Request = render.Request

// Renderer aliases render.Renderer.
type Renderer = render.Renderer

// Option aliases render.Option.
type Option = render.Option

// Assets aliases render.Assets.
type Assets = render.Assets

// New constructs a renderer with the supplied options.
func New(options ...Option) (*Renderer, error) {
	return render.New(options...)
}

// RenderMap validates payload and renders it with a renderer built from
// options. It is the simplest entry point for callers holding a decoded
// request mapping.
func RenderMap(ctx context.Context, payload map[string]any, options ...Option) ([]byte, error) {
	r, err := render.New(options...)
	if err != nil {
		return nil, err
	}
	return r.RenderMap(ctx, payload)
}

// RenderTemplate renders a template from the embedded catalog for uuids.
// extra fields become template variables.
func RenderTemplate(ctx context.Context, name string, uuids []string, groupToken string, extra map[string]any, options ...Option) ([]byte, error) {
	c, err := catalog.Load()
	if err != nil {
		return nil, err
	}
	req, err := c.Request(name, uuids, groupToken, extra)
	if err != nil {
		return nil, err
	}
	r, err := c.Renderer(name, options...)
	if err != nil {
		return nil, err
	}
	return r.Render(ctx, req)
}
