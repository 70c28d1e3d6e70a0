package catalog

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-nbgen/pkg/render"
)

var metadataFiles = map[string]struct{}{
	"metadata.json": {},
	"metadata.yaml": {},
	"metadata.yml":  {},
}

// Template describes one catalog entry.
type Template struct {
	Name        string
	Title       string
	Description string
	Format      render.Format
	Tags        []string
	// Dir is the template directory inside the catalog filesystem.
	Dir string
	// Metadata is the full metadata document. It becomes the metadata block
	// of requests built for this template.
	Metadata map[string]any
}

// Catalog indexes templates by name.
type Catalog struct {
	fsys      fs.FS
	templates map[string]Template
}

// LoadFS walks fsys and registers every directory holding a metadata.json or
// metadata.yaml file. When fsys is nil the returned catalog is empty.
func LoadFS(fsys fs.FS) (*Catalog, error) {
	c := &Catalog{fsys: fsys, templates: make(map[string]Template)}
	if fsys == nil {
		return c, nil
	}

	err := fs.WalkDir(fsys, ".", func(p string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			return nil
		}
		if _, ok := metadataFiles[path.Base(p)]; !ok {
			return nil
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("catalog: read %s: %w", p, err)
		}
		tpl, err := parseMetadata(data, p)
		if err != nil {
			return err
		}
		if _, exists := c.templates[tpl.Name]; exists {
			return fmt.Errorf("catalog: duplicate template %q (file %s)", tpl.Name, p)
		}
		c.templates[tpl.Name] = tpl
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads the embedded default templates.
func Load() (*Catalog, error) {
	return LoadFS(EmbeddedFS())
}

func parseMetadata(data []byte, source string) (Template, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return Template{}, fmt.Errorf("catalog: file %s is empty", source)
	}

	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		meta = nil
		if yerr := yaml.Unmarshal(data, &meta); yerr != nil {
			return Template{}, fmt.Errorf("catalog: parse %s: %w", source, yerr)
		}
	}
	if meta == nil {
		return Template{}, fmt.Errorf("catalog: file %s is not a mapping", source)
	}

	dir := path.Dir(source)
	tpl := Template{
		Name:        stringValue(meta["name"]),
		Title:       stringValue(meta["title"]),
		Description: stringValue(meta["description"]),
		Dir:         dir,
		Metadata:    meta,
	}
	if tpl.Name == "" {
		tpl.Name = path.Base(dir)
	}
	if tpl.Name == "." || tpl.Name == "" {
		return Template{}, fmt.Errorf("catalog: file %s must live in a template directory or set name", source)
	}

	format, err := render.ParseFormat(stringValue(meta[render.KeyTemplateFormat]))
	if err != nil {
		return Template{}, fmt.Errorf("catalog: %s: %w", source, err)
	}
	tpl.Format = format
	meta[render.KeyTemplateFormat] = string(format)

	if rawTags, ok := meta["tags"].([]any); ok {
		for _, tag := range rawTags {
			if s := stringValue(tag); s != "" {
				tpl.Tags = append(tpl.Tags, s)
			}
		}
	}
	return tpl, nil
}

// Get returns the template registered under name.
func (c *Catalog) Get(name string) (Template, bool) {
	if c == nil {
		return Template{}, false
	}
	tpl, ok := c.templates[name]
	return tpl, ok
}

// List returns the template names in sorted order.
func (c *Catalog) List() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.templates))
	for name := range c.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Templates returns every template sorted by name.
func (c *Catalog) Templates() []Template {
	names := c.List()
	out := make([]Template, 0, len(names))
	for _, name := range names {
		out = append(out, c.templates[name])
	}
	return out
}

// Assets returns the render assets of the named template.
func (c *Catalog) Assets(name string) (render.Assets, error) {
	tpl, ok := c.Get(name)
	if !ok {
		return render.Assets{}, fmt.Errorf("catalog: template %q not found", name)
	}
	return render.SubAssets(c.fsys, tpl.Dir)
}

// Renderer builds a renderer for the named template. options are applied
// after the template's name and assets, so callers may override either.
func (c *Catalog) Renderer(name string, options ...render.Option) (*render.Renderer, error) {
	assets, err := c.Assets(name)
	if err != nil {
		return nil, err
	}
	base := []render.Option{render.WithName(name), render.WithAssets(assets)}
	return render.New(append(base, options...)...)
}

// Registry builds a render.Registry holding one renderer per template.
func (c *Catalog) Registry(options ...render.Option) (*render.Registry, error) {
	reg := render.NewRegistry()
	for _, name := range c.List() {
		r, err := c.Renderer(name, options...)
		if err != nil {
			return nil, fmt.Errorf("catalog: renderer %q: %w", name, err)
		}
		if err := reg.Register(r); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Request builds a render request for the named template: the template
// metadata becomes the request metadata and extra fields are merged in as
// template variables. Reserved keys in extra are ignored.
func (c *Catalog) Request(name string, uuids []string, groupToken string, extra map[string]any) (render.Request, error) {
	tpl, ok := c.Get(name)
	if !ok {
		return render.Request{}, fmt.Errorf("catalog: template %q not found", name)
	}

	meta := make(map[string]any, len(tpl.Metadata))
	for key, value := range tpl.Metadata {
		meta[key] = value
	}

	ids := make([]any, 0, len(uuids))
	for _, id := range uuids {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}

	payload := make(map[string]any, len(extra)+3)
	for key, value := range extra {
		switch key {
		case render.KeyMetadata, render.KeyUUIDs, render.KeyGroupToken, render.KeyClient:
			continue
		}
		payload[key] = value
	}
	payload[render.KeyMetadata] = meta
	payload[render.KeyUUIDs] = ids
	if groupToken != "" {
		payload[render.KeyGroupToken] = groupToken
	}

	return render.RequestFromMap(payload)
}

func stringValue(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
