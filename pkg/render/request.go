package render

import (
	"encoding/json"
	"fmt"
	"io"
)

// Format selects the generation strategy for a request.
type Format string

const (
	FormatPython Format = "python"
	FormatJSON   Format = "json"
	FormatJinja  Format = "jinja"
)

// Formats lists the recognised template formats.
func Formats() []Format {
	return []Format{FormatPython, FormatJSON, FormatJinja}
}

// ParseFormat validates a raw template_format value. Matching is exact, the
// same comparison Renderer.Notebook dispatches on.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(raw); f {
	case FormatPython, FormatJSON, FormatJinja:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, raw)
	}
}

// Request keys with dedicated handling. Every other key is passed through to
// templates untouched.
const (
	KeyMetadata       = "metadata"
	KeyTemplateFormat = "template_format"
	KeyUUIDs          = "uuids"
	KeyGroupToken     = "group_token"
	KeyTemplate       = "template"
	// KeyClient is reserved: freeform templates receive the data client
	// under this name.
	KeyClient = "util_client"
)

// Metadata carries the template metadata block of a request.
type Metadata struct {
	// Format is the raw template_format value. Render rejects values outside
	// Formats().
	Format Format
	// Values holds the full metadata mapping, template_format included.
	Values map[string]any
}

// Request is a validated render payload. Fields keeps every top-level key of
// the original mapping so templates can reference arbitrary request data.
//
// uuids and template are format specific: they are only decoded by the
// strategies that read them, through IDs and Definition.
type Request struct {
	Metadata   Metadata
	GroupToken string
	Fields     map[string]any

	hasGroupToken bool
}

// RequestFromMap validates the parts of a payload every format needs:
// metadata and metadata.template_format are required and group_token must be
// a string when present. group_token presence is checked later by the
// strategies that need a client.
func RequestFromMap(payload map[string]any) (Request, error) {
	if payload == nil {
		return Request{}, fmt.Errorf("%w: %s", ErrMissingField, KeyMetadata)
	}

	rawMeta, ok := payload[KeyMetadata]
	if !ok || rawMeta == nil {
		return Request{}, fmt.Errorf("%w: %s", ErrMissingField, KeyMetadata)
	}
	meta, ok := rawMeta.(map[string]any)
	if !ok {
		return Request{}, fmt.Errorf("%w: %s must be an object, got %T", ErrInvalidRequest, KeyMetadata, rawMeta)
	}
	rawFormat, ok := meta[KeyTemplateFormat]
	if !ok || rawFormat == nil {
		return Request{}, fmt.Errorf("%w: %s.%s", ErrMissingField, KeyMetadata, KeyTemplateFormat)
	}
	format, ok := rawFormat.(string)
	if !ok {
		return Request{}, fmt.Errorf("%w: %s.%s must be a string, got %T", ErrInvalidRequest, KeyMetadata, KeyTemplateFormat, rawFormat)
	}

	req := Request{
		Metadata: Metadata{Format: Format(format), Values: meta},
		Fields:   make(map[string]any, len(payload)),
	}
	for key, value := range payload {
		req.Fields[key] = value
	}

	if rawToken, ok := payload[KeyGroupToken]; ok && rawToken != nil {
		token, ok := rawToken.(string)
		if !ok {
			return Request{}, fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidRequest, KeyGroupToken, rawToken)
		}
		req.GroupToken = token
		req.hasGroupToken = true
	}

	return req, nil
}

// DecodeRequest reads a JSON payload and validates it with RequestFromMap.
func DecodeRequest(r io.Reader) (Request, error) {
	var payload map[string]any
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return Request{}, fmt.Errorf("%w: decode payload: %v", ErrInvalidRequest, err)
	}
	return RequestFromMap(payload)
}

// IDs decodes the uuids field. An absent or null value yields an empty
// slice; anything other than a list of strings is ErrInvalidRequest.
func (r Request) IDs() ([]string, error) {
	return stringList(r.Fields[KeyUUIDs])
}

// Definition decodes the inline itemized template. It returns nil when the
// request carries none, so callers fall back to the definition asset.
func (r Request) Definition() (Definition, error) {
	raw, ok := r.Fields[KeyTemplate]
	if !ok || raw == nil {
		return nil, nil
	}
	return DefinitionFromValue(raw)
}

// Variables returns the template variable set: every request field with
// uuids replaced by the decoded list.
func (r Request) Variables() (map[string]any, error) {
	uuids, err := r.IDs()
	if err != nil {
		return nil, err
	}
	vars := make(map[string]any, len(r.Fields)+1)
	for key, value := range r.Fields {
		vars[key] = value
	}
	vars[KeyUUIDs] = uuids
	return vars, nil
}

// Token returns the group token, or ErrMissingField when the request did not
// carry one.
func (r Request) Token() (string, error) {
	if !r.hasGroupToken {
		return "", fmt.Errorf("%w: %s", ErrMissingField, KeyGroupToken)
	}
	return r.GroupToken, nil
}

// WithGroupToken returns a copy of the request carrying token.
func (r Request) WithGroupToken(token string) Request {
	out := r
	out.Fields = make(map[string]any, len(r.Fields)+1)
	for key, value := range r.Fields {
		out.Fields[key] = value
	}
	out.Fields[KeyGroupToken] = token
	out.GroupToken = token
	out.hasGroupToken = true
	return out
}

func stringList(raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return []string{}, nil
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out, nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s[%d] must be a string, got %T", ErrInvalidRequest, KeyUUIDs, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a list, got %T", ErrInvalidRequest, KeyUUIDs, raw)
	}
}
