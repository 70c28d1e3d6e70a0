package render

import "errors"

var (
	// ErrUnsupportedFormat is returned when metadata.template_format is not
	// one of python, json, or jinja.
	ErrUnsupportedFormat = errors.New("render: unsupported template format")
	// ErrMissingField is returned when a required request key is absent.
	ErrMissingField = errors.New("render: missing required field")
	// ErrInvalidRequest is returned when a request key holds a value of the
	// wrong shape.
	ErrInvalidRequest = errors.New("render: invalid request")
	// ErrAssetNotFound is returned when a template definition or text asset
	// cannot be read from the configured filesystem.
	ErrAssetNotFound = errors.New("render: template asset not found")
	// ErrTemplateParse is returned when template text fails to render or the
	// rendered output fails to decode.
	ErrTemplateParse = errors.New("render: template parse error")
	// ErrInvalidTemplate is returned in strict mode for template items the
	// renderer does not recognise.
	ErrInvalidTemplate = errors.New("render: invalid template item")
)
