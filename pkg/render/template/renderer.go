package template

import (
	"io"
)

// Engine renders template text against a variable set. It is the only
// capability the itemized strategy depends on, so tests can substitute a
// double.
type Engine interface {
	RenderString(templateContent string, data any, out ...io.Writer) (string, error)
}

// FileEngine also renders templates by name from its own filesystem, so
// those templates can include sibling files.
type FileEngine interface {
	Engine
	RenderTemplate(name string, data any, out ...io.Writer) (string, error)
}

// EngineFunc adapts a plain function to the Engine interface.
type EngineFunc func(templateContent string, data any) (string, error)

// RenderString implements Engine.
func (f EngineFunc) RenderString(templateContent string, data any, out ...io.Writer) (string, error) {
	rendered, err := f(templateContent, data)
	if err != nil {
		return "", err
	}
	for _, w := range out {
		if _, err := io.WriteString(w, rendered); err != nil {
			return "", err
		}
	}
	return rendered, nil
}
