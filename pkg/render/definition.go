package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ItemKind enumerates the instructions an itemized definition may hold.
type ItemKind string

const (
	ItemTemplateCell ItemKind = "template_cell"
	ItemCodeCell     ItemKind = "code_cell"
	ItemMarkdownCell ItemKind = "markdown_cell"
)

// TemplateItem is one instruction of an itemized definition. Src names a
// built-in generator for template cells and holds template text otherwise.
type TemplateItem struct {
	CellType ItemKind `json:"cell_type" yaml:"cell_type"`
	Src      string   `json:"src" yaml:"src"`
}

// Definition is an ordered itemized template.
type Definition []TemplateItem

// DecodeDefinition parses a definition from JSON, falling back to YAML.
// source is used in error messages only.
func DecodeDefinition(data []byte, source string) (Definition, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("%w: definition %s is empty", ErrTemplateParse, source)
	}

	var raw []map[string]any
	jsonErr := json.Unmarshal(data, &raw)
	if jsonErr != nil {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: definition %s: %v", ErrTemplateParse, source, jsonErr)
		}
	}
	return definitionFromMaps(raw)
}

// DefinitionFromValue converts an inline request value into a Definition. It
// accepts a decoded JSON list, a typed Definition, or JSON/YAML text.
func DefinitionFromValue(v any) (Definition, error) {
	switch value := v.(type) {
	case Definition:
		return value, nil
	case []TemplateItem:
		return Definition(value), nil
	case string:
		return DecodeDefinition([]byte(value), KeyTemplate)
	case []map[string]any:
		return definitionFromMaps(value)
	case []any:
		items := make([]map[string]any, 0, len(value))
		for i, entry := range value {
			m, ok := entry.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: %s[%d] must be an object, got %T", ErrInvalidRequest, KeyTemplate, i, entry)
			}
			items = append(items, m)
		}
		return definitionFromMaps(items)
	default:
		return nil, fmt.Errorf("%w: %s must be a list, got %T", ErrInvalidRequest, KeyTemplate, v)
	}
}

func definitionFromMaps(items []map[string]any) (Definition, error) {
	def := make(Definition, 0, len(items))
	for i, item := range items {
		cellType, err := itemString(item, "cell_type", i)
		if err != nil {
			return nil, err
		}
		src, err := itemString(item, "src", i)
		if err != nil {
			return nil, err
		}
		def = append(def, TemplateItem{CellType: ItemKind(cellType), Src: src})
	}
	return def, nil
}

func itemString(item map[string]any, key string, index int) (string, error) {
	raw, ok := item[key]
	if !ok || raw == nil {
		return "", fmt.Errorf("%w: %s[%d].%s", ErrMissingField, KeyTemplate, index, key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s[%d].%s must be a string, got %T", ErrInvalidRequest, KeyTemplate, index, key, raw)
	}
	return s, nil
}
