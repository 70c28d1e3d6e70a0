package notebook

import (
	"encoding/json"
	"fmt"
)

// FromDocument converts a decoded JSON document into a Notebook. Cells and
// metadata are taken from the document; the nbformat version is always
// forced to 4.5 since cells are emitted in that shape. An empty document
// yields an empty notebook.
func FromDocument(doc map[string]any) (Notebook, error) {
	nb := New(nil)
	if len(doc) == 0 {
		return nb, nil
	}

	if rawCells, ok := doc["cells"]; ok && rawCells != nil {
		payload, err := json.Marshal(rawCells)
		if err != nil {
			return Notebook{}, fmt.Errorf("notebook: encode cells: %w", err)
		}
		var cells []Cell
		if err := json.Unmarshal(payload, &cells); err != nil {
			return Notebook{}, fmt.Errorf("notebook: decode cells: %w", err)
		}
		if cells != nil {
			nb.Cells = cells
		}
	}

	if rawMeta, ok := doc["metadata"]; ok && rawMeta != nil {
		meta, ok := rawMeta.(map[string]any)
		if !ok {
			return Notebook{}, fmt.Errorf("notebook: metadata must be an object, got %T", rawMeta)
		}
		nb.Metadata = meta
	}

	return nb, nil
}
