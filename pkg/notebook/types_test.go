package notebook_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-nbgen/pkg/notebook"
)

func TestNotebookMarshal_Envelope(t *testing.T) {
	nb := notebook.New(nil)
	payload, err := nb.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	want := `{"cells":[],"metadata":{},"nbformat":4,"nbformat_minor":5}`
	if string(payload) != want {
		t.Fatalf("envelope mismatch\nwant: %s\n got: %s", want, payload)
	}
}

func TestCellMarshal_ShapePerType(t *testing.T) {
	code, err := json.Marshal(notebook.Cell{ID: "a", Type: notebook.CellTypeCode, Source: "x = 1"})
	if err != nil {
		t.Fatalf("marshal code cell: %v", err)
	}
	wantCode := `{"id":"a","cell_type":"code","execution_count":null,"metadata":{},"outputs":[],"source":"x = 1"}`
	if string(code) != wantCode {
		t.Fatalf("code cell mismatch\nwant: %s\n got: %s", wantCode, code)
	}

	md, err := json.Marshal(notebook.Cell{ID: "b", Type: notebook.CellTypeMarkdown, Source: "# Title"})
	if err != nil {
		t.Fatalf("marshal markdown cell: %v", err)
	}
	wantMD := `{"id":"b","cell_type":"markdown","metadata":{},"source":"# Title"}`
	if string(md) != wantMD {
		t.Fatalf("markdown cell mismatch\nwant: %s\n got: %s", wantMD, md)
	}
}

func TestAssignIDs_StableAndPreserving(t *testing.T) {
	cells := []notebook.Cell{
		notebook.NewCodeCell("print(1)"),
		{ID: "keep-me", Type: notebook.CellTypeMarkdown, Source: "hi"},
		notebook.NewCodeCell("print(1)"),
	}

	first := notebook.AssignIDs(cells)
	second := notebook.AssignIDs(cells)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("ids not stable (-first +second):\n%s", diff)
	}
	if first[1].ID != "keep-me" {
		t.Fatalf("explicit id overwritten: %q", first[1].ID)
	}
	if first[0].ID == "" || first[0].ID == first[2].ID {
		t.Fatalf("expected distinct positional ids, got %q and %q", first[0].ID, first[2].ID)
	}
	if cells[0].ID != "" {
		t.Fatalf("input slice mutated")
	}
}

func TestCellUnmarshal_SourceLines(t *testing.T) {
	var cell notebook.Cell
	err := json.Unmarshal([]byte(`{"cell_type":"markdown","metadata":{},"source":["# A\n","body"]}`), &cell)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cell.Source != "# A\nbody" {
		t.Fatalf("source mismatch: %q", cell.Source)
	}
	if cell.Type != notebook.CellTypeMarkdown {
		t.Fatalf("type mismatch: %q", cell.Type)
	}
}

func TestCellUnmarshal_RejectsUnknownType(t *testing.T) {
	var cell notebook.Cell
	if err := json.Unmarshal([]byte(`{"cell_type":"widget","source":""}`), &cell); err == nil {
		t.Fatalf("expected error for unknown cell type")
	}
}

func TestFromDocument(t *testing.T) {
	nb, err := notebook.FromDocument(map[string]any{
		"cells": []any{
			map[string]any{"cell_type": "code", "source": "a = 1"},
		},
		"metadata": map[string]any{"kernelspec": map[string]any{"name": "python3"}},
		"nbformat": 3,
	})
	if err != nil {
		t.Fatalf("from document: %v", err)
	}
	if len(nb.Cells) != 1 || nb.Cells[0].Source != "a = 1" {
		t.Fatalf("cells mismatch: %#v", nb.Cells)
	}
	if nb.NBFormat != 4 || nb.NBFormatMinor != 5 {
		t.Fatalf("version not forced: %d.%d", nb.NBFormat, nb.NBFormatMinor)
	}
	if _, ok := nb.Metadata["kernelspec"]; !ok {
		t.Fatalf("metadata not kept: %#v", nb.Metadata)
	}

	empty, err := notebook.FromDocument(map[string]any{})
	if err != nil {
		t.Fatalf("from empty document: %v", err)
	}
	if empty.Cells == nil || len(empty.Cells) != 0 {
		t.Fatalf("expected empty non-nil cells, got %#v", empty.Cells)
	}
}
