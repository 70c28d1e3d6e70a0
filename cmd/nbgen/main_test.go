package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goliatone/go-nbgen/pkg/render"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestList(t *testing.T) {
	out, err := execute(t, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, name := range []string{"NAME", "blank", "metadata_overview", "dataset_summary", "anndata_analysis"} {
		if !strings.Contains(out, name) {
			t.Fatalf("list output missing %q:\n%s", name, out)
		}
	}
}

func TestRender_Blank(t *testing.T) {
	out, err := execute(t, "render", "blank")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := `{"cells":[],"metadata":{},"nbformat":4,"nbformat_minor":5}`
	if strings.TrimSpace(out) != want {
		t.Fatalf("output mismatch:\nwant %s\ngot  %s", want, out)
	}
}

func TestRender_OutputFileAndTemplatesDir(t *testing.T) {
	dir := t.TempDir()
	tplDir := filepath.Join(dir, "templates", "custom")
	if err := os.MkdirAll(tplDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tplDir, "metadata.yaml"), []byte("template_format: json\ntitle: Custom\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	def := `[{"cell_type": "markdown_cell", "src": "# {{ who }}"}]`
	if err := os.WriteFile(filepath.Join(tplDir, "template.json"), []byte(def), 0o644); err != nil {
		t.Fatal(err)
	}
	reqFile := filepath.Join(dir, "request.json")
	if err := os.WriteFile(reqFile, []byte(`{"who": "world"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	outFile := filepath.Join(dir, "out.ipynb")

	_, err := execute(t,
		"--templates", filepath.Join(dir, "templates"),
		"render", "custom",
		"--token", "tok",
		"--request", reqFile,
		"-o", outFile,
	)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	data, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var nb struct {
		Cells []struct {
			Source string `json:"source"`
		} `json:"cells"`
	}
	if err := json.Unmarshal(data, &nb); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(nb.Cells) != 1 || nb.Cells[0].Source != "# world" {
		t.Fatalf("unexpected notebook: %s", data)
	}
}

func TestRender_Errors(t *testing.T) {
	t.Setenv("NBGEN_GROUP_TOKEN", "")

	if _, err := execute(t, "render", "missing"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
	if _, err := execute(t, "render", "metadata_overview", "--uuids", "u1"); !errors.Is(err, render.ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
	if _, err := execute(t, "render"); err == nil {
		t.Fatalf("expected argument error")
	}
}
