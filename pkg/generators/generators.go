// Package generators holds the built-in cell generators referenced by name
// from itemized templates. Each generator turns a list of dataset uuids into
// notebook cells using data fetched through a Client.
package generators

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-nbgen/pkg/notebook"
)

// Name identifies a built-in generator.
type Name string

const (
	Metadata Name = "get_metadata_cells"
	Files    Name = "get_file_cells"
	AnnData  Name = "get_anndata_cells"
)

// Known reports whether name refers to a built-in generator.
func Known(name Name) bool {
	switch name {
	case Metadata, Files, AnnData:
		return true
	default:
		return false
	}
}

// Names lists the built-in generators.
func Names() []Name {
	return []Name{Metadata, Files, AnnData}
}

// File describes a file attached to a dataset.
type File struct {
	RelPath     string `json:"rel_path"`
	Size        int64  `json:"size,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Client fetches the data the generators describe. Implementations decide on
// transport and authentication.
type Client interface {
	// Metadata returns one metadata record per uuid, in uuid order.
	Metadata(ctx context.Context, uuids []string) ([]map[string]any, error)
	// Files returns the files attached to each uuid.
	Files(ctx context.Context, uuids []string) (map[string][]File, error)
	// AnnData returns the AnnData (.h5ad) files attached to each uuid.
	AnnData(ctx context.Context, uuids []string) (map[string][]File, error)
}

// ClientFactory builds a Client authenticated with a group token.
type ClientFactory func(token string) (Client, error)

// Generate runs the named generator. Unknown names produce no cells and no
// error; callers check Known when they want to treat that as a failure.
func Generate(ctx context.Context, name Name, uuids []string, client Client) ([]notebook.Cell, error) {
	if len(uuids) == 0 {
		return nil, nil
	}
	switch name {
	case Metadata:
		return MetadataCells(ctx, uuids, client)
	case Files:
		return FileCells(ctx, uuids, client)
	case AnnData:
		return AnnDataCells(ctx, uuids, client)
	default:
		return nil, nil
	}
}

// MetadataCells emits a heading, the uuid list, and a code cell that loads the
// fetched metadata into a pandas DataFrame.
func MetadataCells(ctx context.Context, uuids []string, client Client) ([]notebook.Cell, error) {
	if client == nil {
		return nil, fmt.Errorf("generators: %s: client is required", Metadata)
	}
	records, err := client.Metadata(ctx, uuids)
	if err != nil {
		return nil, fmt.Errorf("generators: %s: %w", Metadata, err)
	}

	uuidList, err := pythonLiteral(uuids)
	if err != nil {
		return nil, err
	}
	payload, err := pythonLiteral(records)
	if err != nil {
		return nil, err
	}

	return []notebook.Cell{
		notebook.NewMarkdownCell("## Metadata"),
		notebook.NewCodeCell("uuids = " + uuidList),
		notebook.NewCodeCell(strings.Join([]string{
			"import json",
			"import pandas as pd",
			"",
			"metadata = json.loads(" + quotePython(payload) + ")",
			"metadata_df = pd.DataFrame(metadata)",
			"metadata_df",
		}, "\n")),
	}, nil
}

// FileCells emits a heading followed by one markdown cell per uuid listing
// its files.
func FileCells(ctx context.Context, uuids []string, client Client) ([]notebook.Cell, error) {
	if client == nil {
		return nil, fmt.Errorf("generators: %s: client is required", Files)
	}
	files, err := client.Files(ctx, uuids)
	if err != nil {
		return nil, fmt.Errorf("generators: %s: %w", Files, err)
	}

	cells := []notebook.Cell{notebook.NewMarkdownCell("## Files")}
	for _, uuid := range uuids {
		var b strings.Builder
		fmt.Fprintf(&b, "### %s\n", uuid)
		list := sortedFiles(files[uuid])
		if len(list) == 0 {
			b.WriteString("\nNo files found.")
		}
		for _, file := range list {
			b.WriteString("\n- ")
			if file.URL != "" {
				fmt.Fprintf(&b, "[%s](%s)", file.RelPath, file.URL)
			} else {
				b.WriteString(file.RelPath)
			}
			if file.Description != "" {
				fmt.Fprintf(&b, ": %s", file.Description)
			}
		}
		cells = append(cells, notebook.NewMarkdownCell(b.String()))
	}
	return cells, nil
}

// AnnDataCells emits a heading and a code cell that downloads and reads every
// AnnData file attached to the uuids, keyed "<uuid>/<rel_path>" in the adatas
// dict. Uuids without AnnData output are listed in a trailing markdown note.
func AnnDataCells(ctx context.Context, uuids []string, client Client) ([]notebook.Cell, error) {
	if client == nil {
		return nil, fmt.Errorf("generators: %s: client is required", AnnData)
	}
	files, err := client.AnnData(ctx, uuids)
	if err != nil {
		return nil, fmt.Errorf("generators: %s: %w", AnnData, err)
	}

	lines := []string{
		"import anndata",
		"import requests",
		"",
		"adatas = {}",
	}
	var missing []string
	for _, uuid := range uuids {
		list := sortedFiles(files[uuid])
		if len(list) == 0 {
			missing = append(missing, uuid)
			continue
		}
		for _, file := range list {
			if file.URL == "" {
				continue
			}
			local := uuid + "-" + strings.ReplaceAll(file.RelPath, "/", "_")
			lines = append(lines,
				"with open("+quotePython(local)+", 'wb') as f:",
				"    f.write(requests.get("+quotePython(file.URL)+").content)",
				"adatas["+quotePython(uuid+"/"+file.RelPath)+"] = anndata.read_h5ad("+quotePython(local)+")",
			)
		}
	}
	lines = append(lines, "adatas")

	cells := []notebook.Cell{
		notebook.NewMarkdownCell("## AnnData"),
		notebook.NewCodeCell(strings.Join(lines, "\n")),
	}
	if len(missing) > 0 {
		cells = append(cells, notebook.NewMarkdownCell(
			"No AnnData files were found for: "+strings.Join(missing, ", ")))
	}
	return cells, nil
}

func sortedFiles(files []File) []File {
	out := make([]File, len(files))
	copy(out, files)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RelPath < out[j].RelPath
	})
	return out
}

// pythonLiteral encodes v as JSON, which is also a valid Python literal for
// lists of strings; records are embedded through json.loads instead.
func pythonLiteral(v any) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("generators: encode literal: %w", err)
	}
	return string(payload), nil
}

func quotePython(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`)
	return "'" + replacer.Replace(s) + "'"
}
