package render

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

const (
	defaultDefinitionAsset = "template.json"
	defaultTextAsset       = "template.txt"
)

// Assets locates the files backing a template. Definition and Text are paths
// inside FS and default to template.json and template.txt.
type Assets struct {
	FS         fs.FS
	Definition string
	Text       string
}

// DirAssets reads assets from a directory on disk.
func DirAssets(dir string) Assets {
	return Assets{FS: os.DirFS(dir)}
}

// SubAssets reads assets from dir inside fsys.
func SubAssets(fsys fs.FS, dir string) (Assets, error) {
	if fsys == nil {
		return Assets{}, errors.New("render: assets fs is nil")
	}
	dir = strings.Trim(strings.TrimSpace(dir), "/")
	if dir == "" || dir == "." {
		return Assets{FS: fsys}, nil
	}
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return Assets{}, fmt.Errorf("render: assets %s: %w", dir, err)
	}
	return Assets{FS: sub}, nil
}

func (a Assets) definitionPath() string {
	if p := strings.TrimSpace(a.Definition); p != "" {
		return p
	}
	return defaultDefinitionAsset
}

func (a Assets) textPath() string {
	if p := strings.TrimSpace(a.Text); p != "" {
		return p
	}
	return defaultTextAsset
}

// read loads an asset, mapping every "not there" condition to
// ErrAssetNotFound.
func (a Assets) read(name string) ([]byte, error) {
	if a.FS == nil {
		return nil, fmt.Errorf("%w: %s (no assets configured)", ErrAssetNotFound, name)
	}
	data, err := fs.ReadFile(a.FS, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
			return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, name)
		}
		return nil, fmt.Errorf("render: read asset %s: %w", name, err)
	}
	return data, nil
}

// LoadDefinition reads and decodes the itemized definition asset.
func (a Assets) LoadDefinition() (Definition, error) {
	path := a.definitionPath()
	data, err := a.read(path)
	if err != nil {
		return nil, err
	}
	return DecodeDefinition(data, path)
}

// LoadText reads the freeform template asset.
func (a Assets) LoadText() (string, error) {
	data, err := a.read(a.textPath())
	if err != nil {
		return "", err
	}
	return string(data), nil
}
