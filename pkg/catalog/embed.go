package catalog

import (
	"embed"
	"io/fs"
)

//go:embed templates/*
var embeddedTemplates embed.FS

// EmbeddedFS returns the bundled templates. Callers may pass this filesystem
// to LoadFS to use the default catalog.
func EmbeddedFS() fs.FS {
	sub, err := fs.Sub(embeddedTemplates, "templates")
	if err != nil {
		// The embed directive guarantees the subpath exists, so panic is
		// acceptable here.
		panic(err)
	}
	return sub
}
