package nbgen

import (
	"io/fs"

	"github.com/goliatone/go-nbgen/pkg/catalog"
)

// EmbeddedTemplates exposes the bundled template catalog so callers can reuse
// or extend it without importing the catalog package directly.
func EmbeddedTemplates() fs.FS {
	return catalog.EmbeddedFS()
}
