// Package catalog indexes notebook templates stored as directories. Each
// template directory holds a metadata document (metadata.json or
// metadata.yaml) naming its template_format, plus the template.json or
// template.txt asset the renderer reads for that format.
package catalog
