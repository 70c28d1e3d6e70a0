// Package render turns a render request into a Jupyter notebook. A request
// names one of three template formats:
//
//   - python: no generation strategy; the notebook has no cells.
//   - json: an itemized definition, an ordered list of code, markdown, or
//     generator items, each producing cells in order.
//   - jinja: a freeform template rendered as a whole and decoded as JSON.
//
// Template text uses Jinja2 syntax through the template.Engine seam; assets
// are read from an fs.FS injected at construction.
package render
