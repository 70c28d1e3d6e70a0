// Package template defines the template engine seam used by the notebook
// renderer. Itemized templates only need a template string rendered against
// a variable set. Freeform templates are rendered by name through a
// FileEngine when the renderer owns one, which lets them include other
// files from the same template directory.
package template
