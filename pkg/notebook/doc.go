// Package notebook models the subset of the Jupyter nbformat v4.5 document
// that rendered templates produce: an ordered list of code, markdown, or raw
// cells wrapped in a minimal envelope.
package notebook
