// Package server exposes a notebook catalog over HTTP.
//
// Routes:
//
//	GET  /healthz                      liveness probe
//	GET  /templates                    catalog listing
//	POST /templates/{name}/notebook    render a catalog template
//	POST /render                       render a full inline request
//	GET  /metrics                      prometheus metrics (WithMetrics only)
package server
