package render

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	renders  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	renders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nbgen_renders_total",
		Help: "Notebook renders by template, format, and outcome.",
	}, []string{"template", "format", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nbgen_render_duration_seconds",
		Help:    "Time spent rendering a notebook.",
		Buckets: prometheus.DefBuckets,
	}, []string{"template", "format"})

	var err error
	if renders, err = registerCollector(reg, renders); err != nil {
		return nil, err
	}
	if duration, err = registerCollector(reg, duration); err != nil {
		return nil, err
	}
	return &metrics{renders: renders, duration: duration}, nil
}

// registerCollector registers c, reusing an identical collector registered by
// another renderer.
func registerCollector[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *metrics) observe(name string, format Format, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = outcomeFor(err)
	}
	m.renders.WithLabelValues(name, string(format), outcome).Inc()
	m.duration.WithLabelValues(name, string(format)).Observe(time.Since(started).Seconds())
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, ErrMissingField), errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrAssetNotFound):
		return "asset_not_found"
	case errors.Is(err, ErrTemplateParse), errors.Is(err, ErrInvalidTemplate):
		return "template_error"
	default:
		return "error"
	}
}
