package runtime

import (
	stderrors "errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wippyai/wasm-gate/compat"
)

// Verdict label values of wasmgate_admissions_total.
const (
	VerdictAdmitted          = "admitted"
	VerdictUnsupportedImport = "unsupported_import"
	VerdictMissingExport     = "missing_export"
	VerdictMalformed         = "malformed"
)

type metrics struct {
	admissions *prometheus.CounterVec
	cacheHits  prometheus.Counter
	duration   prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wasmgate",
			Name:      "admissions_total",
			Help:      "Admission verdicts by outcome.",
		}, []string{"verdict"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wasmgate",
			Name:      "verdict_cache_hits_total",
			Help:      "Admissions answered from the verdict cache.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wasmgate",
			Name:      "check_duration_seconds",
			Help:      "Time spent deciding admission, including cache lookups.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
	}

	var err error
	if m.admissions, err = register(reg, m.admissions); err != nil {
		return nil, err
	}
	if m.cacheHits, err = register(reg, m.cacheHits); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}

	for _, v := range []string{VerdictAdmitted, VerdictUnsupportedImport, VerdictMissingExport, VerdictMalformed} {
		m.admissions.WithLabelValues(v)
	}
	return m, nil
}

// register registers c, or returns the collector already registered under
// the same descriptor so several runtimes can share one registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if stderrors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *metrics) observe(err error, elapsed time.Duration) {
	m.admissions.WithLabelValues(verdictLabel(err)).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func verdictLabel(err error) string {
	switch {
	case err == nil:
		return VerdictAdmitted
	case stderrors.Is(err, compat.ErrUnsupportedImports):
		return VerdictUnsupportedImport
	case stderrors.Is(err, compat.ErrMissingExports):
		return VerdictMissingExport
	default:
		return VerdictMalformed
	}
}
