package query

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"mbsheets/internal/model"
)

// Metrics holds the executor's Prometheus metrics.
type Metrics struct {
	Pages    *prometheus.CounterVec
	Rows     *prometheus.CounterVec
	Failures *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	pages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mbsheets_query_pages_total",
		Help: "Backend pages fetched",
	}, []string{"kind"})

	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mbsheets_query_rows_total",
		Help: "Result rows returned to callers",
	}, []string{"kind"})

	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mbsheets_query_failures_total",
		Help: "Failed query invocations by reason",
	}, []string{"kind", "reason"})

	reg.MustRegister(pages, rows, failures)

	return &Metrics{
		Pages:    pages,
		Rows:     rows,
		Failures: failures,
	}
}

func (m *Metrics) page(kind string) {
	if m != nil {
		m.Pages.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) rows(kind string, n int) {
	if m != nil {
		m.Rows.WithLabelValues(kind).Add(float64(n))
	}
}

func (m *Metrics) failure(kind string, err error) {
	if m != nil {
		m.Failures.WithLabelValues(kind, failureReason(err)).Inc()
	}
}

func failureReason(err error) string {
	var (
		malformed *model.MalformedSpecError
		rejected  *model.QueryRejectedError
		transport *model.TransportError
	)
	switch {
	case errors.Is(err, model.ErrResultCapExceeded):
		return "cap"
	case errors.As(err, &malformed):
		return "malformed"
	case errors.As(err, &rejected):
		return "rejected"
	case errors.As(err, &transport):
		return "transport"
	default:
		return "other"
	}
}
