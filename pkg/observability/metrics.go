package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/framecast/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "framecast"

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds the framecast collectors.
type Metrics struct {
	gatherer prometheus.Gatherer

	Composites        *prometheus.CounterVec
	CompositeDuration prometheus.Histogram
	ActionsRecorded   *prometheus.CounterVec
	ActionCount       *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		Composites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "composites_total",
				Help:      "Total number of compositing operations by result",
			},
			[]string{"result"},
		),
		CompositeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "composite_duration_seconds",
				Help:      "Duration of compositing operations",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		ActionsRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_recorded_total",
				Help:      "Total number of action events appended, by kind and result",
			},
			[]string{"kind", "result"},
		),
		ActionCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "action_count",
				Help:      "Live action totals as seen by this process",
			},
			[]string{"kind"},
		),
	}
	reg.MustRegister(m.Composites, m.CompositeDuration, m.ActionsRecorded, m.ActionCount)
	return m
}

// Hooks returns lifecycle hooks that feed the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnComposite: m.observeComposite,
		OnRecord:    m.observeRecord,
		OnCounts:    m.observeCounts,
	}
}

func (m *Metrics) observeComposite(_ context.Context, e *domain.CompositeEvent) {
	if e.Err != nil {
		m.Composites.WithLabelValues(ResultError).Inc()
		return
	}
	m.Composites.WithLabelValues(ResultOK).Inc()
	m.CompositeDuration.Observe(e.Duration.Seconds())
}

func (m *Metrics) observeRecord(_ context.Context, e *domain.RecordEvent) {
	result := ResultOK
	if e.Err != nil {
		result = ResultError
	}
	m.ActionsRecorded.WithLabelValues(string(e.Kind), result).Inc()
}

func (m *Metrics) observeCounts(_ context.Context, counts domain.ActionCounts) {
	for kind, n := range counts {
		m.ActionCount.WithLabelValues(string(kind)).Set(float64(n))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Chain merges hook sets; every non-nil callback runs in order.
func Chain(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range hooks {
		h := h
		if h.OnComposite != nil {
			prev := out.OnComposite
			out.OnComposite = func(ctx context.Context, e *domain.CompositeEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnComposite(ctx, e)
			}
		}
		if h.OnRecord != nil {
			prev := out.OnRecord
			out.OnRecord = func(ctx context.Context, e *domain.RecordEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnRecord(ctx, e)
			}
		}
		if h.OnCounts != nil {
			prev := out.OnCounts
			out.OnCounts = func(ctx context.Context, c domain.ActionCounts) {
				if prev != nil {
					prev(ctx, c)
				}
				h.OnCounts(ctx, c)
			}
		}
	}
	return out
}
