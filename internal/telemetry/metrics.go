// Package telemetry exports store activity as Prometheus metrics.
package telemetry

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/roach88/storekit/internal/store"
)

// Drop reasons.
const (
	ReasonClosed = "closed"
	ReasonQuota  = "quota"
	ReasonPanic  = "panic"
	ReasonOther  = "other"
)

// Metrics holds the store collectors. One Metrics serves any number of
// stores; each store is told apart by the "store" label.
type Metrics struct {
	gatherer prometheus.Gatherer

	reductions *prometheus.CounterVec
	effects    *prometheus.HistogramVec
	followUps  *prometheus.CounterVec
	drops      *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg uses a fresh private registry.
func NewMetrics(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		gatherer: reg,
		reductions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storekit",
			Name:      "reductions_total",
			Help:      "Reductions committed, by action and whether state changed.",
		}, []string{"store", "action", "changed"}),
		effects: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storekit",
			Name:      "middleware_duration_seconds",
			Help:      "Time spent in middleware per action.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"store", "action"}),
		followUps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storekit",
			Name:      "follow_ups_total",
			Help:      "Follow-up actions returned by middleware.",
		}, []string{"store", "action"}),
		drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storekit",
			Name:      "drops_total",
			Help:      "Actions dropped before or after reduction, by reason.",
		}, []string{"store", "reason"}),
	}

	for _, c := range []prometheus.Collector{m.reductions, m.effects, m.followUps, m.drops} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

// Observer returns store hooks that record into m under storeName.
func (m *Metrics) Observer(storeName string) store.Hooks[any] {
	return store.Hooks[any]{
		OnReduce: func(e store.Event[any]) {
			m.reductions.WithLabelValues(storeName, store.ActionName(e.Action), strconv.FormatBool(e.Changed)).Inc()
		},
		OnEffect: func(e store.Event[any], next any, ok bool, d time.Duration) {
			m.effects.WithLabelValues(storeName, store.ActionName(e.Action)).Observe(d.Seconds())
			if ok {
				m.followUps.WithLabelValues(storeName, store.ActionName(next)).Inc()
			}
		},
		OnDrop: func(_ string, _ any, err error) {
			m.drops.WithLabelValues(storeName, reason(err)).Inc()
		},
	}
}

func reason(err error) string {
	switch {
	case errors.Is(err, store.ErrClosed):
		return ReasonClosed
	case store.IsStepsExceededError(err):
		return ReasonQuota
	case store.IsPanicError(err):
		return ReasonPanic
	default:
		return ReasonOther
	}
}

// WriteText writes every gathered metric family in the Prometheus text
// exposition format.
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}
