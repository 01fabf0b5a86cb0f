// metrics.go: Occurrence and wiring metrics
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package eventmon

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector receives metrics emitted by monitors and recorders.
//
// Hooks run inline with signal delivery, so implementations must be cheap
// and safe for concurrent use.
type Collector interface {
	IncOccurrence(signal string)
	IncWired(targetType string, n int)
	SetActiveMonitors(n int)
}

type noopCollector struct{}

// NoopCollector returns a collector that discards all metrics.
func NoopCollector() Collector {
	return noopCollector{}
}

func (noopCollector) IncOccurrence(string)  {}
func (noopCollector) IncWired(string, int)  {}
func (noopCollector) SetActiveMonitors(int) {}

// PrometheusCollector exposes eventmon metrics via Prometheus.
type PrometheusCollector struct {
	occurrences    *prometheus.CounterVec
	wired          *prometheus.CounterVec
	activeMonitors prometheus.Gauge
}

// NewPrometheusCollector registers the eventmon metrics with reg. Metrics
// that are already registered are reused, so several registries may share
// one Prometheus registerer.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	occurrences, err := registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventmon_occurrences_total",
		Help: "Number of recorded signal occurrences per signal name.",
	}, []string{"signal"}))
	if err != nil {
		return nil, err
	}

	wired, err := registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eventmon_signals_wired_total",
		Help: "Number of signal handlers wired per monitored type.",
	}, []string{"target_type"}))
	if err != nil {
		return nil, err
	}

	active, err := registerOrReuse(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eventmon_active_monitors",
		Help: "Number of monitors held by the registry that reported last.",
	}))
	if err != nil {
		return nil, err
	}

	return &PrometheusCollector{
		occurrences:    occurrences,
		wired:          wired,
		activeMonitors: active,
	}, nil
}

func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}

// IncOccurrence counts one recorded occurrence of signal.
func (p *PrometheusCollector) IncOccurrence(signal string) {
	if p == nil || p.occurrences == nil {
		return
	}
	p.occurrences.WithLabelValues(signal).Inc()
}

// IncWired counts n handlers wired on an object of targetType.
func (p *PrometheusCollector) IncWired(targetType string, n int) {
	if p == nil || p.wired == nil || n <= 0 {
		return
	}
	p.wired.WithLabelValues(targetType).Add(float64(n))
}

// SetActiveMonitors updates the monitor gauge.
func (p *PrometheusCollector) SetActiveMonitors(n int) {
	if p == nil || p.activeMonitors == nil {
		return
	}
	p.activeMonitors.Set(float64(n))
}
