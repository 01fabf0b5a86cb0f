// metrics_test.go: Tests for the Prometheus collector
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package eventmon

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopCollector(t *testing.T) {
	collector := NoopCollector()
	require.NotNil(t, collector)
	collector.IncOccurrence("Opened")
	collector.IncWired("*main.Door", 2)
	collector.SetActiveMonitors(1)
}

func TestNilPrometheusCollectorIsSafe(t *testing.T) {
	var collector *PrometheusCollector
	assert.NotPanics(t, func() {
		collector.IncOccurrence("Opened")
		collector.IncWired("*main.Door", 1)
		collector.SetActiveMonitors(3)
	})
}

func TestPrometheusCollectorRecordsMonitorActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	r := newTestRegistry(t, Config{Metrics: collector})
	door := &testDoor{}
	m, err := Attach(r, door, AllOf[*testDoor]())
	require.NoError(t, err)

	door.Open()
	door.Open()
	door.Close("done")

	families := gatherFamilies(t, reg)
	assert.Equal(t, 2.0, counterWithLabel(t, families["eventmon_occurrences_total"], "signal", "Opened"))
	assert.Equal(t, 1.0, counterWithLabel(t, families["eventmon_occurrences_total"], "signal", "Closed"))
	assert.Equal(t, 2.0, counterWithLabel(t, families["eventmon_signals_wired_total"], "target_type", "*eventmon.testDoor"))
	assert.Equal(t, 1.0, gaugeValue(t, families["eventmon_active_monitors"]))

	m.Dispose()
	families = gatherFamilies(t, reg)
	assert.Equal(t, 0.0, gaugeValue(t, families["eventmon_active_monitors"]))
}

func TestPrometheusCollectorReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPrometheusCollector(reg)
	require.NoError(t, err)
	second, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	assert.Same(t, first.occurrences, second.occurrences)
	assert.Same(t, first.wired, second.wired)

	first.IncOccurrence("Opened")
	second.IncOccurrence("Opened")

	families := gatherFamilies(t, reg)
	assert.Equal(t, 2.0, counterWithLabel(t, families["eventmon_occurrences_total"], "signal", "Opened"))
}

func TestPrometheusCollectorIgnoresEmptyWiring(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	collector.IncWired("*eventmon.testDoor", 0)
	families := gatherFamilies(t, reg)
	_, ok := families["eventmon_signals_wired_total"]
	assert.False(t, ok, "a vector without children is not exported")
}

func gatherFamilies(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	metrics, err := reg.Gather()
	require.NoError(t, err)
	families := make(map[string]*dto.MetricFamily, len(metrics))
	for _, mf := range metrics {
		families[mf.GetName()] = mf
	}
	return families
}

func counterWithLabel(t *testing.T, mf *dto.MetricFamily, name, value string) float64 {
	t.Helper()
	require.NotNil(t, mf)
	for _, metric := range mf.Metric {
		for _, label := range metric.Label {
			if label.GetName() == name && label.GetValue() == value {
				require.NotNil(t, metric.Counter)
				return metric.Counter.GetValue()
			}
		}
	}
	t.Fatalf("%s has no series with %s=%q", mf.GetName(), name, value)
	return 0
}

func gaugeValue(t *testing.T, mf *dto.MetricFamily) float64 {
	t.Helper()
	require.NotNil(t, mf)
	require.Len(t, mf.Metric, 1)
	require.NotNil(t, mf.Metric[0].Gauge)
	return mf.Metric[0].Gauge.GetValue()
}
