// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package bridge

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the bridge's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	// Labels: op, result (success, error)
	operations *prometheus.CounterVec
	// Labels: op
	operationDuration *prometheus.HistogramVec
	// Labels: op
	timeouts   *prometheus.CounterVec
	queueDepth prometheus.Gauge

	// Labels: result (success, error)
	reindexPasses   *prometheus.CounterVec
	reindexDuration prometheus.Histogram
	coalescedWrites prometheus.Counter
	coalescerState  prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "membridge",
				Subsystem: "executor",
				Name:      "operations_total",
				Help:      "Total number of engine operations run by the executor",
			},
			[]string{"op", "result"},
		),
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "membridge",
				Subsystem: "executor",
				Name:      "operation_duration_seconds",
				Help:      "Duration of engine operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		timeouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "membridge",
				Subsystem: "executor",
				Name:      "timeouts_total",
				Help:      "Total number of calls whose caller stopped waiting",
			},
			[]string{"op"},
		),
		queueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "membridge",
				Subsystem: "executor",
				Name:      "queue_depth",
				Help:      "Operations waiting for the executor worker",
			},
		),
		reindexPasses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "membridge",
				Subsystem: "coalescer",
				Name:      "reindex_passes_total",
				Help:      "Total number of reindex passes",
			},
			[]string{"result"},
		),
		reindexDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "membridge",
				Subsystem: "coalescer",
				Name:      "reindex_duration_seconds",
				Help:      "Duration of reindex passes in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
		coalescedWrites: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "membridge",
				Subsystem: "coalescer",
				Name:      "coalesced_writes_total",
				Help:      "Writes absorbed by an already scheduled or pending reindex",
			},
		),
		coalescerState: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "membridge",
				Subsystem: "coalescer",
				Name:      "state",
				Help:      "Current coalescer state (0=idle, 1=scheduled, 2=running, 3=running with pending)",
			},
		),
	}
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (m *Metrics) observeOperation(op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, resultLabel(err)).Inc()
	m.operationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Metrics) observeTimeout(op string) {
	if m == nil {
		return
	}
	m.timeouts.WithLabelValues(op).Inc()
}

func (m *Metrics) setQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

func (m *Metrics) observeReindex(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.reindexPasses.WithLabelValues(resultLabel(err)).Inc()
	m.reindexDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) observeCoalesced() {
	if m == nil {
		return
	}
	m.coalescedWrites.Inc()
}

func (m *Metrics) setState(s State) {
	if m == nil {
		return
	}
	m.coalescerState.Set(float64(s))
}
