// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package pool

import "github.com/prometheus/client_golang/prometheus"

// metrics tracks request outcomes and latency for one pool handle.
type metrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	outstanding prometheus.Gauge
}

func newMetrics(poolName string) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "indysdk_pool_requests_total",
			Help:        "Number of pool requests by kind and outcome.",
			ConstLabels: prometheus.Labels{"pool": poolName},
		}, []string{"kind", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "indysdk_pool_request_duration_seconds",
			Help:        "Latency of pool requests from submission to terminal state.",
			ConstLabels: prometheus.Labels{"pool": poolName},
			Buckets:     prometheus.DefBuckets,
		}, []string{"kind"}),
		outstanding: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "indysdk_pool_outstanding_requests",
			Help:        "Number of requests with a live state machine.",
			ConstLabels: prometheus.Labels{"pool": poolName},
		}),
	}
	return m
}

func (m *metrics) register(reg *prometheus.Registry) {
	if reg == nil {
		return
	}
	reg.MustRegister(m.requests, m.latency, m.outstanding)
}
