// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func Test_Registry(t *testing.T) {
	reg := prometheus.NewRegistry()
	mr := Registry{R: reg}
	c := mr.NewCounter(prometheus.CounterOpts{
		Namespace: "reasoner",
		Subsystem: "test",
		Name:      "things_total",
		Help:      "Number of things.",
	})
	c.Add(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(c))

	g := mr.NewGauge(prometheus.GaugeOpts{
		Namespace: "reasoner",
		Subsystem: "test",
		Name:      "size",
		Help:      "Current size.",
	})
	g.Set(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(g))

	mr.NewSummary(prometheus.SummaryOpts{
		Namespace: "reasoner",
		Subsystem: "test",
		Name:      "latency_seconds",
		Help:      "Latency.",
	}).Observe(0.5)
	mr.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reasoner",
		Subsystem: "test",
		Name:      "by_kind_total",
		Help:      "Things by kind.",
	}, "kind").WithLabelValues("a").Inc()

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.Len(t, families, 4)

	// Registering the same name twice panics.
	assert.Panics(t, func() {
		mr.NewCounter(prometheus.CounterOpts{
			Namespace: "reasoner",
			Subsystem: "test",
			Name:      "things_total",
			Help:      "Number of things.",
		})
	})
}
