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

package cache

import (
	metricsutil "github.com/ebay/reasoner/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type cacheMetrics struct {
	// labels: cache type, result (hit, miss, subsumed)
	lookups *prometheus.CounterVec
	// labels: cache type
	recordedAnswers *prometheus.CounterVec
}

var metrics cacheMetrics

func init() {
	mr := metricsutil.Registry{R: prometheus.DefaultRegisterer}
	metrics = cacheMetrics{
		lookups: mr.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reasoner",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help: `The number of answer cache lookups, by cache type and result.

A "subsumed" result was answered from the cached answers of a more general
query.
`,
		}, "cache", "result"),
		recordedAnswers: mr.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reasoner",
			Subsystem: "cache",
			Name:      "recorded_answers_total",
			Help:      `The number of new answers added to answer caches, by cache type.`,
		}, "cache"),
	}
}
