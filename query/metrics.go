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

package query

import (
	metricsutil "github.com/ebay/reasoner/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type queryMetrics struct {
	parseQueryDurationSeconds   prometheus.Summary
	resolveQueryDurationSeconds prometheus.Summary
	answersTotal                prometheus.Counter
}

var metrics queryMetrics

func init() {
	mr := metricsutil.Registry{R: prometheus.DefaultRegisterer}
	metrics = queryMetrics{
		parseQueryDurationSeconds: mr.NewSummary(prometheus.SummaryOpts{
			Namespace: "reasoner",
			Subsystem: "query",
			Name:      "parse_query_duration_seconds",
			Help:      "The time it takes to parse a query's text",
		}),
		resolveQueryDurationSeconds: mr.NewSummary(prometheus.SummaryOpts{
			Namespace: "reasoner",
			Subsystem: "query",
			Name:      "resolve_query_duration_seconds",
			Help:      "The time it takes to reason out all of a query's answers",
		}),
		answersTotal: mr.NewCounter(prometheus.CounterOpts{
			Namespace: "reasoner",
			Subsystem: "query",
			Name:      "answers_total",
			Help:      "The number of answers streamed back to callers",
		}),
	}
}
