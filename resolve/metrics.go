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

package resolve

import (
	metricsutil "github.com/ebay/reasoner/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type resolveMetrics struct {
	resolveDurationSeconds prometheus.Summary
	fixpointPasses         prometheus.Histogram
	ruleApplicationsTotal  prometheus.Counter
	inferredAnswersTotal   prometheus.Counter
	recursionLimitTotal    prometheus.Counter
	materializedFactsTotal prometheus.Counter
}

var metrics resolveMetrics

func init() {
	mr := metricsutil.Registry{R: prometheus.DefaultRegisterer}
	metrics = resolveMetrics{
		resolveDurationSeconds: mr.NewSummary(prometheus.SummaryOpts{
			Namespace: "reasoner",
			Subsystem: "resolve",
			Name:      "resolve_duration_seconds",
			Help: `The time it takes to resolve a conjunctive query, including rule application.

This is only updated when a Jaeger tracer is installed.
`,
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}),
		fixpointPasses: mr.NewHistogram(prometheus.HistogramOpts{
			Namespace: "reasoner",
			Subsystem: "resolve",
			Name:      "fixpoint_passes",
			Help: `The number of passes a query took to reach a fixpoint.

Queries that don't depend on themselves through rules take a single pass.
Recursive rules take one pass per step of derivation, plus one to confirm
that nothing changed.
`,
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		}),
		ruleApplicationsTotal: mr.NewCounter(prometheus.CounterOpts{
			Namespace: "reasoner",
			Subsystem: "resolve",
			Name:      "rule_applications_total",
			Help:      `The number of times a rule body was resolved to answer an atomic query.`,
		}),
		inferredAnswersTotal: mr.NewCounter(prometheus.CounterOpts{
			Namespace: "reasoner",
			Subsystem: "resolve",
			Name:      "inferred_answers_total",
			Help: `The number of answers produced by applying rules.

The same answer is counted again each time it's derived, so this can be much
larger than the number of distinct inferred facts.
`,
		}),
		recursionLimitTotal: mr.NewCounter(prometheus.CounterOpts{
			Namespace: "reasoner",
			Subsystem: "resolve",
			Name:      "recursion_limit_total",
			Help:      `The number of queries aborted for nesting rule applications too deeply.`,
		}),
		materializedFactsTotal: mr.NewCounter(prometheus.CounterOpts{
			Namespace: "reasoner",
			Subsystem: "resolve",
			Name:      "materialized_facts_total",
			Help:      `The number of inferred facts written back to the store.`,
		}),
	}
}
