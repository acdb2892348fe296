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

// Package config defines the JSON configuration file read by the reasoner
// tools.
package config

// Reasoner is the top-level configuration.
type Reasoner struct {
	// Controls how queries are resolved.
	Resolution Resolution `json:"resolution"`
	// If set, traces are reported to Jaeger.
	Tracing *Tracing `json:"tracing,omitempty"`
	// If set, a Prometheus /metrics endpoint is served on this host:port.
	MetricsAddress string `json:"metricsAddress,omitempty"`
	// Logging level name, like "info" or "debug". Empty means "info".
	LogLevel string `json:"logLevel,omitempty"`
}

// Resolution holds the tunables of the resolution engine. Zero values select
// the engine defaults.
type Resolution struct {
	// Hard ceiling on rule-application recursion depth.
	MaxDepth int `json:"maxDepth,omitempty"`
	// Upper bound on fixpoint passes for a single query.
	MaxIterations int `json:"maxIterations,omitempty"`
	// If true, inferred facts are written back to the store.
	Materialize bool `json:"materialize,omitempty"`
	// If true, the disjuncts of a disjunctive pattern resolve concurrently.
	ParallelDisjuncts bool `json:"parallelDisjuncts,omitempty"`
}

// Tracing describes where to send OpenTracing spans.
type Tracing struct {
	// URL of a Jaeger collector that accepts jaeger.thrift over HTTP.
	Endpoint string `json:"endpoint"`
}
