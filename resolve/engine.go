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

// Package resolve answers queries from stored facts and rules. Given a query,
// it finds the answers matching stored facts directly, and then those
// derivable by applying rules, transitively, until no more can be found.
//
// Each conjunctive query is split into atomic queries that are resolved
// separately and then joined. An atomic query is resolved by looking up its
// stored facts, then by unifying it with the head of each rule that could
// conclude it and resolving that rule's body. Answers are recorded in caches
// shared by equivalent queries, so nothing is derived twice.
//
// Rules may depend on themselves. An atomic query that's reached again while
// it's still being resolved is given the answers found for it so far, and
// the whole query is resolved again, in passes, until a pass finds nothing
// new.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/cache"
	"github.com/ebay/reasoner/config"
	"github.com/ebay/reasoner/rules"
	"github.com/ebay/reasoner/schema"
	"github.com/ebay/reasoner/store"
	"github.com/ebay/reasoner/unify"
	"github.com/ebay/reasoner/util/parallel"
	"github.com/ebay/reasoner/util/tracing"
	"github.com/ebay/reasoner/validate"
	opentracing "github.com/opentracing/opentracing-go"
)

var (
	// ErrRecursionLimit is returned when resolving a query nests rule
	// applications deeper than Options.MaxDepth.
	ErrRecursionLimit = errors.New("rule recursion limit reached")
	// ErrIterationLimit is returned when a recursive query hasn't reached a
	// fixpoint after Options.MaxIterations passes.
	ErrIterationLimit = errors.New("rule iteration limit reached")
)

// Defaults for zero-valued Options fields.
const (
	DefaultMaxDepth      = 64
	DefaultMaxIterations = 100
)

// Options control resolution. The zero value is usable.
type Options struct {
	// Hard ceiling on nested rule applications.
	MaxDepth int
	// Upper bound on fixpoint passes for a single query.
	MaxIterations int
	// If true, inferred facts are inserted into the store once a query
	// reaches its fixpoint.
	Materialize bool
	// If true, the disjuncts of a pattern are resolved concurrently.
	ParallelDisjuncts bool
}

// OptionsFromConfig returns the Options described by cfg.
func OptionsFromConfig(cfg config.Resolution) Options {
	return Options{
		MaxDepth:          cfg.MaxDepth,
		MaxIterations:     cfg.MaxIterations,
		Materialize:       cfg.Materialize,
		ParallelDisjuncts: cfg.ParallelDisjuncts,
	}
}

func (opts Options) withDefaults() Options {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	return opts
}

// Engine resolves queries against a store and a set of rules. An Engine is
// meant to live as long as one transaction: its caches assume the stored
// facts only change through its own materialization. It's safe for
// concurrent use.
type Engine struct {
	store store.Store
	sch   *schema.Schema
	rules *rules.Cache
	opts  Options
	// Answers of atomic queries, complete or not.
	exact *cache.Cache
	// Complete answers of atomic queries.
	structural *cache.Cache
	// The number of answers added to the exact cache, ever. Passes compare it
	// to detect a fixpoint.
	changes atomic.Int64
}

// New returns an Engine. If rc is nil, the engine starts without rules.
func New(st store.Store, rc *rules.Cache, opts Options) *Engine {
	sch := st.Schema()
	if rc == nil {
		rc, _ = rules.NewCache(sch)
	}
	return &Engine{
		store:      st,
		sch:        sch,
		rules:      rc,
		opts:       opts.withDefaults(),
		exact:      cache.New(unify.Exact, sch),
		structural: cache.New(unify.Structural, sch),
	}
}

// Rules returns the engine's rules. Rules added to or removed from it
// directly don't invalidate cached answers; use AddRule and RemoveRule.
func (e *Engine) Rules() *rules.Cache {
	return e.rules
}

// Options returns the options in effect, with defaults applied.
func (e *Engine) Options() Options {
	return e.opts
}

// ValidateRule checks a rule against the engine's schema. It returns every
// problem found, or an empty list.
func (e *Engine) ValidateRule(label string, when, then atom.Pattern) validate.Errors {
	return validate.Rule(e.sch, label, when, then)
}

// AddRule validates a rule and adds it. Cached answers are discarded, since
// they may be missing the new rule's conclusions.
func (e *Engine) AddRule(label string, when, then atom.Pattern) (*rules.Rule, error) {
	r, err := rules.New(e.sch, label, when, then)
	if err != nil {
		return nil, err
	}
	if err := e.rules.Add(r); err != nil {
		return nil, err
	}
	e.ClearCaches()
	return r, nil
}

// RemoveRule removes the rule with the given label. It returns false if
// there's no such rule.
func (e *Engine) RemoveRule(label string) bool {
	if !e.rules.Remove(label) {
		return false
	}
	e.ClearCaches()
	return true
}

// ClearCaches discards every cached answer.
func (e *Engine) ClearCaches() {
	e.exact.Clear()
	e.structural.Clear()
}

// CacheLen returns the number of entries in the exact and structural answer
// caches.
func (e *Engine) CacheLen() (exact, structural int) {
	return e.exact.Len(), e.structural.Len()
}

// Resolve returns every answer to q, from stored facts and rules, projected to
// q's selected variables. Each distinct answer is returned once; answers
// derived by rules carry an Explanation. Query errors are reported before any
// resolution starts.
func (e *Engine) Resolve(ctx context.Context, q *atom.Query) (*answer.Stream, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "resolve")
	span.SetTag("query", q.String())
	tracing.UpdateMetric(span, metrics.resolveDurationSeconds)
	defer span.Finish()
	if err := q.Check(e.sch); err != nil {
		return nil, err
	}
	res, err := e.fixpoint(ctx, q)
	if err != nil {
		return nil, err
	}
	span.SetTag("answers", len(res))
	return answer.FromSlice(res), nil
}

// ResolvePattern resolves each conjunction of p's disjunctive normal form and
// returns their distinct answers. Each conjunction selects those of the
// selected variables it binds; with none given, its named variables.
func (e *Engine) ResolvePattern(ctx context.Context, p atom.Pattern, selected ...atom.Variable) (*answer.Stream, error) {
	queries, err := p.Queries(selected...)
	if err != nil {
		return nil, err
	}
	for _, q := range queries {
		if err := q.Check(e.sch); err != nil {
			return nil, err
		}
	}
	if len(queries) == 1 {
		return e.Resolve(ctx, queries[0])
	}
	var streams []*answer.Stream
	if e.opts.ParallelDisjuncts {
		streams, err = parallel.Map(ctx, len(queries), func(ctx context.Context, i int) (*answer.Stream, error) {
			return e.Resolve(ctx, queries[i])
		})
		if err != nil {
			return nil, err
		}
	} else {
		for _, q := range queries {
			s, err := e.Resolve(ctx, q)
			if err != nil {
				return nil, err
			}
			streams = append(streams, s)
		}
	}
	return answer.Concat(streams...).Distinct(), nil
}

// fixpoint resolves q in passes until a pass finds no new answers.
func (e *Engine) fixpoint(ctx context.Context, q *atom.Query) ([]answer.Answer, error) {
	for i := 1; ; i++ {
		p := newPass(e)
		start := e.changes.Load()
		res, err := p.conjunction(ctx, q, 0)
		if err != nil {
			return nil, err
		}
		if !p.recursive || e.changes.Load() == start {
			metrics.fixpointPasses.Observe(float64(i))
			p.markComplete()
			p.logDone(q, i, len(res))
			if e.opts.Materialize {
				if err := p.materialize(ctx); err != nil {
					return nil, err
				}
			}
			return res, nil
		}
		if i >= e.opts.MaxIterations {
			p.logLimit(q, i)
			return nil, fmt.Errorf("%w: no fixpoint for %v after %d passes", ErrIterationLimit, q, i)
		}
	}
}
