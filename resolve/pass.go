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
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/cache"
	"github.com/ebay/reasoner/rules"
	"github.com/ebay/reasoner/store"
	"github.com/ebay/reasoner/unify"
	opentracing "github.com/opentracing/opentracing-go"
	log "github.com/sirupsen/logrus"
)

// pass is one top-down resolution of a query. It's not safe for concurrent
// use.
type pass struct {
	e *Engine
	// Atomic queries being resolved, innermost last.
	stack []*atom.Query
	// Answers of the atomic queries finished during this pass.
	done *cache.Cache
	// Every atomic query finished during this pass, in order.
	resolved []*atom.Query
	// Set when some query was given partial answers because it was already
	// being resolved.
	recursive bool
	// Conclusions to store if materializing, keyed to skip duplicates.
	inferred     []inference
	inferredKeys map[string]bool
}

// inference is a rule head instantiated by a body answer.
type inference struct {
	rule *rules.Rule
	head answer.Answer
}

func newPass(e *Engine) *pass {
	return &pass{
		e:            e,
		done:         cache.New(unify.Exact, e.sch),
		inferredKeys: make(map[string]bool),
	}
}

// conjunction resolves q by resolving its atomic parts and joining their
// answers. The result is projected to q's selected variables.
func (p *pass) conjunction(ctx context.Context, q *atom.Query, depth int) ([]answer.Answer, error) {
	parts := q.Atomise(p.e.resolvable)
	sort.SliceStable(parts, func(i, j int) bool {
		return len(parts[i].IDs()) > len(parts[j].IDs())
	})
	res := []answer.Answer{answer.New(nil)}
	var bound atom.VarSet
	for _, part := range parts {
		found, err := p.atomic(ctx, part, depth)
		if err != nil {
			return nil, err
		}
		res = join(res, bound, found, part.Vars())
		if len(res) == 0 {
			return nil, nil
		}
		bound = bound.Union(part.Vars())
	}
	distinct := new(answer.Set)
	for _, a := range res {
		a.Explanation = explainJoin(partsOf(a))
		distinct.Add(a.Project(q.Selected()))
	}
	return distinct.Answers(), nil
}

// resolvable reports whether rules can conclude facts matching an isa atom.
// Such atoms are resolved on their own, rather than as type constraints on
// other atoms.
func (e *Engine) resolvable(isa *atom.Atom) bool {
	return len(e.rules.RulesFor(isa)) > 0
}

// join returns the answers combining one answer from left with one from
// right that agree on their shared variables.
func join(left []answer.Answer, leftVars atom.VarSet, right []answer.Answer, rightVars atom.VarSet) []answer.Answer {
	shared := leftVars.Intersect(rightVars)
	key := func(a answer.Answer) string {
		var b strings.Builder
		a.KeyOf(&b, shared)
		return b.String()
	}
	index := make(map[string][]answer.Answer, len(right))
	for _, r := range right {
		k := key(r)
		index[k] = append(index[k], r)
	}
	var res []answer.Answer
	for _, l := range left {
		lparts := partsOf(l)
		for _, r := range index[key(l)] {
			if joined, ok := l.Join(r); ok {
				parts := make([]answer.Answer, len(lparts), len(lparts)+1)
				copy(parts, lparts)
				res = append(res, joined.JoinedFrom(append(parts, r)))
			}
		}
	}
	return res
}

// partsOf returns the answers to atomic queries that join combined into a.
func partsOf(a answer.Answer) []answer.Answer {
	if a.Explanation == nil {
		return nil
	}
	return a.Explanation.Answers
}

// explainJoin returns the explanation of an answer to a conjunction joined
// from parts. An answer with a single part is explained the way that part
// is, and one built only from stored facts has no explanation.
func explainJoin(parts []answer.Answer) *answer.Explanation {
	if len(parts) == 1 {
		return parts[0].Explanation
	}
	for _, part := range parts {
		if part.Explanation != nil {
			return &answer.Explanation{Answers: parts}
		}
	}
	return nil
}

// atomic returns the answers to an atomic query, which selects all of its
// variables.
func (p *pass) atomic(ctx context.Context, q *atom.Query, depth int) ([]answer.Answer, error) {
	e := p.e
	if e.structural.Complete(q) {
		if s, ok := e.structural.Retrieve(q); ok {
			return s.Collect(), nil
		}
	}
	if e.exact.Complete(q) {
		s, _ := e.exact.Retrieve(q)
		return s.Collect(), nil
	}
	// Cached concepts carry their stored type, which understates the types
	// rules infer, so filtering them by an inferred type would lose answers.
	if a := q.Atom(); a.Kind != atom.KindIsa || !e.resolvable(a) {
		if s, ok := e.exact.RetrieveSubsumed(q); ok {
			return s.Collect(), nil
		}
	}
	if s, ok := p.done.Retrieve(q); ok {
		return s.Collect(), nil
	}
	for _, active := range p.stack {
		if unify.Equivalent(q, active, unify.Exact, e.sch) {
			p.recursive = true
			s, _ := e.exact.Retrieve(q)
			return s.Collect(), nil
		}
	}
	if depth > e.opts.MaxDepth {
		metrics.recursionLimitTotal.Inc()
		log.WithFields(log.Fields{
			"query":    q.String(),
			"maxDepth": e.opts.MaxDepth,
		}).Warn("Rule recursion limit reached")
		return nil, fmt.Errorf("%w: %v is %d rule applications deep", ErrRecursionLimit, q, depth)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	span, ctx := opentracing.StartSpanFromContext(ctx, "resolve atomic")
	span.SetTag("query", q.String())
	span.SetTag("depth", depth)
	defer span.Finish()
	p.stack = append(p.stack, q)
	defer func() { p.stack = p.stack[:len(p.stack)-1] }()

	found, err := store.ExecuteAll(ctx, e.store, q)
	if err != nil {
		return nil, err
	}
	direct := len(found)
	a := q.Atom()
	for _, r := range e.rules.RulesFor(a) {
		for _, u := range unify.Atoms(a, r.Head(), unify.Rule, e.sch) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			derived, err := p.apply(ctx, q, r, u, depth)
			if err != nil {
				return nil, err
			}
			found = append(found, derived...)
		}
	}
	all, added := e.exact.Record(q, found)
	e.changes.Add(int64(added))
	p.done.Record(q, all)
	p.resolved = append(p.resolved, q)
	span.SetTag("answers", len(all))
	log.WithFields(log.Fields{
		"query":    q.String(),
		"depth":    depth,
		"direct":   direct,
		"inferred": len(found) - direct,
		"new":      added,
	}).Debug("Resolved atomic query")
	return all, nil
}

// markComplete records that every query resolved in this pass has all of its
// answers cached.
func (p *pass) markComplete() {
	for _, q := range p.resolved {
		p.e.exact.MarkComplete(q)
		s, _ := p.e.exact.Retrieve(q)
		p.e.structural.Record(q, s.Collect())
		p.e.structural.MarkComplete(q)
	}
}

func (p *pass) logDone(q *atom.Query, passes, answers int) {
	log.WithFields(log.Fields{
		"query":   q.String(),
		"passes":  passes,
		"atomic":  len(p.resolved),
		"answers": answers,
	}).Debug("Resolved query")
}

func (p *pass) logLimit(q *atom.Query, passes int) {
	log.WithFields(log.Fields{
		"query":         q.String(),
		"passes":        passes,
		"maxIterations": p.e.opts.MaxIterations,
	}).Warn("Rule iteration limit reached")
}
