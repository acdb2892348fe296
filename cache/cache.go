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

// Package cache stores the answers found for queries so that equivalent
// queries aren't answered twice.
//
// An Exact cache shares entries between alpha-equivalent queries: queries
// equal up to variable names. A Structural cache shares entries between
// queries that have the same shape but may mention different ids or values;
// within an entry, answers are kept separately for each set of constants.
// Either way, finding the entry for a query takes one unification against
// the few entries whose hash matches.
package cache

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/schema"
	"github.com/ebay/reasoner/unify"
	"github.com/ebay/reasoner/util/cmp"
)

// Cache maps queries to their answers. It's safe for concurrent use.
type Cache struct {
	typ unify.Type
	sch *schema.Schema

	lock    sync.RWMutex
	buckets map[uint64][]*entry
	entries int
}

// entry holds the answers for one equivalence class of queries. Answers are
// kept in the variables of the canonical query, the first query recorded.
type entry struct {
	query *atom.Query
	// Keyed by the constants of the query the answers are for; see
	// bindingKey. Exact caches only use the empty key.
	bindings map[string]*answers
}

type answers struct {
	set      *answer.Set
	complete bool
}

// New returns an empty cache comparing queries with typ, which must be
// unify.Exact or unify.Structural.
func New(typ unify.Type, sch *schema.Schema) *Cache {
	switch typ {
	case unify.Exact, unify.Structural:
	case unify.Rule, unify.Subsumptive:
		panic(fmt.Sprintf("cache: %v isn't an equivalence", typ))
	default:
		panic(fmt.Sprintf("cache: unexpected unifier type %v", typ))
	}
	return &Cache{
		typ:     typ,
		sch:     sch,
		buckets: make(map[uint64][]*entry),
	}
}

// Type returns the strategy the cache compares queries with.
func (c *Cache) Type() unify.Type {
	return c.typ
}

// match is a query's place in the cache.
type match struct {
	entry *entry
	// from q's variables to the entry's
	unifier unify.Unifier
	key     string
}

// toEntry translates an answer for q into the entry's variables.
func (m *match) toEntry(a answer.Answer) (answer.Answer, bool) {
	return m.unifier.Invert().Apply(a)
}

// fromEntry translates an answer in the entry's variables into q's.
func (m *match) fromEntry(a answer.Answer) (answer.Answer, bool) {
	return m.unifier.Apply(a)
}

// find returns the entry for q, or nil. The caller must hold the lock.
func (c *Cache) find(q *atom.Query) *match {
	for _, e := range c.buckets[unify.Hash(q, c.typ)] {
		for _, u := range unify.Queries(q, e.query, c.typ, c.sch) {
			if sameSelection(u, q, e.query) {
				return &match{entry: e, unifier: u, key: c.bindingKey(q, u)}
			}
		}
	}
	return nil
}

// sameSelection returns true if u maps q's selected variables onto exactly
// the selected variables of the entry's query.
func sameSelection(u unify.Unifier, q, canonical *atom.Query) bool {
	var mapped atom.VarSet
	for _, v := range q.Selected() {
		mapped = mapped.Union(u[v])
	}
	return mapped.Equal(canonical.Selected())
}

// bindingKey describes the constants q places on its variables, and which of
// them are constrained by isa!, in the order of the entry variables they map
// to. It's empty for Exact caches, whose equivalent queries always agree on
// both.
func (c *Cache) bindingKey(q *atom.Query, u unify.Unifier) string {
	if c.typ == unify.Exact {
		return ""
	}
	var b strings.Builder
	inv := u.Invert()
	parents := u.ParentVars()
	for _, pv := range parents {
		for _, cv := range inv[pv] {
			ids := q.IDsOf(cv)
			vals := q.ValuesOf(cv)
			direct := q.IsDirect(cv)
			if len(ids) == 0 && len(vals) == 0 && !direct {
				continue
			}
			pv.Key(&b)
			if direct {
				b.WriteString(" !")
			}
			for _, id := range ids {
				fmt.Fprintf(&b, " id %d", id)
			}
			keys := make([]string, len(vals))
			for i, p := range vals {
				keys[i] = cmp.GetKey(p)
			}
			sort.Strings(keys)
			for _, k := range keys {
				b.WriteByte(' ')
				b.WriteString(k)
			}
			b.WriteString("; ")
		}
	}
	return b.String()
}

// insert returns the entry for q, creating it if needed. The caller must
// hold the write lock.
func (c *Cache) insert(q *atom.Query) *match {
	if m := c.find(q); m != nil {
		return m
	}
	e := &entry{query: q, bindings: make(map[string]*answers)}
	h := unify.Hash(q, c.typ)
	c.buckets[h] = append(c.buckets[h], e)
	c.entries++
	identity := make(unify.Unifier, len(q.Vars()))
	for _, v := range q.Vars() {
		identity[v] = atom.VarSet{v}
	}
	return &match{entry: e, unifier: identity, key: c.bindingKey(q, identity)}
}

func (m *match) answers(create bool) *answers {
	as := m.entry.bindings[m.key]
	if as == nil && create {
		as = &answers{set: new(answer.Set)}
		m.entry.bindings[m.key] = as
	}
	return as
}

// Record merges the given answers for q into the cache. It returns every
// answer now cached for q, in q's variables, and the number of answers that
// were new. Recording the same answers again changes nothing.
func (c *Cache) Record(q *atom.Query, found []answer.Answer) ([]answer.Answer, int) {
	c.lock.Lock()
	defer c.lock.Unlock()
	m := c.insert(q)
	as := m.answers(true)
	added := 0
	for _, a := range found {
		if ea, ok := m.toEntry(a); ok && as.set.Add(ea) {
			added++
		}
	}
	metrics.recordedAnswers.WithLabelValues(c.typ.String()).Add(float64(added))
	return translate(m, as.set.Answers()), added
}

func translate(m *match, cached []answer.Answer) []answer.Answer {
	res := make([]answer.Answer, 0, len(cached))
	for _, a := range cached {
		if qa, ok := m.fromEntry(a); ok {
			res = append(res, qa)
		}
	}
	return res
}

// Retrieve returns the answers cached for q, in q's variables. The stream
// reflects the cache at the time of the call and may be read any number of
// times. It returns an empty stream and false if nothing is cached for q.
func (c *Cache) Retrieve(q *atom.Query) (*answer.Stream, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	m := c.find(q)
	var as *answers
	if m != nil {
		as = m.answers(false)
	}
	if as == nil {
		metrics.lookups.WithLabelValues(c.typ.String(), "miss").Inc()
		return answer.Empty(), false
	}
	metrics.lookups.WithLabelValues(c.typ.String(), "hit").Inc()
	// Sets only append, so this prefix never changes.
	snapshot := as.set.Answers()
	return answer.FromSlice(snapshot).Map(m.fromEntry), true
}

// RetrieveSubsumed answers q from a complete entry for a more general query.
// The general query must have the same relation and attribute atoms as q;
// q may add isa atoms and predicates, which are applied to the general
// answers as filters. It returns false if there's no such entry.
func (c *Cache) RetrieveSubsumed(q *atom.Query) (*answer.Stream, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	want := nonIsa(q)
	for _, bucket := range c.buckets {
		for _, e := range bucket {
			if nonIsa(e.query) != want {
				continue
			}
			as := e.bindings[""]
			if as == nil || !as.complete {
				continue
			}
			for _, u := range unify.Queries(q, e.query, unify.Subsumptive, c.sch) {
				if !u.ChildVars().ContainsSet(q.Vars()) {
					continue
				}
				m := &match{entry: e, unifier: u}
				snapshot := as.set.Answers()
				metrics.lookups.WithLabelValues(c.typ.String(), "subsumed").Inc()
				return answer.FromSlice(snapshot).Map(m.fromEntry).Filter(c.satisfies(q)), true
			}
		}
	}
	return answer.Empty(), false
}

func nonIsa(q *atom.Query) int {
	n := 0
	for _, a := range q.Atoms() {
		if a.Kind != atom.KindIsa {
			n++
		}
	}
	return n
}

// satisfies returns a filter for answers that meet q's type, id and value
// constraints.
func (c *Cache) satisfies(q *atom.Query) func(answer.Answer) bool {
	return func(a answer.Answer) bool {
		for _, v := range q.Vars() {
			concept, ok := a.Get(v)
			if !ok {
				continue
			}
			if !q.Admits(c.sch, v, concept) {
				return false
			}
		}
		return true
	}
}

// MarkComplete records that the answers cached for q are all of q's
// answers. It returns false if nothing is cached for q.
func (c *Cache) MarkComplete(q *atom.Query) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	m := c.find(q)
	if m == nil {
		return false
	}
	as := m.answers(false)
	if as == nil {
		return false
	}
	as.complete = true
	return true
}

// Complete returns true if the answers cached for q have been marked
// complete.
func (c *Cache) Complete(q *atom.Query) bool {
	c.lock.RLock()
	defer c.lock.RUnlock()
	m := c.find(q)
	if m == nil {
		return false
	}
	as := m.answers(false)
	return as != nil && as.complete
}

// Len returns the number of entries: equivalence classes of queries.
func (c *Cache) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.entries
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.buckets = make(map[uint64][]*entry)
	c.entries = 0
}
