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

// Package memstore is an in-memory implementation of store.Store. It indexes
// concepts by type in a btree and answers queries with a backtracking matcher.
// It's meant for tests, tools and small knowledge bases.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/kg"
	"github.com/ebay/reasoner/schema"
	"github.com/ebay/reasoner/store"
	"github.com/ebay/reasoner/util/cmp"
	"github.com/google/btree"
	opentracing "github.com/opentracing/opentracing-go"
	log "github.com/sirupsen/logrus"
)

// DefaultChunkSize is the number of answers Execute sends per chunk.
const DefaultChunkSize = 64

// Store holds concepts in memory. It's safe for concurrent use.
type Store struct {
	sch       *schema.Schema
	chunkSize int

	lock      sync.RWMutex
	nextID    uint64
	instances map[uint64]*instance
	// Each item has type typeItem.
	byType *btree.BTree
	// attribute IDs keyed by attrKey
	attrs map[string]uint64
}

// instance is a stored concept and its edges.
type instance struct {
	concept kg.Concept
	// Only set for relations.
	players []store.RolePlayer
	// IDs of the attributes the concept owns.
	owned []uint64
	// Only set for attributes: IDs of the owners.
	owners []uint64
}

// typeItem values are stored in the byType btree, ordered by type label then
// ID.
type typeItem struct {
	typ string
	id  uint64
}

// Less is needed to order the btree.
func (item typeItem) Less(other btree.Item) bool {
	o := other.(typeItem)
	if item.typ != o.typ {
		return item.typ < o.typ
	}
	return item.id < o.id
}

// New returns an empty store for facts conforming to sch.
func New(sch *schema.Schema) *Store {
	return &Store{
		sch:       sch,
		chunkSize: DefaultChunkSize,
		nextID:    1,
		instances: make(map[uint64]*instance),
		byType:    btree.New(16),
		attrs:     make(map[string]uint64),
	}
}

// SetChunkSize changes the number of answers Execute sends per chunk.
func (s *Store) SetChunkSize(n int) {
	s.chunkSize = cmp.MaxInt(1, n)
}

// Schema implements store.Store.
func (s *Store) Schema() *schema.Schema {
	return s.sch
}

// Len returns the number of stored concepts.
func (s *Store) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.instances)
}

// Get returns the stored concept with the given ID.
func (s *Store) Get(id uint64) (kg.Concept, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	inst, ok := s.instances[id]
	if !ok {
		return kg.Concept{}, false
	}
	return inst.concept, true
}

// Count returns the number of stored instances of typ, including instances
// of its subtypes.
func (s *Store) Count(typ string) int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	n := 0
	for _, sub := range s.sch.Subs(typ) {
		s.ascendType(sub, func(*instance) bool {
			n++
			return true
		})
	}
	return n
}

// ascendType calls fn for each instance of exactly type typ, in ID order,
// until fn returns false. The caller must hold the lock.
func (s *Store) ascendType(typ string, fn func(*instance) bool) bool {
	cont := true
	s.byType.AscendGreaterOrEqual(typeItem{typ: typ}, func(item btree.Item) bool {
		ti := item.(typeItem)
		if ti.typ != typ {
			return false
		}
		cont = fn(s.instances[ti.id])
		return cont
	})
	return cont
}

func attrKey(typ string, value kg.Value) string {
	return schema.Normalize(typ) + "=" + cmp.GetKey(value)
}

// FindRelation implements store.Store.
func (s *Store) FindRelation(ctx context.Context, typ string, players []store.RolePlayer) (kg.Concept, bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	inst := s.findRelation(typ, players)
	if inst == nil {
		return kg.Concept{}, false, nil
	}
	return inst.concept, true, nil
}

func (s *Store) findRelation(typ string, players []store.RolePlayer) *instance {
	want := append([]store.RolePlayer(nil), players...)
	for i := range want {
		want[i].Role = schema.Normalize(want[i].Role)
	}
	store.SortRolePlayers(want)
	var found *instance
	s.ascendType(schema.Normalize(typ), func(inst *instance) bool {
		if len(inst.players) != len(want) {
			return true
		}
		for i := range want {
			if inst.players[i] != want[i] {
				return true
			}
		}
		found = inst
		return false
	})
	return found
}

// FindAttribute implements store.Store.
func (s *Store) FindAttribute(ctx context.Context, typ string, value kg.Value) (kg.Concept, bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	id, ok := s.attrs[attrKey(typ, value)]
	if !ok {
		return kg.Concept{}, false, nil
	}
	return s.instances[id].concept, true, nil
}

// Execute implements store.Store.
func (s *Store) Execute(ctx context.Context, q *atom.Query, resCh chan<- []answer.Answer) error {
	defer close(resCh)
	span, ctx := opentracing.StartSpanFromContext(ctx, "memstore execute")
	span.SetTag("query", q.String())
	defer span.Finish()
	if err := q.Check(s.sch); err != nil {
		return err
	}
	s.lock.RLock()
	found := s.match(q)
	s.lock.RUnlock()
	span.SetTag("answers", len(found))
	log.WithFields(log.Fields{
		"query":   q.String(),
		"answers": len(found),
	}).Debug("memstore executed query")

	for len(found) > 0 {
		n := cmp.MinInt(len(found), s.chunkSize)
		select {
		case resCh <- found[:n:n]:
		case <-ctx.Done():
			return ctx.Err()
		}
		found = found[n:]
	}
	return nil
}

// match returns the distinct answers to q, projected to its selected
// variables. The caller must hold the lock.
func (s *Store) match(q *atom.Query) []answer.Answer {
	atoms := append([]*atom.Atom(nil), q.Atoms()...)
	rank := func(a *atom.Atom) int {
		for _, v := range a.Vars() {
			if len(q.IDsOf(v)) > 0 {
				return 0
			}
		}
		switch a.Kind {
		case atom.KindRelation:
			return 1
		case atom.KindAttribute:
			return 2
		}
		return 3
	}
	sort.SliceStable(atoms, func(i, j int) bool { return rank(atoms[i]) < rank(atoms[j]) })
	m := matcher{
		s:       s,
		q:       q,
		atoms:   atoms,
		binding: make(map[atom.Variable]kg.Concept),
		results: new(answer.Set),
	}
	m.match(0)
	return m.results.Answers()
}

// matcher finds the bindings satisfying a query by backtracking over its
// atoms.
type matcher struct {
	s       *Store
	q       *atom.Query
	atoms   []*atom.Atom
	binding map[atom.Variable]kg.Concept
	results *answer.Set
}

// bind binds v to c. It returns ok=false if v is bound to something else or
// c doesn't meet the query's constraints on v. fresh is true if the caller
// must unbind v when backtracking.
func (m *matcher) bind(v atom.Variable, c kg.Concept) (ok, fresh bool) {
	if existing, bound := m.binding[v]; bound {
		return existing.ID == c.ID, false
	}
	if !m.q.Admits(m.s.sch, v, c) {
		return false, false
	}
	m.binding[v] = c
	return true, true
}

// try binds v to c and continues with next. It returns the result of next,
// or true if v can't be bound to c.
func (m *matcher) try(v atom.Variable, c kg.Concept, next func() bool) bool {
	ok, fresh := m.bind(v, c)
	if !ok {
		return true
	}
	cont := next()
	if fresh {
		delete(m.binding, v)
	}
	return cont
}

// match matches atoms[i:]. It returns false to stop the search.
func (m *matcher) match(i int) bool {
	if i == len(m.atoms) {
		m.results.Add(answer.New(m.binding).Project(m.q.Selected()))
		return true
	}
	a := m.atoms[i]
	next := func() bool { return m.match(i + 1) }
	switch a.Kind {
	case atom.KindIsa:
		if _, bound := m.binding[a.Var]; bound {
			// Admits checked the type when the variable was bound.
			return next()
		}
		return m.eachInstance(a.Type, func(inst *instance) bool {
			return m.try(a.Var, inst.concept, next)
		})
	case atom.KindRelation:
		typ := a.Type
		if typ == "" {
			typ = schema.Relation
		}
		return m.candidates(a.Var, typ, func(inst *instance) bool {
			if inst.players == nil {
				return true
			}
			return m.try(a.Var, inst.concept, func() bool {
				used := make([]bool, len(inst.players))
				return m.rolePlayers(a, inst, 0, used, next)
			})
		})
	case atom.KindAttribute:
		return m.owners(a, func(owner *instance) bool {
			return m.try(a.Var, owner.concept, func() bool {
				for _, id := range owner.owned {
					attr := m.s.instances[id]
					if !m.try(a.Value, attr.concept, next) {
						return false
					}
				}
				return true
			})
		})
	}
	panic(fmt.Sprintf("memstore: unexpected atom kind %v", a.Kind))
}

// candidates calls fn with the instance bound to v, or with every instance
// of typ or its subtypes if v is unbound.
func (m *matcher) candidates(v atom.Variable, typ string, fn func(*instance) bool) bool {
	if c, bound := m.binding[v]; bound {
		inst, ok := m.s.instances[c.ID]
		if !ok {
			return true
		}
		return fn(inst)
	}
	return m.eachInstance(typ, fn)
}

func (m *matcher) eachInstance(typ string, fn func(*instance) bool) bool {
	for _, sub := range m.s.sch.Subs(typ) {
		if !m.s.ascendType(sub, fn) {
			return false
		}
	}
	return true
}

// owners calls fn with each possible owner for an attribute atom.
func (m *matcher) owners(a *atom.Atom, fn func(*instance) bool) bool {
	if c, bound := m.binding[a.Var]; bound {
		if inst, ok := m.s.instances[c.ID]; ok {
			return fn(inst)
		}
		return true
	}
	if c, bound := m.binding[a.Value]; bound {
		if attr, ok := m.s.instances[c.ID]; ok {
			for _, id := range attr.owners {
				if !fn(m.s.instances[id]) {
					return false
				}
			}
		}
		return true
	}
	cont := true
	m.s.byType.Ascend(func(item btree.Item) bool {
		inst := m.s.instances[item.(typeItem).id]
		if len(inst.owned) > 0 {
			cont = fn(inst)
		}
		return cont
	})
	return cont
}

// rolePlayers assigns the atom's role players, from index j on, to distinct
// role players of the stored relation.
func (m *matcher) rolePlayers(a *atom.Atom, rel *instance, j int, used []bool, next func() bool) bool {
	if j == len(a.RolePlayers) {
		return next()
	}
	rp := a.RolePlayers[j]
	for k, stored := range rel.players {
		if used[k] {
			continue
		}
		if rp.Role != "" && !m.s.sch.IsSubtypeOf(stored.Role, rp.Role) {
			continue
		}
		player, ok := m.s.instances[stored.Player]
		if !ok {
			continue
		}
		used[k] = true
		cont := m.try(rp.Player, player.concept, func() bool {
			return m.rolePlayers(a, rel, j+1, used, next)
		})
		used[k] = false
		if !cont {
			return false
		}
	}
	return true
}
