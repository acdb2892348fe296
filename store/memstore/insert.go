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

package memstore

import (
	"context"
	"fmt"

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/kg"
	"github.com/ebay/reasoner/schema"
	"github.com/ebay/reasoner/store"
	log "github.com/sirupsen/logrus"
)

// InsertPattern stores the facts a conjunctive pattern states, creating a
// concept for each of its variables, and returns the new concepts. For
// example:
//
//	$x isa lion; $x has name $n; $n = "Alex";
//	$y isa lion; (parent: $x, child: $y) isa parentship;
//
// Attributes with the same type and value are stored only once.
func (s *Store) InsertPattern(p atom.Pattern) (answer.Answer, error) {
	q, err := p.Query(p.Vars()...)
	if err != nil {
		return answer.Answer{}, fmt.Errorf("%w: %v", store.ErrInsert, err)
	}
	return s.Insert(context.Background(), q, answer.Answer{})
}

// Insert implements store.Store.
func (s *Store) Insert(ctx context.Context, q *atom.Query, bindings answer.Answer) (answer.Answer, error) {
	if err := q.Check(s.sch); err != nil {
		return answer.Answer{}, fmt.Errorf("%w: %v", store.ErrInsert, err)
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	ins := inserter{s: s, q: q, res: bindings.Bindings()}
	if err := ins.run(); err != nil {
		return answer.Answer{}, fmt.Errorf("%w: %v", store.ErrInsert, err)
	}
	log.WithFields(log.Fields{
		"query":   q.String(),
		"created": ins.created,
	}).Debug("memstore inserted facts")
	return answer.New(ins.res), nil
}

// inserter stores the facts of one query. Errors can leave some facts
// stored.
type inserter struct {
	s       *Store
	q       *atom.Query
	res     map[atom.Variable]kg.Concept
	types   map[atom.Variable]string
	created int
}

func (ins *inserter) run() error {
	types, err := ins.q.VarTypes(ins.s.sch)
	if err != nil {
		return err
	}
	ins.types = types
	// Relations come last: their role players need IDs first.
	var relations []*atom.Atom
	isRelationVar := make(map[atom.Variable]*atom.Atom)
	for _, a := range ins.q.Atoms() {
		if a.Kind == atom.KindRelation {
			relations = append(relations, a)
			isRelationVar[a.Var] = a
		}
	}
	for _, v := range ins.q.Vars() {
		if isRelationVar[v] != nil {
			continue
		}
		if err := ins.concept(v); err != nil {
			return err
		}
	}
	for len(relations) > 0 {
		var waiting []*atom.Atom
		for _, a := range relations {
			if !ins.playersBound(a) {
				waiting = append(waiting, a)
				continue
			}
			if err := ins.relation(a); err != nil {
				return err
			}
		}
		if len(waiting) == len(relations) {
			return fmt.Errorf("relations %v have role players that are never bound", waiting)
		}
		relations = waiting
	}
	for _, a := range ins.q.Atoms() {
		if a.Kind == atom.KindAttribute {
			ins.s.own(ins.res[a.Var].ID, ins.res[a.Value].ID)
		}
	}
	return nil
}

func (ins *inserter) playersBound(a *atom.Atom) bool {
	for _, rp := range a.RolePlayers {
		if _, ok := ins.res[rp.Player]; !ok {
			return false
		}
	}
	return true
}

// concept stores the entity or attribute bound to v, or reuses a stored one.
func (ins *inserter) concept(v atom.Variable) error {
	s := ins.s
	typ := ins.types[v]
	if c, bound := ins.res[v]; bound {
		if inst, stored := s.instances[c.ID]; stored {
			return s.retype(inst, typ)
		}
		if c.Type == "" {
			c.Type = typ
		}
		if c.Type == "" {
			return fmt.Errorf("no type known for %v", v)
		}
		if s.sch.DataType(c.Type) != kg.KindNone || !c.Value.IsZero() {
			if id, exists := s.attrs[attrKey(c.Type, c.Value)]; exists {
				ins.res[v] = s.instances[id].concept
				return nil
			}
		}
		c.Inferred = false
		ins.res[v] = s.add(c, nil)
		ins.created++
		return nil
	}
	if typ == "" {
		return fmt.Errorf("no type known for %v", v)
	}
	concept, _ := s.sch.Get(typ)
	switch concept.Kind {
	case schema.KindEntityType:
		ins.res[v] = s.add(kg.Concept{ID: s.allocate(), Type: concept.Label}, nil)
		ins.created++
		return nil
	case schema.KindAttributeType:
		preds := ins.q.ValuesOf(v)
		if len(preds) != 1 || preds[0].Op != kg.OpEqual {
			return fmt.Errorf("attribute %v needs exactly one value, got %v", v, preds)
		}
		value := preds[0].Value
		if !fits(concept.DataType, value.Kind()) {
			return fmt.Errorf("attribute %v of type %q can't hold %v value %v",
				v, concept.Label, value.Kind(), value)
		}
		if concept.DataType == kg.KindDouble && value.Kind() == kg.KindLong {
			value = kg.ADouble(value.ValDouble())
		}
		if id, exists := s.attrs[attrKey(concept.Label, value)]; exists {
			ins.res[v] = s.instances[id].concept
			return nil
		}
		ins.res[v] = s.add(kg.Concept{ID: s.allocate(), Type: concept.Label, Value: value}, nil)
		ins.created++
		return nil
	}
	return fmt.Errorf("can't store %v as an instance of %v", v, concept)
}

func fits(dt, k kg.Kind) bool {
	return dt == k || (dt == kg.KindDouble && k == kg.KindLong)
}

// relation stores the relation a states, or reuses a stored one.
func (ins *inserter) relation(a *atom.Atom) error {
	s := ins.s
	typ := ins.types[a.Var]
	if typ == "" {
		return fmt.Errorf("relation %v has no type", a.Var)
	}
	players := make([]store.RolePlayer, len(a.RolePlayers))
	for i, rp := range a.RolePlayers {
		if rp.Role == "" || schema.Normalize(rp.Role) == schema.Role {
			return fmt.Errorf("relation %v: role player %v needs a specific role", a.Var, rp.Player)
		}
		if !s.sch.Relates(typ, rp.Role) {
			return fmt.Errorf("relation %v: %q doesn't relate role %q", a.Var, typ, rp.Role)
		}
		players[i] = store.RolePlayer{Role: schema.Normalize(rp.Role), Player: ins.res[rp.Player].ID}
	}
	store.SortRolePlayers(players)

	c, bound := ins.res[a.Var]
	if bound {
		if inst, stored := s.instances[c.ID]; stored {
			return s.retype(inst, typ)
		}
	}
	if existing := s.findRelation(typ, players); existing != nil {
		ins.res[a.Var] = existing.concept
		return nil
	}
	if !bound {
		c = kg.Concept{ID: s.allocate()}
	}
	c.Type = typ
	c.Inferred = false
	ins.res[a.Var] = s.add(c, players)
	ins.created++
	return nil
}

func (s *Store) allocate() uint64 {
	id := s.nextID
	s.nextID++
	return id
}

// add stores a new concept and returns it.
func (s *Store) add(c kg.Concept, players []store.RolePlayer) kg.Concept {
	c.Type = schema.Normalize(c.Type)
	inst := &instance{concept: c, players: players}
	s.instances[c.ID] = inst
	s.byType.ReplaceOrInsert(typeItem{typ: c.Type, id: c.ID})
	if !c.Value.IsZero() {
		s.attrs[attrKey(c.Type, c.Value)] = c.ID
	}
	return c
}

// retype narrows the type of a stored concept to typ, a subtype of its
// current type, as concluded by an isa rule.
func (s *Store) retype(inst *instance, typ string) error {
	if typ == "" || s.sch.IsSubtypeOf(inst.concept.Type, typ) {
		return nil
	}
	if !s.sch.IsSubtypeOf(typ, inst.concept.Type) {
		return fmt.Errorf("%v is a %q and can't also be a %q", inst.concept, inst.concept.Type, typ)
	}
	s.byType.Delete(typeItem{typ: inst.concept.Type, id: inst.concept.ID})
	inst.concept.Type = schema.Normalize(typ)
	s.byType.ReplaceOrInsert(typeItem{typ: inst.concept.Type, id: inst.concept.ID})
	return nil
}

// own records that owner owns attr.
func (s *Store) own(owner, attr uint64) {
	o := s.instances[owner]
	for _, id := range o.owned {
		if id == attr {
			return
		}
	}
	o.owned = append(o.owned, attr)
	a := s.instances[attr]
	a.owners = append(a.owners, owner)
}
