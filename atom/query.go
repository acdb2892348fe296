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

package atom

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ebay/reasoner/kg"
	"github.com/ebay/reasoner/schema"
	"github.com/ebay/reasoner/util/cmp"
)

// Query is an immutable conjunction of atoms and predicates, with the
// variables an answer should report.
type Query struct {
	atoms    []*Atom
	ids      []IDPredicate
	values   []ValuePredicate
	vars     VarSet
	selected VarSet
}

// NewQuery returns a query over the given atoms and predicates. The atoms are
// copied. If no variables are selected, the query selects all its named
// variables (or every variable when all of them are anonymous).
//
// Every variable a predicate or the selection mentions must be bound by an
// atom; otherwise NewQuery returns an error wrapping ErrUnboundVariable.
func NewQuery(atoms []Atom, preds []Predicate, selected ...Variable) (*Query, error) {
	if len(atoms) == 0 {
		return nil, ErrEmptyQuery
	}
	q := &Query{atoms: make([]*Atom, 0, len(atoms))}
	seen := make(map[string]bool)
	var all []Variable
	for i := range atoms {
		a := atoms[i]
		if err := a.check(); err != nil {
			return nil, err
		}
		a.RolePlayers = append([]RolePlayer(nil), a.RolePlayers...)
		a.query = q
		key := cmp.GetKey(&a)
		if seen[key] {
			continue
		}
		seen[key] = true
		q.atoms = append(q.atoms, &a)
		all = append(all, a.Vars()...)
	}
	q.vars = NewVarSet(all...)
	for _, p := range preds {
		if !q.vars.Contains(p.Subject()) {
			return nil, fmt.Errorf("%w: %v in predicate %v", ErrUnboundVariable, p.Subject(), p)
		}
		key := cmp.GetKey(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		switch p := p.(type) {
		case IDPredicate:
			q.ids = append(q.ids, p)
		case ValuePredicate:
			q.values = append(q.values, p)
		default:
			panic(fmt.Sprintf("unexpected predicate type %T", p))
		}
	}
	sel, err := q.selection(selected)
	if err != nil {
		return nil, err
	}
	q.selected = sel
	return q, nil
}

// MustQuery is like NewQuery but panics on error. It's intended for tests.
func MustQuery(atoms []Atom, preds []Predicate, selected ...Variable) *Query {
	q, err := NewQuery(atoms, preds, selected...)
	if err != nil {
		panic(err)
	}
	return q
}

func (q *Query) selection(selected []Variable) (VarSet, error) {
	if len(selected) > 0 {
		sel := NewVarSet(selected...)
		for _, v := range sel {
			if !q.vars.Contains(v) {
				return nil, fmt.Errorf("%w: selected variable %v", ErrUnboundVariable, v)
			}
		}
		return sel, nil
	}
	var named VarSet
	for _, v := range q.vars {
		if !v.IsAnonymous() {
			named = append(named, v)
		}
	}
	if len(named) == 0 {
		return q.vars, nil
	}
	return named, nil
}

// Atoms returns the query's atoms. The caller must not modify them.
func (q *Query) Atoms() []*Atom {
	return q.atoms
}

// Predicates returns all of the query's predicates, id predicates first.
func (q *Query) Predicates() []Predicate {
	res := make([]Predicate, 0, len(q.ids)+len(q.values))
	for _, p := range q.ids {
		res = append(res, p)
	}
	for _, p := range q.values {
		res = append(res, p)
	}
	return res
}

// IDs returns the query's id predicates.
func (q *Query) IDs() []IDPredicate {
	return q.ids
}

// Values returns the query's value predicates.
func (q *Query) Values() []ValuePredicate {
	return q.values
}

// IDsOf returns the ids that variable v is constrained to, sorted.
func (q *Query) IDsOf(v Variable) []uint64 {
	var res []uint64
	for _, p := range q.ids {
		if p.Var == v {
			res = append(res, p.ID)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// ValuesOf returns the value predicates on variable v.
func (q *Query) ValuesOf(v Variable) []kg.Predicate {
	var res []kg.Predicate
	for _, p := range q.values {
		if p.Var == v {
			res = append(res, p.Predicate)
		}
	}
	return res
}

// Vars returns every variable bound by the query's atoms.
func (q *Query) Vars() VarSet {
	return q.vars
}

// Selected returns the variables that answers report.
func (q *Query) Selected() VarSet {
	return q.selected
}

// Select returns a copy of the query that reports the given variables.
func (q *Query) Select(vars ...Variable) (*Query, error) {
	sel, err := q.selection(vars)
	if err != nil {
		return nil, err
	}
	res := q.clone()
	res.selected = sel
	return res, nil
}

// With returns a copy of the query with additional predicates.
func (q *Query) With(preds ...Predicate) (*Query, error) {
	return NewQuery(q.atomValues(), append(q.Predicates(), preds...), q.selected...)
}

func (q *Query) clone() *Query {
	res, err := NewQuery(q.atomValues(), q.Predicates(), q.selected...)
	if err != nil {
		panic(fmt.Sprintf("cloning a valid query failed: %v", err))
	}
	return res
}

func (q *Query) atomValues() []Atom {
	res := make([]Atom, len(q.atoms))
	for i, a := range q.atoms {
		res[i] = *a
	}
	return res
}

// Selectable returns the atoms that can be resolved on their own; see
// Atom.Selectable.
func (q *Query) Selectable() []*Atom {
	var res []*Atom
	for _, a := range q.atoms {
		if a.Selectable() {
			res = append(res, a)
		}
	}
	return res
}

// IsAtomic returns true if the query has exactly one selectable atom.
func (q *Query) IsAtomic() bool {
	return len(q.Selectable()) == 1
}

// Atom returns the single selectable atom of an atomic query, or nil.
func (q *Query) Atom() *Atom {
	sel := q.Selectable()
	if len(sel) != 1 {
		return nil
	}
	return sel[0]
}

// Labels returns the type labels the query explicitly states for v, sorted.
// They come from isa atoms on v, the type of a relation bound to v, and the
// type of an attribute bound to v.
func (q *Query) Labels(v Variable) []string {
	var labels []string
	for _, a := range q.atoms {
		if a.Type == "" {
			continue
		}
		switch {
		case a.Kind != KindAttribute && a.Var == v,
			a.Kind == KindAttribute && a.Value == v:
			labels = append(labels, schema.Normalize(a.Type))
		}
	}
	sort.Strings(labels)
	out := labels[:0]
	for i, l := range labels {
		if i == 0 || l != labels[i-1] {
			out = append(out, l)
		}
	}
	return out
}

// IsDirect returns true if some isa! atom constrains v.
func (q *Query) IsDirect(v Variable) bool {
	for _, a := range q.atoms {
		if a.Kind == KindIsa && a.Direct && a.Var == v {
			return true
		}
	}
	return false
}

// VarTypes returns the most specific type known for each variable, computed
// by intersecting the labels the query states for it. Variables without any
// known type are omitted. It returns an error wrapping ErrDisjointTypes if a
// variable is constrained to two disjoint types.
func (q *Query) VarTypes(sch *schema.Schema) (map[Variable]string, error) {
	res := make(map[Variable]string, len(q.vars))
	for _, v := range q.vars {
		labels := q.Labels(v)
		lowest, ok := sch.Lowest(labels...)
		if !ok {
			return nil, fmt.Errorf("%w: %v is constrained to %v", ErrDisjointTypes, v, labels)
		}
		if lowest != "" {
			res[v] = lowest
		}
	}
	return res, nil
}

// Admits returns true if c meets the type, id and value constraints q places
// on v. A concept without a type passes the type checks.
func (q *Query) Admits(sch *schema.Schema, v Variable, c kg.Concept) bool {
	if c.Type != "" {
		for _, label := range q.Labels(v) {
			if !sch.IsSubtypeOf(c.Type, label) {
				return false
			}
		}
		for _, a := range q.atoms {
			if a.Kind == KindIsa && a.Direct && a.Var == v &&
				schema.Normalize(a.Type) != schema.Normalize(c.Type) {
				return false
			}
		}
	}
	ids := q.IDsOf(v)
	if len(ids) > 0 {
		i := sort.Search(len(ids), func(i int) bool { return ids[i] >= c.ID })
		if i == len(ids) || ids[i] != c.ID {
			return false
		}
	}
	for _, p := range q.ValuesOf(v) {
		if !p.Test(c.Value) {
			return false
		}
	}
	return true
}

// Check returns an error if the query refers to labels the schema doesn't
// define, uses a label as the wrong kind of concept, or constrains a variable
// to disjoint types.
func (q *Query) Check(sch *schema.Schema) error {
	expect := func(label string, ok func(schema.Kind) bool, what string) error {
		c, found := sch.Get(label)
		if !found {
			return fmt.Errorf("%w: %q", ErrUnknownLabel, label)
		}
		if !ok(c.Kind) {
			return fmt.Errorf("%w: %q is a %v, not %s", ErrUnknownLabel, label, c.Kind, what)
		}
		return nil
	}
	isType := func(k schema.Kind) bool { return k.IsType() }
	is := func(want schema.Kind) func(schema.Kind) bool {
		return func(k schema.Kind) bool { return k == want }
	}
	for _, a := range q.atoms {
		var err error
		switch a.Kind {
		case KindIsa:
			err = expect(a.Type, isType, "a type")
		case KindRelation:
			if a.Type != "" {
				err = expect(a.Type, is(schema.KindRelationType), "a relation type")
			}
			for _, rp := range a.RolePlayers {
				if err == nil && rp.Role != "" {
					err = expect(rp.Role, is(schema.KindRole), "a role")
				}
			}
		case KindAttribute:
			err = expect(a.Type, is(schema.KindAttributeType), "an attribute type")
		}
		if err != nil {
			return err
		}
	}
	_, err := q.VarTypes(sch)
	return err
}

// Atomise splits the query into atomic queries, one per selectable atom. Each
// part carries the isa atoms on its variables as context, along with the
// predicates on its variables. An isa atom for which split returns true is
// not used as context; it becomes a part of its own instead. The parts select
// all of their variables.
func (q *Query) Atomise(split func(isa *Atom) bool) []*Query {
	var parts []*Query
	seen := make(map[string]bool)
	add := func(atoms []Atom) {
		var vars VarSet
		for i := range atoms {
			vars = vars.Union(atoms[i].Vars())
		}
		var preds []Predicate
		for _, p := range q.Predicates() {
			if vars.Contains(p.Subject()) {
				preds = append(preds, p)
			}
		}
		part, err := NewQuery(atoms, preds, vars...)
		if err != nil {
			panic(fmt.Sprintf("atomising a valid query failed: %v", err))
		}
		key := cmp.GetKey(part)
		if !seen[key] {
			seen[key] = true
			parts = append(parts, part)
		}
	}
	for _, a := range q.Selectable() {
		atoms := []Atom{*a}
		if a.Kind != KindIsa {
			vars := a.Vars()
			for _, c := range q.atoms {
				if c.Kind != KindIsa || !vars.Contains(c.Var) {
					continue
				}
				if split != nil && split(c) {
					add([]Atom{*c})
				} else {
					atoms = append(atoms, *c)
				}
			}
		}
		add(atoms)
	}
	return parts
}

// Key implements cmp.Key. Atoms and predicates are written in sorted order.
func (q *Query) Key(b *strings.Builder) {
	keys := make([]string, 0, len(q.atoms)+len(q.ids)+len(q.values))
	for _, a := range q.atoms {
		keys = append(keys, cmp.GetKey(a))
	}
	for _, p := range q.Predicates() {
		keys = append(keys, cmp.GetKey(p))
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString("; ")
	}
	b.WriteString("select ")
	q.selected.Key(b)
}

// String returns the query in pattern text syntax.
func (q *Query) String() string {
	var b strings.Builder
	for i, a := range q.atoms {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(a.String())
		b.WriteByte(';')
	}
	for _, p := range q.Predicates() {
		b.WriteByte(' ')
		b.WriteString(p.String())
		b.WriteByte(';')
	}
	return b.String()
}
