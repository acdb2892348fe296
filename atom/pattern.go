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
	"strings"
)

// Pattern is a conjunction of atoms and predicates, further constrained by
// disjunctions. It's the form patterns take before being split into queries.
type Pattern struct {
	Atoms      []Atom
	Predicates []Predicate
	// Each disjunction must be satisfied by at least one of its alternatives.
	Or []Disjunction
}

// Disjunction lists alternative patterns.
type Disjunction []Pattern

// IsConjunctive returns true if the pattern contains no disjunctions.
func (p Pattern) IsConjunctive() bool {
	return len(p.Or) == 0
}

// DNF rewrites the pattern in disjunctive normal form: the returned patterns
// are conjunctive, and an answer satisfies p exactly when it satisfies one of
// them.
func (p Pattern) DNF() []Pattern {
	res := []Pattern{{
		Atoms:      append([]Atom(nil), p.Atoms...),
		Predicates: append([]Predicate(nil), p.Predicates...),
	}}
	for _, disj := range p.Or {
		var next []Pattern
		for _, conj := range res {
			for _, alt := range disj {
				for _, altConj := range alt.DNF() {
					next = append(next, Pattern{
						Atoms:      append(append([]Atom(nil), conj.Atoms...), altConj.Atoms...),
						Predicates: append(append([]Predicate(nil), conj.Predicates...), altConj.Predicates...),
					})
				}
			}
		}
		res = next
	}
	return res
}

// Vars returns every variable the pattern's atoms bind, including those in
// disjunctions.
func (p Pattern) Vars() VarSet {
	var vars VarSet
	for i := range p.Atoms {
		vars = vars.Union(p.Atoms[i].Vars())
	}
	for _, disj := range p.Or {
		for _, alt := range disj {
			vars = vars.Union(alt.Vars())
		}
	}
	return vars
}

// Query converts a conjunctive pattern to a query. It returns an error
// wrapping ErrDisjunctive if the pattern has disjunctions.
func (p Pattern) Query(selected ...Variable) (*Query, error) {
	if !p.IsConjunctive() {
		return nil, fmt.Errorf("%w: %v", ErrDisjunctive, p)
	}
	return NewQuery(p.Atoms, p.Predicates, selected...)
}

// Queries converts the pattern to one query per conjunction of its DNF. Each
// query selects those of the selected variables it binds.
func (p Pattern) Queries(selected ...Variable) ([]*Query, error) {
	want := NewVarSet(selected...)
	conjs := p.DNF()
	res := make([]*Query, 0, len(conjs))
	for _, conj := range conjs {
		sel := want
		if len(want) > 0 {
			sel = conj.Vars().Intersect(want)
			if len(sel) == 0 {
				return nil, fmt.Errorf("%w: none of %v occur in %v", ErrUnboundVariable, want, conj)
			}
		}
		q, err := conj.Query(sel...)
		if err != nil {
			return nil, err
		}
		res = append(res, q)
	}
	return res, nil
}

// String returns the pattern in pattern text syntax.
func (p Pattern) String() string {
	var b strings.Builder
	write := func(s string) {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s)
	}
	for i := range p.Atoms {
		write(p.Atoms[i].String() + ";")
	}
	for _, pred := range p.Predicates {
		write(pred.String() + ";")
	}
	for _, disj := range p.Or {
		alts := make([]string, len(disj))
		for i, alt := range disj {
			alts[i] = "{ " + alt.String() + " }"
		}
		write(strings.Join(alts, " or ") + ";")
	}
	return b.String()
}
