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

// Package unify computes unifiers between atoms and between queries, under
// one of four comparison strategies. A unifier says which variables of one
// pattern (the child) correspond to which variables of another (the parent),
// and is used to translate answers between the two.
package unify

import (
	"sort"
	"strings"

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/kg"
	"github.com/ebay/reasoner/util/cmp"
)

// Unifier maps each child variable to the set of parent variables it
// corresponds to. A child variable mapped to several parent variables
// requires those parent variables to be bound to the same concept.
type Unifier map[atom.Variable]atom.VarSet

func (u Unifier) add(child, parent atom.Variable) {
	u[child] = u[child].Union(atom.VarSet{parent})
}

func (u Unifier) clone() Unifier {
	res := make(Unifier, len(u))
	for c, ps := range u {
		res[c] = ps
	}
	return res
}

// Merge returns a new unifier holding the mappings of both u and other.
func (u Unifier) Merge(other Unifier) Unifier {
	res := u.clone()
	for c, ps := range other {
		res[c] = res[c].Union(ps)
	}
	return res
}

// Invert returns the unifier in the other direction: parent variables to the
// child variables mapped to them.
func (u Unifier) Invert() Unifier {
	res := make(Unifier, len(u))
	for c, ps := range u {
		for _, p := range ps {
			res.add(p, c)
		}
	}
	return res
}

// ChildVars returns the child variables the unifier maps.
func (u Unifier) ChildVars() atom.VarSet {
	vars := make([]atom.Variable, 0, len(u))
	for c := range u {
		vars = append(vars, c)
	}
	return atom.NewVarSet(vars...)
}

// ParentVars returns the parent variables the unifier maps to.
func (u Unifier) ParentVars() atom.VarSet {
	var vars atom.VarSet
	for _, ps := range u {
		vars = vars.Union(ps)
	}
	return vars
}

// Injective returns true if no two child variables map to the same parent
// variable.
func (u Unifier) Injective() bool {
	seen := make(map[atom.Variable]bool)
	for _, c := range u.ChildVars() {
		for _, p := range u[c] {
			if seen[p] {
				return false
			}
			seen[p] = true
		}
	}
	return true
}

// Functional returns true if every child variable maps to exactly one parent
// variable.
func (u Unifier) Functional() bool {
	for _, ps := range u {
		if len(ps) != 1 {
			return false
		}
	}
	return true
}

// Apply translates an answer over the parent's variables into an answer over
// the child's variables. Parent variables the unifier doesn't mention are
// dropped. It returns false if a child variable maps to parent variables
// bound to different concepts.
func (u Unifier) Apply(parent answer.Answer) (answer.Answer, bool) {
	bindings := make(map[atom.Variable]kg.Concept, len(u))
	for c, ps := range u {
		found := false
		var concept kg.Concept
		for _, p := range ps {
			pc, ok := parent.Get(p)
			if !ok {
				continue
			}
			if found && pc.ID != concept.ID {
				return answer.Answer{}, false
			}
			concept, found = pc, true
		}
		if found {
			bindings[c] = concept
		}
	}
	res := answer.New(bindings)
	res.Explanation = parent.Explanation
	return res, true
}

// Equal returns true if both unifiers hold the same mappings.
func (u Unifier) Equal(other Unifier) bool {
	if len(u) != len(other) {
		return false
	}
	for c, ps := range u {
		if !ps.Equal(other[c]) {
			return false
		}
	}
	return true
}

// Key implements cmp.Key.
func (u Unifier) Key(b *strings.Builder) {
	for i, c := range u.ChildVars() {
		if i > 0 {
			b.WriteString(", ")
		}
		c.Key(b)
		b.WriteString("->")
		u[c].Key(b)
	}
}

func (u Unifier) String() string {
	return "{" + cmp.GetKey(u) + "}"
}

// MultiUnifier is a set of alternative unifiers. An empty MultiUnifier means
// unification failed; that's a normal outcome, not an error.
type MultiUnifier []Unifier

// Empty returns true if there's no unifier.
func (m MultiUnifier) Empty() bool {
	return len(m) == 0
}

// Apply translates a parent answer through every unifier, returning the
// distinct child answers.
func (m MultiUnifier) Apply(parent answer.Answer) []answer.Answer {
	set := new(answer.Set)
	for _, u := range m {
		if a, ok := u.Apply(parent); ok {
			set.Add(a)
		}
	}
	return set.Answers()
}

// Invert returns the inverse of each unifier.
func (m MultiUnifier) Invert() MultiUnifier {
	res := make(MultiUnifier, len(m))
	for i, u := range m {
		res[i] = u.Invert()
	}
	return res
}

// Equal returns true if both hold the same unifiers, in any order.
func (m MultiUnifier) Equal(other MultiUnifier) bool {
	return sameKeys(m.keys(), other.keys())
}

func (m MultiUnifier) keys() []string {
	keys := make([]string, len(m))
	for i, u := range m {
		keys[i] = cmp.GetKey(u)
	}
	sort.Strings(keys)
	return keys
}

func sameKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// multiBuilder accumulates distinct unifiers.
type multiBuilder struct {
	seen map[string]bool
	res  MultiUnifier
}

func (mb *multiBuilder) add(u Unifier) {
	if mb.seen == nil {
		mb.seen = make(map[string]bool)
	}
	key := cmp.GetKey(u)
	if !mb.seen[key] {
		mb.seen[key] = true
		mb.res = append(mb.res, u)
	}
}
