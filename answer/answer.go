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

// Package answer holds the results of resolving a query: mappings from
// variables to concepts, sets of them without duplicates, and lazy streams.
package answer

import (
	"sort"
	"strings"

	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/kg"
)

// Answer maps variables to the concepts they're bound to. Answers are
// immutable; the methods that change bindings return new answers.
type Answer struct {
	bindings map[atom.Variable]kg.Concept
	// If not nil, describes how the answer was derived.
	Explanation *Explanation
}

// Explanation records how an answer was derived. It is either a rule
// application, whose single premise is the answer to the rule's body, or a
// join of the answers to the atomic parts of a conjunction. Premises carry
// their own explanations, so an Explanation is the root of a tree.
type Explanation struct {
	// Label of the rule applied. Empty for a join.
	Rule string
	// The answers this one was derived from.
	Answers []Answer
}

// New returns an answer with the given bindings. The map is copied.
func New(bindings map[atom.Variable]kg.Concept) Answer {
	a := Answer{bindings: make(map[atom.Variable]kg.Concept, len(bindings))}
	for v, c := range bindings {
		a.bindings[v] = c
	}
	return a
}

// Get returns the concept bound to v.
func (a Answer) Get(v atom.Variable) (kg.Concept, bool) {
	c, ok := a.bindings[v]
	return c, ok
}

// Len returns the number of bound variables.
func (a Answer) Len() int {
	return len(a.bindings)
}

// Vars returns the bound variables.
func (a Answer) Vars() atom.VarSet {
	vars := make([]atom.Variable, 0, len(a.bindings))
	for v := range a.bindings {
		vars = append(vars, v)
	}
	return atom.NewVarSet(vars...)
}

// Bindings returns a copy of the answer's variable bindings.
func (a Answer) Bindings() map[atom.Variable]kg.Concept {
	res := make(map[atom.Variable]kg.Concept, len(a.bindings))
	for v, c := range a.bindings {
		res[v] = c
	}
	return res
}

// With returns a copy of the answer with v bound to c.
func (a Answer) With(v atom.Variable, c kg.Concept) Answer {
	res := New(a.bindings)
	res.bindings[v] = c
	res.Explanation = a.Explanation
	return res
}

// Explained returns a copy of the answer explained as the conclusion of rule
// from premise.
func (a Answer) Explained(rule string, premise Answer) Answer {
	a.Explanation = &Explanation{Rule: rule, Answers: []Answer{premise}}
	return a
}

// JoinedFrom returns a copy of the answer explained as the join of parts.
func (a Answer) JoinedFrom(parts []Answer) Answer {
	a.Explanation = &Explanation{Answers: parts}
	return a
}

// Project returns an answer holding only the given variables. Variables the
// answer doesn't bind are skipped.
func (a Answer) Project(vars atom.VarSet) Answer {
	res := Answer{bindings: make(map[atom.Variable]kg.Concept, len(vars)), Explanation: a.Explanation}
	for _, v := range vars {
		if c, ok := a.bindings[v]; ok {
			res.bindings[v] = c
		}
	}
	return res
}

// Join combines two answers that agree on the variables they share. It
// returns false if they bind a shared variable to different concepts. The
// result has no explanation; see JoinedFrom.
func (a Answer) Join(other Answer) (Answer, bool) {
	res := New(a.bindings)
	for v, c := range other.bindings {
		if existing, ok := res.bindings[v]; ok {
			if existing.ID != c.ID {
				return Answer{}, false
			}
			continue
		}
		res.bindings[v] = c
	}
	return res, true
}

// Key implements cmp.Key. Answers binding the same variables to the same
// concepts have equal keys, whatever their explanations.
func (a Answer) Key(b *strings.Builder) {
	vars := a.Vars()
	for i, v := range vars {
		if i > 0 {
			b.WriteByte(' ')
		}
		v.Key(b)
		b.WriteByte('=')
		a.bindings[v].Key(b)
	}
}

// KeyOf writes the key of the answer restricted to vars, in the given order.
// It's used to hash answers on join variables.
func (a Answer) KeyOf(b *strings.Builder, vars atom.VarSet) {
	for i, v := range vars {
		if i > 0 {
			b.WriteByte(' ')
		}
		a.bindings[v].Key(b)
	}
}

func (a Answer) String() string {
	vars := a.Vars()
	parts := make([]string, len(vars))
	for i, v := range vars {
		parts[i] = v.String() + "=" + a.bindings[v].String()
	}
	sort.Strings(parts)
	return "{" + strings.Join(parts, " ") + "}"
}
