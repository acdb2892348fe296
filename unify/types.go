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

package unify

import (
	"fmt"
	"sort"

	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/kg"
	"github.com/ebay/reasoner/schema"
	"github.com/ebay/reasoner/util/cmp"
)

// Type selects the comparison strategy used during unification.
//
//	Exact:       equal types and explicitness; equal predicates. Used by the
//	             exact answer cache.
//	Structural:  equal types; ids present on the same variables; the same
//	             value operators. Used by the structural cache.
//	Rule:        child types not disjoint from the parent's; the child's
//	             variables can play the parent's roles; predicates
//	             compatible. Used to match queries against rule heads.
//	Subsumptive: child types are subtypes of the parent's; child predicates
//	             imply the parent's. Used to find cached queries whose
//	             answers contain a query's answers.
//
// Every method switches on all four values and panics on anything else, so
// adding a strategy fails loudly until each method handles it.
type Type uint8

// The comparison strategies.
const (
	Exact Type = iota + 1
	Structural
	Rule
	Subsumptive
)

func (t Type) String() string {
	switch t {
	case Exact:
		return "exact"
	case Structural:
		return "structural"
	case Rule:
		return "rule"
	case Subsumptive:
		return "subsumptive"
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

func (t Type) invalid() string {
	return fmt.Sprintf("unexpected unifier type %v", t)
}

// bijective returns true if unifiers must pair the variables and atoms of
// both sides one-to-one.
func (t Type) bijective() bool {
	switch t {
	case Exact, Structural:
		return true
	case Rule, Subsumptive:
		return false
	}
	panic(t.invalid())
}

// allowsNonInjective returns true if two child variables may map to the same
// parent variable.
func (t Type) allowsNonInjective() bool {
	switch t {
	case Exact, Structural:
		return false
	case Rule, Subsumptive:
		return true
	}
	panic(t.invalid())
}

// atomTypeCompatible compares the types of two atoms of the same kind.
func (t Type) atomTypeCompatible(sch *schema.Schema, child, parent *atom.Atom) bool {
	ct, pt := schema.Normalize(child.Type), schema.Normalize(parent.Type)
	switch t {
	case Exact:
		return ct == pt && child.Direct == parent.Direct
	case Structural:
		return ct == pt
	case Rule:
		return ct == "" || pt == "" || !sch.Disjoint(ct, pt)
	case Subsumptive:
		switch {
		case pt == "":
			return true
		case ct == "" || !sch.IsSubtypeOf(ct, pt):
			return false
		case parent.Direct:
			return child.Direct && ct == pt
		}
		return true
	}
	panic(t.invalid())
}

// varTypesCompatible compares the type labels the two queries state for a
// pair of variables.
func (t Type) varTypesCompatible(sch *schema.Schema, cq *atom.Query, cv atom.Variable, pq *atom.Query, pv atom.Variable) bool {
	cl, pl := cq.Labels(cv), pq.Labels(pv)
	switch t {
	case Exact:
		return sameKeys(cl, pl) && cq.IsDirect(cv) == pq.IsDirect(pv)
	case Structural:
		return sameKeys(cl, pl)
	case Rule:
		for _, c := range cl {
			for _, p := range pl {
				if sch.Disjoint(c, p) {
					return false
				}
			}
		}
		return true
	case Subsumptive:
		for _, p := range pl {
			found := false
			for _, c := range cl {
				if sch.IsSubtypeOf(c, p) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}
	panic(t.invalid())
}

func roleLabel(role string) string {
	if role == "" {
		return schema.Role
	}
	return schema.Normalize(role)
}

// roleCompatible compares the roles of a child and a parent role player.
// An empty role is the meta role.
func (t Type) roleCompatible(sch *schema.Schema, childRole, parentRole string) bool {
	cr, pr := roleLabel(childRole), roleLabel(parentRole)
	switch t {
	case Exact, Structural:
		return cr == pr
	case Rule:
		// The parent concludes a role player for pr, which answers a child
		// asking for pr or any of its superroles.
		return cr == schema.Role || sch.IsSubtypeOf(pr, cr)
	case Subsumptive:
		return pr == schema.Role || sch.IsSubtypeOf(cr, pr)
	}
	panic(t.invalid())
}

// playable returns true if the child variable cv can play the parent's role.
func (t Type) playable(sch *schema.Schema, cq *atom.Query, cv atom.Variable, parentRole string) bool {
	switch t {
	case Exact, Structural, Subsumptive:
		return true
	case Rule:
		role := roleLabel(parentRole)
		for _, label := range cq.Labels(cv) {
			ok := false
			for _, sub := range sch.Subs(label) {
				if sch.CanPlay(sub, role) {
					ok = true
					break
				}
			}
			if !ok {
				return false
			}
		}
		return true
	}
	panic(t.invalid())
}

// idCompatible compares the ids a child and a parent variable are
// constrained to. The slices are sorted.
func (t Type) idCompatible(child, parent []uint64) bool {
	switch t {
	case Exact:
		if len(child) != len(parent) {
			return false
		}
		for i := range child {
			if child[i] != parent[i] {
				return false
			}
		}
		return true
	case Structural:
		return (len(child) > 0) == (len(parent) > 0)
	case Rule:
		if len(child) == 0 || len(parent) == 0 {
			return true
		}
		for _, c := range child {
			for _, p := range parent {
				if c == p {
					return true
				}
			}
		}
		return false
	case Subsumptive:
		if len(parent) == 0 {
			return true
		}
		if len(child) == 0 {
			return false
		}
		for _, c := range child {
			if !containsID(parent, c) {
				return false
			}
		}
		return true
	}
	panic(t.invalid())
}

func containsID(ids []uint64, id uint64) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// valueCompatible compares the value predicates on a child and a parent
// variable.
func (t Type) valueCompatible(child, parent []kg.Predicate) bool {
	switch t {
	case Exact:
		return sameKeys(predicateKeys(child, false), predicateKeys(parent, false))
	case Structural:
		return sameKeys(predicateKeys(child, true), predicateKeys(parent, true))
	case Rule:
		for _, c := range child {
			for _, p := range parent {
				if !c.Compatible(p) {
					return false
				}
			}
		}
		return true
	case Subsumptive:
		for _, p := range parent {
			implied := false
			for _, c := range child {
				if c.Implies(p) {
					implied = true
					break
				}
			}
			if !implied {
				return false
			}
		}
		return true
	}
	panic(t.invalid())
}

// predicateKeys returns the sorted keys of preds, or only their operators if
// opsOnly is set.
func predicateKeys(preds []kg.Predicate, opsOnly bool) []string {
	keys := make([]string, len(preds))
	for i, p := range preds {
		if opsOnly {
			keys[i] = p.Op.String()
		} else {
			keys[i] = cmp.GetKey(p)
		}
	}
	sort.Strings(keys)
	return keys
}
