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
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash"
	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/schema"
)

// Queries returns the unifiers from the child query's variables to the
// parent query's variables under strategy typ.
//
// Exact and Structural pair every atom of one query with a distinct atom of
// the other. Rule pairs every child atom with some parent atom, and
// Subsumptive pairs every parent atom with some child atom; the child may
// constrain more than the parent.
func Queries(child, parent *atom.Query, typ Type, sch *schema.Schema) MultiUnifier {
	cAtoms, pAtoms := child.Atoms(), parent.Atoms()
	bijective := typ.bijective()
	if bijective && len(cAtoms) != len(pAtoms) {
		return nil
	}
	swap := typ == Subsumptive
	from, to := cAtoms, pAtoms
	if swap {
		from, to = pAtoms, cAtoms
	}
	// Per-atom unifiers, computed once: pairs[i][j] unifies from[i] with to[j].
	pairs := make([][]MultiUnifier, len(from))
	for i := range from {
		pairs[i] = make([]MultiUnifier, len(to))
		found := false
		for j := range to {
			c, p := from[i], to[j]
			if swap {
				c, p = p, c
			}
			pairs[i][j] = Atoms(c, p, typ, sch)
			found = found || !pairs[i][j].Empty()
		}
		if !found {
			return nil
		}
	}
	u := unifier{typ: typ, sch: sch, cq: child, pq: parent}
	var mb multiBuilder
	used := make([]bool, len(to))
	var search func(i int, acc Unifier)
	search = func(i int, acc Unifier) {
		if i == len(from) {
			if u.valid(acc) && (!bijective || covers(acc, child, parent)) {
				mb.add(acc)
			}
			return
		}
		for j := range to {
			if bijective && used[j] {
				continue
			}
			for _, au := range pairs[i][j] {
				next := acc.Merge(au)
				if bijective && !next.Functional() {
					continue
				}
				used[j] = true
				search(i+1, next)
				used[j] = false
			}
		}
	}
	search(0, make(Unifier))
	return mb.res
}

// covers returns true if u maps every variable of child and reaches every
// variable of parent.
func covers(u Unifier, child, parent *atom.Query) bool {
	return u.ChildVars().Equal(child.Vars()) && u.ParentVars().Equal(parent.Vars())
}

// Equivalent returns true if a and b are equivalent under typ, which must be
// Exact (alpha-equivalence: equal up to variable renaming) or Structural
// (equal up to renaming and the particular constants used).
func Equivalent(a, b *atom.Query, typ Type, sch *schema.Schema) bool {
	switch typ {
	case Exact, Structural:
		return !Queries(a, b, typ, sch).Empty()
	case Rule, Subsumptive:
		panic("Equivalent needs the Exact or Structural strategy, got " + typ.String())
	}
	panic(typ.invalid())
}

// Subsumes returns true if every answer to specific is also an answer to
// general.
func Subsumes(general, specific *atom.Query, sch *schema.Schema) bool {
	return !Queries(specific, general, Subsumptive, sch).Empty()
}

// Hash returns a hash of q that's equal for queries Equivalent under typ,
// which must be Exact or Structural. Variable names don't contribute.
func Hash(q *atom.Query, typ Type) uint64 {
	switch typ {
	case Exact, Structural:
	case Rule, Subsumptive:
		panic("Hash needs the Exact or Structural strategy, got " + typ.String())
	default:
		panic(typ.invalid())
	}
	parts := make([]string, 0, len(q.Atoms()))
	for _, a := range q.Atoms() {
		var b strings.Builder
		b.WriteString(a.Kind.String())
		b.WriteByte(' ')
		b.WriteString(schema.Normalize(a.Type))
		if typ == Exact && a.Direct {
			b.WriteByte('!')
		}
		b.WriteString(" [")
		varSignature(&b, q, a.Var, typ)
		b.WriteByte(']')
		switch a.Kind {
		case atom.KindAttribute:
			b.WriteString(" [")
			varSignature(&b, q, a.Value, typ)
			b.WriteByte(']')
		case atom.KindRelation:
			rps := make([]string, len(a.RolePlayers))
			for i, rp := range a.RolePlayers {
				var rb strings.Builder
				rb.WriteString(roleLabel(rp.Role))
				rb.WriteByte(':')
				varSignature(&rb, q, rp.Player, typ)
				rps[i] = rb.String()
			}
			sort.Strings(rps)
			b.WriteString(" (")
			b.WriteString(strings.Join(rps, ","))
			b.WriteByte(')')
		}
		parts = append(parts, b.String())
	}
	sort.Strings(parts)
	return xxhash.Sum64String(strings.Join(parts, "\n"))
}

// varSignature describes what q states about v, leaving out v's name.
func varSignature(b *strings.Builder, q *atom.Query, v atom.Variable, typ Type) {
	b.WriteString(strings.Join(q.Labels(v), ","))
	if typ == Exact && q.IsDirect(v) {
		b.WriteByte('!')
	}
	ids := q.IDsOf(v)
	if len(ids) > 0 {
		b.WriteString(" id")
		if typ == Exact {
			for _, id := range ids {
				b.WriteByte(' ')
				b.WriteString(strconv.FormatUint(id, 10))
			}
		}
	}
	if preds := q.ValuesOf(v); len(preds) > 0 {
		b.WriteString(" val ")
		b.WriteString(strings.Join(predicateKeys(preds, typ == Structural), " "))
	}
}
