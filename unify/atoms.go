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
	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/schema"
)

// Atoms returns the unifiers from the child atom's variables to the parent
// atom's variables under strategy typ. Type, id and value information comes
// from the queries the atoms belong to; an atom outside any query is treated
// as a query of its own. An empty result means the atoms don't unify.
//
// Relation atoms may unify in several ways, one for each compatible
// assignment of child role players to parent role players. Under the Rule
// strategy an isa child atom also unifies with a relation or attribute
// parent, mapping the child's variable to the relation or attribute
// instance.
func Atoms(child, parent *atom.Atom, typ Type, sch *schema.Schema) MultiUnifier {
	child, parent = owned(child), owned(parent)
	u := unifier{typ: typ, sch: sch, cq: child.Query(), pq: parent.Query()}
	var mb multiBuilder
	u.atoms(child, parent, &mb)
	return mb.res
}

func owned(a *atom.Atom) *atom.Atom {
	if a.Query() != nil {
		return a
	}
	return atom.MustQuery([]atom.Atom{*a}, nil).Atoms()[0]
}

// unifier holds the state shared by one unification.
type unifier struct {
	typ Type
	sch *schema.Schema
	cq  *atom.Query
	pq  *atom.Query
}

// vars compares a child variable against a parent variable: their types, ids
// and values.
func (u *unifier) vars(cv, pv atom.Variable) bool {
	return u.typ.varTypesCompatible(u.sch, u.cq, cv, u.pq, pv) &&
		u.typ.idCompatible(u.cq.IDsOf(cv), u.pq.IDsOf(pv)) &&
		u.typ.valueCompatible(u.cq.ValuesOf(cv), u.pq.ValuesOf(pv))
}

// valid returns true if a complete unifier obeys the strategy's shape rules.
func (u *unifier) valid(res Unifier) bool {
	if u.typ.bijective() && !res.Functional() {
		return false
	}
	return u.typ.allowsNonInjective() || res.Injective()
}

func (u *unifier) atoms(child, parent *atom.Atom, mb *multiBuilder) {
	if child.Kind != parent.Kind {
		if u.typ == Rule && child.Kind == atom.KindIsa {
			u.isaToInstance(child, parent, mb)
		}
		return
	}
	if !u.typ.atomTypeCompatible(u.sch, child, parent) {
		return
	}
	base := make(Unifier)
	if !u.vars(child.Var, parent.Var) {
		return
	}
	base.add(child.Var, parent.Var)
	switch child.Kind {
	case atom.KindIsa:
	case atom.KindAttribute:
		if !u.vars(child.Value, parent.Value) {
			return
		}
		base.add(child.Value, parent.Value)
	case atom.KindRelation:
		u.rolePlayers(child, parent, base, mb)
		return
	}
	if u.valid(base) {
		mb.add(base)
	}
}

// isaToInstance unifies "$x isa T" with the instance a relation or attribute
// atom concludes.
func (u *unifier) isaToInstance(child, parent *atom.Atom, mb *multiBuilder) {
	var instance atom.Variable
	switch parent.Kind {
	case atom.KindRelation:
		instance = parent.Var
	case atom.KindAttribute:
		instance = parent.Value
	default:
		return
	}
	if parent.Type == "" || u.sch.Disjoint(child.Type, parent.Type) {
		return
	}
	if !u.vars(child.Var, instance) {
		return
	}
	mb.add(Unifier{child.Var: atom.VarSet{instance}})
}

// rolePlayers extends base with each compatible assignment of role players.
// Exact and Structural pair the role players one-to-one. Rule maps each child
// role player to a distinct parent role player; Subsumptive maps each parent
// role player to a distinct child role player.
func (u *unifier) rolePlayers(child, parent *atom.Atom, base Unifier, mb *multiBuilder) {
	crs, prs := child.RolePlayers, parent.RolePlayers
	if u.typ.bijective() && len(crs) != len(prs) {
		return
	}
	// from[i] lists the indexes of 'to' that from[i] may be paired with.
	swap := u.typ == Subsumptive
	from, to := crs, prs
	if swap {
		from, to = prs, crs
	}
	if len(from) > len(to) {
		return
	}
	candidates := make([][]int, len(from))
	for i := range from {
		for j := range to {
			crp, prp := from[i], to[j]
			if swap {
				crp, prp = prp, crp
			}
			if u.typ.roleCompatible(u.sch, crp.Role, prp.Role) &&
				u.typ.playable(u.sch, u.cq, crp.Player, prp.Role) &&
				u.vars(crp.Player, prp.Player) {
				candidates[i] = append(candidates[i], j)
			}
		}
		if len(candidates[i]) == 0 {
			return
		}
	}
	used := make([]bool, len(to))
	var assign func(i int, acc Unifier)
	assign = func(i int, acc Unifier) {
		if i == len(from) {
			if u.valid(acc) {
				mb.add(acc)
			}
			return
		}
		for _, j := range candidates[i] {
			if used[j] {
				continue
			}
			cv, pv := from[i].Player, to[j].Player
			if swap {
				cv, pv = pv, cv
			}
			next := acc.clone()
			next.add(cv, pv)
			if u.typ.bijective() && !next.Functional() {
				continue
			}
			used[j] = true
			assign(i+1, next)
			used[j] = false
		}
	}
	assign(0, base)
}
