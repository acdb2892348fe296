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

// Package atom represents patterns over a knowledge graph: variables, the
// atoms that constrain them, and the conjunctive queries and disjunctive
// patterns built from atoms.
//
// Atoms and queries are immutable once built. Transformations, such as adding
// predicates or splitting a query into atomic parts, return new values.
package atom

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ebay/reasoner/schema"
)

// Kind is the closed set of atom kinds.
type Kind uint8

// The kinds of atom.
const (
	// KindIsa constrains the type of a variable: "$x isa lion".
	KindIsa Kind = iota + 1
	// KindRelation matches a relation and its role players:
	// "$r (parent: $x, child: $y) isa parentship".
	KindRelation
	// KindAttribute matches attribute ownership: "$x has age $a".
	KindAttribute
)

func (k Kind) String() string {
	switch k {
	case KindIsa:
		return "isa"
	case KindRelation:
		return "relation"
	case KindAttribute:
		return "attribute"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// RolePlayer is one "role: $player" entry of a relation atom. An empty Role
// matches any role.
type RolePlayer struct {
	Role   string
	Player Variable
}

// RP is shorthand for constructing a RolePlayer.
func RP(role string, player Variable) RolePlayer {
	return RolePlayer{Role: role, Player: player}
}

// Atom is a single constraint of a pattern. Which fields are meaningful
// depends on Kind:
//
//	Isa:       Var isa Type (isa! when Direct)
//	Relation:  Var (RolePlayers...) isa Type; an empty Type means any relation
//	Attribute: Var has Type Value
//
// Atoms must not be modified once they're part of a Query.
type Atom struct {
	Kind Kind
	// The instance variable for Isa and Relation atoms; the owner for
	// Attribute atoms.
	Var Variable
	// Label of the schema type, if any.
	Type string
	// If true, the type must match exactly rather than any subtype.
	Direct      bool
	RolePlayers []RolePlayer
	// The attribute instance variable, for Attribute atoms only.
	Value Variable

	// The query this atom belongs to. Set by NewQuery; the query owns the
	// atom, not the other way around.
	query *Query
}

// Isa returns an atom constraining v to be an instance of typ or one of its
// subtypes.
func Isa(v Variable, typ string) Atom {
	return Atom{Kind: KindIsa, Var: v, Type: typ}
}

// IsaDirect returns an atom constraining v to be a direct instance of typ.
func IsaDirect(v Variable, typ string) Atom {
	return Atom{Kind: KindIsa, Var: v, Type: typ, Direct: true}
}

// Relation returns a relation atom.
func Relation(v Variable, typ string, players ...RolePlayer) Atom {
	return Atom{Kind: KindRelation, Var: v, Type: typ, RolePlayers: players}
}

// Has returns an attribute atom: owner has an attribute of type typ, bound to
// value.
func Has(owner Variable, typ string, value Variable) Atom {
	return Atom{Kind: KindAttribute, Var: owner, Type: typ, Value: value}
}

// Query returns the query that owns the atom, or nil if the atom hasn't been
// added to one.
func (a *Atom) Query() *Query {
	return a.query
}

// Vars returns the variables the atom binds.
func (a *Atom) Vars() VarSet {
	vars := []Variable{a.Var}
	switch a.Kind {
	case KindRelation:
		for _, rp := range a.RolePlayers {
			vars = append(vars, rp.Player)
		}
	case KindAttribute:
		vars = append(vars, a.Value)
	}
	return NewVarSet(vars...)
}

// Selectable returns true if the atom can be resolved on its own. Relation
// and attribute atoms always can. An isa atom can only when its variable
// isn't bound by a relation or attribute atom of the same query; otherwise it
// just adds type information to that atom.
func (a *Atom) Selectable() bool {
	if a.Kind != KindIsa {
		return true
	}
	if a.query == nil {
		return true
	}
	for _, other := range a.query.atoms {
		if other.Kind != KindIsa && other.Vars().Contains(a.Var) {
			return false
		}
	}
	return true
}

// IDs returns the id predicates of the atom's query that apply to the atom's
// variables.
func (a *Atom) IDs() []IDPredicate {
	if a.query == nil {
		return nil
	}
	vars := a.Vars()
	var res []IDPredicate
	for _, p := range a.query.ids {
		if vars.Contains(p.Var) {
			res = append(res, p)
		}
	}
	return res
}

// Values returns the value predicates of the atom's query that apply to the
// atom's variables.
func (a *Atom) Values() []ValuePredicate {
	if a.query == nil {
		return nil
	}
	vars := a.Vars()
	var res []ValuePredicate
	for _, p := range a.query.values {
		if vars.Contains(p.Var) {
			res = append(res, p)
		}
	}
	return res
}

// SchemaConcept returns the schema concept named by the atom's type. An
// unknown or empty label returns false.
func (a *Atom) SchemaConcept(sch *schema.Schema) (*schema.Concept, bool) {
	if a.Type == "" {
		return nil, false
	}
	return sch.Get(a.Type)
}

// Roles returns the distinct roles used by a relation atom, sorted.
func (a *Atom) Roles() []string {
	seen := make(map[string]bool)
	var roles []string
	for _, rp := range a.RolePlayers {
		if !seen[rp.Role] {
			seen[rp.Role] = true
			roles = append(roles, rp.Role)
		}
	}
	sort.Strings(roles)
	return roles
}

// Key implements cmp.Key. Role players are written in a canonical order, so
// atoms that differ only by role-player order have equal keys.
func (a *Atom) Key(b *strings.Builder) {
	b.WriteString(a.Kind.String())
	b.WriteByte(' ')
	a.Var.Key(b)
	b.WriteByte(' ')
	b.WriteString(a.Type)
	if a.Direct {
		b.WriteByte('!')
	}
	switch a.Kind {
	case KindRelation:
		rps := append([]RolePlayer(nil), a.RolePlayers...)
		sort.Slice(rps, func(i, j int) bool {
			if rps[i].Role != rps[j].Role {
				return rps[i].Role < rps[j].Role
			}
			return rps[i].Player < rps[j].Player
		})
		b.WriteString(" (")
		for i, rp := range rps {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(rp.Role)
			b.WriteByte(':')
			rp.Player.Key(b)
		}
		b.WriteByte(')')
	case KindAttribute:
		b.WriteByte(' ')
		a.Value.Key(b)
	}
}

// String returns the atom in pattern text syntax.
func (a *Atom) String() string {
	var b strings.Builder
	isa := " isa "
	if a.Direct {
		isa = " isa! "
	}
	switch a.Kind {
	case KindIsa:
		b.WriteString(a.Var.String())
		b.WriteString(isa)
		b.WriteString(a.Type)
	case KindRelation:
		if !a.Var.IsAnonymous() {
			b.WriteString(a.Var.String())
			b.WriteByte(' ')
		}
		b.WriteByte('(')
		for i, rp := range a.RolePlayers {
			if i > 0 {
				b.WriteString(", ")
			}
			if rp.Role != "" {
				b.WriteString(rp.Role)
				b.WriteString(": ")
			}
			b.WriteString(rp.Player.String())
		}
		b.WriteByte(')')
		if a.Type != "" {
			b.WriteString(isa)
			b.WriteString(a.Type)
		}
	case KindAttribute:
		b.WriteString(a.Var.String())
		b.WriteString(" has ")
		b.WriteString(a.Type)
		b.WriteByte(' ')
		b.WriteString(a.Value.String())
	}
	return b.String()
}

func (a *Atom) check() error {
	if a.Var == "" {
		return fmt.Errorf("%w: %v atom without a variable", ErrInvalidAtom, a.Kind)
	}
	switch a.Kind {
	case KindIsa:
		if a.Type == "" {
			return fmt.Errorf("%w: %v without a type", ErrInvalidAtom, a)
		}
	case KindRelation:
		if len(a.RolePlayers) == 0 {
			return fmt.Errorf("%w: relation %v has no role players", ErrInvalidAtom, a.Var)
		}
		for _, rp := range a.RolePlayers {
			if rp.Player == "" {
				return fmt.Errorf("%w: relation %v has a role player without a variable", ErrInvalidAtom, a.Var)
			}
		}
	case KindAttribute:
		if a.Type == "" || a.Value == "" {
			return fmt.Errorf("%w: %v needs a type and a value variable", ErrInvalidAtom, a)
		}
	default:
		return fmt.Errorf("%w: unknown atom kind %v", ErrInvalidAtom, a.Kind)
	}
	return nil
}
