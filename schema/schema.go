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

// Package schema models the type system of a knowledge graph: entity,
// relation, and attribute types, the roles relations relate, and which types
// may play roles and own attributes.
//
// A Schema is built once with a Builder and is immutable afterwards, so it's
// safe to share across goroutines.
package schema

import (
	"fmt"
	"sort"

	"github.com/ebay/reasoner/kg"
	"github.com/ebay/reasoner/util/unicode"
)

// Kind is the closed set of schema concept kinds.
type Kind uint8

// The kinds of schema concept.
const (
	KindEntityType Kind = iota + 1
	KindRelationType
	KindAttributeType
	KindRole
)

func (k Kind) String() string {
	switch k {
	case KindEntityType:
		return "entity type"
	case KindRelationType:
		return "relation type"
	case KindAttributeType:
		return "attribute type"
	case KindRole:
		return "role"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// IsType returns true for the kinds instances can have, that is every kind
// but KindRole.
func (k Kind) IsType() bool {
	switch k {
	case KindEntityType, KindRelationType, KindAttributeType:
		return true
	}
	return false
}

// Labels of the built-in meta concepts. Every user-defined concept descends
// from the meta concept of its kind.
const (
	Entity    = "entity"
	Relation  = "relation"
	Attribute = "attribute"
	Role      = "role"
)

var metaKinds = map[string]Kind{
	Entity:    KindEntityType,
	Relation:  KindRelationType,
	Attribute: KindAttributeType,
	Role:      KindRole,
}

// MetaLabel returns the label of the meta concept for kind k.
func MetaLabel(k Kind) string {
	for label, kind := range metaKinds {
		if kind == k {
			return label
		}
	}
	return ""
}

// Concept is a schema concept: a type or a role.
type Concept struct {
	Label string
	Kind  Kind
	// Label of the direct supertype. Empty only for meta concepts.
	Super string
	// Abstract types can't have direct instances, so rules can't conclude
	// them.
	Abstract bool
	// Implicit concepts are generated by the system (for example the
	// relations backing attribute ownership) and can't appear in rule heads.
	Implicit bool
	// Only set for attribute types.
	DataType kg.Kind
}

// IsMeta returns true for the built-in meta concepts.
func (c *Concept) IsMeta() bool {
	_, meta := metaKinds[c.Label]
	return meta
}

func (c *Concept) String() string {
	return fmt.Sprintf("%s %q", c.Kind, c.Label)
}

// Normalize returns label in the canonical Unicode form used for lookups.
func Normalize(label string) string {
	return unicode.Normalize(label)
}

// Schema is an immutable, indexed set of schema concepts.
type Schema struct {
	concepts map[string]*Concept
	// direct subtypes, by supertype label
	subs map[string][]string
	// roles declared by each relation type
	relates map[string][]string
	// relation types declaring each role
	roleRelations map[string][]string
	// roles declared playable by each type
	plays map[string][]string
	// types declared to play each role
	players map[string][]string
	// attribute types declared ownable by each type
	owns map[string][]string
}

// Get returns the concept with the given label. An unknown label returns
// false, not an error.
func (s *Schema) Get(label string) (*Concept, bool) {
	c, ok := s.concepts[Normalize(label)]
	return c, ok
}

// Has returns true if a concept with the given label exists.
func (s *Schema) Has(label string) bool {
	_, ok := s.Get(label)
	return ok
}

// Labels returns the labels of every concept, sorted.
func (s *Schema) Labels() []string {
	labels := make([]string, 0, len(s.concepts))
	for l := range s.concepts {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// Sups returns label and all of its supertypes, starting with label itself
// and ending with the meta concept. It returns nil for an unknown label.
func (s *Schema) Sups(label string) []string {
	var res []string
	for c, ok := s.Get(label); ok; c, ok = s.concepts[c.Super] {
		res = append(res, c.Label)
	}
	return res
}

// Subs returns label and all of its subtypes, transitively, in breadth-first
// order. It returns nil for an unknown label.
func (s *Schema) Subs(label string) []string {
	c, ok := s.Get(label)
	if !ok {
		return nil
	}
	res := []string{c.Label}
	for i := 0; i < len(res); i++ {
		res = append(res, s.subs[res[i]]...)
	}
	return res
}

// IsSubtypeOf returns true if sub is sup or one of its descendants.
func (s *Schema) IsSubtypeOf(sub, sup string) bool {
	sup = Normalize(sup)
	for _, l := range s.Sups(sub) {
		if l == sup {
			return true
		}
	}
	return false
}

// Disjoint returns true if no instance can have both types a and b. Types
// form a tree, so this holds exactly when neither is a subtype of the other.
func (s *Schema) Disjoint(a, b string) bool {
	return !s.IsSubtypeOf(a, b) && !s.IsSubtypeOf(b, a)
}

// Lowest returns the most specific of the given labels, or false if two of
// them are disjoint. Unknown labels are ignored.
func (s *Schema) Lowest(labels ...string) (string, bool) {
	lowest := ""
	for _, l := range labels {
		if !s.Has(l) {
			continue
		}
		switch {
		case lowest == "" || s.IsSubtypeOf(l, lowest):
			lowest = Normalize(l)
		case s.IsSubtypeOf(lowest, l):
		default:
			return "", false
		}
	}
	return lowest, true
}

// Roles returns the roles relation relates, including the ones it inherits
// from its supertypes.
func (s *Schema) Roles(relation string) []string {
	var res []string
	for _, l := range s.Sups(relation) {
		res = append(res, s.relates[l]...)
	}
	return res
}

// Relates returns true if relation relates role or a role related to it by
// the role hierarchy. The meta role is related by every relation.
func (s *Schema) Relates(relation, role string) bool {
	if Normalize(role) == Role {
		return true
	}
	for _, r := range s.Roles(relation) {
		if s.IsSubtypeOf(r, role) || s.IsSubtypeOf(role, r) {
			return true
		}
	}
	return false
}

// RelationsOf returns the relation types that declare role or one of its
// subroles.
func (s *Schema) RelationsOf(role string) []string {
	var res []string
	for _, r := range s.Subs(role) {
		res = append(res, s.roleRelations[r]...)
	}
	return res
}

// CanPlay returns true if instances of typ may play role. A type plays a role
// when it, or a supertype, is declared to play that role or a subrole of it.
// Every type can play the meta role.
func (s *Schema) CanPlay(typ, role string) bool {
	if Normalize(role) == Role {
		return true
	}
	for _, t := range s.Sups(typ) {
		for _, r := range s.plays[t] {
			if s.IsSubtypeOf(r, role) {
				return true
			}
		}
	}
	return false
}

// Players returns the types declared to play role directly.
func (s *Schema) Players(role string) []string {
	return s.players[Normalize(role)]
}

// Owns returns true if instances of typ may own attributes of type attr.
func (s *Schema) Owns(typ, attr string) bool {
	if Normalize(attr) == Attribute {
		return true
	}
	for _, t := range s.Sups(typ) {
		for _, a := range s.owns[t] {
			if s.IsSubtypeOf(a, attr) {
				return true
			}
		}
	}
	return false
}

// DataType returns the datatype of the attribute type label, or KindNone.
func (s *Schema) DataType(label string) kg.Kind {
	c, ok := s.Get(label)
	if !ok {
		return kg.KindNone
	}
	return c.DataType
}
