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

package schema

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ebay/reasoner/kg"
)

// Builder accumulates schema definitions. Mistakes are collected and
// reported together by Build, so calls can be chained freely.
type Builder struct {
	concepts []Concept
	relates  [][2]string
	plays    [][2]string
	owns     [][2]string
	errs     []error
}

// NewBuilder returns a Builder that already holds the meta concepts.
func NewBuilder() *Builder {
	b := new(Builder)
	for _, label := range []string{Entity, Relation, Attribute, Role} {
		b.concepts = append(b.concepts, Concept{Label: label, Kind: metaKinds[label], Abstract: true})
	}
	return b
}

// Define adds a concept. An empty Super defaults to the meta concept of the
// concept's kind.
func (b *Builder) Define(c Concept) *Builder {
	c.Label = Normalize(c.Label)
	c.Super = Normalize(c.Super)
	if c.Super == "" {
		c.Super = MetaLabel(c.Kind)
	}
	b.concepts = append(b.concepts, c)
	return b
}

// Entity defines an entity type.
func (b *Builder) Entity(label, super string) *Builder {
	return b.Define(Concept{Label: label, Kind: KindEntityType, Super: super})
}

// Relation defines a relation type and the roles it relates. Roles that
// aren't defined elsewhere are defined as direct subroles of the meta role.
func (b *Builder) Relation(label, super string, roles ...string) *Builder {
	b.Define(Concept{Label: label, Kind: KindRelationType, Super: super})
	for _, r := range roles {
		if !b.defined(r) {
			b.Role(r, "")
		}
	}
	return b.Relates(label, roles...)
}

// Attribute defines an attribute type. A zero dt inherits the supertype's
// datatype.
func (b *Builder) Attribute(label, super string, dt kg.Kind) *Builder {
	return b.Define(Concept{Label: label, Kind: KindAttributeType, Super: super, DataType: dt})
}

// Role defines a role.
func (b *Builder) Role(label, super string) *Builder {
	return b.Define(Concept{Label: label, Kind: KindRole, Super: super})
}

// Abstract marks the already-defined concept label as abstract.
func (b *Builder) Abstract(label string) *Builder {
	return b.update(label, func(c *Concept) { c.Abstract = true })
}

// Implicit marks the already-defined concept label as implicit.
func (b *Builder) Implicit(label string) *Builder {
	return b.update(label, func(c *Concept) { c.Implicit = true })
}

// Relates declares that relation relates the given roles.
func (b *Builder) Relates(relation string, roles ...string) *Builder {
	for _, r := range roles {
		b.relates = append(b.relates, [2]string{Normalize(relation), Normalize(r)})
	}
	return b
}

// Plays declares that instances of typ may play the given roles.
func (b *Builder) Plays(typ string, roles ...string) *Builder {
	for _, r := range roles {
		b.plays = append(b.plays, [2]string{Normalize(typ), Normalize(r)})
	}
	return b
}

// Owns declares that instances of typ may own the given attribute types.
func (b *Builder) Owns(typ string, attrs ...string) *Builder {
	for _, a := range attrs {
		b.owns = append(b.owns, [2]string{Normalize(typ), Normalize(a)})
	}
	return b
}

func (b *Builder) defined(label string) bool {
	label = Normalize(label)
	for i := range b.concepts {
		if b.concepts[i].Label == label {
			return true
		}
	}
	return false
}

func (b *Builder) update(label string, fn func(*Concept)) *Builder {
	label = Normalize(label)
	for i := range b.concepts {
		if b.concepts[i].Label == label {
			fn(&b.concepts[i])
			return b
		}
	}
	b.errs = append(b.errs, fmt.Errorf("concept %q is not defined", label))
	return b
}

// Build checks the definitions and returns the indexed Schema. All problems
// found are returned together.
func (b *Builder) Build() (*Schema, error) {
	errs := append([]error(nil), b.errs...)
	s := &Schema{
		concepts:      make(map[string]*Concept, len(b.concepts)),
		subs:          make(map[string][]string),
		relates:       make(map[string][]string),
		roleRelations: make(map[string][]string),
		plays:         make(map[string][]string),
		players:       make(map[string][]string),
		owns:          make(map[string][]string),
	}
	for i := range b.concepts {
		c := b.concepts[i]
		if c.Label == "" {
			errs = append(errs, errors.New("concept with empty label"))
			continue
		}
		if _, dup := s.concepts[c.Label]; dup {
			errs = append(errs, fmt.Errorf("concept %q is defined more than once", c.Label))
			continue
		}
		s.concepts[c.Label] = &c
	}
	for _, label := range sortedKeys(s.concepts) {
		c := s.concepts[label]
		if c.Super == "" {
			continue
		}
		sup, ok := s.concepts[c.Super]
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("%v: supertype %q is not defined", c, c.Super))
		case sup.Kind != c.Kind:
			errs = append(errs, fmt.Errorf("%v: supertype %v has a different kind", c, sup))
		default:
			s.subs[sup.Label] = append(s.subs[sup.Label], c.Label)
		}
	}
	for _, label := range sortedKeys(s.concepts) {
		if cyclic(s, label) {
			errs = append(errs, fmt.Errorf("concept %q is its own supertype", label))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	for _, label := range sortedKeys(s.concepts) {
		c := s.concepts[label]
		if c.Kind == KindAttributeType && c.DataType == kg.KindNone {
			for _, l := range s.Sups(label)[1:] {
				if dt := s.concepts[l].DataType; dt != kg.KindNone {
					c.DataType = dt
					break
				}
			}
		}
	}
	check := func(what string, pairs [][2]string, leftOK func(*Concept) bool, rightKind Kind,
		index func(l, r string)) {
		for _, p := range pairs {
			left, ok := s.concepts[p[0]]
			if !ok || !leftOK(left) {
				errs = append(errs, fmt.Errorf("%s: %q is not a suitable type", what, p[0]))
				continue
			}
			right, ok := s.concepts[p[1]]
			if !ok || right.Kind != rightKind {
				errs = append(errs, fmt.Errorf("%s: %q is not a %v", what, p[1], rightKind))
				continue
			}
			index(p[0], p[1])
		}
	}
	check("relates", b.relates, func(c *Concept) bool { return c.Kind == KindRelationType }, KindRole,
		func(rel, role string) {
			s.relates[rel] = append(s.relates[rel], role)
			s.roleRelations[role] = append(s.roleRelations[role], rel)
		})
	check("plays", b.plays, func(c *Concept) bool { return c.Kind.IsType() }, KindRole,
		func(typ, role string) {
			s.plays[typ] = append(s.plays[typ], role)
			s.players[role] = append(s.players[role], typ)
		})
	check("owns", b.owns, func(c *Concept) bool { return c.Kind.IsType() }, KindAttributeType,
		func(typ, attr string) {
			s.owns[typ] = append(s.owns[typ], attr)
		})
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return s, nil
}

// MustBuild is like Build but panics on error. It's meant for tests and
// static schemas.
func (b *Builder) MustBuild() *Schema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

func cyclic(s *Schema, label string) bool {
	seen := make(map[string]bool)
	for c, ok := s.concepts[label]; ok; c, ok = s.concepts[c.Super] {
		if seen[c.Label] {
			return true
		}
		seen[c.Label] = true
	}
	return false
}

func sortedKeys(m map[string]*Concept) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
