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

// Package testkb provides small knowledge bases for tests: a schema, stored
// facts and rule definitions. Rules are returned as patterns, not built, so
// packages below the rules package can use them too.
package testkb

import (
	"context"
	"fmt"

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/kg"
	"github.com/ebay/reasoner/schema"
	"github.com/ebay/reasoner/store/memstore"
)

// RuleDef is an unvalidated rule.
type RuleDef struct {
	Label string
	When  atom.Pattern
	Then  atom.Pattern
}

// KB is a test knowledge base.
type KB struct {
	Schema *schema.Schema
	Store  *memstore.Store
	Rules  []RuleDef
	// IDs of named individuals.
	IDs map[string]uint64
}

// Name returns the name of the individual with the given ID, or "".
func (kb *KB) Name(id uint64) string {
	for name, x := range kb.IDs {
		if x == id {
			return name
		}
	}
	return ""
}

func newKB(sch *schema.Schema) *KB {
	return &KB{
		Schema: sch,
		Store:  memstore.New(sch),
		IDs:    make(map[string]uint64),
	}
}

// entity stores a named entity of type typ and returns its ID.
func (kb *KB) entity(name, typ string, attrs ...interface{}) uint64 {
	atoms := []atom.Atom{atom.Isa("x", typ)}
	var preds []atom.Predicate
	for i := 0; i < len(attrs); i += 2 {
		v := atom.Variable(fmt.Sprintf("a%d", i))
		atoms = append(atoms, atom.Has("x", attrs[i].(string), v))
		preds = append(preds, atom.Val(v, kg.OpEqual, attrs[i+1].(kg.Value)))
	}
	res, err := kb.Store.InsertPattern(atom.Pattern{Atoms: atoms, Predicates: preds})
	if err != nil {
		panic(fmt.Sprintf("testkb: inserting %v: %v", name, err))
	}
	c, _ := res.Get("x")
	kb.IDs[name] = c.ID
	return c.ID
}

// relation stores a relation between named role players. players alternates
// roles and names. If name isn't empty, the relation is recorded under it.
func (kb *KB) relation(name, typ string, players ...string) uint64 {
	var rps []atom.RolePlayer
	bindings := make(map[atom.Variable]kg.Concept)
	for i := 0; i < len(players); i += 2 {
		v := atom.Variable(fmt.Sprintf("p%d", i))
		rps = append(rps, atom.RP(players[i], v))
		id, ok := kb.IDs[players[i+1]]
		if !ok {
			panic(fmt.Sprintf("testkb: unknown individual %q", players[i+1]))
		}
		c, _ := kb.Store.Get(id)
		bindings[v] = c
	}
	q := atom.MustQuery([]atom.Atom{atom.Relation("r", typ, rps...)}, nil)
	res, err := kb.Store.Insert(context.Background(), q, answer.New(bindings))
	if err != nil {
		panic(fmt.Sprintf("testkb: inserting %v: %v", typ, err))
	}
	c, _ := res.Get("r")
	if name != "" {
		kb.IDs[name] = c.ID
	}
	return c.ID
}

var anon = atom.Anonymous

// Lions returns a knowledge base about lion parentage: lions A (male) and B
// (female) mate, their mating bears cub C, and a rule concludes that A and B
// are C's parents.
func Lions() *KB {
	sch := schema.NewBuilder().
		Entity("animal", "").
		Entity("lion", "animal").
		Relation("mating", "", "male-partner", "female-partner").
		Relation("child-bearing", "", "child-bearer", "offspring").
		Relation("parentship", "", "parent", "child").
		Attribute("name", "", kg.KindString).
		Attribute("sex", "", kg.KindString).
		Plays("animal", "male-partner", "female-partner", "offspring", "parent", "child").
		Plays("mating", "child-bearer").
		Owns("animal", "name", "sex").
		MustBuild()
	kb := newKB(sch)
	kb.entity("A", "lion", "name", kg.AString("A"), "sex", kg.AString("male"))
	kb.entity("B", "lion", "name", kg.AString("B"), "sex", kg.AString("female"))
	kb.entity("C", "lion", "name", kg.AString("C"))
	kb.relation("AB", "mating", "male-partner", "A", "female-partner", "B")
	kb.relation("", "child-bearing", "child-bearer", "AB", "offspring", "C")
	kb.Rules = []RuleDef{{
		Label: "mating-parentship",
		When: atom.Pattern{Atoms: []atom.Atom{
			atom.Relation("m", "mating", atom.RP("male-partner", "x"), atom.RP("female-partner", "y")),
			atom.Relation(anon(0), "child-bearing", atom.RP("child-bearer", "m"), atom.RP("offspring", "z")),
		}},
		Then: atom.Pattern{Atoms: []atom.Atom{
			atom.Relation(anon(1), "parentship",
				atom.RP("parent", "x"), atom.RP("parent", "y"), atom.RP("child", "z")),
		}},
	}}
	return kb
}

// Family returns a knowledge base about four generations of people: Ann is
// Bob's parent, Bob is Cat's and Cat is Dan's. Rules conclude ancestry,
// recursively, and which people are adults.
func Family() *KB {
	sch := schema.NewBuilder().
		Entity("person", "").
		Entity("adult", "person").
		Relation("parentship", "", "parent", "child").
		Relation("ancestorship", "", "ancestor", "descendant").
		Attribute("name", "", kg.KindString).
		Attribute("age", "", kg.KindLong).
		Attribute("status", "", kg.KindString).
		Plays("person", "parent", "child", "ancestor", "descendant").
		Owns("person", "name", "age", "status").
		MustBuild()
	kb := newKB(sch)
	kb.entity("Ann", "person", "name", kg.AString("Ann"), "age", kg.ALong(70))
	kb.entity("Bob", "person", "name", kg.AString("Bob"), "age", kg.ALong(45))
	kb.entity("Cat", "person", "name", kg.AString("Cat"), "age", kg.ALong(20))
	kb.entity("Dan", "person", "name", kg.AString("Dan"), "age", kg.ALong(2))
	kb.relation("", "parentship", "parent", "Ann", "child", "Bob")
	kb.relation("", "parentship", "parent", "Bob", "child", "Cat")
	kb.relation("", "parentship", "parent", "Cat", "child", "Dan")
	kb.Rules = []RuleDef{
		{
			Label: "parents-are-ancestors",
			When: atom.Pattern{Atoms: []atom.Atom{
				atom.Relation(anon(0), "parentship", atom.RP("parent", "x"), atom.RP("child", "y")),
			}},
			Then: atom.Pattern{Atoms: []atom.Atom{
				atom.Relation(anon(1), "ancestorship", atom.RP("ancestor", "x"), atom.RP("descendant", "y")),
			}},
		},
		{
			Label: "ancestry-is-transitive",
			When: atom.Pattern{Atoms: []atom.Atom{
				atom.Relation(anon(0), "ancestorship", atom.RP("ancestor", "x"), atom.RP("descendant", "y")),
				atom.Relation(anon(1), "ancestorship", atom.RP("ancestor", "y"), atom.RP("descendant", "z")),
			}},
			Then: atom.Pattern{Atoms: []atom.Atom{
				atom.Relation(anon(2), "ancestorship", atom.RP("ancestor", "x"), atom.RP("descendant", "z")),
			}},
		},
		{
			Label: "adults",
			When: atom.Pattern{
				Atoms:      []atom.Atom{atom.Isa("x", "person"), atom.Has("x", "age", "a")},
				Predicates: []atom.Predicate{atom.Val("a", kg.OpGreaterOrEqual, kg.ALong(18))},
			},
			Then: atom.Pattern{Atoms: []atom.Atom{atom.Isa("x", "adult")}},
		},
		{
			Label: "grown-ups",
			When:  atom.Pattern{Atoms: []atom.Atom{atom.Isa("x", "adult")}},
			Then: atom.Pattern{
				Atoms:      []atom.Atom{atom.Has("x", "status", "s")},
				Predicates: []atom.Predicate{atom.Val("s", kg.OpEqual, kg.AString("grown-up"))},
			},
		},
	}
	return kb
}
