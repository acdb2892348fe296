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

package parser

import (
	"testing"

	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/internal/testkb"
	"github.com/ebay/reasoner/kg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var anon = atom.Anonymous

func Test_Parse(t *testing.T) {
	type test struct {
		name  string
		input string
		exp   atom.Pattern
	}
	tests := []test{{
		name:  "isa",
		input: "$x isa person;",
		exp:   atom.Pattern{Atoms: []atom.Atom{atom.Isa("x", "person")}},
	}, {
		name:  "direct isa",
		input: "$x isa! lion;",
		exp:   atom.Pattern{Atoms: []atom.Atom{atom.IsaDirect("x", "lion")}},
	}, {
		name:  "properties",
		input: `$x isa person, has name "Alex", has age $a; $a >= 18;`,
		exp: atom.Pattern{
			Atoms: []atom.Atom{
				atom.Isa("x", "person"),
				atom.Has("x", "name", anon(0)),
				atom.Has("x", "age", "a"),
			},
			Predicates: []atom.Predicate{
				atom.Val(anon(0), kg.OpEqual, kg.AString("Alex")),
				atom.Val("a", kg.OpGreaterOrEqual, kg.ALong(18)),
			},
		},
	}, {
		name:  "named relation",
		input: "$r (parent: $x, child: $y) isa parentship;",
		exp: atom.Pattern{Atoms: []atom.Atom{
			atom.Relation("r", "parentship", atom.RP("parent", "x"), atom.RP("child", "y")),
		}},
	}, {
		name:  "unnamed relation",
		input: "(parent: $x, $y) isa! parentship, has since 1999;",
		exp: atom.Pattern{
			Atoms: []atom.Atom{
				{Kind: atom.KindRelation, Var: anon(0), Type: "parentship", Direct: true,
					RolePlayers: []atom.RolePlayer{atom.RP("parent", "x"), atom.RP("", "y")}},
				atom.Has(anon(0), "since", anon(1)),
			},
			Predicates: []atom.Predicate{atom.Val(anon(1), kg.OpEqual, kg.ALong(1999))},
		},
	}, {
		name:  "untyped relation",
		input: "$r ($x, $y);",
		exp: atom.Pattern{Atoms: []atom.Atom{
			atom.Relation("r", "", atom.RP("", "x"), atom.RP("", "y")),
		}},
	}, {
		name:  "ids and doubles",
		input: "$x id 12; $x has weight 3.5;",
		exp: atom.Pattern{
			Atoms: []atom.Atom{atom.Has("x", "weight", anon(0))},
			Predicates: []atom.Predicate{
				atom.ID("x", 12),
				atom.Val(anon(0), kg.OpEqual, kg.ADouble(3.5)),
			},
		},
	}, {
		name:  "contains",
		input: `$x has name contains "al";`,
		exp: atom.Pattern{
			Atoms:      []atom.Atom{atom.Has("x", "name", anon(0))},
			Predicates: []atom.Predicate{atom.Val(anon(0), kg.OpContains, kg.AString("al"))},
		},
	}, {
		name:  "booleans",
		input: "$x has alive true, has name;",
		exp: atom.Pattern{
			Atoms: []atom.Atom{
				atom.Has("x", "alive", anon(0)),
				atom.Has("x", "name", anon(1)),
			},
			Predicates: []atom.Predicate{atom.Val(anon(0), kg.OpEqual, kg.ABoolean(true))},
		},
	}, {
		name:  "operators",
		input: "$a != 1; $a < 9; $a <= 8; $a > 2; $a == 4;",
		exp: atom.Pattern{Predicates: []atom.Predicate{
			atom.Val("a", kg.OpNotEqual, kg.ALong(1)),
			atom.Val("a", kg.OpLess, kg.ALong(9)),
			atom.Val("a", kg.OpLessOrEqual, kg.ALong(8)),
			atom.Val("a", kg.OpGreater, kg.ALong(2)),
			atom.Val("a", kg.OpEqual, kg.ALong(4)),
		}},
	}, {
		name:  "disjunction",
		input: "$x isa person; { $x has age < 10; } or { $x isa adult; };",
		exp: atom.Pattern{
			Atoms: []atom.Atom{atom.Isa("x", "person")},
			Or: []atom.Disjunction{{
				{
					Atoms:      []atom.Atom{atom.Has("x", "age", anon(0))},
					Predicates: []atom.Predicate{atom.Val(anon(0), kg.OpLess, kg.ALong(10))},
				},
				{Atoms: []atom.Atom{atom.Isa("x", "adult")}},
			}},
		},
	}, {
		name:  "comments",
		input: "# people\n$x isa person; # and nothing else\n",
		exp:   atom.Pattern{Atoms: []atom.Atom{atom.Isa("x", "person")}},
	}, {
		name:  "anonymous names avoid named ones",
		input: "$_0 isa person; (member: $_0) isa group;",
		exp: atom.Pattern{Atoms: []atom.Atom{
			atom.Isa(anon(0), "person"),
			atom.Relation(anon(1), "group", atom.RP("member", anon(0))),
		}},
	}}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			actual, err := Parse(test.input)
			require.NoError(t, err)
			assert.Equal(t, test.exp, actual)
		})
	}
}

func Test_Parse_errors(t *testing.T) {
	inputs := []string{
		"",
		"$x isa;",
		"$x isa person",
		"$x (parent: ) isa parentship;",
		"$x isa person; }",
		"$x has age >= ;",
		"{ $x isa person; };",
		"$x id twelve;",
		"x isa person;",
		"$x isa has;",
		"$x has isa;",
		"(parent: $x, id: $y) isa parentship;",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			assert.ErrorIs(t, err, ErrSyntax)
		})
	}
}

func Test_Parse_normalizes(t *testing.T) {
	pattern, err := Parse("$x has name \"Zoe\u0308\";")
	require.NoError(t, err)
	require.Len(t, pattern.Predicates, 1)
	assert.Equal(t, kg.AString("Zo\u00eb"), pattern.Predicates[0].(atom.ValuePredicate).Value)
}

func Test_Parse_labels(t *testing.T) {
	pattern, err := Parse("$match isa café-owner_2, has âge $id;")
	require.NoError(t, err)
	assert.Equal(t, []atom.Atom{
		atom.Isa("match", "café-owner_2"),
		atom.Has("match", "âge", "id"),
	}, pattern.Atoms)

	_, err = Parse("$x isa id;")
	if assert.ErrorIs(t, err, ErrSyntax) {
		assert.Contains(t, err.Error(), `not keyword "id"`)
	}
}

func Test_Parse_roundTrip(t *testing.T) {
	inputs := []string{
		"$x isa person; $x has age $a; $a >= 18;",
		"$r (parent: $x, child: $y) isa! parentship; $x id 3;",
		`$x isa person; { $x has name $n; $n contains "a"; } or { $x isa adult; };`,
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			pattern, err := Parse(input)
			require.NoError(t, err)
			assert.Equal(t, input, pattern.String())
			again, err := Parse(pattern.String())
			require.NoError(t, err)
			assert.Equal(t, pattern, again)
		})
	}
}

func Test_MustParse(t *testing.T) {
	input := "$x isa person; $x has age $a; $a >= 18;"
	pattern, err := Parse(input)
	require.NoError(t, err)
	assert.Equal(t, pattern, MustParse(input))
	assert.PanicsWithValue(t, `parser.MustParse("$x isa"): `+errString(t, "$x isa"), func() {
		MustParse("$x isa")
	})
}

func errString(t *testing.T, input string) string {
	_, err := Parse(input)
	require.Error(t, err)
	return err.Error()
}

func Test_ParseQuery(t *testing.T) {
	q, err := ParseQuery("match $x isa person, has age $a; get $x, $a; limit 5;")
	require.NoError(t, err)
	assert.Equal(t, []atom.Variable{"x", "a"}, q.Get)
	assert.Equal(t, uint64(5), q.Limit)
	assert.Len(t, q.Match.Atoms, 2)

	q, err = ParseQuery("match $x isa person;")
	require.NoError(t, err)
	assert.Nil(t, q.Get)
	assert.Zero(t, q.Limit)

	q, err = ParseQuery("match $x isa person; limit 1;")
	require.NoError(t, err)
	assert.Nil(t, q.Get)
	assert.Equal(t, uint64(1), q.Limit)

	_, err = ParseQuery("$x isa person;")
	assert.ErrorIs(t, err, ErrSyntax)
	_, err = ParseQuery("match $x isa person; get $x")
	assert.ErrorIs(t, err, ErrSyntax)
}

const familyRules = `
# Ancestry follows parentship, transitively.
rule parents-are-ancestors: when {
	(parent: $x, child: $y) isa parentship;
} then {
	(ancestor: $x, descendant: $y) isa ancestorship;
};
rule ancestry-is-transitive: when {
	(ancestor: $x, descendant: $y) isa ancestorship;
	(ancestor: $y, descendant: $z) isa ancestorship;
} then {
	(ancestor: $x, descendant: $z) isa ancestorship;
};
rule adults: when { $x isa person, has age $a; $a >= 18; } then { $x isa adult; };
rule grown-ups: when { $x isa adult; } then { $x has status $s; $s = "grown-up"; }
`

func Test_ParseRules(t *testing.T) {
	parsed, err := ParseRules(familyRules)
	require.NoError(t, err)
	exp := testkb.Family().Rules
	require.Len(t, parsed, len(exp))
	for i := range exp {
		assert.Equal(t, exp[i].Label, parsed[i].Label)
		assert.Equal(t, exp[i].When, parsed[i].When, "when of %s", exp[i].Label)
		assert.Equal(t, exp[i].Then, parsed[i].Then, "then of %s", exp[i].Label)
	}

	none, err := ParseRules("  # nothing here\n")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = ParseRules("rule broken: when { $x isa person; }")
	assert.ErrorIs(t, err, ErrSyntax)
}

func Test_ParseValue(t *testing.T) {
	tests := map[string]kg.Value{
		"true":      kg.ABoolean(true),
		"false":     kg.ABoolean(false),
		"42":        kg.ALong(42),
		"2.5":       kg.ADouble(2.5),
		`"a \"b\""`: kg.AString(`a "b"`),
	}
	for input, exp := range tests {
		actual, err := ParseValue(input)
		if assert.NoError(t, err, input) {
			assert.Equal(t, exp, actual, input)
		}
	}
	_, err := ParseValue("person")
	assert.ErrorIs(t, err, ErrSyntax)
}
