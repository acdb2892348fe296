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

package memstore

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/kg"
	"github.com/ebay/reasoner/schema"
	"github.com/ebay/reasoner/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zooSchema() *schema.Schema {
	return schema.NewBuilder().
		Entity("animal", "").
		Entity("lion", "animal").
		Entity("cub", "lion").
		Entity("keeper", "").
		Relation("parentship", "", "parent", "child").
		Role("father", "parent").
		Relates("parentship", "father").
		Relation("feeding", "", "feeder", "fed").
		Attribute("name", "", kg.KindString).
		Attribute("age", "", kg.KindLong).
		Attribute("weight", "", kg.KindDouble).
		Plays("animal", "parent", "child", "father", "fed").
		Plays("keeper", "feeder").
		Owns("animal", "name", "age", "weight").
		Owns("keeper", "name").
		MustBuild()
}

// zoo holds lions Alex (father of Bea and Cid), Bea and Cid, and keeper Kim
// who feeds Alex.
func zoo(t *testing.T) (*Store, map[string]uint64) {
	s := New(zooSchema())
	ids := make(map[string]uint64)
	for _, l := range []struct {
		name string
		age  int64
	}{{"Alex", 9}, {"Bea", 1}, {"Cid", 3}} {
		res, err := s.InsertPattern(atom.Pattern{
			Atoms: []atom.Atom{atom.Isa("x", "lion"), atom.Has("x", "name", "n"), atom.Has("x", "age", "a")},
			Predicates: []atom.Predicate{
				atom.Val("n", kg.OpEqual, kg.AString(l.name)),
				atom.Val("a", kg.OpEqual, kg.ALong(l.age)),
			},
		})
		require.NoError(t, err)
		c, _ := res.Get("x")
		ids[l.name] = c.ID
	}
	res, err := s.InsertPattern(atom.Pattern{
		Atoms:      []atom.Atom{atom.Isa("k", "keeper"), atom.Has("k", "name", "n")},
		Predicates: []atom.Predicate{atom.Val("n", kg.OpEqual, kg.AString("Kim"))},
	})
	require.NoError(t, err)
	c, _ := res.Get("k")
	ids["Kim"] = c.ID
	for _, child := range []string{"Bea", "Cid"} {
		insertRelation(t, s, ids, "parentship", "father", "Alex", "child", child)
	}
	insertRelation(t, s, ids, "feeding", "feeder", "Kim", "fed", "Alex")
	return s, ids
}

func insertRelation(t *testing.T, s *Store, ids map[string]uint64, typ string, players ...string) kg.Concept {
	var rps []atom.RolePlayer
	bindings := make(map[atom.Variable]kg.Concept)
	for i := 0; i < len(players); i += 2 {
		v := atom.Variable(fmt.Sprintf("p%d", i))
		rps = append(rps, atom.RP(players[i], v))
		c, ok := s.Get(ids[players[i+1]])
		require.True(t, ok)
		bindings[v] = c
	}
	q := atom.MustQuery([]atom.Atom{atom.Relation("r", typ, rps...)}, nil)
	res, err := s.Insert(context.Background(), q, answer.New(bindings))
	require.NoError(t, err)
	c, _ := res.Get("r")
	return c
}

func execute(t *testing.T, s *Store, q *atom.Query) []answer.Answer {
	res, err := store.ExecuteAll(context.Background(), s, q)
	require.NoError(t, err)
	return res
}

// names returns the names of the concepts bound to v, sorted.
func names(s *Store, ids map[string]uint64, answers []answer.Answer, v atom.Variable) []string {
	var res []string
	for _, a := range answers {
		c, _ := a.Get(v)
		for name, id := range ids {
			if id == c.ID {
				res = append(res, name)
			}
		}
	}
	sort.Strings(res)
	return res
}

func Test_InsertPattern(t *testing.T) {
	s, ids := zoo(t)
	// 4 entities, 3 names + Kim, 3 ages, 3 relations.
	assert.Equal(t, 14, s.Len())
	assert.Equal(t, 3, s.Count("lion"))
	assert.Equal(t, 3, s.Count("animal"))
	assert.Equal(t, 0, s.Count("cub"))
	assert.Equal(t, 2, s.Count("parentship"))
	assert.Equal(t, 3, s.Count(schema.Relation))

	c, ok := s.Get(ids["Alex"])
	require.True(t, ok)
	assert.Equal(t, "lion", c.Type)
	assert.False(t, c.Inferred)

	// Attributes with the same value are shared.
	before := s.Len()
	res, err := s.InsertPattern(atom.Pattern{
		Atoms:      []atom.Atom{atom.Isa("x", "lion"), atom.Has("x", "age", "a")},
		Predicates: []atom.Predicate{atom.Val("a", kg.OpEqual, kg.ALong(9))},
	})
	require.NoError(t, err)
	assert.Equal(t, before+1, s.Len())
	age, _ := res.Get("a")
	found, ok, err := s.FindAttribute(context.Background(), "age", kg.ALong(9))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, found.ID, age.ID)
}

func Test_InsertPattern_errors(t *testing.T) {
	s := New(zooSchema())
	tests := []struct {
		name string
		p    atom.Pattern
		err  string
	}{
		{
			name: "unknown label",
			p:    atom.Pattern{Atoms: []atom.Atom{atom.Isa("x", "tiger")}},
			err:  "tiger",
		},
		{
			name: "attribute without value",
			p:    atom.Pattern{Atoms: []atom.Atom{atom.Isa("x", "lion"), atom.Has("x", "age", "a")}},
			err:  "needs exactly one value",
		},
		{
			name: "wrong datatype",
			p: atom.Pattern{
				Atoms:      []atom.Atom{atom.Isa("x", "lion"), atom.Has("x", "age", "a")},
				Predicates: []atom.Predicate{atom.Val("a", kg.OpEqual, kg.AString("old"))},
			},
			err: "can't hold",
		},
		{
			name: "meta role",
			p: atom.Pattern{Atoms: []atom.Atom{
				atom.Isa("x", "lion"),
				atom.Relation("r", "parentship", atom.RP("", "x")),
			}},
			err: "needs a specific role",
		},
		{
			name: "unrelated role",
			p: atom.Pattern{Atoms: []atom.Atom{
				atom.Isa("x", "lion"),
				atom.Relation("r", "parentship", atom.RP("fed", "x")),
			}},
			err: "doesn't relate role",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := s.InsertPattern(test.p)
			require.Error(t, err)
			assert.ErrorIs(t, err, store.ErrInsert)
			assert.Contains(t, err.Error(), test.err)
		})
	}
}

func Test_Insert_weightFromLong(t *testing.T) {
	s := New(zooSchema())
	res, err := s.InsertPattern(atom.Pattern{
		Atoms:      []atom.Atom{atom.Isa("x", "lion"), atom.Has("x", "weight", "w")},
		Predicates: []atom.Predicate{atom.Val("w", kg.OpEqual, kg.ALong(190))},
	})
	require.NoError(t, err)
	w, _ := res.Get("w")
	assert.Equal(t, kg.KindDouble, w.Value.Kind())
	assert.Equal(t, 190.0, w.Value.ValDouble())
}

func Test_Insert_inferred(t *testing.T) {
	s, ids := zoo(t)
	ctx := context.Background()
	alex, _ := s.Get(ids["Alex"])
	cid, _ := s.Get(ids["Cid"])

	// The same relation is reused, not duplicated.
	before := s.Len()
	rel := insertRelation(t, s, ids, "parentship", "child", "Cid", "father", "Alex")
	assert.Equal(t, before, s.Len())
	found, ok, err := s.FindRelation(ctx, "parentship", []store.RolePlayer{
		{Role: "father", Player: ids["Alex"]},
		{Role: "child", Player: ids["Cid"]},
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rel.ID, found.ID)
	_, ok, err = s.FindRelation(ctx, "parentship", []store.RolePlayer{
		{Role: "parent", Player: ids["Alex"]},
		{Role: "child", Player: ids["Cid"]},
	})
	require.NoError(t, err)
	assert.False(t, ok, "roles must match exactly")

	// An inferred relation keeps its ID once stored.
	inferred := kg.Concept{ID: kg.InferredID("parentship cid alex"), Type: "parentship", Inferred: true}
	q := atom.MustQuery([]atom.Atom{atom.Relation("r", "parentship",
		atom.RP("parent", "x"), atom.RP("child", "y"))}, nil)
	res, err := s.Insert(ctx, q, answer.New(map[atom.Variable]kg.Concept{
		"r": inferred, "x": cid, "y": alex,
	}))
	require.NoError(t, err)
	r, _ := res.Get("r")
	assert.Equal(t, inferred.ID, r.ID)
	assert.False(t, r.Inferred)
	stored, ok := s.Get(inferred.ID)
	require.True(t, ok)
	assert.Equal(t, "parentship", stored.Type)

	// An isa conclusion narrows the stored type.
	q = atom.MustQuery([]atom.Atom{atom.Isa("x", "cub")}, nil)
	_, err = s.Insert(ctx, q, answer.New(map[atom.Variable]kg.Concept{"x": cid}))
	require.NoError(t, err)
	c, _ := s.Get(ids["Cid"])
	assert.Equal(t, "cub", c.Type)
	assert.Equal(t, 1, s.Count("cub"))
	assert.Equal(t, 3, s.Count("lion"))

	// It can't make a keeper a cub.
	kim, _ := s.Get(ids["Kim"])
	_, err = s.Insert(ctx, q, answer.New(map[atom.Variable]kg.Concept{"x": kim}))
	assert.ErrorIs(t, err, store.ErrInsert)
}

func Test_Execute(t *testing.T) {
	s, ids := zoo(t)
	tests := []struct {
		name  string
		atoms []atom.Atom
		preds []atom.Predicate
		v     atom.Variable
		exp   []string
	}{
		{
			name:  "isa",
			atoms: []atom.Atom{atom.Isa("x", "animal")},
			v:     "x",
			exp:   []string{"Alex", "Bea", "Cid"},
		},
		{
			name:  "direct isa",
			atoms: []atom.Atom{atom.IsaDirect("x", "animal")},
			v:     "x",
		},
		{
			name:  "role hierarchy",
			atoms: []atom.Atom{atom.Relation("r", "parentship", atom.RP("parent", "x"), atom.RP("child", "y"))},
			v:     "y",
			exp:   []string{"Bea", "Cid"},
		},
		{
			name:  "untyped relation",
			atoms: []atom.Atom{atom.Relation("r", "", atom.RP("", "x"), atom.RP("", "y"))},
			preds: []atom.Predicate{atom.ID("y", ids["Alex"])},
			v:     "x",
			exp:   []string{"Bea", "Cid", "Kim"},
		},
		{
			name: "attribute predicate",
			atoms: []atom.Atom{
				atom.Isa("x", "lion"), atom.Has("x", "age", "a"),
			},
			preds: []atom.Predicate{atom.Val("a", kg.OpGreater, kg.ALong(2))},
			v:     "x",
			exp:   []string{"Alex", "Cid"},
		},
		{
			name: "join",
			atoms: []atom.Atom{
				atom.Relation("f", "feeding", atom.RP("feeder", "k"), atom.RP("fed", "p")),
				atom.Relation("r", "parentship", atom.RP("parent", "p"), atom.RP("child", "c")),
				atom.Has("c", "name", "n"),
			},
			preds: []atom.Predicate{atom.Val("n", kg.OpContains, kg.AString("e"))},
			v:     "c",
			exp:   []string{"Bea"},
		},
		{
			name:  "ids",
			atoms: []atom.Atom{atom.Isa("x", "animal")},
			preds: []atom.Predicate{atom.ID("x", ids["Bea"]), atom.ID("x", ids["Kim"])},
			v:     "x",
			exp:   []string{"Bea"},
		},
		{
			name: "repeated role players must differ",
			atoms: []atom.Atom{
				atom.Relation("r", "parentship", atom.RP("parent", "x"), atom.RP("parent", "y")),
			},
			v: "x",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			q := atom.MustQuery(test.atoms, test.preds, test.v)
			assert.Equal(t, test.exp, names(s, ids, execute(t, s, q), test.v))
		})
	}
}

func Test_Execute_projects(t *testing.T) {
	s, _ := zoo(t)
	q := atom.MustQuery([]atom.Atom{
		atom.Relation("r", "parentship", atom.RP("parent", "x"), atom.RP("child", "y")),
	}, nil, "x")
	res := execute(t, s, q)
	require.Len(t, res, 1)
	assert.Equal(t, atom.NewVarSet("x"), res[0].Vars())
}

func Test_Execute_chunks(t *testing.T) {
	s, _ := zoo(t)
	s.SetChunkSize(2)
	q := atom.MustQuery([]atom.Atom{atom.Isa("x", schema.Entity)}, nil)
	resCh := make(chan []answer.Answer, 10)
	require.NoError(t, s.Execute(context.Background(), q, resCh))
	var sizes []int
	for chunk := range resCh {
		sizes = append(sizes, len(chunk))
	}
	assert.Equal(t, []int{2, 2}, sizes)
}

func Test_Execute_errors(t *testing.T) {
	s, _ := zoo(t)
	q := atom.MustQuery([]atom.Atom{atom.Isa("x", "tiger")}, nil)
	resCh := make(chan []answer.Answer, 1)
	assert.Error(t, s.Execute(context.Background(), q, resCh))
	_, open := <-resCh
	assert.False(t, open)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q = atom.MustQuery([]atom.Atom{atom.Isa("x", schema.Entity)}, nil)
	resCh = make(chan []answer.Answer)
	assert.Equal(t, context.Canceled, s.Execute(ctx, q, resCh))
}
