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

package resolve

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/config"
	"github.com/ebay/reasoner/internal/testkb"
	"github.com/ebay/reasoner/kg"
	"github.com/ebay/reasoner/rules"
	"github.com/ebay/reasoner/store"
	"github.com/ebay/reasoner/util/cmp"
	"github.com/ebay/reasoner/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, kb *testkb.KB, opts Options) *Engine {
	rc, err := rules.NewCache(kb.Schema)
	require.NoError(t, err)
	for _, def := range kb.Rules {
		r, err := rules.New(kb.Schema, def.Label, def.When, def.Then)
		require.NoError(t, err, def.Label)
		require.NoError(t, rc.Add(r))
	}
	return New(kb.Store, rc, opts)
}

func resolve(t *testing.T, e *Engine, q *atom.Query) []answer.Answer {
	s, err := e.Resolve(context.Background(), q)
	require.NoError(t, err)
	return s.Collect()
}

// describe renders answers using the names of the individuals they bind,
// sorted.
func describe(kb *testkb.KB, answers []answer.Answer, vars ...atom.Variable) []string {
	res := make([]string, len(answers))
	for i, a := range answers {
		s := ""
		for _, v := range vars {
			c, _ := a.Get(v)
			name := kb.Name(c.ID)
			if name == "" {
				name = c.String()
			}
			s += fmt.Sprintf("%v=%v ", v, name)
		}
		res[i] = s[:len(s)-1]
	}
	sort.Strings(res)
	return res
}

func keys(answers []answer.Answer) []string {
	res := make([]string, len(answers))
	for i, a := range answers {
		res[i] = cmp.GetKey(a)
	}
	sort.Strings(res)
	return res
}

func parentshipQuery(preds ...atom.Predicate) *atom.Query {
	return atom.MustQuery([]atom.Atom{atom.Relation("p", "parentship",
		atom.RP("parent", "x"), atom.RP("parent", "y"), atom.RP("child", "z"))}, preds)
}

func ancestryQuery(preds ...atom.Predicate) *atom.Query {
	return atom.MustQuery([]atom.Atom{atom.Relation("r", "ancestorship",
		atom.RP("ancestor", "x"), atom.RP("descendant", "y"))}, preds, "x", "y")
}

func Test_Lions_parentship(t *testing.T) {
	kb := testkb.Lions()
	e := newEngine(t, kb, Options{})
	res := resolve(t, e, parentshipQuery())
	// One answer per assignment of the mating pair to $x and $y.
	assert.Equal(t, []string{
		"$x=A $y=B $z=C",
		"$x=B $y=A $z=C",
	}, describe(kb, res, "x", "y", "z"))

	p0, _ := res[0].Get("p")
	p1, _ := res[1].Get("p")
	assert.Equal(t, p0.ID, p1.ID, "one parentship, whichever parent is $x")
	assert.True(t, p0.Inferred)
	assert.True(t, kg.IsInferredID(p0.ID))
	assert.Equal(t, "parentship", p0.Type)

	for _, a := range res {
		require.NotNil(t, a.Explanation)
		assert.Equal(t, "mating-parentship", a.Explanation.Rule)
		require.Len(t, a.Explanation.Answers, 1)
		assert.Nil(t, a.Explanation.Answers[0].Explanation, "the body matches stored facts")
		m, ok := a.Explanation.Answers[0].Get("m")
		require.True(t, ok)
		assert.Equal(t, kb.IDs["AB"], m.ID)
	}

	q, err := parentshipQuery().Select("p", "z")
	require.NoError(t, err)
	res = resolve(t, e, q)
	require.Len(t, res, 1)
	z, _ := res[0].Get("z")
	assert.Equal(t, kb.IDs["C"], z.ID)
}

func Test_Lions_ids(t *testing.T) {
	kb := testkb.Lions()
	e := newEngine(t, kb, Options{})
	res := resolve(t, e, parentshipQuery(atom.ID("x", kb.IDs["A"])))
	assert.Equal(t, []string{"$x=A $y=B $z=C"}, describe(kb, res, "x", "y", "z"))

	res = resolve(t, e, parentshipQuery(atom.ID("z", kb.IDs["B"])))
	assert.Empty(t, res)
}

func Test_Lions_noRules(t *testing.T) {
	kb := testkb.Lions()
	e := New(kb.Store, nil, Options{})
	assert.Empty(t, resolve(t, e, parentshipQuery()))
	q := atom.MustQuery([]atom.Atom{atom.Relation("m", "mating",
		atom.RP("male-partner", "x"), atom.RP("female-partner", "y"))}, nil, "x", "y")
	assert.Equal(t, []string{"$x=A $y=B"}, describe(kb, resolve(t, e, q), "x", "y"))
}

func Test_Lions_untypedRelation(t *testing.T) {
	kb := testkb.Lions()
	e := newEngine(t, kb, Options{})
	q := atom.MustQuery([]atom.Atom{
		atom.Relation("r", "", atom.RP("", "x"), atom.RP("", "y")),
	}, []atom.Predicate{atom.ID("y", kb.IDs["C"])}, "x")
	// C is the offspring of the mating, and the child of A and B.
	assert.Equal(t, []string{"$x=A", "$x=AB", "$x=B"}, describe(kb, resolve(t, e, q), "x"))
}

var allAncestry = []string{
	"$x=Ann $y=Bob",
	"$x=Ann $y=Cat",
	"$x=Ann $y=Dan",
	"$x=Bob $y=Cat",
	"$x=Bob $y=Dan",
	"$x=Cat $y=Dan",
}

func Test_Family_transitiveClosure(t *testing.T) {
	kb := testkb.Family()
	e := newEngine(t, kb, Options{})
	assert.Equal(t, allAncestry, describe(kb, resolve(t, e, ancestryQuery()), "x", "y"))

	res := resolve(t, e, ancestryQuery(atom.ID("x", kb.IDs["Bob"])))
	assert.Equal(t, []string{"$x=Bob $y=Cat", "$x=Bob $y=Dan"}, describe(kb, res, "x", "y"))
}

func Test_Family_transitiveClosureWithIDs(t *testing.T) {
	// Unlike above, no cached answers for the unconstrained query are
	// available.
	kb := testkb.Family()
	e := newEngine(t, kb, Options{})
	res := resolve(t, e, ancestryQuery(atom.ID("y", kb.IDs["Dan"])))
	assert.Equal(t, []string{
		"$x=Ann $y=Dan",
		"$x=Bob $y=Dan",
		"$x=Cat $y=Dan",
	}, describe(kb, res, "x", "y"))
}

func Test_Family_explanationTree(t *testing.T) {
	kb := testkb.Family()
	e := newEngine(t, kb, Options{})
	res := resolve(t, e, ancestryQuery(atom.ID("x", kb.IDs["Ann"]), atom.ID("y", kb.IDs["Dan"])))
	require.Len(t, res, 1)
	expl := res[0].Explanation
	require.NotNil(t, expl)
	assert.Equal(t, "ancestry-is-transitive", expl.Rule)
	require.Len(t, expl.Answers, 1)

	// Ann to Dan goes through Bob or Cat. Either way one step is a parentship
	// and the other is itself transitive.
	body := expl.Answers[0].Explanation
	require.NotNil(t, body, "the rule body joins two derived ancestries")
	assert.Empty(t, body.Rule)
	require.Len(t, body.Answers, 2)
	var rules []string
	for _, part := range body.Answers {
		require.NotNil(t, part.Explanation)
		rules = append(rules, part.Explanation.Rule)
	}
	assert.ElementsMatch(t, []string{"parents-are-ancestors", "ancestry-is-transitive"}, rules)
}

func Test_Family_isa(t *testing.T) {
	kb := testkb.Family()
	e := newEngine(t, kb, Options{})
	adults := resolve(t, e, atom.MustQuery([]atom.Atom{atom.Isa("x", "adult")}, nil))
	assert.Equal(t, []string{"$x=Ann", "$x=Bob", "$x=Cat"}, describe(kb, adults, "x"))
	for _, a := range adults {
		x, _ := a.Get("x")
		assert.Equal(t, "adult", x.Type)
		assert.Equal(t, "adults", a.Explanation.Rule)
	}
	people := resolve(t, e, atom.MustQuery([]atom.Atom{atom.Isa("x", "person")}, nil))
	assert.Len(t, people, 4)
	direct := resolve(t, e, atom.MustQuery([]atom.Atom{atom.IsaDirect("x", "person")}, nil))
	assert.Len(t, direct, 4, "stored people are direct instances of person")
}

func Test_Family_attribute(t *testing.T) {
	kb := testkb.Family()
	e := newEngine(t, kb, Options{})
	q := atom.MustQuery([]atom.Atom{atom.Has("x", "status", "s")}, nil)
	res := resolve(t, e, q)
	assert.Equal(t, []string{"$x=Ann", "$x=Bob", "$x=Cat"}, describe(kb, res, "x"))
	var statusIDs []uint64
	for _, a := range res {
		s, _ := a.Get("s")
		assert.Equal(t, kg.AString("grown-up"), s.Value)
		assert.Equal(t, "status", s.Type)
		assert.True(t, s.Inferred)
		statusIDs = append(statusIDs, s.ID)
	}
	assert.Equal(t, statusIDs[0], statusIDs[1], "all share one attribute")

	q = atom.MustQuery([]atom.Atom{atom.Has("x", "status", "s")},
		[]atom.Predicate{atom.Val("s", kg.OpEqual, kg.AString("teen"))})
	assert.Empty(t, resolve(t, e, q))
	q = atom.MustQuery([]atom.Atom{atom.Has("x", "status", "s")},
		[]atom.Predicate{atom.Val("s", kg.OpContains, kg.AString("grown"))})
	assert.Len(t, resolve(t, e, q), 3)
}

func Test_Family_conjunction(t *testing.T) {
	kb := testkb.Family()
	e := newEngine(t, kb, Options{})
	q := atom.MustQuery([]atom.Atom{
		atom.Isa("y", "adult"),
		atom.Relation("r", "parentship", atom.RP("parent", "x"), atom.RP("child", "y")),
	}, nil, "x", "y")
	assert.Equal(t, []string{"$x=Ann $y=Bob", "$x=Bob $y=Cat"}, describe(kb, resolve(t, e, q), "x", "y"))

	q = atom.MustQuery([]atom.Atom{
		atom.Relation("r", "ancestorship", atom.RP("ancestor", "x"), atom.RP("descendant", "y")),
		atom.Has("y", "status", "s"),
		atom.Has("x", "age", "a"),
	}, []atom.Predicate{atom.Val("a", kg.OpGreater, kg.ALong(50))}, "y")
	assert.Equal(t, []string{"$y=Bob", "$y=Cat"}, describe(kb, resolve(t, e, q), "y"))
}

func Test_cacheIdempotence(t *testing.T) {
	kb := testkb.Family()
	e := newEngine(t, kb, Options{})
	first := resolve(t, e, ancestryQuery())
	exact, structural := e.CacheLen()
	assert.True(t, exact > 0)
	assert.True(t, structural > 0)
	changes := e.changes.Load()

	second := resolve(t, e, ancestryQuery())
	assert.Equal(t, keys(first), keys(second))
	assert.Equal(t, changes, e.changes.Load())
	exact2, structural2 := e.CacheLen()
	assert.Equal(t, exact, exact2)
	assert.Equal(t, structural, structural2)

	// Renaming variables hits the same entries.
	renamed := atom.MustQuery([]atom.Atom{atom.Relation("rel", "ancestorship",
		atom.RP("ancestor", "a"), atom.RP("descendant", "d"))}, nil, "a", "d")
	assert.Len(t, resolve(t, e, renamed), 6)
	assert.Equal(t, changes, e.changes.Load())
}

func Test_soundness(t *testing.T) {
	kb := testkb.Family()
	e := newEngine(t, kb, Options{Materialize: true})
	ctx := context.Background()
	for _, q := range []*atom.Query{
		ancestryQuery(),
		atom.MustQuery([]atom.Atom{atom.Isa("x", "adult")}, nil),
		atom.MustQuery([]atom.Atom{atom.Has("x", "status", "s")}, nil),
	} {
		inferred := resolve(t, e, q)
		stored, err := store.ExecuteAll(ctx, kb.Store, q)
		require.NoError(t, err)
		assert.Equal(t, keys(inferred), keys(stored), "%v", q)
	}
	assert.Equal(t, 3, kb.Store.Count("adult"))
	assert.Equal(t, 6, kb.Store.Count("ancestorship"))

	// With the facts stored, rules add nothing new.
	fresh := newEngine(t, kb, Options{})
	assert.Equal(t, allAncestry, describe(kb, resolve(t, fresh, ancestryQuery()), "x", "y"))
	assert.Equal(t, 6, kb.Store.Count("ancestorship"))
}

func Test_limits(t *testing.T) {
	kb := testkb.Family()
	e := newEngine(t, kb, Options{MaxDepth: 1})
	_, err := e.Resolve(context.Background(), atom.MustQuery([]atom.Atom{atom.Has("x", "status", "s")}, nil))
	assert.ErrorIs(t, err, ErrRecursionLimit)

	e = newEngine(t, kb, Options{MaxIterations: 2})
	_, err = e.Resolve(context.Background(), ancestryQuery())
	assert.ErrorIs(t, err, ErrIterationLimit)
	// This one reaches a fixpoint on its second pass.
	assert.Len(t, resolve(t, e, atom.MustQuery([]atom.Atom{atom.Has("x", "status", "s")}, nil)), 3)
}

func Test_Options(t *testing.T) {
	kb := testkb.Family()
	e := New(kb.Store, nil, Options{})
	assert.Equal(t, Options{MaxDepth: DefaultMaxDepth, MaxIterations: DefaultMaxIterations}, e.Options())
	opts := OptionsFromConfig(config.Resolution{MaxDepth: 3, Materialize: true})
	assert.Equal(t, Options{MaxDepth: 3, Materialize: true}, opts)
	assert.Equal(t, 3, New(kb.Store, nil, opts).Options().MaxDepth)
}

func Test_Resolve_errors(t *testing.T) {
	kb := testkb.Family()
	e := newEngine(t, kb, Options{})
	_, err := e.Resolve(context.Background(), atom.MustQuery([]atom.Atom{atom.Isa("x", "dragon")}, nil))
	assert.ErrorIs(t, err, atom.ErrUnknownLabel)
	_, err = e.Resolve(context.Background(), atom.MustQuery([]atom.Atom{
		atom.Isa("x", "person"), atom.Isa("x", "parentship"),
	}, nil))
	assert.ErrorIs(t, err, atom.ErrDisjointTypes)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Resolve(ctx, ancestryQuery())
	assert.ErrorIs(t, err, context.Canceled)
}

func Test_ResolvePattern(t *testing.T) {
	kb := testkb.Family()
	p := atom.Pattern{Or: []atom.Disjunction{{
		{Atoms: []atom.Atom{atom.Isa("x", "adult")}},
		{
			Atoms:      []atom.Atom{atom.Isa("x", "person"), atom.Has("x", "name", "n")},
			Predicates: []atom.Predicate{atom.Val("n", kg.OpEqual, kg.AString("Dan"))},
		},
		{
			Atoms:      []atom.Atom{atom.Isa("x", "person"), atom.Has("x", "age", "a")},
			Predicates: []atom.Predicate{atom.Val("a", kg.OpGreater, kg.ALong(60))},
		},
	}}}
	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			e := newEngine(t, kb, Options{ParallelDisjuncts: parallel})
			s, err := e.ResolvePattern(context.Background(), p, "x")
			require.NoError(t, err)
			assert.Equal(t, []string{"$x=Ann", "$x=Bob", "$x=Cat", "$x=Dan"},
				describe(kb, s.Collect(), "x"))
		})
	}
	e := newEngine(t, kb, Options{})
	_, err := e.ResolvePattern(context.Background(), p, "nope")
	assert.ErrorIs(t, err, atom.ErrUnboundVariable)
}

func Test_AddRemoveRule(t *testing.T) {
	kb := testkb.Family()
	e := New(kb.Store, nil, Options{})
	assert.Empty(t, resolve(t, e, ancestryQuery()))

	def := kb.Rules[0]
	_, err := e.AddRule(def.Label, def.When, def.Then)
	require.NoError(t, err)
	assert.Len(t, resolve(t, e, ancestryQuery()), 3)
	def = kb.Rules[1]
	_, err = e.AddRule(def.Label, def.When, def.Then)
	require.NoError(t, err)
	assert.Len(t, resolve(t, e, ancestryQuery()), 6)
	_, err = e.AddRule(def.Label, def.When, def.Then)
	assert.ErrorIs(t, err, rules.ErrDuplicateRule)

	assert.True(t, e.RemoveRule("parents-are-ancestors"))
	assert.False(t, e.RemoveRule("parents-are-ancestors"))
	assert.Empty(t, resolve(t, e, ancestryQuery()))
	assert.Equal(t, 1, e.Rules().Len())
}

func Test_ValidateRule(t *testing.T) {
	kb := testkb.Family()
	e := New(kb.Store, nil, Options{})
	def := kb.Rules[0]
	assert.Empty(t, e.ValidateRule(def.Label, def.When, def.Then))

	then := atom.Pattern{Atoms: []atom.Atom{
		atom.Relation("r", "ancestorship", atom.RP("ancestor", "x"), atom.RP("descendant", "w")),
	}}
	errs := e.ValidateRule("bad", def.When, then)
	assert.True(t, errs.Has("unbound variable"), "%v", errs)
	_, err := e.AddRule("bad", def.When, then)
	var verrs validate.Errors
	assert.ErrorAs(t, err, &verrs)
	assert.Equal(t, 0, e.Rules().Len())
}
