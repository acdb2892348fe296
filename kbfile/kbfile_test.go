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

package kbfile

import (
	"bytes"
	"context"
	"sort"
	"testing"

	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/kg"
	"github.com/ebay/reasoner/resolve"
	"github.com/ebay/reasoner/schema"
	"github.com/ebay/reasoner/store"
	"github.com/ebay/reasoner/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Load(t *testing.T) {
	f, err := Load("testdata/family.yaml")
	require.NoError(t, err)
	assert.Len(t, f.Schema.Entities, 2)
	assert.Len(t, f.Facts, 1)

	kb, err := f.Open()
	require.NoError(t, err)
	assert.Equal(t, 4, kb.Store.Count("person"))
	assert.Equal(t, 3, kb.Store.Count("parentship"))
	assert.Equal(t, 4, kb.Rules.Len())
	assert.True(t, kb.Schema.IsSubtypeOf("adult", "person"))
	assert.Equal(t, kg.KindLong, kb.Schema.DataType("age"))

	names := make([]string, 0, len(kb.Names))
	for _, name := range kb.Names {
		names = append(names, name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"ann", "bob", "cat", "dan"}, names)

	e := resolve.New(kb.Store, kb.Rules, resolve.Options{})
	q := atom.MustQuery([]atom.Atom{
		atom.Relation("r", "ancestorship", atom.RP("ancestor", "x"), atom.RP("descendant", "y")),
	}, nil, "x", "y")
	answers, err := e.Resolve(context.Background(), q)
	require.NoError(t, err)
	var pairs []string
	for _, a := range answers.Collect() {
		x, _ := a.Get("x")
		y, _ := a.Get("y")
		pairs = append(pairs, kb.Describe(x)+">"+kb.Describe(y))
	}
	sort.Strings(pairs)
	assert.Equal(t, []string{
		"ann>bob", "ann>cat", "ann>dan", "bob>cat", "bob>dan", "cat>dan",
	}, pairs)
}

func Test_Load_missing(t *testing.T) {
	_, err := Load("testdata/nope.yaml")
	assert.Error(t, err)
}

func Test_Decode(t *testing.T) {
	f, err := Decode(nil)
	require.NoError(t, err)
	assert.Equal(t, &File{}, f)

	_, err = Decode([]byte("schema:\n  entitys: []\n"))
	assert.Error(t, err)

	_, err = Decode([]byte("facts: 3\n"))
	assert.Error(t, err)
}

func Test_Encode(t *testing.T) {
	f := &File{
		Schema: Schema{
			Entities:   []Type{{Label: "lion", Sub: "animal"}, {Label: "animal", Abstract: true}},
			Attributes: []Type{{Label: "name", DataType: "string"}},
			Owns:       map[string][]string{"animal": {"name"}},
		},
		Facts: []string{`$x isa lion, has name "Alex";`},
	}
	var buf bytes.Buffer
	require.NoError(t, f.Encode(&buf))
	back, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, f, back)

	kb, err := back.Open()
	require.NoError(t, err)
	assert.Equal(t, 1, kb.Store.Count("lion"))
	c, ok := kb.Schema.Get("animal")
	require.True(t, ok)
	assert.True(t, c.Abstract)
	assert.Equal(t, schema.KindEntityType, c.Kind)
}

func Test_BuildSchema_errors(t *testing.T) {
	f := &File{Schema: Schema{Attributes: []Type{{Label: "size", DataType: "huge"}}}}
	_, err := f.BuildSchema()
	assert.EqualError(t, err, `attribute "size": unknown datatype "huge"`)

	f = &File{Schema: Schema{Entities: []Type{{Label: "lion", Sub: "cat"}}}}
	_, err = f.BuildSchema()
	assert.Error(t, err)
	_, err = f.Open()
	assert.Error(t, err)
}

func Test_RuleCache(t *testing.T) {
	f, err := Load("testdata/family.yaml")
	require.NoError(t, err)
	sch, err := f.BuildSchema()
	require.NoError(t, err)
	rc, err := f.RuleCache(sch)
	require.NoError(t, err)
	assert.Equal(t, 4, rc.Len())
	assert.Same(t, sch, rc.Schema())
	assert.NotEmpty(t, rc.RulesWithType("ancestorship"))

	bad := *f
	bad.Rules = `rule one: when { $x isa person; } then { (owner: $x) isa ancestorship; };
rule two: when { $x isa dragon; } then { $x isa adult; };`
	_, err = bad.RuleCache(sch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `rule "one"`)
	assert.Contains(t, err.Error(), `rule "two"`, "every invalid rule is reported")
}

func Test_Open_errors(t *testing.T) {
	f, err := Load("testdata/family.yaml")
	require.NoError(t, err)

	bad := *f
	bad.Rules = `rule nonsense: when { $x isa person; } then { (owner: $x) isa ancestorship; };`
	_, err = bad.Open()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `rule "nonsense"`)
	var verrs validate.Errors
	assert.ErrorAs(t, err, &verrs)

	bad = *f
	bad.Rules = f.Rules + "\nrule adults: when { $x isa person; } then { $x isa adult; };"
	_, err = bad.Open()
	assert.Error(t, err)

	bad = *f
	bad.Rules = "rule broken when"
	_, err = bad.Open()
	assert.Error(t, err)

	bad = *f
	bad.Facts = []string{"$x isa dragon;"}
	_, err = bad.Open()
	assert.ErrorIs(t, err, store.ErrInsert)
	assert.Contains(t, err.Error(), "facts[0]")

	bad = *f
	bad.Facts = []string{"$x isa"}
	_, err = bad.Open()
	assert.Error(t, err)
}
