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

package answer

import (
	"testing"

	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/kg"
	"github.com/ebay/reasoner/util/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func c(id uint64) kg.Concept {
	return kg.Concept{ID: id, Type: "thing"}
}

func Test_Answer(t *testing.T) {
	assert := assert.New(t)
	bindings := map[atom.Variable]kg.Concept{"x": c(1), "y": c(2)}
	a := New(bindings)
	bindings["x"] = c(99)
	got, ok := a.Get("x")
	assert.True(ok)
	assert.Equal(uint64(1), got.ID, "New copies its input")
	_, ok = a.Get("z")
	assert.False(ok)
	assert.Equal(2, a.Len())
	assert.Equal(atom.VarSet{"x", "y"}, a.Vars())
	assert.Equal("{$x=#1 $y=#2}", a.String())

	b := a.With("z", c(3))
	assert.Equal(2, a.Len())
	assert.Equal(3, b.Len())
	assert.Equal(atom.VarSet{"x"}, b.Project(atom.VarSet{"x", "w"}).Vars())

	explained := a.Explained("r1", b)
	assert.Nil(a.Explanation)
	require.NotNil(t, explained.Explanation)
	assert.Equal("r1", explained.Explanation.Rule)
	assert.Equal(cmp.GetKey(a), cmp.GetKey(explained), "explanations don't affect identity")
	require.Len(t, explained.Explanation.Answers, 1)
	assert.Equal(b.Bindings(), explained.Explanation.Answers[0].Bindings())

	joined := a.JoinedFrom([]Answer{explained, b})
	require.NotNil(t, joined.Explanation)
	assert.Empty(joined.Explanation.Rule)
	assert.Len(joined.Explanation.Answers, 2)
}

func Test_Answer_Join(t *testing.T) {
	a := New(map[atom.Variable]kg.Concept{"x": c(1), "y": c(2)})
	b := New(map[atom.Variable]kg.Concept{"y": c(2), "z": c(3)})
	j, ok := a.Join(b)
	require.True(t, ok)
	assert.Equal(t, "{$x=#1 $y=#2 $z=#3}", j.String())
	assert.Nil(t, j.Explanation)

	j, ok = a.Explained("r1", a).Join(b.Explained("r2", b))
	require.True(t, ok)
	assert.Nil(t, j.Explanation, "neither side's explanation stands for the join")

	conflict := New(map[atom.Variable]kg.Concept{"y": c(5)})
	_, ok = a.Join(conflict)
	assert.False(t, ok)
}

func Test_Set(t *testing.T) {
	s := new(Set)
	a := New(map[atom.Variable]kg.Concept{"x": c(1)})
	assert.True(t, s.Add(a))
	assert.False(t, s.Add(a.Explained("r", a)), "equal bindings are a duplicate")
	assert.Nil(t, s.Answers()[0].Explanation, "first answer wins")
	assert.Equal(t, 1, s.AddAll([]Answer{a, New(map[atom.Variable]kg.Concept{"x": c(2)})}))
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains(a))
	assert.False(t, new(Set).Contains(a))
	assert.Equal(t, 2, NewSet(s.Answers()...).Len())
}

func Test_Stream(t *testing.T) {
	evaluations := 0
	answers := []Answer{
		New(map[atom.Variable]kg.Concept{"x": c(1)}),
		New(map[atom.Variable]kg.Concept{"x": c(2)}),
		New(map[atom.Variable]kg.Concept{"x": c(1)}),
	}
	s := NewStream(func(yield func(Answer) bool) {
		evaluations++
		for _, a := range answers {
			if !yield(a) {
				return
			}
		}
	})
	assert.Equal(t, 0, evaluations, "streams are lazy")
	assert.Len(t, s.Collect(), 3)
	assert.Len(t, s.Collect(), 3, "streams restart")
	assert.Equal(t, 2, evaluations)

	assert.Len(t, s.Distinct().Collect(), 2)
	assert.Len(t, s.Limit(1).Collect(), 1)
	assert.Len(t, s.Limit(0).Collect(), 0)
	assert.Len(t, s.Filter(func(a Answer) bool {
		x, _ := a.Get("x")
		return x.ID == 2
	}).Collect(), 1)
	mapped := s.Map(func(a Answer) (Answer, bool) {
		x, _ := a.Get("x")
		return a.With("y", x), x.ID == 1
	}).Collect()
	require.Len(t, mapped, 2)
	assert.Equal(t, 2, mapped[0].Len())

	both := Concat(s, FromSlice(answers[:1]), Empty())
	assert.Len(t, both.Collect(), 4)
	assert.Len(t, both.Limit(2).Collect(), 2)

	var seen []uint64
	s.ForEach(func(a Answer) bool {
		x, _ := a.Get("x")
		seen = append(seen, x.ID)
		return len(seen) < 2
	})
	assert.Equal(t, []uint64{1, 2}, seen, "ForEach stops when fn returns false")

	it := s.Iterator()
	n := 0
	for _, ok := it.Next(); ok; _, ok = it.Next() {
		n++
	}
	assert.Equal(t, 3, n)
	_, ok := it.Next()
	assert.False(t, ok)
}
