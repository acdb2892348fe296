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

package cmp

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pair struct {
	a, b int
}

func (p pair) Key(b *strings.Builder) {
	b.WriteString(strconv.Itoa(p.a))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(p.b))
}

func Test_GetKey(t *testing.T) {
	assert.Equal(t, "1,2", GetKey(pair{1, 2}))
	assert.NotEqual(t, GetKey(pair{1, 2}), GetKey(pair{2, 1}))
}

func Test_MinMaxInt(t *testing.T) {
	tests := []struct {
		a, b     int
		min, max int
	}{
		{0, 0, 0, 0},
		{-1, 1, -1, 1},
		{5, 3, 3, 5},
		{1234, 1234, 1234, 1234},
	}
	for _, test := range tests {
		assert.Equal(t, test.min, MinInt(test.a, test.b), "MinInt(%d, %d)", test.a, test.b)
		assert.Equal(t, test.max, MaxInt(test.a, test.b), "MaxInt(%d, %d)", test.a, test.b)
	}
}
