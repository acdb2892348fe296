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

package table

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_PrettyPrint_justify(t *testing.T) {
	rows := [][]string{
		{"$x", "$y"},
		{"alice", "bob"},
	}
	t.Run("left", func(t *testing.T) {
		var buf strings.Builder
		PrettyPrint(&buf, rows, HeaderRow)
		assert.Equal(t, `
 $x    | $y  |
 ----- | --- |
 alice | bob |
`, "\n"+buf.String())
	})
	t.Run("right", func(t *testing.T) {
		var buf strings.Builder
		PrettyPrint(&buf, rows, HeaderRow|RightJustify)
		assert.Equal(t, `
    $x |  $y |
 ----- | --- |
 alice | bob |
`, "\n"+buf.String())
	})
}

func Test_PrettyPrint_footerAndRaggedRows(t *testing.T) {
	var buf strings.Builder
	PrettyPrint(&buf, [][]string{
		{"$p", "$z"},
		{"V12", "V3"},
		{"1 answer"},
	}, HeaderRow|FooterRow)
	assert.Equal(t, `
 $p       | $z |
 -------- | -- |
 V12      | V3 |
 -------- | -- |
 1 answer |    |
`, "\n"+buf.String())
}

func Test_PrettyPrint_skipEmpty(t *testing.T) {
	var buf strings.Builder
	PrettyPrint(&buf, [][]string{{"$x"}}, SkipEmpty|HeaderRow)
	assert.Equal(t, "", buf.String())
	PrettyPrint(&buf, [][]string{{"$x"}}, SkipEmpty)
	assert.Equal(t, " $x |\n", buf.String())
	buf.Reset()
	PrettyPrint(&buf, nil, 0)
	assert.Equal(t, "", buf.String())
}

func Test_PrettyPrint_multiline(t *testing.T) {
	var buf strings.Builder
	PrettyPrint(&buf, [][]string{
		{"rule", "head"},
		{"parentship\nrule", "$p"},
	}, HeaderRow)
	assert.Equal(t, `
 rule       | head |
 ---------- | ---- |
 parentship | $p   |
 rule       |      |
`, "\n"+buf.String())
}

func Test_charsWide(t *testing.T) {
	tests := []struct {
		s string
		w int
	}{
		{"Aeyonce", 7},
		{"Beyoncé", 7},
		{"Ceyonce\u0301", 7},
		{"Deyonc\u00e9", 7},
	}
	for _, test := range tests {
		assert.Equal(t, test.w, charsWide(test.s), "width of %#v", test.s)
	}
}
