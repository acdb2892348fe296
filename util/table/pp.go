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

// Package table formats rows of strings as a text table for humans.
package table

import (
	"bufio"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ebay/reasoner/util/cmp"
	"golang.org/x/text/unicode/norm"
)

// Options control how PrettyPrint lays out a table. They can be combined
// with '|'.
type Options int

const (
	// HeaderRow separates the first row from the rest with a divider.
	HeaderRow Options = 1 << iota
	// FooterRow separates the last row from the rest with a divider.
	FooterRow
	// SkipEmpty writes nothing when the table has no rows besides its header
	// and footer.
	SkipEmpty
	// RightJustify left-pads cells instead of right-padding them.
	RightJustify
)

func (o Options) has(flag Options) bool {
	return o&flag != 0
}

func (o Options) chromeRows() int {
	n := 0
	if o.has(HeaderRow) {
		n++
	}
	if o.has(FooterRow) {
		n++
	}
	return n
}

// PrettyPrint writes rows as a table to dest. Cells may span several lines,
// separated by '\n'. Rows shorter than the first row are padded with empty
// cells.
func PrettyPrint(dest io.Writer, rows [][]string, opts Options) {
	if len(rows) == 0 || (opts.has(SkipEmpty) && len(rows) <= opts.chromeRows()) {
		return
	}
	numCols := 0
	for _, row := range rows {
		numCols = cmp.MaxInt(numCols, len(row))
	}
	widths := make([]int, numCols)
	cells := make([][][]string, len(rows))
	for r, row := range rows {
		cells[r] = make([][]string, numCols)
		for c := range cells[r] {
			text := ""
			if c < len(row) {
				text = row[c]
			}
			cells[r][c] = strings.Split(text, "\n")
			for _, line := range cells[r][c] {
				widths[c] = cmp.MaxInt(widths[c], charsWide(line))
			}
		}
	}
	w := bufio.NewWriterSize(dest, 256)
	defer w.Flush()
	for r, row := range cells {
		height := 0
		for _, cell := range row {
			height = cmp.MaxInt(height, len(cell))
		}
		for l := 0; l < height; l++ {
			for c, cell := range row {
				line := ""
				if l < len(cell) {
					line = cell[l]
				}
				w.WriteByte(' ')
				w.WriteString(pad(line, widths[c], opts.has(RightJustify)))
				w.WriteString(" |")
			}
			w.WriteByte('\n')
		}
		if (opts.has(HeaderRow) && r == 0) || (opts.has(FooterRow) && r == len(cells)-2) {
			for _, width := range widths {
				w.WriteByte(' ')
				w.WriteString(strings.Repeat("-", width))
				w.WriteString(" |")
			}
			w.WriteByte('\n')
		}
	}
}

func pad(s string, width int, right bool) string {
	n := width - charsWide(s)
	if n <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", n) + s
	}
	return s + strings.Repeat(" ", n)
}

// charsWide estimates how wide a string will be on a typical terminal.
// Combining sequences are composed first so "é" counts as one.
func charsWide(s string) int {
	return utf8.RuneCountInString(norm.NFC.String(s))
}
