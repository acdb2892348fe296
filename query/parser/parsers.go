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
	"strconv"
	"unicode"
	"unicode/utf8"

	"github.com/vektah/goparsify"
)

// keywords can't be used as labels.
var keywords = map[string]bool{
	"isa": true, "has": true, "id": true, "or": true, "contains": true,
	"match": true, "get": true, "limit": true,
	"rule": true, "when": true, "then": true,
	"true": true, "false": true,
}

// word parses an unbroken sequence of letters, digits, '_' and '-' into
// .Token. Unless allowKeywords is set, the keywords above are rejected, so
// that a missing label isn't silently filled by the next keyword.
func word(description string, allowKeywords bool) goparsify.Parser {
	return goparsify.NewParser(description, func(ps *goparsify.State, node *goparsify.Result) {
		ps.WS(ps)
		end := ps.Pos
		for end < len(ps.Input) {
			r, size := utf8.DecodeRuneInString(ps.Input[end:])
			if r != '_' && r != '-' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				break
			}
			end += size
		}
		if end == ps.Pos {
			ps.ErrorHere(description)
			return
		}
		token := ps.Input[ps.Pos:end]
		if !allowKeywords && keywords[token] {
			ps.ErrorHere(description + ", not keyword " + strconv.Quote(token))
			return
		}
		node.Token = token
		ps.Pos = end
	})
}

// repeatZeroOrMore matches zero or more parsers and returns the value as
// .Child[n]. An optional separator can be provided and that value will be
// consumed but not returned. Only one separator can be provided.
//
// This and repeatOneOrMore exist because the difference between Some & Many is
// not obvious from the name.
func repeatZeroOrMore(p goparsify.Parserish, sep ...goparsify.Parserish) goparsify.Parser {
	return goparsify.Some(p, sep...)
}

// repeatOneOrMore matches one or more parsers and returns the value as
// .Child[n]. An optional separator can be provided and that value will be
// consumed but not returned. Only one separator can be provided.
func repeatOneOrMore(p goparsify.Parserish, sep ...goparsify.Parserish) goparsify.Parser {
	return goparsify.Many(p, sep...)
}

// uint64Literal parses a uint64 in base 10 from state.
func uint64Literal() goparsify.Parser {
	return goparsify.NewParser("uint64Literal", func(ps *goparsify.State, node *goparsify.Result) {
		ps.WS(ps)
		maxPos := ps.Pos // mark how far we have come
		len := len(ps.Input)

		for maxPos < len && ps.Input[maxPos] >= '0' && ps.Input[maxPos] <= '9' {
			maxPos++
		}
		if maxPos == ps.Pos {
			ps.ErrorHere("number")
			return
		}
		var err error
		node.Result, err = strconv.ParseUint(ps.Input[ps.Pos:maxPos], 10, 64)
		if err != nil {
			ps.ErrorHere("number")
			return
		}
		ps.Pos = maxPos
	})
}

// patternWS is a goparsify Whitespace parser for pattern text. Whitespace
// chars are ' ' \t \r \n only. # starts a comment which runs to the end of
// the line.
func patternWS(s *goparsify.State) {
	for s.Pos < len(s.Input) {
		switch s.Input[s.Pos] {
		case ' ', '\t', '\r', '\n':
			s.Pos++

		case '#':
			s.Pos++
			// consume the rest of the line
			for s.Pos < len(s.Input) {
				c := s.Input[s.Pos]
				s.Pos++
				if c == '\n' || c == '\r' {
					break
				}
			}
		default:
			return
		}
	}
}
