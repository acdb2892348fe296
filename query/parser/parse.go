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

// Package parser reads pattern text into atom patterns. The syntax follows the
// match clause of a graph query language:
//
//	$x isa person, has name "Alex", has age $a;
//	$a >= 18;
//	$r (parent: $x, child: $y) isa parentship;
//	{ $y isa lion; } or { $y isa cub; };
//
// Positions the text leaves unnamed, such as the relation in
// "(parent: $x) isa parentship" or the attribute in "has age 3", are given
// anonymous variables.
package parser

import (
	"errors"
	"fmt"

	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/kg"
	"github.com/ebay/reasoner/util/unicode"
	"github.com/vektah/goparsify"
)

// ErrSyntax is wrapped by the errors returned for malformed input.
var ErrSyntax = errors.New("syntax error")

// Parse parses a sequence of statements into a pattern.
func Parse(input string) (atom.Pattern, error) {
	res, err := run(patternRoot, input)
	if err != nil {
		return atom.Pattern{}, err
	}
	body := res.(patternBody)
	b := newBuilder(body)
	return b.pattern(body), nil
}

// MustParse is like Parse but panics if the input is invalid. It's intended
// for tests and fixtures.
func MustParse(input string) atom.Pattern {
	pattern, err := Parse(input)
	if err != nil {
		panic(fmt.Sprintf("parser.MustParse(%q): %v", input, err))
	}
	return pattern
}

// ParseQuery parses "match <statements> [get $x, $y;] [limit n;]".
func ParseQuery(input string) (*Query, error) {
	res, err := run(queryRoot, input)
	if err != nil {
		return nil, err
	}
	def := res.(*queryDef)
	b := newBuilder(def.Match)
	return &Query{
		Match: b.pattern(def.Match),
		Get:   def.Get,
		Limit: def.Limit,
	}, nil
}

// ParseRules parses zero or more rule definitions of the form
// "rule <label>: when { <statements> } then { <statements> };".
func ParseRules(input string) ([]Rule, error) {
	res, err := run(rulesRoot, input)
	if err != nil {
		return nil, err
	}
	defs := res.([]*ruleDef)
	out := make([]Rule, len(defs))
	for i, def := range defs {
		// Anonymous variables in the head and the body share one namespace.
		b := newBuilder(def.When, def.Then)
		out[i] = Rule{
			Label: def.Label,
			When:  b.pattern(def.When),
			Then:  b.pattern(def.Then),
		}
	}
	return out, nil
}

// ParseValue parses a single constant: a boolean, a number or a quoted string.
func ParseValue(input string) (kg.Value, error) {
	res, err := run(literal, input)
	if err != nil {
		return kg.Value{}, err
	}
	return res.(kg.Value), nil
}

func run(parser goparsify.Parser, input string) (interface{}, error) {
	res, err := goparsify.Run(parser, unicode.Normalize(input), patternWS)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return res, nil
}

// builder converts statements to atoms, naming the unnamed positions.
type builder struct {
	named map[atom.Variable]bool
	next  int
}

func newBuilder(bodies ...patternBody) *builder {
	b := &builder{named: make(map[atom.Variable]bool)}
	for _, body := range bodies {
		b.collect(body)
	}
	return b
}

func (b *builder) collect(body patternBody) {
	for _, s := range body {
		switch s := s.(type) {
		case *varStatement:
			b.named[s.Var] = true
			for _, rp := range s.Relation {
				b.named[rp.Player] = true
			}
			for _, prop := range s.Props {
				if has, ok := prop.(*hasProp); ok {
					b.named[has.Var] = true
				}
			}
		case *disjunction:
			for _, alt := range s.Alternatives {
				b.collect(alt)
			}
		}
	}
}

// fresh returns the next anonymous variable that the text doesn't already
// use.
func (b *builder) fresh() atom.Variable {
	for {
		v := atom.Anonymous(b.next)
		b.next++
		if !b.named[v] {
			return v
		}
	}
}

func (b *builder) pattern(body patternBody) atom.Pattern {
	var out atom.Pattern
	for _, s := range body {
		switch s := s.(type) {
		case *varStatement:
			b.statement(&out, s)
		case *disjunction:
			disj := make(atom.Disjunction, len(s.Alternatives))
			for i, alt := range s.Alternatives {
				disj[i] = b.pattern(alt)
			}
			out.Or = append(out.Or, disj)
		default:
			panic(fmt.Sprintf("unexpected statement type %T", s))
		}
	}
	return out
}

func (b *builder) statement(out *atom.Pattern, s *varStatement) {
	v := s.Var
	if v == "" {
		v = b.fresh()
	}
	props := s.Props
	if s.Relation != nil {
		rel := atom.Relation(v, "", s.Relation...)
		// The first isa types the relation itself.
		for i, prop := range props {
			if isa, ok := prop.(*isaProp); ok {
				rel.Type, rel.Direct = isa.Type, isa.Direct
				props = append(append([]property(nil), props[:i]...), props[i+1:]...)
				break
			}
		}
		out.Atoms = append(out.Atoms, rel)
	}
	for _, prop := range props {
		switch prop := prop.(type) {
		case *isaProp:
			if prop.Direct {
				out.Atoms = append(out.Atoms, atom.IsaDirect(v, prop.Type))
			} else {
				out.Atoms = append(out.Atoms, atom.Isa(v, prop.Type))
			}
		case *hasProp:
			value := prop.Var
			if value == "" {
				value = b.fresh()
			}
			out.Atoms = append(out.Atoms, atom.Has(v, prop.Type, value))
			if prop.Pred != nil {
				out.Predicates = append(out.Predicates, atom.Val(value, prop.Pred.Op, prop.Pred.Value))
			}
		case *idProp:
			out.Predicates = append(out.Predicates, atom.ID(v, prop.ID))
		case *comparison:
			out.Predicates = append(out.Predicates, atom.Val(v, prop.Op, prop.Value))
		default:
			panic(fmt.Sprintf("unexpected property type %T", prop))
		}
	}
}
