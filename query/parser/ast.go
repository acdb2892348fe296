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
	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/kg"
)

// The types in this file form the syntax tree produced by the grammar in
// lang_def.go. Unnamed positions have an empty variable name until
// build.go assigns them anonymous variables.

// Query is a parsed "match ... get ...;" statement.
type Query struct {
	Match atom.Pattern
	// The variables listed after 'get'. Empty means all named variables.
	Get []atom.Variable
	// 0 means no limit.
	Limit uint64
}

// Rule is a parsed rule definition.
type Rule struct {
	Label string
	When  atom.Pattern
	Then  atom.Pattern
}

type statement interface {
	isStatement()
}

// varStatement is a variable followed by its properties: "$x isa person, has
// age >= 18;". Relation is nil for statements that aren't relations.
type varStatement struct {
	Var      atom.Variable
	Relation []atom.RolePlayer
	Props    []property
}

// disjunction is "{ ... } or { ... };".
type disjunction struct {
	Alternatives []patternBody
}

func (*varStatement) isStatement() {}
func (*disjunction) isStatement()  {}

type property interface {
	isProperty()
}

type isaProp struct {
	Type   string
	Direct bool
}

// hasProp binds an attribute. Var is empty unless the attribute variable was
// named. Pred is nil unless a value or comparison was given.
type hasProp struct {
	Type string
	Var  atom.Variable
	Pred *kg.Predicate
}

type idProp struct {
	ID uint64
}

// comparison constrains the statement's own variable: "$a >= 18".
type comparison struct {
	kg.Predicate
}

func (*isaProp) isProperty()    {}
func (*hasProp) isProperty()    {}
func (*idProp) isProperty()     {}
func (*comparison) isProperty() {}

// patternBody is the result of parsing a block of statements before it's
// turned into an atom.Pattern.
type patternBody []statement

type ruleDef struct {
	Label string
	When  patternBody
	Then  patternBody
}

type queryDef struct {
	Match patternBody
	Get   []atom.Variable
	Limit uint64
}
