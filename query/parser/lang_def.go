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
	p "github.com/vektah/goparsify"
)

var (
	// literal is the parser function called by ParseValue. It extracts a
	// boolean, number or string constant.
	literal p.Parser
	// patternRoot is the parser function called by Parse. It extracts a
	// sequence of statements, each terminated by ';'.
	patternRoot p.Parser
	// queryRoot is the parser function called by ParseQuery. It extracts a
	// "match ... get ...; limit ...;" query.
	queryRoot p.Parser
	// rulesRoot is the parser function called by ParseRules. It extracts zero
	// or more "rule label: when { ... } then { ... };" definitions.
	rulesRoot p.Parser
)

func init() {
	// If you need to debug what the parser is doing, you can enable goparsify's
	// built in debug support by building with -tags debug. See the docs for
	// more details https://github.com/vektah/goparsify#debugging-parsers
	//
	// The parser_debug.go file will setup sending the parser debug output to
	// stdOut when the debug tag is used.

	// type, role and rule labels; any name but a keyword
	label := word("label", false)

	variable := p.Seq("$", word("variable name", true)).Map(variable) // $x

	literalBool := p.Any("true", "false").Map(literalBool) // true || false
	literalNumber := p.NumberLit().Map(literalNumber)      // 9 || 3.14159
	literalString := p.StringLit(`"`).Map(literalString)   // "Alex"
	literal = p.Any(literalBool, literalNumber, literalString)

	// Longer operators must be tried before their prefixes.
	operator := p.Any(">=", "<=", "!=", "==", "=", ">", "<", "contains").Map(operator)
	compare := p.Seq(operator, literal).Map(compare) // >= 18

	isa := p.Seq(p.Any("isa!", "isa"), p.Cut(), label).Map(isaProperty)                             // isa person
	has := p.Seq("has", p.Cut(), label, p.Maybe(p.Any(variable, compare, literal))).Map(hasProperty) // has age >= 18
	id := p.Seq("id", p.Cut(), uint64Literal()).Map(idProperty)                                      // id 12
	property := p.Any(isa, has, id)

	rolePlayer := p.Any(
		p.Seq(label, ":", variable).Map(rolePlayer), // parent: $x
		variable.Map(roleless))                     // $x
	relation := p.Seq("(", p.Cut(), repeatOneOrMore(rolePlayer, ","), ")").Map(relation)

	varStatement := p.Any(
		p.Seq(variable, relation, repeatZeroOrMore(property, ",")).Map(namedRelation), // $r (parent: $x) isa parentship
		p.Seq(relation, repeatZeroOrMore(property, ",")).Map(unnamedRelation),         // (parent: $x) isa parentship
		p.Seq(variable, compare).Map(compareStatement),                                // $a >= 18
		p.Seq(variable, repeatOneOrMore(property, ",")).Map(propertyStatement))        // $x isa person, has age 3

	// statement and block refer to each other through disjunctions.
	var statement p.Parser
	block := p.Seq("{", p.Cut(), repeatZeroOrMore(&statement), "}").Map(block)
	disjunction := p.Seq(block, repeatOneOrMore(p.Seq("or", block).Map(child(1)))).Map(disjunctionStatement)
	statement = p.Seq(p.Any(disjunction, varStatement), ";").Map(child(0))

	patternRoot = repeatOneOrMore(&statement).Map(body)

	get := p.Seq("get", p.Cut(), repeatZeroOrMore(variable, ","), ";").Map(getClause)
	limit := p.Seq("limit", p.Cut(), uint64Literal(), ";").Map(child(2))
	queryRoot = p.Seq("match", p.Cut(), patternRoot, p.Maybe(get), p.Maybe(limit)).Map(query)

	rule := p.Seq("rule", p.Cut(), label, ":", "when", block, "then", block, p.Maybe(";")).Map(rule)
	rulesRoot = repeatZeroOrMore(rule).Map(rules)
}
