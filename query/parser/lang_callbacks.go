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
	"fmt"

	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/kg"
	"github.com/vektah/goparsify"
)

func variable(n *goparsify.Result) {
	n.Result = atom.Variable(n.Child[1].Token)
}

func literalBool(n *goparsify.Result) {
	switch n.Token {
	case "true":
		n.Result = kg.ABoolean(true)
	case "false":
		n.Result = kg.ABoolean(false)
	default:
		panic(fmt.Sprintf("unsupported bool literal: %s", n.Token))
	}
}

func literalNumber(n *goparsify.Result) {
	switch v := n.Result.(type) {
	case float64:
		n.Result = kg.ADouble(v)
	case int64:
		n.Result = kg.ALong(v)
	default:
		panic(fmt.Sprintf("unsupported number literal: '%s' %v", n.Token, v))
	}
}

func literalString(n *goparsify.Result) {
	n.Result = kg.AString(n.Token)
}

func operator(n *goparsify.Result) {
	op, ok := kg.ParseOperator(n.Token)
	if !ok {
		panic(fmt.Sprintf("unsupported operator: %s", n.Token))
	}
	n.Result = op
}

func compare(n *goparsify.Result) {
	n.Result = &kg.Predicate{
		Op:    n.Child[0].Result.(kg.Operator),
		Value: n.Child[1].Result.(kg.Value),
	}
}

func isaProperty(n *goparsify.Result) {
	// 0: isa || isa!
	// 1: Cut()
	// 2: label
	n.Result = &isaProp{
		Type:   n.Child[2].Token,
		Direct: n.Child[0].Token == "isa!",
	}
}

func hasProperty(n *goparsify.Result) {
	// 0: has
	// 1: Cut()
	// 2: label
	// 3: optional variable, comparison or value
	prop := &hasProp{Type: n.Child[2].Token}
	switch v := n.Child[3].Result.(type) {
	case atom.Variable:
		prop.Var = v
	case *kg.Predicate:
		prop.Pred = v
	case kg.Value:
		prop.Pred = &kg.Predicate{Op: kg.OpEqual, Value: v}
	}
	n.Result = prop
}

func idProperty(n *goparsify.Result) {
	n.Result = &idProp{ID: n.Child[2].Result.(uint64)}
}

func rolePlayer(n *goparsify.Result) {
	n.Result = atom.RP(n.Child[0].Token, n.Child[2].Result.(atom.Variable))
}

func roleless(n *goparsify.Result) {
	n.Result = atom.RP("", n.Result.(atom.Variable))
}

func relation(n *goparsify.Result) {
	// 0: '('
	// 1: Cut()
	// 2: ${players}
	// 3: ')'
	players := make([]atom.RolePlayer, 0, len(n.Child[2].Child))
	for _, c := range n.Child[2].Child {
		players = append(players, c.Result.(atom.RolePlayer))
	}
	n.Result = players
}

func properties(n *goparsify.Result) []property {
	props := make([]property, 0, len(n.Child))
	for _, c := range n.Child {
		props = append(props, c.Result.(property))
	}
	return props
}

func namedRelation(n *goparsify.Result) {
	n.Result = &varStatement{
		Var:      n.Child[0].Result.(atom.Variable),
		Relation: n.Child[1].Result.([]atom.RolePlayer),
		Props:    properties(&n.Child[2]),
	}
}

func unnamedRelation(n *goparsify.Result) {
	n.Result = &varStatement{
		Relation: n.Child[0].Result.([]atom.RolePlayer),
		Props:    properties(&n.Child[1]),
	}
}

func compareStatement(n *goparsify.Result) {
	n.Result = &varStatement{
		Var:   n.Child[0].Result.(atom.Variable),
		Props: []property{&comparison{*n.Child[1].Result.(*kg.Predicate)}},
	}
}

func propertyStatement(n *goparsify.Result) {
	n.Result = &varStatement{
		Var:   n.Child[0].Result.(atom.Variable),
		Props: properties(&n.Child[1]),
	}
}

func statements(n *goparsify.Result) patternBody {
	res := make(patternBody, 0, len(n.Child))
	for _, c := range n.Child {
		res = append(res, c.Result.(statement))
	}
	return res
}

func block(n *goparsify.Result) {
	n.Result = statements(&n.Child[2])
}

func body(n *goparsify.Result) {
	n.Result = statements(n)
}

func disjunctionStatement(n *goparsify.Result) {
	// 0: first block
	// 1: ${or blocks}
	alts := make([]patternBody, 0, 1+len(n.Child[1].Child))
	alts = append(alts, n.Child[0].Result.(patternBody))
	for _, c := range n.Child[1].Child {
		alts = append(alts, c.Result.(patternBody))
	}
	n.Result = &disjunction{Alternatives: alts}
}

// child is a helper to generate a goparsify Map function that will grab a child
// result at a specific index and set it as the result for this node. This is
// useful for picking out the interesting part of a Seq().
func child(idx int) func(*goparsify.Result) {
	return func(n *goparsify.Result) {
		n.Result = n.Child[idx].Result
	}
}

func getClause(n *goparsify.Result) {
	vars := make([]atom.Variable, 0, len(n.Child[2].Child))
	for _, c := range n.Child[2].Child {
		vars = append(vars, c.Result.(atom.Variable))
	}
	n.Result = vars
}

func query(n *goparsify.Result) {
	// 0: match
	// 1: Cut()
	// 2: ${statements}
	// 3: optional get
	// 4: optional limit
	q := &queryDef{
		Match: n.Child[2].Result.(patternBody),
	}
	// these 2 are optional, so might be nil
	if n.Child[3].Result != nil {
		q.Get = n.Child[3].Result.([]atom.Variable)
	}
	if n.Child[4].Result != nil {
		q.Limit = n.Child[4].Result.(uint64)
	}
	n.Result = q
}

func rule(n *goparsify.Result) {
	// 0: rule
	// 1: Cut()
	// 2: label
	// 3: ':'
	// 4: when
	// 5: ${when block}
	// 6: then
	// 7: ${then block}
	// 8: optional ';'
	n.Result = &ruleDef{
		Label: n.Child[2].Token,
		When:  n.Child[5].Result.(patternBody),
		Then:  n.Child[7].Result.(patternBody),
	}
}

func rules(n *goparsify.Result) {
	res := make([]*ruleDef, 0, len(n.Child))
	for _, c := range n.Child {
		res = append(res, c.Result.(*ruleDef))
	}
	n.Result = res
}
