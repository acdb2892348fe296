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

package kg

import (
	"fmt"
	"strings"
)

// Operator is a comparison between an attribute's value and a constant.
type Operator uint8

// The supported comparison operators.
const (
	OpEqual Operator = iota + 1
	OpNotEqual
	OpLess
	OpLessOrEqual
	OpGreater
	OpGreaterOrEqual
	OpContains
)

// AllOperators lists every Operator in declaration order.
var AllOperators = []Operator{
	OpEqual, OpNotEqual, OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual, OpContains,
}

func (op Operator) String() string {
	switch op {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpLess:
		return "<"
	case OpLessOrEqual:
		return "<="
	case OpGreater:
		return ">"
	case OpGreaterOrEqual:
		return ">="
	case OpContains:
		return "contains"
	}
	return fmt.Sprintf("Operator(%d)", uint8(op))
}

// ParseOperator returns the operator spelled s in pattern text.
func ParseOperator(s string) (Operator, bool) {
	switch strings.ToLower(s) {
	case "=", "==":
		return OpEqual, true
	case "!=":
		return OpNotEqual, true
	case "<":
		return OpLess, true
	case "<=":
		return OpLessOrEqual, true
	case ">":
		return OpGreater, true
	case ">=":
		return OpGreaterOrEqual, true
	case "contains":
		return OpContains, true
	}
	return 0, false
}

func (op Operator) ordered() bool {
	switch op {
	case OpEqual, OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual:
		return true
	}
	return false
}

// Predicate constrains a value: it holds for values v where "v Op Value".
type Predicate struct {
	Op    Operator
	Value Value
}

func (p Predicate) String() string {
	return p.Op.String() + " " + p.Value.String()
}

// Key implements cmp.Key.
func (p Predicate) Key(b *strings.Builder) {
	b.WriteString(p.Op.String())
	b.WriteByte(' ')
	p.Value.Key(b)
}

// Test returns true if v satisfies the predicate.
func (p Predicate) Test(v Value) bool {
	switch p.Op {
	case OpEqual:
		return v.Equal(p.Value)
	case OpNotEqual:
		return !v.Equal(p.Value)
	case OpContains:
		return v.kind == KindString && p.Value.kind == KindString &&
			strings.Contains(v.str, p.Value.str)
	}
	c, ok := v.Compare(p.Value)
	if !ok {
		return false
	}
	switch p.Op {
	case OpLess:
		return c < 0
	case OpLessOrEqual:
		return c <= 0
	case OpGreater:
		return c > 0
	case OpGreaterOrEqual:
		return c >= 0
	}
	return false
}

// Compatible returns true if some value could satisfy both p and q.
func (p Predicate) Compatible(q Predicate) bool {
	switch {
	case p.Op == OpNotEqual:
		return q.Op != OpEqual || !q.Value.Equal(p.Value)
	case q.Op == OpNotEqual:
		return q.Compatible(p)
	case p.Op == OpContains:
		switch q.Op {
		case OpContains:
			return true
		case OpEqual:
			return p.Test(q.Value)
		}
		return q.Value.kind == KindString
	case q.Op == OpContains:
		return q.Compatible(p)
	case p.Op == OpEqual:
		return q.Test(p.Value)
	case q.Op == OpEqual:
		return p.Test(q.Value)
	}
	if !p.Value.Comparable(q.Value) {
		return false
	}
	lo := tighterLower(p.lower(), q.lower())
	hi := tighterUpper(p.upper(), q.upper())
	return nonEmpty(lo, hi)
}

// Implies returns true if every value satisfying p also satisfies q.
func (p Predicate) Implies(q Predicate) bool {
	if p.Op == OpEqual {
		return q.Test(p.Value)
	}
	switch q.Op {
	case OpEqual:
		return false
	case OpNotEqual:
		switch p.Op {
		case OpNotEqual:
			return p.Value.Equal(q.Value)
		case OpContains:
			return !p.Test(q.Value)
		}
		if !p.Value.Comparable(q.Value) {
			return true
		}
		return !within(q.Value, p.lower(), p.upper())
	case OpContains:
		return p.Op == OpContains && strings.Contains(p.Value.str, q.Value.str)
	}
	if !p.Op.ordered() || !p.Value.Comparable(q.Value) {
		return false
	}
	return lowerWithin(p.lower(), q.lower()) && upperWithin(p.upper(), q.upper())
}

// bound is one end of an interval. An unset bound is unbounded.
type bound struct {
	set  bool
	open bool
	v    Value
}

func (p Predicate) lower() bound {
	switch p.Op {
	case OpEqual, OpGreaterOrEqual:
		return bound{set: true, v: p.Value}
	case OpGreater:
		return bound{set: true, open: true, v: p.Value}
	}
	return bound{}
}

func (p Predicate) upper() bound {
	switch p.Op {
	case OpEqual, OpLessOrEqual:
		return bound{set: true, v: p.Value}
	case OpLess:
		return bound{set: true, open: true, v: p.Value}
	}
	return bound{}
}

func tighterLower(a, b bound) bound {
	if !a.set {
		return b
	}
	if !b.set {
		return a
	}
	c, _ := a.v.Compare(b.v)
	switch {
	case c > 0:
		return a
	case c < 0:
		return b
	case a.open:
		return a
	}
	return b
}

func tighterUpper(a, b bound) bound {
	if !a.set {
		return b
	}
	if !b.set {
		return a
	}
	c, _ := a.v.Compare(b.v)
	switch {
	case c < 0:
		return a
	case c > 0:
		return b
	case a.open:
		return a
	}
	return b
}

func nonEmpty(lo, hi bound) bool {
	if !lo.set || !hi.set {
		return true
	}
	c, _ := lo.v.Compare(hi.v)
	switch {
	case c < 0:
		return true
	case c == 0:
		return !lo.open && !hi.open
	}
	return false
}

func within(v Value, lo, hi bound) bool {
	if lo.set {
		c, _ := v.Compare(lo.v)
		if c < 0 || (c == 0 && lo.open) {
			return false
		}
	}
	if hi.set {
		c, _ := v.Compare(hi.v)
		if c > 0 || (c == 0 && hi.open) {
			return false
		}
	}
	return true
}

// lowerWithin returns true if the lower bound 'inner' is at least as tight as
// 'outer'.
func lowerWithin(inner, outer bound) bool {
	if !outer.set {
		return true
	}
	if !inner.set {
		return false
	}
	c, _ := inner.v.Compare(outer.v)
	switch {
	case c > 0:
		return true
	case c < 0:
		return false
	}
	return inner.open || !outer.open
}

func upperWithin(inner, outer bound) bool {
	if !outer.set {
		return true
	}
	if !inner.set {
		return false
	}
	c, _ := inner.v.Compare(outer.v)
	switch {
	case c < 0:
		return true
	case c > 0:
		return false
	}
	return inner.open || !outer.open
}
