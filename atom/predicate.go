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

package atom

import (
	"errors"
	"strconv"
	"strings"

	"github.com/ebay/reasoner/kg"
)

// Errors reported when a query is malformed. They're wrapped with details, so
// test for them with errors.Is.
var (
	ErrUnboundVariable = errors.New("unbound variable")
	ErrUnknownLabel    = errors.New("unknown schema label")
	ErrDisjointTypes   = errors.New("disjoint type constraints")
	ErrEmptyQuery      = errors.New("query has no atoms")
	ErrInvalidAtom     = errors.New("invalid atom")
	ErrDisjunctive     = errors.New("pattern contains a disjunction")
)

// Predicate is a constraint on a single variable's concept. It's either an
// IDPredicate or a ValuePredicate.
type Predicate interface {
	// Subject returns the constrained variable.
	Subject() Variable
	Key(*strings.Builder)
	String() string
	isPredicate()
}

// IDPredicate requires Var to be the concept with the given ID: "$x id 12".
type IDPredicate struct {
	Var Variable
	ID  uint64
}

// ID returns an IDPredicate.
func ID(v Variable, id uint64) IDPredicate {
	return IDPredicate{Var: v, ID: id}
}

// Subject implements Predicate.
func (p IDPredicate) Subject() Variable { return p.Var }

func (IDPredicate) isPredicate() {}

// Key implements cmp.Key.
func (p IDPredicate) Key(b *strings.Builder) {
	p.Var.Key(b)
	b.WriteString(" id ")
	b.WriteString(strconv.FormatUint(p.ID, 10))
}

func (p IDPredicate) String() string {
	return p.Var.String() + " id " + strconv.FormatUint(p.ID, 10)
}

// ValuePredicate requires Var to be an attribute whose value satisfies the
// embedded kg.Predicate: "$a >= 10".
type ValuePredicate struct {
	Var Variable
	kg.Predicate
}

// Val returns a ValuePredicate.
func Val(v Variable, op kg.Operator, value kg.Value) ValuePredicate {
	return ValuePredicate{Var: v, Predicate: kg.Predicate{Op: op, Value: value}}
}

// Subject implements Predicate.
func (p ValuePredicate) Subject() Variable { return p.Var }

func (ValuePredicate) isPredicate() {}

// Key implements cmp.Key.
func (p ValuePredicate) Key(b *strings.Builder) {
	p.Var.Key(b)
	b.WriteByte(' ')
	p.Predicate.Key(b)
}

func (p ValuePredicate) String() string {
	return p.Var.String() + " " + p.Predicate.String()
}
