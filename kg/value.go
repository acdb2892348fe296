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

// Package kg defines the concrete things a knowledge graph holds: concepts
// and the typed values attributes carry, along with comparison predicates
// over those values.
package kg

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the datatype of a Value.
type Kind uint8

// The datatypes a Value can hold. KindNone is the zero Value's kind and is
// used for concepts that aren't attributes.
const (
	KindNone Kind = iota
	KindString
	KindLong
	KindDouble
	KindBoolean
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindString:
		return "string"
	case KindLong:
		return "long"
	case KindDouble:
		return "double"
	case KindBoolean:
		return "boolean"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind returns the Kind whose String() is s.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(s) {
	case "string":
		return KindString, true
	case "long":
		return KindLong, true
	case "double":
		return KindDouble, true
	case "boolean":
		return KindBoolean, true
	}
	return KindNone, false
}

func (k Kind) numeric() bool {
	return k == KindLong || k == KindDouble
}

// Value is an immutable typed attribute value. The zero Value has KindNone.
type Value struct {
	kind Kind
	str  string
	num  int64
	dbl  float64
}

// AString returns a new Value containing the supplied string.
func AString(s string) Value {
	return Value{kind: KindString, str: s}
}

// ALong returns a new Value containing the supplied integer.
func ALong(n int64) Value {
	return Value{kind: KindLong, num: n}
}

// ADouble returns a new Value containing the supplied float.
func ADouble(f float64) Value {
	return Value{kind: KindDouble, dbl: f}
}

// ABoolean returns a new Value containing the supplied bool.
func ABoolean(b bool) Value {
	v := Value{kind: KindBoolean}
	if b {
		v.num = 1
	}
	return v
}

// Kind returns the datatype of the value.
func (v Value) Kind() Kind {
	return v.kind
}

// IsZero returns true for the zero Value.
func (v Value) IsZero() bool {
	return v.kind == KindNone
}

// ValString returns the string held by the value, or "" for other kinds.
func (v Value) ValString() string {
	return v.str
}

// ValLong returns the integer held by the value, or 0 for other kinds.
func (v Value) ValLong() int64 {
	if v.kind != KindLong {
		return 0
	}
	return v.num
}

// ValDouble returns the float held by the value. Long values are converted.
func (v Value) ValDouble() float64 {
	switch v.kind {
	case KindDouble:
		return v.dbl
	case KindLong:
		return float64(v.num)
	}
	return 0
}

// ValBoolean returns the bool held by the value, or false for other kinds.
func (v Value) ValBoolean() bool {
	return v.kind == KindBoolean && v.num != 0
}

// Comparable returns true if v and other can be ordered relative to each
// other. Longs and doubles compare with each other.
func (v Value) Comparable(other Value) bool {
	if v.kind == other.kind {
		return v.kind != KindNone
	}
	return v.kind.numeric() && other.kind.numeric()
}

// Compare returns -1, 0, or +1 as v is less than, equal to, or greater than
// other. It returns false as the second result if the values aren't
// Comparable.
func (v Value) Compare(other Value) (int, bool) {
	if !v.Comparable(other) {
		return 0, false
	}
	switch {
	case v.kind == KindString:
		return strings.Compare(v.str, other.str), true
	case v.kind == KindLong && other.kind == KindLong,
		v.kind == KindBoolean:
		switch {
		case v.num < other.num:
			return -1, true
		case v.num > other.num:
			return 1, true
		}
		return 0, true
	}
	a, b := v.ValDouble(), other.ValDouble()
	switch {
	case a < b:
		return -1, true
	case a > b:
		return 1, true
	}
	return 0, true
}

// Equal returns true if v and other represent the same value. A long and a
// double holding the same number are equal.
func (v Value) Equal(other Value) bool {
	c, ok := v.Compare(other)
	return ok && c == 0
}

// String returns the value in the syntax used by pattern text.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.str)
	case KindLong:
		return strconv.FormatInt(v.num, 10)
	case KindDouble:
		if v.dbl == math.Trunc(v.dbl) && math.Abs(v.dbl) < 1e15 {
			return strconv.FormatFloat(v.dbl, 'f', 1, 64)
		}
		return strconv.FormatFloat(v.dbl, 'g', -1, 64)
	case KindBoolean:
		return strconv.FormatBool(v.num != 0)
	}
	return "<none>"
}

// Key implements cmp.Key. Numbers are keyed by their float value so that
// Equal values have equal keys.
func (v Value) Key(b *strings.Builder) {
	switch v.kind {
	case KindString:
		b.WriteString("s")
		b.WriteString(strconv.Quote(v.str))
	case KindLong, KindDouble:
		b.WriteString("n")
		b.WriteString(strconv.FormatFloat(v.ValDouble(), 'g', -1, 64))
	case KindBoolean:
		b.WriteString("b")
		b.WriteString(strconv.FormatBool(v.num != 0))
	default:
		b.WriteString("_")
	}
}
