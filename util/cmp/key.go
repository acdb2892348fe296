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

// Package cmp provides comparison helpers shared across the reasoner.
package cmp

import (
	"strings"
)

// The Key interface is satisfied by any object whose identity can be serialized
// into a string.
type Key interface {
	// Key writes a serialization of the object's identity to the given
	// strings.Builder. The output is meant for machine comparison but should
	// stay readable enough to make test failures easy to follow.
	Key(*strings.Builder)
}

// GetKey returns the identity/comparison key of the object.
func GetKey(object Key) string {
	var b strings.Builder
	object.Key(&b)
	return b.String()
}

// MinInt returns the smaller of a and b.
func MinInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// MaxInt returns the larger of a and b.
func MaxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
