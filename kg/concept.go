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
	"strconv"
	"strings"

	"github.com/cespare/xxhash"
)

// inferredBit is set on the IDs of concepts that were derived by rules and
// never stored. Stored IDs are allocated sequentially and never reach it.
const inferredBit = uint64(1) << 63

// Concept is a reference to a thing in the knowledge graph: an entity, a
// relation, or an attribute.
type Concept struct {
	// Unique identifier. Two concepts with the same ID are the same thing.
	ID uint64
	// Label of the concept's type.
	Type string
	// Only set for attributes.
	Value Value
	// True if the concept was derived by a rule rather than read from the
	// store.
	Inferred bool
}

// InferredID returns a deterministic ID for a derived concept. Calling it
// again with the same identity returns the same ID, so deriving the same fact
// twice yields the same concept.
func InferredID(identity string) uint64 {
	return xxhash.Sum64String(identity) | inferredBit
}

// IsInferredID returns true if id was returned by InferredID.
func IsInferredID(id uint64) bool {
	return id&inferredBit != 0
}

// String returns a short human-readable form, like "#12" or
// "#12 age=10".
func (c Concept) String() string {
	var b strings.Builder
	b.WriteByte('#')
	b.WriteString(strconv.FormatUint(c.ID&^inferredBit, 10))
	if c.Inferred || IsInferredID(c.ID) {
		b.WriteByte('*')
	}
	if !c.Value.IsZero() {
		b.WriteByte(' ')
		b.WriteString(c.Type)
		b.WriteByte('=')
		b.WriteString(c.Value.String())
	}
	return b.String()
}

// Key implements cmp.Key. Concepts are identified by ID alone.
func (c Concept) Key(b *strings.Builder) {
	b.WriteString(strconv.FormatUint(c.ID, 36))
}
