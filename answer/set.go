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

package answer

import (
	"github.com/ebay/reasoner/util/cmp"
)

// Set is an insertion-ordered collection of answers without duplicates.
// Answers are identified by their keys. The zero Set is empty and ready to
// use. A Set isn't safe for concurrent use.
type Set struct {
	index   map[string]int
	answers []Answer
}

// NewSet returns a set holding the given answers.
func NewSet(answers ...Answer) *Set {
	s := new(Set)
	s.AddAll(answers)
	return s
}

// Add inserts a, returning false if an equal answer was already present. The
// existing answer, and its explanation, is kept in that case.
func (s *Set) Add(a Answer) bool {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	key := cmp.GetKey(a)
	if _, exists := s.index[key]; exists {
		return false
	}
	s.index[key] = len(s.answers)
	s.answers = append(s.answers, a)
	return true
}

// AddAll inserts every answer and returns how many were new.
func (s *Set) AddAll(answers []Answer) int {
	added := 0
	for _, a := range answers {
		if s.Add(a) {
			added++
		}
	}
	return added
}

// Contains returns true if an answer equal to a is in the set.
func (s *Set) Contains(a Answer) bool {
	_, ok := s.index[cmp.GetKey(a)]
	return ok
}

// Len returns the number of answers in the set.
func (s *Set) Len() int {
	return len(s.answers)
}

// Answers returns the answers in insertion order. The caller must not modify
// the returned slice.
func (s *Set) Answers() []Answer {
	return s.answers
}
