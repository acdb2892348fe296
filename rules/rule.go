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

// Package rules holds validated inference rules and indexes them by the type
// they conclude.
package rules

import (
	"fmt"

	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/schema"
	"github.com/ebay/reasoner/validate"
)

// Rule is a Horn clause: every answer to When implies Then. Rules are
// immutable once created.
type Rule struct {
	Label string
	// The body. It selects all of its variables.
	When *atom.Query
	// The head. It has exactly one selectable atom; see Head.
	Then *atom.Query
}

// New validates and returns a rule. If the rule isn't valid against sch, the
// returned error is a validate.Errors listing every problem.
func New(sch *schema.Schema, label string, when, then atom.Pattern) (*Rule, error) {
	if errs := validate.Rule(sch, label, when, then); len(errs) > 0 {
		return nil, errs
	}
	body, err := when.Query(when.Vars()...)
	if err != nil {
		return nil, fmt.Errorf("rule %q: body: %w", label, err)
	}
	head, err := then.Query(then.Vars()...)
	if err != nil {
		return nil, fmt.Errorf("rule %q: head: %w", label, err)
	}
	return &Rule{Label: label, When: body, Then: head}, nil
}

// MustNew is like New but panics on error. It's intended for tests.
func MustNew(sch *schema.Schema, label string, when, then atom.Pattern) *Rule {
	r, err := New(sch, label, when, then)
	if err != nil {
		panic(err)
	}
	return r
}

// Head returns the atom the rule concludes.
func (r *Rule) Head() *atom.Atom {
	return r.Then.Atom()
}

// HeadType returns the normalized label of the type the rule concludes.
func (r *Rule) HeadType() string {
	return schema.Normalize(r.Head().Type)
}

func (r *Rule) String() string {
	return fmt.Sprintf("%s: when { %v } then { %v }", r.Label, r.When, r.Then)
}
