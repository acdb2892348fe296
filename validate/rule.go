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

package validate

import (
	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/schema"
)

// Rule validates the rule "when => then" named label and returns every
// problem found. It returns nil for a valid rule.
//
// A valid rule has a conjunctive body and a head concluding exactly one
// atom, refers only to labels the schema defines, passes the head and body
// checks of the relevant Validators, and binds every head variable in the
// body, except the relation or attribute instance the head concludes.
func Rule(sch *schema.Schema, label string, when, then atom.Pattern) Errors {
	var errs Errors
	if label == "" {
		errs.add("rule needs a label")
	}
	if !when.IsConjunctive() {
		errs.add("rule %q: body must be a single conjunction, not a disjunction", label)
	}
	if !then.IsConjunctive() {
		errs.add("rule %q: head must be a single conjunction, not a disjunction", label)
	}
	if len(when.Atoms) == 0 {
		errs.add("rule %q: body is empty", label)
	}
	if len(then.Atoms) == 0 {
		errs.add("rule %q: head is empty", label)
	}
	if len(errs) > 0 {
		return errs.normalize()
	}
	body, err := when.Query()
	if err != nil {
		errs.add("rule %q: body: %v", label, err)
	}
	head, err := then.Query()
	if err != nil {
		errs.add("rule %q: head: %v", label, err)
	}
	if len(errs) > 0 {
		return errs.normalize()
	}
	if n := len(head.Selectable()); n != 1 {
		errs.add("rule %q: head must conclude exactly one atom, found %d", label, n)
		return errs.normalize()
	}
	concluded := head.Atom()
	if len(head.Atoms()) > 1 {
		errs.add("rule %q: head may only state %v", label, concluded)
	}
	unknown := unknownLabels(sch, body, head)
	if len(unknown) > 0 {
		return unknown.normalize()
	}

	errs.merge(For(concluded.Kind).ValidateHead(sch, concluded, body))
	for _, a := range body.Atoms() {
		errs.merge(For(a.Kind).ValidateBody(sch, a))
	}
	if _, err := body.VarTypes(sch); err != nil {
		errs.add("rule %q: body: %v", label, err)
	}

	bound := body.Vars()
	for _, v := range concluded.Vars().Sub(derived(concluded, bound)) {
		if !bound.Contains(v) {
			errs.add("unbound variable: %v in rule head isn't bound by the body", v)
		}
	}
	return errs.normalize()
}

// derived returns the variables a head atom creates new concepts for.
func derived(head *atom.Atom, bound atom.VarSet) atom.VarSet {
	switch head.Kind {
	case atom.KindIsa:
		return nil
	case atom.KindRelation:
		return atom.VarSet{head.Var}
	case atom.KindAttribute:
		if bound.Contains(head.Value) {
			return nil
		}
		return atom.VarSet{head.Value}
	}
	panic("validate: unexpected atom kind " + head.Kind.String())
}

// unknownLabels reports every label the queries use that the schema doesn't
// define.
func unknownLabels(sch *schema.Schema, queries ...*atom.Query) Errors {
	var errs Errors
	check := func(label string) {
		if label != "" && !sch.Has(label) {
			errs.add("unknown label %q", label)
		}
	}
	for _, q := range queries {
		for _, a := range q.Atoms() {
			check(a.Type)
			for _, rp := range a.RolePlayers {
				check(rp.Role)
			}
		}
	}
	return errs
}
