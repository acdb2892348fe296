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

// Package validate checks that rules make sense against a schema. Rule
// validation collects every problem it finds rather than stopping at the
// first, so a rule author can fix them all in one go.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/kg"
	"github.com/ebay/reasoner/schema"
)

// Errors is a set of validation failures, kept sorted and free of
// duplicates. A non-empty Errors is an error.
type Errors []string

func (errs Errors) Error() string {
	switch len(errs) {
	case 0:
		return "no errors"
	case 1:
		return errs[0]
	}
	return fmt.Sprintf("%d errors: %s", len(errs), strings.Join(errs, "; "))
}

// Has returns true if some error message contains substr.
func (errs Errors) Has(substr string) bool {
	for _, e := range errs {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

// Err returns errs as an error, or nil if there are none.
func (errs Errors) Err() error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (errs *Errors) add(format string, args ...interface{}) {
	*errs = append(*errs, fmt.Sprintf(format, args...))
}

func (errs *Errors) merge(other Errors) {
	*errs = append(*errs, other...)
}

// normalize sorts errs and removes duplicates.
func (errs Errors) normalize() Errors {
	if len(errs) == 0 {
		return nil
	}
	sort.Strings(errs)
	out := errs[:1]
	for _, e := range errs[1:] {
		if e != out[len(out)-1] {
			out = append(out, e)
		}
	}
	return out
}

// Validator checks atoms of one kind. Heads are checked against the rule
// body the head's variables come from.
type Validator interface {
	ValidateHead(sch *schema.Schema, head *atom.Atom, body *atom.Query) Errors
	ValidateBody(sch *schema.Schema, a *atom.Atom) Errors
}

// For returns the Validator for atoms of the given kind.
func For(kind atom.Kind) Validator {
	switch kind {
	case atom.KindIsa:
		return isaValidator{}
	case atom.KindRelation:
		return relationValidator{}
	case atom.KindAttribute:
		return attributeValidator{}
	}
	panic(fmt.Sprintf("validate: unexpected atom kind %v", kind))
}

// headConcept checks the concept a head atom concludes: it must exist, be of
// the expected kind and be concrete.
func headConcept(sch *schema.Schema, a *atom.Atom, want schema.Kind) (*schema.Concept, Errors) {
	var errs Errors
	c, ok := a.SchemaConcept(sch)
	if !ok {
		if a.Type == "" {
			errs.add("rule head %v doesn't state a type", a)
		} else {
			errs.add("unknown label %q", a.Type)
		}
		return nil, errs
	}
	if c.Kind != want {
		errs.add("meta type mismatch: head %v concludes %v, which isn't a %v", a, c, want)
	}
	if c.IsMeta() {
		errs.add("rule head %v concludes meta type %q", a, c.Label)
	}
	if c.Abstract {
		errs.add("rule head %v concludes abstract type %q", a, c.Label)
	}
	if c.Implicit {
		errs.add("rule head %v concludes implicit type %q", a, c.Label)
	}
	return c, errs
}

// noHeadIDs rejects id predicates on a head's variables. A rule concludes
// facts about whatever the body binds, never about a fixed concept.
func noHeadIDs(head *atom.Atom) Errors {
	var errs Errors
	for _, p := range head.IDs() {
		errs.add("rule head can't constrain ids: %v", p)
	}
	return errs
}

// bodyType returns the most specific type the body states for v, if any.
func bodyType(sch *schema.Schema, body *atom.Query, v atom.Variable) (string, bool) {
	if body == nil {
		return "", false
	}
	typ, ok := sch.Lowest(body.Labels(v)...)
	return typ, ok && typ != ""
}

// checkPlays reports a role the player can't play given the type the query
// states for it.
func checkPlays(sch *schema.Schema, q *atom.Query, player atom.Variable, role string, errs *Errors) {
	typ, ok := bodyType(sch, q, player)
	if ok && !sch.CanPlay(typ, role) {
		errs.add("type %q cannot play role %q", typ, role)
	}
}

// checkOwns reports an attribute the owner can't own given the type the query
// states for it.
func checkOwns(sch *schema.Schema, q *atom.Query, owner atom.Variable, attr string, errs *Errors) {
	typ, ok := bodyType(sch, q, owner)
	if ok && !sch.Owns(typ, attr) {
		errs.add("type %q cannot own attribute %q", typ, attr)
	}
}

// fits returns true if a value of kind k may be stored in an attribute of
// datatype dt. Longs fit doubles.
func fits(dt, k kg.Kind) bool {
	return dt == kg.KindNone || dt == k || (dt == kg.KindDouble && k == kg.KindLong)
}

type isaValidator struct{}

func (isaValidator) ValidateHead(sch *schema.Schema, head *atom.Atom, body *atom.Query) Errors {
	_, errs := headConcept(sch, head, schema.KindEntityType)
	if head.Direct {
		errs.add("rule head %v can't use isa!", head)
	}
	errs.merge(noHeadIDs(head))
	return errs
}

func (isaValidator) ValidateBody(sch *schema.Schema, a *atom.Atom) Errors {
	var errs Errors
	c, ok := a.SchemaConcept(sch)
	switch {
	case !ok:
		errs.add("unknown label %q", a.Type)
	case !c.Kind.IsType():
		errs.add("%v isn't a type: %v", a, c)
	}
	return errs
}

type relationValidator struct{}

func (relationValidator) ValidateHead(sch *schema.Schema, head *atom.Atom, body *atom.Query) Errors {
	rel, errs := headConcept(sch, head, schema.KindRelationType)
	errs.merge(noHeadIDs(head))
	for _, rp := range head.RolePlayers {
		switch {
		case rp.Role == "":
			errs.add("ambiguous role: %v has no role in rule head %v", rp.Player, head)
			continue
		case schema.Normalize(rp.Role) == schema.Role:
			errs.add("ambiguous role: %v plays the meta role in rule head %v", rp.Player, head)
			continue
		}
		role, ok := sch.Get(rp.Role)
		if !ok {
			errs.add("unknown label %q", rp.Role)
			continue
		}
		if role.Kind != schema.KindRole {
			errs.add("%v in rule head %v isn't a role", role, head)
			continue
		}
		if role.Implicit {
			errs.add("rule head %v uses implicit role %q", head, role.Label)
		}
		if rel != nil && rel.Kind == schema.KindRelationType && !sch.Relates(rel.Label, role.Label) {
			errs.add("role %q is not related by %q", role.Label, rel.Label)
		}
		checkPlays(sch, body, rp.Player, role.Label, &errs)
	}
	return errs
}

func (relationValidator) ValidateBody(sch *schema.Schema, a *atom.Atom) Errors {
	var errs Errors
	var rel *schema.Concept
	if a.Type != "" {
		c, ok := a.SchemaConcept(sch)
		switch {
		case !ok:
			errs.add("unknown label %q", a.Type)
		case c.Kind != schema.KindRelationType:
			errs.add("%q is not a relation type", a.Type)
		default:
			rel = c
		}
	}
	for _, rp := range a.RolePlayers {
		if rp.Role == "" {
			continue
		}
		role, ok := sch.Get(rp.Role)
		if !ok {
			errs.add("unknown label %q", rp.Role)
			continue
		}
		if role.Kind != schema.KindRole {
			errs.add("%q is not a role", rp.Role)
			continue
		}
		if rel != nil && !sch.Relates(rel.Label, role.Label) {
			errs.add("role %q is not related by %q", role.Label, rel.Label)
		}
		checkPlays(sch, a.Query(), rp.Player, role.Label, &errs)
	}
	return errs
}

type attributeValidator struct{}

func (attributeValidator) ValidateHead(sch *schema.Schema, head *atom.Atom, body *atom.Query) Errors {
	attr, errs := headConcept(sch, head, schema.KindAttributeType)
	errs.merge(noHeadIDs(head))
	if attr == nil || attr.Kind != schema.KindAttributeType {
		return errs
	}
	checkOwns(sch, body, head.Var, attr.Label, &errs)
	var preds []kg.Predicate
	if q := head.Query(); q != nil {
		preds = q.ValuesOf(head.Value)
	}
	copied := body != nil && body.Vars().Contains(head.Value)
	switch {
	case copied && len(preds) > 0:
		errs.add("rule head %v both copies %v from the body and constrains it", head, head.Value)
	case copied:
		if from, ok := bodyType(sch, body, head.Value); ok {
			src := sch.DataType(from)
			if src != kg.KindNone && !fits(attr.DataType, src) {
				errs.add("datatype mismatch: can't copy %v value of %q into %v attribute %q",
					src, from, attr.DataType, attr.Label)
			}
		}
	case len(preds) != 1:
		errs.add("rule head %v needs exactly one value, found %d predicates", head, len(preds))
	case preds[0].Op != kg.OpEqual:
		errs.add("rule head %v needs an equality, not %v", head, preds[0])
	case !fits(attr.DataType, preds[0].Value.Kind()):
		errs.add("datatype mismatch: %v value %v for %v attribute %q",
			preds[0].Value.Kind(), preds[0].Value, attr.DataType, attr.Label)
	}
	return errs
}

func (attributeValidator) ValidateBody(sch *schema.Schema, a *atom.Atom) Errors {
	var errs Errors
	c, ok := a.SchemaConcept(sch)
	switch {
	case !ok:
		errs.add("unknown label %q", a.Type)
		return errs
	case c.Kind != schema.KindAttributeType:
		errs.add("%q is not an attribute type", a.Type)
		return errs
	}
	q := a.Query()
	if q == nil {
		return errs
	}
	checkOwns(sch, q, a.Var, c.Label, &errs)
	for _, p := range q.ValuesOf(a.Value) {
		if c.DataType == kg.KindNone {
			continue
		}
		if !p.Value.Comparable(zeroOf(c.DataType)) {
			errs.add("datatype mismatch: %v compares a %v attribute %q with %v",
				a, c.DataType, c.Label, p)
		}
	}
	return errs
}

// zeroOf returns a value of kind k.
func zeroOf(k kg.Kind) kg.Value {
	switch k {
	case kg.KindString:
		return kg.AString("")
	case kg.KindLong:
		return kg.ALong(0)
	case kg.KindDouble:
		return kg.ADouble(0)
	case kg.KindBoolean:
		return kg.ABoolean(false)
	}
	return kg.Value{}
}
