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

package resolve

import (
	"context"
	"fmt"

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/kg"
	"github.com/ebay/reasoner/rules"
	"github.com/ebay/reasoner/schema"
	"github.com/ebay/reasoner/store"
	"github.com/ebay/reasoner/unify"
	"github.com/ebay/reasoner/util/cmp"
	log "github.com/sirupsen/logrus"
)

// apply answers the atomic query q with rule r, whose head unifies with q's
// atom through u.
func (p *pass) apply(ctx context.Context, q *atom.Query, r *rules.Rule, u unify.Unifier, depth int) ([]answer.Answer, error) {
	metrics.ruleApplicationsTotal.Inc()
	body, err := bodyFor(q, r, u)
	if err != nil {
		return nil, err
	}
	premises, err := p.conjunction(ctx, body, depth+1)
	if err != nil {
		return nil, err
	}
	var res []answer.Answer
	for _, premise := range premises {
		head, ok, err := p.e.conclude(ctx, r, premise)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		p.infer(r, head)
		child, ok := u.Apply(head)
		if !ok || !admits(q, p.e.sch, child) {
			continue
		}
		res = append(res, child.Explained(r.Label, premise))
	}
	metrics.inferredAnswersTotal.Add(float64(len(res)))
	return res, nil
}

// bodyFor returns r's body constrained by the ids and values q places on the
// variables that u maps to the body.
func bodyFor(q *atom.Query, r *rules.Rule, u unify.Unifier) (*atom.Query, error) {
	head := r.Head()
	bodyVars := r.When.Vars()
	var preds []atom.Predicate
	for _, cv := range u.ChildVars() {
		ids := q.IDsOf(cv)
		values := q.ValuesOf(cv)
		for _, hv := range u[cv] {
			if !bodyVars.Contains(hv) {
				continue
			}
			// A copied value becomes a different attribute in the head.
			if head.Kind != atom.KindAttribute || hv != head.Value {
				for _, id := range ids {
					preds = append(preds, atom.ID(hv, id))
				}
			}
			for _, v := range values {
				preds = append(preds, atom.Val(hv, v.Op, v.Value))
			}
		}
	}
	if len(preds) == 0 {
		return r.When, nil
	}
	body, err := r.When.With(preds...)
	if err != nil {
		return nil, fmt.Errorf("constraining body of rule %q: %w", r.Label, err)
	}
	return body, nil
}

// admits returns true if every concept bound in a meets q's constraints.
func admits(q *atom.Query, sch *schema.Schema, a answer.Answer) bool {
	for _, v := range q.Vars() {
		c, ok := a.Get(v)
		if !ok || !q.Admits(sch, v, c) {
			return false
		}
	}
	return true
}

// conclude instantiates r's head from an answer to its body. Derived
// relations and attributes reuse a stored concept with the same type and
// role players or value. Otherwise they get an ID derived from those, so
// concluding the same fact twice gives the same concept. It returns false if
// the premise doesn't bind what the head needs.
func (e *Engine) conclude(ctx context.Context, r *rules.Rule, premise answer.Answer) (answer.Answer, bool, error) {
	head := r.Head()
	typ := r.HeadType()
	bindings := premise.Project(r.Then.Vars()).Bindings()
	switch head.Kind {
	case atom.KindIsa:
		c, ok := bindings[head.Var]
		if !ok {
			return answer.Answer{}, false, nil
		}
		if c.Type == "" || e.sch.IsSubtypeOf(typ, c.Type) {
			c.Type = typ
		}
		bindings[head.Var] = c

	case atom.KindRelation:
		players := make([]store.RolePlayer, len(head.RolePlayers))
		for i, rp := range head.RolePlayers {
			c, ok := bindings[rp.Player]
			if !ok {
				return answer.Answer{}, false, nil
			}
			players[i] = store.RolePlayer{Role: schema.Normalize(rp.Role), Player: c.ID}
		}
		store.SortRolePlayers(players)
		c, found, err := e.store.FindRelation(ctx, typ, players)
		if err != nil {
			return answer.Answer{}, false, err
		}
		if !found {
			c = kg.Concept{
				ID:       kg.InferredID(fmt.Sprintf("%s %v", typ, players)),
				Type:     typ,
				Inferred: true,
			}
		}
		bindings[head.Var] = c

	case atom.KindAttribute:
		if _, ok := bindings[head.Var]; !ok {
			return answer.Answer{}, false, nil
		}
		value, ok := headValue(r, bindings, e.sch.DataType(typ))
		if !ok {
			return answer.Answer{}, false, nil
		}
		c, found, err := e.store.FindAttribute(ctx, typ, value)
		if err != nil {
			return answer.Answer{}, false, err
		}
		if !found {
			c = kg.Concept{
				ID:       kg.InferredID(typ + "=" + cmp.GetKey(value)),
				Type:     typ,
				Value:    value,
				Inferred: true,
			}
		}
		bindings[head.Value] = c

	default:
		panic(fmt.Sprintf("resolve: unexpected atom kind %v", head.Kind))
	}
	return answer.New(bindings), true, nil
}

// headValue returns the value of the attribute an attribute rule concludes:
// either copied from the body or stated by the head's equality predicate.
func headValue(r *rules.Rule, bindings map[atom.Variable]kg.Concept, dt kg.Kind) (kg.Value, bool) {
	head := r.Head()
	var value kg.Value
	if c, ok := bindings[head.Value]; ok {
		value = c.Value
	} else {
		for _, p := range r.Then.ValuesOf(head.Value) {
			if p.Op == kg.OpEqual {
				value = p.Value
			}
		}
	}
	if value.IsZero() {
		return kg.Value{}, false
	}
	if dt == kg.KindDouble && value.Kind() == kg.KindLong {
		value = kg.ADouble(value.ValDouble())
	}
	return value, true
}

// infer remembers a conclusion for materialization.
func (p *pass) infer(r *rules.Rule, head answer.Answer) {
	if !p.e.opts.Materialize {
		return
	}
	key := r.Label + " " + cmp.GetKey(head)
	if p.inferredKeys[key] {
		return
	}
	p.inferredKeys[key] = true
	p.inferred = append(p.inferred, inference{rule: r, head: head})
}

// materialize inserts the conclusions of the pass into the store, in the
// order they were derived.
func (p *pass) materialize(ctx context.Context) error {
	for _, inf := range p.inferred {
		if _, err := p.e.store.Insert(ctx, inf.rule.Then, inf.head); err != nil {
			return fmt.Errorf("materializing rule %q: %w", inf.rule.Label, err)
		}
	}
	metrics.materializedFactsTotal.Add(float64(len(p.inferred)))
	if len(p.inferred) > 0 {
		log.WithFields(log.Fields{
			"facts": len(p.inferred),
		}).Info("Materialized inferred facts")
	}
	return nil
}
