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

package rules

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/schema"
	log "github.com/sirupsen/logrus"
)

// ErrDuplicateRule is returned when adding a rule whose label is already in
// use.
var ErrDuplicateRule = errors.New("duplicate rule label")

// Cache indexes rules by the type their head concludes. It's safe for
// concurrent use. Lookups return slices that are never modified afterwards;
// writers replace them.
type Cache struct {
	lock   sync.RWMutex
	sch    *schema.Schema
	rules  []*Rule
	byType map[string][]*Rule
}

// NewCache returns a cache holding the given rules.
func NewCache(sch *schema.Schema, rules ...*Rule) (*Cache, error) {
	c := &Cache{sch: sch, byType: make(map[string][]*Rule)}
	for _, r := range rules {
		if err := c.Add(r); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Schema returns the schema the cache is indexed against.
func (c *Cache) Schema() *schema.Schema {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.sch
}

// Add inserts a rule. It returns an error if a rule with the same label
// exists or the schema doesn't define the rule's head type.
func (c *Cache) Add(r *Rule) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	for _, existing := range c.rules {
		if existing.Label == r.Label {
			return fmt.Errorf("%w: %q", ErrDuplicateRule, r.Label)
		}
	}
	if !c.sch.Has(r.HeadType()) {
		return fmt.Errorf("rule %q concludes unknown type %q", r.Label, r.HeadType())
	}
	c.rules = append(c.rules[:len(c.rules):len(c.rules)], r)
	c.index(r)
	log.WithFields(log.Fields{
		"rule":     r.Label,
		"headType": r.HeadType(),
	}).Debug("Added rule")
	return nil
}

func (c *Cache) index(r *Rule) {
	typ := r.HeadType()
	existing := c.byType[typ]
	c.byType[typ] = append(existing[:len(existing):len(existing)], r)
}

// Remove deletes the rule with the given label. It returns false if there's
// no such rule.
func (c *Cache) Remove(label string) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	for i, r := range c.rules {
		if r.Label != label {
			continue
		}
		rules := make([]*Rule, 0, len(c.rules)-1)
		rules = append(rules, c.rules[:i]...)
		c.rules = append(rules, c.rules[i+1:]...)
		c.reindex()
		log.WithField("rule", label).Debug("Removed rule")
		return true
	}
	return false
}

func (c *Cache) reindex() {
	c.byType = make(map[string][]*Rule, len(c.byType))
	for _, r := range c.rules {
		c.index(r)
	}
}

// Refresh re-indexes the rules against a new schema, as needed after a
// schema change. Rules whose head type the new schema no longer defines are
// dropped; their labels are returned.
func (c *Cache) Refresh(sch *schema.Schema) []string {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.sch = sch
	kept := make([]*Rule, 0, len(c.rules))
	var dropped []string
	for _, r := range c.rules {
		if sch.Has(r.HeadType()) {
			kept = append(kept, r)
		} else {
			dropped = append(dropped, r.Label)
		}
	}
	c.rules = kept
	c.reindex()
	if len(dropped) > 0 {
		log.WithFields(log.Fields{
			"dropped": dropped,
			"kept":    len(kept),
		}).Warn("Rules dropped after schema change")
	}
	return dropped
}

// Rules returns every rule, in the order they were added.
func (c *Cache) Rules() []*Rule {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.rules
}

// Len returns the number of rules.
func (c *Cache) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return len(c.rules)
}

// RulesWithType returns the rules concluding label, one of its subtypes or
// one of its supertypes, ordered by rule label.
func (c *Cache) RulesWithType(label string) []*Rule {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.withType(label)
}

func (c *Cache) withType(label string) []*Rule {
	seen := make(map[string]bool)
	var res []*Rule
	add := func(typ string) {
		if seen[typ] {
			return
		}
		seen[typ] = true
		res = append(res, c.byType[typ]...)
	}
	for _, sub := range c.sch.Subs(label) {
		add(sub)
	}
	for _, sup := range c.sch.Sups(label) {
		add(sup)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Label < res[j].Label })
	return res
}

// RulesFor returns the rules whose head could conclude facts matching a.
// These are candidates only: the caller unifies a with each head to find the
// rules that actually apply.
func (c *Cache) RulesFor(a *atom.Atom) []*Rule {
	c.lock.RLock()
	defer c.lock.RUnlock()
	var candidates []*Rule
	if a.Type == "" {
		candidates = c.withType(schema.MetaLabel(kindOf(a)))
	} else {
		candidates = c.withType(a.Type)
	}
	res := candidates[:0:0]
	for _, r := range candidates {
		head := r.Head()
		if head.Kind == a.Kind || (a.Kind == atom.KindIsa && head.Kind != atom.KindIsa) {
			res = append(res, r)
		}
	}
	return res
}

// kindOf returns the kind of schema type an untyped atom refers to.
func kindOf(a *atom.Atom) schema.Kind {
	switch a.Kind {
	case atom.KindIsa:
		return schema.KindEntityType
	case atom.KindRelation:
		return schema.KindRelationType
	case atom.KindAttribute:
		return schema.KindAttributeType
	}
	panic(fmt.Sprintf("rules: unexpected atom kind %v", a.Kind))
}

// Resolvable returns true if some rule could conclude facts matching one of
// q's atoms.
func (c *Cache) Resolvable(q *atom.Query) bool {
	for _, a := range q.Atoms() {
		if len(c.RulesFor(a)) > 0 {
			return true
		}
	}
	return false
}
