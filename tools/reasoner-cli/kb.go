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

package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/ebay/reasoner/config"
	"github.com/ebay/reasoner/kbfile"
	"github.com/ebay/reasoner/resolve"
	"github.com/ebay/reasoner/rules"
	"github.com/ebay/reasoner/util/table"
	log "github.com/sirupsen/logrus"
)

// validateKB reports what a knowledge base holds. Opening the file already
// checked the schema, every rule and every fact.
func validateKB(out io.Writer, kb *kbfile.KB) error {
	fmtr.Fprintf(out, "OK: %d schema concepts, %d rules, %d stored concepts.\n",
		len(kb.Schema.Labels()), kb.Rules.Len(), kb.Store.Len())
	return nil
}

// listRules writes a table of rules. If typ isn't empty, only the rules
// concluding typ or one of its subtypes are listed.
func listRules(out io.Writer, kb *kbfile.KB, typ string) error {
	var list []*rules.Rule
	if typ == "" {
		list = kb.Rules.Rules()
	} else {
		if !kb.Schema.Has(typ) {
			return fmt.Errorf("unknown type %q", typ)
		}
		list = kb.Rules.RulesWithType(typ)
	}
	t := [][]string{
		{"Label", "Concludes", "When", "Then"},
	}
	for _, r := range list {
		t = append(t, []string{r.Label, r.HeadType(), r.When.String(), r.Then.String()})
	}
	table.PrettyPrint(out, t, table.HeaderRow)
	fmtr.Fprintf(out, "\n%d rules.\n", len(list))
	return nil
}

// materialize resolves the head of every rule with materialization enabled,
// so that all inferred facts are written to the store, and reports how many
// instances of each concluded type were stored before and after.
func materialize(ctx context.Context, out io.Writer, kb *kbfile.KB, cfg *config.Reasoner) error {
	opts := resolve.OptionsFromConfig(cfg.Resolution)
	opts.Materialize = true
	resolver := resolve.New(kb.Store, kb.Rules, opts)

	var types []string
	before := make(map[string]int)
	for _, r := range kb.Rules.Rules() {
		typ := r.HeadType()
		if _, seen := before[typ]; !seen {
			types = append(types, typ)
			before[typ] = kb.Store.Count(typ)
		}
	}
	sort.Strings(types)
	for _, r := range kb.Rules.Rules() {
		answers, err := resolver.Resolve(ctx, r.Then)
		if err != nil {
			return fmt.Errorf("rule %q: %w", r.Label, err)
		}
		log.WithFields(log.Fields{
			"rule":    r.Label,
			"answers": len(answers.Collect()),
		}).Debug("Materialized rule")
	}
	t := [][]string{
		{"Type", "Before", "After"},
	}
	total := 0
	for _, typ := range types {
		after := kb.Store.Count(typ)
		total += after - before[typ]
		t = append(t, []string{typ, fmtr.Sprintf("%d", before[typ]), fmtr.Sprintf("%d", after)})
	}
	table.PrettyPrint(out, t, table.HeaderRow|table.RightJustify)
	fmtr.Fprintf(out, "\n%d facts materialized.\n", total)
	return nil
}
