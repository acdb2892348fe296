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

package query

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/kg"
)

// WriteExplanation writes a textual account of how an answer was derived.
// It contains a line for the answer, then an indented line naming the rule
// that concluded it, or "<- join" for an answer joined from the answers to
// the parts of a conjunction. Each premise follows one level deeper, with its
// own derivation. describe renders each bound concept; if nil,
// kg.Concept.String is used.
func WriteExplanation(w io.Writer, a answer.Answer, describe func(kg.Concept) string) error {
	if describe == nil {
		describe = kg.Concept.String
	}
	var b strings.Builder
	writeExplanation(&b, a, describe, 0)
	_, err := io.WriteString(w, b.String())
	return err
}

func writeExplanation(b *strings.Builder, a answer.Answer, describe func(kg.Concept) string, depth int) {
	indent := strings.Repeat("    ", depth)
	b.WriteString(indent)
	writeBindings(b, a, describe)
	b.WriteByte('\n')
	if a.Explanation == nil {
		return
	}
	b.WriteString(indent)
	if a.Explanation.Rule != "" {
		b.WriteString("  <- rule ")
		b.WriteString(a.Explanation.Rule)
	} else {
		b.WriteString("  <- join")
	}
	b.WriteByte('\n')
	for _, premise := range a.Explanation.Answers {
		writeExplanation(b, premise, describe, depth+1)
	}
}

func writeBindings(b *strings.Builder, a answer.Answer, describe func(kg.Concept) string) {
	bindings := a.Bindings()
	parts := make([]string, 0, len(bindings))
	for v, c := range bindings {
		if v.IsAnonymous() {
			continue
		}
		parts = append(parts, v.String()+"="+describe(c))
	}
	sort.Strings(parts)
	b.WriteString(strings.Join(parts, " "))
}

// WriteExplanationGraph writes a Graphviz digraph of the derivations of the
// given answers. Each answer and premise is a node. An edge labelled with the
// rule leads from a conclusion to its premise, and a dashed edge leads from a
// joined answer to each of its parts. Errors from w are ignored, as
// graphviz.Create expects.
func WriteExplanationGraph(w io.Writer, answers []answer.Answer, describe func(kg.Concept) string) {
	if describe == nil {
		describe = kg.Concept.String
	}
	fmt.Fprintln(w, "digraph {")
	fmt.Fprintln(w, "\tnode [shape=box];")
	for i, a := range answers {
		writeExplanationNode(w, fmt.Sprintf("a%d", i), a, describe)
	}
	fmt.Fprintln(w, "}")
}

func writeExplanationNode(w io.Writer, node string, a answer.Answer, describe func(kg.Concept) string) {
	var b strings.Builder
	writeBindings(&b, a, describe)
	fmt.Fprintf(w, "\t%s [label=%q];\n", node, b.String())
	if a.Explanation == nil {
		return
	}
	for i, premise := range a.Explanation.Answers {
		child := fmt.Sprintf("%s_%d", node, i)
		if a.Explanation.Rule != "" {
			fmt.Fprintf(w, "\t%s -> %s [label=%q];\n", node, child, a.Explanation.Rule)
		} else {
			fmt.Fprintf(w, "\t%s -> %s [style=dashed];\n", node, child)
		}
		writeExplanationNode(w, child, premise, describe)
	}
}
