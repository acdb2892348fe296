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

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/config"
	"github.com/ebay/reasoner/kbfile"
	"github.com/ebay/reasoner/query"
	"github.com/ebay/reasoner/resolve"
	"github.com/ebay/reasoner/util/graphviz"
	"github.com/ebay/reasoner/util/parallel"
	"github.com/ebay/reasoner/util/table"
	log "github.com/sirupsen/logrus"
)

func runQuery(ctx context.Context, out io.Writer, kb *kbfile.KB, cfg *config.Reasoner,
	text string, options *options) error {

	resolver := resolve.New(kb.Store, kb.Rules, resolve.OptionsFromConfig(cfg.Resolution))
	engine := query.New(resolver)
	resCh := make(chan query.ResultChunk, 4)
	wait := parallel.GoCaptureError(func() error {
		return engine.Query(ctx, text, query.Options{Limit: options.Limit}, resCh)
	})
	var count uint64
	var explained []answer.Answer
	for chunk := range resCh {
		if count > 0 {
			fmt.Fprint(out, "\n")
		}
		dumpChunk(out, kb, chunk)
		count += uint64(len(chunk.Answers))
		if options.Explain || options.DotFile != "" {
			for _, a := range chunk.Answers {
				if a.Explanation != nil {
					explained = append(explained, a)
				}
			}
		}
	}
	if err := wait(); err != nil {
		return err
	}
	fmtr.Fprintf(out, "\n%d answers.\n", count)
	if options.DotFile != "" {
		err := graphviz.Create(options.DotFile, func(w io.Writer) {
			query.WriteExplanationGraph(w, explained, kb.Describe)
		}, graphviz.Options{})
		if err != nil {
			return err
		}
		fmtr.Fprintf(out, "Wrote %d explanations to %s\n", len(explained), options.DotFile)
	}
	if options.Explain && len(explained) > 0 {
		fmt.Fprint(out, "\nExplanations:\n")
		for _, a := range explained {
			fmt.Fprint(out, "\n")
			if err := query.WriteExplanation(out, a, kb.Describe); err != nil {
				return err
			}
		}
	}
	exact, structural := resolver.CacheLen()
	log.WithFields(log.Fields{
		"answers":         count,
		"exactCached":     exact,
		"structureCached": structural,
	}).Info("Query complete")
	return nil
}

// dumpChunk writes a table with a column per selected variable and a row per
// answer.
func dumpChunk(out io.Writer, kb *kbfile.KB, chunk query.ResultChunk) {
	t := make([][]string, len(chunk.Answers)+1)
	t[0] = make([]string, len(chunk.Columns))
	for i, v := range chunk.Columns {
		t[0][i] = v.String()
	}
	for rowIdx, a := range chunk.Answers {
		row := make([]string, len(chunk.Columns))
		for colIdx, v := range chunk.Columns {
			if c, ok := a.Get(v); ok {
				row[colIdx] = kb.Describe(c)
			}
		}
		t[rowIdx+1] = row
	}
	table.PrettyPrint(out, t, table.HeaderRow)
}
