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

// Package query provides a high level entry point for answering queries
// written in pattern text. It runs the entire query processor, including the
// parser and the reasoner, and streams the answers back in chunks.
package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/query/parser"
	"github.com/ebay/reasoner/resolve"
	"github.com/ebay/reasoner/util/tracing"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
)

// DefaultChunkSize is used when Options.ChunkSize is not set.
const DefaultChunkSize = 64

// ResultChunk contains a part of the results of a query.
type ResultChunk struct {
	// The selected variables, in the order the query listed them.
	Columns []atom.Variable
	Answers []answer.Answer
}

// Options contains various settings that affect the query processing.
type Options struct {
	// The maximum number of answers in each ResultChunk. Defaults to
	// DefaultChunkSize if not set.
	ChunkSize int
	// If set, overrides the limit given in the query text.
	Limit uint64
}

// Engine provides a high level interface for running queries.
type Engine struct {
	resolver *resolve.Engine
}

// New creates a new Engine, the resulting Engine can be used concurrently to
// execute queries.
func New(resolver *resolve.Engine) *Engine {
	return &Engine{resolver: resolver}
}

// Query will execute a query starting from the string representation of the
// query all the way through the steps, Parse, Resolve & Stream. Results will
// be written to the provided 'resCh' channel. The caller can apply
// backpressure to the query execution by reading slowly from this channel.
//
// This function will block until the query has completed and all results have
// been passed to the 'resCh' channel, or an error occurs. In all cases resCh
// will be closed before this function returns.
func (e *Engine) Query(ctx context.Context, rawQuery string,
	opt Options, resCh chan<- ResultChunk) error {

	span, ctx := opentracing.StartSpanFromContext(ctx, "Query")
	defer span.Finish()

	span, _ = opentracing.StartSpanFromContext(ctx, "parse query")
	tracing.UpdateMetric(span, metrics.parseQueryDurationSeconds)
	query, err := parser.ParseQuery(rawQuery)
	var columns []atom.Variable
	if err == nil {
		columns, err = Columns(query)
	}
	span.Finish()
	if err != nil {
		// You can't close an already closed channel. We can't defer
		// close(resCh) because under normal circumstances stream will
		// close it. but we need to close it if we don't get that far.
		close(resCh)
		return err
	}

	span, cctx := opentracing.StartSpanFromContext(ctx, "resolve query")
	tracing.UpdateMetric(span, metrics.resolveQueryDurationSeconds)
	answers, err := e.resolver.ResolvePattern(cctx, query.Match, columns...)
	span.Finish()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"query": rawQuery,
			"error": err,
		}).Warn("Reasoner failed")
		close(resCh)
		return err
	}
	limit := query.Limit
	if opt.Limit > 0 {
		limit = opt.Limit
	}
	if limit > 0 {
		answers = answers.Limit(int(limit))
	}

	span, cctx = opentracing.StartSpanFromContext(ctx, "stream answers")
	defer span.Finish()
	return stream(cctx, answers, columns, opt.ChunkSize, resCh)
}

// Columns returns the variables a query selects: those listed after 'get',
// or else every named variable of the match clause in sorted order. It
// returns an error wrapping atom.ErrUnboundVariable if 'get' lists a
// variable that the match clause doesn't bind.
func Columns(q *parser.Query) ([]atom.Variable, error) {
	bound := q.Match.Vars()
	if len(q.Get) > 0 {
		for _, v := range q.Get {
			if !bound.Contains(v) {
				return nil, fmt.Errorf("%w: %v is not bound by the match clause", atom.ErrUnboundVariable, v)
			}
		}
		return q.Get, nil
	}
	var named []atom.Variable
	for _, v := range bound {
		if !v.IsAnonymous() {
			named = append(named, v)
		}
	}
	sort.Slice(named, func(i, j int) bool { return named[i] < named[j] })
	return named, nil
}

// stream sends answers to resCh in chunks of up to chunkSize, then closes
// resCh.
func stream(ctx context.Context, answers *answer.Stream, columns []atom.Variable,
	chunkSize int, resCh chan<- ResultChunk) error {

	defer close(resCh)
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	send := func(chunk ResultChunk) error {
		select {
		case resCh <- chunk:
			metrics.answersTotal.Add(float64(len(chunk.Answers)))
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	it := answers.Iterator()
	chunk := ResultChunk{Columns: columns}
	for {
		a, ok := it.Next()
		if !ok {
			break
		}
		chunk.Answers = append(chunk.Answers, a)
		if len(chunk.Answers) >= chunkSize {
			if err := send(chunk); err != nil {
				return err
			}
			chunk = ResultChunk{Columns: columns}
		}
	}
	if len(chunk.Answers) > 0 {
		return send(chunk)
	}
	return nil
}
