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
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ebay/reasoner/config"
	"github.com/ebay/reasoner/kbfile"
	"github.com/ebay/reasoner/query"
	"github.com/ebay/reasoner/query/parser"
	"github.com/ebay/reasoner/resolve"
	"github.com/ebay/reasoner/util/web"
	"github.com/julienschmidt/httprouter"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// metricsHandler returns the HTTP handler that exposes Prometheus metrics.
func metricsHandler() http.Handler {
	m := httprouter.New()
	m.Handler("GET", "/metrics", promhttp.Handler())
	return logRequests(m)
}

func logRequests(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Debugf("[HTTP] %v %v", r.Method, r.URL)
		h.ServeHTTP(w, r)
	})
}

// serveMetrics blocks serving metricsHandler on addr. Failures are logged
// and otherwise ignored, since metrics aren't needed to answer a command.
func serveMetrics(addr string) {
	err := http.ListenAndServe(addr, metricsHandler())
	log.WithError(err).WithField("address", addr).Warn("Metrics server exited")
}

// server answers queries over HTTP against one knowledge base. Its resolver
// lives as long as the server, so answers are cached across requests until
// the rules change.
type server struct {
	kb       *kbfile.KB
	resolver *resolve.Engine
	engine   *query.Engine
}

func newServer(kb *kbfile.KB, cfg *config.Reasoner) *server {
	resolver := resolve.New(kb.Store, kb.Rules, resolve.OptionsFromConfig(cfg.Resolution))
	return &server{
		kb:       kb,
		resolver: resolver,
		engine:   query.New(resolver),
	}
}

func (s *server) handler() http.Handler {
	m := httprouter.New()
	m.POST("/q", s.queryHTTP)
	m.GET("/rules", s.listRulesHTTP)
	m.POST("/rules", s.addRulesHTTP)
	m.DELETE("/rules/:label", s.removeRuleHTTP)
	m.Handler("GET", "/metrics", promhttp.Handler())
	m.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		web.WriteError(w, http.StatusNotFound, "Not found: %v %v", r.Method, r.URL.Path)
	})
	return logRequests(m)
}

// serveKB blocks serving queries against kb on addr.
func serveKB(ctx context.Context, kb *kbfile.KB, cfg *config.Reasoner, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: newServer(kb, cfg).handler(),
	}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	log.WithField("address", addr).Info("Serving queries")
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Structure to hold the JSON response for HTTP queries.
type queryResponse struct {
	Error        string     `json:"error,omitempty"`
	QueryString  string     `json:"query"`
	Columns      []string   `json:"columns"`
	NumAnswers   int        `json:"numAnswers"`
	Answers      [][]string `json:"answers"`
	Explanations []string   `json:"explanations,omitempty"`
}

// queryHTTP answers the query in the form value "q". The optional "limit"
// value caps the number of answers, and "explain=true" includes the
// derivation of each inferred answer.
func (s *server) queryHTTP(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	querySpan, ctx := opentracing.StartSpanFromContext(r.Context(), "query")
	defer querySpan.Finish()

	resp := queryResponse{Answers: [][]string{}}
	status := http.StatusOK
	// Always write out JSON, even for errors.
	defer func() {
		web.WriteJSON(w, status, resp)
	}()

	if err := r.ParseForm(); err != nil {
		resp.Error = fmt.Sprintf("Unable to parse POST data: %v", err)
		status = http.StatusBadRequest
		return
	}
	var opts query.Options
	if limit := r.Form.Get("limit"); limit != "" {
		n, err := strconv.ParseUint(limit, 10, 64)
		if err != nil {
			resp.Error = fmt.Sprintf("Unable to parse limit: %v", err)
			status = http.StatusBadRequest
			return
		}
		opts.Limit = n
	}
	explain := r.Form.Get("explain") == "true"
	resp.QueryString = r.Form.Get("q")
	log.Debugf("query string:\n%s", resp.QueryString)

	resCh := make(chan query.ResultChunk, 4)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.engine.Query(ctx, resp.QueryString, opts, resCh)
	}()
	for chunk := range resCh {
		if resp.Columns == nil {
			resp.Columns = make([]string, len(chunk.Columns))
			for i, v := range chunk.Columns {
				resp.Columns[i] = v.String()
			}
		}
		for _, a := range chunk.Answers {
			row := make([]string, len(chunk.Columns))
			for i, v := range chunk.Columns {
				if c, ok := a.Get(v); ok {
					row[i] = s.kb.Describe(c)
				}
			}
			resp.Answers = append(resp.Answers, row)
			if explain && a.Explanation != nil {
				var b strings.Builder
				query.WriteExplanation(&b, a, s.kb.Describe)
				resp.Explanations = append(resp.Explanations, b.String())
			}
		}
	}
	resp.NumAnswers = len(resp.Answers)
	if err := <-errCh; err != nil {
		resp.Error = fmt.Sprintf("Error during query: %v", err)
		status = http.StatusBadRequest
		if resp.NumAnswers > 0 || errorIsInternal(err) {
			status = http.StatusInternalServerError
		}
	}
}

// errorIsInternal returns true if err isn't the fault of the query text.
func errorIsInternal(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.Is(err, resolve.ErrIterationLimit) || errors.Is(err, resolve.ErrRecursionLimit)
}

type ruleJSON struct {
	Label     string `json:"label"`
	Concludes string `json:"concludes"`
	When      string `json:"when"`
	Then      string `json:"then"`
}

// listRulesHTTP lists the rules, optionally only those concluding the type
// given by the form value "type".
func (s *server) listRulesHTTP(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	rc := s.resolver.Rules()
	list := rc.Rules()
	if typ := r.URL.Query().Get("type"); typ != "" {
		if !s.kb.Schema.Has(typ) {
			web.WriteError(w, http.StatusBadRequest, "Unknown type %q", typ)
			return
		}
		list = rc.RulesWithType(typ)
	}
	res := make([]ruleJSON, len(list))
	for i, rule := range list {
		res[i] = ruleJSON{
			Label:     rule.Label,
			Concludes: rule.HeadType(),
			When:      rule.When.String(),
			Then:      rule.Then.String(),
		}
	}
	web.Write(w, res)
}

// addRulesHTTP adds the rules written in the form value "rules". Either all
// of them are added, or none is.
func (s *server) addRulesHTTP(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := r.ParseForm(); err != nil {
		web.WriteError(w, http.StatusBadRequest, "Unable to parse POST data: %v", err)
		return
	}
	defs, err := parser.ParseRules(r.Form.Get("rules"))
	if err != nil {
		web.WriteError(w, http.StatusBadRequest, "%v", err)
		return
	}
	for _, def := range defs {
		if errs := s.resolver.ValidateRule(def.Label, def.When, def.Then); len(errs) > 0 {
			web.WriteError(w, http.StatusBadRequest, "Invalid rule %q: %v", def.Label, errs)
			return
		}
	}
	added := make([]string, 0, len(defs))
	for _, def := range defs {
		if _, err := s.resolver.AddRule(def.Label, def.When, def.Then); err != nil {
			for _, label := range added {
				s.resolver.RemoveRule(label)
			}
			web.WriteError(w, http.StatusConflict, "%v", err)
			return
		}
		added = append(added, def.Label)
	}
	log.WithField("rules", added).Info("Added rules")
	web.Write(w, map[string][]string{"added": added})
}

func (s *server) removeRuleHTTP(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	label := params.ByName("label")
	if !s.resolver.RemoveRule(label) {
		web.WriteError(w, http.StatusNotFound, "No rule labelled %q", label)
		return
	}
	log.WithField("rule", label).Info("Removed rule")
	web.Write(w, nil)
}
