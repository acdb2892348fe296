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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ebay/reasoner/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lions = "testdata/lions.yaml"

func runCmd(t *testing.T, argv ...string) (string, error) {
	t.Helper()
	options, err := parseArgs(argv)
	require.NoError(t, err)
	var out strings.Builder
	err = run(context.Background(), &out, &config.Reasoner{}, options)
	return out.String(), err
}

func Test_parseArgs(t *testing.T) {
	options, err := parseArgs([]string{"query", "--explain", "--limit=5", "-t", "30s", "kb.yaml", "match $x isa lion;"})
	require.NoError(t, err)
	assert.True(t, options.Query)
	assert.True(t, options.Explain)
	assert.Equal(t, uint64(5), options.Limit)
	assert.Equal(t, 30*time.Second, options.Timeout)
	assert.Equal(t, "kb.yaml", options.KBFile)
	assert.Equal(t, "match $x isa lion;", options.QueryString)

	options, err = parseArgs([]string{"rules", "--type=parentship", "kb.yaml"})
	require.NoError(t, err)
	assert.True(t, options.Rules)
	assert.Equal(t, "parentship", options.Type)
	assert.Equal(t, time.Minute, options.Timeout)

	options, err = parseArgs([]string{"query", "--timeout=0s", "kb.yaml", "-"})
	require.NoError(t, err)
	assert.Equal(t, time.Hour, options.Timeout)
	assert.Equal(t, "-", options.QueryString)

	options, err = parseArgs([]string{"serve", "--cpuprofile=cpu.prof", "kb.yaml"})
	require.NoError(t, err)
	assert.True(t, options.Serve)
	assert.Equal(t, "localhost:9988", options.Listen)
	assert.Equal(t, "cpu.prof", options.CPUProfile)

	_, err = parseArgs([]string{"query", "--limit=many", "kb.yaml", "q"})
	assert.EqualError(t, err, `unable to parse limit value: strconv.ParseUint: parsing "many": invalid syntax`)
}

func Test_runQuery(t *testing.T) {
	out, err := runCmd(t, "query", lions, `match (parent: $p, child: $c) isa parentship; get $p;`)
	require.NoError(t, err)
	assert.Contains(t, out, " $p |")
	assert.Contains(t, out, " a  |")
	assert.Contains(t, out, " b  |")
	assert.Contains(t, out, "\n2 answers.\n")
	assert.NotContains(t, out, "Explanations")

	out, err = runCmd(t, "query", "--explain", lions, `match (parent: $p, child: $c) isa parentship; get $p, $c;`)
	require.NoError(t, err)
	assert.Contains(t, out, "\n2 answers.\n")
	assert.Contains(t, out, "Explanations:")
	assert.Contains(t, out, "<- rule mating-parentship")

	out, err = runCmd(t, "query", "--limit=1", lions, `match $x isa lion;`)
	require.NoError(t, err)
	assert.Contains(t, out, "\n1 answers.\n")

	_, err = runCmd(t, "query", lions, `match $x isa;`)
	assert.Error(t, err)
}

func Test_listRules(t *testing.T) {
	out, err := runCmd(t, "rules", lions)
	require.NoError(t, err)
	assert.Contains(t, out, "mating-parentship")
	assert.Contains(t, out, "parentship")
	assert.Contains(t, out, "\n1 rules.\n")

	out, err = runCmd(t, "rules", "--type=mating", lions)
	require.NoError(t, err)
	assert.Contains(t, out, "\n0 rules.\n")

	_, err = runCmd(t, "rules", "--type=dragon", lions)
	assert.EqualError(t, err, `unknown type "dragon"`)
}

func Test_validateKB(t *testing.T) {
	out, err := runCmd(t, "validate", lions)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "OK: "), out)
	assert.Contains(t, out, " 1 rules, ")

	_, err = runCmd(t, "validate", "testdata/missing.yaml")
	assert.Error(t, err)
}

func Test_materialize(t *testing.T) {
	out, err := runCmd(t, "materialize", lions)
	require.NoError(t, err)
	assert.Contains(t, out, "parentship")
	assert.Contains(t, out, "\n1 facts materialized.\n")
}

func Test_initConfig(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "reasoner.json")
	out, err := runCmd(t, "init-config", filename)
	require.NoError(t, err)
	assert.Equal(t, "Wrote default configuration to "+filename+"\n", out)

	cfg, err := loadConfig(filename)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
}

func Test_readFile(t *testing.T) {
	text, err := readFile("match $x isa lion;")
	require.NoError(t, err)
	assert.Equal(t, "match $x isa lion;", text)

	text, err = readFile(lions)
	require.NoError(t, err)
	assert.Contains(t, text, "mating-parentship")
}

func Test_metricsHandler(t *testing.T) {
	server := httptest.NewServer(metricsHandler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/other")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func Test_runQuery_dot(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "explain.dot")
	out, err := runCmd(t, "query", "--dot="+filename, lions, `match (parent: $p, child: $c) isa parentship;`)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 2 explanations to "+filename)
	assert.NotContains(t, out, "Explanations:")
	dot, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(dot), "digraph {\n"), string(dot))
	assert.Contains(t, string(dot), `[label="mating-parentship"]`)
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	options, err := parseArgs([]string{"serve", lions})
	require.NoError(t, err)
	kb, err := openKB(options.KBFile)
	require.NoError(t, err)
	server := httptest.NewServer(newServer(kb, &config.Reasoner{}).handler())
	t.Cleanup(server.Close)
	return server
}

func postQuery(t *testing.T, server *httptest.Server, form url.Values) (int, queryResponse) {
	t.Helper()
	resp, err := http.PostForm(server.URL+"/q", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var res queryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return resp.StatusCode, res
}

func Test_server_query(t *testing.T) {
	server := newTestServer(t)

	status, res := postQuery(t, server, url.Values{
		"q":       {`match (parent: $p, child: $c) isa parentship; get $p, $c;`},
		"explain": {"true"},
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, res.Error)
	assert.Equal(t, []string{"$p", "$c"}, res.Columns)
	assert.Equal(t, 2, res.NumAnswers)
	assert.ElementsMatch(t, [][]string{{"a", "c"}, {"b", "c"}}, res.Answers)
	if assert.Len(t, res.Explanations, 2) {
		assert.Contains(t, res.Explanations[0], "<- rule mating-parentship")
	}

	status, res = postQuery(t, server, url.Values{"q": {`match $x isa lion;`}, "limit": {"2"}})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, res.NumAnswers)
	assert.Empty(t, res.Explanations)

	status, res = postQuery(t, server, url.Values{"q": {`match $x isa;`}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, res.Error, "Error during query")
	assert.Equal(t, [][]string{}, res.Answers)

	status, res = postQuery(t, server, url.Values{"q": {`match $x isa lion;`}, "limit": {"-1"}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, res.Error, "Unable to parse limit")
}

func getRules(t *testing.T, server *httptest.Server, query string) []ruleJSON {
	t.Helper()
	resp, err := http.Get(server.URL + "/rules" + query)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res []ruleJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return res
}

func Test_server_rules(t *testing.T) {
	server := newTestServer(t)

	list := getRules(t, server, "")
	require.Len(t, list, 1)
	assert.Equal(t, "mating-parentship", list[0].Label)
	assert.Equal(t, "parentship", list[0].Concludes)
	assert.Empty(t, getRules(t, server, "?type=mating"))

	resp, err := http.Get(server.URL + "/rules?type=dragon")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Until the symmetry rule is added, only a is a male partner.
	_, res := postQuery(t, server, url.Values{"q": {`match (male-partner: $x, female-partner: $y) isa mating; get $x;`}})
	assert.Equal(t, 1, res.NumAnswers)

	symmetry := url.Values{"rules": {`
		rule mating-symmetry: when {
			(male-partner: $x, female-partner: $y) isa mating;
		} then {
			(male-partner: $y, female-partner: $x) isa mating;
		};`}}
	resp, err = http.PostForm(server.URL+"/rules", symmetry)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, getRules(t, server, ""), 2)
	assert.Len(t, getRules(t, server, "?type=mating"), 1)

	_, res = postQuery(t, server, url.Values{"q": {`match (male-partner: $x, female-partner: $y) isa mating; get $x;`}})
	assert.Equal(t, 2, res.NumAnswers)

	resp, err = http.PostForm(server.URL+"/rules", symmetry)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, err = http.PostForm(server.URL+"/rules", url.Values{"rules": {`rule broken: when { $x isa dragon; } then { (male-partner: $x, female-partner: $x) isa mating; };`}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/rules/mating-symmetry", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Len(t, getRules(t, server, ""), 1)

	_, res = postQuery(t, server, url.Values{"q": {`match (male-partner: $x, female-partner: $y) isa mating; get $x;`}})
	assert.Equal(t, 1, res.NumAnswers)

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func Test_server_notFound(t *testing.T) {
	server := newTestServer(t)
	resp, err := http.Get(server.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
