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

// Command reasoner-cli answers queries over a knowledge base file, inferring
// facts with the file's rules.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	docopt "github.com/docopt/docopt-go"
	"github.com/ebay/reasoner/config"
	"github.com/ebay/reasoner/kbfile"
	"github.com/ebay/reasoner/util/debuglog"
	"github.com/ebay/reasoner/util/profiling"
	"github.com/ebay/reasoner/util/tracing"
	opentracing "github.com/opentracing/opentracing-go"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var fmtr = message.NewPrinter(language.English)

const usage = `reasoner-cli is a command-line tool for reasoning over a knowledge base file.

Usage:
  reasoner-cli [options] query [--explain --dot=FILE --limit=NUM] KB QUERY
  reasoner-cli [options] validate KB
  reasoner-cli [options] rules [--type=LABEL] KB
  reasoner-cli [options] materialize KB
  reasoner-cli [options] serve [--listen=ADDR] KB
  reasoner-cli init-config OUT

Options:
  --config=FILE            JSON configuration file with resolution, logging and tracing settings.
  -t=DUR, --timeout=DUR    Timeout for reasoning [default: 1m]
  --cpuprofile=FILE        Write a CPU profile of the command to FILE.
  --explain                Print the rule applications behind each inferred answer.
  --dot=FILE               Draw the rule applications behind each inferred answer
                           into FILE, which may be .dot, .pdf, .png or .svg.
  --limit=NUM              Print at most this many answers.
  --type=LABEL             Only list the rules that conclude LABEL or one of its subtypes.
  --listen=ADDR            Address to serve HTTP queries on [default: localhost:9988]

Examples:
  # Who are the ancestors of Dan?
  reasoner-cli query family.yaml 'match
    $d has name "Dan";
    (ancestor: $a, descendant: $d) isa ancestorship;
    get $a;'

  # Read the query from stdin.
  reasoner-cli query --explain family.yaml - <<EOF
  match $x isa adult; get $x;
EOF

  # Check that the schema, rules and facts of a file are consistent.
  reasoner-cli validate family.yaml

  # Write inferred facts into the store and report how many there are.
  reasoner-cli materialize family.yaml

  # Serve queries over HTTP.
  reasoner-cli serve family.yaml &
  curl -d 'q=match $x isa adult;' localhost:9988/q
  curl localhost:9988/rules
`

type options struct {
	ConfigFile string `docopt:"--config"`
	CPUProfile string `docopt:"--cpuprofile"`
	// Timeout is never zero; it's set to 1 hour if the user passes 0s.
	Timeout       time.Duration
	TimeoutString string `docopt:"--timeout"`
	KBFile        string `docopt:"KB"`

	// Query
	Query       bool   `docopt:"query"`
	QueryString string `docopt:"QUERY"`
	Explain     bool   `docopt:"--explain"`
	DotFile     string `docopt:"--dot"`
	Limit       uint64
	LimitString string `docopt:"--limit"`

	// Validate
	Validate bool `docopt:"validate"`

	// Rules
	Rules bool   `docopt:"rules"`
	Type  string `docopt:"--type"`

	// Materialize
	Materialize bool `docopt:"materialize"`

	// Serve
	Serve  bool   `docopt:"serve"`
	Listen string `docopt:"--listen"`

	// InitConfig
	InitConfig bool   `docopt:"init-config"`
	ConfigOut  string `docopt:"OUT"`
}

func parseArgs(argv []string) (*options, error) {
	parser := &docopt.Parser{HelpHandler: docopt.PrintHelpOnly}
	opts, err := parser.ParseArgs(usage, argv, "")
	if err != nil {
		return nil, fmt.Errorf("error parsing command-line arguments: %v", err)
	}
	var options options
	err = opts.Bind(&options)
	if err != nil {
		return nil, fmt.Errorf("error binding command-line arguments: %v\nfrom: %+v", err, opts)
	}
	if options.TimeoutString != "" {
		options.Timeout, err = time.ParseDuration(options.TimeoutString)
		if err != nil {
			return nil, fmt.Errorf("unable to parse timeout value: %v", err)
		}
	}
	if options.Timeout == 0 {
		options.Timeout = time.Hour
	}
	if options.LimitString != "" {
		options.Limit, err = strconv.ParseUint(options.LimitString, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("unable to parse limit value: %v", err)
		}
	}
	return &options, nil
}

// loadConfig returns the configuration in filename, or the defaults if
// filename is empty.
func loadConfig(filename string) (*config.Reasoner, error) {
	if filename == "" {
		return new(config.Reasoner), nil
	}
	return config.Load(filename)
}

func main() {
	options, err := parseArgs(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	cfg, err := loadConfig(options.ConfigFile)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}
	level, err := cfg.Level()
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	debuglog.Configure(debuglog.Options{Level: level})

	tracer, err := tracing.New("reasoner-cli", cfg.Tracing)
	if err != nil {
		log.WithError(err).Warn("Could not initialize OpenTracing tracer")
	} else {
		defer tracer.Close()
	}
	if cfg.MetricsAddress != "" {
		go serveMetrics(cfg.MetricsAddress)
	}
	stopProfile := func() {}
	if options.CPUProfile != "" {
		stopProfile, err = profiling.StartCPUProfile(options.CPUProfile)
		if err != nil {
			log.Fatalf("Unable to start CPU profile: %v", err)
		}
	}

	span, ctx := opentracing.StartSpanFromContext(context.Background(), "reasoner-cli run")
	err = run(ctx, os.Stdout, cfg, options)
	span.Finish()
	stopProfile()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// run executes the subcommand selected by options, writing its output to out.
func run(ctx context.Context, out io.Writer, cfg *config.Reasoner, options *options) error {
	if options.InitConfig {
		return initConfig(out, options.ConfigOut)
	}
	kb, err := openKB(options.KBFile)
	if err != nil {
		return err
	}
	// Reasoning runs under timeoutCtx. Reading the query from stdin doesn't,
	// so the timeout doesn't count against the user input.
	switch {
	case options.Query:
		text, err := readFile(options.QueryString)
		if err != nil {
			return err
		}
		timeoutCtx, cancelFunc := context.WithTimeout(ctx, options.Timeout)
		defer cancelFunc()
		return runQuery(timeoutCtx, out, kb, cfg, text, options)
	case options.Validate:
		return validateKB(out, kb)
	case options.Rules:
		return listRules(out, kb, options.Type)
	case options.Materialize:
		timeoutCtx, cancelFunc := context.WithTimeout(ctx, options.Timeout)
		defer cancelFunc()
		return materialize(timeoutCtx, out, kb, cfg)
	case options.Serve:
		return serveKB(ctx, kb, cfg, options.Listen)
	}
	return fmt.Errorf("command not implemented")
}

func openKB(filename string) (*kbfile.KB, error) {
	f, err := kbfile.Load(filename)
	if err != nil {
		return nil, err
	}
	kb, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return kb, nil
}

// readFile returns the text of the named file, or of stdin when the name is
// "-". Any other argument is taken to be the text itself.
func readFile(arg string) (string, error) {
	if arg == "-" {
		input, err := io.ReadAll(os.Stdin)
		return string(input), err
	}
	if _, err := os.Stat(arg); err == nil {
		input, err := os.ReadFile(arg)
		return string(input), err
	}
	return arg, nil
}

func initConfig(out io.Writer, filename string) error {
	cfg := &config.Reasoner{
		LogLevel: "info",
	}
	if err := config.Write(cfg, filename); err != nil {
		return err
	}
	fmtr.Fprintf(out, "Wrote default configuration to %s\n", filename)
	return nil
}
