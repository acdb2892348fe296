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

package config

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ebay/reasoner/util/errors"
	"github.com/sirupsen/logrus"
)

// Load parses the configuration from the given JSON file and validates it.
// Upon success, it returns a non-nil configuration. Otherwise, it returns an
// error, which already includes the filename.
func Load(filename string) (*Reasoner, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	decoder := json.NewDecoder(bufio.NewReader(f))
	decoder.DisallowUnknownFields()
	cfg := new(Reasoner)
	// Decoding into **Reasoner is what lets us notice an input of "null".
	err = decoder.Decode(&cfg)
	if err != nil {
		return nil, fmt.Errorf("error decoding JSON value in %v: %v", filename, err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("loading %v resulted in nil config", filename)
	}
	if decoder.More() {
		return nil, fmt.Errorf("found unexpected data after config in %v", filename)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config in %v: %v", filename, err)
	}
	return cfg, nil
}

// Validate returns an error if any field holds a value the tools can't use.
func (cfg *Reasoner) Validate() error {
	if cfg.Resolution.MaxDepth < 0 {
		return fmt.Errorf("resolution.maxDepth must not be negative, got %d", cfg.Resolution.MaxDepth)
	}
	if cfg.Resolution.MaxIterations < 0 {
		return fmt.Errorf("resolution.maxIterations must not be negative, got %d", cfg.Resolution.MaxIterations)
	}
	if _, err := cfg.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the logrus level named by LogLevel.
func (cfg *Reasoner) Level() (logrus.Level, error) {
	if cfg.LogLevel == "" {
		return logrus.InfoLevel, nil
	}
	return logrus.ParseLevel(cfg.LogLevel)
}

// Write marshals the configuration as JSON to the given file. It truncates the
// file if it already exists. It returns nil upon success. Otherwise, it returns
// an error, which already includes the filename.
func Write(cfg *Reasoner, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	writer := bufio.NewWriter(f)
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "\t")
	err = errors.Any(
		encoder.Encode(cfg),
		writer.Flush(),
		f.Close(),
	)
	if err != nil {
		return fmt.Errorf("failed to write %v: %v", filename, err)
	}
	return nil
}
