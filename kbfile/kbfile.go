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

// Package kbfile reads knowledge bases from YAML files. A file declares a
// schema, rules in pattern text, and facts to load into an in-memory store:
//
//	schema:
//	  entities:
//	    - label: person
//	  relations:
//	    - label: parentship
//	      relates: [parent, child]
//	  attributes:
//	    - label: name
//	      datatype: string
//	  plays:
//	    person: [parent, child]
//	  owns:
//	    person: [name]
//	rules: |
//	  rule ...: when { ... } then { ... };
//	facts:
//	  - $ann isa person, has name "Ann";
//	    $bob isa person; (parent: $ann, child: $bob) isa parentship;
//
// Each entry of facts is inserted as a single pattern, so its statements can
// share variables.
package kbfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ebay/reasoner/kg"
	"github.com/ebay/reasoner/query/parser"
	"github.com/ebay/reasoner/rules"
	"github.com/ebay/reasoner/schema"
	"github.com/ebay/reasoner/store/memstore"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// File is the content of a knowledge base file.
type File struct {
	Schema Schema `yaml:"schema"`
	// Zero or more rule definitions, see parser.ParseRules.
	Rules string `yaml:"rules,omitempty"`
	// Patterns stating facts.
	Facts []string `yaml:"facts,omitempty"`
}

// Schema declares the types of a knowledge base.
type Schema struct {
	Entities   []Type `yaml:"entities,omitempty"`
	Relations  []Type `yaml:"relations,omitempty"`
	Roles      []Type `yaml:"roles,omitempty"`
	Attributes []Type `yaml:"attributes,omitempty"`
	// Maps a type to the roles its instances may play.
	Plays map[string][]string `yaml:"plays,omitempty"`
	// Maps a type to the attribute types its instances may own.
	Owns map[string][]string `yaml:"owns,omitempty"`
}

// Type declares a single schema concept.
type Type struct {
	Label string `yaml:"label"`
	// The supertype. Empty means the meta type of the concept's kind.
	Sub string `yaml:"sub,omitempty"`
	// Relations only: the roles the relation relates.
	Relates []string `yaml:"relates,omitempty"`
	// Attributes only: string, long, double or boolean. Empty inherits the
	// supertype's datatype.
	DataType string `yaml:"datatype,omitempty"`
	Abstract bool   `yaml:"abstract,omitempty"`
}

// Load reads and decodes the knowledge base file at filename.
func Load(filename string) (*File, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	f, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return f, nil
}

// Decode parses a knowledge base file. Unknown fields are an error.
func Decode(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	f := new(File)
	if err := dec.Decode(f); err != nil {
		// The YAML library returns io.EOF when there is no document.
		if errors.Is(err, io.EOF) {
			return f, nil
		}
		return nil, err
	}
	return f, nil
}

// Encode writes f as YAML.
func (f *File) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return err
	}
	return enc.Close()
}

// BuildSchema checks the schema declarations and returns the schema.
func (f *File) BuildSchema() (*schema.Schema, error) {
	b := schema.NewBuilder()
	// Roles go first so that relations don't define them implicitly.
	for _, t := range f.Schema.Roles {
		b.Role(t.Label, t.Sub)
	}
	for _, t := range f.Schema.Entities {
		b.Entity(t.Label, t.Sub)
	}
	for _, t := range f.Schema.Relations {
		b.Relation(t.Label, t.Sub, t.Relates...)
	}
	for _, t := range f.Schema.Attributes {
		var dt kg.Kind
		if t.DataType != "" {
			var ok bool
			dt, ok = kg.ParseKind(t.DataType)
			if !ok {
				return nil, fmt.Errorf("attribute %q: unknown datatype %q", t.Label, t.DataType)
			}
		}
		b.Attribute(t.Label, t.Sub, dt)
	}
	for _, group := range [][]Type{f.Schema.Entities, f.Schema.Relations, f.Schema.Roles, f.Schema.Attributes} {
		for _, t := range group {
			if t.Abstract {
				b.Abstract(t.Label)
			}
		}
	}
	for typ, roles := range f.Schema.Plays {
		b.Plays(typ, roles...)
	}
	for typ, attrs := range f.Schema.Owns {
		b.Owns(typ, attrs...)
	}
	return b.Build()
}

// KB is a loaded knowledge base.
type KB struct {
	Schema *schema.Schema
	Store  *memstore.Store
	Rules  *rules.Cache
	// Names maps the IDs of the concepts created by facts to the variable
	// that named them, without the '$'.
	Names map[uint64]string
}

// Describe returns the name of c if a fact named it, or c.String().
func (kb *KB) Describe(c kg.Concept) string {
	if name, ok := kb.Names[c.ID]; ok {
		return name
	}
	return c.String()
}

// Open builds the schema, checks and caches the rules, and inserts the facts
// into a new memstore.
func (f *File) Open() (*KB, error) {
	sch, err := f.BuildSchema()
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	rc, err := f.RuleCache(sch)
	if err != nil {
		return nil, err
	}
	kb := &KB{
		Schema: sch,
		Store:  memstore.New(sch),
		Rules:  rc,
		Names:  make(map[uint64]string),
	}
	for i, text := range f.Facts {
		pattern, err := parser.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("facts[%d]: %w", i, err)
		}
		created, err := kb.Store.InsertPattern(pattern)
		if err != nil {
			return nil, fmt.Errorf("facts[%d]: %w", i, err)
		}
		for v, c := range created.Bindings() {
			if !v.IsAnonymous() {
				kb.Names[c.ID] = string(v)
			}
		}
	}
	log.WithFields(log.Fields{
		"concepts": kb.Store.Len(),
		"rules":    rc.Len(),
	}).Debug("Loaded knowledge base")
	return kb, nil
}

// RuleCache parses the file's rules and checks each against sch. It reports
// the problems with every invalid rule, not just the first.
func (f *File) RuleCache(sch *schema.Schema) (*rules.Cache, error) {
	defs, err := parser.ParseRules(f.Rules)
	if err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}
	rc, err := rules.NewCache(sch)
	if err != nil {
		return nil, err
	}
	var errs []error
	for _, def := range defs {
		r, err := rules.New(sch, def.Label, def.When, def.Then)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %q: %w", def.Label, err))
			continue
		}
		if err := rc.Add(r); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return rc, nil
}
