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

// Package store defines the interface the reasoner uses to read and write
// stored facts.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ebay/reasoner/answer"
	"github.com/ebay/reasoner/atom"
	"github.com/ebay/reasoner/kg"
	"github.com/ebay/reasoner/schema"
	"github.com/ebay/reasoner/util/parallel"
)

// ErrInsert is wrapped by errors from Store.Insert for facts that can't be
// stored.
var ErrInsert = errors.New("can't insert facts")

// RolePlayer is a concept playing a role in a stored relation.
type RolePlayer struct {
	Role   string
	Player uint64
}

func (rp RolePlayer) String() string {
	return fmt.Sprintf("%s: #%d", rp.Role, rp.Player)
}

// SortRolePlayers sorts role players by role, then player.
func SortRolePlayers(rps []RolePlayer) {
	sort.Slice(rps, func(i, j int) bool {
		if rps[i].Role != rps[j].Role {
			return rps[i].Role < rps[j].Role
		}
		return rps[i].Player < rps[j].Player
	})
}

// Store is a source of stored facts.
type Store interface {
	// Schema returns the schema the stored facts conform to.
	Schema() *schema.Schema
	// Execute finds the stored facts matching q, without applying any rules.
	// It sends the answers, projected to q's selected variables, in chunks to
	// resCh. Execute closes resCh before returning, even on error.
	Execute(ctx context.Context, q *atom.Query, resCh chan<- []answer.Answer) error
	// FindRelation returns the stored relation of exactly type typ with
	// exactly the given role players, if there is one.
	FindRelation(ctx context.Context, typ string, players []RolePlayer) (kg.Concept, bool, error)
	// FindAttribute returns the stored attribute of exactly type typ holding
	// value, if there is one.
	FindAttribute(ctx context.Context, typ string, value kg.Value) (kg.Concept, bool, error)
	// Insert stores the facts q's atoms state, given the concepts bound to
	// some of q's variables. Bound concepts that aren't stored yet, such as
	// inferred ones, are stored under their existing IDs. It returns the
	// bindings of all of q's variables.
	Insert(ctx context.Context, q *atom.Query, bindings answer.Answer) (answer.Answer, error)
}

// ExecuteAll runs q against s and collects every answer.
func ExecuteAll(ctx context.Context, s Store, q *atom.Query) ([]answer.Answer, error) {
	resCh := make(chan []answer.Answer, 4)
	wait := parallel.GoCaptureError(func() error {
		return s.Execute(ctx, q, resCh)
	})
	var res []answer.Answer
	for chunk := range resCh {
		res = append(res, chunk...)
	}
	return res, wait()
}
