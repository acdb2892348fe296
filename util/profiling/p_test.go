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

package profiling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_StartCPUProfile(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "cpu.prof")
	stop, err := StartCPUProfile(filename)
	require.NoError(t, err)

	_, err = StartCPUProfile(filepath.Join(dir, "other.prof"))
	assert.Error(t, err)

	stop()
	info, err := os.Stat(filename)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())

	_, err = StartCPUProfile(filepath.Join(dir, "missing", "cpu.prof"))
	assert.Error(t, err)
}
