// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBatcher_SplitStatements_MultiLine(t *testing.T) {
	b := NewBatcher(10, 10000)
	script := `:put drift_function {id, name} <- [["f1", "Run"]]
:put drift_file {path, content_hash} <- [["main.go", 123]]`

	statements := b.splitStatements(script)
	require.Len(t, statements, 2)
	require.True(t, strings.Contains(statements[0], "drift_function"))
	require.True(t, strings.Contains(statements[1], "drift_file"))
}

func TestBatcher_SplitStatements_NestedBracketsStayOneStatement(t *testing.T) {
	b := NewBatcher(10, 10000)
	script := `?[id, name] <- [["f1", "Run"],
  ["f2", "Walk"]]
:put drift_function {id, name}`

	statements := b.splitStatements(script)
	require.Len(t, statements, 1)
	require.True(t, strings.Contains(statements[0], "Walk"))
}

func TestBatcher_SplitStatements_QuoteContainingBraceIsIgnored(t *testing.T) {
	b := NewBatcher(10, 10000)
	script := `?[id, name] <- [["f1", "a { fake brace"]]
:put drift_function {id, name}`

	statements := b.splitStatements(script)
	require.Len(t, statements, 1)
}

func TestBatcher_Batch_SplitsByTargetMutationCount(t *testing.T) {
	b := NewBatcher(2, 10000)
	script := strings.Join([]string{
		`?[id] <- [["a"]]`,
		`?[id] <- [["b"]]`,
		`?[id] <- [["c"]]`,
	}, "\n")

	batches, err := b.Batch(script)
	require.NoError(t, err)
	require.Len(t, batches, 2)
}

func TestBatcher_Batch_OversizedStatementErrors(t *testing.T) {
	b := NewBatcher(10, 10)
	_, err := b.Batch(`?[id] <- [["this statement is far too long to fit"]]`)
	require.Error(t, err)
}

func TestBatcher_Batch_EmptyScriptReturnsNil(t *testing.T) {
	b := NewBatcher(10, 1000)
	batches, err := b.Batch("")
	require.NoError(t, err)
	require.Nil(t, batches)
}
