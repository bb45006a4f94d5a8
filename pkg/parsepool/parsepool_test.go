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

package parsepool

import (
	"context"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/require"
)

const sampleGoSource = `package main

func main() {
	println("hello")
}
`

func TestPool_ParsesAndCachesByContentHash(t *testing.T) {
	pool, err := New()
	require.NoError(t, err)
	defer pool.Close()

	hash := xxhash.Sum64String(sampleGoSource)

	result, err := pool.Parse(context.Background(), 0, "go", hash, []byte(sampleGoSource))
	require.NoError(t, err)
	require.NotNil(t, result.Tree)
	require.False(t, result.Tree.RootNode().HasError())

	// Below admissionThreshold the first parse shouldn't yet be cached.
	_, cached := pool.cache.Get(hash)
	require.False(t, cached)

	result2, err := pool.Parse(context.Background(), 0, "go", hash, []byte(sampleGoSource))
	require.NoError(t, err)
	require.NotNil(t, result2)
}

func TestPool_UnsupportedLanguageErrors(t *testing.T) {
	pool, err := New()
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Parse(context.Background(), 0, "cobol", 1, []byte("IDENTIFICATION DIVISION."))
	require.Error(t, err)
}

func TestSupportedLanguage(t *testing.T) {
	require.True(t, SupportedLanguage("go"))
	require.True(t, SupportedLanguage("python"))
	require.False(t, SupportedLanguage("cobol"))
}

func TestPool_WorkerSlotsAreIsolatedPerWorker(t *testing.T) {
	pool, err := New()
	require.NoError(t, err)
	defer pool.Close()

	slotA := pool.slotFor(0)
	slotB := pool.slotFor(1)
	require.NotSame(t, slotA, slotB)

	parserA, ok := slotA.parserFor("go")
	require.True(t, ok)
	parserA2, _ := slotA.parserFor("go")
	require.Same(t, parserA, parserA2)
}
