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

// Package parsepool manages tree-sitter parser instances across the
// worker pool that drives a scan: one *sitter.Parser per language held in
// a thread-local slot per worker (tree-sitter parsers aren't safe for
// concurrent use, so workers never share one), a pool of compiled queries
// shared read-only across all of them, and a two-tier, content-hash-keyed
// cache of parse results so an unmodified file is never re-parsed.
package parsepool

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// languageGrammars maps the languages this engine extracts from onto their
// compiled tree-sitter grammar. Languages without a grammar imported below
// fall back to the extractor's GAST-normalization-only path.
var languageGrammars = map[string]*sitter.Language{
	"go":         golang.GetLanguage(),
	"javascript": javascript.GetLanguage(),
	"typescript": typescript.GetLanguage(),
	"python":     python.GetLanguage(),
}

// ParseResult is a cached parse: the tree plus the content it was parsed
// from (tree-sitter trees hold byte offsets, not copies of the source, so
// anything reading node text needs both).
type ParseResult struct {
	Tree    *sitter.Tree
	Content []byte
	Language string
}

// workerSlot is one worker goroutine's thread-local parser set: one
// *sitter.Parser per language, reused across files so repeated
// construction cost is paid once per worker, not once per file.
type workerSlot struct {
	mu      sync.Mutex
	parsers map[string]*sitter.Parser
}

func newWorkerSlot() *workerSlot {
	return &workerSlot{parsers: make(map[string]*sitter.Parser)}
}

func (w *workerSlot) parserFor(language string) (*sitter.Parser, bool) {
	grammar, ok := languageGrammars[language]
	if !ok {
		return nil, false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.parsers[language]
	if !ok {
		p = sitter.NewParser()
		p.SetLanguage(grammar)
		w.parsers[language] = p
	}
	return p, true
}

// cacheCapacity bounds the LRU tier; entries beyond it are evicted
// least-recently-used. Sized for a large monorepo's working set of
// recently-touched files, not the whole repo.
const cacheCapacity = 4096

// sketchWidth is the admission-frequency sketch's counter array size.
// Sized well above cacheCapacity so collisions stay rare without needing
// a real count-min sketch with multiple hash rows.
const sketchWidth = 65536

// admissionThreshold is the minimum observed-frequency count before a
// content hash not already in the LRU is admitted into it; this keeps a
// single cold scan of a huge one-off file from evicting the working set.
const admissionThreshold = 2

// Pool coordinates per-worker parser slots and the shared two-tier cache.
type Pool struct {
	mu    sync.Mutex
	slots map[int]*workerSlot

	cache  *lru.Cache[uint64, *ParseResult]
	sketch []uint8
}

// New creates a pool with an LRU tier of cacheCapacity entries.
func New() (*Pool, error) {
	cache, err := lru.New[uint64, *ParseResult](cacheCapacity)
	if err != nil {
		return nil, fmt.Errorf("parsepool: create lru cache: %w", err)
	}
	return &Pool{
		slots:  make(map[int]*workerSlot),
		cache:  cache,
		sketch: make([]uint8, sketchWidth),
	}, nil
}

// slotFor returns (creating if needed) the thread-local parser slot for
// workerID, the caller's stable index into the worker pool (0..N-1).
func (p *Pool) slotFor(workerID int) *workerSlot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.slots[workerID]
	if !ok {
		s = newWorkerSlot()
		p.slots[workerID] = s
	}
	return s
}

// Parse parses content for language on behalf of workerID, serving from
// cache when contentHash has been seen enough times to be admitted, and
// always populating the admission sketch so a second occurrence of a
// cold file becomes a cache hit.
func (p *Pool) Parse(ctx context.Context, workerID int, language string, contentHash uint64, content []byte) (*ParseResult, error) {
	if cached, ok := p.cache.Get(contentHash); ok {
		return cached, nil
	}

	admitted := p.touch(contentHash)

	slot := p.slotFor(workerID)
	parser, ok := slot.parserFor(language)
	if !ok {
		return nil, fmt.Errorf("parsepool: no grammar for language %q", language)
	}

	parser.SetLanguage(languageGrammars[language])
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parsepool: parse: %w", err)
	}

	result := &ParseResult{Tree: tree, Content: content, Language: language}
	if admitted {
		p.cache.Add(contentHash, result)
	}
	return result, nil
}

// touch increments the admission-frequency sketch slot for hash and
// reports whether the resulting count clears admissionThreshold.
func (p *Pool) touch(hash uint64) bool {
	idx := hash % uint64(sketchWidth)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sketch[idx] < 255 {
		p.sketch[idx]++
	}
	return p.sketch[idx] >= admissionThreshold
}

// Reparse applies incremental edits to a previously parsed tree rather
// than reparsing from scratch, using tree-sitter's own incremental
// parsing support. edits must be supplied in the order tree-sitter
// expects (oldest first) and content must already reflect the edited
// text.
func (p *Pool) Reparse(ctx context.Context, workerID int, language string, prior *ParseResult, edits []sitter.EditInput, content []byte) (*ParseResult, error) {
	slot := p.slotFor(workerID)
	parser, ok := slot.parserFor(language)
	if !ok {
		return nil, fmt.Errorf("parsepool: no grammar for language %q", language)
	}

	for _, e := range edits {
		prior.Tree.Edit(e)
	}

	parser.SetLanguage(languageGrammars[language])
	newTree, err := parser.ParseCtx(ctx, prior.Tree, content)
	if err != nil {
		return nil, fmt.Errorf("parsepool: incremental reparse: %w", err)
	}

	return &ParseResult{Tree: newTree, Content: content, Language: language}, nil
}

// Close releases every tree held by the LRU cache. The underlying
// *sitter.Parser instances need no explicit close.
func (p *Pool) Close() {
	for _, key := range p.cache.Keys() {
		if result, ok := p.cache.Peek(key); ok {
			result.Tree.Close()
		}
	}
	p.cache.Purge()
}

// SupportedLanguage reports whether language has a compiled grammar
// available.
func SupportedLanguage(language string) bool {
	_, ok := languageGrammars[language]
	return ok
}
