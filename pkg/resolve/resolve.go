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

// Package resolve builds the cross-file call graph. Six strategies run in
// a fixed order, each more speculative and lower-confidence than the last;
// a call resolves to the first strategy that produces a match.
package resolve

import (
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/hbollon/go-edlib"
)

// Strategy names and the confidence each assigns an Edge it produces.
const (
	StrategySameFile   = "same_file"
	StrategyMethod     = "method_on_receiver"
	StrategyDI         = "dependency_injection"
	StrategyImport     = "import_based"
	StrategyExport     = "export_based"
	StrategyFuzzy      = "fuzzy_name"
	confSameFile       = 0.98
	confMethod         = 0.90
	confDI             = 0.85
	confImport         = 0.80
	confExport         = 0.70
	confFuzzyMax       = 0.50
	fuzzyAcceptDefault = 0.82 // minimum edlib similarity to accept a fuzzy match at all
)

// Call is an unresolved call site the extractor found.
type Call struct {
	CallerSymbol string
	CalleeName   string // as written at the call site, possibly qualified
	FilePath     string
	ReceiverType string // non-empty for method calls, e.g. "s.handler.Run()" -> "handler"
}

// Edge is a resolved call with the strategy and confidence that produced
// it.
type Edge struct {
	CallerSymbol string
	CalleeSymbol string
	CallSite     string
	Strategy     string
	Confidence   float64
}

// SymbolIndex is the read-only index Resolver consults. It is built once
// per scan from the extractor's output and is safe for concurrent reads
// during resolution.
type SymbolIndex struct {
	// BySimpleName: package_path -> simple symbol name -> symbol id.
	BySimpleName map[string]map[string]string
	// FileSymbols: file path -> simple name -> symbol id, for strategy 1.
	FileSymbols map[string]map[string]string
	// Methods: receiver type -> method name -> symbol id, for strategy 2.
	Methods map[string]map[string]string
	// DIBindings: interface/field type -> concrete symbol id, for strategy 3.
	DIBindings map[string]string
	// FileImports: file path -> alias -> import path, for strategy 4.
	FileImports map[string]map[string]string
	// ImportPathToPackage: import path -> local package path, for strategy 4.
	ImportPathToPackage map[string]string
	// Exports: package path -> exported symbol name -> symbol id, for strategy 5.
	Exports map[string]map[string]string
	// AllNames: every known symbol's simple name -> symbol id, used as the
	// candidate pool for strategy 6's fuzzy match.
	AllNames map[string]string
}

// Resolver resolves unresolved calls against a SymbolIndex using the six
// ordered strategies.
type Resolver struct {
	idx            *SymbolIndex
	fuzzyThreshold float64
}

// New creates a Resolver. fuzzyThreshold is the minimum normalised edlib
// similarity (0..1) required before strategy 6 accepts a match; pass 0 to
// use the default.
func New(idx *SymbolIndex, fuzzyThreshold float64) *Resolver {
	if fuzzyThreshold <= 0 {
		fuzzyThreshold = fuzzyAcceptDefault
	}
	return &Resolver{idx: idx, fuzzyThreshold: fuzzyThreshold}
}

// Resolve resolves every call in calls, choosing parallel or sequential
// dispatch the same way the ingestion pipeline's CallResolver did: above
// 1000 calls, a bounded worker pool amortises the per-call lookup cost.
func (r *Resolver) Resolve(calls []Call) []Edge {
	if len(calls) < 1000 {
		return r.resolveSequential(calls)
	}
	return r.resolveParallel(calls)
}

func (r *Resolver) resolveSequential(calls []Call) []Edge {
	seen := make(map[string]bool)
	var out []Edge
	for _, c := range calls {
		if e, ok := r.resolveOne(c); ok {
			key := e.CallerSymbol + "->" + e.CalleeSymbol
			if !seen[key] {
				seen[key] = true
				out = append(out, e)
			}
		}
	}
	return out
}

func (r *Resolver) resolveParallel(calls []Call) []Edge {
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}

	jobs := make(chan int, len(calls))
	results := make(chan Edge, len(calls))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if e, ok := r.resolveOne(calls[i]); ok {
					results <- e
				}
			}
		}()
	}

	for i := range calls {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	seen := make(map[string]bool)
	var out []Edge
	for e := range results {
		key := e.CallerSymbol + "->" + e.CalleeSymbol
		if !seen[key] {
			seen[key] = true
			out = append(out, e)
		}
	}
	return out
}

// resolveOne tries each strategy in order and returns the first hit.
func (r *Resolver) resolveOne(c Call) (Edge, bool) {
	if id, ok := r.sameFile(c); ok {
		return r.edge(c, id, StrategySameFile, confSameFile), true
	}
	if id, ok := r.methodOnReceiver(c); ok {
		return r.edge(c, id, StrategyMethod, confMethod), true
	}
	if id, ok := r.dependencyInjection(c); ok {
		return r.edge(c, id, StrategyDI, confDI), true
	}
	if id, ok := r.importBased(c); ok {
		return r.edge(c, id, StrategyImport, confImport), true
	}
	if id, ok := r.exportBased(c); ok {
		return r.edge(c, id, StrategyExport, confExport), true
	}
	if id, conf, ok := r.fuzzyName(c); ok {
		return r.edge(c, id, StrategyFuzzy, conf), true
	}
	return Edge{}, false
}

func (r *Resolver) edge(c Call, calleeID, strategy string, confidence float64) Edge {
	return Edge{
		CallerSymbol: c.CallerSymbol,
		CalleeSymbol: calleeID,
		CallSite:     c.FilePath,
		Strategy:     strategy,
		Confidence:   confidence,
	}
}

// sameFile is strategy 1: the callee is declared in the same file as the
// call site.
func (r *Resolver) sameFile(c Call) (string, bool) {
	names, ok := r.idx.FileSymbols[c.FilePath]
	if !ok {
		return "", false
	}
	id, ok := names[simpleName(c.CalleeName)]
	return id, ok
}

// methodOnReceiver is strategy 2: a method call on a known receiver type.
func (r *Resolver) methodOnReceiver(c Call) (string, bool) {
	if c.ReceiverType == "" {
		return "", false
	}
	methods, ok := r.idx.Methods[c.ReceiverType]
	if !ok {
		return "", false
	}
	id, ok := methods[simpleName(c.CalleeName)]
	return id, ok
}

// dependencyInjection is strategy 3: the callee is reached through a
// framework-recognised DI binding (interface field -> concrete impl).
func (r *Resolver) dependencyInjection(c Call) (string, bool) {
	if c.ReceiverType == "" {
		return "", false
	}
	id, ok := r.idx.DIBindings[c.ReceiverType]
	return id, ok
}

// importBased is strategy 4: qualified-name resolution through the
// caller file's import table, generalizing the ingestion pipeline's
// original (and only) resolution strategy.
func (r *Resolver) importBased(c Call) (string, bool) {
	name := c.CalleeName
	if !strings.Contains(name, ".") {
		// dot-import fallback: any "." import in this file might export name.
		imports, ok := r.idx.FileImports[c.FilePath]
		if !ok {
			return "", false
		}
		for alias, importPath := range imports {
			if alias != "." {
				continue
			}
			pkgPath, ok := r.idx.ImportPathToPackage[importPath]
			if !ok {
				continue
			}
			if id, ok := r.idx.BySimpleName[pkgPath][name]; ok {
				return id, true
			}
		}
		return "", false
	}

	parts := strings.SplitN(name, ".", 2)
	alias := parts[0]
	funcName := parts[1]
	if idx := strings.LastIndex(funcName, "."); idx >= 0 {
		funcName = funcName[idx+1:]
	}
	if !isExported(funcName) {
		return "", false
	}

	imports, ok := r.idx.FileImports[c.FilePath]
	if !ok {
		return "", false
	}
	importPath, ok := imports[alias]
	if !ok {
		return "", false
	}
	pkgPath, ok := r.idx.ImportPathToPackage[importPath]
	if !ok {
		return "", false
	}
	id, ok := r.idx.BySimpleName[pkgPath][funcName]
	return id, ok
}

// exportBased is strategy 5: fall back to any package's exported symbol
// table, ignoring import-alias bookkeeping — useful when the import index
// couldn't be built precisely (e.g. vendored or generated code).
func (r *Resolver) exportBased(c Call) (string, bool) {
	name := simpleName(c.CalleeName)
	if !isExported(name) {
		return "", false
	}
	for _, exports := range r.idx.Exports {
		if id, ok := exports[name]; ok {
			return id, true
		}
	}
	return "", false
}

// fuzzyName is strategy 6: accept the closest-matching known symbol name
// by edit distance, if it clears the configured similarity threshold.
// This is the lowest-confidence strategy and caps out at confFuzzyMax
// regardless of how close the match is.
func (r *Resolver) fuzzyName(c Call) (string, float64, bool) {
	target := simpleName(c.CalleeName)
	if target == "" {
		return "", 0, false
	}

	type candidate struct {
		id    string
		score float64
	}
	var best candidate

	for name, id := range r.idx.AllNames {
		score, err := edlib.StringsSimilarity(target, name, edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if float64(score) > best.score {
			best = candidate{id: id, score: float64(score)}
		}
	}

	if best.id == "" || best.score < r.fuzzyThreshold {
		return "", 0, false
	}
	// Scale the strategy's score into (0, confFuzzyMax] so even a
	// near-perfect fuzzy match never outranks a deterministic strategy.
	return best.id, best.score * confFuzzyMax, true
}

func simpleName(calleeName string) string {
	if idx := strings.LastIndex(calleeName, "."); idx >= 0 {
		return calleeName[idx+1:]
	}
	return calleeName
}

func isExported(name string) bool {
	return len(name) > 0 && name[0] >= 'A' && name[0] <= 'Z'
}

// sortEdges orders edges deterministically for stable test output and
// diffable persisted results.
func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].CallerSymbol != edges[j].CallerSymbol {
			return edges[i].CallerSymbol < edges[j].CallerSymbol
		}
		return edges[i].CalleeSymbol < edges[j].CalleeSymbol
	})
}
