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

package engine

import (
	"fmt"
	"strings"

	"github.com/kraklabs/drift/pkg/extract"
	"github.com/kraklabs/drift/pkg/patterns/boundary"
	"github.com/kraklabs/drift/pkg/patterns/contract"
	"github.com/kraklabs/drift/pkg/patterns/convention"
	"github.com/kraklabs/drift/pkg/patterns/outlier"
	"github.com/kraklabs/drift/pkg/patterns/taint"
)

// detectBoundaries runs every call site gathered this scan through the
// ORM extractor table. The call's receiver and callee name are joined
// the way a real call site reads (e.g. "db.Create(") since MatchExtractor
// matches by substring, not by a parsed AST shape.
//
// Table name extraction (which model/relation a call actually touches)
// needs argument-level parsing the extractor doesn't do yet; the matched
// library name is recorded in Boundary.Table as a placeholder until that
// lands, which is enough to drive dismissal-rate feedback per library.
func (e *Engine) detectBoundaries(calls []extract.UnresolvedCall) []boundary.Boundary {
	var found []boundary.Boundary
	for _, c := range calls {
		callExpr := fmt.Sprintf("%s.%s(", c.ReceiverType, c.CalleeName)
		library, op, ok := boundary.MatchExtractor(callExpr)
		if !ok {
			continue
		}
		found = append(found, boundary.Boundary{
			Table:     library,
			Operation: op,
			Symbol:    c.CallerSymbol,
			FilePath:  c.FilePath,
			Line:      c.Line,
		})
	}
	return found
}

// detectSizeOutliers flags functions whose line count is a statistical
// outlier relative to the rest of the scanned codebase, the same way
// pkg/patterns/outlier flags any other numeric sample set.
func detectSizeOutliers(functions []extract.FunctionEntity) []outlier.Outlier {
	samples := make([]outlier.Sample, 0, len(functions))
	for _, fn := range functions {
		samples = append(samples, outlier.Sample{
			ID:    fn.ID,
			Value: float64(fn.EndLine - fn.StartLine + 1),
		})
	}
	return outlier.Detect(samples)
}

// MatchContracts pairs backend route contracts against frontend call
// contracts by normalized path, surfaced for callers (CLI, MCP tools)
// that have already assembled both sides from route/client extraction —
// Scan itself only has one side (http_handler-tagged functions) until
// route-path extraction is added to the extractor.
func (e *Engine) MatchContracts(backendRoutes, frontendCalls []contract.Contract) []contract.Contract {
	return contract.Match(backendRoutes, frontendCalls)
}

// runTaintAnalysis groups one scan's call sites by the function they
// appear in and runs the intra-procedural pass over each, in the same
// program order the extractor recorded them.
func (e *Engine) runTaintAnalysis(calls []extract.UnresolvedCall) []taint.Flow {
	byFunction := make(map[string][]taint.CallSite)
	var order []string
	for _, c := range calls {
		if c.CallerSymbol == "" {
			continue
		}
		if _, seen := byFunction[c.CallerSymbol]; !seen {
			order = append(order, c.CallerSymbol)
		}
		byFunction[c.CallerSymbol] = append(byFunction[c.CallerSymbol], taint.CallSite{
			Caller: c.CallerSymbol,
			Callee: c.CalleeName,
		})
	}

	var flows []taint.Flow
	for _, fn := range order {
		flows = append(flows, e.taint.AnalyzeFunction(fn, byFunction[fn])...)
	}
	return flows
}

// conventionPattern returns the in-memory Pattern tracking id, creating it
// on first observation. Patterns don't yet reload their prior
// successes/failures from the patterns relation at Open, so a momentum
// trend only spans the lifetime of one process (see DESIGN.md).
func (e *Engine) conventionPattern(id, category string) *convention.Pattern {
	p, ok := e.conventions[id]
	if !ok {
		p = convention.NewPattern(id, category)
		e.conventions[id] = p
	}
	return p
}

// errorLastReturnPatternID names the one structural convention Scan
// currently learns: whether an exported multi-return function returns
// error last, the convention pkg/patterns/convention's own doc comment
// calls out as its motivating example.
const errorLastReturnPatternID = "go.error_last_return"

// observeConventions folds this scan's functions into the project's
// learned conventions. signature is the extractor's rendered text, so the
// check is textual (does it end "..., error)") rather than a parsed
// type list, consistent with how the rest of the pipeline treats
// Signature as an opaque, already-formatted string.
func (e *Engine) observeConventions(functions []extract.FunctionEntity, scanTick int) {
	pattern := e.conventionPattern(errorLastReturnPatternID, "error_handling")
	for _, fn := range functions {
		if !hasMultipleReturns(fn.Signature) {
			continue
		}
		pattern.Observe(convention.Observation{Follows: returnsErrorLast(fn.Signature)}, scanTick)
	}
}

func hasMultipleReturns(signature string) bool {
	return strings.Contains(signature, ",") && strings.Contains(signature, ")")
}

func returnsErrorLast(signature string) bool {
	trimmed := strings.TrimRight(strings.TrimSpace(signature), ")")
	return strings.HasSuffix(trimmed, "error")
}
