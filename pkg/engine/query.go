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
	"context"
	"fmt"

	"github.com/kraklabs/drift/pkg/resolve"
	"github.com/kraklabs/drift/pkg/storage"
)

// defaultPageSize bounds QueryPatterns/QueryViolations/QueryContracts when
// the caller doesn't ask for a specific page size.
const defaultPageSize = 100

// QueryPatterns returns one page of learned conventions, most recently
// updated callers paging through with the returned cursor.
func (e *Engine) QueryPatterns(ctx context.Context, after storage.Cursor, limit int) (*storage.Page, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	cols := []string{"id", "category", "description", "successes", "failures", "momentum", "status"}
	return storage.QueryPage(ctx, e.backend, "patterns", cols, "id", after, limit)
}

// QueryViolations returns one page of findings (secrets, size outliers,
// taint flows, convention deviations) persisted into the violations
// relation.
func (e *Engine) QueryViolations(ctx context.Context, after storage.Cursor, limit int) (*storage.Page, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	cols := []string{"id", "kind", "severity", "file_path", "start_line", "message", "rule_id"}
	return storage.QueryPage(ctx, e.backend, "violations", cols, "id", after, limit)
}

// QueryContracts returns one page of matched backend/frontend API
// contracts, along with whatever mismatches Match recorded against them.
func (e *Engine) QueryContracts(ctx context.Context, after storage.Cursor, limit int) (*storage.Page, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	cols := []string{"id", "method", "path", "backend_symbol", "frontend_symbol", "mismatch"}
	return storage.QueryPage(ctx, e.backend, "contracts", cols, "id", after, limit)
}

// QueryCallers returns every symbol with a resolved edge calling symbol.
func (e *Engine) QueryCallers(ctx context.Context, symbol string) ([]string, error) {
	script := fmt.Sprintf(`?[caller_symbol] := *call_edges{caller_symbol, callee_symbol: %s}`, quote(symbol))
	res, err := e.backend.Query(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("engine: query callers: %w", err)
	}
	return firstColumn(res), nil
}

// QueryCallees returns every symbol symbol has a resolved edge calling.
func (e *Engine) QueryCallees(ctx context.Context, symbol string) ([]string, error) {
	script := fmt.Sprintf(`?[callee_symbol] := *call_edges{caller_symbol: %s, callee_symbol}`, quote(symbol))
	res, err := e.backend.Query(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("engine: query callees: %w", err)
	}
	return firstColumn(res), nil
}

// QueryReachability returns every symbol reachable from from within
// maxDepth call hops (0 for unbounded).
func (e *Engine) QueryReachability(ctx context.Context, from string, maxDepth int) ([]string, error) {
	graph, err := e.buildCallGraph(ctx)
	if err != nil {
		return nil, err
	}
	return graph.Reachability(ctx, from, maxDepth)
}

// QueryImpact returns every symbol that can reach target within maxDepth
// call hops: what would break if target's behaviour changed.
func (e *Engine) QueryImpact(ctx context.Context, target string, maxDepth int) ([]string, error) {
	graph, err := e.buildCallGraph(ctx)
	if err != nil {
		return nil, err
	}
	return graph.Impact(ctx, target, maxDepth)
}

func (e *Engine) buildCallGraph(ctx context.Context) (*resolve.Graph, error) {
	res, err := e.backend.Query(ctx, `?[caller_symbol, callee_symbol, call_site, strategy, confidence] := *call_edges{caller_symbol, callee_symbol, call_site, strategy, confidence}`)
	if err != nil {
		return nil, fmt.Errorf("engine: load call edges: %w", err)
	}
	edges := make([]resolve.Edge, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) < 5 {
			continue
		}
		caller, _ := row[0].(string)
		callee, _ := row[1].(string)
		site, _ := row[2].(string)
		strategy, _ := row[3].(string)
		confidence, _ := row[4].(float64)
		edges = append(edges, resolve.Edge{
			CallerSymbol: caller,
			CalleeSymbol: callee,
			CallSite:     site,
			Strategy:     strategy,
			Confidence:   confidence,
		})
	}
	return resolve.BuildGraph(edges), nil
}

// StatusReport is query_status()'s shape: the headline counters the CLI
// and any other binding render without re-deriving them from raw tables.
type StatusReport struct {
	Files        int64
	Functions    int64
	Violations   int64
	Critical     int64
	High         int64
	Medium       int64
	Low          int64
	GeneratedAt  int64
}

// QueryStatus reads the materialised view RefreshMaterialisedViews wrote
// at the end of the last successful scan, rather than recomputing the
// aggregate over the live tables on every call.
func (e *Engine) QueryStatus(ctx context.Context) (*StatusReport, error) {
	res, err := e.backend.Query(ctx, `?[files, functions, violations, generated_at] := *materialised_status{id: "current", files, functions, violations, generated_at}`)
	if err != nil {
		return nil, fmt.Errorf("engine: query status: %w", err)
	}
	report := &StatusReport{}
	if len(res.Rows) > 0 {
		row := res.Rows[0]
		report.Files = asInt(row[0])
		report.Functions = asInt(row[1])
		report.Violations = asInt(row[2])
		report.GeneratedAt = asInt(row[3])
	}

	secRes, err := e.backend.Query(ctx, `?[critical, high, medium, low] := *materialised_security{id: "current", critical, high, medium, low}`)
	if err != nil {
		return nil, fmt.Errorf("engine: query security status: %w", err)
	}
	if len(secRes.Rows) > 0 {
		row := secRes.Rows[0]
		report.Critical = asInt(row[0])
		report.High = asInt(row[1])
		report.Medium = asInt(row[2])
		report.Low = asInt(row[3])
	}
	return report, nil
}

// Backup snapshots the knowledge store to outPath, delegating to the
// backend's own path-aliasing-safe implementation.
func (e *Engine) Backup(outPath string) error {
	return e.backend.Backup(outPath, e.DataDir)
}

// Shutdown is Close under the name spec.md's binding surface uses: every
// held resource (writer, parser pool, project lock, backend) released.
func (e *Engine) Shutdown() error {
	return e.Close()
}

func firstColumn(res *storage.QueryResult) []string {
	out := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) == 0 {
			continue
		}
		if s, ok := row[0].(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func asInt(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	default:
		return 0
	}
}
