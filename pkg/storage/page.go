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
	"context"
	"fmt"
)

// Cursor identifies a position in a keyset-paginated result: the value of
// the ordering column and the id tiebreaker from the last row of the
// previous page. A zero Cursor requests the first page.
type Cursor struct {
	OrderValue string
	ID         string
}

// Page is one page of a keyset-paginated query plus the cursor to pass to
// fetch the next one. Next is empty once there are no more rows.
type Page struct {
	Result *QueryResult
	Next   Cursor
}

// QueryPage runs a keyset-paginated query over relation, ordered by
// orderCol then id, both ascending. Keyset pagination is used instead of
// offset/limit because CozoDB relations have no stable row numbering and
// offset-based paging would re-scan on every page; seeking past
// (orderValue, id) is a single indexed lookup.
//
// cols must include orderCol and "id"; the caller is responsible for
// selecting whatever else it needs alongside them.
func QueryPage(ctx context.Context, b Backend, relation string, cols []string, orderCol string, after Cursor, limit int) (*Page, error) {
	colList := joinCols(cols)
	var filter string
	params := map[string]any{}
	if after.OrderValue != "" || after.ID != "" {
		filter = fmt.Sprintf("(%s, id) > ($after_order, $after_id),", orderCol)
		params["after_order"] = after.OrderValue
		params["after_id"] = after.ID
	}

	script := fmt.Sprintf(
		`?[%s] := *%s{%s}, %s :order %s, id :limit %d`,
		colList, relation, colList, filter, orderCol, limit+1,
	)

	result, err := queryWithParams(ctx, b, script, params)
	if err != nil {
		return nil, fmt.Errorf("query page: %w", err)
	}

	var next Cursor
	if len(result.Rows) > limit {
		result.Rows = result.Rows[:limit]
	}
	if len(result.Rows) == limit {
		last := result.Rows[limit-1]
		orderIdx, idIdx := -1, -1
		for i, c := range cols {
			if c == orderCol {
				orderIdx = i
			}
			if c == "id" {
				idIdx = i
			}
		}
		if orderIdx >= 0 && idIdx >= 0 {
			next = Cursor{
				OrderValue: fmt.Sprintf("%v", last[orderIdx]),
				ID:         fmt.Sprintf("%v", last[idIdx]),
			}
		}
	}

	return &Page{Result: result, Next: next}, nil
}

func joinCols(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

// queryWithParams is a narrow extension point: Backend.Query doesn't take
// parameters today (kept Datalog-literal like the ingestion pipeline's
// existing callers), so parameterised keyset queries substitute params
// directly via EmbeddedBackend's underlying RunReadOnly when available,
// falling back to an inline literal query otherwise.
func queryWithParams(ctx context.Context, b Backend, script string, params map[string]any) (*QueryResult, error) {
	if eb, ok := b.(*EmbeddedBackend); ok {
		eb.mu.RLock()
		defer eb.mu.RUnlock()
		if eb.closed {
			return nil, fmt.Errorf("backend is closed")
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		nr, err := eb.db.RunReadOnly(script, params)
		if err != nil {
			return nil, err
		}
		return FromNamedRows(nr), nil
	}
	return b.Query(ctx, script)
}
