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

// Migration is one forward step in the schema ladder. Script must be
// idempotent CozoScript (`:create`, `::index create`, or similar DDL);
// migrations never run DML, so replaying one against data that already
// has it is always safe.
type Migration struct {
	Version int
	Script  string
}

// Migrations is the ordered, append-only ladder. CozoDB has no equivalent
// of PRAGMA user_version, so the version is tracked as a field on the
// singleton project relation (id "default") instead, advanced in the same
// transaction as the migration script it follows.
var Migrations = []Migration{
	{
		Version: 1,
		Script: `:create project { id: String => schema_version: Int }
?[id, schema_version] <- [["default", 0]]
:put project { id, schema_version }`,
	},
	{
		Version: 2,
		Script: `:create call_edges { id: String => caller_symbol: String, callee_symbol: String, call_site: String, strategy: String, confidence: Float }`,
	},
	{
		Version: 3,
		Script: `:create patterns { id: String => category: String, description: String, successes: Int, failures: Int, momentum: Float, status: String }
:create pattern_locations { id: String => pattern_id: String, file_path: String, start_line: Int, is_violation: Bool }`,
	},
	{
		Version: 4,
		Script: `:create violations { id: String => kind: String, severity: String, file_path: String, start_line: Int, message: String, rule_id: String }
:create contracts { id: String => method: String, path: String, backend_symbol: String, frontend_symbol: String, mismatch: String }
:create boundaries { id: String => framework: String, symbol: String, file_path: String, sensitivity: String }`,
	},
	{
		Version: 5,
		Script: `:create scans { id: String => started_at: Int, finished_at: Int, files_scanned: Int, status: String }`,
	},
	{
		Version: 6,
		Script: `:create drift_file { path: String => content_hash: Int, language: String, package: String }
:create drift_function { id: String => name: String, file_path: String, signature: String, start_line: Int, end_line: Int, receiver_type: String, signature_hash: Int, body_hash: Int, is_exported: Bool }
:create drift_type { id: String => name: String, kind: String, file_path: String, start_line: Int, end_line: Int, is_exported: Bool }`,
	},
}

// CurrentSchemaVersion reads the schema_version recorded on the project
// singleton row, or 0 if the project relation doesn't exist yet.
func CurrentSchemaVersion(ctx context.Context, b Backend) (int, error) {
	result, err := b.Query(ctx, `?[schema_version] := *project{id: "default", schema_version}`)
	if err != nil {
		return 0, nil //nolint:nilerr // relation not created yet means version 0
	}
	if len(result.Rows) == 0 {
		return 0, nil
	}
	v, ok := result.Rows[0][0].(float64)
	if !ok {
		return 0, fmt.Errorf("schema_version has unexpected type %T", result.Rows[0][0])
	}
	return int(v), nil
}

// Migrate applies every migration whose Version exceeds the currently
// recorded schema_version, in order, advancing the recorded version after
// each one succeeds.
func Migrate(ctx context.Context, b Backend) error {
	current, err := CurrentSchemaVersion(ctx, b)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range Migrations {
		if m.Version <= current {
			continue
		}
		if err := b.Execute(ctx, m.Script); err != nil {
			return fmt.Errorf("migration %d: %w", m.Version, err)
		}
		bump := fmt.Sprintf(`?[id, schema_version] <- [["default", %d]]
:put project { id, schema_version }`, m.Version)
		if err := b.Execute(ctx, bump); err != nil {
			return fmt.Errorf("migration %d: record version: %w", m.Version, err)
		}
	}
	return nil
}
