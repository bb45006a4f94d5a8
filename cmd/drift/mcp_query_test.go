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

package main

import (
	"regexp"
	"strings"
	"testing"
)

// TestMCPQueryFieldNames validates that MCP queries use correct field names
// This test doesn't require CozoDB - it validates query strings statically
func TestMCPQueryFieldNames(t *testing.T) {
	// These patterns detect incorrect field usage
	wrongPatterns := []struct {
		name    string
		pattern *regexp.Regexp
		msg     string
	}{
		{
			name:    "drift_file with id",
			pattern: regexp.MustCompile(`\*drift_file\s*\{[^}]*\bid\b`),
			msg:     "drift_file is keyed on 'path', not 'id'",
		},
		{
			name:    "drift_function with path (not file_path)",
			pattern: regexp.MustCompile(`\*drift_function\s*\{[^}]*\bpath\b`),
			msg:     "drift_function table uses 'file_path' field, not 'path'",
		},
		{
			name:    "drift_function with code_text",
			pattern: regexp.MustCompile(`\*drift_function\s*\{[^}]*\bcode_text\b`),
			msg:     "code_text lives in drift_function_code, joined by function_id",
		},
	}

	// These are representative queries from mcp.go that should be correct
	correctQueries := []string{
		// drift_file queries - keyed by 'path'
		`?[path] := *drift_file { path } :limit 100`,
		`?[cnt] := cnt = count(path), *drift_file { path }, regex_matches(path, ".*gateway.*")`,
		`?[path] := *drift_file { path }, regex_matches(path, "\\.proto$") :limit 100`,
		`?[path, language, package] := *drift_file { path, language, package } :limit 100`,

		// drift_function queries - must use 'file_path'; code_text is a join
		`?[name, file_path] := *drift_function { name, file_path } :limit 100`,
		`?[name, file_path, signature, start_line, end_line] := *drift_function { name, file_path, signature, start_line, end_line }, regex_matches(name, "(?i)^RegisterRoutes$") :limit 1`,
		`?[name, file_path, start_line] := *drift_function { id: fid, name, file_path, start_line }, *drift_function_code { function_id: fid, code_text }, regex_matches(code_text, "\\.(GET|POST|PUT|DELETE|PATCH|Handle)\\s*\\(") :limit 40`,
	}

	// These queries should be DETECTED as wrong
	wrongQueries := []struct {
		query string
		match string // which pattern should match (must match name exactly)
	}{
		{
			query: `?[id] := *drift_file { id } :limit 100`,
			match: "drift_file with id",
		},
		{
			query: `?[path] := *drift_function { name, path } :limit 100`,
			match: "drift_function with path (not file_path)",
		},
		{
			query: `?[name] := *drift_function { name, code_text }, regex_matches(code_text, "test")`,
			match: "drift_function with code_text",
		},
	}

	t.Run("correct queries pass validation", func(t *testing.T) {
		for _, q := range correctQueries {
			for _, wp := range wrongPatterns {
				if wp.pattern.MatchString(q) {
					t.Errorf("Query incorrectly flagged by %s:\n  Query: %s\n  Issue: %s", wp.name, q, wp.msg)
				}
			}
		}
	})

	t.Run("wrong queries are detected", func(t *testing.T) {
		for _, wq := range wrongQueries {
			found := false
			for _, wp := range wrongPatterns {
				if wp.name == wq.match && wp.pattern.MatchString(wq.query) {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("Wrong query not detected by %s:\n  Query: %s", wq.match, wq.query)
			}
		}
	})
}

// TestMCPQuerySchemaCompliance verifies that common query patterns are schema-compliant
func TestMCPQuerySchemaCompliance(t *testing.T) {
	// Schema reference (pkg/storage/migrations.go):
	// drift_file: path => content_hash, language, package
	// drift_function: id => name, file_path, signature, start_line, end_line, start_col, end_col, receiver_type, signature_hash, body_hash, is_exported

	driftFileFields := map[string]bool{
		"path": true, "content_hash": true, "language": true, "package": true,
	}

	driftFunctionFields := map[string]bool{
		"id": true, "name": true, "signature": true, "file_path": true,
		"start_line": true, "end_line": true, "start_col": true, "end_col": true,
		"receiver_type": true, "signature_hash": true, "body_hash": true, "is_exported": true,
	}

	// Extract fields from query pattern like *drift_file { field1, field2 }
	extractFields := func(query, table string) []string {
		pattern := regexp.MustCompile(`\*` + table + `\s*\{\s*([^}]+)\}`)
		match := pattern.FindStringSubmatch(query)
		if match == nil {
			return nil
		}
		fieldsStr := match[1]
		// Clean up bindings like "id: fid" -> just "id"
		fieldsStr = regexp.MustCompile(`:\s*\w+`).ReplaceAllString(fieldsStr, "")
		parts := strings.Split(fieldsStr, ",")
		var fields []string
		for _, p := range parts {
			f := strings.TrimSpace(p)
			if f != "" {
				fields = append(fields, f)
			}
		}
		return fields
	}

	tests := []struct {
		name   string
		query  string
		table  string
		fields map[string]bool
	}{
		{
			name:   "drift_file path query",
			query:  `?[path] := *drift_file { path } :limit 100`,
			table:  "drift_file",
			fields: driftFileFields,
		},
		{
			name:   "drift_file with count",
			query:  `?[cnt] := cnt = count(path), *drift_file { path }, regex_matches(path, "test")`,
			table:  "drift_file",
			fields: driftFileFields,
		},
		{
			name:   "drift_function basic",
			query:  `?[name, file_path] := *drift_function { name, file_path } :limit 100`,
			table:  "drift_function",
			fields: driftFunctionFields,
		},
		{
			name:   "drift_function with start_line",
			query:  `?[name, file_path, start_line] := *drift_function { name, file_path, start_line } :limit 100`,
			table:  "drift_function",
			fields: driftFunctionFields,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := extractFields(tt.query, tt.table)
			for _, f := range fields {
				if !tt.fields[f] {
					t.Errorf("Query uses unknown field '%s' in table %s:\n  Query: %s\n  Valid fields: %v",
						f, tt.table, tt.query, tt.fields)
				}
			}
		})
	}
}

// TestCountQueryFallbackPattern validates the count fallback pattern
func TestCountQueryFallbackPattern(t *testing.T) {
	// Count queries should have a fallback pattern
	// CozoDB correct syntax: ?[count(var)] := *relation { field: var }
	countPatterns := []struct {
		name         string
		countQuery   string
		fallbackList string
	}{
		{
			name:         "file count",
			countQuery:   `?[count(p)] := *drift_file { path: p }`,
			fallbackList: `?[path] := *drift_file { path } :limit 10000`,
		},
		{
			name:         "function count",
			countQuery:   `?[count(f)] := *drift_function { id: f }`,
			fallbackList: `?[id] := *drift_function { id } :limit 10000`,
		},
		{
			name:         "filtered file count",
			countQuery:   `?[count(p)] := *drift_file { path: p }, regex_matches(p, ".*test.*")`,
			fallbackList: `?[path] := *drift_file { path }, regex_matches(path, ".*test.*") :limit 10000`,
		},
	}

	for _, p := range countPatterns {
		t.Run(p.name, func(t *testing.T) {
			// Verify count query uses count() function
			if !strings.Contains(p.countQuery, "count(") {
				t.Errorf("Count query doesn't use count(): %s", p.countQuery)
			}

			// Verify fallback list query doesn't use count
			if strings.Contains(p.fallbackList, "count(") {
				t.Errorf("Fallback query shouldn't use count(): %s", p.fallbackList)
			}

			// Verify both queries use the same table
			if strings.Contains(p.countQuery, "drift_file") != strings.Contains(p.fallbackList, "drift_file") {
				t.Errorf("Count and fallback queries use different tables")
			}
		})
	}
}

// TestHNSWQueryRequiredFields validates HNSW semantic search queries
// HNSW index lives on drift_function_embedding; code_text is in drift_function_code
func TestHNSWQueryRequiredFields(t *testing.T) {
	// HNSW query must include all fields used in filters
	// If filtering by code_text, must join with drift_function_code

	hnswQuery := `?[name, file_path, signature, start_line, distance] :=
		~drift_function_embedding:hnsw_idx { function_id | query: [0.1, 0.2], k: 10, ef: 50, bind_distance: distance },
		*drift_function { id: function_id, name, file_path, signature, start_line },
		*drift_function_code { function_id, code_text },
		regex_matches(code_text, "test")
		:order distance
		:limit 10`

	// Check that code_text is included when filtering by it
	if strings.Contains(hnswQuery, "regex_matches(code_text") {
		if !strings.Contains(hnswQuery, "code_text") {
			t.Error("HNSW query filters by code_text but doesn't select it")
		}
	}

	// Check that function_id is included (required for HNSW join)
	if !strings.Contains(hnswQuery, "function_id") {
		t.Error("HNSW query must include function_id field for join")
	}
}

// TestRoleFilterPatterns validates role-based filter patterns
func TestRoleFilterPatterns(t *testing.T) {
	rolePatterns := map[string]string{
		"test":      `(?i)_test\.go$|test_.*\.go$|\.test\.(ts|tsx|js|jsx)$|__tests__/`,
		"generated": `(?i)\.pb\.go$|_generated\.go$|\.gen\.go$`,
		"handler":   `(?i)(handler|controller)`,
		"router":    `(?i)(route|router|register.*route)`,
	}

	testCases := []struct {
		role     string
		filePath string
		funcName string
		match    bool
	}{
		{"test", "internal/handler_test.go", "TestHandle", true},
		{"test", "internal/handler.go", "Handle", false},
		{"generated", "api/service.pb.go", "GetUser", true},
		{"generated", "api/service.go", "GetUser", false},
		{"handler", "internal/handler.go", "HandleRequest", true},
		{"handler", "internal/service.go", "GetUser", false},
	}

	for _, tc := range testCases {
		t.Run(tc.role+"_"+tc.funcName, func(t *testing.T) {
			pattern := rolePatterns[tc.role]
			re := regexp.MustCompile(pattern)

			matched := re.MatchString(tc.filePath) || re.MatchString(tc.funcName)
			if matched != tc.match {
				t.Errorf("Role %s: expected match=%v for file=%s, func=%s, got=%v",
					tc.role, tc.match, tc.filePath, tc.funcName, matched)
			}
		})
	}
}
