// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later
package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// TypeInfo represents a type, interface, or struct found in the codebase.
type TypeInfo struct {
	Name      string
	Kind      string
	FilePath  string
	StartLine int
	EndLine   int
	CodeText  string
}

// FindTypeArgs holds arguments for finding types.
type FindTypeArgs struct {
	Name        string
	Kind        string // "", "any", "struct", "interface", "type_alias"
	PathPattern string
	IncludeCode bool
	Limit       int
}

// FindType finds types, interfaces, or structs by name.
// Schema v3: code_text lives in the separate drift_type_code table.
func FindType(ctx context.Context, client Querier, args FindTypeArgs) (*ToolResult, error) {
	name := strings.TrimSpace(args.Name)
	if name == "" {
		return NewError("Error: 'name' is required"), nil
	}
	if args.Limit <= 0 {
		args.Limit = 20
	}

	conditions := []string{fmt.Sprintf("regex_matches(name, %q)", "(?i)"+EscapeRegex(name))}
	if args.Kind != "" && args.Kind != "any" {
		conditions = append(conditions, fmt.Sprintf("kind = %q", args.Kind))
	}
	if args.PathPattern != "" {
		conditions = append(conditions, fmt.Sprintf("regex_matches(file_path, %q)", args.PathPattern))
	}
	condition := strings.Join(conditions, ", ")

	var script string
	if args.IncludeCode {
		script = fmt.Sprintf(
			"?[name, kind, file_path, start_line, end_line, code_text] := *drift_type { id, name, kind, file_path, start_line, end_line }, *drift_type_code { type_id: id, code_text }, %s :limit %d",
			condition, args.Limit)
	} else {
		script = fmt.Sprintf(
			"?[name, kind, file_path, start_line, end_line] := *drift_type { name, kind, file_path, start_line, end_line }, %s :limit %d",
			condition, args.Limit)
	}

	result, err := client.Query(ctx, script)
	if err != nil {
		return NewError(fmt.Sprintf("Query error: %v\n\nGenerated query:\n%s", err, script)), nil
	}

	if len(result.Rows) == 0 {
		return NewResult(fmt.Sprintf("No types found matching %q. Try drift_find_function if %q names a function instead.", name, name)), nil
	}

	return NewResult(formatTypeResults(result, args.IncludeCode)), nil
}

func formatTypeResults(result *QueryResult, includeCode bool) string {
	var sb strings.Builder
	sb.WriteString("Found " + strconv.Itoa(len(result.Rows)) + " type(s)\n\n")
	for _, row := range result.Rows {
		name, _ := row[0].(string)
		kind, _ := row[1].(string)
		filePath, _ := row[2].(string)
		startLine := anyToStr(row[3])
		sb.WriteString(fmt.Sprintf("## %s (%s)\n`%s:%s`\n", name, kind, filePath, startLine))
		if includeCode && len(row) > 5 {
			if code, ok := row[5].(string); ok {
				sb.WriteString("```go\n" + code + "\n```\n")
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// detectLanguage infers a file's language from its extension, used to
// scope type-search heuristics that differ by language (e.g. Go structs
// vs. TypeScript classes implementing an interface).
func detectLanguage(filePath string) string {
	lower := strings.ToLower(filePath)
	switch {
	case strings.HasSuffix(lower, ".go"):
		return "go"
	case strings.HasSuffix(lower, ".py"):
		return "python"
	case strings.HasSuffix(lower, ".ts"), strings.HasSuffix(lower, ".tsx"):
		return "typescript"
	case strings.HasSuffix(lower, ".js"), strings.HasSuffix(lower, ".jsx"):
		return "javascript"
	case strings.HasSuffix(lower, ".rs"):
		return "rust"
	case strings.HasSuffix(lower, ".java"):
		return "java"
	default:
		return "unknown"
	}
}
