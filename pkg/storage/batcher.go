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
	"fmt"
	"strings"
)

// Batcher splits a CozoScript mutation script into batches targeting a
// mutation count and a byte-size ceiling, whichever is hit first — the
// same split Writer applies to everything pkg/engine enqueues.
type Batcher struct {
	targetMutations int
	maxScriptSize   int // soft limit in bytes; a single oversized statement is an error
}

// NewBatcher creates a new batcher.
func NewBatcher(targetMutations, maxScriptSize int) *Batcher {
	return &Batcher{targetMutations: targetMutations, maxScriptSize: maxScriptSize}
}

// Batch splits script into one or more batches, each under maxScriptSize
// bytes and targetMutations statements.
func (b *Batcher) Batch(script string) ([]string, error) {
	if script == "" {
		return nil, nil
	}

	statements := b.splitStatements(script)
	if len(statements) == 0 {
		return nil, nil
	}

	const separatorSize = len("\n\n")

	var batches []string
	var current []string
	size, mutations := 0, 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		batch := strings.Join(current, "\n\n")
		if !strings.HasSuffix(batch, "\n") {
			batch += "\n"
		}
		batches = append(batches, batch)
		current, size, mutations = nil, 0, 0
	}

	for _, stmt := range statements {
		stmtSize := len(stmt)
		if stmtSize > b.maxScriptSize {
			preview := stmt
			if len(preview) > 200 {
				preview = preview[:200] + "..."
			}
			return nil, fmt.Errorf("mutation statement exceeds max size: %d bytes (limit: %d); preview: %s", stmtSize, b.maxScriptSize, preview)
		}

		additional := stmtSize
		if len(current) > 0 {
			additional += separatorSize
		}
		if len(current) > 0 && (size+additional > b.maxScriptSize || mutations >= b.targetMutations) {
			flush()
		}

		current = append(current, stmt)
		if len(current) == 1 {
			size = stmtSize
		} else {
			size += separatorSize + stmtSize
		}
		mutations++
	}
	flush()

	return batches, nil
}

// splitStatements splits a CozoScript script into individual mutation
// statements, tracking brace/bracket/string depth line by line so a
// `:put`/`:create` spanning several lines isn't split mid-statement.
// Rune (not byte) comparison matters here: a multi-byte UTF-8 character
// whose trailing byte happens to equal an ASCII quote byte would
// otherwise desynchronize the string-tracking state.
func (b *Batcher) splitStatements(script string) []string {
	var statements []string
	var current strings.Builder

	braceDepth, bracketDepth := 0, 0
	inString := false
	stringChar := rune(0)
	escapeNext := false

	emit := func() {
		stmt := strings.TrimSpace(current.String())
		if stmt != "" && !strings.HasPrefix(stmt, "//") {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") {
			continue
		}

		for _, ch := range line {
			if escapeNext {
				escapeNext = false
				continue
			}
			switch {
			case !inString && (ch == '"' || ch == '\''):
				inString, stringChar = true, ch
			case inString && ch == stringChar:
				inString, stringChar = false, 0
			case ch == '\\':
				escapeNext = true
				continue
			}
			if !inString {
				switch ch {
				case '{':
					braceDepth++
				case '}':
					braceDepth--
				case '[':
					bracketDepth++
				case ']':
					bracketDepth--
				}
			}
		}

		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)

		if braceDepth == 0 && bracketDepth == 0 && !inString && current.Len() > 0 {
			emit()
		}
	}
	if current.Len() > 0 {
		emit()
	}

	return statements
}
