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
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ErrUnsafeBackup is returned when a caller asks for a backup destination
// that looks like it's trying to copy the live data directory rather than
// go through CozoDB's own snapshot API. Copying data files directly while
// the writer goroutine is active can capture a torn state; Backup always
// goes through the native backup call instead.
var ErrUnsafeBackup = errors.New("storage: refusing to back up directly into the active data directory")

// Backup snapshots the embedded database to outPath via CozoDB's native
// backup API, which is safe to call concurrently with readers and the
// writer. dataDir is the backend's own data directory, checked so a
// misconfigured outPath can't alias it.
func (b *EmbeddedBackend) Backup(outPath, dataDir string) error {
	absOut, err := filepath.Abs(outPath)
	if err != nil {
		return fmt.Errorf("resolve backup path: %w", err)
	}
	absData, err := filepath.Abs(dataDir)
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	if absOut == absData || isWithin(absData, absOut) {
		return ErrUnsafeBackup
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("backend is closed")
	}
	return b.db.Backup(outPath)
}

// Restore replaces the database's contents from a prior Backup output.
// Callers must hold exclusive access to the backend (no concurrent
// scan/query traffic) while this runs.
func (b *EmbeddedBackend) Restore(inPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("backend is closed")
	}
	return b.db.Restore(inPath)
}

// BackupFilename builds a timestamped backup filename, matching the
// convention the CLI's `drift hook`/`drift reset` commands use before any
// destructive or migration-triggering operation.
func BackupFilename(prefix string, at time.Time) string {
	return fmt.Sprintf("%s-%s.db", prefix, at.UTC().Format("20060102T150405Z"))
}

// isWithin reports whether candidate is dir itself or a path beneath it.
func isWithin(dir, candidate string) bool {
	rel, err := filepath.Rel(dir, candidate)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
