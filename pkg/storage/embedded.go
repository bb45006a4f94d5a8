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

package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	cozo "github.com/kraklabs/drift/pkg/cozodb"
)

// EmbeddedBackend implements Backend using a local CozoDB instance.
// This is the default backend for standalone Drift.
//
// readers bounds how many goroutines may be inside a read query at once,
// approximating the fixed-size reader-connection pool spec.md calls for;
// the native handle itself is single, so the semaphore is what actually
// caps concurrency rather than a separate connection per slot.
type EmbeddedBackend struct {
	db      *cozo.CozoDB
	mu      sync.RWMutex
	closed  bool
	readers chan struct{}
}

// readerPoolSize is the number of concurrent readers the backend admits,
// per spec.md's N=4 read-connection pool.
const readerPoolSize = 4

// EmbeddedConfig configures the embedded backend.
type EmbeddedConfig struct {
	// DataDir is the directory where CozoDB stores its data.
	// Defaults to ~/.drift/data/<project_id>
	DataDir string

	// Engine is the CozoDB storage engine: "rocksdb", "sqlite", or "mem".
	// Defaults to "sqlite", matching the WAL/durability guarantees a
	// single-writer, few-readers local tool needs without the extra
	// binary size rocksdb carries.
	Engine string

	// ProjectID is used to namespace the data directory.
	ProjectID string
}

// sqliteOptions configures the embedded engine the way spec.md's
// Knowledge Store section requires when Engine is "sqlite": WAL mode (so
// readers never block the writer), synchronous=NORMAL (durable enough
// once WAL is on, without fsync-per-commit cost), foreign keys on, a
// 256MiB mmap window, and a busy_timeout so a reader that loses a race
// with the writer retries instead of failing immediately.
var sqliteOptions = map[string]any{
	"journal_mode":    "wal",
	"synchronous":     "normal",
	"foreign_keys":    true,
	"mmap_size":       256 << 20,
	"busy_timeout_ms": busyTimeout.Milliseconds(),
}

// busyTimeout is the minimum spec.md requires CozoDB's busy handler to
// wait before giving up on a locked database.
const busyTimeout = 5 * time.Second

// NewEmbeddedBackend creates a new embedded CozoDB backend.
func NewEmbeddedBackend(config EmbeddedConfig) (*EmbeddedBackend, error) {
	// Set defaults
	if config.Engine == "" {
		config.Engine = "sqlite"
	}
	if config.DataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		config.DataDir = filepath.Join(homeDir, ".drift", "data")
		if config.ProjectID != "" {
			config.DataDir = filepath.Join(config.DataDir, config.ProjectID)
		}
	}

	// Ensure data directory exists
	if err := os.MkdirAll(config.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	var options map[string]any
	if config.Engine == "sqlite" {
		options = sqliteOptions
	}

	// Open CozoDB
	db, err := cozo.New(config.Engine, config.DataDir, options)
	if err != nil {
		return nil, fmt.Errorf("open cozodb: %w", err)
	}

	readers := make(chan struct{}, readerPoolSize)
	for i := 0; i < readerPoolSize; i++ {
		readers <- struct{}{}
	}

	return &EmbeddedBackend{
		db:      &db,
		readers: readers,
	}, nil
}

// Query executes a read-only Datalog query, retrying with backoff if the
// database reports it's busy (the writer holds an exclusive transaction).
func (b *EmbeddedBackend) Query(ctx context.Context, datalog string) (*QueryResult, error) {
	select {
	case b.readers <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-b.readers }()

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("backend is closed")
	}

	result, err := withBusyRetry(ctx, func() (cozo.NamedRows, error) {
		return b.db.RunReadOnly(datalog, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	return FromNamedRows(result), nil
}

// Execute runs a Datalog mutation, retrying with backoff on a busy error.
func (b *EmbeddedBackend) Execute(ctx context.Context, datalog string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("backend is closed")
	}

	_, err := withBusyRetry(ctx, func() (cozo.NamedRows, error) {
		return b.db.Run(datalog, nil)
	})
	if err != nil {
		return fmt.Errorf("execute failed: %w", err)
	}

	return nil
}

// withBusyRetry retries op with jittered exponential backoff while it
// keeps failing with a "database is locked"/"busy" error, up to
// busyTimeout total, the Go-level equivalent of SQLite's own busy
// handler for the cases the native busy_timeout option doesn't cover.
func withBusyRetry(ctx context.Context, op func() (cozo.NamedRows, error)) (cozo.NamedRows, error) {
	deadline := time.Now().Add(busyTimeout)
	backoff := 10 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return cozo.NamedRows{}, ctx.Err()
		default:
		}

		result, err := op()
		if err == nil || !isBusyErr(err) || time.Now().After(deadline) {
			return result, err
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return cozo.NamedRows{}, ctx.Err()
		}
		if backoff < 200*time.Millisecond {
			backoff *= 2
		}
	}
}

func isBusyErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "busy") || strings.Contains(msg, "locked")
}

// Close closes the database connection.
func (b *EmbeddedBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	b.db.Close()
	return nil
}

// DB returns the underlying CozoDB instance for advanced operations.
// Use with caution - prefer the Backend interface methods.
func (b *EmbeddedBackend) DB() *cozo.CozoDB {
	return b.db
}

// baseTables holds the embedding-adjacent support relations the versioned
// migration ladder (migrations.go) doesn't own: per-entity code text and
// vector embeddings, plus the defines/calls join tables the embedding
// pipeline populates. drift_file/drift_function/drift_type themselves,
// call_edges, patterns, violations, contracts, boundaries, scans, and
// project are all owned by Migrations instead, so EnsureSchema and Migrate
// never race to create the same relation with two different shapes.
var baseTables = []string{
	`:create drift_function_code { function_id: String => code_text: String }`,
	`:create drift_function_embedding { function_id: String => embedding: <F32; 1536> }`,
	`:create drift_defines { id: String => file_id: String, function_id: String }`,
	`:create drift_calls { id: String => caller_id: String, callee_id: String }`,
	`:create drift_import { id: String => file_path: String, import_path: String, alias: String, start_line: Int }`,
	`:create drift_type_code { type_id: String => code_text: String }`,
	`:create drift_type_embedding { type_id: String => embedding: <F32; 1536> }`,
	`:create drift_defines_type { id: String => file_id: String, type_id: String }`,
}

// EnsureSchema creates the embedding-support tables if they don't exist.
// This is idempotent and safe to call multiple times. The core knowledge
// graph relations are created by Migrate, which callers must still run.
func (b *EmbeddedBackend) EnsureSchema() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, table := range baseTables {
		if _, err := b.db.Run(table, nil); err != nil {
			// CozoDB reports "already exists" as a query error; anything
			// else would have surfaced on the very first EnsureSchema call
			// in a fresh data directory, so we tolerate all errors here.
			continue
		}
	}

	return nil
}

// CreateHNSWIndex creates HNSW indexes for semantic search.
// Should be called after schema creation.
func (b *EmbeddedBackend) CreateHNSWIndex() error {
	indexes := []string{
		`::hnsw create drift_function_embedding:hnsw_idx { dim: 1536, m: 16, ef_construction: 200, fields: [embedding] }`,
		`::hnsw create drift_type_embedding:hnsw_idx { dim: 1536, m: 16, ef_construction: 200, fields: [embedding] }`,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, idx := range indexes {
		_, err := b.db.Run(idx, nil)
		if err != nil {
			// Ignore "already exists" errors
			continue
		}
	}

	return nil
}
