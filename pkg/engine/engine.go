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

// Package engine is the binding surface every caller (CLI, MCP server,
// future language bindings) goes through: it owns the Scanner → Parser
// Pool → Extractor → Resolver → Pattern Engine → Knowledge Store
// pipeline end to end, the way internal/bootstrap already owns
// project init/open for the storage layer alone. Engine adds the rest of
// the pipeline on top of that foundation rather than replacing it.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kraklabs/drift/internal/bootstrap"
	"github.com/kraklabs/drift/pkg/extract"
	"github.com/kraklabs/drift/pkg/intern"
	"github.com/kraklabs/drift/pkg/parsepool"
	"github.com/kraklabs/drift/pkg/patterns/convention"
	"github.com/kraklabs/drift/pkg/patterns/feedback"
	"github.com/kraklabs/drift/pkg/patterns/secret"
	"github.com/kraklabs/drift/pkg/patterns/taint"
	"github.com/kraklabs/drift/pkg/resolve"
	"github.com/kraklabs/drift/pkg/scan"
	"github.com/kraklabs/drift/pkg/storage"
)

// Engine holds every long-lived component one project's scans share:
// the storage backend, the parser pool (whose cache is worth keeping
// warm across scans), and the pattern-engine state that accumulates
// across scans (convention posteriors, feedback dismissal rates).
type Engine struct {
	ProjectID string
	DataDir   string
	backend   *storage.EmbeddedBackend
	writer    *storage.Writer
	parsers   *parsepool.Pool
	interner  *intern.Table
	taint     *taint.Analyzer
	feedback  *feedback.Tracker
	secrets   *secret.Detector
	log       *slog.Logger

	conventions map[string]*convention.Pattern
	scanTick    int
	lock        *storage.ProjectLock
}

// Config configures a new Engine.
type Config struct {
	ProjectID   string
	DataDir     string
	Engine      string // CozoDB storage engine: "rocksdb", "sqlite", "mem"
	TaintConfig string // path to a taint.toml registry; "" uses the built-in default
	Logger      *slog.Logger
}

// Open initializes (idempotently) and opens a project's knowledge store,
// and wires up every component the scan/query operations need.
func Open(cfg Config) (*Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	info, err := bootstrap.InitProject(bootstrap.ProjectConfig{
		ProjectID: cfg.ProjectID,
		DataDir:   cfg.DataDir,
		Engine:    cfg.Engine,
	}, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("engine: init project: %w", err)
	}

	backend, err := bootstrap.OpenProject(bootstrap.ProjectConfig{
		ProjectID: info.ProjectID,
		DataDir:   info.DataDir,
		Engine:    info.Engine,
	}, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("engine: open project: %w", err)
	}

	lock, err := storage.AcquireLock(info.DataDir)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("engine: acquire project lock: %w", err)
	}

	if err := storage.Migrate(context.Background(), backend); err != nil {
		_ = lock.Release()
		_ = backend.Close()
		return nil, fmt.Errorf("engine: migrate schema: %w", err)
	}
	if err := storage.EnsureMaterialisedViews(context.Background(), backend); err != nil {
		_ = lock.Release()
		_ = backend.Close()
		return nil, fmt.Errorf("engine: ensure materialised views: %w", err)
	}

	pool, err := parsepool.New()
	if err != nil {
		_ = lock.Release()
		_ = backend.Close()
		return nil, fmt.Errorf("engine: create parser pool: %w", err)
	}

	registry := taint.DefaultRegistry()
	if cfg.TaintConfig != "" {
		loaded, err := taint.LoadRegistry(cfg.TaintConfig)
		if err != nil {
			cfg.Logger.Warn("engine.taint.registry.load_failed", "path", cfg.TaintConfig, "err", err)
		} else {
			registry = loaded
		}
	}

	return &Engine{
		ProjectID:   info.ProjectID,
		DataDir:     info.DataDir,
		backend:     backend,
		writer:      storage.NewWriter(backend, cfg.Logger),
		parsers:     pool,
		interner:    intern.NewTable(),
		taint:       taint.New(registry),
		feedback:    feedback.NewTracker(),
		secrets:     secret.New(),
		log:         cfg.Logger,
		conventions: make(map[string]*convention.Pattern),
		lock:        lock,
	}, nil
}

// Close flushes any buffered writes and releases every held resource,
// including the project lock, so a second Open against the same data
// directory can proceed once this one returns.
func (e *Engine) Close() error {
	if err := e.writer.Close(); err != nil {
		e.log.Warn("engine.close.writer_flush_failed", "err", err)
	}
	e.parsers.Close()
	err := e.backend.Close()
	if lockErr := e.lock.Release(); lockErr != nil && err == nil {
		err = lockErr
	}
	return err
}

// ScanOptions configures one Scan invocation.
type ScanOptions struct {
	Root         string
	IncludeGlobs []string
	ExcludeGlobs []string
	MaxFileSize  int64
}

// ScanResult summarizes one completed scan for the caller.
type ScanResult struct {
	FilesAdded     int
	FilesModified  int
	FilesUnchanged int
	FilesRemoved   int
	Functions      int
	Types          int
	Edges          int
	Contracts      int
	Boundaries     int
	SizeOutliers   int
	SecretFindings int
	TaintFlows     int
	Errors         []string
}

// Scan runs one full pipeline pass: detect the change set, parse and
// extract every added/modified file, resolve the call graph, run every
// derived analysis, and flush the results to the knowledge store.
func (e *Engine) Scan(ctx context.Context, opts ScanOptions) (*ScanResult, error) {
	known, err := e.knownFileHashes(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: load known file hashes: %w", err)
	}

	changes, err := scan.Run(ctx, scan.Options{
		Root:         opts.Root,
		IncludeGlobs: opts.IncludeGlobs,
		ExcludeGlobs: opts.ExcludeGlobs,
		MaxFileSize:  opts.MaxFileSize,
		Known:        known,
		Logger:       e.log,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: scan: %w", err)
	}

	result := &ScanResult{
		FilesAdded:     len(changes.Added),
		FilesModified:  len(changes.Modified),
		FilesUnchanged: len(changes.Unchanged),
		FilesRemoved:   len(changes.Removed),
	}
	for _, scanErr := range changes.Errors {
		result.Errors = append(result.Errors, scanErr.Error())
	}

	toExtract := append(append([]scan.File{}, changes.Added...), changes.Modified...)

	var allFunctions []extract.FunctionEntity
	var allTypes []extract.TypeEntity
	var allCalls []resolve.Call
	var allUnresolvedCalls []extract.UnresolvedCall
	var allSecrets []secretFinding
	indexes := make(map[string]*extract.FileIndex, len(toExtract))

	for workerID, f := range toExtract {
		idx, err := e.extractFile(ctx, workerID%parsepoolWorkerFanout, f)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		indexes[f.Path] = idx

		allFunctions = append(allFunctions, idx.Functions...)
		allTypes = append(allTypes, idx.Types...)

		for _, c := range idx.Calls {
			allCalls = append(allCalls, resolve.Call{
				CallerSymbol: c.CallerSymbol,
				CalleeName:   c.CalleeName,
				FilePath:     c.FilePath,
				ReceiverType: c.ReceiverType,
			})
		}
		allUnresolvedCalls = append(allUnresolvedCalls, idx.Calls...)

		allSecrets = append(allSecrets, e.runSecretScan(f.Path, idx, result)...)
	}

	result.Functions = len(allFunctions)
	result.Types = len(allTypes)

	boundaries := e.detectBoundaries(allUnresolvedCalls)
	result.Boundaries = len(boundaries)

	outliers := detectSizeOutliers(allFunctions)
	filePathByFunction := make(map[string]string, len(allFunctions))
	for _, fn := range allFunctions {
		filePathByFunction[fn.ID] = fn.FilePath
	}
	sizeFindings := make([]sizeOutlierFinding, 0, len(outliers))
	for _, o := range outliers {
		sizeFindings = append(sizeFindings, sizeOutlierFinding{FilePath: filePathByFunction[o.Sample.ID], Outlier: o})
	}
	result.SizeOutliers = len(outliers)

	e.scanTick++
	e.observeConventions(allFunctions, e.scanTick)
	patterns := make([]*convention.Pattern, 0, len(e.conventions))
	for _, p := range e.conventions {
		patterns = append(patterns, p)
	}

	taintFlows := e.runTaintAnalysis(allUnresolvedCalls)
	result.TaintFlows = len(taintFlows)

	idxSym := buildSymbolIndex(allFunctions)
	resolver := resolve.New(idxSym, 0.82)
	edges := resolver.Resolve(allCalls)
	result.Edges = len(edges)

	findings := scanFindings{
		Files:      fileRecordsFrom(changes, indexes),
		Boundaries: boundaries,
		Secrets:    allSecrets,
		Outliers:   sizeFindings,
		TaintFlows: taintFlows,
		Patterns:   patterns,
	}

	if err := e.flushScanResults(ctx, allFunctions, allTypes, edges, findings); err != nil {
		return nil, fmt.Errorf("engine: flush results: %w", err)
	}

	if err := e.writer.Flush(); err != nil {
		e.log.Warn("engine.scan.flush_failed", "err", err)
	}
	if err := storage.RefreshMaterialisedViews(ctx, e.backend, time.Now().Unix()); err != nil {
		e.log.Warn("engine.scan.refresh_views_failed", "err", err)
	}

	return result, nil
}

// parsepoolWorkerFanout bounds how many distinct worker slots Scan
// rotates files across; kept modest since parser construction, not
// slot count, is the expensive part.
const parsepoolWorkerFanout = 8

func (e *Engine) knownFileHashes(ctx context.Context) (map[string]uint64, error) {
	res, err := e.backend.Query(ctx, "?[path, content_hash] := *drift_file{path, content_hash}")
	if err != nil {
		return map[string]uint64{}, nil // empty schema on first run
	}
	known := make(map[string]uint64, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) < 2 {
			continue
		}
		path, _ := row[0].(string)
		switch v := row[1].(type) {
		case float64:
			known[path] = uint64(v)
		case int64:
			known[path] = uint64(v)
		}
	}
	return known, nil
}

func (e *Engine) extractFile(ctx context.Context, workerID int, f scan.File) (*extract.FileIndex, error) {
	content, err := readFile(f.AbsPath)
	if err != nil {
		return nil, err
	}

	if !parsepool.SupportedLanguage(f.Language) {
		return &extract.FileIndex{FilePath: f.Path, Language: f.Language}, nil
	}

	parsed, err := e.parsers.Parse(ctx, workerID, f.Language, f.ContentHash, content)
	if err != nil {
		return nil, err
	}

	idx := extract.Walk(parsed.Tree, content, f.Language, f.Path)
	return idx, nil
}

func (e *Engine) runSecretScan(path string, idx *extract.FileIndex, result *ScanResult) []secretFinding {
	var found []secretFinding
	for _, fn := range idx.Functions {
		for _, f := range e.secrets.Scan(path, fn.CodeText) {
			found = append(found, secretFinding{Path: path, Finding: f})
		}
	}
	result.SecretFindings += len(found)
	return found
}

func buildSymbolIndex(functions []extract.FunctionEntity) *resolve.SymbolIndex {
	idx := &resolve.SymbolIndex{
		BySimpleName:        make(map[string]map[string]string),
		FileSymbols:         make(map[string]map[string]string),
		Methods:             make(map[string]map[string]string),
		DIBindings:          make(map[string]string),
		FileImports:         make(map[string]map[string]string),
		ImportPathToPackage: make(map[string]string),
		Exports:             make(map[string]map[string]string),
		AllNames:            make(map[string]string),
	}

	for _, fn := range functions {
		pkg := packagePath(fn.FilePath)
		if idx.BySimpleName[pkg] == nil {
			idx.BySimpleName[pkg] = make(map[string]string)
		}
		idx.BySimpleName[pkg][fn.Name] = fn.ID
		idx.AllNames[fn.Name] = fn.ID

		if idx.FileSymbols[fn.FilePath] == nil {
			idx.FileSymbols[fn.FilePath] = make(map[string]string)
		}
		idx.FileSymbols[fn.FilePath][fn.Name] = fn.ID

		if fn.ReceiverType != "" {
			if idx.Methods[fn.ReceiverType] == nil {
				idx.Methods[fn.ReceiverType] = make(map[string]string)
			}
			idx.Methods[fn.ReceiverType][fn.Name] = fn.ID
		}

		if fn.IsExported {
			if idx.Exports[pkg] == nil {
				idx.Exports[pkg] = make(map[string]string)
			}
			idx.Exports[pkg][fn.Name] = fn.ID
		}
	}

	return idx
}

// packagePath approximates a Go import-style package grouping from a file
// path by dropping the file name, since the extractor works file-by-file
// and doesn't carry a resolved import path.
func packagePath(filePath string) string {
	if idx := strings.LastIndexByte(filePath, '/'); idx >= 0 {
		return filePath[:idx]
	}
	return "."
}
