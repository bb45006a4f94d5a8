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

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/kraklabs/drift/pkg/engine"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// runScan executes the 'scan' CLI command (aliased as 'index' for
// compatibility), scanning the repository for code intelligence.
//
// It detects the file-level change set, parses source files with
// Tree-sitter, resolves the call graph, runs every pattern detector, and
// stores the results in a local CozoDB database via pkg/engine.
//
// Flags:
//   - --full: Force full reindex by deleting the local data directory first
//   - --metrics-addr: HTTP address for Prometheus metrics (default: disabled)
//   - --debug: Enable debug logging (default: false)
//
// Examples:
//
//	drift scan                   Incremental scan (only changed files)
//	drift scan --full            Delete local data and rescan from scratch
func runScan(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	full := fs.Bool("full", false, "Delete local data and rescan from scratch")
	debug := fs.Bool("debug", false, "Enable debug logging")
	metricsAddr := fs.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: drift scan [options]

Scans the current repository using configuration from .drift/project.yaml.
Data is stored locally in ~/.drift/data/<project_id>/

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: *metricsAddr, Handler: mux}
			logger.Info("metrics.http.start", "addr", *metricsAddr, "path", "/metrics")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics.http.error", "err", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("shutdown.signal", "signal", sig.String())
		cancel()
	}()

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot get current directory: %v\n", err)
		os.Exit(1)
	}

	homeDir, herr := os.UserHomeDir()
	if herr == nil && *full {
		dataDir := filepath.Join(homeDir, ".drift", "data", cfg.ProjectID)
		if err := os.RemoveAll(dataDir); err == nil {
			logger.Info("data.deleted", "path", dataDir)
		} else if !os.IsNotExist(err) {
			logger.Warn("data.delete.error", "path", dataDir, "err", err)
		}
	}

	runEngineScan(ctx, logger, cfg, cwd, globals)
}

// runEngineScan opens the project's knowledge store and runs one Scan
// pass, reporting the result to stdout.
func runEngineScan(ctx context.Context, logger *slog.Logger, cfg *Config, repoPath string, globals GlobalFlags) {
	eng, err := engine.Open(engine.Config{
		ProjectID: cfg.ProjectID,
		Logger:    logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: open project: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Warn("engine.close.error", "err", err)
		}
	}()

	logger.Info("scan.starting",
		"project_id", cfg.ProjectID,
		"repo_path", repoPath,
	)

	progressCfg := NewProgressConfig(globals)
	spinner := NewSpinner(progressCfg, "Scanning")
	if spinner != nil {
		_ = spinner.RenderBlank()
	}

	result, err := eng.Scan(ctx, engine.ScanOptions{
		Root:         repoPath,
		ExcludeGlobs: cfg.Indexing.Exclude,
		MaxFileSize:  cfg.Indexing.MaxFileSize,
	})
	if spinner != nil {
		_ = spinner.Finish()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: scan failed: %v\n", err)
		os.Exit(1)
	}

	printResult(cfg.ProjectID, eng.DataDir, result)
}

// printResult prints the scan result summary to stdout.
func printResult(projectID, dataDir string, result *engine.ScanResult) {
	fmt.Println()
	fmt.Println("=== Scan Complete ===")
	fmt.Printf("Project ID: %s\n", projectID)
	fmt.Printf("Files Added: %d\n", result.FilesAdded)
	fmt.Printf("Files Modified: %d\n", result.FilesModified)
	fmt.Printf("Files Unchanged: %d\n", result.FilesUnchanged)
	fmt.Printf("Files Removed: %d\n", result.FilesRemoved)
	fmt.Printf("Functions Extracted: %d\n", result.Functions)
	fmt.Printf("Types Extracted: %d\n", result.Types)
	fmt.Printf("Call Edges Resolved: %d\n", result.Edges)
	fmt.Printf("Boundaries Detected: %d\n", result.Boundaries)
	fmt.Printf("Size Outliers: %d\n", result.SizeOutliers)
	fmt.Printf("Secret Findings: %d\n", result.SecretFindings)
	fmt.Printf("Taint Flows: %d\n", result.TaintFlows)

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("  %s\n", e)
		}
	}

	fmt.Printf("\nData stored in: %s\n", dataDir)
}
