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

// Package main implements the Drift CLI for indexing repositories and querying
// the Code Intelligence Engine.
//
// Usage:
//
//	drift init                      Create .drift/project.yaml configuration
//	drift scan                      Scan the current repository
//	drift status [--json]           Show project status
//	drift query <script> [--json]   Execute CozoScript query
//	drift --mcp                     Start as MCP server (JSON-RPC over stdio)
package main

import (
	"flag"
	"fmt"
	"os"
)

// Version information (set via ldflags during build)
var (
	version = "dev"     // Version string
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// GlobalFlags carries the output-control flags every command shares,
// threaded through instead of read from package-level flag vars so
// progress.go's NewProgressConfig stays testable without touching the
// flag package.
type GlobalFlags struct {
	JSON    bool
	Quiet   bool
	NoColor bool
	Verbose int
}

func main() {
	// Global flags
	var (
		showVersion = flag.Bool("version", false, "Show version and exit")
		mcpMode     = flag.Bool("mcp", false, "Start as MCP server (JSON-RPC over stdio)")
		configPath  = flag.String("config", "", "Path to .drift/project.yaml (default: ./.drift/project.yaml)")
		jsonOutput  = flag.Bool("json", false, "Output machine-readable JSON where supported")
		quiet       = flag.Bool("quiet", false, "Suppress progress output")
		noColor     = flag.Bool("no-color", false, "Disable colored progress output")
		verbose     = flag.Int("verbose", 0, "Increase log verbosity")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Drift - Code Intelligence Engine CLI (Standalone)

Usage:
  drift <command> [options]

Commands:
  init          Create .drift/project.yaml configuration
  scan          Scan the current repository (alias: index)
  status        Show project status
  query         Execute CozoScript query
  reset         Reset local project data (destructive!)
  install-hook  Install git post-commit hook for auto-scanning
  completion    Generate shell completion script (bash, zsh, fish)

Global Options:
  --mcp         Start as MCP server (JSON-RPC over stdio)
  --config      Path to .drift/project.yaml
  --version     Show version and exit
  --json        Output machine-readable JSON where supported
  --quiet       Suppress progress output
  --no-color    Disable colored progress output
  --verbose     Increase log verbosity

Examples:
  drift init                           Create configuration interactively
  drift scan                           Scan current repository
  drift scan --full                    Delete local data and rescan from scratch
  drift status                         Show project status
  drift status --json                  Output as JSON (for MCP)
  drift query "?[name] := *drift_function{name}"
  drift --mcp                          Start as MCP server

Data Storage:
  Data is stored locally in ~/.drift/data/<project_id>/

Environment Variables:
  OLLAMA_HOST        Ollama URL (default: http://localhost:11434)
  OLLAMA_EMBED_MODEL Embedding model (default: nomic-embed-text)

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("drift version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	// MCP mode takes precedence
	if *mcpMode {
		runMCPServer(*configPath)
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	globals := GlobalFlags{
		JSON:    *jsonOutput,
		Quiet:   *quiet,
		NoColor: *noColor,
		Verbose: *verbose,
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "init":
		runInit(cmdArgs)
	case "scan", "index":
		runScan(cmdArgs, *configPath, globals)
	case "status":
		runStatus(cmdArgs, *configPath)
	case "query":
		runQuery(cmdArgs, *configPath)
	case "reset":
		runReset(cmdArgs, *configPath)
	case "install-hook":
		runInstallHook(cmdArgs, *configPath)
	case "completion":
		runCompletion(cmdArgs, *configPath)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
