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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/kraklabs/drift/pkg/storage"
	"github.com/kraklabs/drift/pkg/tools"
)

const mcpServerName = "drift"

// driftSchemaText documents pkg/storage/migrations.go's relations for the
// drift_schema tool, so an agent can see field names before writing a
// drift_raw_query script.
const driftSchemaText = `# Drift Database Schema

drift_file { path: String => content_hash: Int, language: String, package: String }
drift_function { id: String => name, file_path, signature, start_line, end_line, receiver_type, signature_hash, body_hash, is_exported }
drift_type { id: String => name, kind, file_path, start_line, end_line, is_exported }
drift_function_code { function_id: String => code_text: String }
drift_function_embedding { function_id: String => embedding: <F32; 1536> }  -- HNSW index: hnsw_idx
drift_calls { id: String => caller_id, callee_id }
call_edges { id: String => caller_symbol, callee_symbol, call_site, strategy, confidence }
patterns { id: String => category, description, successes, failures, momentum, status }
pattern_locations { id: String => pattern_id, file_path, start_line, is_violation }
violations { id: String => kind, severity, file_path, start_line, message, rule_id }
contracts { id: String => method, path, backend_symbol, frontend_symbol, mismatch }
boundaries { id: String => framework, symbol, file_path, sensitivity }
scans { id: String => started_at, finished_at, files_scanned, status }

Code text and embeddings live in their own tables, joined by function_id/type_id,
so metadata-only queries stay small. drift_file is keyed on path, not id.`

// driftInstructions is the MCP instructions text sent to agents on initialize.
const driftInstructions = `Drift gives you static code intelligence for a Go repository: functions, types, the
call graph, detected API boundaries, size outliers, secret findings, and taint
flows, all queryable without reading files by hand.

Start with drift_directory_summary or drift_list_files to orient, then drift_grep
for exact text or drift_semantic_search for concept search, then follow the call
graph with drift_find_callers/drift_find_callees/drift_trace_path. Call
drift_schema before writing a drift_raw_query.`

type jsonRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id,omitempty"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type mcpServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type mcpCapabilities struct {
	Tools map[string]any `json:"tools,omitempty"`
}

type mcpInitializeResult struct {
	ProtocolVersion string          `json:"protocolVersion"`
	Capabilities    mcpCapabilities `json:"capabilities"`
	ServerInfo      mcpServerInfo   `json:"serverInfo"`
	Instructions    string          `json:"instructions"`
}

type mcpTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

type mcpToolsListResult struct {
	Tools []mcpTool `json:"tools"`
}

type mcpToolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type mcpToolResult struct {
	Content []mcpContent `json:"content"`
	IsError bool         `json:"isError,omitempty"`
}

type mcpContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// mcpServer holds the embedded querier backing every tool call. Drift's MCP
// mode never talks to a remote Edge Cache: it opens the same local CozoDB
// database that `drift scan` writes to.
type mcpServer struct {
	client    tools.Querier
	projectID string
}

// runMCPServer starts the Drift Model Context Protocol server: a JSON-RPC
// 2.0 loop over stdin/stdout that exposes pkg/tools' read-only query
// functions to an MCP client (an AI coding assistant). It contains no
// analysis logic of its own — every tool call is a thin dispatch into
// pkg/tools, which in turn issues CozoScript against the local database.
func runMCPServer(configPath string) {
	cwd, _ := os.Getwd()
	fmt.Fprintf(os.Stderr, "Drift MCP server CWD: %s\n", cwd)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (falling back to default config)\n", err)
		cfg = DefaultConfig("default")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot resolve home directory: %v\n", err)
		os.Exit(1)
	}
	dataDir := filepath.Join(homeDir, ".drift", "data", cfg.ProjectID)

	backend, err := storage.NewEmbeddedBackend(storage.EmbeddedConfig{
		DataDir:   dataDir,
		Engine:    "sqlite",
		ProjectID: cfg.ProjectID,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: open project %q: %v\n", cfg.ProjectID, err)
		fmt.Fprintf(os.Stderr, "  Run 'drift scan' from the project root first.\n")
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		signal.Stop(sigCh)
		_ = backend.Close()
		os.Exit(0)
	}()

	server := &mcpServer{
		client:    tools.NewEmbeddedQuerier(backend),
		projectID: cfg.ProjectID,
	}

	fmt.Fprintf(os.Stderr, "Drift MCP server starting (project=%s, data=%s)...\n", server.projectID, dataDir)
	serveMCPLoop(server)
}

// serveMCPLoop reads newline-delimited JSON-RPC requests from stdin and
// writes responses to stdout. Diagnostics go to stderr so they never
// corrupt the JSON-RPC stream on stdout.
func serveMCPLoop(server *mcpServer) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1024*1024), 10*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		var req jsonRPCRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			fmt.Fprintf(os.Stderr, "invalid JSON-RPC request: %v\n", err)
			continue
		}

		resp := server.handleRequest(context.Background(), req)
		if resp.ID == nil && resp.Result == nil && resp.Error == nil {
			continue // notification, no response expected
		}

		respBytes, err := json.Marshal(resp)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot encode MCP response: %v\n", err)
			continue
		}
		fmt.Fprintf(os.Stdout, "%s\n", respBytes)
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "MCP stdin read error: %v\n", err)
		os.Exit(1)
	}
}

func (s *mcpServer) handleRequest(ctx context.Context, req jsonRPCRequest) jsonRPCResponse {
	switch req.Method {
	case "initialize":
		return jsonRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: mcpInitializeResult{
			ProtocolVersion: "2024-11-05",
			Capabilities:    mcpCapabilities{Tools: map[string]any{}},
			ServerInfo:      mcpServerInfo{Name: mcpServerName, Version: version},
			Instructions:    driftInstructions,
		}}
	case "notifications/initialized":
		return jsonRPCResponse{}
	case "tools/list":
		return jsonRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: mcpToolsListResult{Tools: s.getTools()}}
	case "tools/call":
		return s.handleToolCall(ctx, req)
	default:
		return jsonRPCResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{
			Code: -32601, Message: fmt.Sprintf("method not found: %s", req.Method),
		}}
	}
}

func (s *mcpServer) handleToolCall(ctx context.Context, req jsonRPCRequest) jsonRPCResponse {
	var params mcpToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return jsonRPCResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{
			Code: -32602, Message: fmt.Sprintf("invalid tool call params: %v", err),
		}}
	}

	result, err := s.dispatch(ctx, params.Name, params.Arguments)
	if err != nil {
		return jsonRPCResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{
			Code: -32000, Message: err.Error(),
		}}
	}

	return jsonRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: mcpToolResult{
		Content: []mcpContent{{Type: "text", Text: result.Text}},
		IsError: result.IsError,
	}}
}

func argString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func argBool(args map[string]any, key string) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return false
}

func argInt(args map[string]any, key string, def int) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return def
}

func argStringSlice(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// dispatch routes a tools/call invocation to the matching pkg/tools
// function. Every branch is a direct pass-through: argument unpacking in,
// a pkg/tools call out, no query logic lives here.
func (s *mcpServer) dispatch(ctx context.Context, name string, args map[string]any) (*tools.ToolResult, error) {
	switch name {
	case "drift_schema":
		return tools.NewResult(driftSchemaText), nil
	case "drift_raw_query":
		return tools.RawQuery(ctx, s.client, tools.RawQueryArgs{Script: argString(args, "script")})
	case "drift_grep":
		return tools.Grep(ctx, s.client, tools.GrepArgs{
			Text: argString(args, "text"), Path: argString(args, "path"),
			ExcludePattern: argString(args, "exclude_pattern"),
			CaseSensitive:  argBool(args, "case_sensitive"),
			Limit:          argInt(args, "limit", 20),
		})
	case "drift_search_text":
		return tools.SearchText(ctx, s.client, tools.SearchTextArgs{
			Pattern: argString(args, "pattern"), SearchIn: argString(args, "search_in"),
			FilePattern: argString(args, "file_pattern"), Literal: argBool(args, "literal"),
			Limit: argInt(args, "limit", 20),
		})
	case "drift_verify_absence":
		return tools.VerifyAbsence(ctx, s.client, tools.VerifyAbsenceArgs{
			Patterns: argStringSlice(args, "patterns"), Path: argString(args, "path"),
		})
	case "drift_semantic_search":
		return tools.SemanticSearch(ctx, s.client, tools.SemanticSearchArgs{
			Query: argString(args, "query"), Limit: argInt(args, "limit", 10),
			Role: argString(args, "role"), PathPattern: argString(args, "path_pattern"),
			MinSimilarity: 0,
		})
	case "drift_find_function":
		return tools.FindFunction(ctx, s.client, tools.FindFunctionArgs{
			Name: argString(args, "name"), ExactMatch: argBool(args, "exact_match"),
			IncludeCode: argBool(args, "include_code"),
		})
	case "drift_find_callers":
		return tools.FindCallers(ctx, s.client, tools.FindCallersArgs{
			FunctionName: argString(args, "function_name"),
		})
	case "drift_find_callees":
		return tools.FindCallees(ctx, s.client, tools.FindCalleesArgs{
			FunctionName: argString(args, "function_name"),
		})
	case "drift_get_call_graph":
		return tools.GetCallGraph(ctx, s.client, tools.GetCallGraphArgs{
			FunctionName: argString(args, "function_name"),
		})
	case "drift_trace_path":
		return tools.TracePath(ctx, s.client, tools.TracePathArgs{
			Target: argString(args, "target"), Source: argString(args, "source"),
			PathPattern: argString(args, "path_pattern"), MaxDepth: argInt(args, "max_depth", 6),
		})
	case "drift_get_function_code":
		return tools.GetFunctionCode(ctx, s.client, tools.GetFunctionCodeArgs{
			FunctionName: argString(args, "function_name"), FullCode: argBool(args, "full_code"),
		})
	case "drift_list_functions_in_file":
		return tools.ListFunctionsInFile(ctx, s.client, tools.ListFunctionsInFileArgs{
			FilePath: argString(args, "file_path"),
		})
	case "drift_get_file_summary":
		return tools.GetFileSummary(ctx, s.client, tools.GetFileSummaryArgs{
			FilePath: argString(args, "file_path"),
		})
	case "drift_find_type":
		return tools.FindType(ctx, s.client, tools.FindTypeArgs{
			Name: argString(args, "name"), Kind: argString(args, "kind"),
			PathPattern: argString(args, "path_pattern"), IncludeCode: argBool(args, "include_code"),
			Limit: argInt(args, "limit", 20),
		})
	case "drift_find_implementations":
		return tools.FindImplementations(ctx, s.client, tools.FindImplementationsArgs{
			InterfaceName: argString(args, "interface_name"), PathPattern: argString(args, "path_pattern"),
			Limit: argInt(args, "limit", 20),
		})
	case "drift_list_files":
		return tools.ListFiles(ctx, s.client, tools.ListFilesArgs{
			PathPattern: argString(args, "path_pattern"), Language: argString(args, "language"),
			Limit: argInt(args, "limit", 50),
		})
	case "drift_list_endpoints":
		return tools.ListEndpoints(ctx, s.client, tools.ListEndpointsArgs{
			PathPattern: argString(args, "path_pattern"), Method: argString(args, "method"),
			Limit: argInt(args, "limit", 50),
		})
	case "drift_list_services":
		return tools.ListServices(ctx, s.client, argString(args, "path_pattern"), argString(args, "service_name"))
	case "drift_directory_summary":
		return tools.DirectorySummary(ctx, s.client, argString(args, "path"), argInt(args, "max_funcs_per_file", 5))
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

func stringSchema(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func intSchema(description string, def int) map[string]any {
	return map[string]any{"type": "integer", "description": description, "default": def}
}

func boolSchema(description string, def bool) map[string]any {
	return map[string]any{"type": "boolean", "description": description, "default": def}
}

// getTools declares the MCP tool catalog. Every entry maps 1:1 to a
// pkg/tools function handled in dispatch.
func (s *mcpServer) getTools() []mcpTool {
	obj := func(props map[string]any, required ...string) map[string]any {
		if required == nil {
			required = []string{}
		}
		return map[string]any{"type": "object", "properties": props, "required": required}
	}

	return []mcpTool{
		{Name: "drift_schema", Description: "Get the Drift database schema and example queries. Call this before drift_raw_query.",
			InputSchema: obj(map[string]any{})},
		{Name: "drift_raw_query", Description: "Execute a raw CozoScript query against the local Drift database.",
			InputSchema: obj(map[string]any{"script": stringSchema("CozoScript query")}, "script")},
		{Name: "drift_grep", Description: "Ultra-fast literal text search across indexed function code.",
			InputSchema: obj(map[string]any{
				"text": stringSchema("Literal text to find"), "path": stringSchema("Optional path filter"),
				"exclude_pattern": stringSchema("Optional regex of paths to exclude"),
				"case_sensitive":  boolSchema("Case-sensitive match", false),
				"limit":           intSchema("Max results", 20),
			}, "text")},
		{Name: "drift_search_text", Description: "Regex-capable search within indexed function code, signatures, or names.",
			InputSchema: obj(map[string]any{
				"pattern": stringSchema("Regex or literal pattern"),
				"search_in": map[string]any{"type": "string", "enum": []string{"code", "signature", "name", "all"}, "default": "all"},
				"file_pattern": stringSchema("Optional file path filter"),
				"literal":      boolSchema("Treat pattern as a literal string", false),
				"limit":        intSchema("Max results", 20),
			}, "pattern")},
		{Name: "drift_verify_absence", Description: "Verify that none of the given patterns (e.g. hardcoded secrets) appear in indexed code.",
			InputSchema: obj(map[string]any{
				"patterns": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Patterns that must NOT be found"},
				"path":     stringSchema("Optional path filter"),
			}, "patterns")},
		{Name: "drift_semantic_search", Description: "Search indexed functions by meaning using vector embeddings.",
			InputSchema: obj(map[string]any{
				"query": stringSchema("Natural-language description of the code you want"),
				"limit": intSchema("Max results", 10),
				"role":  map[string]any{"type": "string", "enum": []string{"any", "source", "test", "generated"}, "default": "source"},
				"path_pattern": stringSchema("Optional regex to scope the search"),
			}, "query")},
		{Name: "drift_find_function", Description: "Find functions by name, handling Go receiver syntax (e.g. 'Batch' matches 'Batcher.Batch').",
			InputSchema: obj(map[string]any{
				"name": stringSchema("Function name"), "exact_match": boolSchema("Exact match only", false),
				"include_code": boolSchema("Include source code", false),
			}, "name")},
		{Name: "drift_find_callers", Description: "Find functions that call a given function.",
			InputSchema: obj(map[string]any{"function_name": stringSchema("Function name")}, "function_name")},
		{Name: "drift_find_callees", Description: "Find functions called by a given function.",
			InputSchema: obj(map[string]any{"function_name": stringSchema("Function name")}, "function_name")},
		{Name: "drift_get_call_graph", Description: "Get both callers and callees of a function in one call.",
			InputSchema: obj(map[string]any{"function_name": stringSchema("Function name")}, "function_name")},
		{Name: "drift_trace_path", Description: "Trace a call path from an entry point (or explicit source) to a target function.",
			InputSchema: obj(map[string]any{
				"target": stringSchema("Function to reach"), "source": stringSchema("Optional explicit starting function"),
				"path_pattern": stringSchema("Optional regex to scope entry-point detection"),
				"max_depth":    intSchema("Max traversal depth", 6),
			}, "target")},
		{Name: "drift_get_function_code", Description: "Get the full source code of a function by name.",
			InputSchema: obj(map[string]any{
				"function_name": stringSchema("Function name"), "full_code": boolSchema("Return untruncated code", false),
			}, "function_name")},
		{Name: "drift_list_functions_in_file", Description: "List all functions defined in a specific file.",
			InputSchema: obj(map[string]any{"file_path": stringSchema("File path (suffix match)")}, "file_path")},
		{Name: "drift_get_file_summary", Description: "Summarize all functions and types defined in a file.",
			InputSchema: obj(map[string]any{"file_path": stringSchema("File path")}, "file_path")},
		{Name: "drift_find_type", Description: "Find types, interfaces, or structs by name.",
			InputSchema: obj(map[string]any{
				"name": stringSchema("Type name"),
				"kind": map[string]any{"type": "string", "enum": []string{"any", "struct", "interface", "type_alias"}, "default": "any"},
				"path_pattern": stringSchema("Optional regex to filter file paths"),
				"include_code": boolSchema("Include type source code", false),
				"limit":        intSchema("Max results", 20),
			}, "name")},
		{Name: "drift_find_implementations", Description: "Find concrete types that implement an interface.",
			InputSchema: obj(map[string]any{
				"interface_name": stringSchema("Interface name"), "path_pattern": stringSchema("Optional path filter"),
				"limit": intSchema("Max results", 20),
			}, "interface_name")},
		{Name: "drift_list_files", Description: "List indexed files, optionally filtered by path pattern or language.",
			InputSchema: obj(map[string]any{
				"path_pattern": stringSchema("Optional regex path filter"), "language": stringSchema("Optional language filter"),
				"limit": intSchema("Max results", 50),
			})},
		{Name: "drift_list_endpoints", Description: "List HTTP/REST endpoints detected from Go router frameworks.",
			InputSchema: obj(map[string]any{
				"path_pattern": stringSchema("Optional path filter"), "method": stringSchema("Optional HTTP method filter"),
				"limit": intSchema("Max results", 50),
			})},
		{Name: "drift_list_services", Description: "List gRPC services and RPC methods from indexed .proto files.",
			InputSchema: obj(map[string]any{
				"path_pattern": stringSchema("Optional path filter"), "service_name": stringSchema("Optional service name filter"),
			})},
		{Name: "drift_directory_summary", Description: "Summarize a directory: files and their key exported functions.",
			InputSchema: obj(map[string]any{
				"path": stringSchema("Directory to summarize"), "max_funcs_per_file": intSchema("Max functions shown per file", 5),
			}, "path")},
	}
}
