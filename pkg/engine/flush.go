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

package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/kraklabs/drift/pkg/extract"
	"github.com/kraklabs/drift/pkg/patterns/boundary"
	"github.com/kraklabs/drift/pkg/patterns/convention"
	"github.com/kraklabs/drift/pkg/patterns/outlier"
	"github.com/kraklabs/drift/pkg/patterns/secret"
	"github.com/kraklabs/drift/pkg/patterns/taint"
	"github.com/kraklabs/drift/pkg/resolve"
	"github.com/kraklabs/drift/pkg/scan"
	"github.com/kraklabs/drift/pkg/storage"
)

// fileRecord is one scanned file's persisted metadata: the content hash
// knownFileHashes reads back on the next run to skip unchanged files, plus
// the language/package the query surface reports.
type fileRecord struct {
	Path        string
	ContentHash uint64
	Language    string
	Package     string
}

// scanFindings bundles every derived-analysis output flushScanResults
// persists alongside the core entity/edge tables.
type scanFindings struct {
	Files      []fileRecord
	Boundaries []boundary.Boundary
	Secrets    []secretFinding
	Outliers   []sizeOutlierFinding
	TaintFlows []taint.Flow
	Patterns   []*convention.Pattern
}

// sizeOutlierFinding pairs an outlier.Outlier with the file it was found
// in, since Outlier itself only carries the function's symbol ID.
type sizeOutlierFinding struct {
	FilePath string
	outlier.Outlier
}

// secretFinding pairs a secret.Finding with the file it was found in,
// since Finding itself doesn't carry a path.
type secretFinding struct {
	Path string
	secret.Finding
}

// flushScanResults builds one CozoScript :put transaction per entity kind
// and enqueues them on the writer, the same batch shape
// pkg/storage/writer.go expects.
func (e *Engine) flushScanResults(ctx context.Context, functions []extract.FunctionEntity, types []extract.TypeEntity, edges []resolve.Edge, findings scanFindings) error {
	if script := functionsPutScript(functions); script != "" {
		e.writer.Enqueue(storage.WriteBatch{Statements: []string{script}})
	}
	if script := typesPutScript(types); script != "" {
		e.writer.Enqueue(storage.WriteBatch{Statements: []string{script}})
	}
	if script := edgesPutScript(edges); script != "" {
		e.writer.Enqueue(storage.WriteBatch{Statements: []string{script}})
	}
	if script := filesPutScript(findings.Files); script != "" {
		e.writer.Enqueue(storage.WriteBatch{Statements: []string{script}})
	}
	if script := boundariesPutScript(findings.Boundaries); script != "" {
		e.writer.Enqueue(storage.WriteBatch{Statements: []string{script}})
	}
	if script := violationsPutScript(findings); script != "" {
		e.writer.Enqueue(storage.WriteBatch{Statements: []string{script}})
	}
	if script := patternsPutScript(findings.Patterns); script != "" {
		e.writer.Enqueue(storage.WriteBatch{Statements: []string{script}})
	}
	return nil
}

func filesPutScript(files []fileRecord) string {
	if len(files) == 0 {
		return ""
	}
	var rows []string
	for _, f := range files {
		rows = append(rows, fmt.Sprintf("[%s, %d, %s, %s]",
			quote(f.Path), f.ContentHash, quote(f.Language), quote(f.Package)))
	}
	return fmt.Sprintf("?[path, content_hash, language, package] <- [%s]\n:put drift_file {path, content_hash, language, package}",
		strings.Join(rows, ", "))
}

// fileRecordsFrom reduces one scan's change set and extracted file indexes
// into the rows knownFileHashes expects to find on the next run. Unchanged
// files are included too so a file that never changes doesn't silently
// drop out of drift_file after its first scan.
func fileRecordsFrom(changes *scan.ChangeSet, indexes map[string]*extract.FileIndex) []fileRecord {
	var records []fileRecord
	add := func(f scan.File) {
		idx := indexes[f.Path]
		pkg := ""
		lang := f.Language
		if idx != nil {
			pkg = idx.Package
			lang = idx.Language
		}
		records = append(records, fileRecord{Path: f.Path, ContentHash: f.ContentHash, Language: lang, Package: pkg})
	}
	for _, f := range changes.Added {
		add(f)
	}
	for _, f := range changes.Modified {
		add(f)
	}
	for _, f := range changes.Unchanged {
		add(f)
	}
	return records
}

func boundariesPutScript(boundaries []boundary.Boundary) string {
	if len(boundaries) == 0 {
		return ""
	}
	var rows []string
	for _, b := range boundaries {
		id := stableID("boundary", b.Symbol, b.FilePath, fmt.Sprint(b.Line), b.Table)
		rows = append(rows, fmt.Sprintf("[%s, %s, %s, %s, %s]",
			quote(id), quote(b.Table), quote(b.Symbol), quote(b.FilePath), quote(boundarySensitivity(b))))
	}
	return fmt.Sprintf("?[id, framework, symbol, file_path, sensitivity] <- [%s]\n:put boundaries {id, framework, symbol, file_path, sensitivity}",
		strings.Join(rows, ", "))
}

// boundarySensitivity collapses a boundary's per-field sensitivity tags
// into the single column the boundaries relation carries, picking the
// most sensitive one seen ("none" if the matched ORM call didn't touch
// any field the sensitivity table recognizes).
func boundarySensitivity(b boundary.Boundary) string {
	best := boundary.SensitivityNone
	rank := map[boundary.Sensitivity]int{
		boundary.SensitivityNone:      0,
		boundary.SensitivityCustom:    1,
		boundary.SensitivityFinancial: 2,
		boundary.SensitivityAuth:      3,
		boundary.SensitivityHealth:    4,
		boundary.SensitivityPII:       5,
	}
	for _, fs := range b.Sensitive {
		if rank[fs.Sensitivity] > rank[best] {
			best = fs.Sensitivity
		}
	}
	if best == boundary.SensitivityNone {
		return "none"
	}
	return string(best)
}

// violationsPutScript flattens every kind of finding Scan produces
// (hardcoded secrets, oversized functions, confirmed taint flows) into the
// single violations relation, since all three are "a rule fired at a
// location" regardless of which detector raised them.
func violationsPutScript(findings scanFindings) string {
	var rows []string
	for _, s := range findings.Secrets {
		id := stableID("secret", s.Path, fmt.Sprint(s.Line), s.Provider)
		severity := secretSeverity(s.Confidence)
		message := fmt.Sprintf("possible %s credential (confidence %.2f)", s.Provider, s.Confidence)
		rows = append(rows, violationRow(id, "secret", severity, s.Path, s.Line, message, s.Provider))
	}
	for _, o := range findings.Outliers {
		id := stableID("outlier", o.Sample.ID)
		message := fmt.Sprintf("function is a size outlier (%d lines, z-score %.2f)", int(o.Sample.Value), o.ZScore)
		rows = append(rows, violationRow(id, "size_outlier", "warning", o.FilePath, 0, message, "size_outlier"))
	}
	for _, flow := range findings.TaintFlows {
		id := stableID("taint", flow.Source.Symbol, flow.Sink.Symbol, strings.Join(flow.Path, ">"))
		message := fmt.Sprintf("tainted value from %s (%s) reaches %s (%s) via %s",
			flow.Source.Symbol, flow.Source.Category, flow.Sink.Symbol, flow.Sink.Category, strings.Join(flow.Path, " -> "))
		rows = append(rows, violationRow(id, "taint_flow", "error", "", 0, message, flow.Sink.Category))
	}
	if len(rows) == 0 {
		return ""
	}
	return fmt.Sprintf("?[id, kind, severity, file_path, start_line, message, rule_id] <- [%s]\n:put violations {id, kind, severity, file_path, start_line, message, rule_id}",
		strings.Join(rows, ", "))
}

func violationRow(id, kind, severity, filePath string, line int, message, ruleID string) string {
	return fmt.Sprintf("[%s, %s, %s, %s, %d, %s, %s]",
		quote(id), quote(kind), quote(severity), quote(filePath), line, quote(message), quote(ruleID))
}

// secretSeverity maps a finding's confidence onto the fixed severity bands
// violations reports.
func secretSeverity(confidence float64) string {
	switch {
	case confidence >= 0.75:
		return "critical"
	case confidence >= 0.5:
		return "high"
	default:
		return "medium"
	}
}

func patternsPutScript(patterns []*convention.Pattern) string {
	if len(patterns) == 0 {
		return ""
	}
	var rows []string
	for _, p := range patterns {
		rows = append(rows, fmt.Sprintf("[%s, %s, %s, %d, %d, %s, %s]",
			quote(p.ID), quote(p.Category), quote(p.ID), p.Successes, p.Failures,
			strconv.FormatFloat(p.Momentum(), 'f', 4, 64), quote(string(p.Classify()))))
	}
	return fmt.Sprintf("?[id, category, description, successes, failures, momentum, status] <- [%s]\n:put patterns {id, category, description, successes, failures, momentum, status}",
		strings.Join(rows, ", "))
}

// stableID derives a deterministic relation key from an ordered set of
// parts, for rows (boundaries, violations) that have no natural identity
// of their own beyond "this detector fired at this location."
func stableID(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:16]
}

func functionsPutScript(functions []extract.FunctionEntity) string {
	if len(functions) == 0 {
		return ""
	}
	var rows []string
	for _, fn := range functions {
		rows = append(rows, fmt.Sprintf("[%s, %s, %s, %s, %d, %d, %s, %d, %d, %t]",
			quote(fn.ID), quote(fn.Name), quote(fn.FilePath), quote(fn.Signature),
			fn.StartLine, fn.EndLine, quote(fn.ReceiverType), fn.SignatureHash, fn.BodyHash, fn.IsExported))
	}
	return fmt.Sprintf("?[id, name, file_path, signature, start_line, end_line, receiver_type, signature_hash, body_hash, is_exported] <- [%s]\n:put drift_function {id, name, file_path, signature, start_line, end_line, receiver_type, signature_hash, body_hash, is_exported}",
		strings.Join(rows, ", "))
}

func typesPutScript(types []extract.TypeEntity) string {
	if len(types) == 0 {
		return ""
	}
	var rows []string
	for _, t := range types {
		rows = append(rows, fmt.Sprintf("[%s, %s, %s, %s, %d, %d, %t]",
			quote(t.ID), quote(t.Name), quote(t.Kind), quote(t.FilePath), t.StartLine, t.EndLine, t.IsExported))
	}
	return fmt.Sprintf("?[id, name, kind, file_path, start_line, end_line, is_exported] <- [%s]\n:put drift_type {id, name, kind, file_path, start_line, end_line, is_exported}",
		strings.Join(rows, ", "))
}

func edgesPutScript(edges []resolve.Edge) string {
	if len(edges) == 0 {
		return ""
	}
	var rows []string
	for _, e := range edges {
		id := edgeID(e)
		rows = append(rows, fmt.Sprintf("[%s, %s, %s, %s, %s, %s]",
			quote(id), quote(e.CallerSymbol), quote(e.CalleeSymbol), quote(e.CallSite),
			quote(e.Strategy), strconv.FormatFloat(e.Confidence, 'f', 4, 64)))
	}
	return fmt.Sprintf("?[id, caller_symbol, callee_symbol, call_site, strategy, confidence] <- [%s]\n:put call_edges {id, caller_symbol, callee_symbol, call_site, strategy, confidence}",
		strings.Join(rows, ", "))
}

// edgeID derives a stable relation key for a resolved edge, since Edge
// itself carries no identity beyond the (caller, callee, call site) triple.
func edgeID(e resolve.Edge) string {
	sum := sha256.Sum256([]byte(e.CallerSymbol + "|" + e.CalleeSymbol + "|" + e.CallSite))
	return hex.EncodeToString(sum[:])[:16]
}

// quote renders a Go string as a CozoScript string literal, escaping the
// characters that would otherwise terminate it early.
func quote(s string) string {
	escaped := strings.ReplaceAll(s, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `"` + escaped + `"`
}
