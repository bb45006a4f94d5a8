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

// Package taint tracks data flow from untrusted sources to sensitive sinks
// across an intra-procedural pass first, then an inter-procedural pass
// riding the resolved call graph, using a project-editable TOML registry
// of sources/sinks/sanitizers/propagators rather than a hardcoded table.
package taint

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Registry is the decoded contents of a taint rules file: named function
// patterns classified as sources, sinks, sanitizers, or propagators.
type Registry struct {
	Sources     []Rule `toml:"sources"`
	Sinks       []Rule `toml:"sinks"`
	Sanitizers  []Rule `toml:"sanitizers"`
	Propagators []Rule `toml:"propagators"`
}

// Rule matches a call by its (possibly partially-qualified) symbol name
// and tags it with a category used when reporting a confirmed flow.
type Rule struct {
	Symbol   string `toml:"symbol"`
	Category string `toml:"category"`
}

// LoadRegistry reads and decodes a taint rules TOML file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("taint: read registry %s: %w", path, err)
	}
	var r Registry
	if err := toml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("taint: parse registry %s: %w", path, err)
	}
	return &r, nil
}

// DefaultRegistry is a minimal built-in registry covering common
// request-input sources and the sinks most worth flagging, used when a
// project hasn't supplied its own taint.toml.
func DefaultRegistry() *Registry {
	return &Registry{
		Sources: []Rule{
			{Symbol: "Request.FormValue", Category: "http_input"},
			{Symbol: "Request.URL.Query", Category: "http_input"},
			{Symbol: "Context.Param", Category: "http_input"},
			{Symbol: "Context.Query", Category: "http_input"},
			{Symbol: "os.Getenv", Category: "environment"},
			{Symbol: "bufio.Scanner.Text", Category: "stdin"},
		},
		Sinks: []Rule{
			{Symbol: "sql.DB.Query", Category: "sql_injection"},
			{Symbol: "sql.DB.Exec", Category: "sql_injection"},
			{Symbol: "exec.Command", Category: "command_injection"},
			{Symbol: "os.WriteFile", Category: "path_traversal"},
			{Symbol: "template.HTML", Category: "xss"},
			{Symbol: "html/template.HTML", Category: "xss"},
		},
		Sanitizers: []Rule{
			{Symbol: "html.EscapeString", Category: "escaping"},
			{Symbol: "filepath.Clean", Category: "path_normalization"},
			{Symbol: "regexp.MustCompile", Category: "validation"},
		},
		Propagators: []Rule{
			{Symbol: "strings.Join", Category: "string_op"},
			{Symbol: "fmt.Sprintf", Category: "string_op"},
			{Symbol: "strings.Builder.WriteString", Category: "string_op"},
		},
	}
}

// classify matches a call site's symbol against a rule's (possibly
// package-qualified) Symbol. The extractor's call sites don't always carry
// a resolved receiver/package qualifier, so an unqualified symbol also
// matches a rule whose last dotted segment agrees with it ("Getenv"
// matches "os.Getenv") rather than requiring the fully-qualified form.
func (r *Registry) classify(symbol string, rules []Rule) (Rule, bool) {
	for _, rule := range rules {
		if rule.Symbol == symbol || lastSegment(rule.Symbol) == symbol {
			return rule, true
		}
	}
	return Rule{}, false
}

func lastSegment(s string) string {
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// IsSource reports whether symbol matches a registered taint source.
func (r *Registry) IsSource(symbol string) (Rule, bool) { return r.classify(symbol, r.Sources) }

// IsSink reports whether symbol matches a registered taint sink.
func (r *Registry) IsSink(symbol string) (Rule, bool) { return r.classify(symbol, r.Sinks) }

// IsSanitizer reports whether symbol neutralizes taint passing through it.
func (r *Registry) IsSanitizer(symbol string) (Rule, bool) { return r.classify(symbol, r.Sanitizers) }

// IsPropagator reports whether symbol passes taint through unchanged.
func (r *Registry) IsPropagator(symbol string) (Rule, bool) { return r.classify(symbol, r.Propagators) }
