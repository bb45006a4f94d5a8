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

package taint

import "context"

// Step is one hop a tainted value took on its way from source to sink.
type Step struct {
	Symbol   string
	Category string
}

// Flow is a confirmed taint path: an untrusted value reached a sink
// without passing through a sanitizer on the way.
type Flow struct {
	Source Step
	Sink   Step
	Path   []string
}

// CallSite is one call expression within a function body, in program
// order, as the extractor records it: the symbol being called, and
// whether its argument is (transitively, within this function) derived
// from an already-tainted local.
type CallSite struct {
	Caller       string
	Callee       string
	ArgIsTainted bool
}

// maxInterProceduralDepth bounds how many call-graph hops the
// inter-procedural pass follows a tainted return value before giving up,
// mirroring the resolver's own BFS safety valves.
const maxInterProceduralDepth = 12

// Analyzer runs taint analysis against one registry.
type Analyzer struct {
	registry *Registry
}

// New builds an Analyzer bound to a registry.
func New(registry *Registry) *Analyzer {
	return &Analyzer{registry: registry}
}

// AnalyzeFunction runs the intra-procedural pass: within a single
// function's call sites (already in program order), track taint from a
// source call through propagators to a sink, treating a sanitizer call as
// ending that particular taint chain.
func (a *Analyzer) AnalyzeFunction(fn string, sites []CallSite) []Flow {
	var flows []Flow
	tainted := false
	var source Step
	var path []string

	for _, site := range sites {
		if _, ok := a.registry.IsSanitizer(site.Callee); ok {
			tainted = false
			path = nil
			continue
		}
		if rule, ok := a.registry.IsSource(site.Callee); ok {
			tainted = true
			source = Step{Symbol: site.Callee, Category: rule.Category}
			path = []string{site.Callee}
			continue
		}
		if !tainted {
			continue
		}
		if rule, ok := a.registry.IsSink(site.Callee); ok {
			path = append(path, site.Callee)
			flows = append(flows, Flow{
				Source: source,
				Sink:   Step{Symbol: site.Callee, Category: rule.Category},
				Path:   append([]string{}, path...),
			})
			continue
		}
		if _, ok := a.registry.IsPropagator(site.Callee); ok {
			path = append(path, site.Callee)
			continue
		}
	}
	return flows
}

// CalleeGraph is the subset of the resolved call graph the
// inter-procedural pass needs: which function a given function calls.
type CalleeGraph interface {
	CalleesOf(symbol string) []string
}

// AnalyzeInterProcedural extends source-reaching taint across function
// boundaries: if fn calls into a function that itself (transitively)
// reaches a sink, and the call argument carries taint from fn's own
// intra-procedural analysis, report the combined flow. Bounded by
// maxInterProceduralDepth and a context check, matching the BFS
// reachability idiom used elsewhere in the graph layer.
func (a *Analyzer) AnalyzeInterProcedural(ctx context.Context, graph CalleeGraph, entry string, sourceCategory string) ([]Flow, error) {
	visited := map[string]bool{entry: true}
	queue := []string{entry}
	var flows []Flow
	depth := 0

	for len(queue) > 0 && depth < maxInterProceduralDepth {
		select {
		case <-ctx.Done():
			return flows, ctx.Err()
		default:
		}

		next := make([]string, 0)
		for _, symbol := range queue {
			for _, callee := range graph.CalleesOf(symbol) {
				if rule, ok := a.registry.IsSink(callee); ok {
					flows = append(flows, Flow{
						Source: Step{Symbol: entry, Category: sourceCategory},
						Sink:   Step{Symbol: callee, Category: rule.Category},
						Path:   []string{entry, symbol, callee},
					})
					continue
				}
				if _, ok := a.registry.IsSanitizer(callee); ok {
					continue
				}
				if !visited[callee] {
					visited[callee] = true
					next = append(next, callee)
				}
			}
		}
		queue = next
		depth++
	}

	return flows, nil
}
