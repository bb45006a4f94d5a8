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

package resolve

import "context"

// maxNodesExplored bounds a single reachability/impact BFS so a dense or
// cyclic call graph can't run away; the same safety-valve shape as the
// binding-surface trace tool's BFS.
const maxNodesExplored = 20000

// Graph is the adjacency view Reachability/Impact walk. Callers build one
// once per query (or reuse it across queries against the same scan) from
// the resolved Edge set.
type Graph struct {
	callees map[string][]string // caller -> []callee
	callers map[string][]string // callee -> []caller
}

// BuildGraph indexes edges in both directions.
func BuildGraph(edges []Edge) *Graph {
	g := &Graph{
		callees: make(map[string][]string),
		callers: make(map[string][]string),
	}
	for _, e := range edges {
		g.callees[e.CallerSymbol] = append(g.callees[e.CallerSymbol], e.CalleeSymbol)
		g.callers[e.CalleeSymbol] = append(g.callers[e.CalleeSymbol], e.CallerSymbol)
	}
	return g
}

// Reachability returns every symbol reachable from from within maxDepth
// call hops (0 means unlimited, bounded only by maxNodesExplored).
func (g *Graph) Reachability(ctx context.Context, from string, maxDepth int) ([]string, error) {
	return g.bfs(ctx, from, maxDepth, g.callees)
}

// Impact returns every symbol that can reach target within maxDepth call
// hops — i.e. "what breaks if target changes."
func (g *Graph) Impact(ctx context.Context, target string, maxDepth int) ([]string, error) {
	return g.bfs(ctx, target, maxDepth, g.callers)
}

func (g *Graph) bfs(ctx context.Context, start string, maxDepth int, adjacency map[string][]string) ([]string, error) {
	type frontierNode struct {
		symbol string
		depth  int
	}

	visited := map[string]bool{start: true}
	queue := []frontierNode{{symbol: start, depth: 0}}
	var out []string
	explored := 0

	for len(queue) > 0 {
		if explored%256 == 0 {
			select {
			case <-ctx.Done():
				return out, ctx.Err()
			default:
			}
		}
		if explored >= maxNodesExplored {
			break
		}

		cur := queue[0]
		queue = queue[1:]
		explored++

		if maxDepth > 0 && cur.depth >= maxDepth {
			continue
		}

		for _, next := range adjacency[cur.symbol] {
			if visited[next] {
				continue
			}
			visited[next] = true
			out = append(out, next)
			queue = append(queue, frontierNode{symbol: next, depth: cur.depth + 1})
		}
	}

	return out, nil
}
