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

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnalyzeFunction_DetectsDirectSourceToSink(t *testing.T) {
	a := New(DefaultRegistry())
	sites := []CallSite{
		{Caller: "Handler", Callee: "Request.FormValue"},
		{Caller: "Handler", Callee: "sql.DB.Query"},
	}
	flows := a.AnalyzeFunction("Handler", sites)
	require.Len(t, flows, 1)
	require.Equal(t, "sql_injection", flows[0].Sink.Category)
}

func TestAnalyzeFunction_SanitizerBreaksTheChain(t *testing.T) {
	a := New(DefaultRegistry())
	sites := []CallSite{
		{Caller: "Handler", Callee: "Request.FormValue"},
		{Caller: "Handler", Callee: "filepath.Clean"},
		{Caller: "Handler", Callee: "sql.DB.Query"},
	}
	require.Empty(t, a.AnalyzeFunction("Handler", sites))
}

func TestAnalyzeFunction_PropagatorKeepsTaintAlive(t *testing.T) {
	a := New(DefaultRegistry())
	sites := []CallSite{
		{Caller: "Handler", Callee: "Request.FormValue"},
		{Caller: "Handler", Callee: "fmt.Sprintf"},
		{Caller: "Handler", Callee: "sql.DB.Exec"},
	}
	flows := a.AnalyzeFunction("Handler", sites)
	require.Len(t, flows, 1)
	require.Equal(t, []string{"Request.FormValue", "fmt.Sprintf", "sql.DB.Exec"}, flows[0].Path)
}

func TestAnalyzeFunction_NoSourceMeansNoFlow(t *testing.T) {
	a := New(DefaultRegistry())
	sites := []CallSite{{Caller: "Handler", Callee: "sql.DB.Query"}}
	require.Empty(t, a.AnalyzeFunction("Handler", sites))
}

type fakeGraph map[string][]string

func (g fakeGraph) CalleesOf(symbol string) []string { return g[symbol] }

func TestAnalyzeInterProcedural_FindsSinkAcrossCallGraph(t *testing.T) {
	a := New(DefaultRegistry())
	graph := fakeGraph{
		"Handler":       {"buildQuery"},
		"buildQuery":    {"sql.DB.Query"},
		"sql.DB.Query":  {},
	}

	flows, err := a.AnalyzeInterProcedural(context.Background(), graph, "Handler", "http_input")
	require.NoError(t, err)
	require.Len(t, flows, 1)
	require.Equal(t, "sql_injection", flows[0].Sink.Category)
}

func TestAnalyzeInterProcedural_SanitizerStopsTraversal(t *testing.T) {
	a := New(DefaultRegistry())
	graph := fakeGraph{
		"Handler":         {"filepath.Clean"},
		"filepath.Clean":  {"sql.DB.Query"},
	}

	flows, err := a.AnalyzeInterProcedural(context.Background(), graph, "Handler", "http_input")
	require.NoError(t, err)
	require.Empty(t, flows)
}
