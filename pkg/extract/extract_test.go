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

package extract

import (
	"context"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/stretchr/testify/require"
)

const sampleSource = `package main

import (
	"fmt"
	netctx "context"
)

type Server struct {
	Name string
	conn *Conn
}

func (s *Server) Start() error {
	fmt.Println(s.Name)
	return s.connect()
}

func (s *Server) connect() error {
	return nil
}

func main() {
	srv := &Server{Name: "drift"}
	srv.Start()
	_ = netctx.Background
}
`

func parseSample(t *testing.T) *sitter.Tree {
	t.Helper()
	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, []byte(sampleSource))
	require.NoError(t, err)
	return tree
}

func TestWalk_ExtractsFunctionsAndMethods(t *testing.T) {
	tree := parseSample(t)
	idx := Walk(tree, []byte(sampleSource), "go", "server.go")

	var names []string
	for _, fn := range idx.Functions {
		names = append(names, fn.Name)
	}
	require.Contains(t, names, "Start")
	require.Contains(t, names, "connect")
	require.Contains(t, names, "main")
}

func TestWalk_MethodHasReceiverType(t *testing.T) {
	tree := parseSample(t)
	idx := Walk(tree, []byte(sampleSource), "go", "server.go")

	for _, fn := range idx.Functions {
		if fn.Name == "Start" {
			require.Equal(t, "Server", fn.ReceiverType)
			return
		}
	}
	t.Fatal("Start method not found")
}

func TestWalk_ExtractsStructFields(t *testing.T) {
	tree := parseSample(t)
	idx := Walk(tree, []byte(sampleSource), "go", "server.go")

	require.Len(t, idx.Types, 1)
	require.Equal(t, "Server", idx.Types[0].Name)
	require.Equal(t, "struct", idx.Types[0].Kind)

	var fieldNames []string
	for _, f := range idx.Types[0].Fields {
		fieldNames = append(fieldNames, f.Name)
	}
	require.Contains(t, fieldNames, "Name")
	require.Contains(t, fieldNames, "conn")
}

func TestWalk_ExtractsImportsWithAlias(t *testing.T) {
	tree := parseSample(t)
	idx := Walk(tree, []byte(sampleSource), "go", "server.go")

	var found bool
	for _, imp := range idx.Imports {
		if imp.ImportPath == "context" {
			found = true
			require.Equal(t, "netctx", imp.Alias)
		}
	}
	require.True(t, found)
}

func TestWalk_ExtractsUnresolvedCalls(t *testing.T) {
	tree := parseSample(t)
	idx := Walk(tree, []byte(sampleSource), "go", "server.go")

	var calleeNames []string
	for _, c := range idx.Calls {
		calleeNames = append(calleeNames, c.CalleeName)
	}
	require.Contains(t, calleeNames, "Println")
	require.Contains(t, calleeNames, "connect")
}

func TestGenerateFunctionID_IsDeterministic(t *testing.T) {
	id1 := GenerateFunctionID("a.go", "Foo", 1, 5, 1, 2)
	id2 := GenerateFunctionID("a.go", "Foo", 1, 5, 1, 2)
	require.Equal(t, id1, id2)

	id3 := GenerateFunctionID("a.go", "Foo", 1, 6, 1, 2)
	require.NotEqual(t, id1, id3)
}

func TestMatchFrameworkRole_RecognizesGinHandler(t *testing.T) {
	role := MatchFrameworkRole("go", "func(c *gin.Context) string")
	require.Equal(t, "http_handler", role)
}

func TestMatchFrameworkRole_NoMatchReturnsEmpty(t *testing.T) {
	role := MatchFrameworkRole("go", "func(x int) int")
	require.Empty(t, role)
}
