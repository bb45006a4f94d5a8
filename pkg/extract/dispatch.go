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
	"fmt"
	"log/slog"

	sitter "github.com/smacker/go-tree-sitter"
)

// Detector inspects one AST node and contributes to the FileIndex being
// built. Detectors are registered against the node kinds they care about
// so the single walk over the tree dispatches to only the detectors
// relevant at each node, rather than every detector testing every node.
type Detector interface {
	Name() string
	Detect(node *sitter.Node, content []byte, idx *FileIndex)
}

// dispatchTable maps a tree-sitter node type (per language) to the
// detectors interested in it. Built once per language at package init by
// the language-specific registration files (go.go, typescript.go, ...).
type dispatchTable map[string][]Detector

var registries = map[string]dispatchTable{}

// Register adds a detector for nodeType under language to the shared
// dispatch table. Called from each language's init().
func Register(language, nodeType string, d Detector) {
	t, ok := registries[language]
	if !ok {
		t = make(dispatchTable)
		registries[language] = t
	}
	t[nodeType] = append(t[nodeType], d)
}

// Walk performs the single-pass, dispatch-table visit over tree for
// language, accumulating results into a fresh FileIndex. A detector panic
// is caught and recorded against idx.Errors rather than aborting
// extraction for the rest of the file — one bad construct must not cost
// every other symbol in the file.
func Walk(tree *sitter.Tree, content []byte, language, filePath string) *FileIndex {
	idx := &FileIndex{FilePath: filePath, Language: language}
	table := registries[language]
	if table == nil {
		return idx
	}

	var visit func(node *sitter.Node)
	visit = func(node *sitter.Node) {
		if node == nil {
			return
		}
		for _, d := range table[node.Type()] {
			runDetector(d, node, content, idx)
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			visit(node.Child(i))
		}
	}

	visit(tree.RootNode())
	return idx
}

func runDetector(d Detector, node *sitter.Node, content []byte, idx *FileIndex) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("extract.detector.panic", "detector", d.Name(), "file", idx.FilePath, "recovered", fmt.Sprint(r))
			idx.Errors = append(idx.Errors, d.Name())
		}
	}()
	d.Detect(node, content, idx)
}
