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
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
)

func init() {
	Register("go", "function_declaration", goFunctionDetector{})
	Register("go", "method_declaration", goMethodDetector{})
	Register("go", "type_declaration", goTypeDetector{})
	Register("go", "import_declaration", goImportDetector{})
	Register("go", "call_expression", goCallDetector{})
}

type goFunctionDetector struct{}

func (goFunctionDetector) Name() string { return "go.function" }

func (goFunctionDetector) Detect(node *sitter.Node, content []byte, idx *FileIndex) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := text(nameNode, content)
	signature := buildGoSignature(node, content, name, "")
	idx.Functions = append(idx.Functions, newGoFunctionEntity(node, content, idx.FilePath, name, "", signature))
}

type goMethodDetector struct{}

func (goMethodDetector) Name() string { return "go.method" }

func (goMethodDetector) Detect(node *sitter.Node, content []byte, idx *FileIndex) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := text(nameNode, content)
	receiver := goReceiverType(node.ChildByFieldName("receiver"), content)
	signature := buildGoSignature(node, content, name, receiver)
	idx.Functions = append(idx.Functions, newGoFunctionEntity(node, content, idx.FilePath, name, receiver, signature))
}

func buildGoSignature(node *sitter.Node, content []byte, name, receiver string) string {
	var b strings.Builder
	b.WriteString("func ")
	if receiver != "" {
		b.WriteString("(" + receiver + ") ")
	}
	b.WriteString(name)
	if tp := node.ChildByFieldName("type_parameters"); tp != nil {
		b.WriteString(text(tp, content))
	}
	if params := node.ChildByFieldName("parameters"); params != nil {
		b.WriteString(text(params, content))
	}
	if result := node.ChildByFieldName("result"); result != nil {
		b.WriteString(" " + text(result, content))
	}
	return b.String()
}

func newGoFunctionEntity(node *sitter.Node, content []byte, filePath, name, receiver, signature string) FunctionEntity {
	startLine := int(node.StartPoint().Row) + 1
	endLine := int(node.EndPoint().Row) + 1
	startCol := int(node.StartPoint().Column) + 1
	endCol := int(node.EndPoint().Column) + 1
	body := text(node, content)

	return FunctionEntity{
		ID:            GenerateFunctionID(filePath, name, startLine, endLine, startCol, endCol),
		Name:          name,
		ReceiverType:  receiver,
		Signature:     signature,
		FilePath:      filePath,
		CodeText:      body,
		StartLine:     startLine,
		EndLine:       endLine,
		StartCol:      startCol,
		EndCol:        endCol,
		SignatureHash: SignatureHash(signature),
		BodyHash:      BodyHash(body),
		IsExported:    isExportedName(name),
		FrameworkRole: MatchFrameworkRole("go", signature),
	}
}

// goReceiverType extracts the type name from a method receiver's
// parameter list, stripping a leading pointer star and any generic
// instantiation so "(s *Server[T])" yields "Server".
func goReceiverType(receiverNode *sitter.Node, content []byte) string {
	if receiverNode == nil {
		return ""
	}
	for i := 0; i < int(receiverNode.ChildCount()); i++ {
		child := receiverNode.Child(i)
		if child.Type() != "parameter_declaration" {
			continue
		}
		typeNode := child.ChildByFieldName("type")
		if typeNode == nil {
			continue
		}
		raw := text(typeNode, content)
		raw = strings.TrimPrefix(raw, "*")
		if idx := strings.IndexByte(raw, '['); idx >= 0 {
			raw = raw[:idx]
		}
		return raw
	}
	return ""
}

type goTypeDetector struct{}

func (goTypeDetector) Name() string { return "go.type" }

func (goTypeDetector) Detect(node *sitter.Node, content []byte, idx *FileIndex) {
	for i := 0; i < int(node.ChildCount()); i++ {
		spec := node.Child(i)
		if spec.Type() != "type_spec" {
			continue
		}
		nameNode := spec.ChildByFieldName("name")
		typeNode := spec.ChildByFieldName("type")
		if nameNode == nil || typeNode == nil {
			continue
		}
		name := text(nameNode, content)
		startLine := int(spec.StartPoint().Row) + 1
		endLine := int(spec.EndPoint().Row) + 1

		idx.Types = append(idx.Types, TypeEntity{
			ID:         GenerateTypeID(idx.FilePath, name, startLine),
			Name:       name,
			Kind:       goTypeKind(typeNode),
			FilePath:   idx.FilePath,
			StartLine:  startLine,
			EndLine:    endLine,
			Fields:     goStructFields(typeNode, content),
			IsExported: isExportedName(name),
		})
	}
}

func goTypeKind(typeNode *sitter.Node) string {
	switch typeNode.Type() {
	case "struct_type":
		return "struct"
	case "interface_type":
		return "interface"
	default:
		return "type_alias"
	}
}

func goStructFields(typeNode *sitter.Node, content []byte) []FieldEntity {
	if typeNode.Type() != "struct_type" {
		return nil
	}
	var fields []FieldEntity
	body := typeNode.ChildByFieldName("body")
	if body == nil {
		return nil
	}
	for i := 0; i < int(body.ChildCount()); i++ {
		decl := body.Child(i)
		if decl.Type() != "field_declaration" {
			continue
		}
		typeTextNode := decl.ChildByFieldName("type")
		fieldType := ""
		if typeTextNode != nil {
			fieldType = text(typeTextNode, content)
		}
		nullable := strings.HasPrefix(fieldType, "*")
		for j := 0; j < int(decl.ChildCount()); j++ {
			child := decl.Child(j)
			if child.Type() == "field_identifier" {
				fields = append(fields, FieldEntity{
					Name:     text(child, content),
					Type:     fieldType,
					Nullable: nullable,
				})
			}
		}
	}
	return fields
}

type goImportDetector struct{}

func (goImportDetector) Name() string { return "go.import" }

func (goImportDetector) Detect(node *sitter.Node, content []byte, idx *FileIndex) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "import_spec" {
			if imp := goImportSpec(child, content, idx.FilePath); imp != nil {
				idx.Imports = append(idx.Imports, *imp)
			}
		}
		if child.Type() == "import_spec_list" {
			for j := 0; j < int(child.ChildCount()); j++ {
				spec := child.Child(j)
				if spec.Type() == "import_spec" {
					if imp := goImportSpec(spec, content, idx.FilePath); imp != nil {
						idx.Imports = append(idx.Imports, *imp)
					}
				}
			}
		}
	}
}

func goImportSpec(spec *sitter.Node, content []byte, filePath string) *ImportEntity {
	pathNode := spec.ChildByFieldName("path")
	if pathNode == nil {
		return nil
	}
	importPath := strings.Trim(text(pathNode, content), `"`)

	alias := ""
	isDot := false
	if nameNode := spec.ChildByFieldName("name"); nameNode != nil {
		alias = text(nameNode, content)
		isDot = alias == "."
	}

	return &ImportEntity{FilePath: filePath, ImportPath: importPath, Alias: alias, IsDot: isDot}
}

type goCallDetector struct{}

func (goCallDetector) Name() string { return "go.call" }

func (goCallDetector) Detect(node *sitter.Node, content []byte, idx *FileIndex) {
	fnNode := node.ChildByFieldName("function")
	if fnNode == nil {
		return
	}
	calleeName := calleeSimpleName(fnNode, content)
	if calleeName == "" {
		return
	}
	line := int(node.StartPoint().Row) + 1
	callerSymbol := enclosingFunctionName(node, content)

	idx.Calls = append(idx.Calls, UnresolvedCall{
		CallerSymbol: callerSymbol,
		CalleeName:   calleeName,
		FilePath:     idx.FilePath,
		Line:         line,
	})
}

// calleeSimpleName extracts the callable's name from a call expression's
// function operand, handling both bare calls (foo()) and qualified/method
// calls (pkg.Foo(), obj.Method()) by taking the final selector segment.
func calleeSimpleName(fnNode *sitter.Node, content []byte) string {
	switch fnNode.Type() {
	case "identifier":
		return text(fnNode, content)
	case "selector_expression":
		field := fnNode.ChildByFieldName("field")
		if field != nil {
			return text(field, content)
		}
	}
	return ""
}

// enclosingFunctionName walks up from a call node to find the name of
// the function or method declaration it's nested in, for attributing the
// call site to its caller.
func enclosingFunctionName(node *sitter.Node, content []byte) string {
	for p := node.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "function_declaration", "method_declaration":
			if nameNode := p.ChildByFieldName("name"); nameNode != nil {
				return text(nameNode, content)
			}
		}
	}
	return ""
}

func text(node *sitter.Node, content []byte) string {
	return string(content[node.StartByte():node.EndByte()])
}

func isExportedName(name string) bool {
	if name == "" {
		return false
	}
	return unicode.IsUpper(rune(name[0]))
}
