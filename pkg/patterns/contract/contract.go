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

// Package contract matches backend API routes against the frontend calls
// that target them, normalising each framework's path syntax onto a
// common ":param" form and recursively diffing the response shape the
// backend emits against the fields the frontend actually reads.
package contract

import "regexp"

// ContractField is one field of a request or response shape, recursive so
// nested objects can be diffed the same way as their parents.
type ContractField struct {
	Name     string
	Type     string
	Optional bool
	Nullable bool
	Children []ContractField
}

// MismatchKind classifies how a field disagreed between backend and
// frontend.
type MismatchKind string

const (
	MissingInFrontend MismatchKind = "missing_in_frontend"
	MissingInBackend  MismatchKind = "missing_in_backend"
	TypeMismatch      MismatchKind = "type_mismatch"
	Optionality       MismatchKind = "optionality"
	Nullability       MismatchKind = "nullability"
)

// Severity returns the fixed severity spec.md assigns each mismatch kind.
func (k MismatchKind) Severity() string {
	switch k {
	case MissingInBackend, TypeMismatch:
		return "error"
	default:
		return "warning"
	}
}

// FieldMismatch is one field-level disagreement, addressed by its path
// from the contract root (dot-separated, e.g. "user.address.zip").
type FieldMismatch struct {
	Path string
	Kind MismatchKind
}

// Contract is an endpoint as seen by the backend plus whatever frontend
// calls were matched to it.
type Contract struct {
	Method         string
	Path           string // normalised, framework syntax collapsed
	BackendFields  []ContractField
	FrontendFields []ContractField
	Mismatches     []FieldMismatch
	Confidence     float64
}

// pathParamPatterns recognizes the parameter syntaxes used by the
// frameworks this engine extracts routes from: Express/Koa (:id), React
// Router / OpenAPI (:id or {id}), Spring/JAX-RS ({id}), and template
// literal interpolation (${id}) seen in frontend call sites.
var pathParamPatterns = []*regexp.Regexp{
	regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)`),
	regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`),
	regexp.MustCompile(`<([A-Za-z_][A-Za-z0-9_]*)>`),
	regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_.]*)\}`),
}

// NormalisePath collapses any of this engine's recognized path-parameter
// syntaxes onto the common ":param" form, so a backend route declared as
// "/users/{id}" and a frontend call built from "/users/${id}" compare
// equal.
func NormalisePath(path string) string {
	out := path
	for _, re := range pathParamPatterns {
		out = re.ReplaceAllString(out, ":$1")
	}
	return out
}

// Match pairs a backend route with its frontend call candidates, keyed by
// normalised (method, path).
func Match(backendRoutes []Contract, frontendCalls []Contract) []Contract {
	byKey := make(map[string]*Contract, len(backendRoutes))
	for i := range backendRoutes {
		backendRoutes[i].Path = NormalisePath(backendRoutes[i].Path)
		byKey[key(backendRoutes[i].Method, backendRoutes[i].Path)] = &backendRoutes[i]
	}

	for _, call := range frontendCalls {
		normPath := NormalisePath(call.Path)
		if backend, ok := byKey[key(call.Method, normPath)]; ok {
			backend.FrontendFields = call.FrontendFields
			backend.Mismatches = Diff(backend.BackendFields, call.FrontendFields)
			backend.Confidence = confidenceFor(backend.Mismatches)
		}
	}

	out := make([]Contract, 0, len(backendRoutes))
	for _, c := range backendRoutes {
		out = append(out, c)
	}
	return out
}

func key(method, path string) string { return method + " " + path }

func confidenceFor(mismatches []FieldMismatch) float64 {
	if len(mismatches) == 0 {
		return 0.95
	}
	conf := 0.95 - float64(len(mismatches))*0.1
	if conf < 0.2 {
		conf = 0.2
	}
	return conf
}

// Diff recursively compares backend and frontend field trees, reporting
// every mismatch with its dotted path from the root.
func Diff(backend, frontend []ContractField) []FieldMismatch {
	return diffAt("", backend, frontend)
}

func diffAt(prefix string, backend, frontend []ContractField) []FieldMismatch {
	var out []FieldMismatch

	backendByName := make(map[string]ContractField, len(backend))
	for _, f := range backend {
		backendByName[f.Name] = f
	}
	frontendByName := make(map[string]ContractField, len(frontend))
	for _, f := range frontend {
		frontendByName[f.Name] = f
	}

	for _, bf := range backend {
		path := joinPath(prefix, bf.Name)
		ff, ok := frontendByName[bf.Name]
		if !ok {
			out = append(out, FieldMismatch{Path: path, Kind: MissingInFrontend})
			continue
		}
		if bf.Type != ff.Type {
			out = append(out, FieldMismatch{Path: path, Kind: TypeMismatch})
		}
		if bf.Optional != ff.Optional {
			out = append(out, FieldMismatch{Path: path, Kind: Optionality})
		}
		if bf.Nullable != ff.Nullable {
			out = append(out, FieldMismatch{Path: path, Kind: Nullability})
		}
		out = append(out, diffAt(path, bf.Children, ff.Children)...)
	}

	for _, ff := range frontend {
		if _, ok := backendByName[ff.Name]; !ok {
			out = append(out, FieldMismatch{Path: joinPath(prefix, ff.Name), Kind: MissingInBackend})
		}
	}

	return out
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
