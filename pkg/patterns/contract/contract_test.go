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

package contract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalisePath_CollapsesAllParamSyntaxes(t *testing.T) {
	require.Equal(t, "/users/:id", NormalisePath("/users/{id}"))
	require.Equal(t, "/users/:id", NormalisePath("/users/:id"))
	require.Equal(t, "/users/:id", NormalisePath("/users/<id>"))
	require.Equal(t, "/users/:id", NormalisePath("/users/${id}"))
}

func TestDiff_FlagsMissingAndTypeMismatch(t *testing.T) {
	backend := []ContractField{
		{Name: "id", Type: "int"},
		{Name: "email", Type: "string"},
	}
	frontend := []ContractField{
		{Name: "id", Type: "string"},
	}

	mismatches := Diff(backend, frontend)
	require.Len(t, mismatches, 2)

	var kinds []MismatchKind
	for _, m := range mismatches {
		kinds = append(kinds, m.Kind)
	}
	require.Contains(t, kinds, TypeMismatch)
	require.Contains(t, kinds, MissingInFrontend)
}

func TestDiff_RecursesIntoChildren(t *testing.T) {
	backend := []ContractField{
		{Name: "user", Type: "object", Children: []ContractField{
			{Name: "address", Type: "object", Children: []ContractField{
				{Name: "zip", Type: "string"},
			}},
		}},
	}
	frontend := []ContractField{
		{Name: "user", Type: "object", Children: []ContractField{
			{Name: "address", Type: "object", Children: []ContractField{
				{Name: "zip", Type: "int"},
			}},
		}},
	}

	mismatches := Diff(backend, frontend)
	require.Len(t, mismatches, 1)
	require.Equal(t, "user.address.zip", mismatches[0].Path)
	require.Equal(t, TypeMismatch, mismatches[0].Kind)
}

func TestMatch_PairsRouteWithFrontendCallByNormalisedPath(t *testing.T) {
	backend := []Contract{
		{Method: "GET", Path: "/users/{id}", BackendFields: []ContractField{{Name: "id", Type: "int"}}},
	}
	frontend := []Contract{
		{Method: "GET", Path: "/users/${id}", FrontendFields: []ContractField{{Name: "id", Type: "int"}}},
	}

	matched := Match(backend, frontend)
	require.Len(t, matched, 1)
	require.Empty(t, matched[0].Mismatches)
	require.Greater(t, matched[0].Confidence, 0.9)
}

func TestMismatchKind_SeverityMapping(t *testing.T) {
	require.Equal(t, "warning", MissingInFrontend.Severity())
	require.Equal(t, "error", MissingInBackend.Severity())
	require.Equal(t, "error", TypeMismatch.Severity())
	require.Equal(t, "warning", Optionality.Severity())
	require.Equal(t, "warning", Nullability.Severity())
}
