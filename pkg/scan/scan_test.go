// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestRun_ClassifiesAddedModifiedUnchangedRemoved(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, "util.go", "package main\nfunc f() {}\n")

	known := map[string]uint64{
		"util.go":     xxhash.Sum64([]byte("package main\nfunc f() {}\n")),
		"obsolete.go": 0xdeadbeef,
	}

	result, err := Run(context.Background(), Options{Root: root, Known: known})
	require.NoError(t, err)

	require.Len(t, result.Added, 1)
	require.Equal(t, "main.go", result.Added[0].Path)
	require.Equal(t, "go", result.Added[0].Language)

	require.Len(t, result.Unchanged, 1)
	require.Equal(t, "util.go", result.Unchanged[0].Path)

	require.Contains(t, result.Removed, "obsolete.go")
	require.Empty(t, result.Errors)
}

func TestRun_DetectsModifiedContent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\nfunc main() {}\n")

	known := map[string]uint64{
		"main.go": xxhash.Sum64([]byte("package main\n")),
	}

	result, err := Run(context.Background(), Options{Root: root, Known: known})
	require.NoError(t, err)

	require.Len(t, result.Modified, 1)
	require.Empty(t, result.Added)
	require.Empty(t, result.Unchanged)
}

func TestRun_ExcludesDefaultIgnoredDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "vendor/lib/lib.go", "package lib\n")
	writeFile(t, root, "app.go", "package main\n")

	result, err := Run(context.Background(), Options{Root: root})
	require.NoError(t, err)

	for _, f := range result.Added {
		require.NotContains(t, f.Path, "vendor")
	}
	require.Len(t, result.Added, 1)
	require.Equal(t, "app.go", result.Added[0].Path)
}

func TestRun_HonoursIncludeGlobs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/a.go", "package a\n")
	writeFile(t, root, "src/a.md", "# docs\n")

	result, err := Run(context.Background(), Options{
		Root:         root,
		IncludeGlobs: []string{"**/*.go"},
	})
	require.NoError(t, err)
	require.Len(t, result.Added, 1)
	require.Equal(t, "src/a.go", filepath.ToSlash(result.Added[0].Path))
}
