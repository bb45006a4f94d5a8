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

// Package scan is the first stage of the pipeline: walk a project,
// compute content hashes, and diff against what the knowledge store
// already has on file to produce a ChangeSet.
//
// A per-entry scan error never aborts the walk; it's collected into the
// result's Errors slice so one unreadable file doesn't block indexing the
// other ten thousand.
package scan

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"

	"github.com/kraklabs/drift/internal/coreerr"
)

// Options configures a scan.
type Options struct {
	// Root is the directory to walk.
	Root string
	// IncludeGlobs, if non-empty, restricts the walk to matching paths
	// (doublestar syntax, matched relative to Root).
	IncludeGlobs []string
	// ExcludeGlobs are applied after IncludeGlobs; default ignore rules
	// (node_modules, vendor, .git, dist, build) are always applied first.
	ExcludeGlobs []string
	// MaxFileSize skips files larger than this many bytes. Zero means
	// unlimited.
	MaxFileSize int64
	// Known is the set of files already recorded in the knowledge store,
	// keyed by normalized relative path, with their last-seen content
	// hash. Used to classify each walked file as Added/Modified/Unchanged,
	// and to detect Removed files that vanished since the last scan.
	Known map[string]uint64
	// Workers bounds walk parallelism; zero selects runtime.NumCPU().
	Workers int
	Logger  *slog.Logger
}

var defaultExcludes = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/dist/**",
	"**/build/**",
	"**/.drift/**",
}

// File is one scanned source file.
type File struct {
	Path        string
	AbsPath     string
	Size        int64
	Language    string
	ContentHash uint64
}

// ChangeSet is the scanner's output: what needs (re-)parsing and what can
// be skipped this run.
type ChangeSet struct {
	Added     []File
	Modified  []File
	Unchanged []File
	Removed   []string // paths present in Known but not found on disk
	Errors    []*coreerr.ScanError
}

// Run walks opts.Root and produces a ChangeSet. It respects ctx
// cancellation at each directory boundary.
func Run(ctx context.Context, opts Options) (*ChangeSet, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers < 1 {
			workers = 1
		}
	}

	type walked struct {
		path string
		abs  string
		size int64
	}

	paths := make(chan walked, workers*4)
	var walkErr error

	go func() {
		defer close(paths)
		walkErr = filepath.WalkDir(opts.Root, func(path string, d fs.DirEntry, err error) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err != nil {
				log.Warn("scan.walk.error", "path", path, "err", err)
				return nil
			}
			rel, relErr := filepath.Rel(opts.Root, path)
			if relErr != nil {
				return nil
			}
			if d.IsDir() {
				if shouldExclude(rel, opts.ExcludeGlobs) {
					return filepath.SkipDir
				}
				return nil
			}
			if shouldExclude(rel, opts.ExcludeGlobs) {
				return nil
			}
			if len(opts.IncludeGlobs) > 0 && !matchesAny(rel, opts.IncludeGlobs) {
				return nil
			}
			info, infoErr := d.Info()
			if infoErr != nil {
				return nil
			}
			if opts.MaxFileSize > 0 && info.Size() > opts.MaxFileSize {
				return nil
			}
			paths <- walked{path: rel, abs: path, size: info.Size()}
			return nil
		})
	}()

	var (
		mu     sync.Mutex
		result = &ChangeSet{}
		seen   = make(map[string]bool)
		wg     sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range paths {
				data, err := readFileFunc(w.abs)
				if err != nil {
					se := &coreerr.ScanError{Path: w.path, Signal: coreerr.ScanIOError, Err: err}
					mu.Lock()
					result.Errors = append(result.Errors, se)
					mu.Unlock()
					continue
				}
				h := xxhash.Sum64(data)
				f := File{
					Path:        w.path,
					AbsPath:     w.abs,
					Size:        w.size,
					Language:    languageFromPath(w.path),
					ContentHash: h,
				}

				mu.Lock()
				seen[w.path] = true
				if prior, ok := opts.Known[w.path]; ok {
					if prior == h {
						result.Unchanged = append(result.Unchanged, f)
					} else {
						result.Modified = append(result.Modified, f)
					}
				} else {
					result.Added = append(result.Added, f)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if walkErr != nil {
		return nil, walkErr
	}

	for known := range opts.Known {
		if !seen[known] {
			result.Removed = append(result.Removed, known)
		}
	}

	log.Info("scan.complete",
		"added", len(result.Added),
		"modified", len(result.Modified),
		"unchanged", len(result.Unchanged),
		"removed", len(result.Removed),
		"errors", len(result.Errors),
	)

	return result, nil
}

func shouldExclude(relPath string, extra []string) bool {
	normalized := filepath.ToSlash(relPath)
	for _, pattern := range defaultExcludes {
		if ok, _ := doublestar.Match(pattern, normalized); ok {
			return true
		}
	}
	for _, pattern := range extra {
		if ok, _ := doublestar.Match(filepath.ToSlash(pattern), normalized); ok {
			return true
		}
	}
	return false
}

func matchesAny(relPath string, globs []string) bool {
	normalized := filepath.ToSlash(relPath)
	for _, pattern := range globs {
		if ok, _ := doublestar.Match(filepath.ToSlash(pattern), normalized); ok {
			return true
		}
	}
	return false
}
