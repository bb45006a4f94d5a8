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

package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// ProjectLock is an exclusive, process-level advisory lock over one
// project's data directory, held for the lifetime of a scan so two
// `drift scan` invocations against the same project can never interleave
// writes. Unlike the CLI's own commit queue (a higher-level concern:
// which commits are pending), this lock is core-level — acquired by
// Engine.Open itself rather than only by the command that happens to
// call it.
type ProjectLock struct {
	file *os.File
}

// lockFileName is the advisory lock file created inside a project's data
// directory, analogous to SQLite's own *-wal/*-shm siblings.
const lockFileName = "drift.lock"

// AcquireLock takes an exclusive, non-blocking flock on dataDir's lock
// file. It returns ErrLocked if another process already holds it.
func AcquireLock(dataDir string) (*ProjectLock, error) {
	path := filepath.Join(dataDir, lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		if err == syscall.EWOULDBLOCK {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}

	_ = f.Truncate(0)
	_, _ = f.WriteAt([]byte(fmt.Sprintf("%d %d\n", os.Getpid(), time.Now().Unix())), 0)

	return &ProjectLock{file: f}, nil
}

// ErrLocked is returned by AcquireLock when another process already holds
// the project's lock file.
var ErrLocked = fmt.Errorf("storage: project is locked by another process")

// Release unlocks and closes the lock file. Safe to call once; a second
// call is a no-op.
func (l *ProjectLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	err := l.file.Close()
	l.file = nil
	return err
}
