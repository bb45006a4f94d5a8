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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// GenerateFileID generates a deterministic file ID from its path, hashing
// only when the normalized path would otherwise make an unwieldy ID.
func GenerateFileID(filePath string) string {
	normalized := normalizePath(filePath)
	if len(normalized) <= 256 {
		return fmt.Sprintf("file:%s", normalized)
	}
	hash := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("file:%s", hex.EncodeToString(hash[:16]))
}

// GenerateFunctionID generates a deterministic function ID from path,
// name, and full source range. The signature is deliberately excluded so
// IDs stay stable when signature extraction improves; start/end column
// are included to avoid collisions between same-named functions sharing
// a line range (closures, overloads).
func GenerateFunctionID(filePath, name string, startLine, endLine, startCol, endCol int) string {
	normalized := normalizePath(filePath)
	idStr := fmt.Sprintf("%s|%s|%d|%d|%d|%d", normalized, name, startLine, endLine, startCol, endCol)
	hash := sha256.Sum256([]byte(idStr))
	return fmt.Sprintf("func:%s", hex.EncodeToString(hash[:]))
}

// GenerateTypeID generates a deterministic type ID from path, name, and
// start line.
func GenerateTypeID(filePath, name string, startLine int) string {
	normalized := normalizePath(filePath)
	idStr := fmt.Sprintf("%s|%s|%d", normalized, name, startLine)
	hash := sha256.Sum256([]byte(idStr))
	return fmt.Sprintf("type:%s", hex.EncodeToString(hash[:]))
}

func normalizePath(path string) string {
	if len(path) >= 2 && path[0:2] == "./" {
		path = path[2:]
	}
	path = filepath.Clean(path)
	return filepath.ToSlash(path)
}

// SignatureHash and BodyHash use xxhash (fast, non-cryptographic) rather
// than sha256: these are invalidation keys the incremental pipeline
// compares cheaply on every scan, not stable cross-scan identities, so
// collision resistance matters far less than speed.

func SignatureHash(signature string) uint64 { return xxhash.Sum64String(signature) }

func BodyHash(body string) uint64 { return xxhash.Sum64String(body) }
