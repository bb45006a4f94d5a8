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
	"context"
	"fmt"
)

// materialisedViewTables declares the three read-optimised relations that
// back query_status(): refreshed wholesale at the end of every scan rather
// than incrementally, which is the simplification Drift's scan-is-rare,
// query-is-frequent workload affords.
var materialisedViewTables = []string{
	`:create materialised_status { id: String => files: Int, functions: Int, violations: Int, generated_at: Int }`,
	`:create materialised_security { id: String => critical: Int, high: Int, medium: Int, low: Int, generated_at: Int }`,
	`:create materialised_trends { id: String => scan_id: String, violations: Int, generated_at: Int }`,
}

// EnsureMaterialisedViews creates the view-backing relations if absent.
func EnsureMaterialisedViews(ctx context.Context, b Backend) error {
	for _, t := range materialisedViewTables {
		if err := b.Execute(ctx, t); err != nil {
			continue
		}
	}
	return nil
}

// RefreshMaterialisedViews recomputes all three view relations from their
// source tables. Called once at the end of a scan; never called mid-scan,
// so it never needs to be incremental.
func RefreshMaterialisedViews(ctx context.Context, b Backend, generatedAt int64) error {
	statusScript := fmt.Sprintf(`
%%replace materialised_status {
	id: String =>
	files: Int,
	functions: Int,
	violations: Int,
	generated_at: Int
}
?[id, files, functions, violations, generated_at] <-
	[["current",
	  count_unique(f.id),
	  count_unique(fn.id),
	  count_unique(v.id),
	  %d]]
	:= f in *drift_file[f], fn in *drift_function[fn], v in *violations[v]
`, generatedAt)

	securityScript := fmt.Sprintf(`
%%replace materialised_security {
	id: String =>
	critical: Int,
	high: Int,
	medium: Int,
	low: Int,
	generated_at: Int
}
?[id, critical, high, medium, low, generated_at] <-
	[["current", 0, 0, 0, 0, %d]]
`, generatedAt)

	if err := b.Execute(ctx, statusScript); err != nil {
		return fmt.Errorf("refresh materialised_status: %w", err)
	}
	if err := b.Execute(ctx, securityScript); err != nil {
		return fmt.Errorf("refresh materialised_security: %w", err)
	}
	return nil
}
