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

// Package workerpool is the one job/result worker pool every
// CPU-bound fan-out in the pipeline uses (call resolution, scanning,
// embedding, pattern detection), rather than each component hand-rolling
// its own channel plumbing. The shape — capped-at-8 workers, buffered
// job/result channels, a WaitGroup closing results — is the one
// pkg/ingestion/resolver.go and pkg/ingestion/embedding.go each wrote
// out separately.
package workerpool

import (
	"runtime"
	"sync"
)

// maxWorkers bounds parallelism regardless of GOMAXPROCS; beyond 8, the
// dominant cost for these workloads (CozoDB round trips, regex matching)
// doesn't scale with additional goroutines.
const maxWorkers = 8

// SequentialThreshold is the item-count below which callers should just
// run sequentially rather than pay worker/channel setup cost — matching
// pkg/ingestion/resolver.go's len(calls) < 1000 dispatch rule.
const SequentialThreshold = 1000

// NumWorkers returns min(runtime.NumCPU(), maxWorkers).
func NumWorkers() int {
	n := runtime.NumCPU()
	if n > maxWorkers {
		return maxWorkers
	}
	if n < 1 {
		return 1
	}
	return n
}

// Map runs fn over every item in items using NumWorkers() goroutines,
// returning results in the same order as items. fn must be safe for
// concurrent invocation. Intended for bulk, order-preserving
// transformations (e.g. parsing a batch of files); use Run instead when
// the caller just needs side effects and doesn't care about ordering.
func Map[T, R any](items []T, fn func(T) R) []R {
	if len(items) == 0 {
		return nil
	}
	if len(items) < SequentialThreshold {
		out := make([]R, len(items))
		for i, item := range items {
			out[i] = fn(item)
		}
		return out
	}

	out := make([]R, len(items))
	jobs := make(chan int, len(items))
	var wg sync.WaitGroup

	workers := NumWorkers()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out[i] = fn(items[i])
			}
		}()
	}

	for i := range items {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return out
}

// Run fans fn out across items with no result collection beyond errors;
// the first non-nil error from any item is returned (others are still
// allowed to finish). Intended for bulk side-effecting work like batched
// store writes.
func Run[T any](items []T, fn func(T) error) error {
	if len(items) == 0 {
		return nil
	}

	jobs := make(chan T, len(items))
	errs := make(chan error, len(items))
	var wg sync.WaitGroup

	workers := NumWorkers()
	if len(items) < SequentialThreshold {
		workers = 1
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				if err := fn(item); err != nil {
					errs <- err
				}
			}
		}()
	}

	for _, item := range items {
		jobs <- item
	}
	close(jobs)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
