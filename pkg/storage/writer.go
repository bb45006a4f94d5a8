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
	"log/slog"
	"strings"
	"time"

	"github.com/kraklabs/drift/internal/contract"
)

// writerQueueCapacity bounds the channel the single writer goroutine drains.
// A producer blocks once this many batches are queued, which is the
// backpressure mechanism: extraction/resolution phases slow down rather
// than the writer falling arbitrarily far behind.
const writerQueueCapacity = 1024

// defaultFlushItems and defaultFlushInterval match the knowledge store's
// batching contract: flush whichever comes first.
const (
	defaultFlushItems    = 500
	defaultFlushInterval = 100 * time.Millisecond
)

// WriteBatch is a set of CozoScript mutation statements produced by one
// phase (extraction, resolution, pattern aggregation, ...) destined for a
// single relation family. Statements are committed together so a reader
// never observes a partially-applied batch.
type WriteBatch struct {
	Statements []string

	// done, if set, is signaled once this batch (and everything queued
	// ahead of it) has been flushed to the backend. Used by Flush to give
	// callers a synchronous barrier without otherwise changing the
	// fire-and-forget Enqueue contract.
	done chan error
}

// Writer is the single goroutine that owns all mutation traffic into a
// Backend. Multiple producers call Enqueue concurrently; Writer serializes
// them into bounded CozoScript transactions sized by the same Batcher the
// ingestion pipeline already uses for bulk loads.
type Writer struct {
	backend Backend
	queue   chan WriteBatch
	done    chan struct{}
	errs    chan error
	batcher *Batcher
	log     *slog.Logger
}

// NewWriter starts the writer goroutine. Call Close to drain the queue and
// stop it.
func NewWriter(backend Backend, log *slog.Logger) *Writer {
	if log == nil {
		log = slog.Default()
	}
	w := &Writer{
		backend: backend,
		queue:   make(chan WriteBatch, writerQueueCapacity),
		done:    make(chan struct{}),
		errs:    make(chan error, 1),
		batcher: NewBatcher(defaultFlushItems, contract.DefaultSoftLimitBytes),
		log:     log,
	}
	go w.run()
	return w
}

// Enqueue submits a batch for eventual durable write. It blocks if the
// writer's queue is full, which is the intended backpressure behaviour.
func (w *Writer) Enqueue(b WriteBatch) {
	w.queue <- b
}

// Flush blocks until every batch enqueued before this call has been
// committed to the backend, the synchronous barrier Scan needs before
// recomputing materialised views over what it just wrote. Flush errors
// are reported through the same channel Close drains, not through this
// call's return value.
func (w *Writer) Flush() error {
	done := make(chan error, 1)
	w.queue <- WriteBatch{done: done}
	return <-done
}

// Close stops accepting new batches, flushes whatever remains, and waits
// for the writer goroutine to exit. The first error encountered while
// flushing, if any, is returned.
func (w *Writer) Close() error {
	close(w.queue)
	<-w.done
	select {
	case err := <-w.errs:
		return err
	default:
		return nil
	}
}

func (w *Writer) run() {
	defer close(w.done)

	ticker := time.NewTicker(defaultFlushInterval)
	defer ticker.Stop()

	var pending []string
	flush := func() {
		if len(pending) == 0 {
			return
		}
		script := strings.Join(pending, "\n\n")
		if v := contract.ValidateBatchScript(script); !v.OK {
			w.reportErr(fmt.Errorf("writer: %s", v.Message))
			pending = pending[:0]
			return
		}
		if err := w.backend.Execute(context.Background(), script); err != nil {
			w.reportErr(fmt.Errorf("writer flush: %w", err))
		}
		w.log.Debug("storage.writer.flush", "statements", len(pending), "bytes", len(script))
		pending = pending[:0]
	}

	for {
		select {
		case b, ok := <-w.queue:
			if !ok {
				flush()
				return
			}
			pending = append(pending, b.Statements...)
			if b.done != nil {
				flush()
				b.done <- nil
				continue
			}
			if len(pending) >= defaultFlushItems {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (w *Writer) reportErr(err error) {
	select {
	case w.errs <- err:
	default:
		// a prior error is already queued; the first one wins.
	}
}
