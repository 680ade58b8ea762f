// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package concurrent

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Task is a unit of work run by a WorkerPool.
type Task func(ctx context.Context) error

// WorkerPool bounds how many tasks run at once.
type WorkerPool struct {
	workerCount int
}

// NewWorkerPool creates a pool with the given concurrency. Non-positive
// counts fall back to a single worker.
func NewWorkerPool(workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &WorkerPool{workerCount: workerCount}
}

// Size returns the maximum number of concurrent tasks.
func (wp *WorkerPool) Size() int {
	return wp.workerCount
}

// RunAll executes every task regardless of failures and returns the
// non-nil errors. Tasks not yet started when ctx is done report ctx.Err().
func (wp *WorkerPool) RunAll(ctx context.Context, tasks ...Task) []error {
	if len(tasks) == 0 {
		return nil
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	g := new(errgroup.Group)
	g.SetLimit(wp.workerCount)

	for _, task := range tasks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				record(err)
				return nil
			}
			if err := task(ctx); err != nil {
				record(err)
			}
			return nil
		})
	}

	_ = g.Wait()

	return errs
}

// ForEach runs fn for every item through the pool and collects the errors
// like RunAll.
func ForEach[T any](ctx context.Context, wp *WorkerPool, items []T, fn func(ctx context.Context, item T) error) []error {
	tasks := make([]Task, 0, len(items))
	for _, item := range items {
		tasks = append(tasks, func(ctx context.Context) error {
			return fn(ctx, item)
		})
	}
	return wp.RunAll(ctx, tasks...)
}
