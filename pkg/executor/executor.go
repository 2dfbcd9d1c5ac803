// Package executor is the bounded parallel worker pool the source
// adapters use to fan a chunked query out across goroutines (spec §4.3.3:
// "min(64, num_chunks)" workers; §4.3.4: up to 64 in parallel).
package executor

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/cmsdynamo/dynamo/pkg/log"
)

var execLog = log.WithComponent("executor")

const maxWorkers = 64

// Width returns the worker count for n units of work: min(maxWorkers, n),
// with a floor of 1 so a single chunk still gets a worker.
func Width(n int) int {
	if n <= 0 {
		return 1
	}
	if n > maxWorkers {
		return maxWorkers
	}
	return n
}

// Task is one unit of work submitted to Run.
type Task func(ctx context.Context) error

// Progress reports a live completion count for a long chunked operation.
type Progress struct {
	Total     int
	completed atomic.Int64
}

// Completed returns the number of tasks that have finished so far.
func (p *Progress) Completed() int64 {
	if p == nil {
		return 0
	}
	return p.completed.Load()
}

// Run executes tasks with at most Width(len(tasks)) running concurrently.
// It returns the first error encountered; per errgroup semantics, the
// group's context is canceled as soon as one task fails, so remaining
// queued tasks observe ctx.Done() and should return promptly. Callers
// that want the spec's "retry in place, log and skip after exhausting
// retries" per-chunk failure semantics (§4.4 phase 3) should make Task
// itself swallow its own retryable errors and only return a terminal one.
func Run(ctx context.Context, tasks []Task, progress *Progress) error {
	width := Width(len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(width)

	for _, task := range tasks {
		task := task
		g.Go(func() error {
			err := task(gctx)
			if progress != nil {
				progress.completed.Add(1)
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		execLog.Error().Err(err).Int("width", width).Msg("executor run failed")
		return err
	}
	return nil
}
