// ABOUTME: Bounded-concurrency batch runner with per-task failure isolation
// ABOUTME: Workers share nothing; one coordinator drains results, merges, and flushes the checkpoint

package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/tendril-collect/internal/checkpoint"
)

// Result is the outcome of one collection task. Payload is present iff
// the task succeeded.
type Result struct {
	Hostname string
	Payload  json.RawMessage
	Err      error
}

// OK reports whether the task produced a payload.
func (r Result) OK() bool {
	return r.Err == nil
}

// Progress is called by the coordinator after each completion, in arrival
// order. done counts completions so far, total is the batch size. It runs
// on the coordinating goroutine, after the checkpoint has absorbed (and,
// on flush boundaries, persisted) the result.
type Progress func(res Result, done, total int)

// Summary is the final tally of one batch.
type Summary struct {
	Succeeded int // tasks that produced a payload this run
	Failed    int // tasks that did not
	Total     int // entries now in the checkpoint
}

// Collector runs collection batches against a fixed worker pool.
type Collector struct {
	exec       Executor
	ckpt       *checkpoint.File
	workers    int
	flushEvery int
	progress   Progress
	logger     *slog.Logger
}

// New creates a Collector. progress may be nil.
func New(exec Executor, ckpt *checkpoint.File, workers, flushEvery int, progress Progress) *Collector {
	return &Collector{
		exec:       exec,
		ckpt:       ckpt,
		workers:    workers,
		flushEvery: flushEvery,
		progress:   progress,
		logger:     slog.Default().With("component", "collector"),
	}
}

// SkipCollected removes hostnames already recorded as successful in the
// checkpoint. Used by --resume: prior successes are skipped outright,
// never re-verified; prior failures were never recorded and so remain in
// the dispatch set.
func SkipCollected(hostnames []string, ckpt *checkpoint.File) []string {
	var remaining []string
	for _, h := range hostnames {
		if !ckpt.Has(h) {
			remaining = append(remaining, h)
		}
	}
	return remaining
}

// Run dispatches one task per hostname through the worker pool and drains
// completions until the batch is done. Successful payloads merge into the
// checkpoint; failures are surfaced through Progress only. The checkpoint
// is flushed after every flushEvery completions and once more at batch
// end. A flush error aborts the run; the on-disk file is still the last
// complete snapshot thanks to the atomic write.
//
// The accumulated map is touched only by this goroutine, after results
// are drained from the channel; workers hold no shared mutable state.
func (c *Collector) Run(ctx context.Context, hostnames []string) (Summary, error) {
	total := len(hostnames)
	c.logger.Info("starting batch", "tasks", total, "workers", c.workers)

	tasks := make(chan string)
	results := make(chan Result)

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for host := range tasks {
				payload, err := c.exec.Collect(ctx, host)
				results <- Result{Hostname: host, Payload: payload, Err: err}
			}
		}()
	}

	go func() {
		for _, h := range hostnames {
			tasks <- h
		}
		close(tasks)
		wg.Wait()
		close(results)
	}()

	var sum Summary
	done := 0
	for res := range results {
		done++
		if res.OK() {
			c.ckpt.Put(res.Hostname, res.Payload)
			sum.Succeeded++
		} else {
			sum.Failed++
			c.logger.Warn("task failed", "hostname", res.Hostname, "error", res.Err)
		}

		if done%c.flushEvery == 0 {
			if err := c.ckpt.Flush(); err != nil {
				// Unblock the remaining workers so they can exit.
				go func() {
					for range results {
					}
				}()
				return sum, fmt.Errorf("flushing checkpoint: %w", err)
			}
		}

		if c.progress != nil {
			c.progress(res, done, total)
		}
	}

	if err := c.ckpt.Flush(); err != nil {
		return sum, fmt.Errorf("flushing checkpoint: %w", err)
	}

	sum.Total = c.ckpt.Len()
	c.logger.Info("batch complete", "succeeded", sum.Succeeded, "failed", sum.Failed, "total", sum.Total)
	return sum, nil
}
