package driver

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"nascdec/pkg/errors"
	"nascdec/pkg/lexer"
	"nascdec/pkg/parser"
)

// classJob is one class listing queued for decompilation.
type classJob struct {
	Index   int // Position of the class in the listing
	Listing *lexer.ClassListing
	Ignored bool
}

// classResult carries a decompiled class back to the ordered writer.
type classResult struct {
	Index    int
	Name     string
	Line     int
	Ignored  bool
	Class    *parser.ClassDeclaration
	Code     string
	Err      errors.DecompileError
	Duration time.Duration
}

// PoolStats provides statistics about a decompilation run.
type PoolStats struct {
	TotalJobs     int
	ActiveJobs    int
	CompletedJobs int
	FailedJobs    int
	SkippedJobs   int
	AverageTime   time.Duration
	TotalTime     time.Duration
	WorkerCount   int
}

// workerPool runs classJobs on at most numWorkers goroutines. Results are
// delivered in completion order; collect restores listing order.
type workerPool struct {
	numWorkers int
	process    func(*classJob) *classResult

	group   *errgroup.Group
	ctx     context.Context
	results chan *classResult

	// State
	started    int32 // atomic
	stopped    int32 // atomic
	activeJobs int32 // atomic

	stats      PoolStats
	statsMutex sync.RWMutex
}

func newWorkerPool(numWorkers int, process func(*classJob) *classResult) *workerPool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &workerPool{numWorkers: numWorkers, process: process}
}

// Start prepares the pool. Jobs stop being accepted once ctx is done.
func (wp *workerPool) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&wp.started, 0, 1) {
		return fmt.Errorf("worker pool already started")
	}

	wp.group, wp.ctx = errgroup.WithContext(ctx)
	wp.group.SetLimit(wp.numWorkers)
	wp.results = make(chan *classResult, wp.numWorkers)
	wp.stats = PoolStats{WorkerCount: wp.numWorkers}
	return nil
}

// Submit queues a job, blocking while every worker is busy.
func (wp *workerPool) Submit(job *classJob) error {
	if atomic.LoadInt32(&wp.started) == 0 {
		return fmt.Errorf("worker pool not started")
	}
	if atomic.LoadInt32(&wp.stopped) == 1 {
		return fmt.Errorf("worker pool stopped")
	}
	if err := wp.ctx.Err(); err != nil {
		return err
	}

	atomic.AddInt32(&wp.activeJobs, 1)
	wp.statsMutex.Lock()
	wp.stats.TotalJobs++
	wp.statsMutex.Unlock()

	wp.group.Go(func() error {
		defer atomic.AddInt32(&wp.activeJobs, -1)
		if err := wp.ctx.Err(); err != nil {
			return err
		}

		result := wp.process(job)
		wp.record(result)

		select {
		case wp.results <- result:
			return nil
		case <-wp.ctx.Done():
			return wp.ctx.Err()
		}
	})
	return nil
}

// Results returns the result channel. It is closed by Shutdown.
func (wp *workerPool) Results() <-chan *classResult {
	return wp.results
}

// Shutdown waits for every submitted job and closes Results.
func (wp *workerPool) Shutdown() error {
	if !atomic.CompareAndSwapInt32(&wp.stopped, 0, 1) {
		return fmt.Errorf("worker pool already stopped")
	}
	err := wp.group.Wait()
	close(wp.results)
	return err
}

// Stats returns current pool statistics.
func (wp *workerPool) Stats() PoolStats {
	wp.statsMutex.RLock()
	defer wp.statsMutex.RUnlock()

	stats := wp.stats
	stats.ActiveJobs = int(atomic.LoadInt32(&wp.activeJobs))
	return stats
}

func (wp *workerPool) record(result *classResult) {
	wp.statsMutex.Lock()
	defer wp.statsMutex.Unlock()

	switch {
	case result.Ignored:
		wp.stats.SkippedJobs++
	case result.Err != nil:
		wp.stats.FailedJobs++
	default:
		wp.stats.CompletedJobs++
	}
	wp.stats.TotalTime += result.Duration
	if done := wp.stats.CompletedJobs + wp.stats.FailedJobs; done > 0 {
		wp.stats.AverageTime = wp.stats.TotalTime / time.Duration(done)
	}
}

// collect hands results to emit in Index order. After emit fails the
// remaining results are drained without emitting so workers never block.
func collect(results <-chan *classResult, emit func(*classResult) error) error {
	pending := make(map[int]*classResult)
	next := 0
	var firstErr error

	for result := range results {
		pending[result.Index] = result
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			if firstErr == nil {
				firstErr = emit(ready)
			}
		}
	}
	return firstErr
}
