package pool

import (
	"context"
	"fmt"
	"sync"

	"boorudl/pkg/logger"
)

// ProcessFunc handles one job on the given worker
type ProcessFunc[J, R any] func(ctx context.Context, workerID int, job J) R

// WorkerPool runs jobs on a fixed number of goroutines
type WorkerPool[J, R any] struct {
	numWorkers  int
	jobQueue    chan J
	resultQueue chan R
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	process     ProcessFunc[J, R]
	logger      logger.Logger
}

// NewWorkerPool creates a pool. It does nothing until Start is called.
func NewWorkerPool[J, R any](numWorkers int, process ProcessFunc[J, R], log logger.Logger) *WorkerPool[J, R] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &WorkerPool[J, R]{
		numWorkers:  numWorkers,
		jobQueue:    make(chan J, numWorkers*2),
		resultQueue: make(chan R, numWorkers),
		process:     process,
		logger:      log,
	}
}

// Start launches the workers. Jobs see a context derived from ctx.
func (wp *WorkerPool[J, R]) Start(ctx context.Context) {
	wp.ctx, wp.cancel = context.WithCancel(ctx)

	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue, waits for in-flight jobs and closes Results
func (wp *WorkerPool[J, R]) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Debug("Worker pool stopped")
}

// Submit queues a job. It fails once the pool's context is done.
func (wp *WorkerPool[J, R]) Submit(job J) error {
	select {
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", wp.ctx.Err())
	default:
	}

	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", wp.ctx.Err())
	}
}

// Results returns the result channel. It is closed by Stop.
func (wp *WorkerPool[J, R]) Results() <-chan R {
	return wp.resultQueue
}

// NumWorkers returns the pool size
func (wp *WorkerPool[J, R]) NumWorkers() int {
	return wp.numWorkers
}

func (wp *WorkerPool[J, R]) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		if wp.ctx.Err() != nil {
			wp.logger.DebugWithFields("Worker stopping - context cancelled", map[string]interface{}{
				"worker_id": id,
			})
			return
		}

		result := wp.process(wp.ctx, id, job)

		// Results are always delivered; the consumer drains until Stop closes the channel
		wp.resultQueue <- result
	}
}
