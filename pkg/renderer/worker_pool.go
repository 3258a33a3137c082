package renderer

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/df07/go-pathtracer/pkg/core"
)

// RowTask represents a scanline rendering task for the worker pool
type RowTask struct {
	Row     int          // Image row, 0 is the top
	Pass    int          // Pass number, mixed into the row's random seed
	Samples int          // Samples to add to every pixel of the row
	Pixels  []PixelStats // Accumulators for this row only; rows never share a slice
}

// RowResult contains the result from rendering a row
type RowResult struct {
	Row   int
	Stats RenderStats
}

// RowRenderer renders one task. It may panic with a *core.InvariantError.
type RowRenderer func(task RowTask) RenderStats

// WorkerPool manages parallel row rendering
type WorkerPool struct {
	numWorkers int
	render     RowRenderer
}

// NewWorkerPool creates a worker pool with the specified number of workers
func NewWorkerPool(numWorkers int, render RowRenderer) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &WorkerPool{
		numWorkers: numWorkers,
		render:     render,
	}
}

// GetNumWorkers returns the number of workers in the pool
func (wp *WorkerPool) GetNumWorkers() int {
	return wp.numWorkers
}

// Process renders every task and hands each result to onResult on the calling
// goroutine, in completion order. The first error from a worker, from onResult,
// or from ctx stops the remaining work and is returned.
func (wp *WorkerPool) Process(ctx context.Context, tasks []RowTask, onResult func(RowResult) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	taskQueue := make(chan RowTask)
	resultQueue := make(chan RowResult, wp.numWorkers)

	g.Go(func() error {
		defer close(taskQueue)
		for _, task := range tasks {
			select {
			case taskQueue <- task:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	var workers sync.WaitGroup
	for i := 0; i < wp.numWorkers; i++ {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			for task := range taskQueue {
				if err := ctx.Err(); err != nil {
					return err
				}
				result, err := wp.runTask(task)
				if err != nil {
					return err
				}
				select {
				case resultQueue <- result:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}

	go func() {
		workers.Wait()
		close(resultQueue)
	}()

	var handlerErr error
	for result := range resultQueue {
		if handlerErr != nil {
			continue
		}
		if err := onResult(result); err != nil {
			handlerErr = err
			cancel()
		}
	}

	err := g.Wait()
	if handlerErr != nil {
		return handlerErr
	}
	return err
}

// runTask renders a single task, converting invariant panics into errors
func (wp *WorkerPool) runTask(task RowTask) (result RowResult, err error) {
	defer core.RecoverInvariant(&err)
	return RowResult{Row: task.Row, Stats: wp.render(task)}, nil
}
