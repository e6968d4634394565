// Package utils holds small pieces of supporting infrastructure shared by
// boundary adapters — currently just the generic task pool the demo TCP
// server uses to bound its connection-handling concurrency.
//
// Adapted from the teacher's root-level internal/worker.go WorkerPool,
// moved under its own package since it is no longer the only worker
// concept in the tree (skarn/internal/worker is the per-instrument matching
// worker; this one is a generic fixed-size pool for short-lived I/O tasks).
package utils

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// DefaultTaskChannelSize bounds the pool's pending-task queue.
const DefaultTaskChannelSize = 100

// WorkerFunction is the unit of work a WorkerPool runs.
type WorkerFunction = func(t *tomb.Tomb, task any) error

// WorkerPool runs up to n goroutines pulling tasks off a shared bounded
// channel.
type WorkerPool struct {
	n     int
	tasks chan any
}

// NewWorkerPool creates a pool of size workers with the default task queue
// capacity.
func NewWorkerPool(size int) WorkerPool {
	return WorkerPool{
		tasks: make(chan any, DefaultTaskChannelSize),
		n:     size,
	}
}

// AddTask enqueues task for some worker to pick up.
func (pool *WorkerPool) AddTask(task any) {
	pool.tasks <- task
}

// Setup maintains a full complement of workers under t, each running work
// against tasks pulled from the pool, until t starts dying.
func (pool *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunction) {
	log.Info().Int("workers", pool.n).Msg("starting worker pool")
	activeWorkers := 0
	for {
		select {
		case <-t.Dying():
			return
		default:
			if activeWorkers < pool.n {
				t.Go(func() error {
					err := pool.worker(t, work)
					activeWorkers--
					return err
				})
				activeWorkers++
			}
		}
	}
}

func (pool *WorkerPool) worker(t *tomb.Tomb, work WorkerFunction) error {
	select {
	case <-t.Dying():
		return nil
	case task := <-pool.tasks:
		if err := work(t, task); err != nil {
			log.Error().Err(err).Msg("worker task failed")
			return err
		}
	}
	return nil
}
