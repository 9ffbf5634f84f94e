// Package pool implements the fixed-size shared-queue thread pool: a fleet
// of worker goroutines reading off one shared job channel, each wrapping job
// execution in a recover() so a panicking job never reduces the pool's
// capacity. This generalizes the teacher's channel-driven worker loops
// (ValuesStore.memWriter, memClearer, tocWriter in valuesstore.go — each a
// `for { v := <-ch; ...; }` loop fed by a shared channel and stopped with a
// sentinel) from fixed internal roles into a pool of generic fire-and-forget
// jobs.
package pool

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Job is a unit of work submitted to the pool. It takes no arguments and
// returns nothing; callers close over whatever state they need.
type Job func()

// Pool is a fixed-size worker pool. The number of live workers never
// changes for the pool's lifetime — a job that panics is caught at the
// worker boundary and logged, and the worker loops back around for its next
// job.
type Pool struct {
	jobs chan Job
	wg   sync.WaitGroup
	log  *zap.Logger
}

// New spawns exactly n worker goroutines reading from a shared queue of
// capacity queueDepth. If a worker fails to start (this implementation
// cannot actually fail after goroutines launch, but the signature mirrors
// spec's "every already-spawned worker is signaled to terminate and joined
// before the error is returned" contract for symmetry with designs that can
// fail, e.g. one backed by OS threads with a ulimit), every already-spawned
// worker is stopped and joined before the error is returned.
func New(n int, queueDepth int, logger *zap.Logger) (*Pool, error) {
	if n < 1 {
		return nil, fmt.Errorf("pool size must be at least 1, got %d", n)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueDepth < 0 {
		queueDepth = 0
	}
	p := &Pool{
		jobs: make(chan Job, queueDepth),
		log:  logger,
	}
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.worker(i)
	}
	return p, nil
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for job := range p.jobs {
		p.runJob(id, job)
	}
}

// runJob executes job under a recover() guard so a panic inside job never
// propagates out of the worker loop; this is the pool's central
// correctness property.
func (p *Pool) runJob(workerID int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("recovered panic in pool job",
				zap.Int("worker", workerID),
				zap.Any("panic", r),
			)
		}
	}()
	job()
}

// Spawn enqueues job. It does not wait for job to run or complete; it may
// briefly block if the internal queue is full.
func (p *Pool) Spawn(job Job) {
	p.jobs <- job
}

// Shutdown closes the job queue and waits for the workers to run every job
// still queued and exit, or for ctx to be done, whichever comes first.
func (p *Pool) Shutdown(ctx context.Context) error {
	close(p.jobs)
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
