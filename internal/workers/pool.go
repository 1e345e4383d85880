// Package workers provides the background execution model: a fixed-size
// worker pool, an in-process event bus that dispatches onto it, and the
// periodic retry dispatcher.
package workers

import (
	"context"
	"log"
	"sync"
	"time"
)

// Job is one unit of background work.
type Job func(ctx context.Context)

// Pool runs jobs on a fixed number of workers. A panicking job is isolated
// per-event and never takes a worker down.
type Pool struct {
	jobs chan Job
	size int
	wg   sync.WaitGroup
	once sync.Once
}

func NewPool(size, queueDepth int) *Pool {
	if size <= 0 {
		size = 4
	}
	if queueDepth <= 0 {
		queueDepth = 256
	}
	return &Pool{jobs: make(chan Job, queueDepth), size: size}
}

// Start launches the workers. They drain the queue until Stop is called or
// the context is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.run(ctx, job)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pool) run(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("workers: job panicked: %v", r)
		}
	}()
	job(ctx)
}

// Submit enqueues a job, blocking when the queue is full.
func (p *Pool) Submit(job Job) {
	p.jobs <- job
}

// Stop closes the queue and waits for in-flight jobs.
func (p *Pool) Stop() {
	p.once.Do(func() { close(p.jobs) })
	p.wg.Wait()
}

// Clock abstracts time for the schedulers.
type Clock interface {
	Now() time.Time
}

// SystemClock is the real clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
