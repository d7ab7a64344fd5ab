// Package threadpool implements an elastic worker pool: the number of live
// worker goroutines floats between a configured minimum and maximum,
// growing when the last idle worker picks up a task and shrinking back
// down once there are enough idle workers again. Tasks are plain functions
// rather than a custom future type; a panicking task never takes down the
// pool.
package threadpool

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-evhcore/corerr"
)

// Task is a unit of work submitted to a Pool.
type Task func(ctx context.Context) (any, error)

// Result is the outcome of a Task.
type Result struct {
	Value any
	Err   error
}

type job struct {
	ctx    context.Context
	task   Task
	result chan Result
}

// Handle refers to a single submitted Task. Use BlockOn to wait for its
// result.
type Handle struct {
	result chan Result
}

// BlockOn waits for the task's result, or returns ctx.Err() if ctx is
// canceled first. The underlying task keeps running to completion
// regardless of whether BlockOn's ctx is canceled.
func (h *Handle) BlockOn(ctx context.Context) (any, error) {
	select {
	case r := <-h.result:
		return r.Value, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Pool is an elastic pool of worker goroutines executing submitted Tasks.
// The zero value is not usable; construct with New.
type Pool struct {
	cfg poolOptions

	tasks   chan job
	closeCh chan struct{}
	closed  atomic.Bool
	wg      sync.WaitGroup

	mu       sync.Mutex
	live     int
	idle     int
	nextID   uint64
	stopOnce sync.Once
}

// New constructs and starts a Pool, spawning MinSize worker goroutines
// immediately.
func New(opts ...Option) (*Pool, error) {
	cfg, err := resolvePoolOptions(opts)
	if err != nil {
		return nil, err
	}

	p := &Pool{
		cfg:     *cfg,
		tasks:   make(chan job, cfg.queueDepth),
		closeCh: make(chan struct{}),
	}

	for i := 0; i < cfg.minSize; i++ {
		p.spawn()
	}

	return p, nil
}

// Execute enqueues task for execution by the pool, returning a Handle the
// caller can BlockOn for the result. Execute blocks if the bounded task
// channel is full, until either a worker drains it or ctx is canceled.
func (p *Pool) Execute(ctx context.Context, task Task) (*Handle, error) {
	if p.closed.Load() {
		return nil, corerr.New(corerr.IllegalState, "threadpool: pool is closed")
	}

	resultCh := make(chan Result, 1)
	j := job{ctx: ctx, task: task, result: resultCh}

	// MinSize may be configured as 0, in which case no worker exists until
	// the first task arrives; spawn one opportunistically so the task is
	// not enqueued with nothing able to pick it up.
	p.mu.Lock()
	needsWorker := p.live == 0
	p.mu.Unlock()
	if needsWorker {
		p.spawn()
	}

	select {
	case p.tasks <- j:
		return &Handle{result: resultCh}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.closeCh:
		return nil, corerr.New(corerr.IllegalState, "threadpool: pool is closed")
	}
}

// Close stops accepting new tasks and waits for all in-flight tasks and
// live workers to finish.
func (p *Pool) Close() error {
	p.stopOnce.Do(func() {
		p.closed.Store(true)
		close(p.closeCh)
	})
	p.wg.Wait()
	return nil
}

// LiveCount returns the current number of live worker goroutines. Intended
// for tests and diagnostics.
func (p *Pool) LiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

func (p *Pool) spawn() {
	p.mu.Lock()
	p.live++
	id := p.nextID
	p.nextID++
	p.mu.Unlock()

	p.wg.Add(1)
	go p.worker(id)
}

func (p *Pool) worker(id uint64) {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		p.idle++
		p.mu.Unlock()

		select {
		case j, ok := <-p.tasks:
			if !ok {
				p.mu.Lock()
				p.idle--
				p.live--
				p.mu.Unlock()
				return
			}

			var spawnReplacement bool
			p.mu.Lock()
			p.idle--
			if p.idle == 0 && p.live < p.cfg.maxSize {
				spawnReplacement = true
				p.live++
			}
			p.mu.Unlock()
			if spawnReplacement {
				p.wg.Add(1)
				p.mu.Lock()
				replacementID := p.nextID
				p.nextID++
				p.mu.Unlock()
				go p.worker(replacementID)
			}

			p.runTask(id, j)

			p.mu.Lock()
			exit := p.idle >= p.cfg.minSize
			if exit {
				p.live--
			}
			p.mu.Unlock()
			if exit {
				return
			}

		case <-p.closeCh:
			p.mu.Lock()
			p.idle--
			p.live--
			p.mu.Unlock()
			return
		}
	}
}

func (p *Pool) runTask(id uint64, j job) {
	defer func() {
		if r := recover(); r != nil {
			if p.cfg.onPanic != nil {
				p.cfg.onPanic(id, r)
			}
			j.result <- Result{Err: corerr.New(corerr.ThreadPanic, "threadpool: task panicked: %v", r)}
		}
	}()

	v, err := j.task(j.ctx)
	j.result <- Result{Value: v, Err: err}
}
