// Package workerpool implements a bounded set of goroutines draining an
// unbounded FIFO task queue. The server uses one pool to host one reactor
// per accepted connection, the same way the teacher pins one goroutine per
// background loop in cmd/canopen/main.go, but generalized to a fixed-size,
// reusable pool instead of one-off goroutines.
package workerpool

import (
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
)

// ErrStopped is returned by Enqueue once the pool has been stopped.
var ErrStopped = errors.New("workerpool: submitted to a stopped pool")

// Task is a unit of work a worker runs to completion before picking up the
// next one.
type Task func()

// Pool is a fixed-size set of worker goroutines consuming tasks from a
// FIFO queue guarded by a mutex and condition variable.
type Pool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Task
	stopped  bool
	wg       sync.WaitGroup
	logger   *log.Entry
}

// New starts size workers. size is typically runtime.GOMAXPROCS(0) or
// runtime.NumCPU(), the hardware-parallelism default the spec calls for.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{logger: log.WithField("component", "workerpool")}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.stopped {
			p.cond.Wait()
		}
		if len(p.queue) == 0 && p.stopped {
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.runTask(task)
	}
}

func (p *Pool) runTask(task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithField("panic", r).Error("worker task panicked, worker continues")
		}
	}()
	task()
}

// Enqueue appends task to the FIFO and wakes exactly one waiting worker.
func (p *Pool) Enqueue(task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}
	p.queue = append(p.queue, task)
	p.cond.Signal()
	return nil
}

// Stop sets the shutdown flag, wakes every worker, and joins their
// goroutines. Already-queued tasks still run before workers exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
}
