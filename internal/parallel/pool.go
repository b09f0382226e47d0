// Package parallel runs CPU compute dispatches across a fixed set of
// goroutines.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool executes workgroups of a CPU dispatch.
//
// Every worker owns a queue and steals from its siblings once its own
// queue runs dry, so uneven workgroups (edge tiles, solid regions) still
// balance. ExecuteAll is the only way work enters the pool and it returns
// once every item finished, which gives each dispatch a full barrier.
//
// WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers    int
	workQueues []chan func()
	done       chan struct{}
	wg         sync.WaitGroup
	running    atomic.Bool
}

// NewWorkerPool starts a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	queueSize := max(workers*4, 8)

	p := &WorkerPool{
		workers:    workers,
		workQueues: make([]chan func(), workers),
		done:       make(chan struct{}),
	}
	for i := range workers {
		p.workQueues[i] = make(chan func(), queueSize)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	own := p.workQueues[id]

	for {
		select {
		case <-p.done:
			p.drain(own)
			return
		case work := <-own:
			work()
		default:
			if stolen := p.steal(id); stolen != nil {
				stolen()
				continue
			}
			select {
			case <-p.done:
				p.drain(own)
				return
			case work := <-own:
				work()
			}
		}
	}
}

func (p *WorkerPool) drain(queue chan func()) {
	for {
		select {
		case work := <-queue:
			work()
		default:
			return
		}
	}
}

func (p *WorkerPool) steal(id int) func() {
	for i := range p.workers {
		if i == id {
			continue
		}
		select {
		case work := <-p.workQueues[i]:
			return work
		default:
		}
	}
	return nil
}

// ExecuteAll distributes work round-robin and blocks until all of it has
// run. A single item runs on the calling goroutine. On a closed pool the
// work runs serially on the caller.
func (p *WorkerPool) ExecuteAll(work []func()) {
	switch {
	case len(work) == 0:
		return
	case len(work) == 1 || !p.running.Load():
		for _, fn := range work {
			fn()
		}
		return
	}

	var pending sync.WaitGroup
	pending.Add(len(work))
	for i, fn := range work {
		wrapped := func() {
			defer pending.Done()
			fn()
		}
		select {
		case p.workQueues[i%p.workers] <- wrapped:
		case <-p.done:
			wrapped()
		}
	}
	pending.Wait()
}

// ForEach runs fn(i) for i in [0, n) across the pool, in chunks of at
// least grain indices.
func (p *WorkerPool) ForEach(n, grain int, fn func(i int)) {
	if n <= 0 {
		return
	}
	grain = max(grain, 1)
	work := make([]func(), 0, (n+grain-1)/grain)
	for start := 0; start < n; start += grain {
		end := min(start+grain, n)
		work = append(work, func() {
			for i := start; i < end; i++ {
				fn(i)
			}
		})
	}
	p.ExecuteAll(work)
}

// Close stops the workers after the queued work drains. It is safe to
// call more than once.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning reports whether the pool accepts work.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}
