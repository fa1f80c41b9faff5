// Package parallel provides the goroutine pool used by the data-parallel
// pipeline stages.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool is a pool of goroutines for data-parallel splat processing.
//
// Work is distributed across per-worker queues; a worker with an empty
// queue steals from the others, which balances load when some index
// ranges are slower than others (e.g. dense splat clusters).
//
// Thread safety: Pool is safe for concurrent use.
type Pool struct {
	// workers is the number of worker goroutines.
	workers int

	// queues holds per-worker work queues.
	queues []chan func()

	// done signals workers to stop.
	done chan struct{}

	// wg waits for all workers to finish.
	wg sync.WaitGroup

	// running indicates whether the pool is accepting work.
	running atomic.Bool

	// closeOnce guards Close.
	closeOnce sync.Once
}

// NewPool creates a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	queueSize := workers * 4
	if queueSize < 8 {
		queueSize = 8
	}

	p := &Pool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), queueSize)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int { return p.workers }

// worker is the main loop for each worker goroutine.
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	mine := p.queues[id]
	for {
		select {
		case <-p.done:
			p.drain(mine)
			return

		case work := <-mine:
			if work != nil {
				work()
			}

		default:
			if stolen := p.steal(id); stolen != nil {
				stolen()
			} else {
				select {
				case <-p.done:
					p.drain(mine)
					return
				case work := <-mine:
					if work != nil {
						work()
					}
				}
			}
		}
	}
}

// drain executes all remaining work in a queue.
func (p *Pool) drain(queue chan func()) {
	for {
		select {
		case work := <-queue:
			if work != nil {
				work()
			}
		default:
			return
		}
	}
}

// steal attempts to take work from another worker's queue.
func (p *Pool) steal(myID int) func() {
	for i := range p.workers {
		if i == myID {
			continue
		}
		select {
		case work := <-p.queues[i]:
			return work
		default:
		}
	}
	return nil
}

// ForEach partitions [0, n) into chunks of at most grain indices,
// processes every chunk as fn(lo, hi) on the pool, and returns only
// after all chunks have completed. This is the phase barrier between
// pipeline stages: no caller observes partial results.
//
// If grain <= 0 a grain is chosen so each worker gets a few chunks.
// n <= grain (or a closed pool) runs inline on the calling goroutine.
func (p *Pool) ForEach(n, grain int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	if grain <= 0 {
		grain = n / (p.workers * 4)
		if grain < 256 {
			grain = 256
		}
	}
	if n <= grain || !p.running.Load() {
		fn(0, n)
		return
	}

	chunks := (n + grain - 1) / grain

	var barrier sync.WaitGroup
	barrier.Add(chunks)
	for c := range chunks {
		lo := c * grain
		hi := min(lo+grain, n)
		task := func() {
			defer barrier.Done()
			fn(lo, hi)
		}
		select {
		case p.queues[c%p.workers] <- task:
		case <-p.done:
			// Pool is closing; run inline so the barrier still opens.
			task()
		}
	}
	barrier.Wait()
}

// Close stops the workers after draining queued work. Pending ForEach
// calls still complete. Close is idempotent.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.running.Store(false)
		close(p.done)
		p.wg.Wait()
	})
}
