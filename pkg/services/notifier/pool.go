package notifier

import (
	"sync"

	"go.uber.org/zap"
)

// pool is a fixed set of workers completing waits and flushing sessions.
// Submitting never blocks: when the queue is full the task gets its own
// goroutine and after stop tasks run in the caller's goroutine.
type pool struct {
	lock    sync.RWMutex
	stopped bool
	tasks   chan func()
	wg      sync.WaitGroup
	log     *zap.Logger
}

func newPool(workers, queue int, log *zap.Logger) *pool {
	p := &pool{
		tasks: make(chan func(), queue),
		log:   log,
	}
	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}
	return p
}

func (p *pool) worker() {
	defer p.wg.Done()
	for f := range p.tasks {
		p.run(f)
	}
}

func (p *pool) submit(f func()) {
	p.lock.RLock()
	if p.stopped {
		p.lock.RUnlock()
		p.run(f)
		return
	}
	select {
	case p.tasks <- f:
		p.lock.RUnlock()
	default:
		p.lock.RUnlock()
		go p.run(f)
	}
}

// stop drains the queue and waits for workers to finish.
func (p *pool) stop() {
	p.lock.Lock()
	if p.stopped {
		p.lock.Unlock()
		return
	}
	p.stopped = true
	close(p.tasks)
	p.lock.Unlock()
	p.wg.Wait()
}

func (p *pool) run(f func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("notifier task failed", zap.Any("panic", r))
		}
	}()
	f()
}
