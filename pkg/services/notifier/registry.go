package notifier

import (
	"sync"
	"time"

	"github.com/nspcc-dev/eventbridge/pkg/config"
	"go.uber.org/zap"
)

// Registry owns all sessions, one per subscriber address, and reaps the idle
// ones.
type Registry struct {
	lock     sync.RWMutex
	sessions map[string]*Session
	closed   bool

	cfg      config.Notifier
	sources  Sources
	boundary Boundary
	deferred *deferred
	pool     *pool
	log      *zap.Logger
	now      func() time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	quit      chan struct{}
	done      chan struct{}
}

// NewRegistry creates a session registry. Nil boundary means events are never
// bound to storage transactions.
func NewRegistry(cfg config.Notifier, sources Sources, boundary Boundary, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	if boundary == nil {
		boundary = noBoundary
	}
	cfg = cfg.WithDefaults()
	log = log.With(zap.String("service", "notifier"))
	return &Registry{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		sources:  sources,
		boundary: boundary,
		deferred: newDeferred(log),
		pool:     newPool(cfg.Workers, cfg.QueueSize, log),
		log:      log,
		now:      time.Now,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the idle session reaper.
func (r *Registry) Start() {
	r.startOnce.Do(func() {
		r.log.Info("starting notifier",
			zap.Duration("idle timeout", r.cfg.IdleTimeout),
			zap.Int("max sessions", r.cfg.MaxSessions))
		go r.reaper()
	})
}

// Shutdown stops the reaper, fails all outstanding waits with
// ErrShuttingDown and deactivates every session.
func (r *Registry) Shutdown() {
	r.stopOnce.Do(func() {
		close(r.quit)
		started := true
		r.startOnce.Do(func() { started = false })
		if started {
			<-r.done
		}

		r.lock.Lock()
		r.closed = true
		sessions := r.snapshot()
		r.lock.Unlock()

		for _, s := range sessions {
			s.deactivateWith(ErrShuttingDown)
		}
		r.pool.stop()
		r.log.Info("notifier stopped", zap.Int("sessions", len(sessions)))
	})
}

func (r *Registry) reaper() {
	defer close(r.done)
	t := time.NewTicker(r.cfg.IdleTimeout / 2)
	defer t.Stop()
	for {
		select {
		case <-r.quit:
			return
		case <-t.C:
			r.reap()
		}
	}
}

// reap deactivates sessions idle for longer than IdleTimeout.
func (r *Registry) reap() int {
	r.lock.RLock()
	sessions := r.snapshot()
	r.lock.RUnlock()

	var (
		now   = r.now()
		idle  = r.cfg.IdleTimeout
		count int
	)
	for _, s := range sessions {
		if s.idleSince(now) > idle {
			s.log.Debug("reaping idle session")
			s.deactivate()
			count++
		}
	}
	sessionsReaped.Add(float64(count))
	return count
}

// snapshot is called with the lock held.
func (r *Registry) snapshot() []*Session {
	res := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		res = append(res, s)
	}
	return res
}

// GetOrCreate returns the session of the address creating it if needed.
func (r *Registry) GetOrCreate(address string) (*Session, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if s, ok := r.sessions[address]; ok && !s.Deactivated() {
		return s, nil
	}
	return r.create(address)
}

// Replace installs a new session for the address, the previous one (if any)
// is deactivated.
func (r *Registry) Replace(address string) (*Session, error) {
	r.lock.Lock()
	old := r.sessions[address]
	s, err := r.create(address)
	r.lock.Unlock()
	if err != nil {
		return nil, err
	}
	if old != nil {
		old.log.Debug("session superseded", zap.Stringer("by", s.ID()))
		old.deactivate()
	}
	return s, nil
}

// create is called with the lock held.
func (r *Registry) create(address string) (*Session, error) {
	if r.closed {
		return nil, ErrShuttingDown
	}
	if _, ok := r.sessions[address]; !ok && r.cfg.MaxSessions > 0 && len(r.sessions) >= r.cfg.MaxSessions {
		return nil, ErrTooManySessions
	}
	s := newSession(r, address)
	r.sessions[address] = s
	sessionsGauge.Set(float64(len(r.sessions)))
	s.log.Debug("session created")
	return s, nil
}

// Get returns the session of the address.
func (r *Registry) Get(address string) (*Session, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	s, ok := r.sessions[address]
	return s, ok
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.sessions)
}

// remove drops the session if it's still the one registered for the address.
func (r *Registry) remove(address string, s *Session) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.sessions[address] == s {
		delete(r.sessions, address)
		sessionsGauge.Set(float64(len(r.sessions)))
	}
}
