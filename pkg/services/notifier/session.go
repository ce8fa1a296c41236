package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// WaitHandle is a suspended wait request owned by the transport. Complete
// must not block and must be safe to call from any goroutine, it returns
// false if the handle was already completed (including by its deadline).
type WaitHandle interface {
	Complete(events []PendingEvent, err error) bool
	Live() bool
}

// Session is the state of a single subscriber address: its subscriptions,
// queued events and outstanding waits. All of it is guarded by one mutex.
type Session struct {
	id      uuid.UUID
	address string
	reg     *Registry
	log     *zap.Logger

	lock         sync.Mutex
	subs         map[Registration]subscription
	pending      []PendingEvent
	waiters      []WaitHandle
	deactivated  bool
	lastActivity time.Time

	// flushQueued is set while a flush task is scheduled.
	flushQueued atomic.Bool
}

func newSession(reg *Registry, address string) *Session {
	id := uuid.New()
	return &Session{
		id:           id,
		address:      address,
		reg:          reg,
		log:          reg.log.With(zap.String("address", address), zap.Stringer("session", id)),
		subs:         make(map[Registration]subscription),
		lastActivity: reg.now(),
	}
}

// ID returns the unique session identifier. It tags session log entries and
// tells a superseding session from the one it replaced for the same address.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Address returns the subscriber address.
func (s *Session) Address() string {
	return s.address
}

// Registrations returns the current set of registrations.
func (s *Session) Registrations() []Registration {
	s.lock.Lock()
	defer s.lock.Unlock()
	res := make([]Registration, 0, len(s.subs))
	for r := range s.subs {
		res = append(res, r)
	}
	return res
}

// Deactivated tells whether the session was torn down.
func (s *Session) Deactivated() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.deactivated
}

// touch is called with the lock held.
func (s *Session) touch() {
	s.lastActivity = s.reg.now()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.lock.Lock()
	defer s.lock.Unlock()
	return now.Sub(s.lastActivity)
}

func (s *Session) subscribe(regs []Registration) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.deactivated {
		return ErrSessionDeactivated
	}
	s.touch()
	for _, r := range regs {
		r = r.normalize()
		if _, ok := s.subs[r]; ok {
			continue
		}
		if r.Account == 0 {
			for have, sub := range s.subs {
				if have.Kind == r.Kind {
					sub.detach()
					delete(s.subs, have)
				}
			}
		} else if _, ok := s.subs[Registration{Kind: r.Kind}]; ok {
			continue
		}
		sub := newSubscription(s, s.reg.sources, r)
		sub.attach()
		s.subs[r] = sub
	}
	return nil
}

func (s *Session) unsubscribe(regs []Registration) error {
	s.lock.Lock()
	if s.deactivated {
		s.lock.Unlock()
		return ErrSessionDeactivated
	}
	s.touch()
	for _, r := range regs {
		r = r.normalize()
		if r.Account != 0 {
			if sub, ok := s.subs[r]; ok {
				sub.detach()
				delete(s.subs, r)
			}
			continue
		}
		for have, sub := range s.subs {
			if have.Kind == r.Kind {
				sub.detach()
				delete(s.subs, have)
			}
		}
	}
	empty := len(s.subs) == 0
	s.lock.Unlock()

	if empty {
		s.deactivate()
	}
	return nil
}

// dispatch routes an event produced by sub. Deferrable events produced within
// a storage transaction are held until its outcome is known.
func (s *Session) dispatch(ctx context.Context, sub subscription, ev PendingEvent, deferrable bool) {
	s.lock.Lock()
	current := !s.deactivated && s.subs[sub.registration()] == sub
	s.lock.Unlock()
	if !current {
		return
	}
	if deferrable {
		if tx, ok := s.reg.boundary.Current(ctx); ok {
			s.reg.deferred.add(tx, s, ev)
			return
		}
	}
	s.enqueue(ev)
}

func (s *Session) enqueue(events ...PendingEvent) {
	if len(events) == 0 {
		return
	}
	s.lock.Lock()
	if s.deactivated {
		s.lock.Unlock()
		return
	}
	s.pending = append(s.pending, events...)
	hasWaiter := len(s.waiters) != 0
	s.lock.Unlock()

	eventsEnqueued.Add(float64(len(events)))
	if hasWaiter && s.flushQueued.CompareAndSwap(false, true) {
		s.reg.pool.submit(s.flush)
	}
}

// flush completes the oldest live waiter with everything queued.
func (s *Session) flush() {
	s.flushQueued.Store(false)

	s.lock.Lock()
	defer s.lock.Unlock()
	if len(s.pending) != 0 && s.completeOldest(s.pending, nil) {
		s.pending = nil
		flushes.Inc()
	}
}

// completeOldest is called with the lock held. Handles that are not live or
// refuse completion are dropped.
func (s *Session) completeOldest(events []PendingEvent, err error) bool {
	for len(s.waiters) != 0 {
		h := s.waiters[0]
		s.waiters[0] = nil
		s.waiters = s.waiters[1:]
		if h.Live() && h.Complete(events, err) {
			return true
		}
	}
	return false
}

// wait returns queued events at once if there are any, otherwise it parks h
// (parked is true then) aborting any previously parked handle.
func (s *Session) wait(h WaitHandle) (events []PendingEvent, parked bool, err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.deactivated {
		return nil, false, ErrSessionDeactivated
	}
	s.touch()
	if len(s.pending) != 0 {
		events = s.pending
		s.pending = nil
		return events, false, nil
	}
	for _, old := range s.waiters {
		s.reg.pool.submit(func() { old.Complete(nil, nil) })
	}
	s.waiters = append(s.waiters[:0], h)
	waitsParked.Inc()
	return nil, true, nil
}

// forget drops the reference to h, the transport calls it once the handle
// expires.
func (s *Session) forget(h WaitHandle) {
	s.lock.Lock()
	defer s.lock.Unlock()
	for i, w := range s.waiters {
		if w == h {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return
		}
	}
}

// deactivate tears the session down: the oldest waiter gets whatever is
// queued, the others get nothing, all subscriptions are detached.
func (s *Session) deactivate() {
	s.deactivateWith(nil)
}

// deactivateWith fails all waiters with err if it's not nil.
func (s *Session) deactivateWith(err error) {
	s.lock.Lock()
	if s.deactivated {
		s.lock.Unlock()
		return
	}
	s.deactivated = true
	for r, sub := range s.subs {
		sub.detach()
		delete(s.subs, r)
	}
	if err != nil {
		for len(s.waiters) != 0 {
			s.completeOldest(nil, err)
		}
	} else {
		s.completeOldest(s.pending, nil)
		for len(s.waiters) != 0 {
			s.completeOldest(nil, nil)
		}
	}
	s.pending = nil
	s.lock.Unlock()

	s.log.Debug("session deactivated")
	s.reg.remove(s.address, s)
}
