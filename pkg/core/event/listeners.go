/*
Package event contains a generic listener registry shared by all node event
sources (peers, blocks, transactions and ledger). Sources keep one Listeners
instance per payload type and notify it synchronously from the goroutine that
produced the event, passing the producer's context along so that listeners can
find the storage transaction the event belongs to.
*/
package event

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Listener is a single event consumer. Listeners are compared by identity, so
// pointer receivers are expected.
type Listener[P any] interface {
	Notify(ctx context.Context, payload P)
}

// Listeners is a set of listeners grouped by event type E with payload P.
type Listeners[E comparable, P any] struct {
	lock sync.RWMutex
	m    map[E][]Listener[P]
	log  *zap.Logger
}

// NewListeners creates an empty listener registry.
func NewListeners[E comparable, P any](log *zap.Logger) *Listeners[E, P] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Listeners[E, P]{
		m:   make(map[E][]Listener[P]),
		log: log,
	}
}

// AddListener registers l for the given event. It returns false if l is
// already registered for it.
func (ls *Listeners[E, P]) AddListener(l Listener[P], e E) bool {
	ls.lock.Lock()
	defer ls.lock.Unlock()
	for _, have := range ls.m[e] {
		if have == l {
			return false
		}
	}
	ls.m[e] = append(ls.m[e], l)
	return true
}

// RemoveListener unregisters l from the given event. Removing a listener that
// is not registered is a no-op returning false.
func (ls *Listeners[E, P]) RemoveListener(l Listener[P], e E) bool {
	ls.lock.Lock()
	defer ls.lock.Unlock()
	list := ls.m[e]
	for i, have := range list {
		if have != l {
			continue
		}
		// Copy-on-write, snapshots taken by Notify stay intact.
		nl := make([]Listener[P], 0, len(list)-1)
		nl = append(nl, list[:i]...)
		nl = append(nl, list[i+1:]...)
		if len(nl) == 0 {
			delete(ls.m, e)
		} else {
			ls.m[e] = nl
		}
		return true
	}
	return false
}

// Count returns the number of listeners registered for the event.
func (ls *Listeners[E, P]) Count(e E) int {
	ls.lock.RLock()
	defer ls.lock.RUnlock()
	return len(ls.m[e])
}

// Notify delivers payload to every listener registered for e. Listeners are
// called without the registry lock held, a panicking listener is logged and
// skipped.
func (ls *Listeners[E, P]) Notify(ctx context.Context, e E, payload P) {
	ls.lock.RLock()
	list := ls.m[e]
	ls.lock.RUnlock()

	for _, l := range list {
		ls.call(ctx, l, e, payload)
	}
}

func (ls *Listeners[E, P]) call(ctx context.Context, l Listener[P], e E, payload P) {
	defer func() {
		if r := recover(); r != nil {
			ls.log.Error("event listener failed",
				zap.String("event", fmt.Sprint(e)),
				zap.Any("panic", r))
		}
	}()
	l.Notify(ctx, payload)
}
