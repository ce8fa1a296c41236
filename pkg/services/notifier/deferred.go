package notifier

import (
	"sync"

	"go.uber.org/zap"
)

// deferred holds events produced inside storage transactions until the
// outcome of every transaction is known.
type deferred struct {
	lock sync.Mutex
	m    map[Transaction][]deferredEvent
	log  *zap.Logger
}

type deferredEvent struct {
	s  *Session
	ev PendingEvent
}

func newDeferred(log *zap.Logger) *deferred {
	return &deferred{
		m:   make(map[Transaction][]deferredEvent),
		log: log,
	}
}

// add binds the event to tx. Outcome callbacks are registered once per
// transaction, with the first event.
func (d *deferred) add(tx Transaction, s *Session, ev PendingEvent) {
	d.lock.Lock()
	list, known := d.m[tx]
	d.m[tx] = append(list, deferredEvent{s: s, ev: ev})
	d.lock.Unlock()

	if !known {
		tx.OnOutcome(func() { d.commit(tx) }, func() { d.rollback(tx) })
	}
}

func (d *deferred) take(tx Transaction) []deferredEvent {
	d.lock.Lock()
	defer d.lock.Unlock()
	list := d.m[tx]
	delete(d.m, tx)
	return list
}

// commit moves events into their sessions preserving production order.
func (d *deferred) commit(tx Transaction) {
	var (
		list     = d.take(tx)
		order    []*Session
		sessions = make(map[*Session][]PendingEvent)
	)
	for _, de := range list {
		if _, ok := sessions[de.s]; !ok {
			order = append(order, de.s)
		}
		sessions[de.s] = append(sessions[de.s], de.ev)
	}
	for _, s := range order {
		s.enqueue(sessions[s]...)
	}
}

func (d *deferred) rollback(tx Transaction) {
	list := d.take(tx)
	if len(list) == 0 {
		return
	}
	eventsDroppedOnRollback.Add(float64(len(list)))
	d.log.Debug("transaction rolled back, events dropped", zap.Int("count", len(list)))
}

// pending returns the number of transactions with undecided events.
func (d *deferred) pending() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return len(d.m)
}
