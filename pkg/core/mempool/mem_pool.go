/*
Package mempool implements the transaction processor of the node: the pool of
unconfirmed transactions. Every change of the pool fires a TxEvent carrying the
batch of affected transactions. Listeners get the caller's context, so events
produced inside a storage transaction (like block confirmation) can be bound to
its outcome.
*/
package mempool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/nspcc-dev/eventbridge/pkg/core/event"
	"github.com/nspcc-dev/eventbridge/pkg/core/transaction"
	"go.uber.org/zap"
)

var (
	// ErrDup is returned when the transaction being added is already present
	// in the memory pool.
	ErrDup = errors.New("already in the memory pool")
	// ErrOOM is returned when the transaction just doesn't fit in the memory
	// pool because of its capacity constraints.
	ErrOOM = errors.New("out of memory")
	// ErrNotPhased is returned when releasing or rejecting a transaction that
	// is not held as phased.
	ErrNotPhased = errors.New("not a phased transaction")
)

// TxEvent is the type of transaction processor event.
type TxEvent byte

// Transaction events fired by Pool.
const (
	AddedConfirmed TxEvent = iota
	AddedUnconfirmed
	RejectPhased
	ReleasePhased
	RemovedUnconfirmed
)

var txEventNames = [...]string{
	AddedConfirmed:     "AddedConfirmed",
	AddedUnconfirmed:   "AddedUnconfirmed",
	RejectPhased:       "RejectPhased",
	ReleasePhased:      "ReleasePhased",
	RemovedUnconfirmed: "RemovedUnconfirmed",
}

// TxEvents lists all transaction events in declaration order.
func TxEvents() []TxEvent {
	res := make([]TxEvent, len(txEventNames))
	for i := range res {
		res[i] = TxEvent(i)
	}
	return res
}

// String implements the fmt.Stringer interface.
func (e TxEvent) String() string {
	if int(e) < len(txEventNames) {
		return txEventNames[e]
	}
	return "unknown"
}

// item represents a transaction in the the Memory pool.
type item struct {
	txn    *transaction.Transaction
	phased bool
}

// Pool stores the unconfirmed transactions.
type Pool struct {
	lock     sync.RWMutex
	items    map[uint64]*item
	capacity int

	listeners *event.Listeners[TxEvent, []*transaction.Transaction]
	log       *zap.Logger

	updateMetricsCb func(int)
}

// New returns a new Pool that holds at most capacity transactions, zero
// capacity means no limit.
func New(capacity int, log *zap.Logger) *Pool {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{
		items:     make(map[uint64]*item),
		capacity:  capacity,
		listeners: event.NewListeners[TxEvent, []*transaction.Transaction](log),
		log:       log,
	}
}

// SetUpdateMetricsCb sets a callback invoked with the pool size on every
// change.
func (mp *Pool) SetUpdateMetricsCb(f func(int)) {
	mp.lock.Lock()
	mp.updateMetricsCb = f
	mp.lock.Unlock()
}

// AddListener registers l for the given event.
func (mp *Pool) AddListener(l event.Listener[[]*transaction.Transaction], e TxEvent) bool {
	return mp.listeners.AddListener(l, e)
}

// RemoveListener unregisters l from the given event.
func (mp *Pool) RemoveListener(l event.Listener[[]*transaction.Transaction], e TxEvent) bool {
	return mp.listeners.RemoveListener(l, e)
}

// Count returns the total number of uncofirmed transactions.
func (mp *Pool) Count() int {
	mp.lock.RLock()
	defer mp.lock.RUnlock()
	return len(mp.items)
}

// ContainsKey checks if the transaction with the given id is in the Pool.
func (mp *Pool) ContainsKey(id uint64) bool {
	mp.lock.RLock()
	defer mp.lock.RUnlock()
	_, ok := mp.items[id]
	return ok
}

// Add validates and adds the transaction to the pool. Phased transactions are
// held aside until released.
func (mp *Pool) Add(ctx context.Context, tx *transaction.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	mp.lock.Lock()
	if _, ok := mp.items[tx.ID]; ok {
		mp.lock.Unlock()
		return ErrDup
	}
	if mp.capacity > 0 && len(mp.items) >= mp.capacity {
		mp.lock.Unlock()
		return ErrOOM
	}
	mp.items[tx.ID] = &item{txn: tx, phased: tx.Phased}
	mp.updateMetrics()
	mp.lock.Unlock()

	mp.fire(ctx, AddedUnconfirmed, []*transaction.Transaction{tx})
	return nil
}

// Remove drops transactions with the given ids from the pool. Unknown ids are
// skipped. The removed transactions are returned.
func (mp *Pool) Remove(ctx context.Context, ids ...uint64) []*transaction.Transaction {
	removed := mp.take(ids, func(*item) bool { return true })
	mp.fire(ctx, RemovedUnconfirmed, removed)
	return removed
}

// ReleasePhased makes phased transactions available for block generation.
func (mp *Pool) ReleasePhased(ctx context.Context, ids ...uint64) ([]*transaction.Transaction, error) {
	mp.lock.Lock()
	var released []*transaction.Transaction
	for _, id := range ids {
		it, ok := mp.items[id]
		if !ok || !it.phased {
			mp.lock.Unlock()
			return nil, fmt.Errorf("%w: %d", ErrNotPhased, id)
		}
	}
	for _, id := range ids {
		it := mp.items[id]
		it.phased = false
		released = append(released, it.txn)
	}
	mp.lock.Unlock()

	mp.fire(ctx, ReleasePhased, released)
	return released, nil
}

// RejectPhased drops phased transactions from the pool.
func (mp *Pool) RejectPhased(ctx context.Context, ids ...uint64) ([]*transaction.Transaction, error) {
	mp.lock.RLock()
	for _, id := range ids {
		it, ok := mp.items[id]
		if !ok || !it.phased {
			mp.lock.RUnlock()
			return nil, fmt.Errorf("%w: %d", ErrNotPhased, id)
		}
	}
	mp.lock.RUnlock()

	rejected := mp.take(ids, func(it *item) bool { return it.phased })
	mp.fire(ctx, RejectPhased, rejected)
	return rejected, nil
}

// Confirm is called by the block processor for transactions included into a
// block. They're dropped from the pool and AddedConfirmed is fired for the
// whole batch, it's supposed to happen inside the block storage transaction.
func (mp *Pool) Confirm(ctx context.Context, txes []*transaction.Transaction) {
	ids := transaction.IDs(txes)
	mp.take(ids, func(*item) bool { return true })
	mp.fire(ctx, AddedConfirmed, txes)
}

// Restore puts transactions back into the pool without firing any events,
// it reverts Confirm for a block that failed to be stored.
func (mp *Pool) Restore(txes []*transaction.Transaction) {
	mp.lock.Lock()
	for _, tx := range txes {
		if _, ok := mp.items[tx.ID]; !ok {
			mp.items[tx.ID] = &item{txn: tx}
		}
	}
	mp.updateMetrics()
	mp.lock.Unlock()
}

// Verified returns transactions ready for block inclusion, the ones paying
// higher fees first.
func (mp *Pool) Verified() []*transaction.Transaction {
	mp.lock.RLock()
	res := make([]*transaction.Transaction, 0, len(mp.items))
	for _, it := range mp.items {
		if !it.phased {
			res = append(res, it.txn)
		}
	}
	mp.lock.RUnlock()
	sort.Slice(res, func(i, j int) bool {
		if res[i].Fee != res[j].Fee {
			return res[i].Fee > res[j].Fee
		}
		return res[i].ID < res[j].ID
	})
	return res
}

func (mp *Pool) take(ids []uint64, cond func(*item) bool) []*transaction.Transaction {
	mp.lock.Lock()
	defer mp.lock.Unlock()
	var res []*transaction.Transaction
	for _, id := range ids {
		it, ok := mp.items[id]
		if !ok || !cond(it) {
			continue
		}
		delete(mp.items, id)
		res = append(res, it.txn)
	}
	if len(res) != 0 {
		mp.updateMetrics()
	}
	return res
}

// updateMetrics is called with the lock held.
func (mp *Pool) updateMetrics() {
	if mp.updateMetricsCb != nil {
		mp.updateMetricsCb(len(mp.items))
	}
}

func (mp *Pool) fire(ctx context.Context, e TxEvent, txes []*transaction.Transaction) {
	if len(txes) == 0 {
		return
	}
	mp.log.Debug("mempool event", zap.Stringer("event", e), zap.Int("count", len(txes)))
	mp.listeners.Notify(ctx, e, txes)
}
