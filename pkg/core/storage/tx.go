package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrTxFinished is returned on attempts to finish a transaction twice.
var ErrTxFinished = errors.New("transaction is already finished")

type (
	// Tx is a storage transaction: a unit of work whose changes are cached in
	// memory and either persisted into the lower Store at once (Commit) or
	// dropped (Rollback). Code that wants to learn the outcome registers hooks
	// with OnOutcome, exactly one hook of every pair is called exactly once.
	Tx struct {
		*MemCachedStore

		lock  sync.Mutex
		state txState
		hooks []outcomeHook
	}

	outcomeHook struct {
		onCommit   func()
		onRollback func()
	}

	txState byte

	txContextKey struct{}
)

const (
	txActive txState = iota
	txCommitted
	txRolledBack
)

// Begin starts a new transaction over the given store.
func Begin(lower Store) *Tx {
	return &Tx{MemCachedStore: NewMemCachedStore(lower)}
}

// Active tells whether the transaction is still open.
func (t *Tx) Active() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.state == txActive
}

// OnOutcome registers a pair of hooks to be called when the transaction is
// finished. Either of them can be nil. For a transaction that is already
// finished the matching hook is called immediately.
func (t *Tx) OnOutcome(onCommit, onRollback func()) {
	t.lock.Lock()
	state := t.state
	if state == txActive {
		t.hooks = append(t.hooks, outcomeHook{onCommit: onCommit, onRollback: onRollback})
	}
	t.lock.Unlock()

	switch state {
	case txCommitted:
		call(onCommit)
	case txRolledBack:
		call(onRollback)
	}
}

// Commit persists all changes into the lower store and then runs commit hooks
// in registration order. If persisting fails the transaction is rolled back
// and the error is returned.
func (t *Tx) Commit() error {
	t.lock.Lock()
	if t.state != txActive {
		t.lock.Unlock()
		return ErrTxFinished
	}
	_, err := t.Persist()
	if err != nil {
		t.MemCachedStore.Discard()
		t.state = txRolledBack
	} else {
		t.state = txCommitted
	}
	hooks := t.hooks
	t.hooks = nil
	t.lock.Unlock()

	for _, h := range hooks {
		if err != nil {
			call(h.onRollback)
		} else {
			call(h.onCommit)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to persist transaction: %w", err)
	}
	return nil
}

// Rollback drops all changes and runs rollback hooks. Rolling back a finished
// transaction is a no-op.
func (t *Tx) Rollback() {
	t.lock.Lock()
	if t.state != txActive {
		t.lock.Unlock()
		return
	}
	t.MemCachedStore.Discard()
	t.state = txRolledBack
	hooks := t.hooks
	t.hooks = nil
	t.lock.Unlock()

	for _, h := range hooks {
		call(h.onRollback)
	}
}

// Close rolls the transaction back if it's still active, the lower store is
// not closed.
func (t *Tx) Close() error {
	t.Rollback()
	return nil
}

func call(f func()) {
	if f != nil {
		f()
	}
}

// WithTx returns a copy of ctx carrying the given transaction.
func WithTx(ctx context.Context, tx *Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TxFromContext returns the active transaction carried by ctx if any.
func TxFromContext(ctx context.Context) (*Tx, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(txContextKey{}).(*Tx)
	if !ok || tx == nil || !tx.Active() {
		return nil, false
	}
	return tx, true
}
