package notifier

import (
	"context"

	"github.com/nspcc-dev/eventbridge/pkg/core/storage"
)

type (
	// Transaction is a unit of work with a yet unknown outcome. Exactly one of
	// the callbacks passed to OnOutcome is called exactly once, immediately
	// if the outcome is already known.
	Transaction interface {
		OnOutcome(onCommit, onRollback func())
	}

	// Boundary tells whether the code running with the given context is
	// inside a storage transaction.
	Boundary interface {
		Current(ctx context.Context) (Transaction, bool)
	}

	// BoundaryFunc is an adapter to use ordinary functions as Boundary.
	BoundaryFunc func(ctx context.Context) (Transaction, bool)
)

// Current implements the Boundary interface.
func (f BoundaryFunc) Current(ctx context.Context) (Transaction, bool) {
	return f(ctx)
}

// StorageBoundary finds storage transactions opened with storage.WithTx.
var StorageBoundary = BoundaryFunc(func(ctx context.Context) (Transaction, bool) {
	tx, ok := storage.TxFromContext(ctx)
	if !ok {
		return nil, false
	}
	return tx, true
})

// noBoundary never reports a transaction.
var noBoundary = BoundaryFunc(func(context.Context) (Transaction, bool) { return nil, false })
