package notifier

import (
	"context"

	"github.com/nspcc-dev/eventbridge/pkg/core"
	"github.com/nspcc-dev/eventbridge/pkg/core/block"
	"github.com/nspcc-dev/eventbridge/pkg/core/event"
	"github.com/nspcc-dev/eventbridge/pkg/core/ledger"
	"github.com/nspcc-dev/eventbridge/pkg/core/mempool"
	"github.com/nspcc-dev/eventbridge/pkg/core/transaction"
	"github.com/nspcc-dev/eventbridge/pkg/encoding/address"
	"github.com/nspcc-dev/eventbridge/pkg/network"
	"go.uber.org/zap"
)

type (
	// PeerSource is the peer registry.
	PeerSource interface {
		AddListener(event.Listener[*network.Peer], network.PeerEvent) bool
		RemoveListener(event.Listener[*network.Peer], network.PeerEvent) bool
	}
	// BlockSource is the block processor.
	BlockSource interface {
		AddListener(event.Listener[*block.Block], core.BlockEvent) bool
		RemoveListener(event.Listener[*block.Block], core.BlockEvent) bool
	}
	// TransactionSource is the transaction processor.
	TransactionSource interface {
		AddListener(event.Listener[[]*transaction.Transaction], mempool.TxEvent) bool
		RemoveListener(event.Listener[[]*transaction.Transaction], mempool.TxEvent) bool
	}
	// LedgerSource is the account ledger.
	LedgerSource interface {
		AddListener(event.Listener[*ledger.Entry], ledger.EntryEvent) bool
		RemoveListener(event.Listener[*ledger.Entry], ledger.EntryEvent) bool
	}

	// Sources groups event sources of all families. A nil source makes
	// subscriptions to its family inert.
	Sources struct {
		Peers        PeerSource
		Blocks       BlockSource
		Transactions TransactionSource
		Ledger       LedgerSource
	}
)

// subscription binds one registration of a session to its source. attach and
// detach are called with the session lock held.
type subscription interface {
	registration() Registration
	attach()
	detach()
}

type subscriptionBase struct {
	reg      Registration
	s        *Session
	attached bool
}

func (b *subscriptionBase) registration() Registration {
	return b.reg
}

// dispatch passes the event built by mk to the session. Building and
// dispatching failures drop just this one event.
func (b *subscriptionBase) dispatch(ctx context.Context, self subscription, deferrable bool, mk func() (PendingEvent, bool)) {
	defer func() {
		if r := recover(); r != nil {
			b.s.log.Error("failed to dispatch event",
				zap.Stringer("kind", b.reg.Kind),
				zap.Any("panic", r))
		}
	}()
	ev, ok := mk()
	if !ok {
		return
	}
	b.s.dispatch(ctx, self, ev, deferrable)
}

type peerSubscription struct {
	subscriptionBase
	src PeerSource
}

type blockSubscription struct {
	subscriptionBase
	src BlockSource
}

type transactionSubscription struct {
	subscriptionBase
	src TransactionSource
}

type ledgerSubscription struct {
	subscriptionBase
	src LedgerSource
}

func newSubscription(s *Session, src Sources, reg Registration) subscription {
	base := subscriptionBase{reg: reg, s: s}
	switch reg.Kind.Family() {
	case PeerFamily:
		return &peerSubscription{subscriptionBase: base, src: src.Peers}
	case BlockFamily:
		return &blockSubscription{subscriptionBase: base, src: src.Blocks}
	case TransactionFamily:
		return &transactionSubscription{subscriptionBase: base, src: src.Transactions}
	default:
		return &ledgerSubscription{subscriptionBase: base, src: src.Ledger}
	}
}

func (p *peerSubscription) attach() {
	if !p.attached && p.src != nil {
		p.attached = p.src.AddListener(p, network.PeerEvent(p.reg.Kind.code))
	}
}

func (p *peerSubscription) detach() {
	if p.attached {
		p.src.RemoveListener(p, network.PeerEvent(p.reg.Kind.code))
		p.attached = false
	}
}

// Notify implements the event.Listener interface.
func (p *peerSubscription) Notify(ctx context.Context, peer *network.Peer) {
	p.dispatch(ctx, p, false, func() (PendingEvent, bool) {
		return singleEvent(p.reg.Kind.String(), peer.ID), true
	})
}

func (b *blockSubscription) attach() {
	if !b.attached && b.src != nil {
		b.attached = b.src.AddListener(b, core.BlockEvent(b.reg.Kind.code))
	}
}

func (b *blockSubscription) detach() {
	if b.attached {
		b.src.RemoveListener(b, core.BlockEvent(b.reg.Kind.code))
		b.attached = false
	}
}

// Notify implements the event.Listener interface.
func (b *blockSubscription) Notify(ctx context.Context, blk *block.Block) {
	b.dispatch(ctx, b, false, func() (PendingEvent, bool) {
		return singleEvent(b.reg.Kind.String(), blk.ID), true
	})
}

func (t *transactionSubscription) attach() {
	if !t.attached && t.src != nil {
		t.attached = t.src.AddListener(t, mempool.TxEvent(t.reg.Kind.code))
	}
}

func (t *transactionSubscription) detach() {
	if t.attached {
		t.src.RemoveListener(t, mempool.TxEvent(t.reg.Kind.code))
		t.attached = false
	}
}

// Notify implements the event.Listener interface.
func (t *transactionSubscription) Notify(ctx context.Context, txes []*transaction.Transaction) {
	t.dispatch(ctx, t, true, func() (PendingEvent, bool) {
		if len(txes) == 0 {
			return PendingEvent{}, false
		}
		return batchEvent(t.reg.Kind.String(), transaction.IDs(txes)), true
	})
}

func (l *ledgerSubscription) attach() {
	if !l.attached && l.src != nil {
		l.attached = l.src.AddListener(l, ledger.EntryEvent(l.reg.Kind.code))
	}
}

func (l *ledgerSubscription) detach() {
	if l.attached {
		l.src.RemoveListener(l, ledger.EntryEvent(l.reg.Kind.code))
		l.attached = false
	}
}

// Notify implements the event.Listener interface.
func (l *ledgerSubscription) Notify(ctx context.Context, e *ledger.Entry) {
	l.dispatch(ctx, l, true, func() (PendingEvent, bool) {
		if l.reg.Account != 0 && l.reg.Account != e.Account {
			return PendingEvent{}, false
		}
		return singleEvent(l.reg.Kind.String()+"."+address.AccountToString(e.Account), e.ID), true
	})
}
