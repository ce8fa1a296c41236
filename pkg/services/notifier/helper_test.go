package notifier

import (
	"testing"
	"time"

	"github.com/nspcc-dev/eventbridge/pkg/config"
	"github.com/nspcc-dev/eventbridge/pkg/core"
	"github.com/nspcc-dev/eventbridge/pkg/core/ledger"
	"github.com/nspcc-dev/eventbridge/pkg/core/mempool"
	"github.com/nspcc-dev/eventbridge/pkg/core/storage"
	"github.com/nspcc-dev/eventbridge/pkg/network"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/zap/zaptest"
)

type handleResult struct {
	events []PendingEvent
	err    error
}

// testHandle is a WaitHandle the way transports implement it: completion and
// expiry race for a single flag.
type testHandle struct {
	done atomic.Bool
	ch   chan handleResult
}

func newTestHandle() *testHandle {
	return &testHandle{ch: make(chan handleResult, 1)}
}

func (h *testHandle) Complete(events []PendingEvent, err error) bool {
	if !h.done.CompareAndSwap(false, true) {
		return false
	}
	h.ch <- handleResult{events: events, err: err}
	return true
}

func (h *testHandle) Live() bool {
	return !h.done.Load()
}

func (h *testHandle) expire() bool {
	return h.done.CompareAndSwap(false, true)
}

// fataler is satisfied by both *testing.T and *rapid.T.
type fataler interface {
	Fatalf(format string, args ...any)
}

func (h *testHandle) result(t fataler) handleResult {
	select {
	case r := <-h.ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatalf("wait handle was not completed")
	}
	return handleResult{}
}

func (h *testHandle) requireNotCompleted(t fataler) {
	select {
	case r := <-h.ch:
		t.Fatalf("unexpected completion: %v", r)
	case <-time.After(50 * time.Millisecond):
	}
}

type testNode struct {
	store  *storage.MemoryStore
	peers  *network.Registry
	pool   *mempool.Pool
	ledger *ledger.Ledger
	chain  *core.Blockchain
}

func newTestNode(t testing.TB) *testNode {
	log := zaptest.NewLogger(t)
	n := &testNode{
		store: storage.NewMemoryStore(),
		peers: network.NewRegistry(log),
		pool:  mempool.New(0, log),
	}
	n.ledger = ledger.New(n.store, log)
	var err error
	n.chain, err = core.NewBlockchain(n.store, n.pool, n.ledger, log)
	require.NoError(t, err)
	return n
}

func (n *testNode) sources() Sources {
	return Sources{
		Peers:        n.peers,
		Blocks:       n.chain,
		Transactions: n.pool,
		Ledger:       n.ledger,
	}
}

func testConfig() config.Notifier {
	return config.Notifier{
		DefaultWaitTimeout: time.Second,
		MaxWaitTimeout:     5 * time.Second,
		IdleTimeout:        time.Minute,
		MaxSessions:        8,
		Workers:            2,
		QueueSize:          16,
	}
}

func newTestService(t testing.TB, cfg config.Notifier) (*Service, *testNode) {
	n := newTestNode(t)
	reg := NewRegistry(cfg, n.sources(), StorageBoundary, zaptest.NewLogger(t))
	t.Cleanup(reg.Shutdown)
	return NewService(reg, nil), n
}

// waitEvents performs a wait expecting it to end with events.
func waitEvents(t testing.TB, svc *Service, addr string) []PendingEvent {
	h := newTestHandle()
	events, parked, err := svc.Wait(addr, h)
	require.NoError(t, err)
	if !parked {
		return events
	}
	r := h.result(t)
	require.NoError(t, r.err)
	return r.events
}

func names(events []PendingEvent) []string {
	res := make([]string, len(events))
	for i, e := range events {
		res[i] = e.Name
	}
	return res
}
