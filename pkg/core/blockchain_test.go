package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nspcc-dev/eventbridge/pkg/core/block"
	"github.com/nspcc-dev/eventbridge/pkg/core/ledger"
	"github.com/nspcc-dev/eventbridge/pkg/core/mempool"
	"github.com/nspcc-dev/eventbridge/pkg/core/storage"
	"github.com/nspcc-dev/eventbridge/pkg/core/transaction"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

type flakyStore struct {
	*storage.MemoryStore
	fail atomic.Bool
}

func (s *flakyStore) PutChangeSet(puts map[string][]byte) error {
	if s.fail.Load() {
		return errors.New("write failed")
	}
	return s.MemoryStore.PutChangeSet(puts)
}

type blockRecorder struct {
	lock   sync.Mutex
	events []string
}

type blockListener struct {
	r *blockRecorder
	e BlockEvent
}

func (l *blockListener) Notify(_ context.Context, b *block.Block) {
	l.r.lock.Lock()
	l.r.events = append(l.r.events, l.e.String())
	l.r.lock.Unlock()
}

func newTestChain(t *testing.T, s storage.Store) (*Blockchain, *mempool.Pool, *ledger.Ledger, *blockRecorder) {
	pool := mempool.New(0, nil)
	l := ledger.New(s, nil)
	bc, err := NewBlockchain(s, pool, l, nil)
	require.NoError(t, err)
	rec := new(blockRecorder)
	for _, e := range BlockEvents() {
		require.True(t, bc.AddListener(&blockListener{r: rec, e: e}, e))
	}
	return bc, pool, l, rec
}

func TestPushPopBlock(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()
	bc, pool, l, rec := newTestChain(t, s)

	tx := &transaction.Transaction{ID: 10, Sender: 7, Recipient: 42, Amount: 100, Fee: 2}
	require.NoError(t, pool.Add(ctx, tx))

	b := &block.Block{ID: 123, Generator: 5, Transactions: []*transaction.Transaction{tx}}
	require.NoError(t, bc.PushBlock(ctx, b))
	require.EqualValues(t, 1, b.Height)
	require.EqualValues(t, 1, bc.BlockHeight())
	require.Equal(t, 0, pool.Count())

	bal, err := l.Balance(42)
	require.NoError(t, err)
	require.EqualValues(t, 100, bal)
	bal, err = l.Balance(5)
	require.NoError(t, err)
	require.EqualValues(t, 2, bal)

	require.ErrorIs(t, bc.PushBlock(ctx, &block.Block{ID: 124, Height: 5}), ErrBadHeight)

	got, err := bc.GetBlock(1)
	require.NoError(t, err)
	require.Equal(t, b, got)
	_, err = bc.GetBlock(2)
	require.ErrorIs(t, err, ErrBlockNotFound)

	// Height survives restarts.
	bc2, err := NewBlockchain(s, mempool.New(0, nil), ledger.New(s, nil), nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, bc2.BlockHeight())
	got, err = bc2.GetBlock(1)
	require.NoError(t, err)
	require.Equal(t, uint64(123), got.ID)

	popped, err := bc.PopBlock(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(123), popped.ID)
	require.EqualValues(t, 0, bc.BlockHeight())
	require.True(t, pool.ContainsKey(10))
	bal, err = l.Balance(42)
	require.NoError(t, err)
	require.EqualValues(t, 0, bal)

	_, err = bc.PopBlock(ctx)
	require.ErrorIs(t, err, ErrEmptyChain)

	require.Equal(t, []string{"Pushed", "Popped"}, rec.events)
}

func TestGenerateBlock(t *testing.T) {
	ctx := context.Background()
	bc, pool, _, rec := newTestChain(t, storage.NewMemoryStore())

	require.NoError(t, pool.Add(ctx, &transaction.Transaction{ID: 1, Sender: 1, Recipient: 2, Fee: 1}))
	require.NoError(t, pool.Add(ctx, &transaction.Transaction{ID: 2, Sender: 1, Recipient: 2, Fee: 3}))
	require.NoError(t, pool.Add(ctx, &transaction.Transaction{ID: 3, Sender: 1, Recipient: 2, Phased: true}))

	b, err := bc.GenerateBlock(ctx, 0)
	require.NoError(t, err)
	require.NotZero(t, b.ID)
	require.EqualValues(t, defaultGeneratorID, b.Generator)
	require.Equal(t, []uint64{2, 1}, transaction.IDs(b.Transactions))
	require.Equal(t, 1, pool.Count())
	require.Equal(t, []string{"Pushed", "Generated"}, rec.events)
}

func TestPushBlockFailure(t *testing.T) {
	ctx := context.Background()
	s := &flakyStore{MemoryStore: storage.NewMemoryStore()}
	bc, pool, l, rec := newTestChain(t, s)

	tx := &transaction.Transaction{ID: 10, Sender: 7, Recipient: 42, Amount: 100}
	require.NoError(t, pool.Add(ctx, tx))
	s.fail.Store(true)
	require.Error(t, bc.PushBlock(ctx, &block.Block{ID: 1, Transactions: []*transaction.Transaction{tx}}))

	require.EqualValues(t, 0, bc.BlockHeight())
	require.True(t, pool.ContainsKey(10))
	es, err := l.Entries(42)
	require.NoError(t, err)
	require.Empty(t, es)
	require.Empty(t, rec.events)
}
