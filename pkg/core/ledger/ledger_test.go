package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/nspcc-dev/eventbridge/pkg/core/storage"
	"github.com/stretchr/testify/require"
)

type entryRecorder struct {
	lock    sync.Mutex
	entries []Entry
	inTx    []bool
}

func (r *entryRecorder) Notify(ctx context.Context, e *Entry) {
	_, ok := storage.TxFromContext(ctx)
	r.lock.Lock()
	r.entries = append(r.entries, *e)
	r.inTx = append(r.inTx, ok)
	r.lock.Unlock()
}

func TestAddEntriesDirect(t *testing.T) {
	store := storage.NewMemoryStore()
	l := New(store, nil)
	rec := new(entryRecorder)
	require.True(t, l.AddListener(rec, AddEntry))
	require.False(t, l.AddListener(rec, AddEntry))

	require.NoError(t, l.AddEntries(context.Background(), []*Entry{
		{Account: 7, Type: Transfer, Change: -10, EventID: 1, Height: 1},
		{Account: 42, Type: Transfer, Change: 10, EventID: 1, Height: 1},
		{Account: 7, Type: Fee, Change: -1, EventID: 1, Height: 1},
	}))
	require.Len(t, rec.entries, 3)
	require.Equal(t, []uint64{1, 2, 3}, []uint64{rec.entries[0].ID, rec.entries[1].ID, rec.entries[2].ID})
	require.Equal(t, []bool{false, false, false}, rec.inTx)

	es, err := l.Entries(7)
	require.NoError(t, err)
	require.Len(t, es, 2)
	require.EqualValues(t, 3, es[1].ID)
	bal, err := l.Balance(7)
	require.NoError(t, err)
	require.EqualValues(t, -11, bal)

	// Ids continue after restart.
	l2 := New(store, nil)
	require.NoError(t, l2.AddEntries(context.Background(), []*Entry{{Account: 1, Change: 1, Height: 2}}))
	es, err = l2.Entries(1)
	require.NoError(t, err)
	require.EqualValues(t, 4, es[0].ID)

	require.NoError(t, l2.RemoveHeight(context.Background(), 1))
	es, err = l2.Entries(7)
	require.NoError(t, err)
	require.Empty(t, es)
	es, err = l2.Entries(1)
	require.NoError(t, err)
	require.Len(t, es, 1)

	require.True(t, l.RemoveListener(rec, AddEntry))
	require.False(t, l.RemoveListener(rec, AddEntry))
}

func TestAddEntriesInTx(t *testing.T) {
	store := storage.NewMemoryStore()
	l := New(store, nil)
	rec := new(entryRecorder)
	l.AddListener(rec, AddEntry)

	tx := storage.Begin(store)
	ctx := storage.WithTx(context.Background(), tx)
	require.NoError(t, l.AddEntries(ctx, []*Entry{{Account: 7, Change: 5}}))
	require.Equal(t, []bool{true}, rec.inTx)

	es, err := l.Entries(7)
	require.NoError(t, err)
	require.Empty(t, es)

	require.NoError(t, tx.Commit())
	es, err = l.Entries(7)
	require.NoError(t, err)
	require.Len(t, es, 1)

	tx = storage.Begin(store)
	ctx = storage.WithTx(context.Background(), tx)
	require.NoError(t, l.AddEntries(ctx, []*Entry{{Account: 7, Change: 5}}))
	tx.Rollback()
	es, err = l.Entries(7)
	require.NoError(t, err)
	require.Len(t, es, 1)
}

func TestEntryEventNames(t *testing.T) {
	require.Equal(t, []EntryEvent{AddEntry}, EntryEvents())
	require.Equal(t, "AddEntry", AddEntry.String())
	require.Equal(t, "unknown", EntryEvent(3).String())
}
