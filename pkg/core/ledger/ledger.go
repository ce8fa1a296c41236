/*
Package ledger implements account ledger postings. Every balance change made by
a block is recorded as an Entry, entries are persisted through the storage
transaction found in the caller's context and announced with the AddEntry
event.
*/
package ledger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/nspcc-dev/eventbridge/pkg/core/event"
	"github.com/nspcc-dev/eventbridge/pkg/core/storage"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// EntryEvent is the type of ledger event.
type EntryEvent byte

// AddEntry is fired for every entry added to the ledger.
const AddEntry EntryEvent = 0

// EntryEvents lists all ledger events.
func EntryEvents() []EntryEvent {
	return []EntryEvent{AddEntry}
}

// String implements the fmt.Stringer interface.
func (e EntryEvent) String() string {
	if e == AddEntry {
		return "AddEntry"
	}
	return "unknown"
}

// EntryType describes the reason of the balance change.
type EntryType byte

// Entry types.
const (
	Transfer EntryType = iota
	Fee
	BlockReward
)

// Entry is a single ledger posting.
type Entry struct {
	ID      uint64    `json:"id,string"`
	Account uint64    `json:"account,string"`
	Type    EntryType `json:"type"`
	Change  int64     `json:"change"`
	// EventID is the id of the transaction or block causing the change.
	EventID uint64 `json:"event,string"`
	Height  uint32 `json:"height"`
}

// Ledger stores account entries.
type Ledger struct {
	store     storage.Store
	lastID    atomic.Uint64
	listeners *event.Listeners[EntryEvent, *Entry]
	log       *zap.Logger
}

// New creates a ledger over the given store, entry ids continue from the
// biggest one stored.
func New(store storage.Store, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Ledger{
		store:     store,
		listeners: event.NewListeners[EntryEvent, *Entry](log),
		log:       log,
	}
	var last uint64
	store.Seek(storage.DataLedger.Bytes(), func(k, _ []byte) bool {
		if id := binary.BigEndian.Uint64(k[1:]); id > last {
			last = id
		}
		return true
	})
	l.lastID.Store(last)
	return l
}

// AddListener registers l for the given event.
func (l *Ledger) AddListener(lst event.Listener[*Entry], e EntryEvent) bool {
	return l.listeners.AddListener(lst, e)
}

// RemoveListener unregisters l from the given event.
func (l *Ledger) RemoveListener(lst event.Listener[*Entry], e EntryEvent) bool {
	return l.listeners.RemoveListener(lst, e)
}

// AddEntries assigns ids to entries and stores them. If ctx carries a storage
// transaction, entries are written into it and become durable on its commit,
// otherwise they're written into the store directly. AddEntry is fired for
// every entry in order.
func (l *Ledger) AddEntries(ctx context.Context, entries []*Entry) error {
	changes := make(map[string][]byte, 2*len(entries))
	for _, e := range entries {
		e.ID = l.lastID.Inc()
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("can't encode entry: %w", err)
		}
		changes[string(entryKey(e.ID))] = data
		changes[string(accountKey(e.Account, e.ID))] = []byte{}
	}
	var store storage.Store = l.store
	if tx, ok := storage.TxFromContext(ctx); ok {
		store = tx
	}
	if err := store.PutChangeSet(changes); err != nil {
		return fmt.Errorf("can't store entries: %w", err)
	}
	for _, e := range entries {
		l.listeners.Notify(ctx, AddEntry, e)
	}
	return nil
}

// RemoveHeight drops all entries made at the given height, it's used when a
// block is popped. No events are fired.
func (l *Ledger) RemoveHeight(ctx context.Context, height uint32) error {
	var store storage.Store = l.store
	if tx, ok := storage.TxFromContext(ctx); ok {
		store = tx
	}
	changes := make(map[string][]byte)
	store.Seek(storage.DataLedger.Bytes(), func(k, v []byte) bool {
		var e Entry
		if json.Unmarshal(v, &e) == nil && e.Height == height {
			changes[string(k)] = nil
			changes[string(accountKey(e.Account, e.ID))] = nil
		}
		return true
	})
	if len(changes) == 0 {
		return nil
	}
	return store.PutChangeSet(changes)
}

// Entries returns committed entries of the account in id order.
func (l *Ledger) Entries(account uint64) ([]Entry, error) {
	var (
		ids    []uint64
		prefix = accountKey(account, 0)[:9]
	)
	l.store.Seek(prefix, func(k, _ []byte) bool {
		ids = append(ids, binary.BigEndian.Uint64(k[9:]))
		return true
	})
	res := make([]Entry, 0, len(ids))
	for _, id := range ids {
		data, err := l.store.Get(entryKey(id))
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", id, err)
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("entry %d: %w", id, err)
		}
		res = append(res, e)
	}
	return res, nil
}

// Balance sums all committed changes of the account.
func (l *Ledger) Balance(account uint64) (int64, error) {
	entries, err := l.Entries(account)
	if err != nil {
		return 0, err
	}
	var sum int64
	for _, e := range entries {
		sum += e.Change
	}
	return sum, nil
}

func entryKey(id uint64) []byte {
	k := make([]byte, 9)
	k[0] = byte(storage.DataLedger)
	binary.BigEndian.PutUint64(k[1:], id)
	return k
}

func accountKey(account, id uint64) []byte {
	k := make([]byte, 17)
	k[0] = byte(storage.IXAccountEntry)
	binary.BigEndian.PutUint64(k[1:], account)
	binary.BigEndian.PutUint64(k[9:], id)
	return k
}
