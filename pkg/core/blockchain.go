package core

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/nspcc-dev/eventbridge/pkg/core/block"
	"github.com/nspcc-dev/eventbridge/pkg/core/event"
	"github.com/nspcc-dev/eventbridge/pkg/core/ledger"
	"github.com/nspcc-dev/eventbridge/pkg/core/mempool"
	"github.com/nspcc-dev/eventbridge/pkg/core/storage"
	"github.com/nspcc-dev/eventbridge/pkg/core/transaction"
	"github.com/twmb/murmur3"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Tuning parameters.
const (
	blockCacheSize     = 128
	maxBlockTxes       = 255
	heightKeyLen       = 5
	defaultGeneratorID = 1
)

var (
	// ErrEmptyChain is returned when popping from a chain with no blocks.
	ErrEmptyChain = errors.New("chain is empty")
	// ErrBadHeight is returned for blocks that don't extend the current tip.
	ErrBadHeight = errors.New("block doesn't extend current tip")
	// ErrBlockNotFound is returned for unknown heights.
	ErrBlockNotFound = errors.New("block not found")
)

// BlockEvent is the type of block processor event.
type BlockEvent byte

// Block events fired by Blockchain.
const (
	Generated BlockEvent = iota
	Popped
	Pushed
)

// BlockEvents lists all block events in declaration order.
func BlockEvents() []BlockEvent {
	return []BlockEvent{Generated, Popped, Pushed}
}

// String implements the fmt.Stringer interface.
func (e BlockEvent) String() string {
	switch e {
	case Generated:
		return "Generated"
	case Popped:
		return "Popped"
	case Pushed:
		return "Pushed"
	default:
		return "unknown"
	}
}

// Blockchain is the block processor. It stores blocks, confirms their
// transactions in the mempool and posts balance changes to the ledger, all of
// that within a single storage transaction per block.
type Blockchain struct {
	// Serializes block processing.
	lock sync.Mutex

	store  storage.Store
	pool   *mempool.Pool
	ledger *ledger.Ledger

	// Current index/height of the highest block, 0 for an empty chain.
	height atomic.Uint32

	// Recently accessed blocks by height.
	cache *lru.Cache

	listeners *event.Listeners[BlockEvent, *block.Block]
	log       *zap.Logger
}

// NewBlockchain creates a block processor and restores its height from the
// store.
func NewBlockchain(s storage.Store, pool *mempool.Pool, l *ledger.Ledger, log *zap.Logger) (*Blockchain, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cache, _ := lru.New(blockCacheSize) // Never errors for positive size.
	bc := &Blockchain{
		store:     s,
		pool:      pool,
		ledger:    l,
		cache:     cache,
		listeners: event.NewListeners[BlockEvent, *block.Block](log),
		log:       log,
	}
	pool.SetUpdateMetricsCb(updatePoolMetrics)
	tip, err := s.Get(storage.SYSCurrentTip.Bytes())
	switch {
	case errors.Is(err, storage.ErrKeyNotFound):
	case err != nil:
		return nil, fmt.Errorf("can't read current tip: %w", err)
	case len(tip) != 4:
		return nil, fmt.Errorf("bad current tip record of %d bytes", len(tip))
	default:
		bc.height.Store(binary.BigEndian.Uint32(tip))
	}
	updateBlockHeightMetric(bc.height.Load())
	log.Info("blockchain initialized", zap.Uint32("height", bc.height.Load()))
	return bc, nil
}

// AddListener registers l for the given event.
func (bc *Blockchain) AddListener(l event.Listener[*block.Block], e BlockEvent) bool {
	return bc.listeners.AddListener(l, e)
}

// RemoveListener unregisters l from the given event.
func (bc *Blockchain) RemoveListener(l event.Listener[*block.Block], e BlockEvent) bool {
	return bc.listeners.RemoveListener(l, e)
}

// BlockHeight returns the height of the highest block.
func (bc *Blockchain) BlockHeight() uint32 {
	return bc.height.Load()
}

// GetBlock returns the block at the given height.
func (bc *Blockchain) GetBlock(height uint32) (*block.Block, error) {
	if v, ok := bc.cache.Get(height); ok {
		return v.(*block.Block), nil
	}
	data, err := bc.store.Get(heightKey(height))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}
	b, err := block.NewBlockFromBytes(data)
	if err != nil {
		return nil, err
	}
	bc.cache.Add(height, b)
	return b, nil
}

// PushBlock adds the block on top of the chain. A zero height is replaced with
// the next one. Transaction and ledger events produced while storing the block
// are bound to its storage transaction, Pushed is fired after the commit.
func (bc *Blockchain) PushBlock(ctx context.Context, b *block.Block) error {
	bc.lock.Lock()
	err := bc.pushBlock(ctx, b)
	bc.lock.Unlock()
	if err != nil {
		return err
	}
	bc.listeners.Notify(ctx, Pushed, b)
	return nil
}

// GenerateBlock forges a new block from the mempool contents on behalf of the
// generator account and pushes it. Pushed is followed by Generated.
func (bc *Blockchain) GenerateBlock(ctx context.Context, generator uint64) (*block.Block, error) {
	if generator == 0 {
		generator = defaultGeneratorID
	}
	txes := bc.pool.Verified()
	if len(txes) > maxBlockTxes {
		txes = txes[:maxBlockTxes]
	}

	bc.lock.Lock()
	b := &block.Block{
		Height:       bc.height.Load() + 1,
		Timestamp:    uint64(time.Now().UnixMilli()),
		Generator:    generator,
		Transactions: txes,
	}
	b.ID = blockID(b)
	err := bc.pushBlock(ctx, b)
	bc.lock.Unlock()
	if err != nil {
		return nil, err
	}
	bc.listeners.Notify(ctx, Pushed, b)
	bc.listeners.Notify(ctx, Generated, b)
	return b, nil
}

// PopBlock removes the highest block, its ledger entries are dropped and its
// transactions return to the mempool.
func (bc *Blockchain) PopBlock(ctx context.Context) (*block.Block, error) {
	bc.lock.Lock()
	b, err := bc.popBlock(ctx)
	bc.lock.Unlock()
	if err != nil {
		return nil, err
	}
	for _, tx := range b.Transactions {
		if err := bc.pool.Add(ctx, tx); err != nil {
			bc.log.Debug("can't return popped transaction to mempool",
				zap.Uint64("tx", tx.ID), zap.Error(err))
		}
	}
	bc.listeners.Notify(ctx, Popped, b)
	return b, nil
}

// pushBlock is called with the lock held.
func (bc *Blockchain) pushBlock(ctx context.Context, b *block.Block) error {
	cur := bc.height.Load()
	if b.Height == 0 {
		b.Height = cur + 1
	}
	if b.Height != cur+1 {
		return fmt.Errorf("%w: height %d, tip %d", ErrBadHeight, b.Height, cur)
	}
	if err := b.Verify(); err != nil {
		return fmt.Errorf("invalid block: %w", err)
	}
	data, err := b.Bytes()
	if err != nil {
		return err
	}

	tx := storage.Begin(bc.store)
	txCtx := storage.WithTx(ctx, tx)
	if err := tx.PutChangeSet(map[string][]byte{
		string(heightKey(b.Height)):           data,
		string(storage.SYSCurrentTip.Bytes()): tipValue(b.Height),
	}); err != nil {
		tx.Rollback()
		return err
	}
	var inPool []*transaction.Transaction
	for _, t := range b.Transactions {
		if bc.pool.ContainsKey(t.ID) {
			inPool = append(inPool, t)
		}
	}
	tx.OnOutcome(nil, func() { bc.pool.Restore(inPool) })
	bc.pool.Confirm(txCtx, b.Transactions)
	if err := bc.ledger.AddEntries(txCtx, entriesFor(b)); err != nil {
		tx.Rollback()
		return fmt.Errorf("can't post ledger entries: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	bc.cache.Add(b.Height, b)
	bc.height.Store(b.Height)
	updateBlockHeightMetric(b.Height)
	bc.log.Debug("block pushed", zap.Uint64("id", b.ID), zap.Uint32("height", b.Height),
		zap.Int("txes", len(b.Transactions)))
	return nil
}

// popBlock is called with the lock held.
func (bc *Blockchain) popBlock(ctx context.Context) (*block.Block, error) {
	cur := bc.height.Load()
	if cur == 0 {
		return nil, ErrEmptyChain
	}
	b, err := bc.GetBlock(cur)
	if err != nil {
		return nil, fmt.Errorf("can't get tip: %w", err)
	}

	tx := storage.Begin(bc.store)
	txCtx := storage.WithTx(ctx, tx)
	changes := map[string][]byte{string(heightKey(cur)): nil}
	if cur == 1 {
		changes[string(storage.SYSCurrentTip.Bytes())] = nil
	} else {
		changes[string(storage.SYSCurrentTip.Bytes())] = tipValue(cur - 1)
	}
	if err := tx.PutChangeSet(changes); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := bc.ledger.RemoveHeight(txCtx, cur); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	bc.cache.Remove(cur)
	bc.height.Store(cur - 1)
	updateBlockHeightMetric(cur - 1)
	bc.log.Debug("block popped", zap.Uint64("id", b.ID), zap.Uint32("height", cur))
	return b, nil
}

func entriesFor(b *block.Block) []*ledger.Entry {
	var res []*ledger.Entry
	for _, tx := range b.Transactions {
		res = append(res,
			&ledger.Entry{Account: tx.Sender, Type: ledger.Transfer, Change: -tx.Amount, EventID: tx.ID, Height: b.Height},
			&ledger.Entry{Account: tx.Recipient, Type: ledger.Transfer, Change: tx.Amount, EventID: tx.ID, Height: b.Height},
		)
		if tx.Fee != 0 {
			res = append(res, &ledger.Entry{Account: tx.Sender, Type: ledger.Fee, Change: -tx.Fee, EventID: tx.ID, Height: b.Height})
		}
	}
	if fee := b.TotalFee(); fee != 0 {
		res = append(res, &ledger.Entry{Account: b.Generator, Type: ledger.BlockReward, Change: fee, EventID: b.ID, Height: b.Height})
	}
	return res
}

func blockID(b *block.Block) uint64 {
	buf := make([]byte, 4+8+8)
	binary.BigEndian.PutUint32(buf, b.Height)
	binary.BigEndian.PutUint64(buf[4:], b.Timestamp)
	binary.BigEndian.PutUint64(buf[12:], b.Generator)
	id := murmur3.Sum64(buf)
	if id == 0 {
		id = 1
	}
	return id
}

func heightKey(h uint32) []byte {
	k := make([]byte, heightKeyLen)
	k[0] = byte(storage.DataBlock)
	binary.BigEndian.PutUint32(k[1:], h)
	return k
}

func tipValue(h uint32) []byte {
	v := make([]byte, 4)
	binary.BigEndian.PutUint32(v, h)
	return v
}
