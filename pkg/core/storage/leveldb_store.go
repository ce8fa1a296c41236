package storage

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// defaultBloomFilterBits is the number of filter bits per key used unless
// configured otherwise.
const defaultBloomFilterBits = 10

// LevelDBStore keeps node data in a LevelDB database directory.
type LevelDBStore struct {
	db  *leveldb.DB
	wo  *opt.WriteOptions
	dir string
}

// NewLevelDBStore opens (creating if needed and not read-only) the database
// in cfg.DataDirectoryPath.
func NewLevelDBStore(cfg LevelDBOptions) (*LevelDBStore, error) {
	bits := cfg.BloomFilterBits
	if bits <= 0 {
		bits = defaultBloomFilterBits
	}
	opts := &opt.Options{
		Filter:         filter.NewBloomFilter(bits),
		ReadOnly:       cfg.ReadOnly,
		ErrorIfMissing: cfg.ReadOnly,
	}
	db, err := leveldb.OpenFile(cfg.DataDirectoryPath, opts)
	if err != nil {
		return nil, fmt.Errorf("can't open LevelDB at %s: %w", cfg.DataDirectoryPath, err)
	}
	return &LevelDBStore{
		db:  db,
		wo:  &opt.WriteOptions{Sync: cfg.SyncWrites},
		dir: cfg.DataDirectoryPath,
	}, nil
}

// Get implements the Store interface.
func (s *LevelDBStore) Get(key []byte) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	return v, err
}

// PutChangeSet implements the Store interface, the whole changeset is
// written as a single atomic batch.
func (s *LevelDBStore) PutChangeSet(puts map[string][]byte) error {
	batch := new(leveldb.Batch)
	for k, v := range puts {
		if v == nil {
			batch.Delete([]byte(k))
			continue
		}
		batch.Put([]byte(k), v)
	}
	return s.db.Write(batch, s.wo)
}

// Seek implements the Store interface.
func (s *LevelDBStore) Seek(prefix []byte, f func(k, v []byte) bool) {
	it := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()
	for ok := it.First(); ok; ok = it.Next() {
		if !f(it.Key(), it.Value()) {
			return
		}
	}
}

// Close implements the Store interface.
func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
