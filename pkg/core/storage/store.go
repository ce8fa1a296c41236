package storage

import (
	"errors"
	"fmt"
)

// KeyPrefix constants.
const (
	DataBlock      KeyPrefix = 0x01
	DataLedger     KeyPrefix = 0x02
	IXAccountEntry KeyPrefix = 0x03
	SYSCurrentTip  KeyPrefix = 0xc0
	SYSVersion     KeyPrefix = 0xf0
)

// ErrKeyNotFound is an error returned by Store implementations
// when a certain key is not found.
var ErrKeyNotFound = errors.New("key not found")

type (
	// Store is the underlying KV backend for the node data, it's not intended
	// to be used directly, you wrap it with some memory cache layer most of
	// the time (see Tx).
	Store interface {
		Get([]byte) ([]byte, error)
		// PutChangeSet allows to push prepared changeset to the Store. Nil
		// values denote deletions.
		PutChangeSet(puts map[string][]byte) error
		// Seek iterates over all key-value pairs with the given prefix in
		// ascending key order until f returns false. Key and value slices
		// should not be modified.
		Seek(prefix []byte, f func(k, v []byte) bool)
		Close() error
	}

	// KeyPrefix is a constant byte added as a prefix for each key
	// stored.
	KeyPrefix uint8
)

// Bytes returns the bytes representation of KeyPrefix.
func (k KeyPrefix) Bytes() []byte {
	return []byte{byte(k)}
}

// NewStore creates storage with preselected in configuration database type.
func NewStore(cfg DBConfiguration) (Store, error) {
	var store Store
	var err error
	switch cfg.Type {
	case LevelDB:
		store, err = NewLevelDBStore(cfg.LevelDBOptions)
	case InMemoryDB:
		store = NewMemoryStore()
	case BoltDB:
		store, err = NewBoltDBStore(cfg.BoltDBOptions)
	default:
		return nil, fmt.Errorf("unknown storage: %s", cfg.Type)
	}
	return store, err
}
