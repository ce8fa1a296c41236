package storage

// Supported DB types.
const (
	LevelDB    = "leveldb"
	BoltDB     = "boltdb"
	InMemoryDB = "inmemory"
)

type (
	// DBConfiguration describes configuration for DB. Supported types:
	// LevelDB, BoltDB or InMemoryDB (not recommended for production usage).
	DBConfiguration struct {
		Type           string         `yaml:"Type" validate:"oneof=leveldb boltdb inmemory"`
		LevelDBOptions LevelDBOptions `yaml:"LevelDBOptions"`
		BoltDBOptions  BoltDBOptions  `yaml:"BoltDBOptions"`
	}
	// LevelDBOptions configuration for LevelDB. BloomFilterBits is the
	// number of filter bits per key (10 if not set), SyncWrites makes every
	// changeset write wait for fsync.
	LevelDBOptions struct {
		DataDirectoryPath string `yaml:"DataDirectoryPath"`
		ReadOnly          bool   `yaml:"ReadOnly"`
		BloomFilterBits   int    `yaml:"BloomFilterBits" validate:"gte=0"`
		SyncWrites        bool   `yaml:"SyncWrites"`
	}
	// BoltDBOptions configuration for BoltDB.
	BoltDBOptions struct {
		FilePath string `yaml:"FilePath"`
		ReadOnly bool   `yaml:"ReadOnly"`
	}
)
