package serverdirector

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/MultiDragon/libpuns/pkg/config"
	"github.com/MultiDragon/libpuns/pkg/wire"
)

// BadgerSnapshotCache is the snapshotCache backing CacheConfig.Driver
// "badger": every field write is durably appended to a BadgerDB value
// log entry keyed by object id, so query_memory survives a process
// restart instead of being rebuilt from clients re-announcing.
type BadgerSnapshotCache struct {
	db *badger.DB
}

// OpenBadgerCache opens (creating if absent) the BadgerDB database at
// cfg.Path. Size caps Badger's in-memory table, per cfg.Size. Used by
// `libpuns serve` when CacheConfig.Driver is "badger".
func OpenBadgerCache(cfg config.CacheConfig) (*BadgerSnapshotCache, error) {
	opts := badger.DefaultOptions(cfg.Path).WithLogger(nil)
	if cfg.Size > 0 {
		opts = opts.WithMemTableSize(int64(cfg.Size))
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("serverdirector: open badger cache at %s: %w", cfg.Path, err)
	}
	return &BadgerSnapshotCache{db: db}, nil
}

// Close releases the underlying BadgerDB handle. Safe to call once at
// server shutdown.
func (c *BadgerSnapshotCache) Close() error {
	return c.db.Close()
}

func badgerCacheKey(oid wire.ObjectID) []byte {
	return []byte("snap:" + oid.String())
}

func (c *BadgerSnapshotCache) set(oid wire.ObjectID, field string, args []any) {
	fields := c.snapshot(oid)
	if fields == nil {
		fields = make(map[string][]any)
	}
	fields[field] = args

	payload, err := json.Marshal(fields)
	if err != nil {
		return
	}

	_ = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerCacheKey(oid), payload)
	})
}

func (c *BadgerSnapshotCache) snapshot(oid wire.ObjectID) map[string][]any {
	var fields map[string][]any
	_ = c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerCacheKey(oid))
		if err != nil {
			return nil // ErrKeyNotFound included; an absent snapshot is not an error.
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &fields)
		})
	})
	return fields
}
