package serverdirector

import (
	"context"
	"sync"

	"github.com/MultiDragon/libpuns/internal/database"
	"github.com/MultiDragon/libpuns/pkg/registry"
	"github.com/MultiDragon/libpuns/pkg/wire"
)

// fieldSnapshot is one field's contribution to an object snapshot: its
// wire field number, name, and the argument list to pack.
type fieldSnapshot struct {
	number uint16
	name   string
	args   []any
}

// snapshotCache is query_memory: the last value seen (or
// database-loaded) for every RAM/Database-flagged field of every
// tracked object. memoryHandler uses whichever implementation the
// server was built with — the default in-process map, or a
// restart-surviving one such as BadgerSnapshotCache.
type snapshotCache interface {
	set(oid wire.ObjectID, field string, args []any)
	snapshot(oid wire.ObjectID) map[string][]any
}

// memoryCache is the in-process, non-durable snapshotCache: state is
// lost on process restart, rebuilt from scratch as clients re-announce
// their fields.
type memoryCache struct {
	mu   sync.Mutex
	data map[wire.ObjectID]map[string][]any
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[wire.ObjectID]map[string][]any)}
}

func (c *memoryCache) set(oid wire.ObjectID, field string, args []any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fields, ok := c.data[oid]
	if !ok {
		fields = make(map[string][]any)
		c.data[oid] = fields
	}
	fields[field] = args
}

func (c *memoryCache) snapshot(oid wire.ObjectID) map[string][]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[oid]
}

// memoryHandler assembles ObjectResponse/ZoneData snapshots for late
// joiners from snapshotCache, without re-asking the owning client.
type memoryHandler struct {
	db    database.Interface
	cache snapshotCache
}

func newMemoryHandler(db database.Interface) *memoryHandler {
	return newMemoryHandlerWithCache(db, newMemoryCache())
}

// newMemoryHandlerWithCache builds a memoryHandler over an
// explicitly-chosen snapshotCache, used by servers configured with
// CacheConfig.Driver="badger".
func newMemoryHandlerWithCache(db database.Interface, cache snapshotCache) *memoryHandler {
	return &memoryHandler{db: db, cache: cache}
}

// setData records a field's latest value. updateDB additionally
// writes through the database, skipped for transient (non-durable)
// object ids since there is no durable row to attach the value to.
func (m *memoryHandler) setData(ctx context.Context, oid wire.ObjectID, field string, args []any, updateDB bool) error {
	m.cache.set(oid, field, args)

	if updateDB && oid.Durable {
		return m.db.UpdateObject(ctx, oid, field, args)
	}
	return nil
}

// packObject builds the ordered field list an ObjectResponse or
// ZoneData entry needs for obj: cached values first, then the field's
// declared default, then — for Required fields with neither — the
// node's own accessor.
//
// The original implementation fell back to the class's get_<field>
// bound method object itself rather than calling it, so a Required
// field with no cached value and no default serialized a function
// reference instead of data. This builds the accessor's result, not
// the accessor.
func (m *memoryHandler) packObject(obj *registry.Node) []fieldSnapshot {
	cached := m.cache.snapshot(obj.OID)

	var snapshot []fieldSnapshot
	for number := 0; number < obj.Def.FieldCount(); number++ {
		field, _ := obj.Def.FieldByNumber(uint16(number))

		if args, ok := cached[field.Name]; ok {
			snapshot = append(snapshot, fieldSnapshot{number: uint16(number), name: field.Name, args: args})
			continue
		}
		if field.Default != nil {
			snapshot = append(snapshot, fieldSnapshot{number: uint16(number), name: field.Name, args: field.Default})
			continue
		}
		if field.Flags.Has(registry.Required) {
			if accessor, ok := obj.AccessorFor(uint16(number)); ok {
				snapshot = append(snapshot, fieldSnapshot{number: uint16(number), name: field.Name, args: accessor()})
			}
		}
	}
	return snapshot
}
