// Package registry holds the class registry: the global, immutable
// table of field definitions that both directors use to pack, unpack,
// and permission-gate object updates, plus the network-node type that
// routes a decoded field call to application handlers.
package registry

// Flags is a bitset describing who may send a field and what the
// server does with received values.
type Flags uint32

const (
	// ClientSend permits any client to originate this field.
	ClientSend Flags = 1
	// OwnerSend permits only the node's owner to originate this field.
	OwnerSend Flags = 2
	// RAM keeps the field's last value in the server's query cache so
	// it can be replayed into a late-joiner's object snapshot.
	RAM Flags = 8
	// Database additionally persists the field through the database
	// interface. It overlaps RAM's bit, so a Database field is always
	// also a RAM field without needing both flags set explicitly.
	Database Flags = 4 | 8
	// Broadcast is informational: fields intended for propagation to a
	// zone still reach other members only because application handler
	// code calls Node.SendUpdate with BroadcastIgnore, not because the
	// director relays automatically.
	Broadcast Flags = 16
	// Required marks a field that must appear in every object snapshot,
	// falling back to the node's accessor when no RAM value is cached.
	Required Flags = 32
)

// Has reports whether all bits in mask are set in f.
func (f Flags) Has(mask Flags) bool {
	return f&mask == mask
}

// HasAny reports whether any bit in mask is set in f.
func (f Flags) HasAny(mask Flags) bool {
	return f&mask != 0
}

// ImpliesRAM reports whether f's data should be kept in the query
// cache — true for both RAM and Database, since Database's bits
// include RAM's.
func (f Flags) ImpliesRAM() bool {
	return f.HasAny(RAM)
}
