package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// durableThreshold is the magic tag value the protocol uses to tell a
// transient integer OID from a durable 3-word tuple OID on the wire: a
// first word below this threshold is the whole identifier; at or above
// it, it is the tuple's first word and two more u32s follow. Preserved
// verbatim for wire compatibility even though a tagged encoding would
// read more cleanly.
const durableThreshold uint32 = 1_000_000_000

// ObjectID is the tagged union described by the data model: either a
// single transient 32-bit integer (auth-backend-assigned, e.g. an
// avatar ID) or a durable 3x32-bit tuple (database-backed).
type ObjectID struct {
	A, B, C uint32
	Durable bool
}

// NewTransientOID constructs a single-word, non-durable ObjectID. The
// caller is responsible for keeping v below the durable threshold;
// values at or above it are reserved for the tuple form.
func NewTransientOID(v uint32) ObjectID {
	return ObjectID{A: v}
}

// NewDurableOID constructs a 3-word durable ObjectID.
func NewDurableOID(a, b, c uint32) ObjectID {
	return ObjectID{A: a, B: b, C: c, Durable: true}
}

// String renders the ObjectID for logs: a bare integer for transient
// IDs, or "a.b.c" for durable ones.
func (o ObjectID) String() string {
	if !o.Durable {
		return fmt.Sprintf("%d", o.A)
	}
	return fmt.Sprintf("%d.%d.%d", o.A, o.B, o.C)
}

// ParseOID parses the String form back into an ObjectID: a bare
// integer for transient IDs, or "a.b.c" for durable ones. Used by the
// control plane to accept an object id from a URL path segment.
func ParseOID(s string) (ObjectID, error) {
	parts := strings.Split(s, ".")
	switch len(parts) {
	case 1:
		v, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil {
			return ObjectID{}, fmt.Errorf("wire: parse object id %q: %w", s, err)
		}
		return NewTransientOID(uint32(v)), nil
	case 3:
		words := make([]uint32, 3)
		for i, p := range parts {
			v, err := strconv.ParseUint(p, 10, 32)
			if err != nil {
				return ObjectID{}, fmt.Errorf("wire: parse object id %q: %w", s, err)
			}
			words[i] = uint32(v)
		}
		return NewDurableOID(words[0], words[1], words[2]), nil
	default:
		return ObjectID{}, fmt.Errorf("wire: parse object id %q: expected integer or a.b.c", s)
	}
}

// Equal reports whether two ObjectIDs address the same node.
func (o ObjectID) Equal(other ObjectID) bool {
	return o == other
}

// PackObjectID writes an ObjectID per the magic-threshold wire rule:
// transient IDs as one u32, durable IDs as three.
func PackObjectID(w *Writer, oid ObjectID) {
	w.WriteU32(oid.A)
	if oid.Durable {
		w.WriteU32(oid.B)
		w.WriteU32(oid.C)
	}
}

// UnpackObjectID reads an ObjectID: if the first word is below
// durableThreshold it is the whole (transient) identifier; otherwise
// two more words follow, forming a durable tuple.
func UnpackObjectID(r *Reader) (ObjectID, error) {
	a, err := r.ReadU32()
	if err != nil {
		return ObjectID{}, err
	}
	if a < durableThreshold {
		return ObjectID{A: a}, nil
	}
	b, err := r.ReadU32()
	if err != nil {
		return ObjectID{}, err
	}
	c, err := r.ReadU32()
	if err != nil {
		return ObjectID{}, err
	}
	return ObjectID{A: a, B: b, C: c, Durable: true}, nil
}

// ObjectIDPacker is the Packer implementation for the §3 ObjectID codec.
type ObjectIDPacker struct{}

func (ObjectIDPacker) Pack(w *Writer, v any) error {
	oid, ok := v.(ObjectID)
	if !ok {
		return fmt.Errorf("wire: ObjectIDPacker.Pack expected ObjectID, got %T", v)
	}
	PackObjectID(w, oid)
	return nil
}

func (ObjectIDPacker) Unpack(r *Reader) (any, error) {
	return UnpackObjectID(r)
}

func (ObjectIDPacker) Signature() string { return "P-ObjectID" }
