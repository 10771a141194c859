package wire

import "fmt"

// Packer is a bidirectional codec for one field argument: it knows how
// to write a Go value to a Writer, read it back from a Reader, and
// describe itself for the signature hash. Implementers compose Packers
// into a class field list at registration time; the registry routes on
// field number, never on a field's Go type, so Pack/Unpack trade in
// `any`.
type Packer interface {
	Pack(w *Writer, v any) error
	Unpack(r *Reader) (any, error)
	Signature() string
}

// Int32 packs a signed 32-bit integer.
type Int32 struct{}

func (Int32) Pack(w *Writer, v any) error {
	i, ok := v.(int32)
	if !ok {
		return fmt.Errorf("wire: Int32.Pack expected int32, got %T", v)
	}
	w.WriteI32(i)
	return nil
}

func (Int32) Unpack(r *Reader) (any, error) {
	return r.ReadI32()
}

func (Int32) Signature() string { return "P-Int32" }

// String packs a length-prefixed UTF-8 string (u16 byte count).
type String struct{}

func (String) Pack(w *Writer, v any) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("wire: String.Pack expected string, got %T", v)
	}
	return w.WriteString(s)
}

func (String) Unpack(r *Reader) (any, error) {
	return r.ReadString()
}

func (String) Signature() string { return "P-String" }

// Uint32 packs an unsigned 32-bit integer. Not named in §4.1 directly
// but needed wherever a field carries a zone ID, count, or other
// unsigned quantity — grounded on the same primitive-packer pattern.
type Uint32 struct{}

func (Uint32) Pack(w *Writer, v any) error {
	u, ok := v.(uint32)
	if !ok {
		return fmt.Errorf("wire: Uint32.Pack expected uint32, got %T", v)
	}
	w.WriteU32(u)
	return nil
}

func (Uint32) Unpack(r *Reader) (any, error) {
	return r.ReadU32()
}

func (Uint32) Signature() string { return "P-Uint32" }

// Bool packs a boolean as a single byte (0 or 1).
type Bool struct{}

func (Bool) Pack(w *Writer, v any) error {
	b, ok := v.(bool)
	if !ok {
		return fmt.Errorf("wire: Bool.Pack expected bool, got %T", v)
	}
	if b {
		w.WriteU8(1)
	} else {
		w.WriteU8(0)
	}
	return nil
}

func (Bool) Unpack(r *Reader) (any, error) {
	v, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	return v != 0, nil
}

func (Bool) Signature() string { return "P-Bool" }

// ObjectIDField is ObjectIDPacker exposed as a field-level Packer, for
// fields that carry a peer's identifier as an ordinary argument (e.g.
// TransferOwner's target).
type ObjectIDField = ObjectIDPacker
