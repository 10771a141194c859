package registry

import (
	"fmt"

	"github.com/MultiDragon/libpuns/pkg/wire"
)

// CompileField writes a field-number:u16 header followed by args
// packed through packers, in order — the inner layout SClassDef's
// compile_datagram produces once the message number has been resolved.
func CompileField(w *wire.Writer, fieldNumber uint16, packers []wire.Packer, args []any) error {
	if len(args) != len(packers) {
		return fmt.Errorf("registry: field %d expects %d argument(s), got %d", fieldNumber, len(packers), len(args))
	}
	w.WriteU16(fieldNumber)
	for i, p := range packers {
		if err := p.Pack(w, args[i]); err != nil {
			return fmt.Errorf("registry: field %d arg %d: %w", fieldNumber, i, err)
		}
	}
	return nil
}

// DecompileField reads a field-number:u16 header from r and unpacks
// the field's arguments using def's field layout.
func DecompileField(r *wire.Reader, def *ClassDef) (fieldNumber uint16, args []any, err error) {
	fieldNumber, err = r.ReadU16()
	if err != nil {
		return 0, nil, err
	}
	field, ok := def.FieldByNumber(fieldNumber)
	if !ok {
		return fieldNumber, nil, fmt.Errorf("registry: class %d has no field number %d", def.ClassNumber, fieldNumber)
	}
	args = make([]any, len(field.Packers))
	for i, p := range field.Packers {
		v, perr := p.Unpack(r)
		if perr != nil {
			return fieldNumber, nil, fmt.Errorf("registry: field %d arg %d: %w", fieldNumber, i, perr)
		}
		args[i] = v
	}
	return fieldNumber, args, nil
}

// CompileObjectUpdate writes the full object-addressed datagram body:
// class_number:u16 · object_id · field_number:u16 · packed_arguments.
func CompileObjectUpdate(classNumber uint16, oid wire.ObjectID, fieldNumber uint16, packers []wire.Packer, args []any) ([]byte, error) {
	w := wire.NewWriter()
	w.WriteU16(classNumber)
	wire.PackObjectID(w, oid)
	if err := CompileField(w, fieldNumber, packers, args); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// DecompileObjectUpdate reads class_number and object_id off the front
// of a received object-addressed datagram, leaving r positioned at the
// field-number header for the caller to resolve against the correct
// ClassDef and finish with DecompileField.
func DecompileObjectUpdate(r *wire.Reader) (classNumber uint16, oid wire.ObjectID, err error) {
	classNumber, err = r.ReadU16()
	if err != nil {
		return 0, wire.ObjectID{}, err
	}
	oid, err = wire.UnpackObjectID(r)
	if err != nil {
		return 0, wire.ObjectID{}, err
	}
	return classNumber, oid, nil
}
