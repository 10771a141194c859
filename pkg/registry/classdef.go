package registry

import (
	"fmt"
	"strings"

	"github.com/MultiDragon/libpuns/pkg/wire"
)

// FieldDef declares one field of a class: its wire flags, the ordered
// packers for its arguments, and an optional default value used in an
// object snapshot when the field has no cached value.
type FieldDef struct {
	Name    string
	Flags   Flags
	Packers []wire.Packer
	Default []any
}

func (f FieldDef) signature() string {
	parts := make([]string, len(f.Packers))
	for i, p := range f.Packers {
		parts[i] = p.Signature()
	}
	return fmt.Sprintf("C-%d-%s", f.Flags, strings.Join(parts, "|"))
}

// ClassDef is the compiled, field-number-indexed layout of one class:
// the Go equivalent of SClassDef after configuration. Field numbers are
// assigned by position, inherited fields from an `extends` class coming
// first, exactly as MsgRegistry.configure flattens by reference rather
// than by a runtime MRO walk.
type ClassDef struct {
	ClassNumber uint16
	fields      []FieldDef      // indexed by field number
	byName      map[string]uint16
	configured  bool
}

func newClassDef(classNumber uint16) *ClassDef {
	return &ClassDef{ClassNumber: classNumber, byName: make(map[string]uint16)}
}

// FieldCount returns the number of fields on the class.
func (c *ClassDef) FieldCount() int { return len(c.fields) }

// FieldByNumber returns the field definition at the given field number.
func (c *ClassDef) FieldByNumber(n uint16) (FieldDef, bool) {
	if int(n) >= len(c.fields) {
		return FieldDef{}, false
	}
	return c.fields[n], true
}

// FieldNumber looks up a field's wire number by name.
func (c *ClassDef) FieldNumber(name string) (uint16, bool) {
	n, ok := c.byName[name]
	return n, ok
}

// FieldName looks up a field's name by wire number.
func (c *ClassDef) FieldName(n uint16) (string, bool) {
	if int(n) >= len(c.fields) {
		return "", false
	}
	return c.fields[n].Name, true
}

// FlagsOf returns the flags of the named field.
func (c *ClassDef) FlagsOf(name string) (Flags, bool) {
	n, ok := c.byName[name]
	if !ok {
		return 0, false
	}
	return c.fields[n].Flags, true
}

func (c *ClassDef) signature() string {
	parts := make([]string, len(c.fields))
	for i, f := range c.fields {
		parts[i] = fmt.Sprintf("%d:%s", i, f.signature())
	}
	return "S-" + strings.Join(parts, "~")
}

func (c *ClassDef) appendFields(fields []FieldDef) error {
	for _, f := range fields {
		if _, dup := c.byName[f.Name]; dup {
			return fmt.Errorf("registry: class %d: duplicate field %q", c.ClassNumber, f.Name)
		}
		number := uint16(len(c.fields))
		c.byName[f.Name] = number
		c.fields = append(c.fields, f)
	}
	return nil
}
