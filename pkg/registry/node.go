package registry

import (
	"fmt"

	"github.com/MultiDragon/libpuns/pkg/wire"
)

// SendOptions tunes how Node.SendUpdate's compiled datagram is routed
// once it reaches the director. BroadcastIgnore lets a zone-broadcast
// handler skip echoing an update back to the peer that caused it.
type SendOptions struct {
	BroadcastIgnore *wire.ObjectID
}

// Director is the minimum surface a Node needs from whatever is
// hosting it (client or server director) to send an update out.
type Director interface {
	SendDatagramTo(target wire.ObjectID, flags Flags, payload []byte, opts SendOptions) error
}

// FieldHandler receives a field call's decoded arguments in packer
// order.
type FieldHandler func(args []any) error

// Accessor supplies the current value of a Required field when no RAM
// cache entry exists yet for it, mirroring the class's get_<field>
// method in the original source.
type Accessor func() []any

// Node is the network-addressed object: the Go analogue of
// NetworkNode. It carries its class layout, identity, optional owner,
// and the application-registered handlers/accessors field calls route
// through.
type Node struct {
	Def      *ClassDef
	OID      wire.ObjectID
	Owner    *wire.ObjectID
	director Director

	handlers  map[uint16]FieldHandler
	accessors map[uint16]Accessor
}

// NewNode wires a Node for def, addressed as oid, sending through
// director. Application code then calls Handle/Require to attach
// behavior before the node is exposed to the network.
func NewNode(director Director, oid wire.ObjectID, def *ClassDef) *Node {
	return &Node{
		Def:       def,
		OID:       oid,
		director:  director,
		handlers:  make(map[uint16]FieldHandler),
		accessors: make(map[uint16]Accessor),
	}
}

// Handle registers fn to run when fieldName is dispatched to this node.
func (n *Node) Handle(fieldName string, fn FieldHandler) error {
	num, ok := n.Def.FieldNumber(fieldName)
	if !ok {
		return fmt.Errorf("registry: class %d has no field %q", n.Def.ClassNumber, fieldName)
	}
	n.handlers[num] = fn
	return nil
}

// Require registers the accessor used to satisfy a Required field's
// snapshot value when nothing has been cached for it yet.
func (n *Node) Require(fieldName string, fn Accessor) error {
	num, ok := n.Def.FieldNumber(fieldName)
	if !ok {
		return fmt.Errorf("registry: class %d has no field %q", n.Def.ClassNumber, fieldName)
	}
	n.accessors[num] = fn
	return nil
}

// Dispatch routes a decoded field call to its registered handler.
func (n *Node) Dispatch(fieldNumber uint16, args []any) error {
	fn, ok := n.handlers[fieldNumber]
	if !ok {
		return nil
	}
	return fn(args)
}

// AccessorFor returns the Required-field accessor for fieldNumber, if
// one was registered.
func (n *Node) AccessorFor(fieldNumber uint16) (Accessor, bool) {
	fn, ok := n.accessors[fieldNumber]
	return fn, ok
}

// SendUpdate packs args against fieldName's declared packers, prefixes
// the class number and object id per the object-addressed datagram
// layout, and hands the result to the director for routing. The
// director decides fan-out (unicast, owner-gated, zone broadcast); the
// node only knows how to compile its own wire representation.
func (n *Node) SendUpdate(fieldName string, args []any, opts SendOptions) error {
	num, ok := n.Def.FieldNumber(fieldName)
	if !ok {
		return fmt.Errorf("registry: class %d has no field %q", n.Def.ClassNumber, fieldName)
	}
	field, _ := n.Def.FieldByNumber(num)

	payload, err := CompileObjectUpdate(n.Def.ClassNumber, n.OID, num, field.Packers, args)
	if err != nil {
		return fmt.Errorf("registry: SendUpdate %q: %w", fieldName, err)
	}
	return n.director.SendDatagramTo(n.OID, field.Flags, payload, opts)
}
