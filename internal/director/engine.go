package director

import (
	"context"
	"fmt"

	"github.com/MultiDragon/libpuns/pkg/registry"
	"github.com/MultiDragon/libpuns/pkg/wire"
)

// Source identifies whoever a datagram arrived from or is addressed
// to. The server director uses a per-connection handle; the client
// director has exactly one, the server connection itself.
type Source any

// SpecialHandler processes one special message's payload for source.
type SpecialHandler func(source Source, r *wire.Reader) error

// UnknownObjectHandler runs when a class-addressed datagram names an
// object not present in the engine's table — the client asks the
// server for it; the server treats it as a protocol violation.
type UnknownObjectHandler func(source Source, classNumber uint16, oid wire.ObjectID, r *wire.Reader) error

type inboundMessage struct {
	source  Source
	payload []byte
}

// Engine is the single-goroutine reactor both directors embed. Every
// inbound datagram funnels through its channel from per-connection
// reader goroutines, and only the Run goroutine ever touches the
// object table — this is a deliberate departure from the original's
// mutex-per-structure style towards Go's "share memory by
// communicating" idiom, safe because exactly one goroutine processes
// state transitions.
type Engine struct {
	Registry             *registry.Registry
	ReservedSpecialRange uint16

	objects map[wire.ObjectID]*registry.Node

	specials         map[SpecialMessage]SpecialHandler
	onUnknownObject  UnknownObjectHandler
	fieldInterceptor FieldInterceptor

	inbound chan inboundMessage
}

// FieldInterceptor runs in place of obj.Dispatch for every decoded
// field call, letting a director apply permission gating and
// memory-cache writes before (or instead of) invoking the node's
// handler. The interceptor is responsible for calling obj.Dispatch
// itself once it has decided the call is allowed.
type FieldInterceptor func(source Source, obj *registry.Node, fieldNumber uint16, args []any) error

// NewEngine builds an Engine bound to reg. reservedSpecialRange is the
// first class number (10 per the wire format); callers register
// special handlers with OnSpecial before calling Run.
func NewEngine(reg *registry.Registry, reservedSpecialRange uint16) *Engine {
	return &Engine{
		Registry:             reg,
		ReservedSpecialRange: reservedSpecialRange,
		objects:              make(map[wire.ObjectID]*registry.Node),
		specials:             make(map[SpecialMessage]SpecialHandler),
		inbound:              make(chan inboundMessage, 256),
	}
}

// OnSpecial registers the handler invoked for a given special message.
func (e *Engine) OnSpecial(msg SpecialMessage, fn SpecialHandler) {
	e.specials[msg] = fn
}

// OnUnknownObject sets the handler for class-addressed datagrams whose
// object id is not yet in the table.
func (e *Engine) OnUnknownObject(fn UnknownObjectHandler) {
	e.onUnknownObject = fn
}

// OnFieldCall installs a FieldInterceptor. Leave unset to dispatch
// directly to the node, as the client director does.
func (e *Engine) OnFieldCall(fn FieldInterceptor) {
	e.fieldInterceptor = fn
}

// Submit enqueues a received datagram for processing by Run. Safe to
// call from any per-connection reader goroutine.
func (e *Engine) Submit(source Source, payload []byte) {
	e.inbound <- inboundMessage{source: source, payload: payload}
}

// Track adds obj to the object table so future class-addressed
// datagrams for its OID resolve to it. Must only be called from the
// Run goroutine (i.e. from inside a special/field handler).
func (e *Engine) Track(obj *registry.Node) {
	e.objects[obj.OID] = obj
}

// Untrack removes oid from the object table.
func (e *Engine) Untrack(oid wire.ObjectID) {
	delete(e.objects, oid)
}

// Lookup returns the tracked node for oid, if any.
func (e *Engine) Lookup(oid wire.ObjectID) (*registry.Node, bool) {
	obj, ok := e.objects[oid]
	return obj, ok
}

// Run processes inbound datagrams until ctx is cancelled. It is the
// only goroutine that ever reads or writes the object table.
func (e *Engine) Run(ctx context.Context, onError func(source Source, err error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-e.inbound:
			if err := e.dispatch(msg.source, msg.payload); err != nil && onError != nil {
				onError(msg.source, err)
			}
		}
	}
}

func (e *Engine) dispatch(source Source, payload []byte) error {
	r := wire.NewReader(payload)
	msgType, err := r.ReadU16()
	if err != nil {
		return &ProtocolError{Reason: PartialRequest, Err: err}
	}

	if IsSpecial(msgType, e.ReservedSpecialRange) {
		handler, ok := e.specials[SpecialMessage(msgType)]
		if !ok {
			return &ProtocolError{Reason: InvalidMessage, Err: fmt.Errorf("no handler for special message %d", msgType)}
		}
		return handler(source, r)
	}

	classNumber := msgType
	oid, err := wire.UnpackObjectID(r)
	if err != nil {
		return &ProtocolError{Reason: InvalidObjectID, Err: err}
	}

	obj, ok := e.objects[oid]
	if !ok {
		if e.onUnknownObject != nil {
			return e.onUnknownObject(source, classNumber, oid, r)
		}
		return &ProtocolError{Reason: InvalidObjectID, Err: fmt.Errorf("unknown object %s", oid)}
	}
	if obj.Def.ClassNumber != classNumber {
		return &ProtocolError{Reason: InvalidMessage, Err: fmt.Errorf(
			"object %s: expected class %d, got %d", oid, obj.Def.ClassNumber, classNumber)}
	}

	fieldNumber, args, err := registry.DecompileField(r, obj.Def)
	if err != nil {
		return &ProtocolError{Reason: InvalidMessage, Err: err}
	}
	if e.fieldInterceptor != nil {
		return e.fieldInterceptor(source, obj, fieldNumber, args)
	}
	return obj.Dispatch(fieldNumber, args)
}
