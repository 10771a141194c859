// Package clientdirector implements the connecting side of the
// protocol: the login handshake, the zone join, an on-demand object
// cache with a deduplicated fetch-request timer, and delivery of
// decoded field calls to application-registered node handlers.
package clientdirector

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/MultiDragon/libpuns/internal/director"
	"github.com/MultiDragon/libpuns/internal/logger"
	"github.com/MultiDragon/libpuns/pkg/registry"
	"github.com/MultiDragon/libpuns/pkg/wire"
)

// disconnectionReasons renders a KickReason the way a human reads it,
// once the client director receives one from the server.
var disconnectionReasons = map[director.KickReason]string{
	director.InvalidSignature:         "Outdated client signature",
	director.InvalidObjectID:          "Created a clientside object",
	director.InvalidConnectionRequest: "Attempted to login before the connection was established",
	director.InvalidMessage:           "Error while parsing a datagram",
	director.PartialRequest:           "Started doing requests before the connection was established",
	director.HiddenZone:               "Requested an object from the hidden zone",
	director.PermissionDenied:         "Attempt to edit a readonly field",
	director.InvalidLogin:             "Incorrect login or token",
	director.DoubleLogin:              "Logged in from another place",
}

// Director is the client side message director. One instance manages
// exactly one server connection and the object cache seen through it.
type Director struct {
	reg         *registry.Registry
	engine      *director.Engine
	playerClass uint16
	dedupWindow time.Duration
	signature   [32]byte

	onConnect    func(avatar *registry.Node)
	onDisconnect func(reason director.KickReason)

	conn   net.Conn
	avatar *registry.Node
	zone   uint32
	joined bool

	mu        sync.Mutex
	requested map[wire.ObjectID]*time.Timer

	wg sync.WaitGroup
}

// New builds a Director bound to reg (already Configure'd and Frozen).
// playerClass is the class number the server assigns to the logged-in
// avatar; onConnect fires exactly once, after the first ZoneResponse,
// with the avatar node ready to use.
func New(reg *registry.Registry, playerClass uint16, dedupWindow time.Duration, onConnect func(*registry.Node)) *Director {
	d := &Director{
		reg:         reg,
		playerClass: playerClass,
		dedupWindow: dedupWindow,
		signature:   reg.Signature(),
		onConnect:   onConnect,
		requested:   make(map[wire.ObjectID]*time.Timer),
	}

	d.engine = director.NewEngine(reg, 10)
	d.engine.OnSpecial(director.ConnectionResponse, d.handleConnectionResponse)
	d.engine.OnSpecial(director.Disconnect, d.handleDisconnect)
	d.engine.OnSpecial(director.ZoneResponse, d.handleZoneResponse)
	d.engine.OnSpecial(director.ObjectResponse, d.handleObjectResponse)
	d.engine.OnSpecial(director.TransferOwner, d.handleTransferOwner)
	d.engine.OnSpecial(director.ZoneData, d.handleZoneData)
	d.engine.OnUnknownObject(d.handleUnknownObject)

	return d
}

// OnDisconnect registers a callback fired when the server closes the
// connection or ejects it with a KickReason.
func (d *Director) OnDisconnect(fn func(reason director.KickReason)) {
	d.onDisconnect = fn
}

// Connect dials host, starts the reactor and the reader goroutine, and
// sends the ConnectionRequest handshake. It returns once the request
// has been written; the handshake itself completes asynchronously and
// is observed through onConnect.
func (d *Director) Connect(ctx context.Context, addr, login, token string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("clientdirector: dial %s: %w", addr, err)
	}
	d.conn = conn

	go d.engine.Run(ctx, d.handleDispatchError)
	d.wg.Add(1)
	go d.readLoop(ctx)

	w := wire.NewWriter()
	w.WriteU16(uint16(director.ConnectionRequest))
	w.WriteBlob(d.signature[:])
	if err := w.WriteString(login); err != nil {
		return err
	}
	if err := w.WriteString(token); err != nil {
		return err
	}
	return director.WriteFrame(d.conn, w.Bytes())
}

// Close closes the underlying connection and waits for the reader
// goroutine to exit.
func (d *Director) Close() error {
	err := d.conn.Close()
	d.wg.Wait()
	return err
}

func (d *Director) readLoop(ctx context.Context) {
	defer d.wg.Done()
	for {
		payload, err := director.ReadFrame(d.conn)
		if err != nil {
			return
		}
		d.engine.Submit(d.conn, payload)
	}
}

func (d *Director) handleDispatchError(source director.Source, err error) {
	logger.Warn("clientdirector: dispatch error", "error", err)
}

// SendDatagramTo implements registry.Director: the client has exactly
// one connection, so every Node.SendUpdate call writes straight to it
// regardless of flags — the server, not the client, enforces
// broadcast fan-out and ownership.
func (d *Director) SendDatagramTo(target wire.ObjectID, flags registry.Flags, payload []byte, opts registry.SendOptions) error {
	return director.WriteFrame(d.conn, payload)
}

func (d *Director) handleConnectionResponse(source director.Source, r *wire.Reader) error {
	oid, err := wire.UnpackObjectID(r)
	if err != nil {
		return err
	}
	zone, err := r.ReadU32()
	if err != nil {
		return err
	}

	avatar, err := d.reg.NewClientNode(d, oid, d.playerClass)
	if err != nil {
		return fmt.Errorf("clientdirector: instantiate avatar: %w", err)
	}
	d.avatar = avatar
	d.engine.Track(avatar)

	w := wire.NewWriter()
	w.WriteU16(uint16(director.ZoneRequest))
	w.WriteU32(zone)
	return director.WriteFrame(d.conn, w.Bytes())
}

func (d *Director) handleZoneResponse(source director.Source, r *wire.Reader) error {
	zone, err := r.ReadU32()
	if err != nil {
		return err
	}
	d.zone = zone
	if !d.joined {
		d.joined = true
		if d.onConnect != nil {
			d.onConnect(d.avatar)
		}
	}
	return nil
}

func (d *Director) handleDisconnect(source director.Source, r *wire.Reader) error {
	reasonByte, err := r.ReadU8()
	if err != nil {
		return err
	}
	reason := director.KickReason(reasonByte)
	logger.Warn("clientdirector: server requested disconnection", "reason", disconnectionReasons[reason])
	if d.onDisconnect != nil {
		d.onDisconnect(reason)
	}
	_ = d.conn.Close()
	return nil
}

// handleObjectResponse decodes one object's class number and field
// snapshot, installing a new node if this is the first time the oid
// has been seen (reusing the avatar node rather than shadowing it with
// a second instance when the oid matches).
func (d *Director) handleObjectResponse(source director.Source, r *wire.Reader) error {
	oid, err := wire.UnpackObjectID(r)
	if err != nil {
		return err
	}
	d.uncache(oid)

	classNumber, err := r.ReadU16()
	if err != nil {
		return err
	}

	obj, ok := d.engine.Lookup(oid)
	if !ok {
		if d.avatar != nil && oid == d.avatar.OID {
			obj = d.avatar
		} else {
			obj, err = d.reg.NewClientNode(d, oid, classNumber)
			if err != nil {
				return err
			}
		}
		d.engine.Track(obj)
	}

	fieldCount, err := r.ReadU16()
	if err != nil {
		return err
	}
	for i := uint16(0); i < fieldCount; i++ {
		fieldNumber, args, err := registry.DecompileField(r, obj.Def)
		if err != nil {
			return err
		}
		if err := obj.Dispatch(fieldNumber, args); err != nil {
			return err
		}
	}
	return nil
}

func (d *Director) handleZoneData(source director.Source, r *wire.Reader) error {
	zone, err := r.ReadU32()
	if err != nil {
		return err
	}
	d.zone = zone

	count, err := r.ReadU16()
	if err != nil {
		return err
	}
	for i := uint16(0); i < count; i++ {
		if err := d.handleObjectResponse(source, r); err != nil {
			return err
		}
	}
	return nil
}

func (d *Director) handleTransferOwner(source director.Source, r *wire.Reader) error {
	oid, err := wire.UnpackObjectID(r)
	if err != nil {
		return err
	}
	logger.Info("clientdirector: received control over node", "oid", oid.String())
	return nil
}

// handleUnknownObject fires when an incoming field call names an
// object we haven't cached yet: request it from the server, deduped
// for dedupWindow so a burst of updates for the same new object
// doesn't trigger a burst of ObjectRequests.
func (d *Director) handleUnknownObject(source director.Source, classNumber uint16, oid wire.ObjectID, r *wire.Reader) error {
	d.mu.Lock()
	_, pending := d.requested[oid]
	if pending {
		d.mu.Unlock()
		return nil
	}
	d.requested[oid] = time.AfterFunc(d.dedupWindow, func() { d.uncache(oid) })
	d.mu.Unlock()

	w := wire.NewWriter()
	w.WriteU16(uint16(director.ObjectRequest))
	wire.PackObjectID(w, oid)
	return director.WriteFrame(d.conn, w.Bytes())
}

func (d *Director) uncache(oid wire.ObjectID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if timer, ok := d.requested[oid]; ok {
		timer.Stop()
		delete(d.requested, oid)
	}
}
