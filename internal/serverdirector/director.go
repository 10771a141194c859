// Package serverdirector implements the authoritative side of the
// protocol: accepting connections, gating logins against the signature
// hash and database, tracking zone membership, permission-checking
// every field update, and fanning broadcasts out to a zone.
package serverdirector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/MultiDragon/libpuns/internal/database"
	"github.com/MultiDragon/libpuns/internal/director"
	"github.com/MultiDragon/libpuns/internal/logger"
	"github.com/MultiDragon/libpuns/pkg/metrics"
	"github.com/MultiDragon/libpuns/pkg/registry"
	"github.com/MultiDragon/libpuns/pkg/wire"
)

// Director is the server side message director. One instance handles
// every connected client for a process.
type Director struct {
	reg          *registry.Registry
	engine       *director.Engine
	db           database.Interface
	mem          *memoryHandler
	playerClass  uint16
	signature    [32]byte

	mu         sync.Mutex
	partial    map[*conn]struct{}
	identified map[wire.ObjectID]*conn
	zoneOf     map[wire.ObjectID]uint32
	zoneMembers map[uint32]map[wire.ObjectID]struct{}

	listener net.Listener
	wg       sync.WaitGroup
}

// New builds a Director bound to reg (already Configure'd and Frozen)
// and playerClass, the class number assigned to a freshly logged-in
// connection's node. The query_memory snapshot cache is the default
// in-process map; use NewWithCache for a restart-surviving one.
func New(reg *registry.Registry, db database.Interface, playerClass uint16) *Director {
	return NewWithCache(reg, db, playerClass, newMemoryCache())
}

// NewWithCache is New with an explicit snapshotCache, e.g. a
// BadgerSnapshotCache opened from CacheConfig.Driver="badger".
func NewWithCache(reg *registry.Registry, db database.Interface, playerClass uint16, cache snapshotCache) *Director {
	d := &Director{
		reg:         reg,
		db:          db,
		mem:         newMemoryHandlerWithCache(db, cache),
		playerClass: playerClass,
		signature:   reg.Signature(),
		partial:     make(map[*conn]struct{}),
		identified:  make(map[wire.ObjectID]*conn),
		zoneOf:      make(map[wire.ObjectID]uint32),
		zoneMembers: make(map[uint32]map[wire.ObjectID]struct{}),
	}

	d.engine = director.NewEngine(reg, 10)
	d.engine.OnSpecial(director.ConnectionRequest, d.handleConnectionRequest)
	d.engine.OnSpecial(director.ZoneRequest, d.handleZoneRequest)
	d.engine.OnSpecial(director.ObjectRequest, d.handleObjectRequest)
	d.engine.OnFieldCall(d.interceptFieldCall)
	d.engine.OnUnknownObject(d.handleUnknownObject)

	return d
}

// Serve accepts connections on addr until ctx is cancelled.
func (d *Director) Serve(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("serverdirector: listen %s: %w", addr, err)
	}
	d.listener = listener
	logger.Info("server director listening", "addr", addr)

	engineCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go d.engine.Run(engineCtx, d.handleDispatchError)

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		netConn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				d.wg.Wait()
				return nil
			default:
				return fmt.Errorf("serverdirector: accept: %w", err)
			}
		}

		metrics.ConnectionAccepted()
		c := newConn(netConn)
		d.mu.Lock()
		d.partial[c] = struct{}{}
		d.mu.Unlock()

		d.wg.Add(1)
		go d.readLoop(ctx, c)
	}
}

// Close releases the snapshot cache, if it needs releasing (e.g. a
// BadgerSnapshotCache's file handles). Call after Serve returns.
func (d *Director) Close() error {
	if closer, ok := d.mem.cache.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (d *Director) readLoop(ctx context.Context, c *conn) {
	defer d.wg.Done()
	defer d.dropConnection(c)

	for {
		payload, err := director.ReadFrame(c.Conn)
		if err != nil {
			return
		}
		d.engine.Submit(c, payload)
	}
}

func (d *Director) handleDispatchError(source director.Source, err error) {
	c, _ := source.(*conn)
	var perr *director.ProtocolError
	if asProtocolError(err, &perr) {
		d.eject(c, perr.Reason)
		return
	}
	logger.Warn("serverdirector: dispatch error", "error", err)
}

func asProtocolError(err error, target **director.ProtocolError) bool {
	pe, ok := err.(*director.ProtocolError)
	if ok {
		*target = pe
	}
	return ok
}

func (d *Director) dropConnection(c *conn) {
	d.mu.Lock()
	delete(d.partial, c)
	if c.state != statePartial {
		delete(d.identified, c.oid)
		d.removeFromZoneLocked(c.oid)
	}
	d.mu.Unlock()
	metrics.ConnectionEjected("disconnect")
	_ = c.Conn.Close()
}

func (d *Director) removeFromZoneLocked(oid wire.ObjectID) {
	zone, ok := d.zoneOf[oid]
	if !ok {
		return
	}
	delete(d.zoneOf, oid)
	if members, ok := d.zoneMembers[zone]; ok {
		delete(members, oid)
	}
}

// eject sends a Disconnect datagram and tears the connection down.
func (d *Director) eject(c *conn, reason director.KickReason) {
	if c == nil {
		return
	}
	logger.Warn("serverdirector: ejecting client", "reason", reason.String())
	metrics.ConnectionEjected(reason.String())

	w := wire.NewWriter()
	w.WriteU16(uint16(director.Disconnect))
	w.WriteU8(uint8(reason))
	_ = c.send(w.Bytes())
	_ = c.Conn.Close()
}

// Signature returns the frozen class registry's signature hash, for
// the control plane's registry-compatibility endpoint.
func (d *Director) Signature() [32]byte {
	return d.signature
}

// ZoneOccupancy returns the current member count of every non-empty
// zone, for the control plane's zone introspection endpoint.
func (d *Director) ZoneOccupancy() map[uint32]int {
	d.mu.Lock()
	defer d.mu.Unlock()

	occupancy := make(map[uint32]int, len(d.zoneMembers))
	for zone, members := range d.zoneMembers {
		if len(members) > 0 {
			occupancy[zone] = len(members)
		}
	}
	return occupancy
}

// ConnectedAccounts returns the object id of every fully logged-in
// connection, for the control plane's connected-accounts endpoint.
func (d *Director) ConnectedAccounts() []wire.ObjectID {
	d.mu.Lock()
	defer d.mu.Unlock()

	oids := make([]wire.ObjectID, 0, len(d.identified))
	for oid := range d.identified {
		oids = append(oids, oid)
	}
	return oids
}

// Kick ejects the connection identified by oid with reason, for the
// control plane's live-kick endpoint. Returns an error if oid is not
// currently connected.
func (d *Director) Kick(oid wire.ObjectID, reason director.KickReason) error {
	d.mu.Lock()
	c, ok := d.identified[oid]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("serverdirector: %s is not connected", oid)
	}
	d.eject(c, reason)
	return nil
}

// Snapshot returns the last-known value of every RAM/Database-flagged
// field cached for oid, for the S3 archiver's point-in-time dumps. A
// nil result means nothing has been cached for oid yet.
func (d *Director) Snapshot(oid wire.ObjectID) map[string][]any {
	return d.mem.cache.snapshot(oid)
}

// SendDatagramTo implements registry.Director for application-level
// Node.SendUpdate calls: a Broadcast-flagged field fans out to the
// sender's zone, everything else unicasts to the addressed object's
// connection. Both paths require the object to have joined a zone.
func (d *Director) SendDatagramTo(target wire.ObjectID, flags registry.Flags, payload []byte, opts registry.SendOptions) error {
	return d.sendToObject(target, flags, payload, opts, false)
}

func (d *Director) sendToObject(target wire.ObjectID, flags registry.Flags, payload []byte, opts registry.SendOptions, bypassZone bool) error {
	d.mu.Lock()
	zone, zoned := d.zoneOf[target]
	d.mu.Unlock()

	if !bypassZone && !zoned {
		logger.Warn("serverdirector: send to object without a zone", "oid", target.String())
		d.mu.Lock()
		c := d.identified[target]
		d.mu.Unlock()
		d.eject(c, director.PartialRequest)
		return fmt.Errorf("serverdirector: object %s has no zone", target)
	}

	if flags.HasAny(registry.Broadcast) {
		var ignore *wire.ObjectID
		if opts.BroadcastIgnore != nil {
			ignore = opts.BroadcastIgnore
		}
		d.broadcastToZone(zone, payload, ignore)
		return nil
	}

	d.mu.Lock()
	c := d.identified[target]
	d.mu.Unlock()
	if c == nil {
		return fmt.Errorf("serverdirector: object %s has no active connection", target)
	}
	return c.send(payload)
}

func (d *Director) broadcastToZone(zone uint32, payload []byte, ignore *wire.ObjectID) {
	d.mu.Lock()
	members := make([]wire.ObjectID, 0, len(d.zoneMembers[zone]))
	for oid := range d.zoneMembers[zone] {
		if ignore != nil && oid == *ignore {
			continue
		}
		members = append(members, oid)
	}
	conns := make([]*conn, 0, len(members))
	for _, oid := range members {
		if c := d.identified[oid]; c != nil {
			conns = append(conns, c)
		}
	}
	d.mu.Unlock()

	metrics.BroadcastFanout(len(conns))
	for _, c := range conns {
		_ = c.send(payload)
	}
}

// transferOwner assigns obj's owner and notifies newOwner directly,
// bypassing the zone requirement since ownership is often assigned
// moments after login, before a ZoneRequest has landed.
func (d *Director) transferOwner(obj *registry.Node, newOwner wire.ObjectID) {
	obj.Owner = &newOwner

	w := wire.NewWriter()
	w.WriteU16(uint16(director.TransferOwner))
	wire.PackObjectID(w, obj.OID)
	_ = d.sendToObject(newOwner, 0, w.Bytes(), registry.SendOptions{}, true)
}

func (d *Director) handleUnknownObject(source director.Source, classNumber uint16, oid wire.ObjectID, r *wire.Reader) error {
	return &director.ProtocolError{Reason: director.InvalidObjectID, Err: fmt.Errorf("unknown object %s", oid)}
}

// interceptFieldCall is the server's permission gate: ClientSend
// always allowed, OwnerSend only from the node's recorded owner.
// RAM-flagged fields are cached for future snapshots; Database-flagged
// fields additionally write through.
func (d *Director) interceptFieldCall(source director.Source, obj *registry.Node, fieldNumber uint16, args []any) error {
	c, _ := source.(*conn)
	field, _ := obj.Def.FieldByNumber(fieldNumber)

	if c == nil || c.state == statePartial {
		return &director.ProtocolError{Reason: director.PartialRequest, Err: fmt.Errorf("field call before login")}
	}

	allowed := field.Flags.Has(registry.ClientSend) ||
		(field.Flags.Has(registry.OwnerSend) && obj.Owner != nil && *obj.Owner == c.oid)
	if !allowed {
		metrics.PermissionDenied()
		return &director.ProtocolError{Reason: director.PermissionDenied, Err: fmt.Errorf("field %q denied to %s", field.Name, c.oid)}
	}

	if field.Flags.ImpliesRAM() {
		if err := d.mem.setData(context.Background(), obj.OID, field.Name, args, field.Flags.Has(registry.Database)); err != nil {
			logger.Warn("serverdirector: database write-through failed", "field", field.Name, "error", err)
		}
	}

	metrics.ObjectUpdate(obj.Def.ClassNumber, field.Name)
	return obj.Dispatch(fieldNumber, args)
}

func (d *Director) handleConnectionRequest(source director.Source, r *wire.Reader) error {
	c := source.(*conn)
	if c.state != statePartial {
		d.eject(c, director.InvalidConnectionRequest)
		return nil
	}

	signature, err := r.ReadBytes(32)
	if err != nil {
		return &director.ProtocolError{Reason: director.InvalidConnectionRequest, Err: err}
	}
	login, err := r.ReadString()
	if err != nil {
		return &director.ProtocolError{Reason: director.InvalidConnectionRequest, Err: err}
	}
	token, err := r.ReadString()
	if err != nil {
		return &director.ProtocolError{Reason: director.InvalidConnectionRequest, Err: err}
	}

	if !bytes.Equal(signature, d.signature[:]) {
		d.eject(c, director.InvalidSignature)
		return nil
	}

	oid, err := d.db.AttemptLogin(context.Background(), login, token)
	if err != nil {
		d.eject(c, director.InvalidLogin)
		return nil
	}

	d.mu.Lock()
	if existing, ok := d.identified[oid]; ok {
		d.mu.Unlock()
		d.eject(existing, director.DoubleLogin)
		d.mu.Lock()
	}
	delete(d.partial, c)
	c.state = stateIdentified
	c.oid = oid
	d.identified[oid] = c
	d.mu.Unlock()

	node, err := d.reg.NewServerNode(d, oid, d.playerClass)
	if err != nil {
		d.eject(c, director.InvalidConnectionRequest)
		return nil
	}
	d.engine.Track(node)
	d.transferOwner(node, oid)

	w := wire.NewWriter()
	w.WriteU16(uint16(director.ConnectionResponse))
	wire.PackObjectID(w, oid)
	w.WriteU32(0)
	return c.send(w.Bytes())
}

func (d *Director) handleZoneRequest(source director.Source, r *wire.Reader) error {
	c := source.(*conn)
	if c.state == statePartial {
		d.eject(c, director.PartialRequest)
		return nil
	}

	zone, err := r.ReadU32()
	if err != nil {
		return &director.ProtocolError{Reason: director.InvalidMessage, Err: err}
	}

	d.mu.Lock()
	d.removeFromZoneLocked(c.oid)
	c.zone = zone
	c.state = stateZoned
	d.zoneOf[c.oid] = zone
	if d.zoneMembers[zone] == nil {
		d.zoneMembers[zone] = make(map[wire.ObjectID]struct{})
	}
	d.mu.Unlock()

	w := wire.NewWriter()
	w.WriteU16(uint16(director.ZoneResponse))
	w.WriteU32(zone)
	if err := c.send(w.Bytes()); err != nil {
		return err
	}

	node, _ := d.engine.Lookup(c.oid)
	d.generateWithZone(node, zone)
	metrics.SetZonePopulation(zone, len(d.zoneMembers[zone]))
	return nil
}

// generateWithZone announces node to its new zone's existing members
// and sends node a ZoneData snapshot of those members, then records
// node as a member itself.
func (d *Director) generateWithZone(node *registry.Node, zone uint32) {
	announce, err := d.compileObjectResponse(node)
	if err != nil {
		logger.Warn("serverdirector: compile object response", "error", err)
		return
	}
	d.broadcastToZone(zone, announce, nil)

	d.mu.Lock()
	members := make([]wire.ObjectID, 0, len(d.zoneMembers[zone]))
	for oid := range d.zoneMembers[zone] {
		members = append(members, oid)
	}
	d.mu.Unlock()

	w := wire.NewWriter()
	w.WriteU16(uint16(director.ZoneData))
	w.WriteU32(zone)
	w.WriteU16(uint16(len(members)))
	for _, oid := range members {
		obj, ok := d.engine.Lookup(oid)
		if !ok {
			continue
		}
		wire.PackObjectID(w, oid)
		w.WriteU16(obj.Def.ClassNumber)
		d.appendSnapshot(w, obj)
	}

	d.mu.Lock()
	d.zoneMembers[zone][node.OID] = struct{}{}
	c := d.identified[node.OID]
	d.mu.Unlock()

	if c != nil {
		_ = c.send(w.Bytes())
	}
}

func (d *Director) handleObjectRequest(source director.Source, r *wire.Reader) error {
	c := source.(*conn)
	if c.state != stateZoned {
		d.eject(c, director.PartialRequest)
		return nil
	}

	oid, err := wire.UnpackObjectID(r)
	if err != nil {
		return &director.ProtocolError{Reason: director.InvalidObjectID, Err: err}
	}

	d.mu.Lock()
	zone, zoneOK := d.zoneOf[oid]
	reqZone, reqOK := d.zoneOf[c.oid]
	d.mu.Unlock()
	sameZone := zoneOK && reqOK && zone == reqZone
	if !sameZone {
		d.eject(c, director.HiddenZone)
		return nil
	}

	obj, ok := d.engine.Lookup(oid)
	if !ok {
		return &director.ProtocolError{Reason: director.InvalidObjectID, Err: fmt.Errorf("object %s not found", oid)}
	}
	payload, err := d.compileObjectResponse(obj)
	if err != nil {
		return err
	}
	return c.send(payload)
}

func (d *Director) compileObjectResponse(obj *registry.Node) ([]byte, error) {
	w := wire.NewWriter()
	w.WriteU16(uint16(director.ObjectResponse))
	wire.PackObjectID(w, obj.OID)
	w.WriteU16(obj.Def.ClassNumber)
	d.appendSnapshot(w, obj)
	return w.Bytes(), nil
}

func (d *Director) appendSnapshot(w *wire.Writer, obj *registry.Node) {
	fields := d.mem.packObject(obj)
	w.WriteU16(uint16(len(fields)))
	for _, f := range fields {
		def, _ := obj.Def.FieldByNumber(f.number)
		_ = registry.CompileField(w, f.number, def.Packers, f.args)
	}
}
