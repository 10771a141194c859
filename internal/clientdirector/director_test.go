package clientdirector

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/MultiDragon/libpuns/internal/director"
	"github.com/MultiDragon/libpuns/pkg/registry"
	"github.com/MultiDragon/libpuns/pkg/wire"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	if err := reg.Configure(10, []registry.FieldDef{
		{Name: "setName", Flags: registry.ClientSend | registry.RAM, Packers: []wire.Packer{wire.String{}}},
	}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	reg.Freeze()
	return reg
}

// fakeServer hands the test a raw net.Conn standing in for the
// server's end of the socket, plus helpers to read/write frames on it.
func fakeServer(t *testing.T) (*Director, net.Conn) {
	t.Helper()
	client, server := net.Pipe()

	connected := make(chan *registry.Node, 1)
	d := New(testRegistry(t), 10, 50*time.Millisecond, func(avatar *registry.Node) {
		connected <- avatar
	})
	d.conn = client
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go d.engine.Run(ctx, func(source director.Source, err error) {})
	d.wg.Add(1)
	go d.readLoop(ctx)

	return d, server
}

func readFrame(t *testing.T, conn net.Conn) *wire.Reader {
	t.Helper()
	payload, err := director.ReadFrame(conn)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	return wire.NewReader(payload)
}

func TestHandshakeFlowsThroughZoneJoinToOnConnect(t *testing.T) {
	d, server := fakeServer(t)
	defer server.Close()

	avatarOID := wire.NewTransientOID(42)

	// Drive a ConnectionResponse as the server would, and expect the
	// client to answer with a ZoneRequest for the assigned zone.
	w := wire.NewWriter()
	w.WriteU16(uint16(director.ConnectionResponse))
	wire.PackObjectID(w, avatarOID)
	w.WriteU32(7)
	if err := director.WriteFrame(server, w.Bytes()); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	r := readFrame(t, server)
	msgType, _ := r.ReadU16()
	if director.SpecialMessage(msgType) != director.ZoneRequest {
		t.Fatalf("expected ZoneRequest, got %v", director.SpecialMessage(msgType))
	}
	zone, _ := r.ReadU32()
	if zone != 7 {
		t.Fatalf("zone = %d, want 7", zone)
	}

	// Now answer with ZoneResponse; onConnect should fire exactly once.
	zw := wire.NewWriter()
	zw.WriteU16(uint16(director.ZoneResponse))
	zw.WriteU32(7)
	if err := director.WriteFrame(server, zw.Bytes()); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	select {
	case avatar := <-connectedChan(d):
		if avatar.OID != avatarOID {
			t.Fatalf("avatar oid = %s, want %s", avatar.OID, avatarOID)
		}
	case <-time.After(time.Second):
		t.Fatal("onConnect never fired")
	}
}

// connectedChan lets the test observe the onConnect callback without
// threading a second channel through fakeServer's signature.
func connectedChan(d *Director) chan *registry.Node {
	ch := make(chan *registry.Node, 1)
	prev := d.onConnect
	d.onConnect = func(avatar *registry.Node) {
		if prev != nil {
			prev(avatar)
		}
		ch <- avatar
	}
	return ch
}

func TestObjectResponseDecodesFieldsOntoTrackedNode(t *testing.T) {
	d, server := fakeServer(t)
	defer server.Close()

	oid := wire.NewTransientOID(99)
	def, _ := d.reg.Lookup(10)
	num, _ := def.FieldNumber("setName")

	var got string
	node, err := d.reg.NewClientNode(d, oid, 10)
	if err != nil {
		t.Fatalf("NewClientNode: %v", err)
	}
	node.Handle("setName", func(args []any) error {
		got = args[0].(string)
		return nil
	})
	d.engine.Track(node)

	w := wire.NewWriter()
	w.WriteU16(uint16(director.ObjectResponse))
	wire.PackObjectID(w, oid)
	w.WriteU16(10)
	w.WriteU16(1)
	if err := registry.CompileField(w, num, []wire.Packer{wire.String{}}, []any{"zone-chat"}); err != nil {
		t.Fatalf("CompileField: %v", err)
	}
	if err := director.WriteFrame(server, w.Bytes()); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	waitFor(t, func() bool { return got == "zone-chat" })
}

func TestUnknownObjectTriggersDedupedObjectRequest(t *testing.T) {
	d, server := fakeServer(t)
	defer server.Close()

	oid := wire.NewTransientOID(5)
	def, _ := d.reg.Lookup(10)
	num, _ := def.FieldNumber("setName")

	payload, err := registry.CompileObjectUpdate(10, oid, num, []wire.Packer{wire.String{}}, []any{"hi"})
	if err != nil {
		t.Fatalf("CompileObjectUpdate: %v", err)
	}
	if err := director.WriteFrame(server, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	r := readFrame(t, server)
	msgType, _ := r.ReadU16()
	if director.SpecialMessage(msgType) != director.ObjectRequest {
		t.Fatalf("expected ObjectRequest, got %v", director.SpecialMessage(msgType))
	}
	requestedOID, err := wire.UnpackObjectID(r)
	if err != nil {
		t.Fatalf("UnpackObjectID: %v", err)
	}
	if requestedOID != oid {
		t.Fatalf("requested oid = %s, want %s", requestedOID, oid)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}
