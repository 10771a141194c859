package serverdirector

import (
	"context"
	"testing"

	"github.com/MultiDragon/libpuns/internal/database"
	"github.com/MultiDragon/libpuns/pkg/registry"
	"github.com/MultiDragon/libpuns/pkg/wire"
)

func testClassDef(t *testing.T) (*registry.Registry, *registry.ClassDef) {
	t.Helper()
	reg := registry.New()
	if err := reg.Configure(10, []registry.FieldDef{
		{Name: "setName", Flags: registry.ClientSend | registry.RAM, Packers: []wire.Packer{wire.String{}}},
		{Name: "setHP", Flags: registry.OwnerSend | registry.RAM | registry.Required, Packers: []wire.Packer{wire.Int32{}}},
	}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	def, _ := reg.Lookup(10)
	return reg, def
}

func TestPackObjectUsesCachedValueWhenPresent(t *testing.T) {
	_, def := testClassDef(t)
	mem := newMemoryHandler(database.NewDummy(nil))

	node := registry.NewNode(noopDirector{}, wire.NewTransientOID(1), def)
	if err := mem.setData(context.Background(), node.OID, "setName", []any{"zone-chat"}, false); err != nil {
		t.Fatalf("setData: %v", err)
	}

	snapshot := mem.packObject(node)
	if len(snapshot) != 1 || snapshot[0].name != "setName" {
		t.Fatalf("snapshot = %+v, want one setName entry", snapshot)
	}
}

func TestPackObjectInvokesAccessorForRequiredFieldWithNoCachedValue(t *testing.T) {
	_, def := testClassDef(t)
	mem := newMemoryHandler(database.NewDummy(nil))

	node := registry.NewNode(noopDirector{}, wire.NewTransientOID(1), def)
	called := false
	if err := node.Require("setHP", func() []any {
		called = true
		return []any{int32(100)}
	}); err != nil {
		t.Fatalf("Require: %v", err)
	}

	snapshot := mem.packObject(node)
	var hp fieldSnapshot
	found := false
	for _, f := range snapshot {
		if f.name == "setHP" {
			hp = f
			found = true
		}
	}
	if !found {
		t.Fatal("expected setHP in snapshot")
	}
	if !called {
		t.Fatal("expected the accessor to be invoked, not just referenced")
	}
	if hp.args[0] != int32(100) {
		t.Fatalf("hp.args = %v, want [100]", hp.args)
	}
}

func TestPackObjectOmitsRequiredFieldWithNoCacheNoDefaultNoAccessor(t *testing.T) {
	_, def := testClassDef(t)
	mem := newMemoryHandler(database.NewDummy(nil))
	node := registry.NewNode(noopDirector{}, wire.NewTransientOID(1), def)

	snapshot := mem.packObject(node)
	for _, f := range snapshot {
		if f.name == "setHP" {
			t.Fatal("did not expect setHP without a cached value, default, or accessor")
		}
	}
}

type noopDirector struct{}

func (noopDirector) SendDatagramTo(target wire.ObjectID, flags registry.Flags, payload []byte, opts registry.SendOptions) error {
	return nil
}
