package commands

import (
	"github.com/MultiDragon/libpuns/pkg/registry"
	"github.com/MultiDragon/libpuns/pkg/wire"
)

// avatarClass is the class number assigned to every logged-in
// connection's node in the bundled demo registry. Application
// embedders configure their own registry instead of this one; this is
// what `libpuns serve`/`libpuns client` use out of the box so the CLI
// is runnable without writing Go.
const avatarClass uint16 = 10

// buildDemoRegistry configures the single "chat avatar" class used by
// the bundled serve/client commands: a broadcast chat message and a
// display name, both cached in the server's memory handler so late
// joiners see the most recent values.
func buildDemoRegistry() (*registry.Registry, error) {
	reg := registry.New()
	err := reg.Configure(avatarClass, []registry.FieldDef{
		{
			Name:    "setName",
			Flags:   registry.ClientSend | registry.RAM,
			Packers: []wire.Packer{wire.String{}},
			Default: []any{"anonymous"},
		},
		{
			Name:    "setMessage",
			Flags:   registry.ClientSend | registry.Broadcast | registry.RAM,
			Packers: []wire.Packer{wire.String{}},
			Default: []any{""},
		},
	})
	if err != nil {
		return nil, err
	}
	reg.Freeze()
	return reg, nil
}
