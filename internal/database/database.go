// Package database implements the account store behind
// attempt_login/update_object: a dummy in-memory backend for local
// development and examples, and a GORM-backed backend (SQLite or
// Postgres, per pkg/config) for anything meant to survive a restart.
package database

import (
	"context"
	"errors"

	"github.com/MultiDragon/libpuns/pkg/wire"
)

// ErrInvalidLogin is returned by Interface.AttemptLogin when the
// login/token pair does not match a known account. It is not itself a
// protocol error — the caller turns it into a KickReason.
var ErrInvalidLogin = errors.New("database: invalid login or token")

// Interface is the account store every server director is built
// against. AttemptLogin resolves credentials to an ObjectID (durable
// for Store, transient for Dummy);
// UpdateObject persists one field of one object's last-known value for
// fields flagged Database in the registry.
type Interface interface {
	AttemptLogin(ctx context.Context, login, token string) (wire.ObjectID, error)
	UpdateObject(ctx context.Context, oid wire.ObjectID, field string, args []any) error
}
