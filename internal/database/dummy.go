package database

import (
	"context"

	"github.com/MultiDragon/libpuns/pkg/wire"
)

// Dummy is a fixed two-account in-memory backend for local development
// and the bundled examples. UpdateObject persists nothing; it only
// calls the optional onUpdate callback.
type Dummy struct {
	onUpdate func(oid wire.ObjectID, field string, args []any)
}

// NewDummy returns a Dummy backend. onUpdate, if non-nil, is invoked
// for every UpdateObject call; with a nil onUpdate, UpdateObject does
// nothing. Tests use this to assert write-through without a real store.
func NewDummy(onUpdate func(oid wire.ObjectID, field string, args []any)) *Dummy {
	return &Dummy{onUpdate: onUpdate}
}

func (d *Dummy) AttemptLogin(ctx context.Context, login, token string) (wire.ObjectID, error) {
	switch {
	case login == "login" && token == "password":
		return wire.NewTransientOID(12345), nil
	case login == "login2" && token == "password2":
		return wire.NewTransientOID(23456), nil
	default:
		return wire.ObjectID{}, ErrInvalidLogin
	}
}

func (d *Dummy) UpdateObject(ctx context.Context, oid wire.ObjectID, field string, args []any) error {
	if d.onUpdate != nil {
		d.onUpdate(oid, field, args)
	}
	return nil
}
