package database

import "time"

// Account is a durable login credential backing attempt_login. The
// object id handed back on a successful login is derived from ID
// (offset by accountOIDBase), not stored in a column of its own.
type Account struct {
	ID        uint32 `gorm:"primaryKey;autoIncrement"`
	Login     string `gorm:"uniqueIndex;size:128;not null"`
	TokenHash string `gorm:"size:128;not null"`
	CreatedAt time.Time
}

// ObjectField is one durable field value persisted by UpdateObject for
// a Database-flagged field, keyed by the owning account's object id
// tuple and the field name.
type ObjectField struct {
	ID        uint32 `gorm:"primaryKey;autoIncrement"`
	OIDHigh   uint32 `gorm:"index:idx_object_field,unique"`
	OIDMid    uint32 `gorm:"index:idx_object_field,unique"`
	OIDLow    uint32 `gorm:"index:idx_object_field,unique"`
	Field     string `gorm:"size:64;index:idx_object_field,unique"`
	ValueJSON []byte `gorm:"type:text"`
	UpdatedAt time.Time
}

// AllModels lists every model AutoMigrate should create or update.
func AllModels() []any {
	return []any{&Account{}, &ObjectField{}}
}
