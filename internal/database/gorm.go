package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MultiDragon/libpuns/pkg/config"
	"github.com/MultiDragon/libpuns/pkg/wire"
)

// accountOIDBase pushes every durable account id above the wire's
// magic tuple threshold so it always round-trips as a durable
// ObjectID regardless of how small the underlying account row id is.
const accountOIDBase uint32 = 1_000_000_000

// Store is the GORM-backed Interface implementation. It supports
// SQLite (via glebarez/sqlite, pure Go, no cgo) and Postgres (via
// jackc/pgx through gorm's postgres driver) behind the same code path.
type Store struct {
	db *gorm.DB
}

// Open connects to the database named by cfg, running AutoMigrate
// against AllModels when cfg.AutoMigrate is set.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		if dir := filepath.Dir(cfg.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("database: create sqlite directory: %w", err)
			}
		}
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("database: unsupported driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("database: open: %w", err)
	}

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(AllModels()...); err != nil {
			return nil, fmt.Errorf("database: automigrate: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying connection for admin tooling (user
// creation, schema inspection) that needs queries beyond Interface.
func (s *Store) DB() *gorm.DB { return s.db }

func oidToAccountID(oid wire.ObjectID) (uint32, error) {
	if !oid.Durable || oid.A < accountOIDBase {
		return 0, fmt.Errorf("database: %s is not a durable account id", oid)
	}
	return oid.A - accountOIDBase, nil
}

func accountIDToOID(id uint32) wire.ObjectID {
	return wire.NewDurableOID(accountOIDBase+id, 0, 0)
}

// AttemptLogin looks up login, verifies token against the stored
// bcrypt hash, and returns the account's durable object id.
func (s *Store) AttemptLogin(ctx context.Context, login, token string) (wire.ObjectID, error) {
	var account Account
	if err := s.db.WithContext(ctx).Where("login = ?", login).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return wire.ObjectID{}, ErrInvalidLogin
		}
		return wire.ObjectID{}, fmt.Errorf("database: lookup account: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.TokenHash), []byte(token)); err != nil {
		return wire.ObjectID{}, ErrInvalidLogin
	}
	return accountIDToOID(account.ID), nil
}

// UpdateObject persists one field's decoded arguments as JSON, upserting
// on the (oid, field) unique index.
func (s *Store) UpdateObject(ctx context.Context, oid wire.ObjectID, field string, args []any) error {
	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("database: marshal %s.%s: %w", oid, field, err)
	}

	row := ObjectField{OIDHigh: oid.A, OIDMid: oid.B, OIDLow: oid.C, Field: field, ValueJSON: payload}
	return s.db.WithContext(ctx).
		Where("oid_high = ? AND oid_mid = ? AND oid_low = ? AND field = ?", oid.A, oid.B, oid.C, field).
		Assign(ObjectField{ValueJSON: payload}).
		FirstOrCreate(&row).Error
}

// CreateAccount inserts a new account with token hashed via bcrypt,
// returning its durable object id. Used by the admin CLI and tests,
// not by the wire protocol itself.
func (s *Store) CreateAccount(ctx context.Context, login, token string) (wire.ObjectID, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return wire.ObjectID{}, fmt.Errorf("database: hash token: %w", err)
	}
	account := Account{Login: login, TokenHash: string(hash)}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		return wire.ObjectID{}, fmt.Errorf("database: create account: %w", err)
	}
	return accountIDToOID(account.ID), nil
}

// AccountSummary is the subset of an Account's columns safe to print
// (no TokenHash).
type AccountSummary struct {
	OID       wire.ObjectID
	Login     string
	CreatedAt time.Time
}

// ListAccounts returns every account ordered by creation time, for the
// admin CLI's "accounts list".
func (s *Store) ListAccounts(ctx context.Context) ([]AccountSummary, error) {
	var accounts []Account
	if err := s.db.WithContext(ctx).Order("created_at").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("database: list accounts: %w", err)
	}
	summaries := make([]AccountSummary, len(accounts))
	for i, a := range accounts {
		summaries[i] = AccountSummary{OID: accountIDToOID(a.ID), Login: a.Login, CreatedAt: a.CreatedAt}
	}
	return summaries, nil
}
