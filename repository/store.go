package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	membership "github.com/goliatone/go-membership"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Store is the SQL backed membership store.
type Store struct {
	db           *bun.DB
	applications *ApplicationRepository
	accounts     *AccountRepository
	contacts     *ContactRepository
}

var _ membership.Store = (*Store)(nil)

// NewStore wraps db with the membership repositories
func NewStore(db *bun.DB) *Store {
	return &Store{
		db:           db,
		applications: NewApplicationRepository(db),
		accounts:     NewAccountRepository(db),
		contacts:     NewContactRepository(db),
	}
}

// Open connects to a sqlite or postgres database.
func Open(driver, dsn string) (*bun.DB, error) {
	sqldb, dialect, err := openSQL(driver, dsn)
	if err != nil {
		return nil, err
	}
	return bun.NewDB(sqldb, dialect), nil
}

// Connect opens the configured database through a go-persistence-bun
// client, which pings it and installs the query debug hooks, and returns a
// store on top of the client's bun.DB.
func Connect(cfg persistence.Config) (*Store, error) {
	sqldb, dialect, err := openSQL(cfg.GetDriver(), cfg.GetServer())
	if err != nil {
		return nil, err
	}

	persistence.RegisterModel(
		(*membership.Application)(nil),
		(*membership.Account)(nil),
		(*membership.ContactMessage)(nil),
	)

	client, err := persistence.New(cfg, sqldb, dialect)
	if err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	db, ok := client.DB().(*bun.DB)
	if !ok {
		_ = sqldb.Close()
		return nil, errors.New("persistence client did not return a *bun.DB")
	}
	return NewStore(db), nil
}

func openSQL(driver, dsn string) (*sql.DB, schema.Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "sqlite3":
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, nil, err
		}
		// sqlite serializes writers, one connection keeps :memory: databases alive too
		sqldb.SetMaxOpenConns(1)
		return sqldb, sqlitedialect.New(), nil
	case "postgres", "pg", "pgx":
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, nil, err
		}
		return sqldb, pgdialect.New(), nil
	}
	return nil, nil, fmt.Errorf("unsupported sql driver %q", driver)
}

// modelHandlers adapts models keyed by UUID text to the generic repository.
// Records without a valid UUID get a fresh one on create.
func modelHandlers[T any](newRecord func() T, id func(T) *string, identifier string) repository.ModelHandlers[T] {
	return repository.ModelHandlers[T]{
		NewRecord: newRecord,
		GetID: func(record T) uuid.UUID {
			ptr := id(record)
			if ptr == nil {
				return uuid.Nil
			}
			parsed, err := uuid.Parse(*ptr)
			if err != nil {
				return uuid.Nil
			}
			return parsed
		},
		SetID: func(record T, value uuid.UUID) {
			if ptr := id(record); ptr != nil {
				*ptr = value.String()
			}
		},
		GetIdentifier: func() string {
			return identifier
		},
	}
}

func (s *Store) Validate() error {
	if s.db == nil {
		return errors.New("repository db should be initialized")
	}

	if s.applications == nil {
		return errors.New("repository applications should be initialized")
	}

	if s.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if s.contacts == nil {
		return errors.New("repository contacts should be initialized")
	}

	return nil
}

func (s *Store) MustValidate() {
	if err := s.Validate(); err != nil {
		log.Panic(err)
	}
}

// EnsureSchema creates the tables and indexes if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	models := []any{
		(*membership.Application)(nil),
		(*membership.Account)(nil),
		(*membership.ContactMessage)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	_, err := s.db.NewCreateIndex().
		Model((*membership.Account)(nil)).
		Index("accounts_email_uidx").
		Unique().
		Column("email").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create accounts email index: %w", err)
	}

	_, err = s.db.NewCreateIndex().
		Model((*membership.Application)(nil)).
		Index("membership_applications_email_idx").
		Column("email", "created_at").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create applications email index: %w", err)
	}

	return nil
}

func (s *Store) DB() *bun.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Applications() membership.Applications {
	return s.applications
}

func (s *Store) Accounts() membership.Accounts {
	return s.accounts
}

func (s *Store) Contacts() membership.Contacts {
	return s.contacts
}
