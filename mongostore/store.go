// Package mongostore implements the membership store on MongoDB.
//
// Documents are mapped through the bson tags on the membership models.
// Collection names and indexes are managed in ensureIndexes.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	membership "github.com/goliatone/go-membership"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	ColApplications = "membership_applications"
	ColAccounts     = "accounts"
	ColContacts     = "contact_messages"
)

// Store implements membership.Store on MongoDB
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger membership.Logger

	applications *applications
	accounts     *accounts
	contacts     *contacts
}

var _ membership.Store = (*Store)(nil)

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used for index warnings
func WithLogger(logger membership.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore connects to uri and uses database dbName.
func NewStore(ctx context.Context, uri, dbName string, opts ...Option) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect failed: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ping failed: %w", err)
	}

	s := &Store{client: client, db: client.Database(dbName)}
	for _, opt := range opts {
		opt(s)
	}
	s.applications = &applications{col: s.col(ColApplications)}
	s.accounts = &accounts{col: s.col(ColAccounts)}
	s.contacts = &contacts{col: s.col(ColContacts)}

	if err := s.ensureIndexes(ctx); err != nil {
		// the unique email index backs duplicate detection, fail loudly
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return s, nil
}

// Close disconnects the client
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	type idx struct {
		col    string
		keys   bson.D
		unique bool
	}

	indexes := []idx{
		{ColApplications, bson.D{{Key: "email", Value: 1}, {Key: "created_at", Value: -1}}, false},
		{ColApplications, bson.D{{Key: "membership_status", Value: 1}}, false},

		{ColAccounts, bson.D{{Key: "email", Value: 1}}, true},
		{ColAccounts, bson.D{{Key: "setup_token", Value: 1}}, false},
		{ColAccounts, bson.D{{Key: "reset_token", Value: 1}}, false},

		{ColContacts, bson.D{{Key: "created_at", Value: -1}}, false},
	}

	for _, i := range indexes {
		model := mongo.IndexModel{Keys: i.keys}
		if i.unique {
			model.Options = options.Index().SetUnique(true)
		}
		if _, err := s.col(i.col).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("mongostore: create index on %s: %w", i.col, err)
		}
	}

	return nil
}

func (s *Store) Validate() error {
	if s.client == nil || s.db == nil {
		return errors.New("mongostore client should be initialized")
	}
	if s.applications == nil || s.accounts == nil || s.contacts == nil {
		return errors.New("mongostore collections should be initialized")
	}
	return nil
}

func (s *Store) MustValidate() {
	if err := s.Validate(); err != nil {
		panic(err)
	}
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
