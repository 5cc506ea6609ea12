package repository

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	membership "github.com/goliatone/go-membership"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// ContactRepository implements membership.Contacts using Bun.
type ContactRepository struct {
	repo repository.Repository[*membership.ContactMessage]
	db   *bun.DB
}

// NewContactRepository creates a new repository.
func NewContactRepository(db *bun.DB) *ContactRepository {
	return &ContactRepository{
		repo: repository.NewRepository[*membership.ContactMessage](db, modelHandlers(
			func() *membership.ContactMessage { return &membership.ContactMessage{} },
			func(m *membership.ContactMessage) *string {
				if m == nil {
					return nil
				}
				return &m.ID
			},
			"email",
		)),
		db: db,
	}
}

func (r *ContactRepository) Create(ctx context.Context, msg *membership.ContactMessage) (*membership.ContactMessage, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	created, err := r.repo.Create(ctx, msg)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to insert contact message")
	}
	return created, nil
}

func (r *ContactRepository) MarkNotified(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*membership.ContactMessage)(nil)).
		Set("notified_at = ?", at.UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark contact message notified")
	}
	return nil
}

func (r *ContactRepository) List(ctx context.Context, limit, offset int) ([]*membership.ContactMessage, int, error) {
	msgs, total, err := r.repo.List(ctx,
		repository.SelectOrderDesc("created_at"),
		repository.Paginate(limit, offset),
	)
	if err != nil && !isNoRows(err) {
		return nil, 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list contact messages")
	}
	if msgs == nil {
		msgs = []*membership.ContactMessage{}
	}
	return msgs, total, nil
}
