package repository

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	membership "github.com/goliatone/go-membership"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// ApplicationRepository implements membership.Applications using Bun.
type ApplicationRepository struct {
	repo repository.Repository[*membership.Application]
	db   *bun.DB
}

// NewApplicationRepository creates a new repository.
func NewApplicationRepository(db *bun.DB) *ApplicationRepository {
	return &ApplicationRepository{
		repo: repository.NewRepository[*membership.Application](db, modelHandlers(
			func() *membership.Application { return &membership.Application{} },
			func(a *membership.Application) *string {
				if a == nil {
					return nil
				}
				return &a.ID
			},
			"email",
		)),
		db: db,
	}
}

func (r *ApplicationRepository) Create(ctx context.Context, app *membership.Application) (*membership.Application, error) {
	created, err := r.repo.Create(ctx, app)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to insert membership application")
	}
	return created, nil
}

func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*membership.Application, error) {
	app, err := r.repo.GetByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, membership.ErrApplicationNotFound.Clone().WithMetadata(map[string]any{"id": id})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load membership application")
	}
	return app, nil
}

// FindByEmail returns the latest application for email, or an empty slice.
func (r *ApplicationRepository) FindByEmail(ctx context.Context, email string) ([]*membership.Application, error) {
	apps, _, err := r.repo.List(ctx,
		repository.SelectBy("email", "=", membership.NormalizeEmail(email)),
		repository.SelectOrderDesc("created_at"),
		repository.Paginate(1, 0),
	)
	if err != nil && !isNoRows(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to find membership application")
	}
	if apps == nil {
		apps = []*membership.Application{}
	}
	return apps, nil
}

func (r *ApplicationRepository) List(ctx context.Context, filter membership.ApplicationFilter) ([]*membership.Application, int, error) {
	filter = filter.Normalize()

	criteria := []repository.SelectCriteria{
		repository.SelectOrderDesc("created_at"),
		repository.Paginate(filter.Limit, filter.Offset),
	}
	if filter.Status != "" {
		criteria = append(criteria, repository.SelectBy("membership_status", "=", string(filter.Status)))
	}

	apps, total, err := r.repo.List(ctx, criteria...)
	if err != nil && !isNoRows(err) {
		return nil, 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list membership applications")
	}
	if apps == nil {
		apps = []*membership.Application{}
	}
	return apps, total, nil
}

// Update writes every column but created_at. The generic Update skips zero
// values, which would keep fields a patch cleared.
func (r *ApplicationRepository) Update(ctx context.Context, app *membership.Application) (*membership.Application, error) {
	res, err := r.db.NewUpdate().
		Model(app).
		ExcludeColumn("created_at").
		WherePK().
		Exec(ctx)
	if err == nil {
		err = repository.SQLExpectedCount(res, 1)
	}
	if err != nil {
		if repository.IsSQLExpectedCountViolation(err) {
			return nil, membership.ErrApplicationNotFound.Clone().WithMetadata(map[string]any{"id": app.ID})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update membership application")
	}
	return app, nil
}

func (r *ApplicationRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.NewDelete().
		Model((*membership.Application)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err == nil {
		err = repository.SQLExpectedCount(res, 1)
	}
	if err != nil {
		if repository.IsSQLExpectedCountViolation(err) {
			return membership.ErrApplicationNotFound.Clone().WithMetadata(map[string]any{"id": id})
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete membership application")
	}
	return nil
}
