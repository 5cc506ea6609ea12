package mongostore

import (
	"context"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	membership "github.com/goliatone/go-membership"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type applications struct {
	col *mongo.Collection
}

func (a *applications) notFound(id string) error {
	return membership.ErrApplicationNotFound.Clone().WithMetadata(map[string]any{"id": id})
}

func (a *applications) Create(ctx context.Context, app *membership.Application) (*membership.Application, error) {
	if _, err := a.col.InsertOne(ctx, app); err != nil {
		return nil, wrapError(err, "failed to insert membership application")
	}
	return app, nil
}

func (a *applications) GetByID(ctx context.Context, id string) (*membership.Application, error) {
	app, err := findOne[membership.Application](ctx, a.col, bson.D{{Key: "_id", Value: id}})
	if errors.Is(err, errNotFound) {
		return nil, a.notFound(id)
	}
	return app, err
}

func (a *applications) FindByEmail(ctx context.Context, email string) ([]*membership.Application, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(1)
	return findMany[membership.Application](ctx, a.col,
		bson.D{{Key: "email", Value: membership.NormalizeEmail(email)}}, opts)
}

func (a *applications) List(ctx context.Context, filter membership.ApplicationFilter) ([]*membership.Application, int, error) {
	filter = filter.Normalize()

	query := bson.D{}
	if filter.Status != "" {
		query = append(query, bson.E{Key: "membership_status", Value: filter.Status})
	}

	total, err := a.col.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, wrapError(err, "failed to count membership applications")
	}

	apps, err := findMany[membership.Application](ctx, a.col, query, page(filter.Limit, filter.Offset))
	if err != nil {
		return nil, 0, err
	}
	return apps, int(total), nil
}

func (a *applications) Update(ctx context.Context, app *membership.Application) (*membership.Application, error) {
	res, err := a.col.ReplaceOne(ctx, bson.D{{Key: "_id", Value: app.ID}}, app)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update membership application")
	}
	if res.MatchedCount == 0 {
		return nil, a.notFound(app.ID)
	}
	return app, nil
}

func (a *applications) Delete(ctx context.Context, id string) error {
	err := deleteByID(ctx, a.col, id)
	if errors.Is(err, errNotFound) {
		return a.notFound(id)
	}
	return err
}
