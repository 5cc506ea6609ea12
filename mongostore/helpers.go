package mongostore

import (
	"context"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var errNotFound = errors.New("mongostore: document not found")

// wrapError maps driver errors. Not found and duplicate key errors are left
// for callers to translate into their own sentinels.
func wrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return errNotFound
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}

// findOne decodes a single document. A missing document yields errNotFound.
func findOne[T any](ctx context.Context, col *mongo.Collection, filter bson.D, opts ...options.Lister[options.FindOneOptions]) (*T, error) {
	var result T
	if err := col.FindOne(ctx, filter, opts...).Decode(&result); err != nil {
		return nil, wrapError(err, "failed to find document")
	}
	return &result, nil
}

func findMany[T any](ctx context.Context, col *mongo.Collection, filter bson.D, opts ...options.Lister[options.FindOptions]) ([]*T, error) {
	cursor, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, wrapError(err, "failed to find documents")
	}
	defer cursor.Close(ctx)

	var results []*T
	for cursor.Next(ctx) {
		var item T
		if err := cursor.Decode(&item); err != nil {
			return nil, wrapError(err, "failed to decode document")
		}
		results = append(results, &item)
	}
	if err := cursor.Err(); err != nil {
		return nil, wrapError(err, "cursor failed")
	}
	if results == nil {
		results = []*T{}
	}
	return results, nil
}

func updateFields(ctx context.Context, col *mongo.Collection, id string, update bson.D) error {
	res, err := col.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, bson.D{{Key: "$set", Value: update}})
	if err != nil {
		return wrapError(err, "failed to update document")
	}
	if res.MatchedCount == 0 {
		return errNotFound
	}
	return nil
}

func deleteByID(ctx context.Context, col *mongo.Collection, id string) error {
	res, err := col.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return wrapError(err, "failed to delete document")
	}
	if res.DeletedCount == 0 {
		return errNotFound
	}
	return nil
}

func page(limit, offset int) *options.FindOptionsBuilder {
	return options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))
}
