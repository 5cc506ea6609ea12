package mongostore

import (
	"context"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	membership "github.com/goliatone/go-membership"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type accounts struct {
	col *mongo.Collection
}

func (a *accounts) notFound(key string, value any) error {
	return membership.ErrAccountNotFound.Clone().WithMetadata(map[string]any{key: value})
}

func (a *accounts) Create(ctx context.Context, account *membership.Account) (*membership.Account, error) {
	account.Email = membership.NormalizeEmail(account.Email)
	if _, err := a.col.InsertOne(ctx, account); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, membership.ErrDuplicateAccount.Clone().WithMetadata(map[string]any{
				"email": account.Email,
			})
		}
		return nil, wrapError(err, "failed to insert account")
	}
	return account, nil
}

func (a *accounts) GetByID(ctx context.Context, id string) (*membership.Account, error) {
	account, err := findOne[membership.Account](ctx, a.col, bson.D{{Key: "_id", Value: id}})
	if errors.Is(err, errNotFound) {
		return nil, a.notFound("id", id)
	}
	return account, err
}

func (a *accounts) GetByEmail(ctx context.Context, email string) (*membership.Account, error) {
	email = membership.NormalizeEmail(email)
	account, err := findOne[membership.Account](ctx, a.col, bson.D{{Key: "email", Value: email}})
	if errors.Is(err, errNotFound) {
		return nil, a.notFound("email", email)
	}
	return account, err
}

func (a *accounts) SetToken(ctx context.Context, id string, kind membership.TokenKind, digest string, expiresAt time.Time) error {
	tokenField, expiryField, err := tokenFields(kind)
	if err != nil {
		return err
	}

	err = updateFields(ctx, a.col, id, bson.D{
		{Key: tokenField, Value: digest},
		{Key: expiryField, Value: expiresAt.UTC()},
		{Key: "updated_at", Value: time.Now().UTC()},
	})
	if errors.Is(err, errNotFound) {
		return a.notFound("id", id)
	}
	return err
}

// RedeemToken matches the digest and an unexpired expiry in the filter and
// unsets the token in the same FindOneAndUpdate.
func (a *accounts) RedeemToken(ctx context.Context, kind membership.TokenKind, digest, passwordHash string, now time.Time) (*membership.Account, error) {
	tokenField, expiryField, err := tokenFields(kind)
	if err != nil {
		return nil, err
	}
	if digest == "" {
		return nil, membership.ErrInvalidOrExpiredToken
	}

	filter := bson.D{
		{Key: tokenField, Value: digest},
		{Key: expiryField, Value: bson.D{{Key: "$gt", Value: now.UTC()}}},
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "password_hash", Value: passwordHash},
			{Key: "updated_at", Value: now.UTC()},
		}},
		{Key: "$unset", Value: bson.D{
			{Key: tokenField, Value: ""},
			{Key: expiryField, Value: ""},
		}},
	}

	var account membership.Account
	err = a.col.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, membership.ErrInvalidOrExpiredToken
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to redeem token")
	}
	return &account, nil
}

func (a *accounts) TrackLogin(ctx context.Context, id string, at time.Time) error {
	err := updateFields(ctx, a.col, id, bson.D{{Key: "logged_in_at", Value: at.UTC()}})
	if errors.Is(err, errNotFound) {
		return a.notFound("id", id)
	}
	return err
}

func tokenFields(kind membership.TokenKind) (string, string, error) {
	switch kind {
	case membership.TokenSetup:
		return "setup_token", "setup_token_expiry", nil
	case membership.TokenReset:
		return "reset_token", "reset_token_expiry", nil
	}
	return "", "", goerrors.New("unknown token kind", goerrors.CategoryInternal).
		WithMetadata(map[string]any{"kind": kind})
}
