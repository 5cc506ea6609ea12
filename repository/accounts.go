package repository

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	membership "github.com/goliatone/go-membership"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// AccountRepository implements membership.Accounts using Bun.
type AccountRepository struct {
	repo repository.Repository[*membership.Account]
	db   *bun.DB
}

// NewAccountRepository creates a new repository. Non UUID identifiers are
// looked up by email.
func NewAccountRepository(db *bun.DB) *AccountRepository {
	return &AccountRepository{
		repo: repository.NewRepository[*membership.Account](db, modelHandlers(
			func() *membership.Account { return &membership.Account{} },
			func(a *membership.Account) *string {
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

// Create inserts account. A unique violation on id or email is reported as
// membership.ErrDuplicateAccount.
func (r *AccountRepository) Create(ctx context.Context, account *membership.Account) (*membership.Account, error) {
	account.Email = membership.NormalizeEmail(account.Email)
	created, err := r.repo.Create(ctx, account)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, membership.ErrDuplicateAccount.Clone().WithMetadata(map[string]any{
				"email": account.Email,
			})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to insert account")
	}
	return created, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*membership.Account, error) {
	account, err := r.repo.GetByID(ctx, id)
	return r.loaded(account, err, "id", id)
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*membership.Account, error) {
	email = membership.NormalizeEmail(email)
	account, err := r.repo.GetByIdentifier(ctx, email)
	return r.loaded(account, err, "email", email)
}

func (r *AccountRepository) loaded(account *membership.Account, err error, column, value string) (*membership.Account, error) {
	if err != nil {
		if isNoRows(err) {
			return nil, membership.ErrAccountNotFound.Clone().WithMetadata(map[string]any{column: value})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
	}
	return account, nil
}

// SetToken stores the digest and expiry of a freshly issued token,
// replacing any previous token of the same kind.
func (r *AccountRepository) SetToken(ctx context.Context, id string, kind membership.TokenKind, digest string, expiresAt time.Time) error {
	tokenCol, expiryCol, err := tokenColumns(kind)
	if err != nil {
		return err
	}

	res, err := r.db.NewUpdate().
		Model((*membership.Account)(nil)).
		Set("? = ?", bun.Ident(tokenCol), digest).
		Set("? = ?", bun.Ident(expiryCol), expiresAt.UTC()).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err == nil {
		err = repository.SQLExpectedCount(res, 1)
	}
	if err != nil {
		if repository.IsSQLExpectedCountViolation(err) {
			return membership.ErrAccountNotFound.Clone().WithMetadata(map[string]any{"id": id})
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store account token")
	}
	return nil
}

// RedeemToken sets the password and clears the token in one transaction.
// The update is conditional on the digest so two concurrent redemptions
// cannot both succeed.
func (r *AccountRepository) RedeemToken(ctx context.Context, kind membership.TokenKind, digest, passwordHash string, now time.Time) (*membership.Account, error) {
	tokenCol, expiryCol, err := tokenColumns(kind)
	if err != nil {
		return nil, err
	}
	if digest == "" {
		return nil, membership.ErrInvalidOrExpiredToken
	}

	var redeemed *membership.Account
	err = r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := r.repo.GetTx(ctx, tx, repository.SelectBy(tokenCol, "=", digest))
		if err != nil {
			if isNoRows(err) {
				return membership.ErrInvalidOrExpiredToken
			}
			return err
		}

		stored, expiry := account.Token(kind)
		if !membership.IsTokenUsable(stored, expiry, digest, now) {
			return membership.ErrInvalidOrExpiredToken
		}

		res, err := tx.NewUpdate().
			Model((*membership.Account)(nil)).
			Set("password_hash = ?", passwordHash).
			Set("? = NULL", bun.Ident(tokenCol)).
			Set("? = NULL", bun.Ident(expiryCol)).
			Set("updated_at = ?", now.UTC()).
			Where("id = ?", account.ID).
			Where("? = ?", bun.Ident(tokenCol), digest).
			Exec(ctx)
		if err != nil {
			return err
		}
		if err := repository.SQLExpectedCount(res, 1); err != nil {
			return membership.ErrInvalidOrExpiredToken
		}

		account.PasswordHash = passwordHash
		switch kind {
		case membership.TokenSetup:
			account.SetupToken, account.SetupTokenExpiry = "", nil
		case membership.TokenReset:
			account.ResetToken, account.ResetTokenExpiry = "", nil
		}
		account.UpdatedAt = now
		redeemed = account
		return nil
	})
	if err != nil {
		if membership.IsTextCode(err, membership.TextCodeInvalidToken) {
			return nil, err
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to redeem token")
	}
	return redeemed, nil
}

func (r *AccountRepository) TrackLogin(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.NewUpdate().
		Model((*membership.Account)(nil)).
		Set("logged_in_at = ?", at.UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err == nil {
		err = repository.SQLExpectedCount(res, 1)
	}
	if err != nil {
		if repository.IsSQLExpectedCountViolation(err) {
			return membership.ErrAccountNotFound.Clone().WithMetadata(map[string]any{"id": id})
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to track login")
	}
	return nil
}

func tokenColumns(kind membership.TokenKind) (string, string, error) {
	switch kind {
	case membership.TokenSetup:
		return "setup_token", "setup_token_expiry", nil
	case membership.TokenReset:
		return "reset_token", "reset_token_expiry", nil
	}
	return "", "", goerrors.New("unknown token kind", goerrors.CategoryInternal).
		WithMetadata(map[string]any{"kind": kind})
}
