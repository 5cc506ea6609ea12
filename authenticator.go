package membership

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// AccountAuthenticator verifies email and password and issues session tokens.
type AccountAuthenticator struct {
	accounts Accounts
	hasher   PasswordHasher
	sessions *SessionService
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewAccountAuthenticator returns a new authenticator
func NewAccountAuthenticator(accounts Accounts, hasher PasswordHasher, sessions *SessionService) *AccountAuthenticator {
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}
	return &AccountAuthenticator{
		accounts: accounts,
		hasher:   hasher,
		sessions: sessions,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (a *AccountAuthenticator) WithActivitySink(sink ActivitySink) *AccountAuthenticator {
	a.activity = normalizeActivitySink(sink)
	return a
}

// WithLogger overrides the logger.
func (a *AccountAuthenticator) WithLogger(logger Logger) *AccountAuthenticator {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// Sessions returns the session service used to sign tokens
func (a *AccountAuthenticator) Sessions() *SessionService {
	return a.sessions
}

// Login returns a signed session token. Unknown emails, accounts without
// a password and wrong passwords all fail with ErrInvalidCredentials.
func (a *AccountAuthenticator) Login(ctx context.Context, email, password string) (string, error) {
	email = NormalizeEmail(email)

	account, err := a.accounts.GetByEmail(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			a.loginFailed(ctx, "", email, "unknown account")
			return "", ErrInvalidCredentials
		}
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account for login")
	}

	if !account.HasPassword() {
		a.loginFailed(ctx, account.ID, email, "password not set")
		return "", ErrInvalidCredentials
	}

	if err := a.hasher.ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		a.loginFailed(ctx, account.ID, email, "password mismatch")
		return "", ErrInvalidCredentials
	}

	token, err := a.sessions.Issue(account)
	if err != nil {
		return "", err
	}

	if err := a.accounts.TrackLogin(ctx, account.ID, a.now()); err != nil {
		a.logger.Warn("failed to track login", "account_id", account.ID, "error", err)
	}

	recordActivity(ctx, a.activity, a.logger, a.now, ActivityEvent{
		EventType: ActivityLoginSuccess,
		Actor:     ActorRef{ID: account.ID, Type: "user"},
		SubjectID: account.ID,
		Metadata:  map[string]any{"role": account.Role},
	})

	return token, nil
}

func (a *AccountAuthenticator) loginFailed(ctx context.Context, accountID, email, reason string) {
	a.logger.Info("login rejected", "email", email, "reason", reason)
	recordActivity(ctx, a.activity, a.logger, a.now, ActivityEvent{
		EventType: ActivityLoginFailure,
		Actor:     ActorRef{ID: accountID, Type: "unknown"},
		SubjectID: accountID,
		Metadata:  map[string]any{"reason": reason},
	})
}

// EnsureAdmin creates the bootstrap administrator if no account holds
// email yet. Existing accounts are left untouched.
func EnsureAdmin(ctx context.Context, accounts Accounts, hasher PasswordHasher, email, password, fullName string) (*Account, bool, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, false, nil
	}

	existing, err := accounts.GetByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !IsNotFound(err) {
		return nil, false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up admin account")
	}

	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}
	hash, err := hasher.HashPassword(password)
	if err != nil {
		return nil, false, err
	}

	now := time.Now()
	account, err := accounts.Create(ctx, &Account{
		ID:           NewAccountID(email),
		Email:        email,
		FullName:     fullName,
		Username:     UsernameFromEmail(email),
		Role:         RoleAdmin,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if IsDuplicateAccount(err) {
			existing, gerr := accounts.GetByEmail(ctx, email)
			return existing, false, gerr
		}
		return nil, false, err
	}
	return account, true, nil
}
