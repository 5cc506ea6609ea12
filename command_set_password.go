package membership

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// SetPasswordMessage redeems a one time token for a new password.
type SetPasswordMessage struct {
	Token    string `json:"token" example:"9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08" doc:"One time token from the email link"`
	Password string `json:"password" example:"some_secret_word" doc:"New password"`
}

// RedeemTokenHandler exchanges a setup or reset token for a password. The
// token is cleared in the same write that stores the hash.
type RedeemTokenHandler struct {
	kind     TokenKind
	accounts Accounts
	hasher   PasswordHasher
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewSetPasswordHandler redeems setup tokens issued on approval.
func NewSetPasswordHandler(accounts Accounts, hasher PasswordHasher) *RedeemTokenHandler {
	return newRedeemTokenHandler(TokenSetup, accounts, hasher)
}

func newRedeemTokenHandler(kind TokenKind, accounts Accounts, hasher PasswordHasher) *RedeemTokenHandler {
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}
	return &RedeemTokenHandler{
		kind:     kind,
		accounts: accounts,
		hasher:   hasher,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit password events.
func (h *RedeemTokenHandler) WithActivitySink(sink ActivitySink) *RedeemTokenHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RedeemTokenHandler) WithLogger(logger Logger) *RedeemTokenHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *RedeemTokenHandler) WithClock(clock func() time.Time) *RedeemTokenHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

// Kind returns the token kind this handler redeems
func (h *RedeemTokenHandler) Kind() TokenKind {
	return h.kind
}

func (h *RedeemTokenHandler) Execute(ctx context.Context, msg SetPasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during token redemption",
		)
	default:
		return h.execute(ctx, msg)
	}
}

func (h *RedeemTokenHandler) execute(ctx context.Context, msg SetPasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := ValidatePassword(msg.Password); err != nil {
		return err
	}

	token := strings.TrimSpace(msg.Token)
	if token == "" {
		return ErrInvalidOrExpiredToken
	}

	hash, err := h.hasher.HashPassword(msg.Password)
	if err != nil {
		return err
	}

	account, err := h.accounts.RedeemToken(ctx, h.kind, DigestToken(token), hash, h.now())
	if err != nil {
		if IsTextCode(err, TextCodeInvalidToken) || IsNotFound(err) {
			h.logger.Info("token redemption rejected", "kind", h.kind)
			recordActivity(ctx, h.activity, h.logger, h.now, ActivityEvent{
				EventType: ActivityTokenRedemptionFailed,
				Actor:     ActorRef{Type: "anonymous"},
				Metadata:  map[string]any{"kind": string(h.kind)},
			})
			return ErrInvalidOrExpiredToken
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to redeem token")
	}

	recordActivity(ctx, h.activity, h.logger, h.now, ActivityEvent{
		EventType: ActivityPasswordSet,
		Actor:     ActorRef{ID: account.ID, Type: "user"},
		SubjectID: account.ID,
		Metadata:  map[string]any{"kind": string(h.kind)},
	})

	return nil
}
