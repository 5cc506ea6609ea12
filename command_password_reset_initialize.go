package membership

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "account.password_reset" }

// InitializePasswordResetResponse is sent to OnResponse. Requested is false
// when the email has no account, callers must not reveal that.
type InitializePasswordResetResponse struct {
	Requested    bool
	Notification Outcome
}

type InitializePasswordResetHandler struct {
	accounts Accounts
	notifier Notifier
	links    Links
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewInitializePasswordResetHandler creates a handler with sane defaults.
func NewInitializePasswordResetHandler(accounts Accounts, notifier Notifier, links Links) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		accounts: accounts,
		notifier: notifier,
		links:    links,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *InitializePasswordResetHandler) WithClock(clock func() time.Time) *InitializePasswordResetHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &InitializePasswordResetResponse{
		Notification: Outcome{Kind: NotificationPasswordReset, Status: DeliverySkipped},
	}

	email := NormalizeEmail(event.Email)
	account, err := h.accounts.GetByEmail(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			h.logger.Debug("password reset requested for unknown email")
			h.respond(event, resp)
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for password reset")
	}

	issued, err := IssueToken(TokenReset, h.now())
	if err != nil {
		return err
	}

	if err := h.accounts.SetToken(ctx, account.ID, TokenReset, issued.Digest, issued.ExpiresAt); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store password reset token")
	}

	resp.Requested = true
	resp.Notification = Dispatch(ctx, h.notifier, Notification{
		Kind: NotificationPasswordReset,
		To:   account.Email,
		Data: map[string]any{
			"full_name":  account.FullName,
			"username":   account.Username,
			"token":      issued.Value,
			"link":       h.links.ResetPassword(issued.Value),
			"expires_at": issued.ExpiresAt,
		},
	}, h.now)

	if resp.Notification.Status == DeliveryFailed {
		h.logger.Error("password reset email not delivered", "account_id", account.ID, "error", resp.Notification.Err)
	}

	recordActivity(ctx, h.activity, h.logger, h.now, ActivityEvent{
		EventType: ActivityPasswordResetRequest,
		Actor:     ActorRef{ID: account.ID, Type: "user"},
		SubjectID: account.ID,
		Metadata:  map[string]any{"expires_at": issued.ExpiresAt},
	})
	recordActivity(ctx, h.activity, h.logger, h.now, notificationEvent(ActorRef{ID: account.ID, Type: "user"}, account.ID, resp.Notification))

	h.respond(event, resp)
	return nil
}

func (h *InitializePasswordResetHandler) respond(event InitializePasswordResetMessage, resp *InitializePasswordResetResponse) {
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}
}
