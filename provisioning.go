package membership

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// ProvisioningStatus describes what provisioning did for an application
type ProvisioningStatus string

const (
	ProvisioningCreated ProvisioningStatus = "created"
	ProvisioningSkipped ProvisioningStatus = "skipped"
	ProvisioningFailed  ProvisioningStatus = "failed"
)

const (
	SkipReasonAccountExists = "account_exists"
	SkipReasonDuplicate     = "duplicate"
)

// ProvisioningResult is reported back to the lifecycle service. Failures
// are informational, they never fail a status transition.
type ProvisioningResult struct {
	Status       ProvisioningStatus `json:"status"`
	Reason       string             `json:"reason,omitempty"`
	Account      *Account           `json:"account,omitempty"`
	Notification *Outcome           `json:"notification,omitempty"`
	Err          error              `json:"-"`
}

// Provisioner creates an account for an approved application.
type Provisioner interface {
	Provision(ctx context.Context, actor ActorRef, app *Application) ProvisioningResult
}

// AccountProvisioner provisions accounts keyed on email existence. A
// unique violation raised by a concurrent approval is treated as skipped.
type AccountProvisioner struct {
	accounts Accounts
	notifier Notifier
	links    Links
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewAccountProvisioner creates a provisioner with sane defaults.
func NewAccountProvisioner(accounts Accounts, notifier Notifier, links Links) *AccountProvisioner {
	return &AccountProvisioner{
		accounts: accounts,
		notifier: notifier,
		links:    links,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit provisioning events.
func (p *AccountProvisioner) WithActivitySink(sink ActivitySink) *AccountProvisioner {
	p.activity = normalizeActivitySink(sink)
	return p
}

// WithLogger overrides the logger.
func (p *AccountProvisioner) WithLogger(logger Logger) *AccountProvisioner {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// WithClock injects a custom clock (useful for tests).
func (p *AccountProvisioner) WithClock(clock func() time.Time) *AccountProvisioner {
	if clock != nil {
		p.now = clock
	}
	return p
}

// Provision implements Provisioner.
func (p *AccountProvisioner) Provision(ctx context.Context, actor ActorRef, app *Application) ProvisioningResult {
	if app == nil || app.Email == "" {
		return ProvisioningResult{
			Status: ProvisioningFailed,
			Err:    goerrors.New("application has no email to provision", goerrors.CategoryValidation),
		}
	}

	email := NormalizeEmail(app.Email)

	existing, err := p.accounts.GetByEmail(ctx, email)
	switch {
	case err == nil && existing != nil:
		p.logger.Debug("account exists, skipping provisioning", "email", email, "account_id", existing.ID)
		p.record(ctx, actor, app, ActivityProvisioningSkipped, map[string]any{"reason": SkipReasonAccountExists})
		return ProvisioningResult{Status: ProvisioningSkipped, Reason: SkipReasonAccountExists, Account: existing}
	case err != nil && !IsNotFound(err):
		p.logger.Error("account lookup failed during provisioning", "email", email, "error", err)
		return ProvisioningResult{
			Status: ProvisioningFailed,
			Err:    goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account by email"),
		}
	}

	now := p.now()
	issued, err := IssueToken(TokenSetup, now)
	if err != nil {
		p.logger.Error("failed to issue setup token", "email", email, "error", err)
		return ProvisioningResult{Status: ProvisioningFailed, Err: err}
	}

	expiry := issued.ExpiresAt
	account := &Account{
		ID:               NewAccountID(email),
		Email:            email,
		FullName:         app.FullName,
		Username:         UsernameFromEmail(email),
		Phone:            app.Phone,
		Role:             RoleUser,
		SetupToken:       issued.Digest,
		SetupTokenExpiry: &expiry,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	created, err := p.accounts.Create(ctx, account)
	if err != nil {
		if IsDuplicateAccount(err) {
			p.logger.Warn("account created concurrently, skipping provisioning", "email", email)
			p.record(ctx, actor, app, ActivityProvisioningSkipped, map[string]any{"reason": SkipReasonDuplicate})
			return ProvisioningResult{Status: ProvisioningSkipped, Reason: SkipReasonDuplicate}
		}
		p.logger.Error("failed to create account", "email", email, "error", err)
		return ProvisioningResult{
			Status: ProvisioningFailed,
			Err:    goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create account"),
		}
	}
	if created == nil {
		created = account
	}

	p.record(ctx, actor, app, ActivityAccountProvisioned, map[string]any{
		"account_id": created.ID,
		"expires_at": expiry,
	})

	out := Dispatch(ctx, p.notifier, Notification{
		Kind: NotificationWelcome,
		To:   email,
		Data: map[string]any{
			"full_name":  app.FullName,
			"username":   created.Username,
			"token":      issued.Value,
			"link":       p.links.SetPassword(issued.Value),
			"expires_at": expiry,
		},
	}, p.now)

	if out.Status == DeliveryFailed {
		p.logger.Error("welcome email not delivered", "email", email, "account_id", created.ID, "error", out.Err)
	}
	recordActivity(ctx, p.activity, p.logger, p.now, notificationEvent(actor, created.ID, out))

	return ProvisioningResult{
		Status:       ProvisioningCreated,
		Account:      created,
		Notification: &out,
	}
}

func (p *AccountProvisioner) record(ctx context.Context, actor ActorRef, app *Application, evt ActivityEventType, meta map[string]any) {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["email"] = NormalizeEmail(app.Email)
	recordActivity(ctx, p.activity, p.logger, p.now, ActivityEvent{
		EventType: evt,
		Actor:     actor,
		SubjectID: app.ID,
		Metadata:  meta,
	})
}

// NewAccountID derives a stable id from email so concurrent provisioning
// of the same address collides on the primary key as well.
func NewAccountID(email string) string {
	id, err := hashid.NewUUID(NormalizeEmail(email))
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
