package membership

import (
	"errors"
	"time"
)

// ServicesConfig holds the collaborators needed to build the membership
// handlers.
type ServicesConfig struct {
	Store      Store
	Notifier   Notifier
	Hasher     PasswordHasher
	Sessions   *SessionService
	Links      Links
	AdminEmail string
	Activity   ActivitySink
	Logger     Logger
	Clock      func() time.Time
}

// Services bundles the wired handlers used by the HTTP controller and the
// server command.
type Services struct {
	Store         Store
	Provisioner   *AccountProvisioner
	Lifecycle     *MembershipLifecycle
	Submit        *SubmitApplicationHandler
	SetPassword   *RedeemTokenHandler
	ResetInit     *InitializePasswordResetHandler
	ResetFinalize *RedeemTokenHandler
	Contact       *SubmitContactHandler
	Auther        *AccountAuthenticator
	Sessions      *SessionService
	Logger        Logger
}

// NewServices wires every handler against the same store, notifier,
// activity sink and clock.
func NewServices(cfg ServicesConfig) (*Services, error) {
	if cfg.Store == nil {
		return nil, errors.New("membership: store is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("membership: session service is required")
	}

	logger := normalizeLogger(cfg.Logger)
	sink := normalizeActivitySink(cfg.Activity)
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}

	provisioner := NewAccountProvisioner(cfg.Store.Accounts(), cfg.Notifier, cfg.Links).
		WithActivitySink(sink).
		WithLogger(logger).
		WithClock(clock)

	lifecycle := NewMembershipLifecycle(cfg.Store.Applications(), provisioner,
		WithLifecycleActivitySink(sink),
		WithLifecycleLogger(logger),
		WithLifecycleClock(clock),
	)

	return &Services{
		Store:       cfg.Store,
		Provisioner: provisioner,
		Lifecycle:   lifecycle,
		Submit: NewSubmitApplicationHandler(cfg.Store.Applications()).
			WithActivitySink(sink).
			WithLogger(logger).
			WithClock(clock),
		SetPassword: NewSetPasswordHandler(cfg.Store.Accounts(), hasher).
			WithActivitySink(sink).
			WithLogger(logger).
			WithClock(clock),
		ResetInit: NewInitializePasswordResetHandler(cfg.Store.Accounts(), cfg.Notifier, cfg.Links).
			WithActivitySink(sink).
			WithLogger(logger).
			WithClock(clock),
		ResetFinalize: NewFinalizePasswordResetHandler(cfg.Store.Accounts(), hasher).
			WithActivitySink(sink).
			WithLogger(logger).
			WithClock(clock),
		Contact: NewSubmitContactHandler(cfg.Store.Contacts(), cfg.Notifier, cfg.AdminEmail).
			WithActivitySink(sink).
			WithLogger(logger).
			WithClock(clock),
		Auther: NewAccountAuthenticator(cfg.Store.Accounts(), hasher, cfg.Sessions).
			WithActivitySink(sink).
			WithLogger(logger),
		Sessions: cfg.Sessions,
		Logger:   logger,
	}, nil
}
