package membership

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// SubmitApplicationMessage creates a membership application from the public form.
type SubmitApplicationMessage struct {
	Application *Application
	OnResponse  func(app *Application)
}

func (m SubmitApplicationMessage) Type() string { return "membership.application.submit" }

// SubmitApplicationHandler stores new applications. The status is always
// forced to pending regardless of what the caller sent.
type SubmitApplicationHandler struct {
	applications Applications
	activity     ActivitySink
	logger       Logger
	now          func() time.Time
}

// NewSubmitApplicationHandler creates a handler with sane defaults.
func NewSubmitApplicationHandler(applications Applications) *SubmitApplicationHandler {
	return &SubmitApplicationHandler{
		applications: applications,
		activity:     noopActivitySink{},
		logger:       defLogger{},
		now:          time.Now,
	}
}

// WithActivitySink sets the sink used to emit submission events.
func (h *SubmitApplicationHandler) WithActivitySink(sink ActivitySink) *SubmitApplicationHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *SubmitApplicationHandler) WithLogger(logger Logger) *SubmitApplicationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *SubmitApplicationHandler) WithClock(clock func() time.Time) *SubmitApplicationHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *SubmitApplicationHandler) Execute(ctx context.Context, msg SubmitApplicationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during application submission",
		)
	default:
		return h.execute(ctx, msg)
	}
}

func (h *SubmitApplicationHandler) execute(ctx context.Context, msg SubmitApplicationMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if msg.Application == nil {
		return goerrors.New("application payload is required", goerrors.CategoryBadInput).
			WithTextCode(TextCodeValidationFailed).
			WithCode(goerrors.CodeBadRequest)
	}

	now := h.now()
	app := *msg.Application
	app.ID = uuid.NewString()
	app.Email = NormalizeEmail(app.Email)
	app.VolunteerInterests = NormalizeInterests(app.VolunteerInterests)
	app.MembershipStatus = StatusPending
	if app.MembershipType == "" {
		app.MembershipType = MembershipTypeGeneral
	}
	app.CreatedAt = now
	app.UpdatedAt = now

	if err := validateApplicationState(&app); err != nil {
		return err
	}

	created, err := h.applications.Create(ctx, &app)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store membership application")
	}
	if created == nil {
		created = &app
	}

	h.logger.Info("membership application submitted", "id", created.ID, "type", created.MembershipType)

	recordActivity(ctx, h.activity, h.logger, h.now, ActivityEvent{
		EventType: ActivityApplicationSubmitted,
		Actor:     ActorRef{Type: "public"},
		SubjectID: created.ID,
		ToStatus:  StatusPending,
		Metadata: map[string]any{
			"membership_type": string(created.MembershipType),
		},
	})

	if msg.OnResponse != nil {
		msg.OnResponse(created)
	}
	return nil
}
