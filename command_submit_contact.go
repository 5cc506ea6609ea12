package membership

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// SubmitContactMessage is a contact form submission.
type SubmitContactMessage struct {
	Name       string
	Email      string
	Phone      string
	Subject    string
	Message    string
	OnResponse func(resp *SubmitContactResponse)
}

func (m SubmitContactMessage) Type() string { return "contact.submit" }

// SubmitContactResponse reports the stored message and whether the admin
// notification went out.
type SubmitContactResponse struct {
	Message      *ContactMessage
	Notification Outcome
}

// Partial reports a saved message whose notification failed
func (r *SubmitContactResponse) Partial() bool {
	return r != nil && r.Message != nil && r.Notification.Status == DeliveryFailed
}

// SubmitContactHandler saves the message first, then notifies the admin
// inbox. A failed notification never discards the saved message.
type SubmitContactHandler struct {
	contacts   Contacts
	notifier   Notifier
	adminEmail string
	activity   ActivitySink
	logger     Logger
	now        func() time.Time
}

// NewSubmitContactHandler creates a handler delivering to adminEmail.
func NewSubmitContactHandler(contacts Contacts, notifier Notifier, adminEmail string) *SubmitContactHandler {
	return &SubmitContactHandler{
		contacts:   contacts,
		notifier:   notifier,
		adminEmail: adminEmail,
		activity:   noopActivitySink{},
		logger:     defLogger{},
		now:        time.Now,
	}
}

// WithActivitySink sets the sink used to emit contact events.
func (h *SubmitContactHandler) WithActivitySink(sink ActivitySink) *SubmitContactHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *SubmitContactHandler) WithLogger(logger Logger) *SubmitContactHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *SubmitContactHandler) WithClock(clock func() time.Time) *SubmitContactHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *SubmitContactHandler) Execute(ctx context.Context, msg SubmitContactMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during contact submission",
		)
	default:
		return h.execute(ctx, msg)
	}
}

func (h *SubmitContactHandler) execute(ctx context.Context, msg SubmitContactMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	record := &ContactMessage{
		ID:        uuid.NewString(),
		Name:      msg.Name,
		Email:     NormalizeEmail(msg.Email),
		Phone:     msg.Phone,
		Subject:   msg.Subject,
		Message:   msg.Message,
		CreatedAt: h.now(),
	}

	saved, err := h.contacts.Create(ctx, record)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store contact message")
	}
	if saved == nil {
		saved = record
	}

	recordActivity(ctx, h.activity, h.logger, h.now, ActivityEvent{
		EventType: ActivityContactReceived,
		Actor:     ActorRef{Type: "public"},
		SubjectID: saved.ID,
		Metadata:  map[string]any{"subject": saved.Subject},
	})

	resp := &SubmitContactResponse{Message: saved}
	resp.Notification = Dispatch(ctx, h.notifier, Notification{
		Kind:    NotificationContact,
		To:      h.adminEmail,
		ReplyTo: saved.Email,
		Data: map[string]any{
			"name":    saved.Name,
			"email":   saved.Email,
			"phone":   saved.Phone,
			"subject": saved.Subject,
			"message": saved.Message,
		},
	}, h.now)

	switch resp.Notification.Status {
	case DeliverySent:
		at := resp.Notification.At
		if err := h.contacts.MarkNotified(ctx, saved.ID, at); err != nil {
			h.logger.Warn("failed to mark contact message as notified", "id", saved.ID, "error", err)
		} else {
			saved.NotifiedAt = &at
		}
	case DeliveryFailed:
		h.logger.Error("contact notification not delivered", "id", saved.ID, "error", resp.Notification.Err)
	}

	recordActivity(ctx, h.activity, h.logger, h.now, notificationEvent(ActorRef{Type: "public"}, saved.ID, resp.Notification))

	if msg.OnResponse != nil {
		msg.OnResponse(resp)
	}
	return nil
}
