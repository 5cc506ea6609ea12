package membership

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// NotificationKind selects the template used for a message
type NotificationKind string

const (
	NotificationContact       NotificationKind = "contact"
	NotificationWelcome       NotificationKind = "welcome"
	NotificationPasswordReset NotificationKind = "password_reset"
)

// Notification is a transactional email waiting to be sent.
type Notification struct {
	Kind    NotificationKind
	To      string
	ReplyTo string
	Data    map[string]any
}

// Notifier delivers notifications. Send returns nil once the upstream relay
// accepted the message.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification) error

// Send implements Notifier.
func (f NotifierFunc) Send(ctx context.Context, n Notification) error {
	if f == nil {
		return nil
	}
	return f(ctx, n)
}

// DeliveryStatus is the result of a send attempt
type DeliveryStatus string

const (
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
	DeliverySkipped DeliveryStatus = "skipped"
)

// Outcome reports how a notification went. Callers decide whether a
// failed outcome is fatal for their flow.
type Outcome struct {
	Kind   NotificationKind `json:"kind"`
	Status DeliveryStatus   `json:"status"`
	Err    error            `json:"-"`
	At     time.Time        `json:"at"`
}

// OK reports whether the notification was accepted
func (o Outcome) OK() bool {
	return o.Status == DeliverySent
}

// NewDeliveryError wraps a transport failure.
func NewDeliveryError(err error, kind NotificationKind) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, "notification delivery failed").
		WithTextCode(TextCodeDeliveryFailed).
		WithMetadata(map[string]any{"kind": kind})
}

// IsDeliveryError reports whether err came from a failed send
func IsDeliveryError(err error) bool {
	return IsTextCode(err, TextCodeDeliveryFailed)
}

// Dispatch sends n through notifier and converts the result into an Outcome.
// A nil notifier yields a skipped outcome.
func Dispatch(ctx context.Context, notifier Notifier, n Notification, now func() time.Time) Outcome {
	if now == nil {
		now = time.Now
	}
	out := Outcome{Kind: n.Kind, At: now()}
	if notifier == nil {
		out.Status = DeliverySkipped
		return out
	}
	if err := notifier.Send(ctx, n); err != nil {
		out.Status = DeliveryFailed
		out.Err = NewDeliveryError(err, n.Kind)
		return out
	}
	out.Status = DeliverySent
	return out
}
