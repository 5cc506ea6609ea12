package membership

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityApplicationSubmitted  ActivityEventType = "membership.application.submitted"
	ActivityApplicationDeleted    ActivityEventType = "membership.application.deleted"
	ActivityStatusChanged         ActivityEventType = "membership.status.changed"
	ActivityAccountProvisioned    ActivityEventType = "account.provisioned"
	ActivityProvisioningSkipped   ActivityEventType = "account.provisioning.skipped"
	ActivityPasswordSet           ActivityEventType = "account.password.set"
	ActivityPasswordResetRequest  ActivityEventType = "account.password.reset_requested"
	ActivityLoginSuccess          ActivityEventType = "auth.login.success"
	ActivityLoginFailure          ActivityEventType = "auth.login.failure"
	ActivityContactReceived       ActivityEventType = "contact.received"
	ActivityNotificationSent      ActivityEventType = "notification.sent"
	ActivityNotificationFailed    ActivityEventType = "notification.failed"
	ActivityTokenRedemptionFailed ActivityEventType = "account.token.rejected"
)

// ActorRef identifies who or what triggered an action.
type ActorRef struct {
	ID   string
	Type string
}

// SystemActor is used when no caller identity is known
var SystemActor = ActorRef{Type: "system"}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	SubjectID  string
	FromStatus MembershipStatus
	ToStatus   MembershipStatus
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// MultiSink fans an event out to several sinks, returning the first error.
type MultiSink []ActivitySink

// Record implements ActivitySink.
func (m MultiSink) Record(ctx context.Context, event ActivityEvent) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// recordActivity emits event best-effort, logging sink failures.
func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, now func() time.Time, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = SystemActor
	}
	if event.OccurredAt.IsZero() {
		if now == nil {
			now = time.Now
		}
		event.OccurredAt = now()
	}
	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil {
		normalizeLogger(logger).Warn("activity sink error", "event", event.EventType, "error", err)
	}
}

// notificationEvent turns a dispatch outcome into an activity event.
func notificationEvent(actor ActorRef, subjectID string, out Outcome) ActivityEvent {
	evt := ActivityEvent{
		EventType: ActivityNotificationSent,
		Actor:     actor,
		SubjectID: subjectID,
		Metadata: map[string]any{
			"kind":   string(out.Kind),
			"status": string(out.Status),
		},
		OccurredAt: out.At,
	}
	if out.Status == DeliveryFailed {
		evt.EventType = ActivityNotificationFailed
		if out.Err != nil {
			evt.Metadata["error"] = out.Err.Error()
		}
	}
	return evt
}
