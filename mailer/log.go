package mailer

import (
	"context"

	membership "github.com/goliatone/go-membership"
)

// LogNotifier writes rendered notifications to the logger instead of
// sending them. Useful in development where no relay is configured.
type LogNotifier struct {
	templates *Templates
	logger    membership.Logger
}

var _ membership.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(templates *Templates, logger membership.Logger) *LogNotifier {
	if logger == nil {
		logger = nopLogger{}
	}
	return &LogNotifier{templates: templates, logger: logger}
}

func (l *LogNotifier) Send(ctx context.Context, n membership.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject, body, err := l.templates.Render(n)
	if err != nil {
		return err
	}
	l.logger.Info("====== SENDING EMAIL NOTIFICATION =======",
		"kind", n.Kind,
		"to", n.To,
		"reply_to", n.ReplyTo,
		"subject", subject,
		"body", body,
	)
	return nil
}
