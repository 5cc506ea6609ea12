package membership

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Logger is the logging contract used across the package. It is satisfied by
// glog loggers, args are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Applications persists membership applications.
type Applications interface {
	Create(ctx context.Context, app *Application) (*Application, error)
	GetByID(ctx context.Context, id string) (*Application, error)
	// FindByEmail returns the most recent application for email, if any.
	FindByEmail(ctx context.Context, email string) ([]*Application, error)
	List(ctx context.Context, filter ApplicationFilter) ([]*Application, int, error)
	Update(ctx context.Context, app *Application) (*Application, error)
	Delete(ctx context.Context, id string) error
}

// Accounts persists user accounts. Create must return ErrDuplicateAccount
// when the email (or derived id) already exists.
type Accounts interface {
	Create(ctx context.Context, account *Account) (*Account, error)
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	SetToken(ctx context.Context, id string, kind TokenKind, digest string, expiresAt time.Time) error
	// RedeemToken sets passwordHash on the account holding an unexpired
	// token of kind and clears that token in the same write.
	RedeemToken(ctx context.Context, kind TokenKind, digest, passwordHash string, now time.Time) (*Account, error)
	TrackLogin(ctx context.Context, id string, at time.Time) error
}

// Contacts persists contact form messages.
type Contacts interface {
	Create(ctx context.Context, msg *ContactMessage) (*ContactMessage, error)
	MarkNotified(ctx context.Context, id string, at time.Time) error
	List(ctx context.Context, limit, offset int) ([]*ContactMessage, int, error)
}

// Store exposes all repositories of a storage backend.
type Store interface {
	Applications() Applications
	Accounts() Accounts
	Contacts() Contacts
	Validate() error
	MustValidate()
}

// ApplicationFilter narrows admin listings.
type ApplicationFilter struct {
	Status MembershipStatus
	Limit  int
	Offset int
}

// Normalize clamps paging values.
func (f ApplicationFilter) Normalize() ApplicationFilter {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print("[ERR] MEMBERSHIP " + formatLine(msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print("[WRN] MEMBERSHIP " + formatLine(msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print("[INF] MEMBERSHIP " + formatLine(msg, args...))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Print("[DBG] MEMBERSHIP " + formatLine(msg, args...))
}

func formatLine(msg string, args ...any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	b.WriteString("\n")
	return b.String()
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
