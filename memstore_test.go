package membership_test

import (
	"context"
	"sort"
	"sync"
	"time"

	membership "github.com/goliatone/go-membership"
	"github.com/stretchr/testify/mock"
)

type memStore struct {
	apps     *memApplications
	accounts *memAccounts
	contacts *memContacts
}

func newMemStore() *memStore {
	return &memStore{
		apps:     &memApplications{records: map[string]*membership.Application{}},
		accounts: &memAccounts{records: map[string]*membership.Account{}},
		contacts: &memContacts{records: map[string]*membership.ContactMessage{}},
	}
}

func (s *memStore) Applications() membership.Applications { return s.apps }
func (s *memStore) Accounts() membership.Accounts         { return s.accounts }
func (s *memStore) Contacts() membership.Contacts         { return s.contacts }
func (s *memStore) Validate() error                       { return nil }
func (s *memStore) MustValidate()                         {}

type memApplications struct {
	mu      sync.Mutex
	records map[string]*membership.Application
}

func (r *memApplications) Create(_ context.Context, app *membership.Application) (*membership.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *app
	r.records[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memApplications) GetByID(_ context.Context, id string) (*membership.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.records[id]
	if !ok {
		return nil, membership.ErrApplicationNotFound.Clone()
	}
	cp := *app
	return &cp, nil
}

func (r *memApplications) FindByEmail(_ context.Context, email string) ([]*membership.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *membership.Application
	for _, app := range r.records {
		if app.Email != email {
			continue
		}
		if latest == nil || app.CreatedAt.After(latest.CreatedAt) {
			latest = app
		}
	}
	if latest == nil {
		return []*membership.Application{}, nil
	}
	cp := *latest
	return []*membership.Application{&cp}, nil
}

func (r *memApplications) List(_ context.Context, filter membership.ApplicationFilter) ([]*membership.Application, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*membership.Application
	for _, app := range r.records {
		if filter.Status != "" && app.MembershipStatus != filter.Status {
			continue
		}
		cp := *app
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if filter.Offset >= total {
		return []*membership.Application{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return all[filter.Offset:end], total, nil
}

func (r *memApplications) Update(_ context.Context, app *membership.Application) (*membership.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[app.ID]; !ok {
		return nil, membership.ErrApplicationNotFound.Clone()
	}
	cp := *app
	r.records[app.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memApplications) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return membership.ErrApplicationNotFound.Clone()
	}
	delete(r.records, id)
	return nil
}

type memAccounts struct {
	mu        sync.Mutex
	records   map[string]*membership.Account
	createErr error
}

func (r *memAccounts) Create(_ context.Context, account *membership.Account) (*membership.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	for _, existing := range r.records {
		if existing.ID == account.ID || existing.Email == account.Email {
			return nil, membership.ErrDuplicateAccount.Clone()
		}
	}
	cp := *account
	r.records[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memAccounts) GetByID(_ context.Context, id string) (*membership.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.records[id]
	if !ok {
		return nil, membership.ErrAccountNotFound.Clone()
	}
	cp := *acc
	return &cp, nil
}

func (r *memAccounts) GetByEmail(_ context.Context, email string) (*membership.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, acc := range r.records {
		if acc.Email == email {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, membership.ErrAccountNotFound.Clone()
}

func (r *memAccounts) SetToken(_ context.Context, id string, kind membership.TokenKind, digest string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.records[id]
	if !ok {
		return membership.ErrAccountNotFound.Clone()
	}
	exp := expiresAt
	switch kind {
	case membership.TokenSetup:
		acc.SetupToken, acc.SetupTokenExpiry = digest, &exp
	case membership.TokenReset:
		acc.ResetToken, acc.ResetTokenExpiry = digest, &exp
	}
	return nil
}

func (r *memAccounts) RedeemToken(_ context.Context, kind membership.TokenKind, digest, hash string, now time.Time) (*membership.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, acc := range r.records {
		stored, expiry := acc.Token(kind)
		if !membership.IsTokenUsable(stored, expiry, digest, now) {
			continue
		}
		acc.PasswordHash = hash
		switch kind {
		case membership.TokenSetup:
			acc.SetupToken, acc.SetupTokenExpiry = "", nil
		case membership.TokenReset:
			acc.ResetToken, acc.ResetTokenExpiry = "", nil
		}
		cp := *acc
		return &cp, nil
	}
	return nil, membership.ErrInvalidOrExpiredToken
}

func (r *memAccounts) TrackLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.records[id]
	if !ok {
		return membership.ErrAccountNotFound.Clone()
	}
	acc.LoggedInAt = &at
	return nil
}

func (r *memAccounts) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

type memContacts struct {
	mu      sync.Mutex
	records map[string]*membership.ContactMessage
}

func (r *memContacts) Create(_ context.Context, msg *membership.ContactMessage) (*membership.ContactMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *msg
	r.records[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memContacts) MarkNotified(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.records[id]
	if !ok {
		return membership.ErrApplicationNotFound.Clone()
	}
	msg.NotifiedAt = &at
	return nil
}

func (r *memContacts) List(_ context.Context, limit, offset int) ([]*membership.ContactMessage, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*membership.ContactMessage
	for _, msg := range r.records {
		cp := *msg
		all = append(all, &cp)
	}
	total := len(all)
	if offset >= total {
		return []*membership.ContactMessage{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *memContacts) get(id string) *membership.ContactMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[id]
}

// MockNotifier implements membership.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, n membership.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// recordingNotifier keeps every notification it was asked to send.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []membership.Notification
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, msg membership.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) last() membership.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return membership.Notification{}
	}
	return n.sent[len(n.sent)-1]
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type recordingSink struct {
	mu     sync.Mutex
	events []membership.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, evt membership.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

func (s *recordingSink) types() []membership.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]membership.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

type quietLogger struct{}

func (quietLogger) Debug(string, ...any) {}
func (quietLogger) Info(string, ...any)  {}
func (quietLogger) Warn(string, ...any)  {}
func (quietLogger) Error(string, ...any) {}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store    *memStore
	notifier *recordingNotifier
	sink     *recordingSink
	clock    *testClock
	services *membership.Services
}

const testSigningKey = "test-signing-key-0123456789"

func newFixture() *fixture {
	f := &fixture{
		store:    newMemStore(),
		notifier: &recordingNotifier{},
		sink:     &recordingSink{},
		clock:    newTestClock(),
	}

	sessions := membership.NewSessionService([]byte(testSigningKey), 1, "membership-test", nil, quietLogger{}).
		WithClock(f.clock.Now)

	services, err := membership.NewServices(membership.ServicesConfig{
		Store:      f.store,
		Notifier:   f.notifier,
		Hasher:     membership.NewBcryptHasher(4),
		Sessions:   sessions,
		Links:      membership.DefaultLinks(),
		AdminEmail: "board@example.org",
		Activity:   f.sink,
		Logger:     quietLogger{},
		Clock:      f.clock.Now,
	})
	if err != nil {
		panic(err)
	}
	f.services = services
	return f
}

func (f *fixture) submit(email string) *membership.Application {
	var created *membership.Application
	err := f.services.Submit.Execute(context.Background(), membership.SubmitApplicationMessage{
		Application: &membership.Application{
			FullName:       "Jane Doe",
			Email:          email,
			MembershipType: membership.MembershipTypeGeneral,
		},
		OnResponse: func(app *membership.Application) { created = app },
	})
	if err != nil {
		panic(err)
	}
	return created
}
