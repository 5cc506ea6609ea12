package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	membership "github.com/goliatone/go-membership"
	"github.com/goliatone/go-membership/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	accountID      = "6f1c2a52-3d0e-4c1e-9a7b-2f4d5e6a7b8c"
	otherAccountID = "0b8e6f4a-91d2-4c5b-8e3f-7a6d5c4b3a21"
)

func setupStore(t *testing.T) *repository.Store {
	t.Helper()

	db, err := repository.Open("sqlite", ":memory:")
	require.NoError(t, err)

	store := repository.NewStore(db)
	require.NoError(t, store.EnsureSchema(context.Background()))
	store.MustValidate()

	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func newApplication(email string, created time.Time) *membership.Application {
	return &membership.Application{
		ID:                 uuid.NewString(),
		FullName:           "Jane Doe",
		Email:              email,
		VolunteerInterests: []string{"events", "outreach"},
		MembershipType:     membership.MembershipTypeGeneral,
		MembershipStatus:   membership.StatusPending,
		CreatedAt:          created,
		UpdatedAt:          created,
	}
}

func TestApplicationRepositoryCRUD(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	repo := store.Applications()

	now := time.Now().UTC().Truncate(time.Second)
	app, err := repo.Create(ctx, newApplication("jane@example.com", now))
	require.NoError(t, err)

	found, err := repo.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", found.Email)
	assert.Equal(t, []string{"events", "outreach"}, found.VolunteerInterests)
	assert.Equal(t, membership.StatusPending, found.MembershipStatus)

	found.MembershipStatus = membership.StatusApproved
	found.City = "Portland"
	_, err = repo.Update(ctx, found)
	require.NoError(t, err)

	updated, err := repo.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, membership.StatusApproved, updated.MembershipStatus)
	assert.Equal(t, "Portland", updated.City)

	require.NoError(t, repo.Delete(ctx, app.ID))

	_, err = repo.GetByID(ctx, app.ID)
	require.Error(t, err)
	assert.True(t, membership.IsNotFound(err))

	err = repo.Delete(ctx, app.ID)
	assert.True(t, membership.IsNotFound(err))
}

type sqliteConfig struct {
	dsn string
}

func (c sqliteConfig) GetDebug() bool                { return false }
func (c sqliteConfig) GetDriver() string             { return "sqlite" }
func (c sqliteConfig) GetServer() string             { return c.dsn }
func (c sqliteConfig) GetDatabase() string           { return "" }
func (c sqliteConfig) GetPingTimeout() time.Duration { return time.Second }
func (c sqliteConfig) GetOtelIdentifier() string     { return "" }

func TestConnectThroughPersistenceClient(t *testing.T) {
	store, err := repository.Connect(sqliteConfig{dsn: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.Validate())

	app, err := store.Applications().Create(ctx, newApplication("jane@example.com", time.Now().UTC()))
	require.NoError(t, err)

	found, err := store.Applications().GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", found.Email)
}

func TestConnectRejectsUnknownDriver(t *testing.T) {
	_, err := repository.Connect(badDriverConfig{})
	require.Error(t, err)
}

type badDriverConfig struct {
	sqliteConfig
}

func (badDriverConfig) GetDriver() string { return "oracle" }

func TestApplicationRepositoryCreateAssignsID(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	app := newApplication("jane@example.com", time.Now().UTC())
	app.ID = ""

	created, err := store.Applications().Create(ctx, app)
	require.NoError(t, err)
	_, err = uuid.Parse(created.ID)
	require.NoError(t, err)

	found, err := store.Applications().GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
}

func TestApplicationRepositoryUpdateMissing(t *testing.T) {
	store := setupStore(t)

	_, err := store.Applications().Update(context.Background(), newApplication("ghost@example.com", time.Now()))
	require.Error(t, err)
	assert.True(t, membership.IsTextCode(err, membership.TextCodeApplicationNotFound))
}

func TestApplicationRepositoryFindByEmailReturnsLatest(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	repo := store.Applications()

	older := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	newer := older.Add(30 * time.Minute)

	_, err := repo.Create(ctx, newApplication("dup@example.com", older))
	require.NoError(t, err)
	latest, err := repo.Create(ctx, newApplication("dup@example.com", newer))
	require.NoError(t, err)

	apps, err := repo.FindByEmail(ctx, "  DUP@example.com ")
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, latest.ID, apps[0].ID)

	none, err := repo.FindByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestApplicationRepositoryListFiltersAndPages(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	repo := store.Applications()

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		app := newApplication("member@example.com", base.Add(time.Duration(i)*time.Minute))
		if i%2 == 0 {
			app.MembershipStatus = membership.StatusApproved
		}
		_, err := repo.Create(ctx, app)
		require.NoError(t, err)
	}

	approved, total, err := repo.List(ctx, membership.ApplicationFilter{Status: membership.StatusApproved})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, approved, 3)

	page, total, err := repo.List(ctx, membership.ApplicationFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, page, 2)
}

func TestAccountRepositoryDuplicateEmail(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	accounts := store.Accounts()

	_, err := accounts.Create(ctx, &membership.Account{
		ID:       accountID,
		Email:    "jane@example.com",
		Username: "jane",
		Role:     membership.RoleUser,
	})
	require.NoError(t, err)

	_, err = accounts.Create(ctx, &membership.Account{
		ID:       otherAccountID,
		Email:    "JANE@example.com",
		Username: "jane",
		Role:     membership.RoleUser,
	})
	require.Error(t, err)
	assert.True(t, membership.IsDuplicateAccount(err))

	found, err := accounts.GetByEmail(ctx, " Jane@Example.com")
	require.NoError(t, err)
	assert.Equal(t, accountID, found.ID)

	byID, err := accounts.GetByID(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", byID.Email)

	_, err = accounts.GetByEmail(ctx, "missing@example.com")
	assert.True(t, membership.IsTextCode(err, membership.TextCodeAccountNotFound))
}

func TestAccountRepositoryRedeemTokenIsSingleUse(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	accounts := store.Accounts()
	now := time.Now().UTC()

	_, err := accounts.Create(ctx, &membership.Account{
		ID:       accountID,
		Email:    "jane@example.com",
		Username: "jane",
		Role:     membership.RoleUser,
	})
	require.NoError(t, err)

	issued, err := membership.IssueToken(membership.TokenSetup, now)
	require.NoError(t, err)
	require.NoError(t, accounts.SetToken(ctx, accountID, membership.TokenSetup, issued.Digest, issued.ExpiresAt))

	_, err = accounts.RedeemToken(ctx, membership.TokenReset, issued.Digest, "hash", now)
	assert.ErrorIs(t, err, membership.ErrInvalidOrExpiredToken)

	account, err := accounts.RedeemToken(ctx, membership.TokenSetup, issued.Digest, "hash", now)
	require.NoError(t, err)
	assert.Equal(t, "hash", account.PasswordHash)
	assert.Empty(t, account.SetupToken)

	stored, err := accounts.GetByID(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, "hash", stored.PasswordHash)
	assert.Empty(t, stored.SetupToken)
	assert.Nil(t, stored.SetupTokenExpiry)

	_, err = accounts.RedeemToken(ctx, membership.TokenSetup, issued.Digest, "other", now)
	assert.ErrorIs(t, err, membership.ErrInvalidOrExpiredToken)
}

func TestAccountRepositoryRedeemTokenExpired(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	accounts := store.Accounts()
	now := time.Now().UTC()

	_, err := accounts.Create(ctx, &membership.Account{
		ID:       accountID,
		Email:    "jane@example.com",
		Username: "jane",
		Role:     membership.RoleUser,
	})
	require.NoError(t, err)

	issued, err := membership.IssueToken(membership.TokenReset, now)
	require.NoError(t, err)
	require.NoError(t, accounts.SetToken(ctx, accountID, membership.TokenReset, issued.Digest, issued.ExpiresAt))

	_, err = accounts.RedeemToken(ctx, membership.TokenReset, issued.Digest, "hash", now.Add(2*time.Hour))
	assert.ErrorIs(t, err, membership.ErrInvalidOrExpiredToken)

	stored, err := accounts.GetByID(ctx, accountID)
	require.NoError(t, err)
	assert.Empty(t, stored.PasswordHash)
}

func TestAccountRepositorySetTokenMissingAccount(t *testing.T) {
	store := setupStore(t)

	err := store.Accounts().SetToken(context.Background(), "nope", membership.TokenReset, "digest", time.Now())
	assert.True(t, membership.IsTextCode(err, membership.TextCodeAccountNotFound))
}

func TestContactRepositoryCreateMarkList(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	contacts := store.Contacts()

	msg, err := contacts.Create(ctx, &membership.ContactMessage{
		Name:    "Sam",
		Email:   "sam@example.com",
		Subject: "Hello",
		Message: "Question about dues",
	})
	require.NoError(t, err)
	require.NotEmpty(t, msg.ID)

	require.NoError(t, contacts.MarkNotified(ctx, msg.ID, time.Now()))

	list, total, err := contacts.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.NotNil(t, list[0].NotifiedAt)
}

func TestLifecycleApproveBlockApproveProvisionsOnce(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	var mu sync.Mutex
	var welcomes []membership.Notification
	notifier := membership.NotifierFunc(func(_ context.Context, n membership.Notification) error {
		mu.Lock()
		defer mu.Unlock()
		welcomes = append(welcomes, n)
		return nil
	})

	provisioner := membership.NewAccountProvisioner(store.Accounts(), notifier, membership.DefaultLinks())
	lifecycle := membership.NewMembershipLifecycle(store.Applications(), provisioner)

	app, err := store.Applications().Create(ctx, newApplication("jane@example.com", time.Now().UTC()))
	require.NoError(t, err)

	admin := membership.ActorRef{ID: "admin", Type: membership.RoleAdmin}

	res, err := lifecycle.Transition(ctx, admin, app.ID, membership.StatusApproved)
	require.NoError(t, err)
	require.NotNil(t, res.Provisioning)
	assert.Equal(t, membership.ProvisioningCreated, res.Provisioning.Status)

	_, err = lifecycle.Transition(ctx, admin, app.ID, membership.StatusBlocked)
	require.NoError(t, err)

	res, err = lifecycle.Transition(ctx, admin, app.ID, membership.StatusApproved)
	require.NoError(t, err)
	require.NotNil(t, res.Provisioning)
	assert.Equal(t, membership.ProvisioningSkipped, res.Provisioning.Status)

	account, err := store.Accounts().GetByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, membership.RoleUser, account.Role)
	assert.NotEmpty(t, account.SetupToken)

	assert.Len(t, welcomes, 1)
}
