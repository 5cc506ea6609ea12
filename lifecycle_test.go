package membership_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	membership "github.com/goliatone/go-membership"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var admin = membership.ActorRef{ID: "admin-1", Type: membership.RoleAdmin}

func TestSubmitForcesPending(t *testing.T) {
	f := newFixture()

	var created *membership.Application
	err := f.services.Submit.Execute(context.Background(), membership.SubmitApplicationMessage{
		Application: &membership.Application{
			FullName:           "Jane Doe",
			Email:              "  Jane@Example.COM ",
			MembershipStatus:   membership.StatusApproved,
			VolunteerInterests: []string{"events", " ", "Events", "outreach"},
		},
		OnResponse: func(app *membership.Application) { created = app },
	})
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, membership.StatusPending, created.MembershipStatus)
	assert.Equal(t, membership.MembershipTypeGeneral, created.MembershipType)
	assert.Equal(t, "jane@example.com", created.Email)
	assert.Equal(t, []string{"events", "outreach"}, created.VolunteerInterests)
	assert.Equal(t, f.clock.Now(), created.CreatedAt)
	assert.Contains(t, f.sink.types(), membership.ActivityApplicationSubmitted)
	assert.Equal(t, 0, f.store.accounts.count())
}

func TestSubmitRejectsMissingName(t *testing.T) {
	f := newFixture()

	err := f.services.Submit.Execute(context.Background(), membership.SubmitApplicationMessage{
		Application: &membership.Application{Email: "jane@example.com"},
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, membership.StatusForError(err))
}

func TestApproveProvisionsAccountAndSendsWelcome(t *testing.T) {
	f := newFixture()
	app := f.submit("jane@example.com")

	result, err := f.services.Lifecycle.Transition(context.Background(), admin, app.ID, membership.StatusApproved)
	require.NoError(t, err)

	assert.Equal(t, membership.StatusPending, result.From)
	assert.Equal(t, membership.StatusApproved, result.To)
	assert.Equal(t, membership.StatusApproved, result.Application.MembershipStatus)

	require.NotNil(t, result.Provisioning)
	assert.Equal(t, membership.ProvisioningCreated, result.Provisioning.Status)
	require.NotNil(t, result.Provisioning.Notification)
	assert.Equal(t, membership.DeliverySent, result.Provisioning.Notification.Status)

	account, err := f.store.accounts.GetByEmail(context.Background(), "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, membership.RoleUser, account.Role)
	assert.Equal(t, "jane", account.Username)
	assert.False(t, account.HasPassword())
	require.NotNil(t, account.SetupTokenExpiry)
	assert.Equal(t, f.clock.Now().Add(membership.SetupTokenTTL), *account.SetupTokenExpiry)

	welcome := f.notifier.last()
	assert.Equal(t, membership.NotificationWelcome, welcome.Kind)
	assert.Equal(t, "jane@example.com", welcome.To)

	token, _ := welcome.Data["token"].(string)
	require.Len(t, token, membership.TokenBytes*2)
	assert.Equal(t, membership.DigestToken(token), account.SetupToken)
	assert.NotEqual(t, token, account.SetupToken)

	link, _ := welcome.Data["link"].(string)
	assert.True(t, strings.HasSuffix(link, "/set-password?token="+token))

	assert.Contains(t, f.sink.types(), membership.ActivityStatusChanged)
	assert.Contains(t, f.sink.types(), membership.ActivityAccountProvisioned)
	assert.Contains(t, f.sink.types(), membership.ActivityNotificationSent)
}

func TestApproveBlockApproveProvisionsOnce(t *testing.T) {
	f := newFixture()
	app := f.submit("jane@example.com")
	ctx := context.Background()

	_, err := f.services.Lifecycle.Transition(ctx, admin, app.ID, membership.StatusApproved)
	require.NoError(t, err)

	result, err := f.services.Lifecycle.Transition(ctx, admin, app.ID, membership.StatusBlocked)
	require.NoError(t, err)
	assert.Nil(t, result.Provisioning)

	result, err = f.services.Lifecycle.Transition(ctx, admin, app.ID, membership.StatusApproved)
	require.NoError(t, err)
	require.NotNil(t, result.Provisioning)
	assert.Equal(t, membership.ProvisioningSkipped, result.Provisioning.Status)
	assert.Equal(t, membership.SkipReasonAccountExists, result.Provisioning.Reason)

	assert.Equal(t, 1, f.store.accounts.count())
	assert.Equal(t, 1, f.notifier.count())
}

func TestApproveTwiceDoesNotProvisionAgain(t *testing.T) {
	f := newFixture()
	app := f.submit("jane@example.com")
	ctx := context.Background()

	_, err := f.services.Lifecycle.Transition(ctx, admin, app.ID, membership.StatusApproved)
	require.NoError(t, err)

	result, err := f.services.Lifecycle.Transition(ctx, admin, app.ID, membership.StatusApproved)
	require.NoError(t, err)
	assert.Nil(t, result.Provisioning)
	assert.Equal(t, 1, f.notifier.count())
}

func TestApproveKeepsTransitionWhenWelcomeFails(t *testing.T) {
	f := newFixture()
	f.notifier.err = errors.New("smtp relay refused")
	app := f.submit("jane@example.com")

	result, err := f.services.Lifecycle.Transition(context.Background(), admin, app.ID, membership.StatusApproved)
	require.NoError(t, err)

	assert.Equal(t, membership.StatusApproved, result.Application.MembershipStatus)
	require.NotNil(t, result.Provisioning)
	assert.Equal(t, membership.ProvisioningCreated, result.Provisioning.Status)
	require.NotNil(t, result.Provisioning.Notification)
	assert.Equal(t, membership.DeliveryFailed, result.Provisioning.Notification.Status)
	assert.True(t, membership.IsDeliveryError(result.Provisioning.Notification.Err))
	assert.Contains(t, f.sink.types(), membership.ActivityNotificationFailed)

	stored, err := f.store.apps.GetByID(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, membership.StatusApproved, stored.MembershipStatus)
	assert.Equal(t, 1, f.store.accounts.count())
}

func TestApproveTreatsConcurrentAccountAsSkipped(t *testing.T) {
	f := newFixture()
	f.store.accounts.createErr = membership.ErrDuplicateAccount.Clone()
	app := f.submit("jane@example.com")

	result, err := f.services.Lifecycle.Transition(context.Background(), admin, app.ID, membership.StatusApproved)
	require.NoError(t, err)
	require.NotNil(t, result.Provisioning)
	assert.Equal(t, membership.ProvisioningSkipped, result.Provisioning.Status)
	assert.Equal(t, membership.SkipReasonDuplicate, result.Provisioning.Reason)
	assert.Equal(t, 0, f.notifier.count())
}

func TestApproveReportsProvisioningFailureWithoutFailing(t *testing.T) {
	f := newFixture()
	f.store.accounts.createErr = errors.New("disk full")
	app := f.submit("jane@example.com")

	result, err := f.services.Lifecycle.Transition(context.Background(), admin, app.ID, membership.StatusApproved)
	require.NoError(t, err)
	require.NotNil(t, result.Provisioning)
	assert.Equal(t, membership.ProvisioningFailed, result.Provisioning.Status)
	assert.Error(t, result.Provisioning.Err)
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	f := newFixture()
	app := f.submit("jane@example.com")

	_, err := f.services.Lifecycle.Transition(context.Background(), admin, app.ID, membership.MembershipStatus("archived"))
	require.Error(t, err)
	assert.True(t, membership.IsTextCode(err, membership.TextCodeInvalidStatus))
	assert.Equal(t, http.StatusBadRequest, membership.StatusForError(err))
}

func TestTransitionUnknownApplication(t *testing.T) {
	f := newFixture()

	_, err := f.services.Lifecycle.Transition(context.Background(), admin, "missing", membership.StatusApproved)
	require.Error(t, err)
	assert.True(t, membership.IsNotFound(err))
	assert.Equal(t, http.StatusNotFound, membership.StatusForError(err))
}

func TestTransitionAppliesPatchInSameWrite(t *testing.T) {
	f := newFixture()
	app := f.submit("jane@example.com")
	city := " Lisbon "

	result, err := f.services.Lifecycle.Transition(context.Background(), admin, app.ID, membership.StatusBlocked,
		membership.WithApplicationPatch(membership.ApplicationPatch{City: &city}),
		membership.WithTransitionReason("duplicate submission"),
	)
	require.NoError(t, err)
	assert.Equal(t, "Lisbon", result.Application.City)
	assert.Equal(t, membership.StatusBlocked, result.Application.MembershipStatus)
}

func TestPatchKeepsStatus(t *testing.T) {
	f := newFixture()
	app := f.submit("jane@example.com")
	name := "Jane Q. Doe"

	result, err := f.services.Lifecycle.Patch(context.Background(), admin, app.ID, membership.ApplicationPatch{FullName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Jane Q. Doe", result.Application.FullName)
	assert.Equal(t, membership.StatusPending, result.Application.MembershipStatus)
	assert.Nil(t, result.Provisioning)
	assert.NotContains(t, f.sink.types(), membership.ActivityStatusChanged)
}

func TestBeforeHookRejectsTransition(t *testing.T) {
	f := newFixture()
	app := f.submit("jane@example.com")

	_, err := f.services.Lifecycle.Transition(context.Background(), admin, app.ID, membership.StatusApproved,
		membership.WithBeforeTransitionHook(func(context.Context, membership.TransitionContext) error {
			return errors.New("quota reached")
		}),
	)
	require.Error(t, err)
	assert.True(t, membership.IsTextCode(err, membership.TextCodeHookRejected))

	stored, err := f.store.apps.GetByID(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, membership.StatusPending, stored.MembershipStatus)
	assert.Equal(t, 0, f.store.accounts.count())
}

func TestDeleteApplicationKeepsAccount(t *testing.T) {
	f := newFixture()
	app := f.submit("jane@example.com")
	ctx := context.Background()

	_, err := f.services.Lifecycle.Transition(ctx, admin, app.ID, membership.StatusApproved)
	require.NoError(t, err)

	require.NoError(t, f.services.Lifecycle.Delete(ctx, admin, app.ID))

	_, err = f.store.apps.GetByID(ctx, app.ID)
	assert.True(t, membership.IsNotFound(err))
	assert.Equal(t, 1, f.store.accounts.count())

	err = f.services.Lifecycle.Delete(ctx, admin, app.ID)
	assert.Equal(t, http.StatusNotFound, membership.StatusForError(err))
}

func TestLifecycleUsesSessionActorFromContext(t *testing.T) {
	f := newFixture()
	app := f.submit("jane@example.com")

	ctx := membership.WithSessionContext(context.Background(), &membership.SessionClaims{
		UID:      "admin-7",
		UserRole: membership.RoleAdmin,
	})

	_, err := f.services.Lifecycle.Transition(ctx, membership.ActorRef{}, app.ID, membership.StatusBlocked)
	require.NoError(t, err)

	var found bool
	for _, evt := range f.sink.events {
		if evt.EventType == membership.ActivityStatusChanged {
			found = true
			assert.Equal(t, "admin-7", evt.Actor.ID)
			assert.Equal(t, membership.RoleAdmin, evt.Actor.Type)
		}
	}
	assert.True(t, found)
}

func TestProvisionerWithMockNotifier(t *testing.T) {
	store := newMemStore()
	notifier := new(MockNotifier)
	notifier.On("Send", mock.Anything, mock.MatchedBy(func(n membership.Notification) bool {
		return n.Kind == membership.NotificationWelcome && n.To == "sam@example.org"
	})).Return(nil).Once()

	p := membership.NewAccountProvisioner(store.Accounts(), notifier, membership.DefaultLinks()).
		WithLogger(quietLogger{})

	res := p.Provision(context.Background(), admin, &membership.Application{
		ID:       "app-1",
		FullName: "Sam",
		Email:    "Sam@Example.org",
	})
	require.NoError(t, res.Err)
	assert.Equal(t, membership.ProvisioningCreated, res.Status)
	assert.Equal(t, membership.NewAccountID("sam@example.org"), res.Account.ID)
	notifier.AssertExpectations(t)
}
