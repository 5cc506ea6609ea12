package membership

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RegisterMembershipRoutes mounts the public and admin API on app.
func RegisterMembershipRoutes[T any](app router.Router[T], opts ...MembershipControllerOption) *MembershipController {
	controller := NewMembershipController(opts...)

	admin := RequireRole(controller.Sessions, RoleAdmin, controller.ErrorHandler)

	app.Get(controller.Routes.Membership, controller.Lookup).
		SetName("membership.lookup")
	app.Post(controller.Routes.Membership, controller.Create).
		SetName("membership.create")
	app.Get(controller.Routes.Membership+"/:id", controller.Show, admin).
		SetName("membership.show")
	app.Put(controller.Routes.Membership+"/:id", controller.Update, admin).
		SetName("membership.update")
	app.Delete(controller.Routes.Membership+"/:id", controller.Delete, admin).
		SetName("membership.delete")
	app.Get(controller.Routes.Memberships, controller.Index, admin).
		SetName("membership.index")

	app.Post(controller.Routes.SetPassword, controller.SetPasswordPost).
		SetName("set-password.post")
	app.Post(controller.Routes.PasswordReset, controller.PasswordResetPost).
		SetName("pwd-reset.post")
	app.Post(controller.Routes.PasswordResetConfirm, controller.PasswordResetConfirm).
		SetName("pwd-reset-do.post")
	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("sign-in.post")

	app.Post(controller.Routes.Contact, controller.ContactPost).
		SetName("contact.post")
	app.Get(controller.Routes.Contact, controller.ContactIndex, admin).
		SetName("contact.index")

	return controller
}

type MembershipControllerRoutes struct {
	Membership           string
	Memberships          string
	SetPassword          string
	PasswordReset        string
	PasswordResetConfirm string
	Login                string
	Contact              string
}

type MembershipController struct {
	Debug         bool
	Logger        Logger
	Store         Store
	Lifecycle     *MembershipLifecycle
	Submit        *SubmitApplicationHandler
	SetPassword   *RedeemTokenHandler
	ResetInit     *InitializePasswordResetHandler
	ResetFinalize *RedeemTokenHandler
	Contact       *SubmitContactHandler
	Auther        *AccountAuthenticator
	Sessions      *SessionService
	Routes        *MembershipControllerRoutes
	ErrorHandler  func(router.Context, error) error
}

type MembershipControllerOption func(*MembershipController) *MembershipController

// WithControllerServices wires every handler from a Services bundle.
func WithControllerServices(s *Services) MembershipControllerOption {
	return func(c *MembershipController) *MembershipController {
		if s == nil {
			return c
		}
		c.Store = s.Store
		c.Lifecycle = s.Lifecycle
		c.Submit = s.Submit
		c.SetPassword = s.SetPassword
		c.ResetInit = s.ResetInit
		c.ResetFinalize = s.ResetFinalize
		c.Contact = s.Contact
		c.Auther = s.Auther
		c.Sessions = s.Sessions
		if s.Logger != nil {
			c.Logger = s.Logger
		}
		return c
	}
}

// WithControllerLogger sets the logger and the default error handler.
func WithControllerLogger(logger Logger) MembershipControllerOption {
	return func(c *MembershipController) *MembershipController {
		if logger != nil {
			c.Logger = logger
			c.ErrorHandler = JSONErrorHandler(logger)
		}
		return c
	}
}

// WithControllerDebug dumps request payloads at debug level.
func WithControllerDebug(debug bool) MembershipControllerOption {
	return func(c *MembershipController) *MembershipController {
		c.Debug = debug
		return c
	}
}

// WithControllerRoutes overrides the default paths.
func WithControllerRoutes(routes *MembershipControllerRoutes) MembershipControllerOption {
	return func(c *MembershipController) *MembershipController {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

func NewMembershipController(opts ...MembershipControllerOption) *MembershipController {
	c := &MembershipController{
		Logger:       defLogger{},
		ErrorHandler: JSONErrorHandler(nil),
		Routes: &MembershipControllerRoutes{
			Membership:           "/api/membership",
			Memberships:          "/api/memberships",
			SetPassword:          "/api/set-password",
			PasswordReset:        "/api/password-reset",
			PasswordResetConfirm: "/api/password-reset/confirm",
			Login:                "/api/login",
			Contact:              "/api/contact",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Store == nil {
		panic("Missing Store in membership controller...")
	}

	if c.Lifecycle == nil || c.Submit == nil || c.SetPassword == nil {
		panic("Missing membership handlers in membership controller...")
	}

	if c.Sessions == nil {
		panic("Missing SessionService in membership controller...")
	}

	return c
}

func (a *MembershipController) bind(ctx router.Context, payload any) error {
	if err := ctx.Bind(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid request body").
			WithTextCode(TextCodeValidationFailed).
			WithCode(goerrors.CodeBadRequest)
	}
	if a.Debug {
		a.Logger.Debug("request payload", "path", ctx.Path(), "payload", print.MaybePrettyJSON(payload))
	}
	return nil
}

// MembershipLookup is the public view of an application. It carries no
// personal data beyond what the caller already supplied.
type MembershipLookup struct {
	ID               string           `json:"id"`
	MembershipStatus MembershipStatus `json:"membership_status"`
	MembershipType   MembershipType   `json:"membership_type"`
}

// Lookup answers GET /api/membership?email= with zero or one records.
func (a *MembershipController) Lookup(ctx router.Context) error {
	email := NormalizeEmail(ctx.Query("email", ""))
	if email == "" {
		return a.ErrorHandler(ctx, goerrors.New("email query parameter is required", goerrors.CategoryBadInput).
			WithTextCode(TextCodeValidationFailed).
			WithCode(goerrors.CodeBadRequest))
	}

	apps, err := a.Store.Applications().FindByEmail(ctx.Context(), email)
	if err != nil {
		return a.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up membership"))
	}

	out := make([]MembershipLookup, 0, len(apps))
	for _, app := range apps {
		out = append(out, MembershipLookup{
			ID:               app.ID,
			MembershipStatus: app.MembershipStatus,
			MembershipType:   app.MembershipType,
		})
	}
	return ctx.JSON(http.StatusOK, out)
}

// Create handles public application submissions.
func (a *MembershipController) Create(ctx router.Context) error {
	payload := new(CreateApplicationRequest)
	if err := a.bind(ctx, payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	var created *Application
	err := a.Submit.Execute(ctx.Context(), SubmitApplicationMessage{
		Application: payload.ToApplication(),
		OnResponse: func(app *Application) {
			created = app
		},
	})
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, created)
}

// Show returns one application to an admin.
func (a *MembershipController) Show(ctx router.Context) error {
	id := ctx.Param("id")
	app, err := a.Store.Applications().GetByID(ctx.Context(), id)
	if err != nil {
		if IsNotFound(err) {
			return a.ErrorHandler(ctx, ErrApplicationNotFound.Clone().WithMetadata(map[string]any{"id": id}))
		}
		return a.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load membership"))
	}
	return ctx.JSON(http.StatusOK, app)
}

// Update applies an admin patch. A status in the body goes through the
// lifecycle transition so approval provisions an account.
func (a *MembershipController) Update(ctx router.Context) error {
	id := ctx.Param("id")

	payload := new(UpdateApplicationRequest)
	if err := a.bind(ctx, payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	actor := ActorFromContext(ctx)

	var (
		result *TransitionResult
		err    error
	)
	if status, ok := payload.Status(); ok {
		result, err = a.Lifecycle.Transition(ctx.Context(), actor, id, status,
			WithApplicationPatch(payload.Patch()),
			WithTransitionReason(strings.TrimSpace(payload.Reason)),
		)
	} else {
		result, err = a.Lifecycle.Patch(ctx.Context(), actor, id, payload.Patch())
	}
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if result.Provisioning != nil {
		a.Logger.Info("membership approved",
			"application_id", result.Application.ID,
			"provisioning", result.Provisioning.Status,
			"reason", result.Provisioning.Reason,
		)
	}

	return ctx.JSON(http.StatusOK, result.Application)
}

// Delete removes an application.
func (a *MembershipController) Delete(ctx router.Context) error {
	if err := a.Lifecycle.Delete(ctx.Context(), ActorFromContext(ctx), ctx.Param("id")); err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ListResponse wraps paged admin listings
type ListResponse[T any] struct {
	Records []T `json:"records"`
	Count   int `json:"count"`
	Limit   int `json:"limit"`
	Offset  int `json:"offset"`
}

// Index lists applications, optionally filtered by status.
func (a *MembershipController) Index(ctx router.Context) error {
	filter := ApplicationFilter{
		Status: MembershipStatus(ctx.Query("status", "")),
		Limit:  ctx.QueryInt("limit", 50),
		Offset: ctx.QueryInt("offset", 0),
	}.Normalize()

	if filter.Status != "" && !filter.Status.IsValid() {
		return a.ErrorHandler(ctx, ErrInvalidStatus.Clone().WithMetadata(map[string]any{"status": filter.Status}))
	}

	apps, total, err := a.Store.Applications().List(ctx.Context(), filter)
	if err != nil {
		return a.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list memberships"))
	}
	if apps == nil {
		apps = []*Application{}
	}

	return ctx.JSON(http.StatusOK, ListResponse[*Application]{
		Records: apps,
		Count:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	})
}

// SetPasswordPost redeems a setup token.
func (a *MembershipController) SetPasswordPost(ctx router.Context) error {
	return a.redeem(ctx, a.SetPassword)
}

// PasswordResetConfirm redeems a reset token.
func (a *MembershipController) PasswordResetConfirm(ctx router.Context) error {
	if a.ResetFinalize == nil {
		return a.ErrorHandler(ctx, goerrors.New("password reset is not configured", goerrors.CategoryInternal))
	}
	return a.redeem(ctx, a.ResetFinalize)
}

func (a *MembershipController) redeem(ctx router.Context, handler *RedeemTokenHandler) error {
	payload := new(SetPasswordRequest)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid request body").
			WithTextCode(TextCodeValidationFailed).
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	err := handler.Execute(ctx.Context(), SetPasswordMessage{
		Token:    payload.Token,
		Password: payload.Password,
	})
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{"success": true})
}

// PasswordResetPost starts a reset. The answer is the same whether or not
// the email has an account.
func (a *MembershipController) PasswordResetPost(ctx router.Context) error {
	if a.ResetInit == nil {
		return a.ErrorHandler(ctx, goerrors.New("password reset is not configured", goerrors.CategoryInternal))
	}

	payload := new(PasswordResetRequest)
	if err := a.bind(ctx, payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := a.ResetInit.Execute(ctx.Context(), InitializePasswordResetMessage{Email: payload.Email}); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusAccepted, map[string]any{"success": true})
}

// LoginPost exchanges credentials for a session token.
func (a *MembershipController) LoginPost(ctx router.Context) error {
	if a.Auther == nil {
		return a.ErrorHandler(ctx, goerrors.New("login is not configured", goerrors.CategoryInternal))
	}

	payload := new(LoginRequest)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid request body").
			WithTextCode(TextCodeValidationFailed).
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	token, err := a.Auther.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"token":      token,
		"token_type": "Bearer",
	})
}

// ContactResponse tells the client whether the message was stored and
// whether the notification went out.
type ContactResponse struct {
	ID       string `json:"id"`
	Saved    bool   `json:"saved"`
	Notified bool   `json:"notified"`
}

// ContactPost stores a contact message. A failed notification yields 207.
func (a *MembershipController) ContactPost(ctx router.Context) error {
	if a.Contact == nil {
		return a.ErrorHandler(ctx, goerrors.New("contact form is not configured", goerrors.CategoryInternal))
	}

	payload := new(ContactRequest)
	if err := a.bind(ctx, payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	var resp *SubmitContactResponse
	msg := payload.ToMessage()
	msg.OnResponse = func(r *SubmitContactResponse) {
		resp = r
	}

	if err := a.Contact.Execute(ctx.Context(), msg); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	body := ContactResponse{
		ID:       resp.Message.ID,
		Saved:    true,
		Notified: resp.Notification.OK(),
	}
	if resp.Partial() {
		return ctx.JSON(http.StatusMultiStatus, body)
	}
	return ctx.JSON(http.StatusCreated, body)
}

// ContactIndex lists contact messages for admins.
func (a *MembershipController) ContactIndex(ctx router.Context) error {
	limit := ctx.QueryInt("limit", 50)
	offset := ctx.QueryInt("offset", 0)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	msgs, total, err := a.Store.Contacts().List(ctx.Context(), limit, offset)
	if err != nil {
		return a.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list contact messages"))
	}
	if msgs == nil {
		msgs = []*ContactMessage{}
	}

	return ctx.JSON(http.StatusOK, ListResponse[*ContactMessage]{
		Records: msgs,
		Count:   total,
		Limit:   limit,
		Offset:  offset,
	})
}
