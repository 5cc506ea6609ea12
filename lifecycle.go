package membership

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// TransitionContext is passed into hooks for additional processing.
type TransitionContext struct {
	Actor       ActorRef
	Application *Application
	From        MembershipStatus
	To          MembershipStatus
	Meta        TransitionMetadata
}

// TransitionHook is executed before or after a transition.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// TransitionHookPhase identifies whether a hook ran before or after persistence.
type TransitionHookPhase string

const (
	HookPhaseBefore TransitionHookPhase = "before_transition"
	HookPhaseAfter  TransitionHookPhase = "after_transition"
)

// HookErrorHandler converts hook failures into the error returned to callers.
type HookErrorHandler func(ctx context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

// LifecycleOption customizes lifecycle construction.
type LifecycleOption func(*MembershipLifecycle)

// TransitionResult is returned by Transition. Provisioning is set only when
// the transition moved the application into approved.
type TransitionResult struct {
	Application  *Application        `json:"application"`
	From         MembershipStatus    `json:"from"`
	To           MembershipStatus    `json:"to"`
	Provisioning *ProvisioningResult `json:"provisioning,omitempty"`
}

// WithLifecycleClock injects a custom clock (useful for tests).
func WithLifecycleClock(clock func() time.Time) LifecycleOption {
	return func(l *MembershipLifecycle) {
		if clock != nil {
			l.now = clock
		}
	}
}

// WithLifecycleActivitySink sets the ActivitySink used to publish lifecycle events.
func WithLifecycleActivitySink(sink ActivitySink) LifecycleOption {
	return func(l *MembershipLifecycle) {
		l.activity = normalizeActivitySink(sink)
	}
}

// WithLifecycleLogger overrides the logger.
func WithLifecycleLogger(logger Logger) LifecycleOption {
	return func(l *MembershipLifecycle) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithLifecycleHookErrorHandler overrides how before hook failures are reported.
func WithLifecycleHookErrorHandler(handler HookErrorHandler) LifecycleOption {
	return func(l *MembershipLifecycle) {
		if handler != nil {
			l.hookErrorHandler = handler
		}
	}
}

// WithApplicationPatch applies field changes in the same write as the status.
func WithApplicationPatch(patch ApplicationPatch) TransitionOption {
	return func(opts *transitionOptions) {
		p := patch
		opts.patch = &p
	}
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition context.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata.Metadata[k] = v
		}
	}
}

// WithBeforeTransitionHook adds a hook executed before the write. A failing
// hook aborts the transition.
func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

// WithAfterTransitionHook adds a hook executed after the write succeeds.
// Failures are logged only.
func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.afterHooks = append(opts.afterHooks, h)
		}
	}
}

type transitionOptions struct {
	patch       *ApplicationPatch
	metadata    TransitionMetadata
	beforeHooks []TransitionHook
	afterHooks  []TransitionHook
}

// MembershipLifecycle applies status changes to applications and
// provisions an account the first time one reaches approved.
type MembershipLifecycle struct {
	applications     Applications
	provisioner      Provisioner
	now              func() time.Time
	activity         ActivitySink
	logger           Logger
	hookErrorHandler HookErrorHandler
}

// NewMembershipLifecycle returns a lifecycle backed by applications. A nil
// provisioner disables account creation.
func NewMembershipLifecycle(applications Applications, provisioner Provisioner, opts ...LifecycleOption) *MembershipLifecycle {
	l := &MembershipLifecycle{
		applications:     applications,
		provisioner:      provisioner,
		now:              time.Now,
		activity:         noopActivitySink{},
		logger:           defLogger{},
		hookErrorHandler: defaultHookErrorHandler,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Transition moves application id to target, applying any patch in the
// same write. Provisioning runs when target is approved and the previous
// status was not.
func (l *MembershipLifecycle) Transition(ctx context.Context, actor ActorRef, id string, target MembershipStatus, opts ...TransitionOption) (*TransitionResult, error) {
	if !target.IsValid() {
		return nil, ErrInvalidStatus.Clone().WithMetadata(map[string]any{
			"status":  target,
			"allowed": MembershipStatuses,
		})
	}

	app, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}

	return l.apply(ctx, resolveActor(ctx, actor), app, target, buildTransitionOptions(opts...))
}

// Patch updates fields of application id without changing its status.
func (l *MembershipLifecycle) Patch(ctx context.Context, actor ActorRef, id string, patch ApplicationPatch, opts ...TransitionOption) (*TransitionResult, error) {
	app, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}

	options := buildTransitionOptions(opts...)
	options.patch = &patch
	return l.apply(ctx, resolveActor(ctx, actor), app, app.MembershipStatus, options)
}

// Delete hard deletes application id. Accounts provisioned from it are kept.
func (l *MembershipLifecycle) Delete(ctx context.Context, actor ActorRef, id string) error {
	app, err := l.load(ctx, id)
	if err != nil {
		return err
	}

	if err := l.applications.Delete(ctx, app.ID); err != nil {
		if IsNotFound(err) {
			return ErrApplicationNotFound.Clone().WithMetadata(map[string]any{"id": id})
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete membership application")
	}

	recordActivity(ctx, l.activity, l.logger, l.now, ActivityEvent{
		EventType:  ActivityApplicationDeleted,
		Actor:      resolveActor(ctx, actor),
		SubjectID:  app.ID,
		FromStatus: app.MembershipStatus,
		Metadata:   map[string]any{"email": app.Email},
	})
	return nil
}

func (l *MembershipLifecycle) load(ctx context.Context, id string) (*Application, error) {
	app, err := l.applications.GetByID(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrApplicationNotFound.Clone().WithMetadata(map[string]any{"id": id})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load membership application")
	}
	return app, nil
}

func (l *MembershipLifecycle) apply(ctx context.Context, actor ActorRef, app *Application, target MembershipStatus, options *transitionOptions) (*TransitionResult, error) {
	from := app.MembershipStatus

	tc := TransitionContext{
		Actor:       actor,
		Application: app,
		From:        from,
		To:          target,
		Meta:        options.cloneMetadata(),
	}

	if err := l.runHooks(ctx, options.beforeHooks, tc, HookPhaseBefore); err != nil {
		return nil, err
	}

	if options.patch != nil {
		options.patch.Apply(app)
	}
	app.MembershipStatus = target
	app.UpdatedAt = l.now()

	if err := validateApplicationState(app); err != nil {
		return nil, err
	}

	updated, err := l.applications.Update(ctx, app)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrApplicationNotFound.Clone().WithMetadata(map[string]any{"id": app.ID})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist membership application")
	}
	if updated == nil {
		updated = app
	}
	tc.Application = updated

	result := &TransitionResult{
		Application: updated,
		From:        from,
		To:          target,
	}

	if from != target {
		recordActivity(ctx, l.activity, l.logger, l.now, ActivityEvent{
			EventType:  ActivityStatusChanged,
			Actor:      actor,
			SubjectID:  updated.ID,
			FromStatus: from,
			ToStatus:   target,
			Metadata:   transitionMetadata(tc.Meta),
		})
	}

	if target == StatusApproved && from != StatusApproved && l.provisioner != nil {
		prov := l.provisioner.Provision(ctx, actor, updated)
		if prov.Err != nil {
			l.logger.Error("account provisioning failed, transition kept",
				"application_id", updated.ID,
				"error", prov.Err,
			)
		}
		result.Provisioning = &prov
	}

	if err := l.runHooks(ctx, options.afterHooks, tc, HookPhaseAfter); err != nil {
		l.logger.Error("after transition hook failed", "application_id", updated.ID, "error", err)
	}

	return result, nil
}

func (l *MembershipLifecycle) runHooks(ctx context.Context, hooks []TransitionHook, tc TransitionContext, phase TransitionHookPhase) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, tc); err != nil {
			if l.hookErrorHandler == nil {
				return err
			}
			return l.hookErrorHandler(ctx, phase, err, tc)
		}
	}
	return nil
}

// resolveActor falls back to the session carried by ctx when no actor was given.
func resolveActor(ctx context.Context, actor ActorRef) ActorRef {
	if actor == (ActorRef{}) {
		return ActorFromCtx(ctx)
	}
	return actor
}

func buildTransitionOptions(opts ...TransitionOption) *transitionOptions {
	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return options
}

func (o *transitionOptions) cloneMetadata() TransitionMetadata {
	var cloned map[string]any
	if len(o.metadata.Metadata) > 0 {
		cloned = make(map[string]any, len(o.metadata.Metadata))
		for k, v := range o.metadata.Metadata {
			cloned[k] = v
		}
	}
	return TransitionMetadata{
		Reason:   o.metadata.Reason,
		Metadata: cloned,
	}
}

func defaultHookErrorHandler(_ context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error {
	var id string
	if tc.Application != nil {
		id = tc.Application.ID
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, "membership transition rejected").
		WithTextCode(TextCodeHookRejected).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{
			"phase":          phase,
			"application_id": id,
			"from":           tc.From,
			"to":             tc.To,
		})
}

func transitionMetadata(meta TransitionMetadata) map[string]any {
	if meta.Reason == "" && len(meta.Metadata) == 0 {
		return nil
	}
	result := map[string]any{}
	if meta.Reason != "" {
		result["reason"] = meta.Reason
	}
	for k, v := range meta.Metadata {
		result[k] = v
	}
	return result
}

func validateApplicationState(app *Application) error {
	if !app.MembershipStatus.IsValid() {
		return ErrInvalidStatus.Clone().WithMetadata(map[string]any{"status": app.MembershipStatus})
	}
	if !app.MembershipType.IsValid() {
		return goerrors.New("invalid membership type", goerrors.CategoryValidation).
			WithTextCode(TextCodeValidationFailed).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"membership_type": app.MembershipType})
	}
	if app.Email == "" || app.FullName == "" {
		return goerrors.New("application requires full name and email", goerrors.CategoryValidation).
			WithTextCode(TextCodeValidationFailed).
			WithCode(goerrors.CodeBadRequest)
	}
	return nil
}
