// Package auth orchestrates authentication operations against the identity
// backend and keeps local state aligned with the resulting session.
package auth

import (
	"context"
	"log"

	apperrors "github.com/daybreak-app/daybreak/internal/platform/errors"
	"github.com/daybreak-app/daybreak/internal/services/agent/backend"
	"github.com/daybreak-app/daybreak/internal/services/agent/identity"
	"github.com/daybreak-app/daybreak/internal/services/agent/provider"
)

var (
	// ErrNotAuthenticated indicates an operation that needs a session was
	// invoked without one.
	ErrNotAuthenticated = apperrors.New(apperrors.CodeNotAuthenticated, "no authenticated session")
	// ErrNotAnonymous indicates a conversion was attempted on a permanent session.
	ErrNotAnonymous = apperrors.New(apperrors.CodeNotAnonymous, "current session is not anonymous")
	// ErrUnknownProvider indicates a provider sign-in with no configured adapter.
	ErrUnknownProvider = apperrors.New(apperrors.CodeMissingClientConfiguration, "no adapter configured for provider")
)

// SessionReader exposes the confirmed session state the orchestrator guards on.
type SessionReader interface {
	Current() (identity.Identity, bool)
}

// LocalState is the non-identity local state cleared around session changes.
type LocalState interface {
	Activate(ctx context.Context, ownerID string) error
	Deactivate()
	Purge(ctx context.Context) error
}

// Metrics receives one event per finished operation.
type Metrics interface {
	RecordAuthOperation(method string, outcome string)
}

// Result is the terminal state of one successful operation. OperationID ties
// the result back to the tracker entry the caller observed.
type Result struct {
	OperationID string
	Identity    identity.Identity
}

// Orchestrator exposes one operation per authentication method.
//
// Operations return the confirmed identity directly, but the session store is
// only ever updated through the backend's identity-changed stream.
type Orchestrator struct {
	backend backend.Client
	session SessionReader
	sources map[string]provider.TokenSource
	local   LocalState
	metrics Metrics
	tracker *Tracker
}

// New creates an orchestrator. Provider token sources are optional; a sign-in
// for a provider without a source fails with MissingClientConfiguration.
func New(client backend.Client, session SessionReader, local LocalState, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend: client,
		session: session,
		sources: make(map[string]provider.TokenSource),
		local:   local,
		tracker: NewTracker(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option customizes an orchestrator.
type Option func(*Orchestrator)

// WithTokenSource registers a credential adapter for a provider id.
func WithTokenSource(providerID string, source provider.TokenSource) Option {
	return func(o *Orchestrator) { o.sources[providerID] = source }
}

// WithMetrics attaches an operation metrics sink.
func WithMetrics(metrics Metrics) Option {
	return func(o *Orchestrator) { o.metrics = metrics }
}

// Tracker exposes in-flight operation state for the UI surface.
func (o *Orchestrator) Tracker() *Tracker {
	return o.tracker
}

// Login exchanges email/password credentials for a session.
func (o *Orchestrator) Login(ctx context.Context, email, password string) (Result, error) {
	return o.run(ctx, MethodLogin, func(ctx context.Context) (identity.UserRecord, error) {
		return o.backend.SignInWithPassword(ctx, email, password)
	})
}

// SignUp creates a new permanent account.
func (o *Orchestrator) SignUp(ctx context.Context, email, password string) (Result, error) {
	return o.run(ctx, MethodSignUp, func(ctx context.Context) (identity.UserRecord, error) {
		return o.backend.SignUp(ctx, email, password)
	})
}

// SignInAnonymously creates a disposable guest session.
func (o *Orchestrator) SignInAnonymously(ctx context.Context) (Result, error) {
	return o.run(ctx, MethodAnonymous, func(ctx context.Context) (identity.UserRecord, error) {
		return o.backend.SignInAnonymously(ctx)
	})
}

// ProviderSignIn obtains a provider credential via the configured adapter and
// exchanges it with the backend.
func (o *Orchestrator) ProviderSignIn(ctx context.Context, providerID string) (Result, error) {
	method := methodForProvider(providerID)
	source, ok := o.sources[providerID]
	if !ok || source == nil {
		o.record(method, ErrUnknownProvider)
		return Result{}, ErrUnknownProvider
	}
	return o.run(ctx, method, func(ctx context.Context) (identity.UserRecord, error) {
		credential, err := source.Token(ctx)
		if err != nil {
			return identity.UserRecord{}, err
		}
		return o.backend.SignInWithProvider(ctx, credential)
	})
}

// ConvertRequest selects the permanent method an anonymous session upgrades to.
type ConvertRequest struct {
	Method   identity.LoginType
	Email    string
	Password string
}

// ConvertAnonymousToPermanent links a permanent credential onto the current
// anonymous session, preserving its identity id.
func (o *Orchestrator) ConvertAnonymousToPermanent(ctx context.Context, request ConvertRequest) (Result, error) {
	current, ok := o.session.Current()
	if !ok {
		o.record(MethodConvert, ErrNotAuthenticated)
		return Result{}, ErrNotAuthenticated
	}
	if !current.Anonymous {
		o.record(MethodConvert, ErrNotAnonymous)
		return Result{}, ErrNotAnonymous
	}

	// The owner id is unchanged on a successful conversion, so local state
	// stays active as-is; re-activating would reload the persisted document
	// over unflushed in-memory changes.
	result, err := o.runKeepingLocalState(ctx, MethodConvert, func(ctx context.Context) (identity.UserRecord, error) {
		switch request.Method {
		case identity.LoginTypeEmail:
			return o.backend.LinkPassword(ctx, request.Email, request.Password)
		case identity.LoginTypeGoogle, identity.LoginTypeApple:
			providerID := provider.GoogleID
			if request.Method == identity.LoginTypeApple {
				providerID = provider.AppleID
			}
			source, ok := o.sources[providerID]
			if !ok || source == nil {
				return identity.UserRecord{}, ErrUnknownProvider
			}
			credential, err := source.Token(ctx)
			if err != nil {
				return identity.UserRecord{}, err
			}
			return o.backend.LinkProvider(ctx, credential)
		default:
			return identity.UserRecord{}, apperrors.New(apperrors.CodeUnknown, "unsupported conversion method")
		}
	})
	if err != nil {
		return result, err
	}
	if result.Identity.ID != current.ID {
		// The backend must link in place; a changed id means the account was
		// replaced rather than upgraded.
		return result, apperrors.WithMetadata(apperrors.CodeUnknown, "conversion changed the identity id", map[string]string{
			"previous_id": current.ID,
			"new_id":      result.Identity.ID,
		})
	}
	return result, nil
}

// SignOut revokes the session and clears local non-identity state.
func (o *Orchestrator) SignOut(ctx context.Context) error {
	opID := o.tracker.Begin(MethodSignOut)
	defer o.tracker.End(opID)

	if err := o.backend.SignOut(ctx); err != nil {
		o.record(MethodSignOut, err)
		return err
	}
	if o.local != nil {
		o.local.Deactivate()
	}
	o.record(MethodSignOut, nil)
	return nil
}

// DeleteAccount removes the backend account and clears local state. The
// session may be anonymous but must exist.
func (o *Orchestrator) DeleteAccount(ctx context.Context) error {
	if _, ok := o.session.Current(); !ok {
		o.record(MethodDelete, ErrNotAuthenticated)
		return ErrNotAuthenticated
	}

	opID := o.tracker.Begin(MethodDelete)
	defer o.tracker.End(opID)

	if err := o.backend.DeleteAccount(ctx); err != nil {
		o.record(MethodDelete, err)
		return err
	}
	if o.local != nil {
		if err := o.local.Purge(ctx); err != nil {
			log.Printf("purge local state after account deletion: %v", err)
		}
	}
	o.record(MethodDelete, nil)
	return nil
}

// run executes one sign-in-shaped operation under its own tracker entry and
// activates local state for the confirmed identity.
func (o *Orchestrator) run(ctx context.Context, method Method, exchange func(context.Context) (identity.UserRecord, error)) (Result, error) {
	return o.exchange(ctx, method, true, exchange)
}

// runKeepingLocalState is run without the activation step, for operations
// that keep the current owner.
func (o *Orchestrator) runKeepingLocalState(ctx context.Context, method Method, exchange func(context.Context) (identity.UserRecord, error)) (Result, error) {
	return o.exchange(ctx, method, false, exchange)
}

func (o *Orchestrator) exchange(ctx context.Context, method Method, activate bool, exchange func(context.Context) (identity.UserRecord, error)) (Result, error) {
	opID := o.tracker.Begin(method)
	defer o.tracker.End(opID)

	record, err := exchange(ctx)
	if err != nil {
		o.record(method, err)
		return Result{OperationID: opID}, err
	}

	if activate && o.local != nil {
		if err := o.local.Activate(ctx, record.UID); err != nil {
			log.Printf("activate local state for %s: %v", record.UID, err)
		}
	}
	o.record(method, nil)
	return Result{OperationID: opID, Identity: identity.Classify(record)}, nil
}

func (o *Orchestrator) record(method Method, err error) {
	if o.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(apperrors.CodeOf(err))
	}
	o.metrics.RecordAuthOperation(string(method), outcome)
}

func methodForProvider(providerID string) Method {
	switch providerID {
	case provider.GoogleID:
		return MethodGoogle
	case provider.AppleID:
		return MethodApple
	default:
		return Method(providerID)
	}
}
