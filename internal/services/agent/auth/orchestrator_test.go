package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/daybreak-app/daybreak/internal/platform/errors"
	"github.com/daybreak-app/daybreak/internal/services/agent/backend"
	"github.com/daybreak-app/daybreak/internal/services/agent/identity"
	"github.com/daybreak-app/daybreak/internal/services/agent/prefs"
	"github.com/daybreak-app/daybreak/internal/services/agent/provider"
	"github.com/daybreak-app/daybreak/internal/services/agent/storage"
)

type fakeClient struct {
	notifier *backend.Notifier

	signInErr error
	signUpErr error
	linkErr   error

	record     identity.UserRecord
	linkRecord identity.UserRecord

	lastCredential provider.Credential
	signedOut      bool
	deleted        bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{notifier: backend.NewNotifier()}
}

func (c *fakeClient) exchange(err error, record identity.UserRecord) (identity.UserRecord, error) {
	if err != nil {
		return identity.UserRecord{}, err
	}
	c.notifier.Publish(backend.Event{Record: &record})
	return record, nil
}

func (c *fakeClient) SignInWithPassword(_ context.Context, _, _ string) (identity.UserRecord, error) {
	return c.exchange(c.signInErr, c.record)
}

func (c *fakeClient) SignUp(_ context.Context, _, _ string) (identity.UserRecord, error) {
	return c.exchange(c.signUpErr, c.record)
}

func (c *fakeClient) SignInAnonymously(_ context.Context) (identity.UserRecord, error) {
	return c.exchange(nil, identity.UserRecord{UID: c.record.UID, Anonymous: true})
}

func (c *fakeClient) SignInWithProvider(_ context.Context, credential provider.Credential) (identity.UserRecord, error) {
	c.lastCredential = credential
	return c.exchange(c.signInErr, c.record)
}

func (c *fakeClient) LinkPassword(_ context.Context, _, _ string) (identity.UserRecord, error) {
	return c.exchange(c.linkErr, c.linkRecord)
}

func (c *fakeClient) LinkProvider(_ context.Context, credential provider.Credential) (identity.UserRecord, error) {
	c.lastCredential = credential
	return c.exchange(c.linkErr, c.linkRecord)
}

func (c *fakeClient) SignOut(_ context.Context) error {
	c.signedOut = true
	c.notifier.Publish(backend.Event{})
	return nil
}

func (c *fakeClient) DeleteAccount(_ context.Context) error {
	c.deleted = true
	c.notifier.Publish(backend.Event{})
	return nil
}

func (c *fakeClient) Watch() (<-chan backend.Event, func()) {
	return c.notifier.Watch()
}

type fakeSession struct {
	current identity.Identity
	ok      bool
}

func (s *fakeSession) Current() (identity.Identity, bool) {
	return s.current, s.ok
}

type fakeLocal struct {
	activated   []string
	activateErr error
	deactivated bool
	purged      bool
}

func (l *fakeLocal) Activate(_ context.Context, ownerID string) error {
	l.activated = append(l.activated, ownerID)
	return l.activateErr
}

func (l *fakeLocal) Deactivate() { l.deactivated = true }

func (l *fakeLocal) Purge(_ context.Context) error {
	l.purged = true
	return nil
}

type fakeTokenSource struct {
	credential provider.Credential
	err        error
}

func (s *fakeTokenSource) Token(_ context.Context) (provider.Credential, error) {
	return s.credential, s.err
}

type recordedOp struct {
	method  string
	outcome string
}

type fakeMetrics struct {
	ops []recordedOp
}

func (m *fakeMetrics) RecordAuthOperation(method, outcome string) {
	m.ops = append(m.ops, recordedOp{method, outcome})
}

func TestLoginActivatesLocalState(t *testing.T) {
	client := newFakeClient()
	client.record = identity.UserRecord{UID: "u1", Email: "kim@example.com", ProviderIDs: []string{"password"}}
	local := &fakeLocal{}
	metrics := &fakeMetrics{}
	orch := New(client, &fakeSession{}, local, WithMetrics(metrics))

	result, err := orch.Login(context.Background(), "kim@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.Identity.ID != "u1" || result.Identity.LoginType != identity.LoginTypeEmail {
		t.Fatalf("Login() identity = %+v", result.Identity)
	}
	if result.OperationID == "" {
		t.Fatal("Login() returned empty operation id")
	}
	if len(local.activated) != 1 || local.activated[0] != "u1" {
		t.Fatalf("activated owners = %v, want [u1]", local.activated)
	}
	want := recordedOp{"login", "ok"}
	if len(metrics.ops) != 1 || metrics.ops[0] != want {
		t.Fatalf("metrics = %v, want [%v]", metrics.ops, want)
	}
}

func TestLoginFailureSkipsLocalState(t *testing.T) {
	client := newFakeClient()
	client.signInErr = apperrors.New(apperrors.CodeInvalidCredentials, "wrong password")
	local := &fakeLocal{}
	metrics := &fakeMetrics{}
	orch := New(client, &fakeSession{}, local, WithMetrics(metrics))

	_, err := orch.Login(context.Background(), "kim@example.com", "wrong")
	if apperrors.CodeOf(err) != apperrors.CodeInvalidCredentials {
		t.Fatalf("Login() error = %v, want invalid credentials", err)
	}
	if len(local.activated) != 0 {
		t.Fatalf("activated owners = %v, want none", local.activated)
	}
	want := recordedOp{"login", string(apperrors.CodeInvalidCredentials)}
	if len(metrics.ops) != 1 || metrics.ops[0] != want {
		t.Fatalf("metrics = %v, want [%v]", metrics.ops, want)
	}
}

func TestSignInAnonymouslyClassifiesGuest(t *testing.T) {
	client := newFakeClient()
	client.record = identity.UserRecord{UID: "anon1"}
	orch := New(client, &fakeSession{}, &fakeLocal{})

	result, err := orch.SignInAnonymously(context.Background())
	if err != nil {
		t.Fatalf("SignInAnonymously() error = %v", err)
	}
	if !result.Identity.Anonymous || result.Identity.LoginType != identity.LoginTypeGuest {
		t.Fatalf("identity = %+v, want anonymous guest", result.Identity)
	}
}

func TestProviderSignIn(t *testing.T) {
	t.Run("forwards credential from the adapter", func(t *testing.T) {
		client := newFakeClient()
		client.record = identity.UserRecord{UID: "u2", ProviderIDs: []string{provider.GoogleID}}
		source := &fakeTokenSource{credential: provider.Credential{
			Provider: provider.GoogleID,
			IDToken:  "token-123",
		}}
		orch := New(client, &fakeSession{}, &fakeLocal{}, WithTokenSource(provider.GoogleID, source))

		result, err := orch.ProviderSignIn(context.Background(), provider.GoogleID)
		if err != nil {
			t.Fatalf("ProviderSignIn() error = %v", err)
		}
		if result.Identity.LoginType != identity.LoginTypeGoogle {
			t.Fatalf("login type = %v, want google", result.Identity.LoginType)
		}
		if client.lastCredential.IDToken != "token-123" {
			t.Fatalf("forwarded token = %q, want token-123", client.lastCredential.IDToken)
		}
	})

	t.Run("fails without a configured adapter", func(t *testing.T) {
		orch := New(newFakeClient(), &fakeSession{}, &fakeLocal{})
		_, err := orch.ProviderSignIn(context.Background(), provider.AppleID)
		if apperrors.CodeOf(err) != apperrors.CodeMissingClientConfiguration {
			t.Fatalf("error = %v, want missing client configuration", err)
		}
	})

	t.Run("propagates adapter cancellation", func(t *testing.T) {
		source := &fakeTokenSource{err: provider.ErrUserCancelled}
		orch := New(newFakeClient(), &fakeSession{}, &fakeLocal{},
			WithTokenSource(provider.AppleID, source))
		_, err := orch.ProviderSignIn(context.Background(), provider.AppleID)
		if !errors.Is(err, provider.ErrUserCancelled) {
			t.Fatalf("error = %v, want user cancelled", err)
		}
	})
}

func TestConvertAnonymousToPermanent(t *testing.T) {
	t.Run("requires a session", func(t *testing.T) {
		orch := New(newFakeClient(), &fakeSession{}, &fakeLocal{})
		_, err := orch.ConvertAnonymousToPermanent(context.Background(), ConvertRequest{
			Method: identity.LoginTypeEmail,
		})
		if apperrors.CodeOf(err) != apperrors.CodeNotAuthenticated {
			t.Fatalf("error = %v, want not authenticated", err)
		}
	})

	t.Run("rejects permanent sessions", func(t *testing.T) {
		session := &fakeSession{
			current: identity.Identity{ID: "u1", LoginType: identity.LoginTypeEmail},
			ok:      true,
		}
		orch := New(newFakeClient(), session, &fakeLocal{})
		_, err := orch.ConvertAnonymousToPermanent(context.Background(), ConvertRequest{
			Method: identity.LoginTypeEmail,
		})
		if apperrors.CodeOf(err) != apperrors.CodeNotAnonymous {
			t.Fatalf("error = %v, want not anonymous", err)
		}
	})

	t.Run("links password and preserves the identity id", func(t *testing.T) {
		client := newFakeClient()
		client.linkRecord = identity.UserRecord{UID: "anon1", Email: "kim@example.com", ProviderIDs: []string{"password"}}
		session := &fakeSession{
			current: identity.Identity{ID: "anon1", LoginType: identity.LoginTypeGuest, Anonymous: true},
			ok:      true,
		}
		orch := New(client, session, &fakeLocal{})

		result, err := orch.ConvertAnonymousToPermanent(context.Background(), ConvertRequest{
			Method:   identity.LoginTypeEmail,
			Email:    "kim@example.com",
			Password: "hunter22",
		})
		if err != nil {
			t.Fatalf("ConvertAnonymousToPermanent() error = %v", err)
		}
		if result.Identity.ID != "anon1" {
			t.Fatalf("identity id = %q, want anon1", result.Identity.ID)
		}
		if result.Identity.Anonymous || result.Identity.LoginType != identity.LoginTypeEmail {
			t.Fatalf("identity = %+v, want permanent email login", result.Identity)
		}
	})

	t.Run("rejects a changed identity id", func(t *testing.T) {
		client := newFakeClient()
		client.linkRecord = identity.UserRecord{UID: "different", ProviderIDs: []string{"password"}}
		session := &fakeSession{
			current: identity.Identity{ID: "anon1", LoginType: identity.LoginTypeGuest, Anonymous: true},
			ok:      true,
		}
		orch := New(client, session, &fakeLocal{})

		_, err := orch.ConvertAnonymousToPermanent(context.Background(), ConvertRequest{
			Method:   identity.LoginTypeEmail,
			Email:    "kim@example.com",
			Password: "hunter22",
		})
		if err == nil {
			t.Fatal("ConvertAnonymousToPermanent() accepted a replaced account")
		}
	})

	t.Run("links a provider credential", func(t *testing.T) {
		client := newFakeClient()
		client.linkRecord = identity.UserRecord{UID: "anon1", ProviderIDs: []string{provider.AppleID}}
		source := &fakeTokenSource{credential: provider.Credential{
			Provider: provider.AppleID,
			IDToken:  "apple-token",
			RawNonce: "raw-nonce",
		}}
		session := &fakeSession{
			current: identity.Identity{ID: "anon1", LoginType: identity.LoginTypeGuest, Anonymous: true},
			ok:      true,
		}
		orch := New(client, session, &fakeLocal{}, WithTokenSource(provider.AppleID, source))

		result, err := orch.ConvertAnonymousToPermanent(context.Background(), ConvertRequest{
			Method: identity.LoginTypeApple,
		})
		if err != nil {
			t.Fatalf("ConvertAnonymousToPermanent() error = %v", err)
		}
		if result.Identity.LoginType != identity.LoginTypeApple {
			t.Fatalf("login type = %v, want apple", result.Identity.LoginType)
		}
		if client.lastCredential.RawNonce != "raw-nonce" {
			t.Fatalf("forwarded nonce = %q, want raw-nonce", client.lastCredential.RawNonce)
		}
	})
}

func TestSignOutDeactivatesLocalState(t *testing.T) {
	client := newFakeClient()
	local := &fakeLocal{}
	orch := New(client, &fakeSession{}, local)

	if err := orch.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if !client.signedOut {
		t.Fatal("backend sign-out not invoked")
	}
	if !local.deactivated {
		t.Fatal("local state not deactivated")
	}
	if local.purged {
		t.Fatal("sign-out must not purge persisted state")
	}
}

func TestDeleteAccount(t *testing.T) {
	t.Run("requires a session", func(t *testing.T) {
		client := newFakeClient()
		orch := New(client, &fakeSession{}, &fakeLocal{})
		err := orch.DeleteAccount(context.Background())
		if apperrors.CodeOf(err) != apperrors.CodeNotAuthenticated {
			t.Fatalf("error = %v, want not authenticated", err)
		}
		if client.deleted {
			t.Fatal("backend deletion invoked without a session")
		}
	})

	t.Run("purges local state", func(t *testing.T) {
		client := newFakeClient()
		local := &fakeLocal{}
		session := &fakeSession{
			current: identity.Identity{ID: "anon1", LoginType: identity.LoginTypeGuest, Anonymous: true},
			ok:      true,
		}
		orch := New(client, session, local)

		if err := orch.DeleteAccount(context.Background()); err != nil {
			t.Fatalf("DeleteAccount() error = %v", err)
		}
		if !client.deleted {
			t.Fatal("backend deletion not invoked")
		}
		if !local.purged {
			t.Fatal("local state not purged")
		}
	})
}

// memoryPersistence backs a real preference store for the upgrade scenario.
type memoryPersistence struct {
	records map[string]storage.PreferenceRecord
}

func (m *memoryPersistence) PutPreferences(_ context.Context, record storage.PreferenceRecord) error {
	m.records[record.OwnerID] = record
	return nil
}

func (m *memoryPersistence) GetPreferences(_ context.Context, ownerID string) (storage.PreferenceRecord, error) {
	record, ok := m.records[ownerID]
	if !ok {
		return storage.PreferenceRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (m *memoryPersistence) DeletePreferences(_ context.Context, ownerID string) error {
	delete(m.records, ownerID)
	return nil
}

func TestAnonymousUpgradeKeepsPreferences(t *testing.T) {
	client := newFakeClient()
	client.record = identity.UserRecord{UID: "anon1"}
	client.linkRecord = identity.UserRecord{UID: "anon1", Email: "kim@example.com", ProviderIDs: []string{"password"}}

	preferences := prefs.NewStore(&memoryPersistence{records: make(map[string]storage.PreferenceRecord)}, prefs.Options{Debounce: time.Hour})
	session := &fakeSession{}
	orch := New(client, session, preferences)

	result, err := orch.SignInAnonymously(context.Background())
	if err != nil {
		t.Fatalf("SignInAnonymously() error = %v", err)
	}
	session.current = result.Identity
	session.ok = true

	goal := 8000
	if err := preferences.SetStepGoal(&goal); err != nil {
		t.Fatalf("SetStepGoal() error = %v", err)
	}

	converted, err := orch.ConvertAnonymousToPermanent(context.Background(), ConvertRequest{
		Method:   identity.LoginTypeEmail,
		Email:    "kim@example.com",
		Password: "hunter22",
	})
	if err != nil {
		t.Fatalf("ConvertAnonymousToPermanent() error = %v", err)
	}
	if converted.Identity.ID != "anon1" {
		t.Fatalf("identity id = %q, want anon1", converted.Identity.ID)
	}
	if converted.Identity.Anonymous || converted.Identity.LoginType != identity.LoginTypeEmail {
		t.Fatalf("identity = %+v, want permanent email login", converted.Identity)
	}

	current := preferences.Current()
	if current.StepGoal == nil || *current.StepGoal != 8000 {
		t.Fatalf("step goal after conversion = %v, want 8000", current.StepGoal)
	}
}

func TestTrackerClearsAfterOperations(t *testing.T) {
	client := newFakeClient()
	client.record = identity.UserRecord{UID: "u1", ProviderIDs: []string{"password"}}
	orch := New(client, &fakeSession{}, &fakeLocal{})

	if _, err := orch.Login(context.Background(), "kim@example.com", "hunter22"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if orch.Tracker().AnyInFlight() {
		t.Fatal("tracker still reports in-flight work after completion")
	}
}
