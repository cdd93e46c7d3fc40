package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "github.com/daybreak-app/daybreak/internal/platform/errors"
	"github.com/daybreak-app/daybreak/internal/services/agent/auth"
	"github.com/daybreak-app/daybreak/internal/services/agent/identity"
	"github.com/daybreak-app/daybreak/internal/services/agent/prefs"
	"github.com/daybreak-app/daybreak/internal/services/agent/provider"
	"github.com/daybreak-app/daybreak/internal/services/agent/storage"
)

type fakeAuth struct {
	result auth.Result
	err    error

	lastEmail    string
	lastProvider string
	lastConvert  auth.ConvertRequest
	signedOut    bool
	deleted      bool
}

func (f *fakeAuth) Login(_ context.Context, email, _ string) (auth.Result, error) {
	f.lastEmail = email
	return f.result, f.err
}

func (f *fakeAuth) SignUp(_ context.Context, email, _ string) (auth.Result, error) {
	f.lastEmail = email
	return f.result, f.err
}

func (f *fakeAuth) SignInAnonymously(_ context.Context) (auth.Result, error) {
	return f.result, f.err
}

func (f *fakeAuth) ProviderSignIn(_ context.Context, providerID string) (auth.Result, error) {
	f.lastProvider = providerID
	return f.result, f.err
}

func (f *fakeAuth) ConvertAnonymousToPermanent(_ context.Context, request auth.ConvertRequest) (auth.Result, error) {
	f.lastConvert = request
	return f.result, f.err
}

func (f *fakeAuth) SignOut(_ context.Context) error {
	f.signedOut = true
	return f.err
}

func (f *fakeAuth) DeleteAccount(_ context.Context) error {
	f.deleted = true
	return f.err
}

type fakeSession struct {
	current identity.Identity
	ok      bool
}

func (s *fakeSession) Current() (identity.Identity, bool) {
	return s.current, s.ok
}

type memoryPersistence struct {
	mu      sync.Mutex
	records map[string]storage.PreferenceRecord
}

func newMemoryPersistence() *memoryPersistence {
	return &memoryPersistence{records: make(map[string]storage.PreferenceRecord)}
}

func (m *memoryPersistence) PutPreferences(_ context.Context, record storage.PreferenceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.OwnerID] = record
	return nil
}

func (m *memoryPersistence) GetPreferences(_ context.Context, ownerID string) (storage.PreferenceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[ownerID]
	if !ok {
		return storage.PreferenceRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (m *memoryPersistence) DeletePreferences(_ context.Context, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, ownerID)
	return nil
}

func newTestServer(t *testing.T, authService AuthService, session SessionReader) *httptest.Server {
	t.Helper()
	store := prefs.NewStore(newMemoryPersistence(), prefs.Options{Debounce: time.Hour})
	if err := store.Activate(context.Background(), "owner-1"); err != nil {
		t.Fatalf("activate preference store: %v", err)
	}
	mux := http.NewServeMux()
	NewHandler(authService, session, store).RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestLoginSuccessReturnsSuccessfulStatus(t *testing.T) {
	authService := &fakeAuth{result: auth.Result{
		OperationID: "op-1",
		Identity:    identity.Identity{ID: "u1", Email: "kim@example.com", LoginType: identity.LoginTypeEmail},
	}}
	server := newTestServer(t, authService, &fakeSession{})

	resp := postJSON(t, server.URL+"/v1/auth/login", `{"email":"kim@example.com","password":"hunter22"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body operationResponse
	decodeBody(t, resp, &body)
	if body.Status != "successful" {
		t.Fatalf("status = %q, want successful", body.Status)
	}
	if body.Identity.ID != "u1" || body.Identity.LoginType != "email" {
		t.Fatalf("identity = %+v", body.Identity)
	}
	if authService.lastEmail != "kim@example.com" {
		t.Fatalf("forwarded email = %q", authService.lastEmail)
	}
}

func TestLoginFailureMapsToAlert(t *testing.T) {
	authService := &fakeAuth{err: apperrors.New(apperrors.CodeInvalidCredentials, "wrong password")}
	server := newTestServer(t, authService, &fakeSession{})

	resp := postJSON(t, server.URL+"/v1/auth/login", `{"email":"kim@example.com","password":"wrong"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	var body errorResponse
	decodeBody(t, resp, &body)
	if body.Code != string(apperrors.CodeInvalidCredentials) {
		t.Fatalf("code = %q, want invalid credentials", body.Code)
	}
	if body.Alert.Title == "" || body.Alert.Message == "" {
		t.Fatalf("alert = %+v, want populated title and message", body.Alert)
	}
}

func TestProviderSignInRoutes(t *testing.T) {
	t.Run("google maps to the provider id", func(t *testing.T) {
		authService := &fakeAuth{result: auth.Result{Identity: identity.Identity{ID: "u1", LoginType: identity.LoginTypeGoogle}}}
		server := newTestServer(t, authService, &fakeSession{})

		resp := postJSON(t, server.URL+"/v1/auth/provider/google", `{}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		if authService.lastProvider != provider.GoogleID {
			t.Fatalf("provider = %q, want %q", authService.lastProvider, provider.GoogleID)
		}
	})

	t.Run("unknown provider is rejected", func(t *testing.T) {
		server := newTestServer(t, &fakeAuth{}, &fakeSession{})
		resp := postJSON(t, server.URL+"/v1/auth/provider/github", `{}`)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
		}
	})
}

func TestConvertValidatesMethod(t *testing.T) {
	server := newTestServer(t, &fakeAuth{}, &fakeSession{})
	resp := postJSON(t, server.URL+"/v1/auth/convert", `{"method":"carrier-pigeon"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestConvertForwardsRequest(t *testing.T) {
	authService := &fakeAuth{result: auth.Result{Identity: identity.Identity{ID: "u1", LoginType: identity.LoginTypeEmail}}}
	server := newTestServer(t, authService, &fakeSession{})

	resp := postJSON(t, server.URL+"/v1/auth/convert", `{"method":"email","email":"kim@example.com","password":"hunter22"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if authService.lastConvert.Method != identity.LoginTypeEmail || authService.lastConvert.Email != "kim@example.com" {
		t.Fatalf("forwarded convert request = %+v", authService.lastConvert)
	}
}

func TestSessionEndpoint(t *testing.T) {
	t.Run("signed out", func(t *testing.T) {
		server := newTestServer(t, &fakeAuth{}, &fakeSession{})
		resp, err := http.Get(server.URL + "/v1/session")
		if err != nil {
			t.Fatalf("GET /v1/session: %v", err)
		}
		defer resp.Body.Close()

		var body sessionResponse
		decodeBody(t, resp, &body)
		if body.SignedIn || body.Identity != nil {
			t.Fatalf("session = %+v, want signed out", body)
		}
	})

	t.Run("signed in", func(t *testing.T) {
		session := &fakeSession{
			current: identity.Identity{ID: "u1", LoginType: identity.LoginTypeGuest, Anonymous: true},
			ok:      true,
		}
		server := newTestServer(t, &fakeAuth{}, session)
		resp, err := http.Get(server.URL + "/v1/session")
		if err != nil {
			t.Fatalf("GET /v1/session: %v", err)
		}
		defer resp.Body.Close()

		var body sessionResponse
		decodeBody(t, resp, &body)
		if !body.SignedIn || body.Identity == nil || !body.Identity.Anonymous {
			t.Fatalf("session = %+v, want anonymous identity", body)
		}
	})
}

func TestPreferenceEndpointsRequireSession(t *testing.T) {
	server := newTestServer(t, &fakeAuth{}, &fakeSession{})
	resp, err := http.Get(server.URL + "/v1/preferences")
	if err != nil {
		t.Fatalf("GET /v1/preferences: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func putJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPut, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build PUT %s: %v", url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestPreferenceMutations(t *testing.T) {
	session := &fakeSession{
		current: identity.Identity{ID: "owner-1", LoginType: identity.LoginTypeEmail},
		ok:      true,
	}
	server := newTestServer(t, &fakeAuth{}, session)

	t.Run("set weekday wake-up time", func(t *testing.T) {
		resp := putJSON(t, server.URL+"/v1/preferences/wake-up-time/monday", `{"hour":7,"minute":30}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		var doc prefs.Preferences
		decodeBody(t, resp, &doc)
		if got := doc.WakeUpTimes[time.Monday]; got != (prefs.TimeOfDay{Hour: 7, Minute: 30}) {
			t.Fatalf("monday time = %+v", got)
		}
	})

	t.Run("set step goal", func(t *testing.T) {
		resp := putJSON(t, server.URL+"/v1/preferences/step-goal", `{"goal":8000}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		var doc prefs.Preferences
		decodeBody(t, resp, &doc)
		if doc.StepGoal == nil || *doc.StepGoal != 8000 {
			t.Fatalf("step goal = %v, want 8000", doc.StepGoal)
		}
	})

	t.Run("reject non-positive step goal", func(t *testing.T) {
		resp := putJSON(t, server.URL+"/v1/preferences/step-goal", `{"goal":0}`)
		if resp.StatusCode == http.StatusOK {
			t.Fatal("step goal of zero accepted")
		}
	})

	t.Run("unknown field", func(t *testing.T) {
		resp := putJSON(t, server.URL+"/v1/preferences/favorite-color", `{"value":"red"}`)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
		}
	})
}

func TestEffectiveWakeUpTimeQuery(t *testing.T) {
	session := &fakeSession{
		current: identity.Identity{ID: "owner-1", LoginType: identity.LoginTypeEmail},
		ok:      true,
	}
	server := newTestServer(t, &fakeAuth{}, session)

	// Monday-specific time wins over the everyday time.
	putJSON(t, server.URL+"/v1/preferences/wake-up-time/monday", `{"hour":6,"minute":15}`)
	putJSON(t, server.URL+"/v1/preferences/everyday-time", `{"hour":8,"minute":0}`)

	resp, err := http.Get(server.URL + "/v1/preferences/effective-wake-up-time?date=2026-08-31T00:00:00Z")
	if err != nil {
		t.Fatalf("GET effective wake-up time: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]*prefs.TimeOfDay
	decodeBody(t, resp, &body)
	got := body["wakeUpTime"]
	if got == nil || *got != (prefs.TimeOfDay{Hour: 6, Minute: 15}) {
		t.Fatalf("effective time = %+v, want 06:15", got)
	}
}

func TestHealthz(t *testing.T) {
	server := newTestServer(t, &fakeAuth{}, &fakeSession{})
	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}
