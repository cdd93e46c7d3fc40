package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/daybreak-app/daybreak/internal/platform/errors"
	"github.com/daybreak-app/daybreak/internal/platform/id"
	"github.com/daybreak-app/daybreak/internal/services/agent/identity"
	"github.com/daybreak-app/daybreak/internal/services/agent/provider"
)

// ErrNoUsableResult indicates the backend reported success without a session.
var ErrNoUsableResult = apperrors.New(apperrors.CodeUnknown, "backend reported success without a usable result")

// ErrNotAuthenticated indicates an operation that requires a session was
// invoked without one.
var ErrNotAuthenticated = apperrors.New(apperrors.CodeNotAuthenticated, "no authenticated session")

// HTTPClient talks to the identity backend's REST endpoints.
//
// The client holds the single device session (ID token plus refresh token) and
// publishes an identity-changed event after every successful exchange.
type HTTPClient struct {
	config     Config
	httpClient *http.Client
	notifier   *Notifier

	mu           sync.Mutex
	idToken      string
	refreshToken string
}

// NewHTTPClient creates a backend client from config.
func NewHTTPClient(config Config) *HTTPClient {
	return &HTTPClient{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		notifier:   NewNotifier(),
	}
}

// Watch subscribes to identity-changed notifications.
func (c *HTTPClient) Watch() (<-chan Event, func()) {
	return c.notifier.Watch()
}

// sessionResponse is the account payload returned by credential exchanges.
type sessionResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ProviderID   string `json:"providerId"`
}

// SignInWithPassword exchanges email/password credentials for a session.
func (c *HTTPClient) SignInWithPassword(ctx context.Context, email, password string) (identity.UserRecord, error) {
	var resp sessionResponse
	err := c.post(ctx, "signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return identity.UserRecord{}, err
	}
	return c.adoptSession(ctx, resp)
}

// SignUp creates a new permanent account with email/password credentials.
func (c *HTTPClient) SignUp(ctx context.Context, email, password string) (identity.UserRecord, error) {
	var resp sessionResponse
	err := c.post(ctx, "signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return identity.UserRecord{}, err
	}
	return c.adoptSession(ctx, resp)
}

// SignInAnonymously creates a disposable guest session.
func (c *HTTPClient) SignInAnonymously(ctx context.Context) (identity.UserRecord, error) {
	var resp sessionResponse
	err := c.post(ctx, "signUp", map[string]any{
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return identity.UserRecord{}, err
	}
	return c.adoptSession(ctx, resp)
}

// SignInWithProvider exchanges a provider credential for a session.
func (c *HTTPClient) SignInWithProvider(ctx context.Context, credential provider.Credential) (identity.UserRecord, error) {
	return c.exchangeProvider(ctx, credential, "")
}

// LinkProvider attaches a provider credential to the current session,
// preserving the account id.
func (c *HTTPClient) LinkProvider(ctx context.Context, credential provider.Credential) (identity.UserRecord, error) {
	token := c.currentIDToken()
	if token == "" {
		return identity.UserRecord{}, ErrNotAuthenticated
	}
	return c.exchangeProvider(ctx, credential, token)
}

func (c *HTTPClient) exchangeProvider(ctx context.Context, credential provider.Credential, linkToken string) (identity.UserRecord, error) {
	postBody := url.Values{}
	postBody.Set("id_token", credential.IDToken)
	postBody.Set("providerId", credential.Provider)
	if credential.AccessToken != "" {
		postBody.Set("access_token", credential.AccessToken)
	}
	if credential.RawNonce != "" {
		postBody.Set("nonce", credential.RawNonce)
	}

	payload := map[string]any{
		"postBody":          postBody.Encode(),
		"requestUri":        "http://localhost",
		"returnSecureToken": true,
	}
	if linkToken != "" {
		payload["idToken"] = linkToken
	}

	var resp sessionResponse
	if err := c.post(ctx, "signInWithIdp", payload, &resp); err != nil {
		return identity.UserRecord{}, err
	}
	return c.adoptSession(ctx, resp)
}

// LinkPassword attaches email/password credentials to the current session,
// preserving the account id.
func (c *HTTPClient) LinkPassword(ctx context.Context, email, password string) (identity.UserRecord, error) {
	token := c.currentIDToken()
	if token == "" {
		return identity.UserRecord{}, ErrNotAuthenticated
	}

	var resp sessionResponse
	err := c.post(ctx, "update", map[string]any{
		"idToken":           token,
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return identity.UserRecord{}, err
	}
	return c.adoptSession(ctx, resp)
}

// SignOut revokes the current session server-side and clears local tokens.
func (c *HTTPClient) SignOut(ctx context.Context) error {
	token := c.currentIDToken()
	if token == "" {
		return ErrNotAuthenticated
	}
	if err := c.post(ctx, "signOut", map[string]any{"idToken": token}, nil); err != nil {
		return err
	}
	c.clearSession()
	return nil
}

// DeleteAccount deletes the backend account behind the current session.
func (c *HTTPClient) DeleteAccount(ctx context.Context) error {
	token := c.currentIDToken()
	if token == "" {
		return ErrNotAuthenticated
	}
	if err := c.post(ctx, "delete", map[string]any{"idToken": token}, nil); err != nil {
		return err
	}
	c.clearSession()
	return nil
}

// adoptSession stores the exchanged tokens, refreshes the account record, and
// publishes the identity-changed notification.
func (c *HTTPClient) adoptSession(ctx context.Context, resp sessionResponse) (identity.UserRecord, error) {
	if resp.LocalID == "" || resp.IDToken == "" {
		return identity.UserRecord{}, ErrNoUsableResult
	}

	c.mu.Lock()
	c.idToken = resp.IDToken
	if resp.RefreshToken != "" {
		c.refreshToken = resp.RefreshToken
	}
	c.mu.Unlock()

	record, err := c.lookup(ctx)
	if err != nil {
		return identity.UserRecord{}, err
	}
	c.notifier.Publish(Event{Record: &record})
	return record, nil
}

// lookup fetches the authoritative account record for the current session.
func (c *HTTPClient) lookup(ctx context.Context) (identity.UserRecord, error) {
	token := c.currentIDToken()
	if token == "" {
		return identity.UserRecord{}, ErrNotAuthenticated
	}

	var resp struct {
		Users []struct {
			LocalID          string `json:"localId"`
			Email            string `json:"email"`
			ProviderUserInfo []struct {
				ProviderID string `json:"providerId"`
			} `json:"providerUserInfo"`
		} `json:"users"`
	}
	if err := c.post(ctx, "lookup", map[string]any{"idToken": token}, &resp); err != nil {
		return identity.UserRecord{}, err
	}
	if len(resp.Users) == 0 {
		return identity.UserRecord{}, ErrNoUsableResult
	}

	account := resp.Users[0]
	record := identity.UserRecord{
		UID:       account.LocalID,
		Email:     account.Email,
		Anonymous: signInProvider(token) == "anonymous",
	}
	for _, info := range account.ProviderUserInfo {
		record.ProviderIDs = append(record.ProviderIDs, info.ProviderID)
	}
	return record, nil
}

func (c *HTTPClient) currentIDToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idToken
}

func (c *HTTPClient) clearSession() {
	c.mu.Lock()
	c.idToken = ""
	c.refreshToken = ""
	c.mu.Unlock()
	c.notifier.Publish(Event{})
}

// post sends one backend request and classifies failures per the agent's
// error taxonomy.
func (c *HTTPClient) post(ctx context.Context, action string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeUnknown, "encode backend request", err)
	}

	endpoint := strings.TrimSuffix(c.config.BaseURL, "/") + "/v1/accounts:" + action
	if c.config.APIKey != "" {
		endpoint += "?key=" + url.QueryEscape(c.config.APIKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return apperrors.Wrap(apperrors.CodeUnknown, "build backend request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if requestID, err := id.NewID(); err == nil {
		req.Header.Set("X-Request-Id", requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeNetworkError, "identity backend unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var failure struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		return classifyBackendError(failure.Error.Message, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Wrap(apperrors.CodeUnknown, "decode backend response", err)
	}
	return nil
}

// classifyBackendError buckets the backend's error strings into the agent's
// failure taxonomy. The backend sometimes appends a reason after a colon, so
// only the leading token is inspected.
func classifyBackendError(message string, status int) error {
	code, _, _ := strings.Cut(strings.TrimSpace(message), ":")
	switch strings.TrimSpace(code) {
	case "EMAIL_EXISTS":
		return apperrors.New(apperrors.CodeAccountExists, "an account already exists for this email")
	case "INVALID_LOGIN_CREDENTIALS", "INVALID_PASSWORD", "EMAIL_NOT_FOUND", "INVALID_EMAIL", "USER_DISABLED":
		return apperrors.New(apperrors.CodeInvalidCredentials, "invalid credentials")
	case "INVALID_ID_TOKEN", "TOKEN_EXPIRED", "USER_NOT_FOUND":
		return apperrors.New(apperrors.CodeNotAuthenticated, "session is no longer valid")
	default:
		return apperrors.New(apperrors.CodeUnknown, fmt.Sprintf("backend error %d: %s", status, message))
	}
}

// idTokenClaims is the subset of session token claims the agent inspects.
type idTokenClaims struct {
	jwt.RegisteredClaims
	UserID         string `json:"user_id"`
	SignInProvider string `json:"sign_in_provider"`
}

// signInProvider extracts the sign-in provider claim without verifying the
// token signature; validation is the backend's responsibility and the claim is
// only used to derive the anonymous flag.
func signInProvider(idToken string) string {
	var claims idTokenClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(idToken, &claims); err != nil {
		return ""
	}
	return claims.SignInProvider
}
