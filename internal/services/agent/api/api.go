// Package api exposes the agent's localhost HTTP surface. It is the
// view-model layer: every authentication operation and preference mutation a
// front end performs goes through these handlers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/daybreak-app/daybreak/internal/services/agent/auth"
	"github.com/daybreak-app/daybreak/internal/services/agent/identity"
	"github.com/daybreak-app/daybreak/internal/services/agent/prefs"
	"github.com/daybreak-app/daybreak/internal/services/agent/provider"
)

// AuthService is the slice of the orchestrator the handlers invoke.
type AuthService interface {
	Login(ctx context.Context, email, password string) (auth.Result, error)
	SignUp(ctx context.Context, email, password string) (auth.Result, error)
	SignInAnonymously(ctx context.Context) (auth.Result, error)
	ProviderSignIn(ctx context.Context, providerID string) (auth.Result, error)
	ConvertAnonymousToPermanent(ctx context.Context, request auth.ConvertRequest) (auth.Result, error)
	SignOut(ctx context.Context) error
	DeleteAccount(ctx context.Context) error
}

// SessionReader exposes the current session snapshot.
type SessionReader interface {
	Current() (identity.Identity, bool)
}

// Handler routes agent requests to the orchestrator and preference store.
type Handler struct {
	auth    AuthService
	session SessionReader
	prefs   *prefs.Store
}

// NewHandler builds a Handler.
func NewHandler(auth AuthService, session SessionReader, preferences *prefs.Store) *Handler {
	return &Handler{auth: auth, session: session, prefs: preferences}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/auth/login", h.login)
	mux.HandleFunc("/v1/auth/sign-up", h.signUp)
	mux.HandleFunc("/v1/auth/anonymous", h.signInAnonymously)
	mux.HandleFunc("/v1/auth/provider/", h.providerSignIn)
	mux.HandleFunc("/v1/auth/convert", h.convert)
	mux.HandleFunc("/v1/auth/sign-out", h.signOut)
	mux.HandleFunc("/v1/auth/account", h.account)
	mux.HandleFunc("/v1/session", h.currentSession)
	mux.HandleFunc("/v1/preferences", h.preferences)
	mux.HandleFunc("/v1/preferences/", h.preferenceField)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for supervision probes.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type identityPayload struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	LoginType string `json:"loginType"`
	Anonymous bool   `json:"anonymous"`
}

type operationResponse struct {
	Status      string          `json:"status"`
	OperationID string          `json:"operationId,omitempty"`
	Identity    identityPayload `json:"identity"`
}

func identityToPayload(id identity.Identity) identityPayload {
	return identityPayload{
		ID:        id.ID,
		Email:     id.Email,
		LoginType: string(id.LoginType),
		Anonymous: id.Anonymous,
	}
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "unable to parse body")
		return
	}
	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAlert(w, err)
		return
	}
	writeJSON(w, http.StatusOK, operationResponse{
		Status:      statusSuccessful,
		OperationID: result.OperationID,
		Identity:    identityToPayload(result.Identity),
	})
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "unable to parse body")
		return
	}
	result, err := h.auth.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAlert(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, operationResponse{
		Status:      statusSuccessful,
		OperationID: result.OperationID,
		Identity:    identityToPayload(result.Identity),
	})
}

func (h *Handler) signInAnonymously(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	result, err := h.auth.SignInAnonymously(r.Context())
	if err != nil {
		writeAlert(w, err)
		return
	}
	writeJSON(w, http.StatusOK, operationResponse{
		Status:      statusSuccessful,
		OperationID: result.OperationID,
		Identity:    identityToPayload(result.Identity),
	})
}

func (h *Handler) providerSignIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	providerID, ok := providerFromPath(r.URL.Path)
	if !ok {
		writeBadRequest(w, "unknown provider")
		return
	}
	result, err := h.auth.ProviderSignIn(r.Context(), providerID)
	if err != nil {
		writeAlert(w, err)
		return
	}
	writeJSON(w, http.StatusOK, operationResponse{
		Status:      statusSuccessful,
		OperationID: result.OperationID,
		Identity:    identityToPayload(result.Identity),
	})
}

type convertRequest struct {
	Method   string `json:"method"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) convert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req convertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "unable to parse body")
		return
	}
	method := identity.LoginType(req.Method)
	switch method {
	case identity.LoginTypeEmail, identity.LoginTypeGoogle, identity.LoginTypeApple:
	default:
		writeBadRequest(w, "unsupported conversion method")
		return
	}
	result, err := h.auth.ConvertAnonymousToPermanent(r.Context(), auth.ConvertRequest{
		Method:   method,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeAlert(w, err)
		return
	}
	writeJSON(w, http.StatusOK, operationResponse{
		Status:      statusSuccessful,
		OperationID: result.OperationID,
		Identity:    identityToPayload(result.Identity),
	})
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if err := h.auth.SignOut(r.Context()); err != nil {
		writeAlert(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": statusSuccessful})
}

func (h *Handler) account(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}
	if err := h.auth.DeleteAccount(r.Context()); err != nil {
		writeAlert(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": statusSuccessful})
}

type sessionResponse struct {
	SignedIn bool             `json:"signedIn"`
	Identity *identityPayload `json:"identity,omitempty"`
}

func (h *Handler) currentSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	current, ok := h.session.Current()
	if !ok {
		writeJSON(w, http.StatusOK, sessionResponse{SignedIn: false})
		return
	}
	payload := identityToPayload(current)
	writeJSON(w, http.StatusOK, sessionResponse{SignedIn: true, Identity: &payload})
}

func providerFromPath(path string) (string, bool) {
	switch path {
	case "/v1/auth/provider/google":
		return provider.GoogleID, true
	case "/v1/auth/provider/apple":
		return provider.AppleID, true
	}
	return "", false
}
