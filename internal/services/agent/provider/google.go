package provider

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/daybreak-app/daybreak/internal/platform/timeouts"
)

const (
	defaultGoogleAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultGoogleTokenURL = "https://oauth2.googleapis.com/token"
)

// GoogleConfig configures the Google credential adapter. AuthURL and TokenURL
// are overridable for tests.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	AuthURL      string
	TokenURL     string
}

// CodeGrantFlow obtains an authorization code for the given authorization URL,
// typically by opening a browser and waiting on a loopback redirect. It must
// honor context cancellation while the user decides.
type CodeGrantFlow interface {
	Grant(ctx context.Context, authURL string) (code string, err error)
}

// GoogleTokenSource drives the Google OAuth code flow with PKCE and exchanges
// the resulting code for provider tokens.
type GoogleTokenSource struct {
	config     GoogleConfig
	flow       CodeGrantFlow
	httpClient *http.Client
}

// NewGoogleTokenSource creates a Google adapter using the given grant flow.
func NewGoogleTokenSource(config GoogleConfig, flow CodeGrantFlow) *GoogleTokenSource {
	if config.AuthURL == "" {
		config.AuthURL = defaultGoogleAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultGoogleTokenURL
	}
	if len(config.Scopes) == 0 {
		config.Scopes = []string{"openid", "email", "profile"}
	}
	return &GoogleTokenSource{
		config:     config,
		flow:       flow,
		httpClient: &http.Client{Timeout: timeouts.BackendRequest},
	}
}

// Token runs the Google authorization flow and returns the resulting credential.
func (s *GoogleTokenSource) Token(ctx context.Context) (Credential, error) {
	if strings.TrimSpace(s.config.ClientID) == "" || s.flow == nil {
		return Credential{}, ErrMissingClientConfiguration
	}

	codeVerifier, err := newCodeVerifier()
	if err != nil {
		return Credential{}, err
	}

	query := url.Values{}
	query.Set("response_type", "code")
	query.Set("client_id", s.config.ClientID)
	query.Set("redirect_uri", s.config.RedirectURI)
	query.Set("scope", strings.Join(s.config.Scopes, " "))
	query.Set("code_challenge", computeS256Challenge(codeVerifier))
	query.Set("code_challenge_method", "S256")

	authURL, err := url.Parse(s.config.AuthURL)
	if err != nil {
		return Credential{}, ErrMissingClientConfiguration
	}
	authURL.RawQuery = query.Encode()

	code, err := s.flow.Grant(ctx, authURL.String())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Credential{}, ErrUserCancelled
		}
		return Credential{}, err
	}
	if strings.TrimSpace(code) == "" {
		return Credential{}, ErrMissingCredentials
	}

	return s.exchangeCode(ctx, code, codeVerifier)
}

func (s *GoogleTokenSource) exchangeCode(ctx context.Context, code, codeVerifier string) (Credential, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", s.config.RedirectURI)
	form.Set("client_id", s.config.ClientID)
	form.Set("client_secret", s.config.ClientSecret)
	form.Set("code_verifier", codeVerifier)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Credential{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Credential{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Credential{}, errors.New("token exchange failed")
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		IDToken     string `json:"id_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Credential{}, err
	}
	if payload.IDToken == "" {
		return Credential{}, ErrMissingCredentials
	}

	return Credential{
		Provider:    GoogleID,
		IDToken:     payload.IDToken,
		AccessToken: payload.AccessToken,
	}, nil
}

func newCodeVerifier() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// computeS256Challenge computes the OAuth PKCE S256 challenge from a verifier.
func computeS256Challenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
