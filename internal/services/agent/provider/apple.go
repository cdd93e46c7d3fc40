package provider

import (
	"context"
	"errors"
	"strings"
)

// AppleAuthorizationRequest carries the parameters for a Sign in with Apple
// system dialog. Nonce holds the hashed challenge, never the raw nonce.
type AppleAuthorizationRequest struct {
	ClientID string
	Scopes   []string
	Nonce    string
}

// AppleAuthorization is the outcome of a completed Apple sign-in dialog.
type AppleAuthorization struct {
	IdentityToken     string
	AuthorizationCode string
}

// AppleAuthorizer presents the Sign in with Apple flow and returns its result.
// Implementations should honor context cancellation while the dialog is open.
type AppleAuthorizer interface {
	Authorize(ctx context.Context, req AppleAuthorizationRequest) (AppleAuthorization, error)
}

// AppleConfig configures the Apple credential adapter.
type AppleConfig struct {
	ClientID string
	Scopes   []string
}

// AppleTokenSource drives Sign in with Apple and packages the identity token
// together with the raw nonce used to bind the request.
type AppleTokenSource struct {
	config     AppleConfig
	authorizer AppleAuthorizer
}

// NewAppleTokenSource creates an Apple adapter using the given authorizer.
func NewAppleTokenSource(config AppleConfig, authorizer AppleAuthorizer) *AppleTokenSource {
	if len(config.Scopes) == 0 {
		config.Scopes = []string{"name", "email"}
	}
	return &AppleTokenSource{config: config, authorizer: authorizer}
}

// Token runs the Apple authorization flow and returns the resulting credential.
func (s *AppleTokenSource) Token(ctx context.Context) (Credential, error) {
	if strings.TrimSpace(s.config.ClientID) == "" || s.authorizer == nil {
		return Credential{}, ErrMissingClientConfiguration
	}

	rawNonce, err := GenerateNonce()
	if err != nil {
		return Credential{}, err
	}

	authorization, err := s.authorizer.Authorize(ctx, AppleAuthorizationRequest{
		ClientID: s.config.ClientID,
		Scopes:   s.config.Scopes,
		Nonce:    HashNonce(rawNonce),
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Credential{}, ErrUserCancelled
		}
		return Credential{}, err
	}
	if strings.TrimSpace(authorization.IdentityToken) == "" {
		return Credential{}, ErrMissingCredentials
	}

	return Credential{
		Provider: AppleID,
		IDToken:  authorization.IdentityToken,
		RawNonce: rawNonce,
	}, nil
}
