// Package provider implements credential adapters for third-party sign-in.
//
// Each adapter obtains an opaque token from an external identity provider and
// packages it as a Credential for the backend exchange step. Adapters never
// talk to the identity backend themselves.
package provider

import (
	"context"

	apperrors "github.com/daybreak-app/daybreak/internal/platform/errors"
)

// Provider ids as the identity backend names them.
const (
	GoogleID = "google.com"
	AppleID  = "apple.com"
)

var (
	// ErrMissingClientConfiguration indicates the adapter has no client credentials configured.
	ErrMissingClientConfiguration = apperrors.New(apperrors.CodeMissingClientConfiguration, "provider client configuration is missing")
	// ErrUserCancelled indicates the user dismissed the provider's sign-in flow.
	ErrUserCancelled = apperrors.New(apperrors.CodeUserCancelled, "user cancelled the sign-in flow")
	// ErrMissingCredentials indicates the provider flow completed without a usable token.
	ErrMissingCredentials = apperrors.New(apperrors.CodeMissingCredentials, "provider returned no usable credentials")
)

// Credential is an opaque provider token ready for the backend exchange.
//
// RawNonce is only set for flows that bind the authorization request to the
// exchanged token (Apple); the backend presents it alongside the token so the
// provider can verify the request/token pairing.
type Credential struct {
	Provider    string
	IDToken     string
	AccessToken string
	RawNonce    string
}

// TokenSource obtains a provider credential, typically by driving an
// interactive system flow. Implementations must return ErrUserCancelled when
// the user abandons the flow and ErrMissingCredentials when the flow completes
// without a token.
type TokenSource interface {
	Token(ctx context.Context) (Credential, error)
}
