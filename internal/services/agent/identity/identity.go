// Package identity defines the authenticated identity model owned by the agent.
package identity

import "strings"

// LoginType classifies how the current identity was established.
type LoginType string

const (
	LoginTypeEmail  LoginType = "email"
	LoginTypeGuest  LoginType = "guest"
	LoginTypeGoogle LoginType = "google"
	LoginTypeApple  LoginType = "apple"
)

// Identity is the agent's view of the authenticated user.
//
// It is replaced wholesale on every identity-changed notification from the
// backend, never mutated field by field, so readers always observe a
// consistent snapshot.
type Identity struct {
	ID        string
	Email     string
	LoginType LoginType
	Anonymous bool
}

// UserRecord is the raw user shape emitted by the identity backend.
type UserRecord struct {
	UID         string
	Email       string
	Anonymous   bool
	ProviderIDs []string
}

// Classify translates a backend user record into an Identity.
//
// The login type is derived from the first provider id; an empty provider
// list maps to guest, which also covers anonymous users. The anonymous flag
// forces guest so the Anonymous/LoginType invariant always holds.
func Classify(record UserRecord) Identity {
	loginType := LoginTypeGuest
	if !record.Anonymous && len(record.ProviderIDs) > 0 {
		switch strings.TrimSpace(record.ProviderIDs[0]) {
		case "google.com":
			loginType = LoginTypeGoogle
		case "apple.com":
			loginType = LoginTypeApple
		case "password":
			loginType = LoginTypeEmail
		}
	}
	return Identity{
		ID:        record.UID,
		Email:     record.Email,
		LoginType: loginType,
		Anonymous: record.Anonymous,
	}
}

// Valid reports whether the identity satisfies the anonymous/login-type invariant.
func (i Identity) Valid() bool {
	if i.Anonymous {
		return i.LoginType == LoginTypeGuest
	}
	return true
}
