// Package identity implements the identity provider contract: credential
// sign-in, registration, Google sign-in, and session observation. Errors are
// surfaced verbatim to the caller; nothing is retried.
package identity

import (
	"context"
	"errors"

	"bilancio/internal/core"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrMissingToken       = errors.New("authorization token required")
)

// Session is an authenticated user plus the bearer token that proves it.
type Session struct {
	User  core.User
	Token string
}

// Observer receives session changes. A nil session means signed out.
// Observers are invoked once with the current state on registration, then on
// every change, mirroring how an auth state listener behaves.
type Observer func(session *Session)

// Provider is the identity provider contract the shell and HTTP layer are
// written against.
type Provider interface {
	// ObserveSession registers an observer and returns its unsubscribe.
	ObserveSession(fn Observer) (unsubscribe func())

	// Register creates an account and signs it in.
	Register(ctx context.Context, email, displayName, password string) (*Session, error)

	// SignInWithCredentials verifies email/password and signs in.
	SignInWithCredentials(ctx context.Context, email, password string) (*Session, error)

	// SignOut clears the current session. Never fails for a signed-out
	// provider; signing out twice is a no-op.
	SignOut(ctx context.Context) error
}
