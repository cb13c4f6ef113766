package secretstore

import (
	"context"
)

// Reader is the read side of a secret store.
type Reader interface {
	// ResolveSecret returns the value stored under key. ok is false when the
	// store has no entry for key; err is reserved for store failures.
	ResolveSecret(ctx context.Context, key string) (value string, ok bool, err error)
}

// Writer is the write side of a secret store.
type Writer interface {
	// StoreSecret creates or overwrites the value under key.
	StoreSecret(ctx context.Context, key, value string) error

	// DeleteSecret removes key. Deleting a missing key is not an error.
	DeleteSecret(ctx context.Context, key string) error
}

// SecretStore is a named, readable and writable secret store.
type SecretStore interface {
	// Name returns the store type, e.g. "aws.secretsmanager".
	Name() string

	Reader
	Writer
}

// ReaderFunc adapts a plain function to Reader.
type ReaderFunc func(ctx context.Context, key string) (string, bool, error)

// ResolveSecret calls f.
func (f ReaderFunc) ResolveSecret(ctx context.Context, key string) (string, bool, error) {
	return f(ctx, key)
}

// AuthError indicates that the store rejected the caller's identity.
//
// Returned when credentials are missing, expired or lack permission for the
// requested operation.
type AuthError struct {
	// Store is the store type that failed authentication.
	Store string

	// Message provides details about the failure.
	Message string

	Err error
}

// Error implements the error interface.
func (e AuthError) Error() string {
	return "authentication failed for store " + e.Store + ": " + e.Message
}

func (e AuthError) Unwrap() error {
	return e.Err
}

// ValidationError indicates that a store configuration or request is unusable.
type ValidationError struct {
	// Store is the store type where validation failed.
	// May be empty for general validation errors.
	Store string

	// Message provides details about what validation failed.
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Store == "" {
		return "validation failed: " + e.Message
	}
	return "validation failed for store " + e.Store + ": " + e.Message
}
