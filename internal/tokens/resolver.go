// Package tokens turns secret store entries into typed credential material.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"strings"

	dserrors "github.com/systmms/s3xfer/internal/errors"
	"github.com/systmms/s3xfer/internal/logging"
	"github.com/systmms/s3xfer/internal/metrics"
	"github.com/systmms/s3xfer/internal/secure"
	"github.com/systmms/s3xfer/pkg/credential"
	"github.com/systmms/s3xfer/pkg/secretstore"
)

// Resolution outcomes recorded in metrics.
const (
	OutcomeResolved    = "resolved"
	OutcomeNotFound    = "not_found"
	OutcomeFormatError = "format_error"
	OutcomeStoreError  = "store_error"
)

// Resolver fetches secrets from a store and classifies them. It holds no
// state between calls and does not retry.
type Resolver struct {
	store  secretstore.Reader
	logger *logging.Logger
}

// NewResolver creates a resolver reading from store
func NewResolver(store secretstore.Reader, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{store: store, logger: logger}
}

// Resolve returns the credential stored under keyName.
//
// A blank key, a store miss and a blank value are SecretNotFoundError. A value
// that is neither credential shape is SecretFormatError. Store failures are
// returned wrapped.
func (r *Resolver) Resolve(ctx context.Context, keyName string) (credential.Material, error) {
	if strings.TrimSpace(keyName) == "" {
		metrics.RecordSecretResolution(OutcomeNotFound, "")
		return nil, &dserrors.SecretNotFoundError{Reason: "secret key name is blank"}
	}

	raw, ok, err := r.store.ResolveSecret(ctx, keyName)
	if err != nil {
		metrics.RecordSecretResolution(OutcomeStoreError, "")
		return nil, fmt.Errorf("failed to resolve secret with key '%s': %w", keyName, err)
	}
	if !ok {
		metrics.RecordSecretResolution(OutcomeNotFound, "")
		return nil, &dserrors.SecretNotFoundError{Key: keyName, Reason: "no such secret"}
	}
	if strings.TrimSpace(raw) == "" {
		metrics.RecordSecretResolution(OutcomeNotFound, "")
		return nil, &dserrors.SecretNotFoundError{Key: keyName, Reason: "secret value is blank"}
	}

	buf := secure.SealString(raw)
	defer buf.Destroy()

	var material credential.Material
	err = buf.Use(func(plain []byte) error {
		var decodeErr error
		material, decodeErr = credential.Decode(plain)
		return decodeErr
	})
	if err != nil {
		metrics.RecordSecretResolution(OutcomeFormatError, "")
		var formatErr *dserrors.SecretFormatError
		if errors.As(err, &formatErr) {
			return nil, &dserrors.SecretFormatError{Key: keyName, Err: formatErr.Err}
		}
		return nil, &dserrors.SecretFormatError{Key: keyName, Err: err}
	}

	metrics.RecordSecretResolution(OutcomeResolved, string(material.Kind()))
	r.logger.Debug("resolved %s credential %s from key %s", material.Kind(), logging.Secret(material.AccessKey()), keyName)
	return material, nil
}

// ResolveOptional is Resolve with not-found mapped to (nil, nil), for callers
// that fall back to other credential sources.
func (r *Resolver) ResolveOptional(ctx context.Context, keyName string) (credential.Material, error) {
	m, err := r.Resolve(ctx, keyName)
	if errors.Is(err, dserrors.ErrSecretNotFound) {
		return nil, nil
	}
	return m, err
}
