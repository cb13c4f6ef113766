package vault

import (
	"context"
	"errors"

	dserrors "github.com/systmms/s3xfer/internal/errors"
	"github.com/systmms/s3xfer/internal/keyname"
	"github.com/systmms/s3xfer/internal/logging"
	"github.com/zalando/go-keyring"
)

// DefaultKeyringService is the keyring service secrets are filed under.
const DefaultKeyringService = "s3xfer"

// KeyringStore keeps secrets in the OS keyring (macOS Keychain, Secret
// Service on Linux, Windows Credential Manager)
type KeyringStore struct {
	service   string
	sanitizer keyname.Sanitizer
	logger    *logging.Logger
}

// NewKeyringStore creates a keyring backed store. Settings: service.
func NewKeyringStore(settings map[string]interface{}, opts Options) *KeyringStore {
	service := stringSetting(settings, "service")
	if service == "" {
		service = DefaultKeyringService
	}
	logger := opts.logger()
	return &KeyringStore{
		service:   service,
		sanitizer: keyname.SecretsManager.WithLogger(logger),
		logger:    logger,
	}
}

// Name returns the store type
func (k *KeyringStore) Name() string {
	return TypeKeyring
}

// ResolveSecret reads key from the keyring
func (k *KeyringStore) ResolveSecret(_ context.Context, key string) (string, bool, error) {
	account := k.sanitizer.Sanitize(key)
	k.logger.Debug("resolving keyring item %s/%s", k.service, account)

	value, err := keyring.Get(k.service, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", false, nil
		}
		return "", false, dserrors.StoreError(TypeKeyring, "resolve", account, err)
	}
	return value, true, nil
}

// StoreSecret writes key to the keyring
func (k *KeyringStore) StoreSecret(_ context.Context, key, value string) error {
	account := k.sanitizer.Sanitize(key)
	if err := keyring.Set(k.service, account, value); err != nil {
		return dserrors.StoreError(TypeKeyring, "store", account, err)
	}
	return nil
}

// DeleteSecret removes key from the keyring
func (k *KeyringStore) DeleteSecret(_ context.Context, key string) error {
	account := k.sanitizer.Sanitize(key)
	err := keyring.Delete(k.service, account)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return dserrors.StoreError(TypeKeyring, "delete", account, err)
	}
	return nil
}
