package vault

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	dserrors "github.com/systmms/s3xfer/internal/errors"
	"github.com/systmms/s3xfer/internal/keyname"
	"github.com/systmms/s3xfer/internal/logging"
	"github.com/systmms/s3xfer/pkg/secretstore"
)

// KeyVaultAPI is the subset of the azsecrets client used by KeyVaultStore
type KeyVaultAPI interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
	SetSecret(ctx context.Context, name string, parameters azsecrets.SetSecretParameters, options *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error)
	DeleteSecret(ctx context.Context, name string, options *azsecrets.DeleteSecretOptions) (azsecrets.DeleteSecretResponse, error)
}

var _ KeyVaultAPI = (*azsecrets.Client)(nil)

// KeyVaultConfig holds Azure Key Vault settings
type KeyVaultConfig struct {
	VaultURL           string
	TenantID           string
	ClientID           string
	ClientSecret       string
	UseManagedIdentity bool
	UserAssignedID     string
}

// KeyVaultStore keeps secrets in Azure Key Vault
type KeyVaultStore struct {
	client    KeyVaultAPI
	config    KeyVaultConfig
	sanitizer keyname.Sanitizer
	logger    *logging.Logger
}

// KeyVaultOption is a functional option for configuring the store
type KeyVaultOption func(*KeyVaultStore)

// WithKeyVaultClient sets a custom Key Vault client (for testing)
func WithKeyVaultClient(client KeyVaultAPI) KeyVaultOption {
	return func(k *KeyVaultStore) {
		k.client = client
	}
}

// NewKeyVaultStore creates an Azure Key Vault backed store.
// Settings: vault_url (required), tenant_id, client_id, client_secret,
// use_managed_identity, user_assigned_identity_id.
func NewKeyVaultStore(settings map[string]interface{}, opts Options, storeOpts ...KeyVaultOption) (*KeyVaultStore, error) {
	config := KeyVaultConfig{
		VaultURL:           stringSetting(settings, "vault_url"),
		TenantID:           stringSetting(settings, "tenant_id"),
		ClientID:           stringSetting(settings, "client_id"),
		ClientSecret:       stringSetting(settings, "client_secret"),
		UseManagedIdentity: boolSetting(settings, "use_managed_identity", false),
		UserAssignedID:     stringSetting(settings, "user_assigned_identity_id"),
	}

	if config.VaultURL == "" {
		return nil, dserrors.ConfigError{
			Field:      "vault.vault_url",
			Message:    "vault_url is required for Azure Key Vault",
			Suggestion: "Provide the Key Vault URL (e.g., https://my-vault.vault.azure.net/)",
		}
	}
	if u, err := url.Parse(config.VaultURL); err != nil || u.Scheme != "https" || u.Host == "" {
		return nil, dserrors.ConfigError{
			Field:      "vault.vault_url",
			Value:      config.VaultURL,
			Message:    "invalid vault_url format",
			Suggestion: "Use format: https://vault-name.vault.azure.net/",
		}
	}

	logger := opts.logger()
	k := &KeyVaultStore{
		config:    config,
		sanitizer: keyname.KeyVault.WithLogger(logger),
		logger:    logger,
	}
	for _, opt := range storeOpts {
		opt(k)
	}

	if k.client == nil {
		client, err := newKeyVaultClient(config)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Key Vault client: %w", err)
		}
		k.client = client
	}
	return k, nil
}

func newKeyVaultClient(config KeyVaultConfig) (*azsecrets.Client, error) {
	var cred azcore.TokenCredential
	var err error

	switch {
	case config.UseManagedIdentity && config.UserAssignedID != "":
		cred, err = azidentity.NewManagedIdentityCredential(&azidentity.ManagedIdentityCredentialOptions{
			ID: azidentity.ClientID(config.UserAssignedID),
		})
	case config.UseManagedIdentity:
		cred, err = azidentity.NewManagedIdentityCredential(nil)
	case config.ClientSecret != "":
		cred, err = azidentity.NewClientSecretCredential(config.TenantID, config.ClientID, config.ClientSecret, nil)
	default:
		cred, err = azidentity.NewDefaultAzureCredential(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	return azsecrets.NewClient(config.VaultURL, cred, nil)
}

// Name returns the store type
func (k *KeyVaultStore) Name() string {
	return TypeAzureKeyVault
}

// ResolveSecret reads the latest version of key
func (k *KeyVaultStore) ResolveSecret(ctx context.Context, key string) (string, bool, error) {
	name := k.sanitizer.Sanitize(key)
	k.logger.Debug("resolving secret %s from %s", name, k.config.VaultURL)

	resp, err := k.client.GetSecret(ctx, name, "", nil)
	if err != nil {
		if azureStatus(err) == http.StatusNotFound {
			return "", false, nil
		}
		return "", false, azureStoreError("resolve", name, err)
	}
	if resp.Value == nil {
		return "", true, nil
	}
	return *resp.Value, true, nil
}

// StoreSecret sets a new version of key
func (k *KeyVaultStore) StoreSecret(ctx context.Context, key, value string) error {
	name := k.sanitizer.Sanitize(key)

	_, err := k.client.SetSecret(ctx, name, azsecrets.SetSecretParameters{Value: &value}, nil)
	if err != nil {
		return azureStoreError("store", name, err)
	}
	return nil
}

// DeleteSecret deletes key. Soft-delete retention is left to the vault policy.
func (k *KeyVaultStore) DeleteSecret(ctx context.Context, key string) error {
	name := k.sanitizer.Sanitize(key)

	_, err := k.client.DeleteSecret(ctx, name, nil)
	if err != nil && azureStatus(err) != http.StatusNotFound {
		return azureStoreError("delete", name, err)
	}
	return nil
}

func azureStatus(err error) int {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}
	return 0
}

func azureStoreError(op, name string, err error) error {
	switch azureStatus(err) {
	case http.StatusUnauthorized, http.StatusForbidden:
		return secretstore.AuthError{
			Store:   TypeAzureKeyVault,
			Message: fmt.Sprintf("%s %s: access denied", op, name),
			Err:     err,
		}
	}
	return dserrors.StoreError(TypeAzureKeyVault, op, name, err)
}
