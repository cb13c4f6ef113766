// Package vault implements secretstore.SecretStore on top of cloud and
// local secret backends.
//
// Every backend sanitizes key names with its store profile before calling
// the backend, so callers always deal in logical names.
package vault

import (
	"fmt"
	"sort"

	"github.com/systmms/s3xfer/internal/clients"
	dserrors "github.com/systmms/s3xfer/internal/errors"
	"github.com/systmms/s3xfer/internal/logging"
	"github.com/systmms/s3xfer/pkg/secretstore"
)

// Store type names accepted in configuration.
const (
	TypeSecretsManager   = "aws.secretsmanager"
	TypeParameterStore   = "aws.ssm"
	TypeAzureKeyVault    = "azure.keyvault"
	TypeGCPSecretManager = "gcp.secretmanager"
	TypeKeyring          = "keyring"
	TypeMemory           = "memory"
)

// Options carries shared dependencies into backend factories.
type Options struct {
	Logger *logging.Logger

	// Clients supplies AWS SDK clients. A private cache is created when nil.
	Clients *clients.Cache
}

func (o Options) logger() *logging.Logger {
	if o.Logger == nil {
		return logging.NewNop()
	}
	return o.Logger
}

func (o Options) clients(settings map[string]interface{}) *clients.Cache {
	if o.Clients != nil {
		return o.Clients
	}
	var opts []clients.BuilderOption
	if profile := stringSetting(settings, "profile"); profile != "" {
		opts = append(opts, clients.WithProfile(profile))
	}
	return clients.NewCache(clients.NewAWSBuilder(opts...), clients.WithLogger(o.logger()))
}

// Factory creates a store from its configuration settings.
type Factory func(settings map[string]interface{}, opts Options) (secretstore.SecretStore, error)

// Registry manages store creation by type name
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates a registry with the built-in backends
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}

	r.Register(TypeSecretsManager, func(s map[string]interface{}, o Options) (secretstore.SecretStore, error) {
		return NewSecretsManagerStore(s, o)
	})
	r.Register(TypeParameterStore, func(s map[string]interface{}, o Options) (secretstore.SecretStore, error) {
		return NewParameterStore(s, o)
	})
	r.Register(TypeAzureKeyVault, func(s map[string]interface{}, o Options) (secretstore.SecretStore, error) {
		return NewKeyVaultStore(s, o)
	})
	r.Register(TypeGCPSecretManager, func(s map[string]interface{}, o Options) (secretstore.SecretStore, error) {
		return NewGCPSecretManagerStore(s, o)
	})
	r.Register(TypeKeyring, func(s map[string]interface{}, o Options) (secretstore.SecretStore, error) {
		return NewKeyringStore(s, o), nil
	})
	r.Register(TypeMemory, func(s map[string]interface{}, o Options) (secretstore.SecretStore, error) {
		return NewMemoryStore(s, o), nil
	})

	return r
}

// Register adds or replaces the factory for a store type
func (r *Registry) Register(storeType string, factory Factory) {
	r.factories[storeType] = factory
}

// IsSupported reports whether storeType has a factory
func (r *Registry) IsSupported(storeType string) bool {
	_, ok := r.factories[storeType]
	return ok
}

// Types returns the registered store types in sorted order
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Create builds a store of storeType
func (r *Registry) Create(storeType string, settings map[string]interface{}, opts Options) (secretstore.SecretStore, error) {
	factory, ok := r.factories[storeType]
	if !ok {
		return nil, dserrors.ConfigError{
			Field:      "vault.type",
			Value:      storeType,
			Message:    "unknown secret store type",
			Suggestion: fmt.Sprintf("Supported types: %v", r.Types()),
		}
	}
	if settings == nil {
		settings = map[string]interface{}{}
	}
	return factory(settings, opts)
}

func stringSetting(settings map[string]interface{}, key string) string {
	if v, ok := settings[key].(string); ok {
		return v
	}
	return ""
}

func boolSetting(settings map[string]interface{}, key string, def bool) bool {
	if v, ok := settings[key].(bool); ok {
		return v
	}
	return def
}
