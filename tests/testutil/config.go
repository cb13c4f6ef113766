// Package testutil provides shared helpers for s3xfer tests: configuration
// and descriptor builders, secret-leak assertions, and gating for tests that
// need a real S3 endpoint.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/systmms/s3xfer/internal/config"
	"github.com/systmms/s3xfer/internal/logging"
	"github.com/systmms/s3xfer/pkg/credential"
	"gopkg.in/yaml.v3"
)

// ConfigBuilder builds s3xfer.yaml files for tests.
//
// The builder starts from a memory vault so tests can seed credentials
// without touching a real secret store:
//
//	cfg := testutil.NewConfig(t).
//	    WithRegion("eu-west-1").
//	    WithCredential("reader", credential.Static{...}).
//	    Config()
type ConfigBuilder struct {
	t      *testing.T
	def    config.Definition
	values map[string]interface{}
}

// NewConfig returns a builder for a version 0 configuration backed by the
// memory vault.
func NewConfig(t *testing.T) *ConfigBuilder {
	t.Helper()

	values := map[string]interface{}{}
	return &ConfigBuilder{
		t: t,
		def: config.Definition{
			Vault: config.VaultConfig{
				Type:   "memory",
				Config: map[string]interface{}{"values": values},
			},
		},
		values: values,
	}
}

// WithRegion sets the default AWS region.
func (b *ConfigBuilder) WithRegion(region string) *ConfigBuilder {
	b.def.AWS.Region = region
	return b
}

// WithRoleArn configures credential issuing for direct copies.
func (b *ConfigBuilder) WithRoleArn(arn string) *ConfigBuilder {
	b.def.Transfer.RoleArn = arn
	return b
}

// WithChunkSizeMB sets the streaming chunk size.
func (b *ConfigBuilder) WithChunkSizeMB(mb int) *ConfigBuilder {
	b.def.Transfer.ChunkSizeMB = mb
	return b
}

// WithVault replaces the memory vault with another backend.
func (b *ConfigBuilder) WithVault(storeType string, settings map[string]interface{}) *ConfigBuilder {
	b.def.Vault = config.VaultConfig{Type: storeType, Config: settings}
	return b
}

// WithCredential stores m in the memory vault under key.
func (b *ConfigBuilder) WithCredential(key string, m credential.Material) *ConfigBuilder {
	b.t.Helper()

	data, err := credential.Encode(m)
	if err != nil {
		b.t.Fatalf("Failed to encode credential %s: %v", key, err)
	}
	return b.WithSecret(key, string(data))
}

// WithSecret stores a raw value in the memory vault under key.
func (b *ConfigBuilder) WithSecret(key, value string) *ConfigBuilder {
	b.values[key] = value
	return b
}

// Write writes the configuration into a temporary directory and returns
// its path.
func (b *ConfigBuilder) Write() string {
	b.t.Helper()

	data, err := yaml.Marshal(b.def)
	if err != nil {
		b.t.Fatalf("Failed to marshal test config: %v", err)
	}
	path := filepath.Join(b.t.TempDir(), "s3xfer.yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		b.t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

// Config writes the file and returns an unloaded config pointing at it.
func (b *ConfigBuilder) Config() *config.Config {
	b.t.Helper()

	return &config.Config{Path: b.Write(), Logger: logging.NewNop()}
}
