package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	dserrors "github.com/systmms/s3xfer/internal/errors"
	"github.com/systmms/s3xfer/internal/logging"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON string

// Environment variables that override values from the file.
const (
	EnvRegion           = "S3XFER_AWS_REGION"
	EnvEndpointOverride = "S3XFER_AWS_ENDPOINT_OVERRIDE"
	EnvVaultType        = "S3XFER_VAULT_TYPE"
)

// Defaults applied when the file leaves a field unset.
const (
	DefaultChunkSizeMB         = 500
	DefaultComponentID         = "s3xfer"
	DefaultRoleSessionDuration = 3600
	DefaultMetricsListen       = ":9090"
	DefaultVaultType           = "aws.secretsmanager"
)

// Config holds the runtime configuration
type Config struct {
	Path       string
	Logger     *logging.Logger
	Definition *Definition

	// Optional lets Load fall back to Default when the file is missing.
	Optional bool
}

// Definition represents the s3xfer.yaml structure
type Definition struct {
	Version  int            `yaml:"version"`
	AWS      AWSConfig      `yaml:"aws"`
	Vault    VaultConfig    `yaml:"vault"`
	Transfer TransferConfig `yaml:"transfer"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// AWSConfig holds the default connection settings for storage clients
type AWSConfig struct {
	Region           string `yaml:"region,omitempty"`
	EndpointOverride string `yaml:"endpointOverride,omitempty"`
	Profile          string `yaml:"profile,omitempty"`
}

// VaultConfig selects the secret store backend. Keys other than type are
// passed to the backend factory untouched.
type VaultConfig struct {
	Type   string                 `yaml:"type"`
	Config map[string]interface{} `yaml:",inline"`
}

// TransferConfig holds settings for streaming and direct-copy transfers
type TransferConfig struct {
	ChunkSizeMB         int    `yaml:"chunkSizeMb,omitempty"`
	ComponentID         string `yaml:"componentId,omitempty"`
	RoleArn             string `yaml:"roleArn,omitempty"`
	RoleSessionDuration int    `yaml:"roleSessionDuration,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen,omitempty"`
}

// Default returns a definition with every default applied and environment
// overrides honoured. Used when no configuration file exists.
func Default() *Definition {
	def := &Definition{}
	def.applyDefaults()
	def.applyEnv()
	return def
}

// Load reads, validates and parses the s3xfer.yaml file
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) && c.Optional {
			if c.Logger != nil {
				c.Logger.Debug("no configuration at %s, using defaults", c.Path)
			}
			c.Definition = Default()
			return nil
		}
		if os.IsNotExist(err) {
			return dserrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Create s3xfer.yaml or pass --config",
			}
		}
		return dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	def, err := Parse(data)
	if err != nil {
		return err
	}

	if c.Logger != nil {
		c.Logger.Debug("loaded configuration from %s (vault: %s)", c.Path, def.Vault.Type)
	}
	c.Definition = def
	return nil
}

// Parse validates raw YAML against the embedded schema and decodes it.
func Parse(data []byte) (*Definition, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, dserrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}

	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, dserrors.ConfigError{
			Message:    fmt.Sprintf("configuration does not match expected structure: %v", err),
			Suggestion: "Compare your file with the documented s3xfer.yaml layout",
		}
	}

	if def.Version != 0 {
		return nil, dserrors.ConfigError{
			Field:      "version",
			Value:      def.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 0' at the top of your s3xfer.yaml file",
		}
	}

	def.applyDefaults()
	def.applyEnv()
	return &def, nil
}

func validateSchema(doc interface{}) error {
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return dserrors.ConfigError{
			Message:    fmt.Sprintf("configuration cannot be represented as JSON: %v", err),
			Suggestion: "Use string keys only",
		}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewBytesLoader(jsonData),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var messages []string
		var field string
		for _, desc := range result.Errors() {
			if field == "" {
				field = desc.Field()
			}
			messages = append(messages, desc.String())
		}
		return dserrors.ConfigError{
			Field:      field,
			Message:    "schema validation failed:\n  - " + strings.Join(messages, "\n  - "),
			Suggestion: "Fix the listed fields in s3xfer.yaml",
		}
	}

	return nil
}

func (d *Definition) applyDefaults() {
	if d.Vault.Type == "" {
		d.Vault.Type = DefaultVaultType
	}
	if d.Transfer.ChunkSizeMB == 0 {
		d.Transfer.ChunkSizeMB = DefaultChunkSizeMB
	}
	if d.Transfer.ComponentID == "" {
		d.Transfer.ComponentID = DefaultComponentID
	}
	if d.Transfer.RoleSessionDuration == 0 {
		d.Transfer.RoleSessionDuration = DefaultRoleSessionDuration
	}
	if d.Metrics.Listen == "" {
		d.Metrics.Listen = DefaultMetricsListen
	}
}

func (d *Definition) applyEnv() {
	if v := os.Getenv(EnvRegion); v != "" {
		d.AWS.Region = v
	}
	if v := os.Getenv(EnvEndpointOverride); v != "" {
		d.AWS.EndpointOverride = v
	}
	if v := os.Getenv(EnvVaultType); v != "" {
		d.Vault.Type = v
	}
}

// VaultSettings returns the backend options with region and endpoint
// inherited from the aws section when the vault does not set them.
func (d *Definition) VaultSettings() map[string]interface{} {
	settings := make(map[string]interface{}, len(d.Vault.Config)+2)
	for k, v := range d.Vault.Config {
		settings[k] = v
	}
	if _, ok := settings["region"]; !ok && d.AWS.Region != "" {
		settings["region"] = d.AWS.Region
	}
	if _, ok := settings["profile"]; !ok && d.AWS.Profile != "" {
		settings["profile"] = d.AWS.Profile
	}
	return settings
}

// ChunkSizeBytes returns the multipart chunk size in bytes.
func (d *Definition) ChunkSizeBytes() int64 {
	return int64(d.Transfer.ChunkSizeMB) * 1024 * 1024
}
