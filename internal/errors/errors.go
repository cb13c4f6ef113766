package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels matched by the typed errors below through errors.Is.
var (
	ErrConfiguration  = errors.New("configuration error")
	ErrSecretNotFound = errors.New("secret not found")
	ErrSecretFormat   = errors.New("secret format error")
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration file error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// Is reports ConfigError as a configuration error.
func (e ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

// ConfigurationError reports malformed connection input (region, endpoint)
// handed to client construction. It is fatal to the request.
type ConfigurationError struct {
	Field   string
	Value   string
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("invalid %s", e.Field)
	if e.Value != "" {
		msg += fmt.Sprintf(" %q", e.Value)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// SecretNotFoundError is returned when a secret key is blank, the store has
// no entry for it, or the stored value is blank.
type SecretNotFoundError struct {
	Key    string
	Reason string
}

func (e *SecretNotFoundError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("failed to resolve secret: %s", e.Reason)
	}
	return fmt.Sprintf("failed to resolve secret with key '%s': %s", e.Key, e.Reason)
}

func (e *SecretNotFoundError) Is(target error) bool {
	return target == ErrSecretNotFound
}

// SecretFormatError is returned when a secret value cannot be decoded into a
// credential shape.
type SecretFormatError struct {
	Key string
	Err error
}

func (e *SecretFormatError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("failed to parse secret: %v", e.Err)
	}
	return fmt.Sprintf("failed to parse secret with key '%s': %v", e.Key, e.Err)
}

func (e *SecretFormatError) Unwrap() error {
	return e.Err
}

func (e *SecretFormatError) Is(target error) bool {
	return target == ErrSecretFormat
}

// StoreError wraps a failed secret store call. The underlying error goes in
// Details so the CLI can show it under the summary.
func StoreError(store, operation, name string, err error) error {
	return UserError{
		Message:    fmt.Sprintf("%s %s failed for %s", store, operation, name),
		Details:    err.Error(),
		Suggestion: getStoreSuggestion(store, err),
		Err:        err,
	}
}

// getStoreSuggestion returns helpful suggestions based on store and error
func getStoreSuggestion(store string, err error) string {
	errStr := err.Error()

	switch store {
	case "aws.secretsmanager", "aws.ssm":
		if strings.Contains(errStr, "ThrottlingException") || strings.Contains(errStr, "TooManyUpdates") {
			return "AWS rate limit exceeded. Wait a moment and run the transfer again"
		}
		if strings.Contains(errStr, "LimitExceededException") {
			return "The account secret quota is reached. Delete stale resourceDefinition-* secrets"
		}
		if strings.Contains(errStr, "KMS") {
			return "Check that the role may use the KMS key encrypting the secret"
		}

	case "azure.keyvault":
		if strings.Contains(errStr, "ObjectIsDeletedButRecoverable") {
			return "A soft-deleted secret holds this name. Purge or recover it in the Key Vault"
		}
		if strings.Contains(errStr, "429") {
			return "Key Vault is throttling requests. Wait a moment and try again"
		}

	case "gcp.secretmanager":
		if strings.Contains(errStr, "ResourceExhausted") {
			return "Secret Manager quota exceeded. Wait a moment and try again"
		}
		if strings.Contains(errStr, "FailedPrecondition") {
			return "Enable the secret and its latest version in Secret Manager"
		}

	case "keyring":
		if strings.Contains(errStr, "dbus") || strings.Contains(errStr, "org.freedesktop.secrets") {
			return "Start a Secret Service implementation (gnome-keyring, KWallet)"
		}
	}

	// Generic suggestions
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "The operation timed out. Check your network connection and try again"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network and the vault endpoint"
	}

	return ""
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Already user-facing
	var userErr UserError
	if errors.As(err, &userErr) {
		return err
	}
	var cfgErr ConfigError
	if errors.As(err, &cfgErr) {
		return err
	}

	if errors.Is(err, ErrSecretNotFound) {
		return UserError{
			Message:    err.Error(),
			Suggestion: "Check the keyName property and that the secret exists in the configured vault",
			Err:        err,
		}
	}
	if errors.Is(err, ErrSecretFormat) {
		return UserError{
			Message:    err.Error(),
			Suggestion: `Store the secret as JSON: {"accessKeyId": "...", "secretAccessKey": "..."}`,
			Err:        err,
		}
	}
	if errors.Is(err, ErrConfiguration) {
		return UserError{
			Message:    err.Error(),
			Suggestion: "Check the region and endpointOverride of the location",
			Err:        err,
		}
	}

	errStr := err.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	return err
}
