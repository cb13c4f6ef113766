// Package keyname maps arbitrary strings onto the restricted key alphabets
// of secret stores.
//
// Sanitize is total and deterministic. A key that is already valid and within
// the length limit is returned unchanged. Otherwise every character outside
// the alphabet becomes the replacement character, the result is truncated,
// and a separator plus the decimal hash of the original input is appended so
// that distinct inputs rarely collide. The suffix is counted against the
// limit, so the output never exceeds it and re-sanitizing is a no-op.
//
// The hash is Java's String.hashCode so that names line up with keys
// persisted by JVM-based connectors sharing the same store.
package keyname

import (
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/systmms/s3xfer/internal/logging"
	"github.com/systmms/s3xfer/internal/metrics"
)

// Sanitizer rewrites keys for one store profile.
type Sanitizer struct {
	// Name identifies the profile in logs and metrics.
	Name string
	// Limit is the maximum key length in characters.
	Limit int
	// Allowed reports whether r may appear in a key.
	Allowed func(r rune) bool
	// Replacement substitutes each disallowed character.
	Replacement rune
	// Separator precedes the hash suffix.
	Separator rune

	logger *logging.Logger
}

// Store profiles.
var (
	// SecretsManager: AWS Secrets Manager secret names.
	SecretsManager = Sanitizer{
		Name:        "aws.secretsmanager",
		Limit:       512,
		Allowed:     alnumOr("/_+.@-"),
		Replacement: '-',
		Separator:   '_',
	}

	// ParameterStore: SSM parameter names.
	ParameterStore = Sanitizer{
		Name:        "aws.ssm",
		Limit:       1011,
		Allowed:     alnumOr("/_.-"),
		Replacement: '-',
		Separator:   '_',
	}

	// KeyVault: Azure Key Vault secret names.
	KeyVault = Sanitizer{
		Name:        "azure.keyvault",
		Limit:       127,
		Allowed:     alnumOr("-"),
		Replacement: '-',
		Separator:   '-',
	}

	// GCPSecretManager: Google Secret Manager secret IDs.
	GCPSecretManager = Sanitizer{
		Name:        "gcp.secretmanager",
		Limit:       255,
		Allowed:     alnumOr("_-"),
		Replacement: '-',
		Separator:   '_',
	}

	// STSSessionName: RoleSessionName values passed to AssumeRole.
	STSSessionName = Sanitizer{
		Name:        "aws.sts",
		Limit:       64,
		Allowed:     alnumOr("_+=,.@-"),
		Replacement: '-',
		Separator:   '_',
	}
)

// Profiles lists the built-in profiles by name.
var Profiles = map[string]Sanitizer{
	SecretsManager.Name:   SecretsManager,
	ParameterStore.Name:   ParameterStore,
	KeyVault.Name:         KeyVault,
	GCPSecretManager.Name: GCPSecretManager,
	STSSessionName.Name:   STSSessionName,
}

// Sanitize maps key to a valid name under the default Secrets Manager profile.
func Sanitize(key string) string {
	return SecretsManager.Sanitize(key)
}

// WithLogger returns a copy of s that emits its audit notice to logger.
func (s Sanitizer) WithLogger(logger *logging.Logger) Sanitizer {
	s.logger = logger
	return s
}

// Valid reports whether key already satisfies the profile.
func (s Sanitizer) Valid(key string) bool {
	n := 0
	for _, r := range key {
		if !s.Allowed(r) {
			return false
		}
		n++
	}
	return n <= s.Limit
}

// Sanitize maps key to a valid name under this profile.
func (s Sanitizer) Sanitize(key string) string {
	var b strings.Builder
	b.Grow(len(key))

	modified := false
	n := 0
	for _, r := range key {
		n++
		if s.Allowed(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteRune(s.Replacement)
		modified = true
	}
	if n > s.Limit {
		modified = true
	}
	if !modified {
		return key
	}

	suffix := string(s.Separator) + strconv.FormatInt(int64(Hash(key)), 10)
	body := []rune(b.String())
	if budget := s.Limit - len([]rune(suffix)); len(body) > budget {
		body = body[:budget]
	}
	sanitized := string(body) + suffix

	if s.logger != nil {
		s.logger.Warn("%s: reduced length or replaced illegal characters in key name %q. New name is %q", s.Name, key, sanitized)
	}
	metrics.RecordSanitization(s.Name)

	return sanitized
}

// Hash returns Java's String.hashCode of s: the polynomial hash with base 31
// over UTF-16 code units, wrapping at 32 bits.
func Hash(s string) int32 {
	var h int32
	for _, u := range utf16.Encode([]rune(s)) {
		h = 31*h + int32(u)
	}
	return h
}

func alnumOr(extra string) func(rune) bool {
	return func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return true
		}
		return strings.ContainsRune(extra, r)
	}
}
