package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// AssertNoSecretLeak verifies that none of secrets appears in output.
//
// Use it on log buffers, command output and error messages:
//
//	AssertNoSecretLeak(t, logs.String(), []string{"secret-key", "session-token"})
func AssertNoSecretLeak(t *testing.T, output string, secrets []string) {
	t.Helper()

	for _, secret := range secrets {
		assert.NotContains(t, output, secret,
			"Secret %q should never be printed, but appears in output", secret)
	}
}
