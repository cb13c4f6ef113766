package secretstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/s3xfer/pkg/secretstore"
)

func TestReaderFunc(t *testing.T) {
	t.Parallel()

	var r secretstore.Reader = secretstore.ReaderFunc(func(_ context.Context, key string) (string, bool, error) {
		if key == "known" {
			return "value", true, nil
		}
		return "", false, nil
	})

	v, ok, err := r.ResolveSecret(context.Background(), "known")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	_, ok, err = r.ResolveSecret(context.Background(), "unknown")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	cause := errors.New("ExpiredToken")
	authErr := secretstore.AuthError{Store: "aws.ssm", Message: "token expired", Err: cause}
	assert.Equal(t, "authentication failed for store aws.ssm: token expired", authErr.Error())
	assert.ErrorIs(t, authErr, cause)

	assert.Equal(t, "validation failed: missing vault_url",
		secretstore.ValidationError{Message: "missing vault_url"}.Error())
	assert.Equal(t, "validation failed for store azure.keyvault: missing vault_url",
		secretstore.ValidationError{Store: "azure.keyvault", Message: "missing vault_url"}.Error())
}
