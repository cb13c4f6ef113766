package vault_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dserrors "github.com/systmms/s3xfer/internal/errors"
	"github.com/systmms/s3xfer/internal/keyname"
	"github.com/systmms/s3xfer/internal/vault"
	"github.com/systmms/s3xfer/pkg/secretstore"
	"github.com/systmms/s3xfer/tests/fakes"
)

func newSecretsManager(t *testing.T, fake *fakes.FakeSecretsManagerClient) *vault.SecretsManagerStore {
	t.Helper()
	store, err := vault.NewSecretsManagerStore(nil, vault.Options{}, vault.WithSecretsManagerClient(fake))
	require.NoError(t, err)
	return store
}

func TestSecretsManagerResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		setup     func(f *fakes.FakeSecretsManagerClient)
		key       string
		wantValue string
		wantOK    bool
		wantErr   bool
		wantAuth  bool
	}{
		{
			name:      "string secret",
			setup:     func(f *fakes.FakeSecretsManagerClient) { f.AddSecretString("transfer/token", `{"a":1}`) },
			key:       "transfer/token",
			wantValue: `{"a":1}`,
			wantOK:    true,
		},
		{
			name:      "binary secret",
			setup:     func(f *fakes.FakeSecretsManagerClient) { f.AddSecretBinary("bin", []byte("raw")) },
			key:       "bin",
			wantValue: "raw",
			wantOK:    true,
		},
		{
			name:  "missing secret",
			setup: func(*fakes.FakeSecretsManagerClient) {},
			key:   "nope",
		},
		{
			name: "sanitized name is used",
			setup: func(f *fakes.FakeSecretsManagerClient) {
				f.AddSecretString(keyname.SecretsManager.Sanitize("bad#key"), "v")
			},
			key:       "bad#key",
			wantValue: "v",
			wantOK:    true,
		},
		{
			name: "access denied",
			setup: func(f *fakes.FakeSecretsManagerClient) {
				f.AddError("locked", &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "not authorized"})
			},
			key:      "locked",
			wantErr:  true,
			wantAuth: true,
		},
		{
			name: "throttled",
			setup: func(f *fakes.FakeSecretsManagerClient) {
				f.AddError("busy", &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"})
			},
			key:     "busy",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fake := fakes.NewFakeSecretsManagerClient()
			tt.setup(fake)
			store := newSecretsManager(t, fake)

			value, ok, err := store.ResolveSecret(context.Background(), tt.key)
			if tt.wantErr {
				require.Error(t, err)
				var authErr secretstore.AuthError
				assert.Equal(t, tt.wantAuth, errors.As(err, &authErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantValue, value)
		})
	}
}

func TestSecretsManagerStoreCreatesThenPuts(t *testing.T) {
	t.Parallel()

	fake := fakes.NewFakeSecretsManagerClient()
	store := newSecretsManager(t, fake)
	ctx := context.Background()

	require.NoError(t, store.StoreSecret(ctx, "creds", "one"))
	v, ok := fake.Value("creds")
	require.True(t, ok)
	assert.Equal(t, "one", v)

	require.NoError(t, store.StoreSecret(ctx, "creds", "two"))
	v, _ = fake.Value("creds")
	assert.Equal(t, "two", v)

	got, ok, err := store.ResolveSecret(ctx, "creds")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "two", got)
}

func TestSecretsManagerStoreFailure(t *testing.T) {
	t.Parallel()

	fake := fakes.NewFakeSecretsManagerClient()
	fake.CreateSecretFunc = func(context.Context, *secretsmanager.CreateSecretInput) (*secretsmanager.CreateSecretOutput, error) {
		return nil, &smithy.GenericAPIError{Code: "LimitExceededException", Message: "too many"}
	}
	store := newSecretsManager(t, fake)

	err := store.StoreSecret(context.Background(), "creds", "x")
	assert.ErrorContains(t, err, "aws.secretsmanager store failed for creds")
}

func TestSecretsManagerErrorsCarrySuggestion(t *testing.T) {
	t.Parallel()

	fake := fakes.NewFakeSecretsManagerClient()
	fake.AddError("busy", &smithy.GenericAPIError{Code: "ThrottlingException", Message: "Rate exceeded"})
	store := newSecretsManager(t, fake)

	_, _, err := store.ResolveSecret(context.Background(), "busy")
	require.Error(t, err)

	var userErr dserrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, "aws.secretsmanager resolve failed for busy", userErr.Message)
	assert.Contains(t, userErr.Details, "ThrottlingException")
	assert.Contains(t, userErr.Suggestion, "rate limit")

	var apiErr smithy.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "ThrottlingException", apiErr.ErrorCode())
}

func TestSecretsManagerDelete(t *testing.T) {
	t.Parallel()

	fake := fakes.NewFakeSecretsManagerClient()
	fake.AddSecretString("creds", "x")
	store := newSecretsManager(t, fake)
	ctx := context.Background()

	require.NoError(t, store.DeleteSecret(ctx, "creds"))
	_, ok := fake.Value("creds")
	assert.False(t, ok)

	// deleting again is not an error
	require.NoError(t, store.DeleteSecret(ctx, "creds"))
	assert.Equal(t, []string{"creds", "creds"}, fake.Deleted)
}

func TestParameterStore(t *testing.T) {
	t.Parallel()

	fake := fakes.NewFakeSSMClient()
	store, err := vault.NewParameterStore(map[string]interface{}{
		"parameter_prefix": "/s3xfer/",
		"kms_key_id":       "alias/s3xfer",
	}, vault.Options{}, vault.WithSSMClient(fake))
	require.NoError(t, err)
	assert.Equal(t, vault.TypeParameterStore, store.Name())

	ctx := context.Background()

	_, ok, err := store.ResolveSecret(ctx, "token")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.StoreSecret(ctx, "token", "secret-value"))
	param, ok := fake.Parameter("/s3xfer/token")
	require.True(t, ok)
	assert.Equal(t, "alias/s3xfer", param.KeyID)
	assert.Equal(t, "SecureString", string(param.Type))

	value, ok, err := store.ResolveSecret(ctx, "token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "secret-value", value)

	require.NoError(t, store.StoreSecret(ctx, "token", "rotated"))
	param, _ = fake.Parameter("/s3xfer/token")
	assert.Equal(t, int64(2), param.Version)

	require.NoError(t, store.DeleteSecret(ctx, "token"))
	require.NoError(t, store.DeleteSecret(ctx, "token"))
	_, ok = fake.Parameter("/s3xfer/token")
	assert.False(t, ok)
}

func TestParameterStoreAuthError(t *testing.T) {
	t.Parallel()

	fake := fakes.NewFakeSSMClient()
	fake.AddError("token", &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "denied"})
	store, err := vault.NewParameterStore(nil, vault.Options{}, vault.WithSSMClient(fake))
	require.NoError(t, err)

	_, _, err = store.ResolveSecret(context.Background(), "token")
	var authErr secretstore.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, vault.TypeParameterStore, authErr.Store)
}
