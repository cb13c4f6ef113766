package tokens

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dserrors "github.com/systmms/s3xfer/internal/errors"
	"github.com/systmms/s3xfer/internal/logging"
	"github.com/systmms/s3xfer/pkg/credential"
	"github.com/systmms/s3xfer/pkg/secretstore"
)

func staticStore(values map[string]string) secretstore.Reader {
	return secretstore.ReaderFunc(func(_ context.Context, key string) (string, bool, error) {
		v, ok := values[key]
		return v, ok, nil
	})
}

func TestResolve(t *testing.T) {
	t.Parallel()

	store := staticStore(map[string]string{
		"static":      `{"accessKeyId":"AKIA1","secretAccessKey":"s1"}`,
		"temporary":   `{"accessKeyId":"ASIA1","secretAccessKey":"s2","sessionToken":"tok","expiration":1700000000000}`,
		"null-token":  `{"accessKeyId":"ASIA2","secretAccessKey":"s3","sessionToken":null}`,
		"blank":       "   ",
		"not-json":    "plain text",
		"json-array":  `["a"]`,
		"missing-key": `{"secretAccessKey":"s"}`,
	})
	resolver := NewResolver(store, nil)

	expiration := time.UnixMilli(1700000000000).UTC()

	tests := []struct {
		name    string
		key     string
		want    credential.Material
		wantErr error
	}{
		{"static payload", "static", credential.Static{AccessKeyID: "AKIA1", SecretAccessKey: "s1"}, nil},
		{"session token payload", "temporary", credential.Temporary{AccessKeyID: "ASIA1", SecretAccessKey: "s2", SessionToken: "tok", Expiration: &expiration}, nil},
		{"null session token is still temporary", "null-token", credential.Temporary{AccessKeyID: "ASIA2", SecretAccessKey: "s3"}, nil},
		{"empty key", "", nil, dserrors.ErrSecretNotFound},
		{"whitespace key", "  ", nil, dserrors.ErrSecretNotFound},
		{"store miss", "absent", nil, dserrors.ErrSecretNotFound},
		{"blank value", "blank", nil, dserrors.ErrSecretNotFound},
		{"not json", "not-json", nil, dserrors.ErrSecretFormat},
		{"json array", "json-array", nil, dserrors.ErrSecretFormat},
		{"missing access key", "missing-key", nil, dserrors.ErrSecretFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := resolver.Resolve(context.Background(), tt.key)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveFormatErrorNamesKey(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(staticStore(map[string]string{"bad": "{"}), nil)

	_, err := resolver.Resolve(context.Background(), "bad")
	var formatErr *dserrors.SecretFormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, "bad", formatErr.Key)
	assert.Contains(t, err.Error(), "key 'bad'")
}

func TestResolveStoreErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	resolver := NewResolver(secretstore.ReaderFunc(func(context.Context, string) (string, bool, error) {
		return "", false, boom
	}), nil)

	_, err := resolver.Resolve(context.Background(), "k")
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, dserrors.ErrSecretNotFound)
}

func TestResolveOptional(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(staticStore(map[string]string{
		"ok":  `{"accessKeyId":"AKIA","secretAccessKey":"s"}`,
		"bad": `nope`,
	}), nil)
	ctx := context.Background()

	m, err := resolver.ResolveOptional(ctx, "")
	assert.NoError(t, err)
	assert.Nil(t, m)

	m, err = resolver.ResolveOptional(ctx, "absent")
	assert.NoError(t, err)
	assert.Nil(t, m)

	m, err = resolver.ResolveOptional(ctx, "ok")
	require.NoError(t, err)
	assert.Equal(t, credential.KindStatic, m.Kind())

	_, err = resolver.ResolveOptional(ctx, "bad")
	assert.ErrorIs(t, err, dserrors.ErrSecretFormat)
}

func TestResolveNeverLogsSecret(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	resolver := NewResolver(staticStore(map[string]string{
		"k": `{"accessKeyId":"AKIA","secretAccessKey":"very-secret","sessionToken":"tok-secret"}`,
	}), logging.NewWithWriter(&out, true))

	_, err := resolver.Resolve(context.Background(), "k")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "resolved static credential [REDACTED] from key k")
	assert.NotContains(t, out.String(), "AKIA")
	assert.NotContains(t, out.String(), "very-secret")
	assert.NotContains(t, out.String(), "tok-secret")
}
