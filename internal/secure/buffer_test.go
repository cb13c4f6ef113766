package secure

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealAndUse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{name: "json payload", data: `{"accessKeyId":"AKIA","secretAccessKey":"s"}`},
		{name: "empty payload", data: ""},
		{name: "binary-ish payload", data: "\x00\xff\x10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			buf := SealString(tt.data)
			defer buf.Destroy()

			assert.Equal(t, len(tt.data), buf.Len())

			var got string
			err := buf.Use(func(plain []byte) error {
				got = string(plain)
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.data, got)
		})
	}
}

func TestUsePropagatesCallbackError(t *testing.T) {
	t.Parallel()

	buf := SealString("payload")
	defer buf.Destroy()

	sentinel := errors.New("parse failed")
	err := buf.Use(func([]byte) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
}

func TestUseAfterDestroy(t *testing.T) {
	t.Parallel()

	buf := SealString("payload")
	buf.Destroy()
	buf.Destroy()

	err := buf.Use(func([]byte) error {
		t.Fatal("callback must not run")
		return nil
	})
	assert.ErrorIs(t, err, ErrDestroyed)
}

func TestSealWipesSource(t *testing.T) {
	t.Parallel()

	src := []byte("wipe-me")
	buf := Seal(src)
	defer buf.Destroy()

	assert.Equal(t, make([]byte, len(src)), src)

	err := buf.Use(func(plain []byte) error {
		assert.Equal(t, "wipe-me", string(plain))
		return nil
	})
	require.NoError(t, err)
}
