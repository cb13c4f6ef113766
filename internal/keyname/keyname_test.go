package keyname

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/s3xfer/internal/logging"
)

func TestHashMatchesJavaStringHashCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int32
	}{
		{"", 0},
		{"a", 97},
		{"hello", 99162322},
		{"Aa", 2112},
		{"BB", 2112},
		{"😀", 1772899}, // surrogate pair D83D DE00
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Hash(tt.in), "Hash(%q)", tt.in)
	}
}

func TestHashWrapsAt32Bits(t *testing.T) {
	t.Parallel()

	// "polygenelubricants".hashCode() == Integer.MIN_VALUE
	assert.Equal(t, int32(-2147483648), Hash("polygenelubricants"))
}

func TestSanitizeReplacesInvalidCharacters(t *testing.T) {
	t.Parallel()

	key := "invalid#key"
	want := fmt.Sprintf("invalid-key_%d", Hash(key))

	assert.Equal(t, want, Sanitize(key))
}

func TestSanitizeKeepsValidCharacters(t *testing.T) {
	t.Parallel()

	for _, c := range []string{"_", "+", "-", "@", "/", "."} {
		key := "valid" + c + "key"
		assert.Equal(t, key, Sanitize(key))
	}
}

func TestSanitizeLimitsKeySize(t *testing.T) {
	t.Parallel()

	key := strings.Repeat("-", 10000)
	suffix := fmt.Sprintf("_%d", Hash(key))

	got := Sanitize(key)

	assert.Len(t, got, SecretsManager.Limit)
	assert.Equal(t, strings.Repeat("-", SecretsManager.Limit-len(suffix))+suffix, got)
}

func TestSanitizeLeavesKeysAtLimit(t *testing.T) {
	t.Parallel()

	for _, n := range []int{SecretsManager.Limit - 12, SecretsManager.Limit} {
		key := strings.Repeat("-", n)
		assert.Equal(t, key, Sanitize(key), "length %d", n)
	}

	over := strings.Repeat("a", SecretsManager.Limit+1)
	got := Sanitize(over)
	assert.NotEqual(t, over, got)
	assert.Len(t, got, SecretsManager.Limit)
}

func TestSanitizeIsStable(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"plain",
		"resourceDefinition-1234-secret-5678",
		"with space",
		"sp€cial/ch@rs#!",
		"tab\tand\nnewline",
		"\xff\xfe invalid utf8",
		strings.Repeat("x#", 400),
		strings.Repeat("界", 600),
	}

	for name, profile := range Profiles {
		for _, in := range inputs {
			t.Run(name+"/"+in[:min(len(in), 16)], func(t *testing.T) {
				once := profile.Sanitize(in)
				assert.True(t, profile.Valid(once), "output %q invalid", once)
				assert.Equal(t, once, profile.Sanitize(once))
				assert.LessOrEqual(t, len([]rune(once)), profile.Limit)
			})
		}
	}
}

func TestSanitizeDistinguishesCollidingReplacements(t *testing.T) {
	t.Parallel()

	a := Sanitize("key#1")
	b := Sanitize("key$1")

	assert.True(t, strings.HasPrefix(a, "key-1_"))
	assert.True(t, strings.HasPrefix(b, "key-1_"))
	assert.NotEqual(t, a, b)
}

func TestProfiles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		profile Sanitizer
		in      string
		valid   bool
	}{
		{"secrets manager allows plus", SecretsManager, "a+b", true},
		{"parameter store rejects plus", ParameterStore, "a+b", false},
		{"parameter store allows slash", ParameterStore, "/app/db", true},
		{"key vault rejects underscore", KeyVault, "a_b", false},
		{"key vault allows dash", KeyVault, "a-b", true},
		{"gcp rejects slash", GCPSecretManager, "a/b", false},
		{"gcp allows underscore", GCPSecretManager, "a_b", true},
		{"sts allows email-like names", STSSessionName, "ops@example.com,team=a+b", true},
		{"sts rejects space", STSSessionName, "edge-transfer_a b", false},
		{"sts rejects slash", STSSessionName, "edge-transfer_a/b", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.profile.Valid(tt.in))
		})
	}

	got := KeyVault.Sanitize("a_b")
	assert.Equal(t, fmt.Sprintf("a-b-%d", Hash("a_b")), got)
	assert.True(t, KeyVault.Valid(got))
}

func TestSanitizeLogsTransformation(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := SecretsManager.WithLogger(logging.NewWithWriter(&buf, false))

	unchanged := s.Sanitize("valid_key")
	require.Equal(t, "valid_key", unchanged)
	assert.Empty(t, buf.String())

	changed := s.Sanitize("bad key")
	out := buf.String()
	assert.Contains(t, out, "level=warning")
	assert.Contains(t, out, "bad key")
	assert.Contains(t, out, changed)

	// the package-level profile stays silent
	assert.Nil(t, SecretsManager.logger)
}
