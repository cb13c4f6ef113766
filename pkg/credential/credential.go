// Package credential models the object-storage credentials stored in a
// secret store.
//
// A stored secret decodes into exactly one of two shapes:
//
//	{"accessKeyId": "...", "secretAccessKey": "..."}                           -> Static
//	{"accessKeyId": "...", "secretAccessKey": "...", "sessionToken": "...",
//	 "expiration": 1700000000000}                                            -> Temporary
//
// The presence of the sessionToken field alone selects Temporary. Expiration
// is epoch milliseconds; zero or absent means the token carries no expiry.
package credential

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	dserrors "github.com/systmms/s3xfer/internal/errors"
)

// Kind names a credential variant.
type Kind string

const (
	KindStatic    Kind = "static"
	KindTemporary Kind = "temporary"
)

const sessionTokenField = "sessionToken"

// Material is the closed set of credential variants. Only Static and
// Temporary implement it.
type Material interface {
	Kind() Kind
	AccessKey() string
	material()
}

// Static is a long-lived access key pair.
type Static struct {
	AccessKeyID     string
	SecretAccessKey string
}

// Temporary is a session credential issued by STS.
type Temporary struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expiration      *time.Time
}

func (Static) material()    {}
func (Temporary) material() {}

func (Static) Kind() Kind    { return KindStatic }
func (Temporary) Kind() Kind { return KindTemporary }

func (s Static) AccessKey() string    { return s.AccessKeyID }
func (t Temporary) AccessKey() string { return t.AccessKeyID }

func (s Static) String() string {
	return fmt.Sprintf("Static{AccessKeyID: %s, SecretAccessKey: [REDACTED]}", s.AccessKeyID)
}

func (s Static) GoString() string { return s.String() }

func (t Temporary) String() string {
	exp := "none"
	if t.Expiration != nil {
		exp = t.Expiration.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("Temporary{AccessKeyID: %s, SecretAccessKey: [REDACTED], SessionToken: [REDACTED], Expiration: %s}", t.AccessKeyID, exp)
}

func (t Temporary) GoString() string { return t.String() }

// payload is the stored JSON form of both variants.
type payload struct {
	AccessKeyID     string  `json:"accessKeyId"`
	SecretAccessKey string  `json:"secretAccessKey"`
	SessionToken    *string `json:"sessionToken,omitempty"`
	Expiration      int64   `json:"expiration,omitempty"`
}

// Decode classifies a stored secret and parses it into its variant.
// Failures are SecretFormatError.
func Decode(data []byte) (Material, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, &dserrors.SecretFormatError{Err: err}
	}
	if fields == nil {
		return nil, &dserrors.SecretFormatError{Err: errors.New("secret is not a JSON object")}
	}

	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &dserrors.SecretFormatError{Err: err}
	}
	if p.AccessKeyID == "" {
		return nil, &dserrors.SecretFormatError{Err: errors.New("missing accessKeyId")}
	}
	if p.SecretAccessKey == "" {
		return nil, &dserrors.SecretFormatError{Err: errors.New("missing secretAccessKey")}
	}

	if _, ok := fields[sessionTokenField]; !ok {
		return Static{AccessKeyID: p.AccessKeyID, SecretAccessKey: p.SecretAccessKey}, nil
	}

	t := Temporary{AccessKeyID: p.AccessKeyID, SecretAccessKey: p.SecretAccessKey}
	if p.SessionToken != nil {
		t.SessionToken = *p.SessionToken
	}
	if p.Expiration > 0 {
		exp := time.UnixMilli(p.Expiration).UTC()
		t.Expiration = &exp
	}
	return t, nil
}

// Encode renders m in its stored JSON form.
func Encode(m Material) ([]byte, error) {
	var p payload
	switch v := m.(type) {
	case Static:
		p = payload{AccessKeyID: v.AccessKeyID, SecretAccessKey: v.SecretAccessKey}
	case Temporary:
		token := v.SessionToken
		p = payload{AccessKeyID: v.AccessKeyID, SecretAccessKey: v.SecretAccessKey, SessionToken: &token}
		if v.Expiration != nil {
			p.Expiration = v.Expiration.UnixMilli()
		}
	default:
		return nil, fmt.Errorf("unsupported credential material %T", m)
	}
	return json.Marshal(p)
}

// Provider adapts m to an SDK credentials provider.
func Provider(m Material) aws.CredentialsProvider {
	switch v := m.(type) {
	case Static:
		return credentials.NewStaticCredentialsProvider(v.AccessKeyID, v.SecretAccessKey, "")
	case Temporary:
		return credentials.NewStaticCredentialsProvider(v.AccessKeyID, v.SecretAccessKey, v.SessionToken)
	default:
		panic(fmt.Sprintf("credential: unsupported material %T", m))
	}
}

// Fingerprint returns a stable digest identifying m. It is safe to use as a
// map key or log field; the secret parts cannot be recovered from it.
func Fingerprint(m Material) string {
	h := sha256.New()
	switch v := m.(type) {
	case Static:
		fmt.Fprintf(h, "static\x00%s\x00%s", v.AccessKeyID, v.SecretAccessKey)
	case Temporary:
		fmt.Fprintf(h, "temporary\x00%s\x00%s\x00%s", v.AccessKeyID, v.SecretAccessKey, v.SessionToken)
	default:
		panic(fmt.Sprintf("credential: unsupported material %T", m))
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// Expired reports whether m is a Temporary whose expiration is at or before now.
func Expired(m Material, now time.Time) bool {
	t, ok := m.(Temporary)
	if !ok || t.Expiration == nil {
		return false
	}
	return !now.Before(*t.Expiration)
}

// FromAWS converts SDK credentials into material. Credentials carrying a
// session token become Temporary.
func FromAWS(c aws.Credentials) Material {
	if c.SessionToken == "" {
		return Static{AccessKeyID: c.AccessKeyID, SecretAccessKey: c.SecretAccessKey}
	}
	t := Temporary{AccessKeyID: c.AccessKeyID, SecretAccessKey: c.SecretAccessKey, SessionToken: c.SessionToken}
	if c.CanExpire {
		exp := c.Expires.UTC()
		t.Expiration = &exp
	}
	return t
}
