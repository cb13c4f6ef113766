// Package clients builds and caches AWS SDK clients.
//
// Clients are expensive to construct (credential chain resolution, endpoint
// rules, HTTP transport), so the Cache hands out one shared instance per
// (Kind, ConnectionConfig) for the life of the process. Clients scoped to a
// specific credential live in a separate bounded cache.
package clients

import (
	"fmt"
	"net/url"
	"regexp"

	dserrors "github.com/systmms/s3xfer/internal/errors"
)

// Kind names a client type.
type Kind string

const (
	KindS3             Kind = "s3"
	KindSTS            Kind = "sts"
	KindSecretsManager Kind = "secretsmanager"
	KindSSM            Kind = "ssm"
)

// Regions are free-form for S3-compatible endpoints, so only the alphabet is
// checked.
var regionPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// ConnectionConfig identifies where a client connects. It is comparable and
// used directly as a cache key; an empty EndpointOverride means none.
type ConnectionConfig struct {
	Region           string
	EndpointOverride string
}

// Validate rejects malformed regions and endpoints with a
// ConfigurationError.
func (c ConnectionConfig) Validate() error {
	if !regionPattern.MatchString(c.Region) {
		return &dserrors.ConfigurationError{
			Field:   "region",
			Value:   c.Region,
			Message: "expected lowercase letters, digits and hyphens, such as us-east-1",
		}
	}

	if c.EndpointOverride == "" {
		return nil
	}
	u, err := url.Parse(c.EndpointOverride)
	if err != nil {
		return &dserrors.ConfigurationError{Field: "endpointOverride", Value: c.EndpointOverride, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &dserrors.ConfigurationError{
			Field:   "endpointOverride",
			Value:   c.EndpointOverride,
			Message: "scheme must be http or https",
		}
	}
	if u.Host == "" {
		return &dserrors.ConfigurationError{
			Field:   "endpointOverride",
			Value:   c.EndpointOverride,
			Message: "missing host",
		}
	}
	return nil
}

func (c ConnectionConfig) String() string {
	if c.EndpointOverride == "" {
		return c.Region
	}
	return fmt.Sprintf("%s@%s", c.Region, c.EndpointOverride)
}
