// Package transfer moves objects between two locations, either by
// server-side copy or by streaming them through this process.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/systmms/s3xfer/internal/clients"
	"github.com/systmms/s3xfer/internal/eligibility"
	"github.com/systmms/s3xfer/internal/tokens"
	"github.com/systmms/s3xfer/pkg/credential"
	"github.com/systmms/s3xfer/pkg/location"
)

// ErrNoObjects is returned when a prefix listing matches nothing.
var ErrNoObjects = errors.New("error listing S3 objects in the bucket: object not found")

// Request describes one transfer.
type Request struct {
	ID          string
	Source      location.Descriptor
	Destination *location.Descriptor
}

// Validate checks the parts of a request this package depends on. Full
// descriptor validation happens upstream.
func (r Request) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("transfer request has no id")
	}
	if r.Destination == nil {
		return fmt.Errorf("transfer %s has no destination", r.ID)
	}
	return nil
}

// Result summarises a completed transfer.
type Result struct {
	Strategy eligibility.Strategy
	Objects  []string
	Bytes    int64
}

// Defaults fill in connection settings a descriptor leaves out.
type Defaults struct {
	Region           string
	EndpointOverride string
}

// connection derives the client configuration for a descriptor.
func (d Defaults) connection(desc location.Descriptor) clients.ConnectionConfig {
	cfg := clients.ConnectionConfig{Region: d.Region, EndpointOverride: d.EndpointOverride}
	if region, ok := desc.OptionalProperty(location.Region); ok {
		cfg.Region = region
	}
	if endpoint, ok := desc.OptionalProperty(location.EndpointOverride); ok {
		cfg.EndpointOverride = endpoint
	}
	return cfg
}

// credentialsFor picks the credential for a descriptor: the vault entry
// named by keyName, then an embedded access key pair, then nil for the
// default chain.
func credentialsFor(ctx context.Context, resolver *tokens.Resolver, desc location.Descriptor) (credential.Material, error) {
	if resolver != nil {
		if keyName, ok := desc.OptionalProperty(location.KeyName); ok {
			m, err := resolver.ResolveOptional(ctx, keyName)
			if err != nil {
				return nil, err
			}
			if m != nil {
				return m, nil
			}
		}
	}

	accessKey, hasAccess := desc.OptionalProperty(location.AccessKeyID)
	secretKey, hasSecret := desc.OptionalProperty(location.SecretAccessKey)
	if hasAccess && hasSecret {
		return credential.Static{AccessKeyID: accessKey, SecretAccessKey: secretKey}, nil
	}
	return nil, nil
}

// Planner chooses the strategy for a request.
type Planner struct {
	// ForceStream disables direct copy, e.g. when no role is configured for
	// issuing copy credentials.
	ForceStream bool
}

// Plan returns the strategy for req.
func (p Planner) Plan(req Request) eligibility.Strategy {
	if p.ForceStream {
		return eligibility.Stream
	}
	return eligibility.Decide(req.Source, req.Destination)
}
