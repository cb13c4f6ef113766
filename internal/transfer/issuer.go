package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/google/uuid"
	"github.com/systmms/s3xfer/internal/clients"
	dserrors "github.com/systmms/s3xfer/internal/errors"
	"github.com/systmms/s3xfer/internal/keyname"
	"github.com/systmms/s3xfer/internal/logging"
	"github.com/systmms/s3xfer/internal/metrics"
	"github.com/systmms/s3xfer/pkg/credential"
	"github.com/systmms/s3xfer/pkg/location"
	"github.com/systmms/s3xfer/pkg/secretstore"
)

// IssuerConfig configures credential issuing for direct copies.
type IssuerConfig struct {
	// RoleArn is assumed for every transfer. It must grant read on the source
	// and write on the destination.
	RoleArn string
	// SessionDuration is the lifetime of issued credentials.
	SessionDuration time.Duration
	// ComponentID prefixes role session names.
	ComponentID string
}

// Issued is the outcome of Issue.
type Issued struct {
	// Source is the request source carrying the new keyName.
	Source     location.Descriptor
	KeyName    string
	Expiration *time.Time
}

// Issuer assumes the transfer role and files the session credentials in
// the vault, so the copy can resolve them like any other keyName.
type Issuer struct {
	clients  *clients.Cache
	store    secretstore.SecretStore
	config   IssuerConfig
	defaults Defaults
	logger   *logging.Logger

	newID func() string
}

// NewIssuer creates an issuer.
func NewIssuer(cache *clients.Cache, store secretstore.SecretStore, config IssuerConfig, defaults Defaults, logger *logging.Logger) *Issuer {
	if logger == nil {
		logger = logging.NewNop()
	}
	if config.ComponentID == "" {
		config.ComponentID = "s3xfer"
	}
	return &Issuer{
		clients:  cache,
		store:    store,
		config:   config,
		defaults: defaults,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

// SessionName returns the role session name used for a transfer, mapped
// onto the STS alphabet and length limit.
func (i *Issuer) SessionName(transferID string) string {
	return keyname.STSSessionName.WithLogger(i.logger).Sanitize(fmt.Sprintf("%s-transfer_%s", i.config.ComponentID, transferID))
}

// SecretKey returns the vault key name for credentials issued to a transfer.
func (i *Issuer) SecretKey(transferID string) string {
	return fmt.Sprintf("resourceDefinition-%s-secret-%s", transferID, i.newID())
}

// Issue assumes the configured role for req and stores the resulting
// temporary credential under a fresh key.
func (i *Issuer) Issue(ctx context.Context, req Request) (Issued, error) {
	if i.config.RoleArn == "" {
		metrics.RecordCredentialIssue("error")
		return Issued{}, &dserrors.ConfigurationError{
			Field:   "transfer.roleArn",
			Message: "a role is required to issue direct copy credentials",
		}
	}

	client, err := i.clients.STS(i.defaults.connection(req.Source))
	if err != nil {
		metrics.RecordCredentialIssue("error")
		return Issued{}, err
	}

	in := &sts.AssumeRoleInput{
		RoleArn:         aws.String(i.config.RoleArn),
		RoleSessionName: aws.String(i.SessionName(req.ID)),
	}
	if i.config.SessionDuration > 0 {
		in.DurationSeconds = aws.Int32(int32(i.config.SessionDuration / time.Second))
	}

	i.logger.Debug("assuming role %s for transfer %s", i.config.RoleArn, req.ID)
	out, err := client.AssumeRole(ctx, in)
	if err != nil {
		metrics.RecordCredentialIssue("error")
		return Issued{}, fmt.Errorf("failed to assume role %s: %w", i.config.RoleArn, err)
	}
	if out.Credentials == nil {
		metrics.RecordCredentialIssue("error")
		return Issued{}, fmt.Errorf("assume role %s returned no credentials", i.config.RoleArn)
	}

	material := credential.Temporary{
		AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(out.Credentials.SecretAccessKey),
		SessionToken:    aws.ToString(out.Credentials.SessionToken),
		Expiration:      out.Credentials.Expiration,
	}
	payload, err := credential.Encode(material)
	if err != nil {
		metrics.RecordCredentialIssue("error")
		return Issued{}, fmt.Errorf("cannot serialize secret token: %w", err)
	}

	keyName := i.SecretKey(req.ID)
	if err := i.store.StoreSecret(ctx, keyName, string(payload)); err != nil {
		metrics.RecordCredentialIssue("error")
		return Issued{}, fmt.Errorf("failed to store issued credentials: %w", err)
	}

	metrics.RecordCredentialIssue("issued")
	i.logger.Info("issued transfer credentials %s for transfer %s", logging.Secret(material.AccessKeyID), req.ID)
	return Issued{
		Source:     req.Source.With(location.KeyName, keyName),
		KeyName:    keyName,
		Expiration: material.Expiration,
	}, nil
}

// Revoke deletes credentials stored by Issue.
func (i *Issuer) Revoke(ctx context.Context, keyName string) error {
	if err := i.store.DeleteSecret(ctx, keyName); err != nil {
		metrics.RecordCredentialIssue("revoke_error")
		return fmt.Errorf("failed to delete issued credentials %s: %w", keyName, err)
	}
	metrics.RecordCredentialIssue("revoked")
	return nil
}
