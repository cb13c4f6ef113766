package vault

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/systmms/s3xfer/internal/clients"
	"github.com/systmms/s3xfer/internal/keyname"
	"github.com/systmms/s3xfer/internal/logging"
)

// ParameterStore keeps secrets as SecureString parameters in AWS SSM
type ParameterStore struct {
	client    clients.SSMAPI
	prefix    string
	kmsKeyID  string
	sanitizer keyname.Sanitizer
	logger    *logging.Logger
}

// ParameterStoreOption is a functional option for configuring the store
type ParameterStoreOption func(*ParameterStore)

// WithSSMClient sets a custom SSM client (for testing)
func WithSSMClient(client clients.SSMAPI) ParameterStoreOption {
	return func(p *ParameterStore) {
		p.client = client
	}
}

// NewParameterStore creates an SSM Parameter Store backed store.
// Settings: region, endpoint, profile, parameter_prefix, kms_key_id.
func NewParameterStore(settings map[string]interface{}, opts Options, storeOpts ...ParameterStoreOption) (*ParameterStore, error) {
	logger := opts.logger()
	p := &ParameterStore{
		prefix:    strings.TrimRight(stringSetting(settings, "parameter_prefix"), "/"),
		kmsKeyID:  stringSetting(settings, "kms_key_id"),
		sanitizer: keyname.ParameterStore.WithLogger(logger),
		logger:    logger,
	}
	for _, opt := range storeOpts {
		opt(p)
	}

	if p.client == nil {
		client, err := opts.clients(settings).SSM(awsConnection(settings))
		if err != nil {
			return nil, err
		}
		p.client = client
	}
	return p, nil
}

// Name returns the store type
func (p *ParameterStore) Name() string {
	return TypeParameterStore
}

func (p *ParameterStore) parameterName(key string) string {
	name := p.sanitizer.Sanitize(key)
	if p.prefix == "" {
		return name
	}
	return p.prefix + "/" + strings.TrimLeft(name, "/")
}

// ResolveSecret reads and decrypts the parameter for key
func (p *ParameterStore) ResolveSecret(ctx context.Context, key string) (string, bool, error) {
	name := p.parameterName(key)
	p.logger.Debug("resolving parameter %s", name)

	out, err := p.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		if isParameterNotFound(err) {
			return "", false, nil
		}
		return "", false, awsStoreError(TypeParameterStore, "resolve", name, err)
	}
	if out.Parameter == nil {
		return "", false, nil
	}
	return aws.ToString(out.Parameter.Value), true, nil
}

// StoreSecret writes key as an encrypted parameter, overwriting any value
func (p *ParameterStore) StoreSecret(ctx context.Context, key, value string) error {
	name := p.parameterName(key)

	in := &ssm.PutParameterInput{
		Name:      aws.String(name),
		Value:     aws.String(value),
		Type:      ssmtypes.ParameterTypeSecureString,
		Overwrite: aws.Bool(true),
	}
	if p.kmsKeyID != "" {
		in.KeyId = aws.String(p.kmsKeyID)
	}

	if _, err := p.client.PutParameter(ctx, in); err != nil {
		return awsStoreError(TypeParameterStore, "store", name, err)
	}
	return nil
}

// DeleteSecret removes the parameter for key
func (p *ParameterStore) DeleteSecret(ctx context.Context, key string) error {
	name := p.parameterName(key)

	_, err := p.client.DeleteParameter(ctx, &ssm.DeleteParameterInput{Name: aws.String(name)})
	if err != nil && !isParameterNotFound(err) {
		return awsStoreError(TypeParameterStore, "delete", name, err)
	}
	return nil
}

func isParameterNotFound(err error) bool {
	var notFound *ssmtypes.ParameterNotFound
	return errors.As(err, &notFound)
}
