package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
	"github.com/systmms/s3xfer/internal/clients"
	dserrors "github.com/systmms/s3xfer/internal/errors"
	"github.com/systmms/s3xfer/internal/keyname"
	"github.com/systmms/s3xfer/internal/logging"
	"github.com/systmms/s3xfer/pkg/secretstore"
)

// DefaultRegion is used by AWS backends when neither the vault nor the aws
// section configures one.
const DefaultRegion = "us-east-1"

// SecretsManagerStore keeps secrets in AWS Secrets Manager
type SecretsManagerStore struct {
	client    clients.SecretsManagerAPI
	sanitizer keyname.Sanitizer
	logger    *logging.Logger
}

// SecretsManagerOption is a functional option for configuring the store
type SecretsManagerOption func(*SecretsManagerStore)

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing)
func WithSecretsManagerClient(client clients.SecretsManagerAPI) SecretsManagerOption {
	return func(s *SecretsManagerStore) {
		s.client = client
	}
}

// NewSecretsManagerStore creates a Secrets Manager backed store.
// Settings: region, endpoint, profile.
func NewSecretsManagerStore(settings map[string]interface{}, opts Options, storeOpts ...SecretsManagerOption) (*SecretsManagerStore, error) {
	logger := opts.logger()
	s := &SecretsManagerStore{
		sanitizer: keyname.SecretsManager.WithLogger(logger),
		logger:    logger,
	}
	for _, opt := range storeOpts {
		opt(s)
	}

	if s.client == nil {
		client, err := opts.clients(settings).SecretsManager(awsConnection(settings))
		if err != nil {
			return nil, err
		}
		s.client = client
	}
	return s, nil
}

// Name returns the store type
func (s *SecretsManagerStore) Name() string {
	return TypeSecretsManager
}

// ResolveSecret reads the current value of key
func (s *SecretsManagerStore) ResolveSecret(ctx context.Context, key string) (string, bool, error) {
	name := s.sanitizer.Sanitize(key)
	s.logger.Debug("resolving secret %s from %s", name, TypeSecretsManager)

	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return "", false, nil
		}
		return "", false, awsStoreError(TypeSecretsManager, "resolve", name, err)
	}

	switch {
	case out.SecretString != nil:
		return *out.SecretString, true, nil
	case out.SecretBinary != nil:
		return string(out.SecretBinary), true, nil
	default:
		return "", true, nil
	}
}

// StoreSecret creates key, or puts a new version if it already exists
func (s *SecretsManagerStore) StoreSecret(ctx context.Context, key, value string) error {
	name := s.sanitizer.Sanitize(key)

	_, err := s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(name),
		SecretString: aws.String(value),
	})
	if err == nil {
		return nil
	}

	var exists *types.ResourceExistsException
	if !errors.As(err, &exists) {
		return awsStoreError(TypeSecretsManager, "store", name, err)
	}

	_, err = s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(name),
		SecretString: aws.String(value),
	})
	if err != nil {
		return awsStoreError(TypeSecretsManager, "store", name, err)
	}
	return nil
}

// DeleteSecret removes key immediately, without a recovery window
func (s *SecretsManagerStore) DeleteSecret(ctx context.Context, key string) error {
	name := s.sanitizer.Sanitize(key)

	_, err := s.client.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
		SecretId:                   aws.String(name),
		ForceDeleteWithoutRecovery: aws.Bool(true),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil
		}
		return awsStoreError(TypeSecretsManager, "delete", name, err)
	}
	return nil
}

func awsConnection(settings map[string]interface{}) clients.ConnectionConfig {
	region := stringSetting(settings, "region")
	if region == "" {
		region = DefaultRegion
	}
	return clients.ConnectionConfig{
		Region:           region,
		EndpointOverride: stringSetting(settings, "endpoint"),
	}
}

var awsAuthCodes = map[string]bool{
	"AccessDeniedException":       true,
	"AccessDenied":                true,
	"UnrecognizedClientException": true,
	"InvalidSignatureException":   true,
	"ExpiredTokenException":       true,
	"ExpiredToken":                true,
}

// awsStoreError converts SDK failures into store errors
func awsStoreError(store, op, name string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && awsAuthCodes[apiErr.ErrorCode()] {
		return secretstore.AuthError{
			Store:   store,
			Message: fmt.Sprintf("%s %s: %s", op, name, apiErr.ErrorMessage()),
			Err:     err,
		}
	}
	return dserrors.StoreError(store, op, name, err)
}
