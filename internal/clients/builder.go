package clients

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/systmms/s3xfer/pkg/credential"
)

// Builder constructs a client of the given kind. creds is nil for clients
// that use the default credential chain.
type Builder interface {
	Build(kind Kind, cfg ConnectionConfig, creds credential.Material) (any, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(kind Kind, cfg ConnectionConfig, creds credential.Material) (any, error)

// Build calls f.
func (f BuilderFunc) Build(kind Kind, cfg ConnectionConfig, creds credential.Material) (any, error) {
	return f(kind, cfg, creds)
}

// AWSBuilder builds real SDK clients.
type AWSBuilder struct {
	profile         string
	defaultEndpoint string
}

// BuilderOption configures an AWSBuilder.
type BuilderOption func(*AWSBuilder)

// WithProfile selects a shared config profile.
func WithProfile(profile string) BuilderOption {
	return func(b *AWSBuilder) {
		b.profile = profile
	}
}

// WithDefaultEndpoint sets the endpoint used when a ConnectionConfig carries
// no override (e.g. a single MinIO or LocalStack for everything).
func WithDefaultEndpoint(endpoint string) BuilderOption {
	return func(b *AWSBuilder) {
		b.defaultEndpoint = endpoint
	}
}

// NewAWSBuilder creates a builder backed by the AWS SDK.
func NewAWSBuilder(opts ...BuilderOption) *AWSBuilder {
	b := &AWSBuilder{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build implements Builder.
func (b *AWSBuilder) Build(kind Kind, cfg ConnectionConfig, creds credential.Material) (any, error) {
	awsCfg, err := b.awsConfig(cfg, creds)
	if err != nil {
		return nil, err
	}

	endpoint := cfg.EndpointOverride
	if endpoint == "" {
		endpoint = b.defaultEndpoint
	}

	switch kind {
	case KindS3:
		return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
				o.UsePathStyle = true
			}
		}), nil
	case KindSTS:
		return sts.NewFromConfig(awsCfg, func(o *sts.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		}), nil
	case KindSecretsManager:
		return secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		}), nil
	case KindSSM:
		return ssm.NewFromConfig(awsCfg, func(o *ssm.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		}), nil
	default:
		return nil, fmt.Errorf("unsupported client kind %q", kind)
	}
}

func (b *AWSBuilder) awsConfig(cfg ConnectionConfig, creds credential.Material) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if b.profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(b.profile))
	}
	if creds != nil {
		opts = append(opts, config.WithCredentialsProvider(credential.Provider(creds)))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}
