package vault

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	dserrors "github.com/systmms/s3xfer/internal/errors"
	"github.com/systmms/s3xfer/internal/keyname"
	"github.com/systmms/s3xfer/internal/logging"
	"github.com/systmms/s3xfer/pkg/secretstore"
	"google.golang.org/api/impersonate"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GCPSecretManagerAPI is the subset of the Secret Manager client used by
// GCPSecretManagerStore
type GCPSecretManagerAPI interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest, opts ...gax.CallOption) (*secretmanagerpb.Secret, error)
	AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.SecretVersion, error)
	DeleteSecret(ctx context.Context, req *secretmanagerpb.DeleteSecretRequest, opts ...gax.CallOption) error
}

var _ GCPSecretManagerAPI = (*secretmanager.Client)(nil)

// GCPSecretManagerStore keeps secrets in Google Cloud Secret Manager
type GCPSecretManagerStore struct {
	client    GCPSecretManagerAPI
	projectID string
	sanitizer keyname.Sanitizer
	logger    *logging.Logger
}

// GCPOption is a functional option for configuring the store
type GCPOption func(*GCPSecretManagerStore)

// WithGCPClient sets a custom Secret Manager client (for testing)
func WithGCPClient(client GCPSecretManagerAPI) GCPOption {
	return func(g *GCPSecretManagerStore) {
		g.client = client
	}
}

// NewGCPSecretManagerStore creates a Secret Manager backed store.
// Settings: project_id, service_account_key_path, impersonate_service_account.
func NewGCPSecretManagerStore(settings map[string]interface{}, opts Options, storeOpts ...GCPOption) (*GCPSecretManagerStore, error) {
	projectID := stringSetting(settings, "project_id")
	if projectID == "" {
		projectID = gcpProjectFromEnv()
	}
	if projectID == "" {
		return nil, dserrors.ConfigError{
			Field:      "vault.project_id",
			Message:    "project_id is required for GCP Secret Manager",
			Suggestion: "Set vault.project_id or GOOGLE_CLOUD_PROJECT",
		}
	}

	logger := opts.logger()
	g := &GCPSecretManagerStore{
		projectID: projectID,
		sanitizer: keyname.GCPSecretManager.WithLogger(logger),
		logger:    logger,
	}
	for _, opt := range storeOpts {
		opt(g)
	}

	if g.client == nil {
		client, err := newGCPClient(
			stringSetting(settings, "service_account_key_path"),
			stringSetting(settings, "impersonate_service_account"),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCP Secret Manager client: %w", err)
		}
		g.client = client
	}
	return g, nil
}

func newGCPClient(keyPath, impersonateAccount string) (*secretmanager.Client, error) {
	ctx := context.Background()
	var clientOptions []option.ClientOption

	if keyPath != "" {
		if strings.HasPrefix(keyPath, "~/") {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			keyPath = filepath.Join(home, keyPath[2:])
		}
		clientOptions = append(clientOptions, option.WithCredentialsFile(keyPath))
	}

	if impersonateAccount != "" {
		ts, err := impersonate.CredentialsTokenSource(ctx, impersonate.CredentialsConfig{
			TargetPrincipal: impersonateAccount,
			Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create impersonated credentials: %w", err)
		}
		clientOptions = append(clientOptions, option.WithTokenSource(ts))
	}

	return secretmanager.NewClient(ctx, clientOptions...)
}

func gcpProjectFromEnv() string {
	for _, env := range []string{"GOOGLE_CLOUD_PROJECT", "GCLOUD_PROJECT", "GCP_PROJECT"} {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return ""
}

// Name returns the store type
func (g *GCPSecretManagerStore) Name() string {
	return TypeGCPSecretManager
}

func (g *GCPSecretManagerStore) secretPath(name string) string {
	return fmt.Sprintf("projects/%s/secrets/%s", g.projectID, name)
}

// ResolveSecret reads the latest version of key
func (g *GCPSecretManagerStore) ResolveSecret(ctx context.Context, key string) (string, bool, error) {
	name := g.sanitizer.Sanitize(key)
	g.logger.Debug("resolving secret %s in project %s", name, g.projectID)

	resp, err := g.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: g.secretPath(name) + "/versions/latest",
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", false, nil
		}
		return "", false, gcpStoreError("resolve", name, err)
	}
	if resp.GetPayload() == nil {
		return "", true, nil
	}
	return string(resp.GetPayload().GetData()), true, nil
}

// StoreSecret creates the secret container when missing and adds a version
func (g *GCPSecretManagerStore) StoreSecret(ctx context.Context, key, value string) error {
	name := g.sanitizer.Sanitize(key)

	_, err := g.client.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
		Parent:   "projects/" + g.projectID,
		SecretId: name,
		Secret: &secretmanagerpb.Secret{
			Replication: &secretmanagerpb.Replication{
				Replication: &secretmanagerpb.Replication_Automatic_{
					Automatic: &secretmanagerpb.Replication_Automatic{},
				},
			},
		},
	})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return gcpStoreError("store", name, err)
	}

	_, err = g.client.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
		Parent:  g.secretPath(name),
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	})
	if err != nil {
		return gcpStoreError("store", name, err)
	}
	return nil
}

// DeleteSecret deletes the secret and all of its versions
func (g *GCPSecretManagerStore) DeleteSecret(ctx context.Context, key string) error {
	name := g.sanitizer.Sanitize(key)

	err := g.client.DeleteSecret(ctx, &secretmanagerpb.DeleteSecretRequest{Name: g.secretPath(name)})
	if err != nil && status.Code(err) != codes.NotFound {
		return gcpStoreError("delete", name, err)
	}
	return nil
}

func gcpStoreError(op, name string, err error) error {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated:
		return secretstore.AuthError{
			Store:   TypeGCPSecretManager,
			Message: fmt.Sprintf("%s %s: %s", op, name, status.Convert(err).Message()),
			Err:     err,
		}
	}
	return dserrors.StoreError(TypeGCPSecretManager, op, name, err)
}
