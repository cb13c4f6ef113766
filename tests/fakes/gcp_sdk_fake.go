package fakes

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FakeGCPSecretManagerClient is an in-memory Secret Manager
type FakeGCPSecretManagerClient struct {
	mu sync.Mutex

	// Secrets maps secret resource names (projects/P/secrets/S) to their
	// versions, latest last
	Secrets map[string][][]byte
	// Errors maps secret resource names to errors to return
	Errors map[string]error
}

// NewFakeGCPSecretManagerClient creates an empty fake
func NewFakeGCPSecretManagerClient() *FakeGCPSecretManagerClient {
	return &FakeGCPSecretManagerClient{
		Secrets: make(map[string][][]byte),
		Errors:  make(map[string]error),
	}
}

// AddSecret appends a version to projects/project/secrets/name
func (f *FakeGCPSecretManagerClient) AddSecret(project, name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	full := fmt.Sprintf("projects/%s/secrets/%s", project, name)
	f.Secrets[full] = append(f.Secrets[full], []byte(value))
}

// AddError makes every operation on projects/project/secrets/name fail with err
func (f *FakeGCPSecretManagerClient) AddError(project, name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[fmt.Sprintf("projects/%s/secrets/%s", project, name)] = err
}

// Versions returns the number of versions stored for a secret resource name
func (f *FakeGCPSecretManagerClient) Versions(secret string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Secrets[secret])
}

// AccessSecretVersion mocks the AccessSecretVersion operation. Only the
// "latest" alias is supported.
func (f *FakeGCPSecretManagerClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	secret, version, ok := strings.Cut(req.GetName(), "/versions/")
	if !ok || version != "latest" {
		return nil, status.Errorf(codes.InvalidArgument, "unsupported version name %q", req.GetName())
	}
	if err, ok := f.Errors[secret]; ok {
		return nil, err
	}
	versions := f.Secrets[secret]
	if len(versions) == 0 {
		return nil, status.Errorf(codes.NotFound, "Secret [%s] not found or has no versions.", secret)
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    fmt.Sprintf("%s/versions/%d", secret, len(versions)),
		Payload: &secretmanagerpb.SecretPayload{Data: versions[len(versions)-1]},
	}, nil
}

// CreateSecret mocks the CreateSecret operation
func (f *FakeGCPSecretManagerClient) CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest, opts ...gax.CallOption) (*secretmanagerpb.Secret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := req.GetParent() + "/secrets/" + req.GetSecretId()
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	if _, ok := f.Secrets[name]; ok {
		return nil, status.Errorf(codes.AlreadyExists, "Secret [%s] already exists.", name)
	}
	f.Secrets[name] = nil
	return &secretmanagerpb.Secret{Name: name, Replication: req.GetSecret().GetReplication()}, nil
}

// AddSecretVersion mocks the AddSecretVersion operation
func (f *FakeGCPSecretManagerClient) AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.SecretVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := req.GetParent()
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	if _, ok := f.Secrets[name]; !ok {
		return nil, status.Errorf(codes.NotFound, "Secret [%s] not found.", name)
	}
	f.Secrets[name] = append(f.Secrets[name], req.GetPayload().GetData())
	return &secretmanagerpb.SecretVersion{
		Name:  fmt.Sprintf("%s/versions/%d", name, len(f.Secrets[name])),
		State: secretmanagerpb.SecretVersion_ENABLED,
	}, nil
}

// DeleteSecret mocks the DeleteSecret operation
func (f *FakeGCPSecretManagerClient) DeleteSecret(ctx context.Context, req *secretmanagerpb.DeleteSecretRequest, opts ...gax.CallOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := req.GetName()
	if err, ok := f.Errors[name]; ok {
		return err
	}
	if _, ok := f.Secrets[name]; !ok {
		return status.Errorf(codes.NotFound, "Secret [%s] not found.", name)
	}
	delete(f.Secrets, name)
	return nil
}
