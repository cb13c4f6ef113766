package fakes

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// FakeAzureKeyVaultClient is an in-memory Key Vault
type FakeAzureKeyVaultClient struct {
	mu sync.Mutex

	// VaultURL prefixes secret IDs
	VaultURL string
	// Secrets maps secret names to their versions, latest last
	Secrets map[string][]string
	// Errors maps secret names to errors to return
	Errors map[string]error
}

// NewFakeAzureKeyVaultClient creates an empty fake
func NewFakeAzureKeyVaultClient() *FakeAzureKeyVaultClient {
	return &FakeAzureKeyVaultClient{
		VaultURL: "https://test-vault.vault.azure.net",
		Secrets:  make(map[string][]string),
		Errors:   make(map[string]error),
	}
}

// AddSecret appends a version to name
func (f *FakeAzureKeyVaultClient) AddSecret(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[name] = append(f.Secrets[name], value)
}

// AddError makes every operation on name fail with err
func (f *FakeAzureKeyVaultClient) AddError(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[name] = err
}

// Versions returns the number of versions stored for name
func (f *FakeAzureKeyVaultClient) Versions(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Secrets[name])
}

// GetSecret mocks the GetSecret operation. Only the latest version ("") is supported.
func (f *FakeAzureKeyVaultClient) GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.Errors[name]; ok {
		return azsecrets.GetSecretResponse{}, err
	}
	versions, ok := f.Secrets[name]
	if !ok || len(versions) == 0 {
		return azsecrets.GetSecretResponse{}, AzureError(http.StatusNotFound, "SecretNotFound")
	}

	id := azsecrets.ID(fmt.Sprintf("%s/secrets/%s/%d", f.VaultURL, name, len(versions)))
	return azsecrets.GetSecretResponse{
		Secret: azsecrets.Secret{
			ID:    &id,
			Value: to.Ptr(versions[len(versions)-1]),
		},
	}, nil
}

// SetSecret mocks the SetSecret operation
func (f *FakeAzureKeyVaultClient) SetSecret(ctx context.Context, name string, parameters azsecrets.SetSecretParameters, options *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.Errors[name]; ok {
		return azsecrets.SetSecretResponse{}, err
	}
	value := ""
	if parameters.Value != nil {
		value = *parameters.Value
	}
	f.Secrets[name] = append(f.Secrets[name], value)
	return azsecrets.SetSecretResponse{Secret: azsecrets.Secret{Value: to.Ptr(value)}}, nil
}

// DeleteSecret mocks the DeleteSecret operation
func (f *FakeAzureKeyVaultClient) DeleteSecret(ctx context.Context, name string, options *azsecrets.DeleteSecretOptions) (azsecrets.DeleteSecretResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.Errors[name]; ok {
		return azsecrets.DeleteSecretResponse{}, err
	}
	if _, ok := f.Secrets[name]; !ok {
		return azsecrets.DeleteSecretResponse{}, AzureError(http.StatusNotFound, "SecretNotFound")
	}
	delete(f.Secrets, name)
	return azsecrets.DeleteSecretResponse{}, nil
}

// AzureError builds the response error the Azure SDK returns for a status
func AzureError(status int, code string) error {
	return &azcore.ResponseError{StatusCode: status, ErrorCode: code}
}
