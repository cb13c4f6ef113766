package fakes

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// FakeSecretsManagerClient is an in-memory Secrets Manager
type FakeSecretsManagerClient struct {
	mu sync.Mutex

	// Secrets maps secret names to their current string value
	Secrets map[string]string
	// Binary maps secret names to binary values
	Binary map[string][]byte
	// Errors maps secret names to errors to return from every operation
	Errors map[string]error
	// Deleted records names passed to DeleteSecret
	Deleted []string

	// GetSecretValueFunc allows custom behavior for GetSecretValue
	GetSecretValueFunc func(ctx context.Context, params *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error)
	// CreateSecretFunc allows custom behavior for CreateSecret
	CreateSecretFunc func(ctx context.Context, params *secretsmanager.CreateSecretInput) (*secretsmanager.CreateSecretOutput, error)
}

// NewFakeSecretsManagerClient creates an empty fake
func NewFakeSecretsManagerClient() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{
		Secrets: make(map[string]string),
		Binary:  make(map[string][]byte),
		Errors:  make(map[string]error),
	}
}

// AddSecretString stores a string secret
func (f *FakeSecretsManagerClient) AddSecretString(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[name] = value
}

// AddSecretBinary stores a binary secret
func (f *FakeSecretsManagerClient) AddSecretBinary(name string, value []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Binary[name] = value
}

// AddError makes every operation on name fail with err
func (f *FakeSecretsManagerClient) AddError(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[name] = err
}

// Value returns the stored string value for name
func (f *FakeSecretsManagerClient) Value(name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.Secrets[name]
	return v, ok
}

func notFound(name string) error {
	return &types.ResourceNotFoundException{
		Message: aws.String(fmt.Sprintf("Secrets Manager can't find the specified secret: %s", name)),
	}
}

func secretARN(name string) *string {
	return aws.String(fmt.Sprintf("arn:aws:secretsmanager:us-east-1:123456789012:secret:%s", name))
}

// GetSecretValue mocks the GetSecretValue operation
func (f *FakeSecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	if f.GetSecretValueFunc != nil {
		return f.GetSecretValueFunc(ctx, params)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.SecretId)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}

	out := &secretsmanager.GetSecretValueOutput{ARN: secretARN(name), Name: aws.String(name)}
	if v, ok := f.Secrets[name]; ok {
		out.SecretString = aws.String(v)
		return out, nil
	}
	if b, ok := f.Binary[name]; ok {
		out.SecretBinary = b
		return out, nil
	}
	return nil, notFound(name)
}

// CreateSecret mocks the CreateSecret operation
func (f *FakeSecretsManagerClient) CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	if f.CreateSecretFunc != nil {
		return f.CreateSecretFunc(ctx, params)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.Name)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	if _, ok := f.Secrets[name]; ok {
		return nil, &types.ResourceExistsException{
			Message: aws.String(fmt.Sprintf("The operation failed because the secret %s already exists.", name)),
		}
	}
	f.Secrets[name] = aws.ToString(params.SecretString)
	return &secretsmanager.CreateSecretOutput{ARN: secretARN(name), Name: params.Name}, nil
}

// PutSecretValue mocks the PutSecretValue operation
func (f *FakeSecretsManagerClient) PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.SecretId)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	if _, ok := f.Secrets[name]; !ok {
		return nil, notFound(name)
	}
	f.Secrets[name] = aws.ToString(params.SecretString)
	return &secretsmanager.PutSecretValueOutput{ARN: secretARN(name), Name: aws.String(name)}, nil
}

// DeleteSecret mocks the DeleteSecret operation
func (f *FakeSecretsManagerClient) DeleteSecret(ctx context.Context, params *secretsmanager.DeleteSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DeleteSecretOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.SecretId)
	f.Deleted = append(f.Deleted, name)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	_, isString := f.Secrets[name]
	_, isBinary := f.Binary[name]
	if !isString && !isBinary {
		return nil, notFound(name)
	}
	delete(f.Secrets, name)
	delete(f.Binary, name)
	return &secretsmanager.DeleteSecretOutput{ARN: secretARN(name), Name: aws.String(name)}, nil
}

// FakeSSMClient is an in-memory SSM Parameter Store
type FakeSSMClient struct {
	mu sync.Mutex

	// Parameters maps parameter names to their data
	Parameters map[string]*ParameterData
	// Errors maps parameter names to errors to return
	Errors map[string]error

	// GetParameterFunc allows custom behavior for GetParameter
	GetParameterFunc func(ctx context.Context, params *ssm.GetParameterInput) (*ssm.GetParameterOutput, error)
}

// ParameterData holds the data for a fake SSM parameter
type ParameterData struct {
	Type    ssmtypes.ParameterType
	Value   string
	KeyID   string
	Version int64
}

// NewFakeSSMClient creates an empty fake
func NewFakeSSMClient() *FakeSSMClient {
	return &FakeSSMClient{
		Parameters: make(map[string]*ParameterData),
		Errors:     make(map[string]error),
	}
}

// AddSecureStringParameter stores a SecureString parameter
func (f *FakeSSMClient) AddSecureStringParameter(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Parameters[name] = &ParameterData{Type: ssmtypes.ParameterTypeSecureString, Value: value, Version: 1}
}

// AddError makes every operation on name fail with err
func (f *FakeSSMClient) AddError(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[name] = err
}

// Parameter returns a copy of the stored parameter
func (f *FakeSSMClient) Parameter(name string) (ParameterData, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Parameters[name]
	if !ok {
		return ParameterData{}, false
	}
	return *p, true
}

func parameterNotFound(name string) error {
	return &ssmtypes.ParameterNotFound{Message: aws.String(fmt.Sprintf("Parameter %s not found.", name))}
}

// GetParameter mocks the GetParameter operation
func (f *FakeSSMClient) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	if f.GetParameterFunc != nil {
		return f.GetParameterFunc(ctx, params)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.Name)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	p, ok := f.Parameters[name]
	if !ok {
		return nil, parameterNotFound(name)
	}

	value := p.Value
	if p.Type == ssmtypes.ParameterTypeSecureString && !aws.ToBool(params.WithDecryption) {
		value = "AQICAHh...encrypted"
	}
	return &ssm.GetParameterOutput{
		Parameter: &ssmtypes.Parameter{
			Name:    aws.String(name),
			Type:    p.Type,
			Value:   aws.String(value),
			Version: p.Version,
			ARN:     aws.String(fmt.Sprintf("arn:aws:ssm:us-east-1:123456789012:parameter%s", name)),
		},
	}, nil
}

// PutParameter mocks the PutParameter operation
func (f *FakeSSMClient) PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.Name)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}

	existing, ok := f.Parameters[name]
	if ok && !aws.ToBool(params.Overwrite) {
		return nil, &ssmtypes.ParameterAlreadyExists{Message: aws.String("The parameter already exists.")}
	}
	version := int64(1)
	if ok {
		version = existing.Version + 1
	}
	f.Parameters[name] = &ParameterData{
		Type:    params.Type,
		Value:   aws.ToString(params.Value),
		KeyID:   aws.ToString(params.KeyId),
		Version: version,
	}
	return &ssm.PutParameterOutput{Version: version}, nil
}

// DeleteParameter mocks the DeleteParameter operation
func (f *FakeSSMClient) DeleteParameter(ctx context.Context, params *ssm.DeleteParameterInput, optFns ...func(*ssm.Options)) (*ssm.DeleteParameterOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.Name)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	if _, ok := f.Parameters[name]; !ok {
		return nil, parameterNotFound(name)
	}
	delete(f.Parameters, name)
	return &ssm.DeleteParameterOutput{}, nil
}
