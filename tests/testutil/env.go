package testutil

import (
	"os"
	"testing"
)

// Environment variables for integration tests.
const (
	// EnvIntegration enables tests against a real S3 endpoint.
	EnvIntegration = "S3XFER_TEST_AWS"
	// EnvEndpoint points the tests at an S3-compatible endpoint such as
	// LocalStack or MinIO instead of AWS.
	EnvEndpoint = "S3XFER_TEST_ENDPOINT"
	// EnvRegion overrides the test region.
	EnvRegion = "S3XFER_TEST_REGION"
	// EnvBucket names a pre-created bucket the tests may write to.
	EnvBucket = "S3XFER_TEST_BUCKET"
)

// AWSTarget describes where integration tests run.
type AWSTarget struct {
	Region   string
	Endpoint string
	Bucket   string
}

// RequireAWS skips the test unless integration tests are enabled and a
// bucket is provided.
func RequireAWS(t *testing.T) AWSTarget {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if os.Getenv(EnvIntegration) != "1" {
		t.Skipf("Skipping integration test: set %s=1 to enable", EnvIntegration)
	}

	target := AWSTarget{
		Region:   os.Getenv(EnvRegion),
		Endpoint: os.Getenv(EnvEndpoint),
		Bucket:   os.Getenv(EnvBucket),
	}
	if target.Region == "" {
		target.Region = "us-east-1"
	}
	if target.Bucket == "" {
		t.Skipf("Skipping integration test: %s is not set", EnvBucket)
	}
	return target
}
