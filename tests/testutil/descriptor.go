package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/systmms/s3xfer/pkg/location"
	"gopkg.in/yaml.v3"
)

// S3 returns an object-storage descriptor for bucket with extra properties
// given as name/value pairs.
func S3(bucket string, props ...string) location.Descriptor {
	if len(props)%2 != 0 {
		panic("testutil.S3: odd number of property arguments")
	}
	all := map[string]string{location.BucketName: bucket}
	for i := 0; i < len(props); i += 2 {
		all[props[i]] = props[i+1]
	}
	return location.New(location.TypeS3, all)
}

// WriteDescriptor writes d into dir as name. A .json extension selects JSON,
// anything else YAML.
func WriteDescriptor(t *testing.T, dir, name string, d location.Descriptor) string {
	t.Helper()

	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(name), ".json") {
		data, err = json.Marshal(d)
	} else {
		data, err = yaml.Marshal(d)
	}
	if err != nil {
		t.Fatalf("Failed to marshal descriptor %s: %v", name, err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("Failed to write descriptor %s: %v", name, err)
	}
	return path
}
