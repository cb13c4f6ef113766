// Package location describes the endpoints of a transfer.
//
// A Descriptor is an untyped property bag tagged with a storage type. Only
// the object-storage schema below is understood by this module; other types
// pass through untouched and are never eligible for direct copy.
//
// Mandatory-field validation happens upstream. Nothing here rejects a
// descriptor for missing properties.
package location

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// TypeS3 is the descriptor type of an object-storage endpoint.
const TypeS3 = "AmazonS3"

// Property names of the object-storage schema.
const (
	Region           = "region"
	BucketName       = "bucketName"
	ObjectName       = "objectName"
	ObjectPrefix     = "objectPrefix"
	FolderName       = "folderName"
	KeyName          = "keyName"
	AccessKeyID      = "accessKeyId"
	SecretAccessKey  = "secretAccessKey"
	EndpointOverride = "endpointOverride"

	// Deprecated: use ObjectPrefix.
	KeyPrefix = "keyPrefix"
)

// Descriptor is an endpoint description: a type tag and its properties.
type Descriptor struct {
	Type       string            `yaml:"type" json:"type"`
	Properties map[string]string `yaml:"properties" json:"properties"`
}

// New returns a descriptor owning a copy of props.
func New(typ string, props map[string]string) Descriptor {
	copied := make(map[string]string, len(props))
	for k, v := range props {
		copied[k] = v
	}
	return Descriptor{Type: typ, Properties: copied}
}

// IsS3 reports whether the descriptor is an object-storage endpoint.
func (d Descriptor) IsS3() bool {
	return d.Type == TypeS3
}

// Property returns the raw value and whether the key is present.
func (d Descriptor) Property(name string) (string, bool) {
	v, ok := d.Properties[name]
	return v, ok
}

// StringProperty returns the value of name, or "" when absent.
func (d Descriptor) StringProperty(name string) string {
	return d.Properties[name]
}

// OptionalProperty returns the value of name and true, unless the key is
// absent or its value is blank.
func (d Descriptor) OptionalProperty(name string) (string, bool) {
	v, ok := d.Properties[name]
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// With returns a copy of the descriptor with name set to value.
func (d Descriptor) With(name, value string) Descriptor {
	out := New(d.Type, d.Properties)
	out.Properties[name] = value
	return out
}

// ObjectPrefix returns the listing prefix, honouring the deprecated
// keyPrefix property. deprecated is true when the fallback was used.
func (d Descriptor) ObjectPrefix() (prefix string, deprecated bool) {
	if v, ok := d.OptionalProperty(ObjectPrefix); ok {
		return v, false
	}
	if v, ok := d.OptionalProperty(KeyPrefix); ok {
		return v, true
	}
	return "", false
}

// String omits property values, which may carry credentials.
func (d Descriptor) String() string {
	keys := make([]string, 0, len(d.Properties))
	for k := range d.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("%s%v", d.Type, keys)
}

// DestinationObjectName joins a destination folder and an object key.
// An empty folder yields the key; a folder already ending in "/" is not
// given a second separator.
func DestinationObjectName(key, folder string) string {
	if folder == "" {
		return key
	}
	if strings.HasSuffix(folder, "/") {
		return folder + key
	}
	return folder + "/" + key
}

// Load reads a descriptor from a YAML or JSON file.
func Load(path string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to read descriptor %s: %w", path, err)
	}

	var d Descriptor
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &d)
	default:
		err = yaml.Unmarshal(data, &d)
	}
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to parse descriptor %s: %w", path, err)
	}
	if d.Type == "" {
		return Descriptor{}, fmt.Errorf("descriptor %s has no type", path)
	}
	if d.Properties == nil {
		d.Properties = map[string]string{}
	}
	return d, nil
}
