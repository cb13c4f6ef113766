package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/systmms/s3xfer/internal/clients"
	"github.com/systmms/s3xfer/internal/logging"
	"github.com/systmms/s3xfer/pkg/location"
)

// Source reads objects from a bucket, either a single object or every
// object under a prefix.
type Source struct {
	client     clients.S3API
	bucket     string
	objectName string
	prefix     string
	hasPrefix  bool
	logger     *logging.Logger
}

// NewSource creates a source for desc reading through client. The
// deprecated keyPrefix property is honoured with a warning.
func NewSource(client clients.S3API, desc location.Descriptor, logger *logging.Logger) *Source {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Source{
		client:     client,
		bucket:     desc.StringProperty(location.BucketName),
		objectName: desc.StringProperty(location.ObjectName),
		logger:     logger,
	}

	prefix, deprecated := desc.ObjectPrefix()
	if deprecated {
		logger.Warn("the %q property is deprecated, use %q to define the object prefix", location.KeyPrefix, location.ObjectPrefix)
	}
	if prefix != "" {
		s.prefix, s.hasPrefix = prefix, true
	}
	return s
}

// Part is one object of a source.
type Part struct {
	Name string

	client clients.S3API
	bucket string
}

// Open starts reading the object. The caller closes the body.
func (p Part) Open(ctx context.Context) (io.ReadCloser, error) {
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.Name),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open object %s/%s: %w", p.bucket, p.Name, err)
	}
	return out.Body, nil
}

// Size returns the object's content length.
func (p Part) Size(ctx context.Context) (int64, error) {
	out, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.Name),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to stat object %s/%s: %w", p.bucket, p.Name, err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

// Parts lists the objects to transfer. A prefix that matches nothing
// returns ErrNoObjects.
func (s *Source) Parts(ctx context.Context) ([]Part, error) {
	if !s.hasPrefix {
		if s.objectName == "" {
			return nil, errors.New("source has neither objectName nor objectPrefix")
		}
		return []Part{s.part(s.objectName)}, nil
	}

	keys, err := listKeys(ctx, s.client, s.bucket, s.prefix)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, ErrNoObjects
	}

	parts := make([]Part, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, s.part(k))
	}
	s.logger.Debug("listed %d objects under %s/%s", len(parts), s.bucket, s.prefix)
	return parts, nil
}

func (s *Source) part(name string) Part {
	return Part{Name: name, client: s.client, bucket: s.bucket}
}

// listKeys pages through every object under prefix, dropping the folder
// marker object for the prefix itself.
func listKeys(ctx context.Context, client clients.S3API, bucket, prefix string) ([]string, error) {
	folder := prefix
	if !strings.HasSuffix(folder, "/") {
		folder += "/"
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects in %s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.EqualFold(key, folder) {
				continue
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}
