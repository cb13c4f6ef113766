package transfer

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/systmms/s3xfer/internal/clients"
	"github.com/systmms/s3xfer/internal/eligibility"
	"github.com/systmms/s3xfer/internal/logging"
	"github.com/systmms/s3xfer/internal/tokens"
	"github.com/systmms/s3xfer/pkg/credential"
	"github.com/systmms/s3xfer/pkg/location"
	"golang.org/x/sync/errgroup"
)

// DefaultCopyConcurrency bounds in-flight CopyObject calls per transfer.
const DefaultCopyConcurrency = 8

// CopyService copies objects server-side with credentials resolved for the
// source location.
type CopyService struct {
	clients     *clients.Cache
	resolver    *tokens.Resolver
	defaults    Defaults
	concurrency int
	logger      *logging.Logger
}

// NewCopyService creates a direct-copy transfer service.
func NewCopyService(cache *clients.Cache, resolver *tokens.Resolver, defaults Defaults, logger *logging.Logger) *CopyService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &CopyService{
		clients:     cache,
		resolver:    resolver,
		defaults:    defaults,
		concurrency: DefaultCopyConcurrency,
		logger:      logger,
	}
}

// Validate checks that req can be copied: both ends are object storage and
// the source keyName resolves to a credential.
func (c *CopyService) Validate(ctx context.Context, req Request) error {
	_, err := c.check(ctx, req)
	return err
}

func (c *CopyService) check(ctx context.Context, req Request) (credential.Material, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !eligibility.IsDirectCopyEligible(req.Source, req.Destination) {
		return nil, fmt.Errorf("transfer %s is not eligible for direct copy", req.ID)
	}
	keyName := req.Source.StringProperty(location.KeyName)
	creds, err := c.resolver.Resolve(ctx, keyName)
	if err != nil {
		return nil, fmt.Errorf("no credential found in vault for keyName %q: %w", keyName, err)
	}
	return creds, nil
}

// Transfer copies the source object, or every object under the source
// prefix, into the destination bucket.
func (c *CopyService) Transfer(ctx context.Context, req Request) (Result, error) {
	result := Result{Strategy: eligibility.DirectCopy}
	creds, err := c.check(ctx, req)
	if err != nil {
		return result, err
	}
	client, err := c.clients.S3WithCredentials(c.defaults.connection(req.Source), creds)
	if err != nil {
		return result, err
	}

	srcBucket := req.Source.StringProperty(location.BucketName)
	dstBucket := req.Destination.StringProperty(location.BucketName)

	keys, single, err := c.sourceKeys(ctx, client, req.Source)
	if err != nil {
		return result, err
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for _, key := range keys {
		dstKey := c.destinationKey(key, *req.Destination, single)
		g.Go(func() error {
			_, err := client.CopyObject(gctx, &s3.CopyObjectInput{
				Bucket:     aws.String(dstBucket),
				Key:        aws.String(dstKey),
				CopySource: aws.String(copySource(srcBucket, key)),
			})
			if err != nil {
				c.logger.Error("exception during S3 copy operation: %v", err)
				return fmt.Errorf("failed to copy %s/%s to %s/%s: %w", srcBucket, key, dstBucket, dstKey, err)
			}
			c.logger.Info("successfully copied S3 object %s/%s to %s/%s", srcBucket, key, dstBucket, dstKey)

			mu.Lock()
			result.Objects = append(result.Objects, dstKey)
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()
	sort.Strings(result.Objects)
	return result, err
}

// sourceKeys lists the keys to copy. single reports a source addressed by
// objectName rather than by prefix.
func (c *CopyService) sourceKeys(ctx context.Context, client clients.S3API, src location.Descriptor) (keys []string, single bool, err error) {
	prefix, deprecated := src.ObjectPrefix()
	if deprecated {
		c.logger.Warn("the %q property is deprecated, use %q to define the object prefix", location.KeyPrefix, location.ObjectPrefix)
	}
	if prefix == "" {
		name := src.StringProperty(location.ObjectName)
		if name == "" {
			return nil, false, fmt.Errorf("source has neither objectName nor objectPrefix")
		}
		return []string{name}, true, nil
	}

	keys, err = listKeys(ctx, client, src.StringProperty(location.BucketName), prefix)
	if err != nil {
		return nil, false, err
	}
	if len(keys) == 0 {
		return nil, false, ErrNoObjects
	}
	return keys, false, nil
}

// destinationKey uses the destination objectName for a source named by
// objectName and the folder join rule for prefix listings.
func (c *CopyService) destinationKey(key string, dst location.Descriptor, single bool) string {
	if single {
		if name, ok := dst.OptionalProperty(location.ObjectName); ok {
			return name
		}
	}
	return location.DestinationObjectName(key, dst.StringProperty(location.FolderName))
}

// copySource builds the URL-encoded bucket/key value CopyObject expects.
// Slashes separating key segments stay literal; S3 decodes '+' as a space.
func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = strings.ReplaceAll(url.PathEscape(seg), "+", "%2B")
	}
	return bucket + "/" + strings.Join(segments, "/")
}
