package transfer

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/systmms/s3xfer/internal/clients"
	"github.com/systmms/s3xfer/internal/logging"
	"github.com/systmms/s3xfer/pkg/location"
)

// MinChunkSize is the smallest part S3 accepts for all but the last part.
const MinChunkSize = 5 * 1024 * 1024

// Sink writes parts into a bucket with one multipart upload per part.
type Sink struct {
	client    clients.S3API
	bucket    string
	folder    string
	chunkSize int
	logger    *logging.Logger
}

// NewSink creates a sink for desc writing through client.
func NewSink(client clients.S3API, desc location.Descriptor, chunkSize int, logger *logging.Logger) *Sink {
	if logger == nil {
		logger = logging.NewNop()
	}
	if chunkSize <= 0 {
		chunkSize = MinChunkSize
	}
	return &Sink{
		client:    client,
		bucket:    desc.StringProperty(location.BucketName),
		folder:    desc.StringProperty(location.FolderName),
		chunkSize: chunkSize,
		logger:    logger,
	}
}

// ObjectName returns the destination key for a source object.
func (s *Sink) ObjectName(partName string) string {
	return location.DestinationObjectName(partName, s.folder)
}

// Write copies every part into the bucket in order and returns the number
// of bytes written. It stops at the first failure.
func (s *Sink) Write(ctx context.Context, parts []Part) (int64, error) {
	var total int64
	for _, part := range parts {
		n, err := s.writePart(ctx, part)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *Sink) writePart(ctx context.Context, part Part) (int64, error) {
	key := s.ObjectName(part.Name)

	body, err := part.Open(ctx)
	if err != nil {
		s.logger.Error("error downloading the %s object: %v", key, err)
		return 0, fmt.Errorf("error downloading the %s object: %w", key, err)
	}
	defer body.Close()

	n, err := s.upload(ctx, key, body)
	if err != nil {
		s.logger.Error("error uploading the %s object: %v", key, err)
		return n, fmt.Errorf("error uploading the %s object: %w", key, err)
	}
	s.logger.Debug("uploaded %s/%s (%d bytes)", s.bucket, key, n)
	return n, nil
}

func (s *Sink) upload(ctx context.Context, key string, body io.Reader) (int64, error) {
	// The buffer grows to the bytes actually read, never past chunkSize.
	var buf bytes.Buffer

	n, err := s.readChunk(body, &buf)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		// multipart uploads need at least one part
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(nil),
		})
		return 0, err
	}

	created, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, err
	}
	uploadID := created.UploadId

	var (
		completed []s3types.CompletedPart
		total     int64
	)
	for partNumber := int32(1); n > 0; partNumber++ {
		out, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:     aws.String(s.bucket),
			Key:        aws.String(key),
			UploadId:   uploadID,
			PartNumber: aws.Int32(partNumber),
			Body:       bytes.NewReader(buf.Bytes()),
		})
		if err != nil {
			s.abort(key, uploadID)
			return total, err
		}
		completed = append(completed, s3types.CompletedPart{ETag: out.ETag, PartNumber: aws.Int32(partNumber)})
		total += n

		n, err = s.readChunk(body, &buf)
		if err != nil {
			s.abort(key, uploadID)
			return total, err
		}
	}

	_, err = s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(key),
		UploadId:        uploadID,
		MultipartUpload: &s3types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		s.abort(key, uploadID)
		return total, err
	}
	return total, nil
}

// readChunk replaces the contents of buf with up to chunkSize bytes of body.
func (s *Sink) readChunk(body io.Reader, buf *bytes.Buffer) (int64, error) {
	buf.Reset()
	return buf.ReadFrom(io.LimitReader(body, int64(s.chunkSize)))
}

// abort runs on a fresh context so a cancelled transfer still cleans up.
func (s *Sink) abort(key string, uploadID *string) {
	_, err := s.client.AbortMultipartUpload(context.Background(), &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: uploadID,
	})
	if err != nil {
		s.logger.Warn("failed to abort multipart upload %s for %s: %v", aws.ToString(uploadID), key, err)
	}
}
