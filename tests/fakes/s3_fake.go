package fakes

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	ststypes "github.com/aws/aws-sdk-go-v2/service/sts/types"
)

// FakeS3Client is an in-memory S3 with pagination and multipart support
type FakeS3Client struct {
	mu sync.Mutex

	// Buckets maps bucket name to key to object data
	Buckets map[string]map[string][]byte
	// PageSize caps ListObjectsV2 pages; 0 means 1000
	PageSize int
	// Errors maps "bucket/key" or "bucket" to errors to return
	Errors map[string]error

	// Copies records CopySource -> destination for each CopyObject call
	Copies []string
	// Aborted records aborted multipart upload IDs
	Aborted []string
	// Parts records the size of every uploaded part
	Parts []int

	uploads map[string]*multipartUpload
	nextID  int

	// CopyObjectFunc allows custom behavior for CopyObject
	CopyObjectFunc func(ctx context.Context, params *s3.CopyObjectInput) (*s3.CopyObjectOutput, error)
	// UploadPartFunc allows custom behavior for UploadPart
	UploadPartFunc func(ctx context.Context, params *s3.UploadPartInput) (*s3.UploadPartOutput, error)
}

type multipartUpload struct {
	bucket string
	key    string
	parts  map[int32][]byte
}

// NewFakeS3Client creates an empty fake
func NewFakeS3Client() *FakeS3Client {
	return &FakeS3Client{
		Buckets: make(map[string]map[string][]byte),
		Errors:  make(map[string]error),
		uploads: make(map[string]*multipartUpload),
	}
}

// AddBucket creates an empty bucket
func (f *FakeS3Client) AddBucket(bucket string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Buckets[bucket] == nil {
		f.Buckets[bucket] = make(map[string][]byte)
	}
}

// PutString stores an object, creating the bucket if needed
func (f *FakeS3Client) PutString(bucket, key, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Buckets[bucket] == nil {
		f.Buckets[bucket] = make(map[string][]byte)
	}
	f.Buckets[bucket][key] = []byte(body)
}

// Object returns the stored object
func (f *FakeS3Client) Object(bucket, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.Buckets[bucket][key]
	return b, ok
}

// Keys returns the sorted keys of bucket
func (f *FakeS3Client) Keys(bucket string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return sortedKeys(f.Buckets[bucket], "")
}

// OpenUploads returns the number of multipart uploads neither completed nor aborted
func (f *FakeS3Client) OpenUploads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

func sortedKeys(objects map[string][]byte, prefix string) []string {
	keys := make([]string, 0, len(objects))
	for k := range objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (f *FakeS3Client) injected(bucket, key string) error {
	if err, ok := f.Errors[bucket+"/"+key]; ok {
		return err
	}
	if err, ok := f.Errors[bucket]; ok {
		return err
	}
	return nil
}

func (f *FakeS3Client) bucket(name string) (map[string][]byte, error) {
	b, ok := f.Buckets[name]
	if !ok {
		return nil, &s3types.NoSuchBucket{Message: aws.String("The specified bucket does not exist")}
	}
	return b, nil
}

// HeadObject mocks the HeadObject operation
func (f *FakeS3Client) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, key := aws.ToString(params.Bucket), aws.ToString(params.Key)
	if err := f.injected(bucket, key); err != nil {
		return nil, err
	}
	objects, err := f.bucket(bucket)
	if err != nil {
		return nil, err
	}
	data, ok := objects[key]
	if !ok {
		return nil, &s3types.NotFound{Message: aws.String("Not Found")}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

// GetObject mocks the GetObject operation
func (f *FakeS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, key := aws.ToString(params.Bucket), aws.ToString(params.Key)
	if err := f.injected(bucket, key); err != nil {
		return nil, err
	}
	objects, err := f.bucket(bucket)
	if err != nil {
		return nil, err
	}
	data, ok := objects[key]
	if !ok {
		return nil, &s3types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(append([]byte(nil), data...))),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

// ListObjectsV2 mocks the ListObjectsV2 operation. Continuation tokens are
// the last key of the previous page.
func (f *FakeS3Client) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket := aws.ToString(params.Bucket)
	if err := f.injected(bucket, ""); err != nil {
		return nil, err
	}
	objects, err := f.bucket(bucket)
	if err != nil {
		return nil, err
	}

	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	if params.MaxKeys != nil && int(*params.MaxKeys) < pageSize && *params.MaxKeys > 0 {
		pageSize = int(*params.MaxKeys)
	}

	keys := sortedKeys(objects, aws.ToString(params.Prefix))
	if token := aws.ToString(params.ContinuationToken); token != "" {
		idx := sort.SearchStrings(keys, token)
		if idx < len(keys) && keys[idx] == token {
			idx++
		}
		keys = keys[idx:]
	}

	truncated := len(keys) > pageSize
	if truncated {
		keys = keys[:pageSize]
	}

	out := &s3.ListObjectsV2Output{
		Name:        aws.String(bucket),
		Prefix:      params.Prefix,
		KeyCount:    aws.Int32(int32(len(keys))),
		IsTruncated: aws.Bool(truncated),
	}
	for _, k := range keys {
		out.Contents = append(out.Contents, s3types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(objects[k]))),
			LastModified: aws.Time(time.Unix(0, 0)),
		})
	}
	if truncated {
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}
	return out, nil
}

// CopyObject mocks the CopyObject operation
func (f *FakeS3Client) CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	if f.CopyObjectFunc != nil {
		return f.CopyObjectFunc(ctx, params)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	source, err := url.PathUnescape(aws.ToString(params.CopySource))
	if err != nil {
		return nil, fmt.Errorf("invalid copy source: %w", err)
	}
	srcBucket, srcKey, _ := strings.Cut(source, "/")
	dstBucket, dstKey := aws.ToString(params.Bucket), aws.ToString(params.Key)

	if err := f.injected(srcBucket, srcKey); err != nil {
		return nil, err
	}
	if err := f.injected(dstBucket, dstKey); err != nil {
		return nil, err
	}
	srcObjects, err := f.bucket(srcBucket)
	if err != nil {
		return nil, err
	}
	data, ok := srcObjects[srcKey]
	if !ok {
		return nil, &s3types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	dstObjects, err := f.bucket(dstBucket)
	if err != nil {
		return nil, err
	}

	dstObjects[dstKey] = append([]byte(nil), data...)
	f.Copies = append(f.Copies, source+" -> "+dstBucket+"/"+dstKey)
	return &s3.CopyObjectOutput{}, nil
}

// PutObject mocks the PutObject operation
func (f *FakeS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	var data []byte
	if params.Body != nil {
		var err error
		if data, err = io.ReadAll(params.Body); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, key := aws.ToString(params.Bucket), aws.ToString(params.Key)
	if err := f.injected(bucket, key); err != nil {
		return nil, err
	}
	objects, err := f.bucket(bucket)
	if err != nil {
		return nil, err
	}
	objects[key] = data
	return &s3.PutObjectOutput{}, nil
}

// CreateMultipartUpload mocks the CreateMultipartUpload operation
func (f *FakeS3Client) CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, key := aws.ToString(params.Bucket), aws.ToString(params.Key)
	if err := f.injected(bucket, key); err != nil {
		return nil, err
	}
	if _, err := f.bucket(bucket); err != nil {
		return nil, err
	}

	f.nextID++
	id := fmt.Sprintf("upload-%d", f.nextID)
	f.uploads[id] = &multipartUpload{bucket: bucket, key: key, parts: make(map[int32][]byte)}
	return &s3.CreateMultipartUploadOutput{
		Bucket:   params.Bucket,
		Key:      params.Key,
		UploadId: aws.String(id),
	}, nil
}

// UploadPart mocks the UploadPart operation
func (f *FakeS3Client) UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	if f.UploadPartFunc != nil {
		return f.UploadPartFunc(ctx, params)
	}

	var data []byte
	if params.Body != nil {
		var err error
		if data, err = io.ReadAll(params.Body); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	upload, ok := f.uploads[aws.ToString(params.UploadId)]
	if !ok {
		return nil, &s3types.NoSuchUpload{Message: aws.String("The specified upload does not exist.")}
	}
	part := aws.ToInt32(params.PartNumber)
	upload.parts[part] = data
	f.Parts = append(f.Parts, len(data))
	return &s3.UploadPartOutput{ETag: aws.String(fmt.Sprintf("\"etag-%d\"", part))}, nil
}

// CompleteMultipartUpload mocks the CompleteMultipartUpload operation
func (f *FakeS3Client) CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := aws.ToString(params.UploadId)
	upload, ok := f.uploads[id]
	if !ok {
		return nil, &s3types.NoSuchUpload{Message: aws.String("The specified upload does not exist.")}
	}

	var buf bytes.Buffer
	if params.MultipartUpload != nil {
		for _, p := range params.MultipartUpload.Parts {
			data, ok := upload.parts[aws.ToInt32(p.PartNumber)]
			if !ok {
				return nil, fmt.Errorf("InvalidPart: part %d was not uploaded", aws.ToInt32(p.PartNumber))
			}
			buf.Write(data)
		}
	}

	f.Buckets[upload.bucket][upload.key] = buf.Bytes()
	delete(f.uploads, id)
	return &s3.CompleteMultipartUploadOutput{Bucket: aws.String(upload.bucket), Key: aws.String(upload.key)}, nil
}

// AbortMultipartUpload mocks the AbortMultipartUpload operation
func (f *FakeS3Client) AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := aws.ToString(params.UploadId)
	delete(f.uploads, id)
	f.Aborted = append(f.Aborted, id)
	return &s3.AbortMultipartUploadOutput{}, nil
}

// FakeSTSClient is a fake STS that issues deterministic session credentials
type FakeSTSClient struct {
	mu sync.Mutex

	// Err, when set, is returned by AssumeRole
	Err error
	// Calls records every AssumeRole input
	Calls []sts.AssumeRoleInput

	// Now is the clock used for expirations; time.Now when nil
	Now func() time.Time
}

// NewFakeSTSClient creates a fake STS client
func NewFakeSTSClient() *FakeSTSClient {
	return &FakeSTSClient{}
}

// AssumeRole mocks the AssumeRole operation
func (f *FakeSTSClient) AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, *params)
	if f.Err != nil {
		return nil, f.Err
	}

	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	duration := time.Hour
	if params.DurationSeconds != nil {
		duration = time.Duration(*params.DurationSeconds) * time.Second
	}

	n := len(f.Calls)
	return &sts.AssumeRoleOutput{
		Credentials: &ststypes.Credentials{
			AccessKeyId:     aws.String(fmt.Sprintf("ASIAFAKE%04d", n)),
			SecretAccessKey: aws.String(fmt.Sprintf("secret-%d", n)),
			SessionToken:    aws.String(fmt.Sprintf("token-%d", n)),
			Expiration:      aws.Time(now().Add(duration).UTC()),
		},
		AssumedRoleUser: &ststypes.AssumedRoleUser{
			Arn:           aws.String(aws.ToString(params.RoleArn) + "/" + aws.ToString(params.RoleSessionName)),
			AssumedRoleId: aws.String(fmt.Sprintf("AROAFAKE:%s", aws.ToString(params.RoleSessionName))),
		},
	}, nil
}
