package transfer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/s3xfer/internal/clients"
	dserrors "github.com/systmms/s3xfer/internal/errors"
	"github.com/systmms/s3xfer/internal/eligibility"
	"github.com/systmms/s3xfer/internal/keyname"
	"github.com/systmms/s3xfer/internal/logging"
	"github.com/systmms/s3xfer/internal/tokens"
	"github.com/systmms/s3xfer/internal/vault"
	"github.com/systmms/s3xfer/pkg/credential"
	"github.com/systmms/s3xfer/pkg/location"
	"github.com/systmms/s3xfer/tests/fakes"
)

const vaultCreds = `{"accessKeyId":"ASIAVAULT","secretAccessKey":"vault-secret","sessionToken":"vault-token"}`

type build struct {
	kind  clients.Kind
	cfg   clients.ConnectionConfig
	creds credential.Material
}

type harness struct {
	s3       *fakes.FakeS3Client
	sts      *fakes.FakeSTSClient
	store    *vault.MemoryStore
	cache    *clients.Cache
	resolver *tokens.Resolver
	logs     *bytes.Buffer
	logger   *logging.Logger

	mu     sync.Mutex
	builds []build
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		s3:   fakes.NewFakeS3Client(),
		sts:  fakes.NewFakeSTSClient(),
		logs: &bytes.Buffer{},
		store: vault.NewMemoryStore(map[string]interface{}{
			"values": map[string]interface{}{"transfer-creds": vaultCreds},
		}, vault.Options{}),
	}
	h.logger = logging.NewWithWriter(h.logs, true)
	h.cache = clients.NewCache(clients.BuilderFunc(func(kind clients.Kind, cfg clients.ConnectionConfig, creds credential.Material) (any, error) {
		h.mu.Lock()
		h.builds = append(h.builds, build{kind: kind, cfg: cfg, creds: creds})
		h.mu.Unlock()
		switch kind {
		case clients.KindS3:
			return h.s3, nil
		case clients.KindSTS:
			return h.sts, nil
		}
		return nil, errors.New("unexpected kind")
	}))
	h.resolver = tokens.NewResolver(h.store, h.logger)
	return h
}

func (h *harness) buildsOf(kind clients.Kind) []build {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []build
	for _, b := range h.builds {
		if b.kind == kind {
			out = append(out, b)
		}
	}
	return out
}

func bucket(name string, props map[string]string) location.Descriptor {
	all := map[string]string{location.BucketName: name, location.Region: "eu-west-1"}
	for k, v := range props {
		all[k] = v
	}
	return location.New(location.TypeS3, all)
}

func TestSourceParts(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.s3.PageSize = 2
	h.s3.PutString("src", "data/", "")
	h.s3.PutString("src", "data/a.csv", "a")
	h.s3.PutString("src", "data/b.csv", "bb")
	h.s3.PutString("src", "data/c.csv", "ccc")
	h.s3.PutString("src", "other/d.csv", "d")

	tests := []struct {
		name    string
		props   map[string]string
		want    []string
		wantErr error
	}{
		{"single object", map[string]string{location.ObjectName: "other/d.csv"}, []string{"other/d.csv"}, nil},
		{"prefix skips folder marker", map[string]string{location.ObjectPrefix: "data/"}, []string{"data/a.csv", "data/b.csv", "data/c.csv"}, nil},
		{"prefix without slash skips folder marker", map[string]string{location.ObjectPrefix: "data"}, []string{"data/a.csv", "data/b.csv", "data/c.csv"}, nil},
		{"prefix wins over object name", map[string]string{location.ObjectPrefix: "other", location.ObjectName: "data/a.csv"}, []string{"other/d.csv"}, nil},
		{"deprecated key prefix", map[string]string{location.KeyPrefix: "other/"}, []string{"other/d.csv"}, nil},
		{"empty listing", map[string]string{location.ObjectPrefix: "missing/"}, nil, ErrNoObjects},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts, err := NewSource(h.s3, bucket("src", tt.props), h.logger).Parts(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			var names []string
			for _, p := range parts {
				names = append(names, p.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}

	assert.Contains(t, h.logs.String(), "deprecated")
}

func TestPartOpenAndSize(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.s3.PutString("src", "file.txt", "payload")
	parts, err := NewSource(h.s3, bucket("src", map[string]string{location.ObjectName: "file.txt"}), nil).Parts(context.Background())
	require.NoError(t, err)
	require.Len(t, parts, 1)

	size, err := parts[0].Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), size)

	body, err := parts[0].Open(context.Background())
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	missing := Part{Name: "nope", client: h.s3, bucket: "src"}
	_, err = missing.Open(context.Background())
	assert.Error(t, err)
}

func TestSinkMultipart(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.s3.PutString("src", "in/file.txt", "hello world!!")
	h.s3.PutString("src", "in/empty.txt", "")
	h.s3.AddBucket("dst")

	parts, err := NewSource(h.s3, bucket("src", map[string]string{location.ObjectPrefix: "in/"}), nil).Parts(context.Background())
	require.NoError(t, err)

	sink := NewSink(h.s3, bucket("dst", map[string]string{location.FolderName: "out"}), 4, h.logger)
	n, err := sink.Write(context.Background(), parts)
	require.NoError(t, err)
	assert.Equal(t, int64(13), n)

	got, ok := h.s3.Object("dst", "out/in/file.txt")
	require.True(t, ok)
	assert.Equal(t, "hello world!!", string(got))
	assert.Equal(t, []int{4, 4, 4, 1}, h.s3.Parts)

	empty, ok := h.s3.Object("dst", "out/in/empty.txt")
	require.True(t, ok)
	assert.Empty(t, empty)
	assert.Equal(t, 0, h.s3.OpenUploads())
}

func TestSinkAbortsFailedUpload(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.s3.PutString("src", "big.bin", "0123456789")
	h.s3.AddBucket("dst")
	h.s3.UploadPartFunc = func(context.Context, *s3.UploadPartInput) (*s3.UploadPartOutput, error) {
		return nil, errors.New("connection reset by peer")
	}

	parts, err := NewSource(h.s3, bucket("src", map[string]string{location.ObjectName: "big.bin"}), nil).Parts(context.Background())
	require.NoError(t, err)

	_, err = NewSink(h.s3, bucket("dst", nil), 4, h.logger).Write(context.Background(), parts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error uploading the big.bin object")
	assert.Len(t, h.s3.Aborted, 1)

	_, ok := h.s3.Object("dst", "big.bin")
	assert.False(t, ok)
}

// Not parallel: measures process-wide allocation.
func TestSinkSmallObjectsWithLargeChunkSize(t *testing.T) {
	h := newHarness(t)
	for _, key := range []string{"a", "b", "c", "d"} {
		h.s3.PutString("src", "in/"+key, key)
	}
	h.s3.AddBucket("dst")

	parts, err := NewSource(h.s3, bucket("src", map[string]string{location.ObjectPrefix: "in/"}), nil).Parts(context.Background())
	require.NoError(t, err)
	require.Len(t, parts, 4)

	sink := NewSink(h.s3, bucket("dst", nil), 500<<20, h.logger)

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	n, err := sink.Write(context.Background(), parts)
	runtime.ReadMemStats(&after)

	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, []int{1, 1, 1, 1}, h.s3.Parts)
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(16<<20),
		"writing four one-byte objects should not allocate whole chunks")
}

func TestStreamServiceCredentialSelection(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.s3.PutString("src", "report.csv", "a,b\n1,2\n")
	h.s3.AddBucket("dst")

	svc := NewStreamService(h.cache, h.resolver, Defaults{Region: "us-east-1"}, MinChunkSize, h.logger)
	dst := bucket("dst", map[string]string{location.KeyName: "transfer-creds", location.Region: "us-west-2"})
	req := Request{
		ID: "t-stream",
		Source: location.New(location.TypeS3, map[string]string{
			location.BucketName:      "src",
			location.ObjectName:      "report.csv",
			location.AccessKeyID:     "AKIAEMBEDDED",
			location.SecretAccessKey: "embedded-secret",
		}),
		Destination: &dst,
	}

	result, err := svc.Transfer(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, eligibility.Stream, result.Strategy)
	assert.Equal(t, []string{"report.csv"}, result.Objects)
	assert.Equal(t, int64(8), result.Bytes)

	builds := h.buildsOf(clients.KindS3)
	require.Len(t, builds, 2)
	assert.Equal(t, "us-east-1", builds[0].cfg.Region)
	assert.Equal(t, credential.Static{AccessKeyID: "AKIAEMBEDDED", SecretAccessKey: "embedded-secret"}, builds[0].creds)
	assert.Equal(t, "us-west-2", builds[1].cfg.Region)
	assert.Equal(t, credential.KindTemporary, builds[1].creds.Kind())
}

func TestStreamServiceDefaultChain(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.s3.PutString("src", "x", "x")
	h.s3.AddBucket("dst")

	svc := NewStreamService(h.cache, h.resolver, Defaults{Region: "us-east-1"}, 0, nil)
	dst := bucket("dst", map[string]string{location.KeyName: "not-in-vault"})
	_, err := svc.Transfer(context.Background(), Request{
		ID:          "t",
		Source:      bucket("src", map[string]string{location.ObjectName: "x"}),
		Destination: &dst,
	})
	require.NoError(t, err)

	for _, b := range h.buildsOf(clients.KindS3) {
		assert.Nil(t, b.creds)
	}
}

func TestCopyServiceValidate(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	svc := NewCopyService(h.cache, h.resolver, Defaults{Region: "us-east-1"}, h.logger)
	dst := bucket("dst", nil)

	err := svc.Validate(context.Background(), Request{ID: "t", Source: bucket("src", nil), Destination: &dst})
	assert.ErrorIs(t, err, dserrors.ErrSecretNotFound)

	other := location.New("HttpData", nil)
	err = svc.Validate(context.Background(), Request{ID: "t", Source: bucket("src", map[string]string{location.KeyName: "transfer-creds"}), Destination: &other})
	assert.ErrorContains(t, err, "not eligible")

	err = svc.Validate(context.Background(), Request{ID: "t", Source: bucket("src", map[string]string{location.KeyName: "transfer-creds"}), Destination: &dst})
	assert.NoError(t, err)
}

func TestCopyServiceTransfer(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.s3.PutString("src", "single.txt", "one")
	h.s3.PutString("src", "batch/", "")
	h.s3.PutString("src", "batch/1.txt", "1")
	h.s3.PutString("src", "batch/2.txt", "2")
	h.s3.AddBucket("dst")
	svc := NewCopyService(h.cache, h.resolver, Defaults{Region: "us-east-1"}, h.logger)

	dst := bucket("dst", map[string]string{location.ObjectName: "renamed.txt"})
	result, err := svc.Transfer(context.Background(), Request{
		ID:          "t1",
		Source:      bucket("src", map[string]string{location.KeyName: "transfer-creds", location.ObjectName: "single.txt"}),
		Destination: &dst,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"renamed.txt"}, result.Objects)
	got, _ := h.s3.Object("dst", "renamed.txt")
	assert.Equal(t, "one", string(got))

	folder := bucket("dst", map[string]string{location.FolderName: "copied/"})
	result, err = svc.Transfer(context.Background(), Request{
		ID:          "t2",
		Source:      bucket("src", map[string]string{location.KeyName: "transfer-creds", location.ObjectPrefix: "batch"}),
		Destination: &folder,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"copied/batch/1.txt", "copied/batch/2.txt"}, result.Objects)
	assert.Contains(t, h.s3.Keys("dst"), "copied/batch/2.txt")

	builds := h.buildsOf(clients.KindS3)
	require.Len(t, builds, 1, "same credential and region reuse one client")
	assert.Equal(t, "eu-west-1", builds[0].cfg.Region)
	assert.Equal(t, "ASIAVAULT", builds[0].creds.AccessKey())
}

func TestCopyServiceCopyFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.s3.AddBucket("dst")
	svc := NewCopyService(h.cache, h.resolver, Defaults{Region: "us-east-1"}, h.logger)

	dst := bucket("dst", nil)
	_, err := svc.Transfer(context.Background(), Request{
		ID:          "t",
		Source:      bucket("src", map[string]string{location.KeyName: "transfer-creds", location.ObjectName: "absent"}),
		Destination: &dst,
	})
	require.Error(t, err)
	assert.Contains(t, h.logs.String(), "exception during S3 copy operation")
}

func TestCopySource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		key  string
		want string
	}{
		{"plain", "reports/q1.csv", "src/reports/q1.csv"},
		{"space and percent", "reports/q1 100%.csv", "src/reports/q1%20100%25.csv"},
		{"already escaped text", "a%20b", "src/a%2520b"},
		{"plus and unicode", "r+d/ü.txt", "src/r%2Bd/%C3%BC.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, copySource("src", tt.key))
		})
	}
}

func TestCopyServiceKeysNeedingEscapes(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.s3.PutString("src", "reports/q1 100%.csv", "quarter")
	h.s3.PutString("src", "a b", "decoy")
	h.s3.PutString("src", "a%20b", "literal")
	h.s3.AddBucket("dst")
	svc := NewCopyService(h.cache, h.resolver, Defaults{Region: "us-east-1"}, h.logger)

	dst := bucket("dst", map[string]string{location.FolderName: "out"})
	result, err := svc.Transfer(context.Background(), Request{
		ID:          "t",
		Source:      bucket("src", map[string]string{location.KeyName: "transfer-creds", location.ObjectPrefix: "reports"}),
		Destination: &dst,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"out/reports/q1 100%.csv"}, result.Objects)
	got, ok := h.s3.Object("dst", "out/reports/q1 100%.csv")
	require.True(t, ok)
	assert.Equal(t, "quarter", string(got))

	result, err = svc.Transfer(context.Background(), Request{
		ID:          "t",
		Source:      bucket("src", map[string]string{location.KeyName: "transfer-creds", location.ObjectName: "a%20b"}),
		Destination: &dst,
	})
	require.NoError(t, err)
	got, ok = h.s3.Object("dst", result.Objects[0])
	require.True(t, ok)
	assert.Equal(t, "literal", string(got))
}

func TestCopyServicePrefixMatchingOneObject(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.s3.PutString("src", "batch/only.txt", "1")
	h.s3.AddBucket("dst")
	svc := NewCopyService(h.cache, h.resolver, Defaults{Region: "us-east-1"}, h.logger)

	dst := bucket("dst", map[string]string{location.ObjectName: "renamed.txt", location.FolderName: "copied"})
	result, err := svc.Transfer(context.Background(), Request{
		ID:          "t",
		Source:      bucket("src", map[string]string{location.KeyName: "transfer-creds", location.ObjectPrefix: "batch"}),
		Destination: &dst,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"copied/batch/only.txt"}, result.Objects)
	assert.NotContains(t, h.s3.Keys("dst"), "renamed.txt")
}

func TestIssuer(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	h.sts.Now = func() time.Time { return now }

	issuer := NewIssuer(h.cache, h.store, IssuerConfig{
		RoleArn:         "arn:aws:iam::123456789012:role/s3xfer-copy",
		SessionDuration: 15 * time.Minute,
	}, Defaults{Region: "us-east-1"}, h.logger)
	issuer.newID = func() string { return "fixed" }

	src := bucket("src", map[string]string{location.ObjectName: "a"})
	issued, err := issuer.Issue(context.Background(), Request{ID: "flow-7", Source: src})
	require.NoError(t, err)

	assert.Equal(t, "resourceDefinition-flow-7-secret-fixed", issued.KeyName)
	assert.Equal(t, issued.KeyName, issued.Source.StringProperty(location.KeyName))
	assert.Empty(t, src.StringProperty(location.KeyName), "request descriptor is not mutated")
	require.NotNil(t, issued.Expiration)
	assert.Equal(t, now.Add(15*time.Minute), *issued.Expiration)

	require.Len(t, h.sts.Calls, 1)
	call := h.sts.Calls[0]
	assert.Equal(t, "s3xfer-transfer_flow-7", aws.ToString(call.RoleSessionName))
	assert.Equal(t, int32(900), aws.ToInt32(call.DurationSeconds))

	m, err := h.resolver.Resolve(context.Background(), issued.KeyName)
	require.NoError(t, err)
	tmp, ok := m.(credential.Temporary)
	require.True(t, ok)
	assert.Equal(t, "ASIAFAKE0001", tmp.AccessKeyID)
	assert.Equal(t, "token-1", tmp.SessionToken)
	assert.Contains(t, h.logs.String(), "issued transfer credentials [REDACTED] for transfer flow-7")
	assert.NotContains(t, h.logs.String(), "ASIAFAKE0001")

	require.NoError(t, issuer.Revoke(context.Background(), issued.KeyName))
	_, err = h.resolver.Resolve(context.Background(), issued.KeyName)
	assert.ErrorIs(t, err, dserrors.ErrSecretNotFound)
}

func TestIssuerSessionName(t *testing.T) {
	t.Parallel()

	issuer := NewIssuer(nil, nil, IssuerConfig{ComponentID: "edge"}, Defaults{}, nil)
	assert.Equal(t, "edge-transfer_abc", issuer.SessionName("abc"))

	long := issuer.SessionName("0123456789012345678901234567890123456789012345678901234567890123456789")
	assert.Len(t, long, keyname.STSSessionName.Limit)

	sessionAlphabet := regexp.MustCompile(`^[\w+=,.@-]+$`)
	for _, id := range []string{"run 7", "team/run#7", "ünïcode"} {
		assert.Regexp(t, sessionAlphabet, issuer.SessionName(id), "id %q", id)
	}
	spaced := issuer.SessionName("run 7")
	assert.True(t, strings.HasPrefix(spaced, "edge-transfer_run-7_"), spaced)
	assert.NotEqual(t, issuer.SessionName("a b"), issuer.SessionName("a/b"))
}

func TestIssuerSessionNameReachesAssumeRole(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	issuer := NewIssuer(h.cache, h.store, IssuerConfig{RoleArn: "arn:aws:iam::123456789012:role/transfer", ComponentID: "edge"}, Defaults{Region: "us-east-1"}, h.logger)

	dst := bucket("dst", nil)
	_, err := issuer.Issue(context.Background(), Request{ID: "nightly run/7", Source: bucket("src", nil), Destination: &dst})
	require.NoError(t, err)
	require.Len(t, h.sts.Calls, 1)
	assert.Regexp(t, `^[\w+=,.@-]+$`, aws.ToString(h.sts.Calls[0].RoleSessionName))
}

func TestIssuerRequiresRole(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	issuer := NewIssuer(h.cache, h.store, IssuerConfig{}, Defaults{Region: "us-east-1"}, nil)

	_, err := issuer.Issue(context.Background(), Request{ID: "t", Source: bucket("src", nil)})
	assert.ErrorIs(t, err, dserrors.ErrConfiguration)
	assert.Empty(t, h.sts.Calls)
}

func TestServiceExecute(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.s3.PutString("src", "a.txt", "aaa")
	h.s3.AddBucket("dst")

	issuer := NewIssuer(h.cache, h.store, IssuerConfig{RoleArn: "arn:aws:iam::123456789012:role/copy"}, Defaults{Region: "us-east-1"}, h.logger)
	svc := NewService(
		Planner{},
		NewCopyService(h.cache, h.resolver, Defaults{Region: "us-east-1"}, h.logger),
		NewStreamService(h.cache, h.resolver, Defaults{Region: "us-east-1"}, MinChunkSize, h.logger),
		issuer,
		h.logger,
	)

	t.Run("direct copy issues and revokes credentials", func(t *testing.T) {
		dst := bucket("dst", map[string]string{location.FolderName: "copy"})
		result, err := svc.Execute(context.Background(), Request{
			ID:          "direct",
			Source:      bucket("src", map[string]string{location.ObjectName: "a.txt"}),
			Destination: &dst,
		})
		require.NoError(t, err)
		assert.Equal(t, eligibility.DirectCopy, result.Strategy)
		assert.Equal(t, []string{"copy/a.txt"}, result.Objects)
		assert.Len(t, h.sts.Calls, 1)
		assert.Equal(t, []string{"transfer-creds"}, h.store.Keys(), "issued credentials are revoked")
	})

	t.Run("differing endpoints stream", func(t *testing.T) {
		dst := bucket("dst", map[string]string{location.EndpointOverride: "http://minio:9000"})
		result, err := svc.Execute(context.Background(), Request{
			ID:          "streamed",
			Source:      bucket("src", map[string]string{location.ObjectName: "a.txt"}),
			Destination: &dst,
		})
		require.NoError(t, err)
		assert.Equal(t, eligibility.Stream, result.Strategy)
		got, _ := h.s3.Object("dst", "a.txt")
		assert.Equal(t, "aaa", string(got))
	})

	t.Run("failure is reported", func(t *testing.T) {
		_, err := svc.Execute(context.Background(), Request{ID: "broken", Source: bucket("src", nil)})
		assert.Error(t, err)
	})
}

func TestPlannerForceStream(t *testing.T) {
	t.Parallel()

	dst := bucket("dst", nil)
	req := Request{ID: "t", Source: bucket("src", nil), Destination: &dst}
	assert.Equal(t, eligibility.DirectCopy, Planner{}.Plan(req))
	assert.Equal(t, eligibility.Stream, Planner{ForceStream: true}.Plan(req))
}
