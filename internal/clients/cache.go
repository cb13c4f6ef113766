package clients

import (
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	dserrors "github.com/systmms/s3xfer/internal/errors"
	"github.com/systmms/s3xfer/internal/logging"
	"github.com/systmms/s3xfer/internal/metrics"
	"github.com/systmms/s3xfer/pkg/credential"
	"golang.org/x/sync/singleflight"
)

// DefaultScopedSize bounds the number of credential-scoped clients kept.
const DefaultScopedSize = 128

type cacheKey struct {
	kind Kind
	cfg  ConnectionConfig
}

func (k cacheKey) String() string {
	return string(k.kind) + "\x00" + k.cfg.Region + "\x00" + k.cfg.EndpointOverride
}

type scopedKey struct {
	cacheKey
	fingerprint string
}

func (k scopedKey) String() string {
	return k.cacheKey.String() + "\x00" + k.fingerprint
}

// Cache hands out one client per (Kind, ConnectionConfig). Shared clients are
// never evicted. Lookups take a read lock; construction of a missing key is
// deduplicated per key, so builds for unrelated keys run concurrently.
type Cache struct {
	builder Builder
	logger  *logging.Logger

	mu      sync.RWMutex
	clients map[cacheKey]any

	scoped *lru.Cache[scopedKey, any]
	group  singleflight.Group
}

// Option configures a Cache.
type Option func(*cacheOptions)

type cacheOptions struct {
	logger     *logging.Logger
	scopedSize int
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(o *cacheOptions) {
		o.logger = logger
	}
}

// WithScopedSize bounds the credential-scoped cache.
func WithScopedSize(n int) Option {
	return func(o *cacheOptions) {
		o.scopedSize = n
	}
}

// NewCache creates a cache that constructs clients with builder.
func NewCache(builder Builder, opts ...Option) *Cache {
	o := cacheOptions{scopedSize: DefaultScopedSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	if o.scopedSize <= 0 {
		o.scopedSize = DefaultScopedSize
	}

	scoped, err := lru.New[scopedKey, any](o.scopedSize)
	if err != nil {
		// only fails for non-positive sizes
		panic(err)
	}

	return &Cache{
		builder: builder,
		logger:  o.logger,
		clients: make(map[cacheKey]any),
		scoped:  scoped,
	}
}

// Client returns the shared client for kind and cfg, building it on first
// use. Equal inputs always yield the identical instance. The only error is a
// ConfigurationError.
func (c *Cache) Client(kind Kind, cfg ConnectionConfig) (any, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	key := cacheKey{kind: kind, cfg: cfg}

	c.mu.RLock()
	client, ok := c.clients[key]
	c.mu.RUnlock()
	metrics.RecordCacheLookup(string(kind), ok)
	if ok {
		return client, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		c.mu.RLock()
		existing, ok := c.clients[key]
		c.mu.RUnlock()
		if ok {
			return existing, nil
		}

		built, err := c.build(kind, cfg, nil)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.clients[key] = built
		c.mu.Unlock()

		metrics.RecordClientConstruction(string(kind), "shared")
		c.logger.Debug("built %s client for %s", kind, cfg)
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ClientWithCredentials returns a client that authenticates with creds.
// Instances are keyed by the credential fingerprint and kept in a bounded
// LRU, so a rotated credential gets a fresh client.
func (c *Cache) ClientWithCredentials(kind Kind, cfg ConnectionConfig, creds credential.Material) (any, error) {
	if creds == nil {
		return c.Client(kind, cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	key := scopedKey{cacheKey: cacheKey{kind: kind, cfg: cfg}, fingerprint: credential.Fingerprint(creds)}

	if client, ok := c.scoped.Get(key); ok {
		metrics.RecordCacheLookup(string(kind), true)
		return client, nil
	}
	metrics.RecordCacheLookup(string(kind), false)

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		if existing, ok := c.scoped.Get(key); ok {
			return existing, nil
		}

		built, err := c.build(kind, cfg, creds)
		if err != nil {
			return nil, err
		}
		c.scoped.Add(key, built)

		metrics.RecordClientConstruction(string(kind), "credential")
		c.logger.Debug("built %s client for %s with access key %s", kind, cfg, creds.AccessKey())
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (c *Cache) build(kind Kind, cfg ConnectionConfig, creds credential.Material) (any, error) {
	client, err := c.builder.Build(kind, cfg, creds)
	if err != nil {
		if errors.Is(err, dserrors.ErrConfiguration) {
			return nil, err
		}
		return nil, &dserrors.ConfigurationError{Field: "client", Value: string(kind), Err: err}
	}
	if client == nil {
		return nil, &dserrors.ConfigurationError{Field: "client", Value: string(kind), Message: "builder returned no client"}
	}
	return client, nil
}

// S3 returns the shared S3 client for cfg.
func (c *Cache) S3(cfg ConnectionConfig) (S3API, error) {
	return typed[S3API](c.Client(KindS3, cfg))
}

// S3WithCredentials returns an S3 client authenticating with creds.
func (c *Cache) S3WithCredentials(cfg ConnectionConfig, creds credential.Material) (S3API, error) {
	return typed[S3API](c.ClientWithCredentials(KindS3, cfg, creds))
}

// STS returns the shared STS client for cfg.
func (c *Cache) STS(cfg ConnectionConfig) (STSAPI, error) {
	return typed[STSAPI](c.Client(KindSTS, cfg))
}

// SecretsManager returns the shared Secrets Manager client for cfg.
func (c *Cache) SecretsManager(cfg ConnectionConfig) (SecretsManagerAPI, error) {
	return typed[SecretsManagerAPI](c.Client(KindSecretsManager, cfg))
}

// SSM returns the shared SSM client for cfg.
func (c *Cache) SSM(cfg ConnectionConfig) (SSMAPI, error) {
	return typed[SSMAPI](c.Client(KindSSM, cfg))
}

func typed[T any](client any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	t, ok := client.(T)
	if !ok {
		return zero, fmt.Errorf("cached client %T does not implement %T", client, (*T)(nil))
	}
	return t, nil
}

// Len returns the number of shared and credential-scoped clients held.
func (c *Cache) Len() int {
	c.mu.RLock()
	n := len(c.clients)
	c.mu.RUnlock()
	return n + c.scoped.Len()
}

// Shutdown drops every cached client. Later calls rebuild lazily.
func (c *Cache) Shutdown() {
	c.mu.Lock()
	n := len(c.clients)
	c.clients = make(map[cacheKey]any)
	c.mu.Unlock()

	n += c.scoped.Len()
	c.scoped.Purge()

	c.logger.Debug("client cache shut down, released %d clients", n)
}
