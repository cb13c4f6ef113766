package commands

import (
	"time"

	"github.com/systmms/s3xfer/internal/clients"
	"github.com/systmms/s3xfer/internal/config"
	"github.com/systmms/s3xfer/internal/logging"
	"github.com/systmms/s3xfer/internal/tokens"
	"github.com/systmms/s3xfer/internal/transfer"
	"github.com/systmms/s3xfer/internal/vault"
	"github.com/systmms/s3xfer/pkg/secretstore"
)

// newBuilder constructs the client builder for a configuration. Tests
// replace it with one returning fakes.
var newBuilder = func(def *config.Definition) clients.Builder {
	var opts []clients.BuilderOption
	if def.AWS.Profile != "" {
		opts = append(opts, clients.WithProfile(def.AWS.Profile))
	}
	if def.AWS.EndpointOverride != "" {
		opts = append(opts, clients.WithDefaultEndpoint(def.AWS.EndpointOverride))
	}
	return clients.NewAWSBuilder(opts...)
}

// runtime is everything a command needs after the configuration is loaded.
type runtime struct {
	def      *config.Definition
	logger   *logging.Logger
	clients  *clients.Cache
	store    secretstore.SecretStore
	resolver *tokens.Resolver
}

func newRuntime(cfg *config.Config) (*runtime, error) {
	if cfg.Definition == nil {
		if err := cfg.Load(); err != nil {
			return nil, err
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	def := cfg.Definition

	cache := clients.NewCache(newBuilder(def), clients.WithLogger(logger))
	store, err := vault.NewRegistry().Create(def.Vault.Type, def.VaultSettings(), vault.Options{
		Logger:  logger,
		Clients: cache,
	})
	if err != nil {
		return nil, err
	}

	return &runtime{
		def:      def,
		logger:   logger,
		clients:  cache,
		store:    store,
		resolver: tokens.NewResolver(store, logger),
	}, nil
}

func (r *runtime) defaults() transfer.Defaults {
	region := r.def.AWS.Region
	if region == "" {
		region = vault.DefaultRegion
	}
	return transfer.Defaults{Region: region, EndpointOverride: r.def.AWS.EndpointOverride}
}

// transferService wires both strategies. Without a role there is nothing to
// issue direct-copy credentials with, so copies need a keyName on the source.
func (r *runtime) transferService(forceStream bool) *transfer.Service {
	defaults := r.defaults()

	var issuer *transfer.Issuer
	if r.def.Transfer.RoleArn != "" {
		issuer = transfer.NewIssuer(r.clients, r.store, transfer.IssuerConfig{
			RoleArn:         r.def.Transfer.RoleArn,
			SessionDuration: time.Duration(r.def.Transfer.RoleSessionDuration) * time.Second,
			ComponentID:     r.def.Transfer.ComponentID,
		}, defaults, r.logger)
	}

	return transfer.NewService(
		transfer.Planner{ForceStream: forceStream},
		transfer.NewCopyService(r.clients, r.resolver, defaults, r.logger),
		transfer.NewStreamService(r.clients, r.resolver, defaults, int(r.def.ChunkSizeBytes()), r.logger),
		issuer,
		r.logger,
	)
}

func (r *runtime) close() {
	r.clients.Shutdown()
}
