package transfer

import (
	"context"
	"fmt"

	"github.com/systmms/s3xfer/internal/clients"
	"github.com/systmms/s3xfer/internal/eligibility"
	"github.com/systmms/s3xfer/internal/logging"
	"github.com/systmms/s3xfer/internal/tokens"
)

// StreamService reads source objects and writes them to the destination
// through this process.
type StreamService struct {
	clients   *clients.Cache
	resolver  *tokens.Resolver
	defaults  Defaults
	chunkSize int
	logger    *logging.Logger
}

// NewStreamService creates a streaming transfer service.
func NewStreamService(cache *clients.Cache, resolver *tokens.Resolver, defaults Defaults, chunkSize int, logger *logging.Logger) *StreamService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamService{
		clients:   cache,
		resolver:  resolver,
		defaults:  defaults,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

// Transfer streams every source part into the destination.
func (s *StreamService) Transfer(ctx context.Context, req Request) (Result, error) {
	result := Result{Strategy: eligibility.Stream}
	if err := req.Validate(); err != nil {
		return result, err
	}
	if !req.Source.IsS3() || !req.Destination.IsS3() {
		return result, fmt.Errorf("stream transfer supports only %s locations, got %s -> %s", "AmazonS3", req.Source.Type, req.Destination.Type)
	}

	srcClient, err := s.client(ctx, "source", req)
	if err != nil {
		return result, err
	}
	dstClient, err := s.client(ctx, "destination", req)
	if err != nil {
		return result, err
	}

	parts, err := NewSource(srcClient, req.Source, s.logger).Parts(ctx)
	if err != nil {
		return result, err
	}

	sink := NewSink(dstClient, *req.Destination, s.chunkSize, s.logger)
	result.Bytes, err = sink.Write(ctx, parts)
	for _, p := range parts {
		result.Objects = append(result.Objects, sink.ObjectName(p.Name))
	}
	return result, err
}

func (s *StreamService) client(ctx context.Context, side string, req Request) (clients.S3API, error) {
	desc := req.Source
	if side == "destination" {
		desc = *req.Destination
	}

	creds, err := credentialsFor(ctx, s.resolver, desc)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s credentials: %w", side, err)
	}
	client, err := s.clients.S3WithCredentials(s.defaults.connection(desc), creds)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", side, err)
	}
	return client, nil
}
