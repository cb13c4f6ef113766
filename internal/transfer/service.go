package transfer

import (
	"context"
	"time"

	"github.com/systmms/s3xfer/internal/eligibility"
	"github.com/systmms/s3xfer/internal/logging"
	"github.com/systmms/s3xfer/internal/metrics"
	"github.com/systmms/s3xfer/pkg/location"
)

// Service runs transfers with the strategy the planner picks.
type Service struct {
	planner Planner
	copy    *CopyService
	stream  *StreamService
	issuer  *Issuer
	logger  *logging.Logger
}

// NewService wires the strategies together. issuer may be nil, in which
// case direct copies rely on a keyName already present on the source.
func NewService(planner Planner, copySvc *CopyService, stream *StreamService, issuer *Issuer, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		planner: planner,
		copy:    copySvc,
		stream:  stream,
		issuer:  issuer,
		logger:  logger,
	}
}

// Execute plans and runs req.
func (s *Service) Execute(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	strategy := s.planner.Plan(req)
	log := s.logger.WithField("transfer", req.ID).WithField("strategy", string(strategy))
	log.Info("starting transfer %s -> %s", req.Source, destinationString(req.Destination))

	var (
		result Result
		err    error
	)
	switch strategy {
	case eligibility.DirectCopy:
		result, err = s.directCopy(ctx, req)
	default:
		result, err = s.stream.Transfer(ctx, req)
	}

	elapsed := time.Since(start)
	if err != nil {
		metrics.RecordTransfer(string(strategy), "failed", elapsed.Seconds())
		log.Error("transfer failed after %s: %v", elapsed.Round(time.Millisecond), err)
		return result, err
	}
	metrics.RecordTransfer(string(strategy), "completed", elapsed.Seconds())
	log.Info("transfer completed in %s: %d objects", elapsed.Round(time.Millisecond), len(result.Objects))
	return result, nil
}

func (s *Service) directCopy(ctx context.Context, req Request) (Result, error) {
	if s.issuer == nil {
		return s.copy.Transfer(ctx, req)
	}
	if _, ok := req.Source.OptionalProperty(location.KeyName); ok {
		return s.copy.Transfer(ctx, req)
	}

	issued, err := s.issuer.Issue(ctx, req)
	if err != nil {
		return Result{Strategy: eligibility.DirectCopy}, err
	}
	defer func() {
		if err := s.issuer.Revoke(context.Background(), issued.KeyName); err != nil {
			s.logger.Warn("%v", err)
		}
	}()

	req.Source = issued.Source
	return s.copy.Transfer(ctx, req)
}

func destinationString(d *location.Descriptor) string {
	if d == nil {
		return "<none>"
	}
	return d.String()
}
