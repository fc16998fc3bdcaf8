package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
	"github.com/khanhnv2901/seca-probe/internal/prober"
	sharedErrors "github.com/khanhnv2901/seca-probe/internal/shared/errors"
	"go.uber.org/zap"
)

// TargetResolver turns a host into a scan target
type TargetResolver interface {
	Resolve(ctx context.Context, host string) (scan.Target, error)
}

// Scanner probes a port range on a resolved target
type Scanner interface {
	Scan(ctx context.Context, target scan.Target, ports scan.PortRange, opts prober.Options) (*scan.Report, error)
}

// Request describes one scan
type Request struct {
	Host        string
	StartPort   int
	EndPort     int
	Concurrency int
	Timeout     time.Duration
	Save        bool
	Progress    prober.Progress
}

// Service provides application-level scan operations
type Service struct {
	resolver TargetResolver
	scanner  Scanner
	repo     scan.Repository
	logger   *zap.Logger
}

// NewService creates a new scan service. repo may be nil, in which case
// reports are never persisted.
func NewService(resolver TargetResolver, scanner Scanner, repo scan.Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		resolver: resolver,
		scanner:  scanner,
		repo:     repo,
		logger:   logger,
	}
}

// Validate checks the port range and options of a request without touching the network.
func (r Request) Validate() (scan.PortRange, prober.Options, error) {
	ports, err := scan.NewPortRange(r.StartPort, r.EndPort)
	if err != nil {
		return scan.PortRange{}, prober.Options{}, err
	}
	opts, err := prober.Options{
		Concurrency: r.Concurrency,
		Timeout:     r.Timeout,
		Progress:    r.Progress,
	}.Normalize()
	if err != nil {
		return scan.PortRange{}, prober.Options{}, err
	}
	return ports, opts, nil
}

// Run validates the request, resolves the host and scans the range.
//
// An invalid range or resolution failure returns before any probe is made.
// A cancelled scan returns the partial report together with the cancellation
// error. A persistence failure is returned wrapped alongside the report.
func (s *Service) Run(ctx context.Context, req Request) (*scan.Report, error) {
	ports, opts, err := req.Validate()
	if err != nil {
		return nil, err
	}

	target, err := s.resolver.Resolve(ctx, req.Host)
	if err != nil {
		s.logger.Warn("resolution failed", zap.String("host", req.Host), zap.Error(err))
		return nil, err
	}

	s.logger.Info("scan started",
		zap.String("host", target.Host()),
		zap.String("address", target.Addr().String()),
		zap.Stringer("range", ports),
		zap.Int("concurrency", opts.Concurrency),
		zap.Duration("timeout", opts.Timeout))

	report, scanErr := s.scanner.Scan(ctx, target, ports, opts)
	if report == nil {
		return nil, scanErr
	}

	summary := report.Summary()
	s.logger.Info("scan completed",
		zap.String("report_id", report.ID()),
		zap.Int("probed", summary.Total),
		zap.Int("open", summary.Open),
		zap.Int("closed", summary.Closed),
		zap.Int("error", summary.Errors),
		zap.Bool("cancelled", report.Cancelled()),
		zap.Duration("duration", report.Duration()))

	if req.Save && s.repo != nil {
		// Persist even when the caller is gone; the partial report is still useful.
		if err := s.repo.Save(context.WithoutCancel(ctx), report); err != nil {
			s.logger.Error("failed to save report", zap.String("report_id", report.ID()), zap.Error(err))
			return report, errors.Join(scanErr, fmt.Errorf("failed to save report: %w", err))
		}
	}

	return report, scanErr
}

// GetReport retrieves a persisted report by ID
func (s *Service) GetReport(ctx context.Context, id string) (*scan.Report, error) {
	if s.repo == nil {
		return nil, sharedErrors.ErrReportNotFound
	}
	report, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return report, nil
}

// ListReports retrieves all persisted reports, newest first
func (s *Service) ListReports(ctx context.Context) ([]*scan.Report, error) {
	if s.repo == nil {
		return nil, nil
	}
	reports, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, nil
}

// DeleteReport removes a persisted report
func (s *Service) DeleteReport(ctx context.Context, id string) error {
	if s.repo == nil {
		return sharedErrors.ErrReportNotFound
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	return nil
}
