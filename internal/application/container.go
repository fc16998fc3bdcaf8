package application

import (
	"fmt"
	"time"

	scanapp "github.com/khanhnv2901/seca-probe/internal/application/scan"
	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
	"github.com/khanhnv2901/seca-probe/internal/infrastructure/persistence/json"
	"github.com/khanhnv2901/seca-probe/internal/prober"
	"go.uber.org/zap"
)

// Options configures how the container wires the prober
type Options struct {
	// Proxy is an optional socks5:// or socks5h:// URL every probe is routed through
	Proxy string
	// RateLimit caps new connection attempts per second. Zero disables it.
	RateLimit float64
	// LookupTimeout bounds host resolution
	LookupTimeout time.Duration
	Logger        *zap.Logger
}

// Container holds all application services and repositories
// This is a simple dependency injection container
type Container struct {
	// Repositories
	ReportRepo scan.Repository

	// Infrastructure
	Dialer      prober.Dialer
	Resolver    *prober.Resolver
	Coordinator *prober.Coordinator

	// Services
	ScanService *scanapp.Service
}

// NewContainer creates a new application service container
func NewContainer(resultsDir string, opts Options) (*Container, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	reportRepo, err := json.NewReportRepository(resultsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create report repository: %w", err)
	}

	dialer, err := prober.NewDialer(opts.Proxy)
	if err != nil {
		return nil, fmt.Errorf("failed to create dialer: %w", err)
	}

	coordinatorOpts := []prober.CoordinatorOption{prober.WithLogger(logger)}
	if opts.RateLimit > 0 {
		coordinatorOpts = append(coordinatorOpts, prober.WithRateLimit(opts.RateLimit))
	}

	resolver := prober.NewResolver(opts.LookupTimeout)
	coordinator := prober.NewCoordinator(dialer, coordinatorOpts...)

	return &Container{
		ReportRepo:  reportRepo,
		Dialer:      dialer,
		Resolver:    resolver,
		Coordinator: coordinator,
		ScanService: scanapp.NewService(resolver, coordinator, reportRepo, logger),
	}, nil
}
