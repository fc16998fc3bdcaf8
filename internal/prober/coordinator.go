package prober

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
	"github.com/khanhnv2901/seca-probe/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-probe/internal/shared/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Progress is notified once per finished probe, from the worker goroutines.
// Implementations must be safe for concurrent use and must not block.
type Progress interface {
	Observe(result scan.ProbeResult)
}

// Options tunes a single scan.
type Options struct {
	Concurrency int           // maximum probes in flight
	Timeout     time.Duration // per-port connection timeout
	Progress    Progress      // optional
}

// Normalize fills zero values with defaults and rejects negative values.
func (o Options) Normalize() (Options, error) {
	if o.Concurrency < 0 {
		return o, fmt.Errorf("%w: concurrency must be positive, got %d", sharedErrors.ErrInvalidOption, o.Concurrency)
	}
	if o.Timeout < 0 {
		return o, fmt.Errorf("%w: timeout must be positive, got %s", sharedErrors.ErrInvalidOption, o.Timeout)
	}
	if o.Concurrency == 0 {
		o.Concurrency = constants.DefaultConcurrency
	}
	if o.Timeout == 0 {
		o.Timeout = constants.DefaultProbeTimeout
	}
	return o, nil
}

// Coordinator fans probes for a port range out over a fixed pool of workers.
type Coordinator struct {
	dialer  Dialer
	limiter *rate.Limiter
	logger  *zap.Logger
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithRateLimit caps the number of probes launched per second. Zero disables the limit.
func WithRateLimit(perSecond float64) CoordinatorOption {
	return func(c *Coordinator) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func WithLogger(logger *zap.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCoordinator returns a coordinator dialing through d, or directly when d is nil.
func NewCoordinator(d Dialer, opts ...CoordinatorOption) *Coordinator {
	if d == nil {
		d = NewDirectDialer()
	}
	c := &Coordinator{dialer: d, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Scan probes every port of ports exactly once and returns the report ordered
// by port. Per-port failures are recorded in the report and never abort the scan.
//
// When ctx is cancelled no further probe is launched. Probes already in flight
// run until they finish or hit their own timeout, and the partial report is
// returned marked as cancelled together with an error matching
// ErrScanCancelled and the context error.
func (c *Coordinator) Scan(ctx context.Context, target scan.Target, ports scan.PortRange, opts Options) (*scan.Report, error) {
	if target.IsZero() {
		return nil, &scan.ResolutionError{Host: target.Host(), Err: sharedErrors.ErrUnresolved}
	}
	if ports.Len() == 0 {
		return nil, &scan.InvalidRangeError{Reason: "empty port range"}
	}
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}

	total := ports.Len()
	workers := min(opts.Concurrency, total)
	results := make([]scan.ProbeResult, total)
	launched := make([]bool, total)
	queue := make(chan int)

	// In-flight probes keep their own deadline but ignore the caller's cancellation.
	probeCtx := context.WithoutCancel(ctx)

	c.logger.Debug("scan started",
		zap.String("target", target.String()),
		zap.Stringer("range", ports),
		zap.Int("workers", workers),
		zap.Duration("timeout", opts.Timeout))

	startedAt := time.Now().UTC()

	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for i := range queue {
				res := Probe(probeCtx, c.dialer, target, ports.Port(i), opts.Timeout)
				results[i] = res
				if opts.Progress != nil {
					opts.Progress.Observe(res)
				}
			}
		}()
	}

	dispatchErr := c.dispatch(ctx, queue, launched)
	close(queue)
	wg.Wait()

	collected := make([]scan.ProbeResult, 0, total)
	for i, ok := range launched {
		if ok {
			collected = append(collected, results[i])
		}
	}

	report := scan.NewReport(scan.ReportParams{
		Target:      target,
		Range:       ports,
		Results:     collected,
		Concurrency: opts.Concurrency,
		Timeout:     opts.Timeout,
		StartedAt:   startedAt,
		CompletedAt: time.Now().UTC(),
		Cancelled:   dispatchErr != nil,
	})

	summary := report.Summary()
	c.logger.Debug("scan finished",
		zap.String("report_id", report.ID()),
		zap.Int("probed", summary.Total),
		zap.Int("open", summary.Open),
		zap.Bool("cancelled", report.Cancelled()),
		zap.Duration("duration", report.Duration()))

	if dispatchErr != nil {
		return report, fmt.Errorf("%w after %d of %d ports: %w",
			sharedErrors.ErrScanCancelled, len(collected), total, dispatchErr)
	}
	return report, nil
}

// dispatch hands port indexes to the workers until every port is launched or
// ctx is done. It returns the context error when it stopped early.
func (c *Coordinator) dispatch(ctx context.Context, queue chan<- int, launched []bool) error {
	for i := range launched {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				// Wait also fails early when the deadline would pass while waiting.
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				return context.DeadlineExceeded
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case queue <- i:
			launched[i] = true
		}
	}
	return nil
}
