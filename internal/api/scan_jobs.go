package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	appscan "github.com/khanhnv2901/seca-probe/internal/application/scan"
	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
	sharedErrors "github.com/khanhnv2901/seca-probe/internal/shared/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var errShuttingDown = errors.New("job service is shutting down")

// ScanRunner executes a scan request
type ScanRunner interface {
	Run(ctx context.Context, req appscan.Request) (*scan.Report, error)
}

// ScanJobService runs scans asynchronously. At most maxRunning scans execute
// at once; the rest wait in the pending state.
type ScanJobService struct {
	runner ScanRunner
	jobs   *JobManager
	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	save   bool
	logger *zap.Logger

	// mu orders the shutdown check in StartJob against Shutdown, so running
	// is never incremented while Shutdown waits on it.
	mu      sync.Mutex
	running sync.WaitGroup
}

// NewScanJobService creates the job service. Reports are persisted when save is set.
func NewScanJobService(runner ScanRunner, jobs *JobManager, maxRunning int64, save bool, logger *zap.Logger) *ScanJobService {
	if maxRunning <= 0 {
		maxRunning = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ScanJobService{
		runner: runner,
		jobs:   jobs,
		sem:    semaphore.NewWeighted(maxRunning),
		ctx:    ctx,
		cancel: cancel,
		save:   save,
		logger: logger,
	}
}

// StartJob validates the request synchronously and queues the scan
func (s *ScanJobService) StartJob(ctx context.Context, req ScanRequest) (*Job, error) {
	req.Host = strings.TrimSpace(req.Host)
	if req.Host == "" {
		return nil, sharedErrors.ErrEmptyTarget
	}
	if req.TimeoutMS < 0 {
		return nil, fmt.Errorf("%w: timeout_ms must be positive", sharedErrors.ErrInvalidOption)
	}
	appReq := s.toAppRequest(req)
	if _, _, err := appReq.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return nil, errShuttingDown
	}

	job := s.jobs.CreateJob(req)
	s.running.Add(1)
	go s.execute(job.ID, appReq)
	return job, nil
}

func (s *ScanJobService) toAppRequest(req ScanRequest) appscan.Request {
	return appscan.Request{
		Host:        req.Host,
		StartPort:   req.StartPort,
		EndPort:     req.EndPort,
		Concurrency: req.Concurrency,
		Timeout:     time.Duration(req.TimeoutMS) * time.Millisecond,
		Save:        s.save,
	}
}

func (s *ScanJobService) execute(id string, req appscan.Request) {
	defer s.running.Done()

	if err := s.sem.Acquire(s.ctx, 1); err != nil {
		s.finish(id, nil, fmt.Errorf("%w: %v", sharedErrors.ErrScanCancelled, err))
		return
	}
	defer s.sem.Release(1)

	now := time.Now().UTC()
	s.jobs.UpdateJob(id, func(j *Job) {
		j.Status = JobRunning
		j.StartedAt = &now
	})

	report, err := s.runner.Run(s.ctx, req)
	s.finish(id, report, err)
}

func (s *ScanJobService) finish(id string, report *scan.Report, err error) {
	finished := time.Now().UTC()
	job := s.jobs.UpdateJob(id, func(j *Job) {
		j.FinishedAt = &finished
		if report != nil {
			summary := report.Summary()
			j.ReportID = report.ID()
			j.Address = report.Target().Addr().String()
			j.Summary = &summary
			j.OpenPorts = report.OpenPorts()
		}
		switch {
		case err == nil:
			j.Status = JobDone
		case errors.Is(err, sharedErrors.ErrScanCancelled) || errors.Is(err, context.Canceled):
			j.Status = JobCancelled
			j.Error = err.Error()
		default:
			j.Status = JobError
			j.Error = err.Error()
		}
	})
	if job == nil {
		return
	}
	if err != nil {
		s.logger.Warn("scan job finished with error", zap.String("job_id", id), zap.String("status", job.Status), zap.Error(err))
		return
	}
	s.logger.Info("scan job finished", zap.String("job_id", id), zap.String("report_id", job.ReportID))
}

func (s *ScanJobService) GetJob(ctx context.Context, id string) (*Job, error) {
	job := s.jobs.GetJob(id)
	if job == nil {
		return nil, fmt.Errorf("%w: %s", sharedErrors.ErrJobNotFound, id)
	}
	return job, nil
}

func (s *ScanJobService) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	return s.jobs.ListJobs(limit), nil
}

func (s *ScanJobService) Subscribe() (chan Job, func()) {
	return s.jobs.Subscribe()
}

// Shutdown cancels pending and running scans and waits for them to record
// their partial results, or for ctx to expire.
func (s *ScanJobService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
