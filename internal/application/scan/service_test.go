package scan

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
	"github.com/khanhnv2901/seca-probe/internal/prober"
	sharedErrors "github.com/khanhnv2901/seca-probe/internal/shared/errors"
	"go.uber.org/zap/zaptest"
)

type countingDialer struct {
	calls atomic.Int64
}

func (d *countingDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.calls.Add(1)
	client, server := net.Pipe()
	_ = server.Close()
	return client, nil
}

type memoryRepo struct {
	mu      sync.Mutex
	reports map[string]*scan.Report
	saveErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{reports: make(map[string]*scan.Report)}
}

func (m *memoryRepo) Save(ctx context.Context, report *scan.Report) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[report.ID()] = report
	return nil
}

func (m *memoryRepo) FindByID(ctx context.Context, id string) (*scan.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, sharedErrors.ErrReportNotFound
	}
	return r, nil
}

func (m *memoryRepo) FindAll(ctx context.Context) ([]*scan.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*scan.Report, 0, len(m.reports))
	for _, r := range m.reports {
		out = append(out, r)
	}
	return out, nil
}

func (m *memoryRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[id]; !ok {
		return sharedErrors.ErrReportNotFound
	}
	delete(m.reports, id)
	return nil
}

type lookupCounter struct {
	calls atomic.Int64
	addrs []netip.Addr
	err   error
}

func (l *lookupCounter) lookup(ctx context.Context, network, host string) ([]netip.Addr, error) {
	l.calls.Add(1)
	return l.addrs, l.err
}

func newTestService(t *testing.T, lookup *lookupCounter, dialer prober.Dialer, repo scan.Repository) *Service {
	t.Helper()
	resolver := &prober.Resolver{Lookup: lookup.lookup}
	return NewService(resolver, prober.NewCoordinator(dialer), repo, zaptest.NewLogger(t))
}

func TestRunScansAndSaves(t *testing.T) {
	lookup := &lookupCounter{addrs: []netip.Addr{netip.MustParseAddr("192.0.2.10")}}
	dialer := &countingDialer{}
	repo := newMemoryRepo()
	svc := newTestService(t, lookup, dialer, repo)

	report, err := svc.Run(context.Background(), Request{
		Host:        "scanme.example.test",
		StartPort:   20,
		EndPort:     29,
		Concurrency: 3,
		Timeout:     100 * time.Millisecond,
		Save:        true,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(report.Results()) != 10 || dialer.calls.Load() != 10 {
		t.Fatalf("expected 10 results and dials, got %d / %d", len(report.Results()), dialer.calls.Load())
	}
	if report.Target().Host() != "scanme.example.test" {
		t.Fatalf("unexpected host %q", report.Target().Host())
	}

	saved, err := svc.GetReport(context.Background(), report.ID())
	if err != nil {
		t.Fatalf("GetReport returned error: %v", err)
	}
	if saved.ID() != report.ID() {
		t.Fatalf("expected saved report %s, got %s", report.ID(), saved.ID())
	}
}

func TestRunWithoutSaveDoesNotPersist(t *testing.T) {
	lookup := &lookupCounter{addrs: []netip.Addr{netip.MustParseAddr("192.0.2.10")}}
	repo := newMemoryRepo()
	svc := newTestService(t, lookup, &countingDialer{}, repo)

	if _, err := svc.Run(context.Background(), Request{Host: "h.example.test", StartPort: 1, EndPort: 2}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	reports, _ := svc.ListReports(context.Background())
	if len(reports) != 0 {
		t.Fatalf("expected nothing persisted, got %d reports", len(reports))
	}
}

func TestRunInvalidRangeBeforeNetwork(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
	}{
		{name: "start greater than end", start: 100, end: 10},
		{name: "start zero", start: 0, end: 10},
		{name: "end too large", start: 1, end: 70000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookup := &lookupCounter{addrs: []netip.Addr{netip.MustParseAddr("192.0.2.10")}}
			dialer := &countingDialer{}
			svc := newTestService(t, lookup, dialer, nil)

			_, err := svc.Run(context.Background(), Request{Host: "h.example.test", StartPort: tt.start, EndPort: tt.end})
			var rangeErr *scan.InvalidRangeError
			if !errors.As(err, &rangeErr) {
				t.Fatalf("expected *scan.InvalidRangeError, got %v", err)
			}
			if lookup.calls.Load() != 0 || dialer.calls.Load() != 0 {
				t.Fatalf("expected no network activity, got %d lookups and %d dials", lookup.calls.Load(), dialer.calls.Load())
			}
		})
	}
}

func TestRunUnresolvableHostMakesNoProbes(t *testing.T) {
	lookup := &lookupCounter{err: &net.DNSError{Err: "no such host", Name: "this-host-does-not-exist.invalid", IsNotFound: true}}
	dialer := &countingDialer{}
	svc := newTestService(t, lookup, dialer, nil)

	report, err := svc.Run(context.Background(), Request{Host: "this-host-does-not-exist.invalid", StartPort: 1, EndPort: 1024})
	var resErr *scan.ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected *scan.ResolutionError, got %v", err)
	}
	if report != nil {
		t.Fatal("expected no report on resolution failure")
	}
	if dialer.calls.Load() != 0 {
		t.Fatalf("expected zero probe attempts, got %d", dialer.calls.Load())
	}
}

func TestRunInvalidOptions(t *testing.T) {
	lookup := &lookupCounter{addrs: []netip.Addr{netip.MustParseAddr("192.0.2.10")}}
	svc := newTestService(t, lookup, &countingDialer{}, nil)

	_, err := svc.Run(context.Background(), Request{Host: "h.example.test", StartPort: 1, EndPort: 2, Timeout: -time.Second})
	if !errors.Is(err, sharedErrors.ErrInvalidOption) {
		t.Fatalf("expected ErrInvalidOption, got %v", err)
	}
	if lookup.calls.Load() != 0 {
		t.Fatal("expected validation before resolution")
	}
}

func TestRunSaveFailureStillReturnsReport(t *testing.T) {
	lookup := &lookupCounter{addrs: []netip.Addr{netip.MustParseAddr("192.0.2.10")}}
	repo := newMemoryRepo()
	repo.saveErr = errors.New("disk full")
	svc := newTestService(t, lookup, &countingDialer{}, repo)

	report, err := svc.Run(context.Background(), Request{Host: "h.example.test", StartPort: 1, EndPort: 3, Save: true})
	if err == nil || !errors.Is(err, repo.saveErr) {
		t.Fatalf("expected wrapped save error, got %v", err)
	}
	if report == nil || len(report.Results()) != 3 {
		t.Fatal("expected report despite save failure")
	}
}

func TestReportQueriesWithoutRepository(t *testing.T) {
	svc := NewService(nil, nil, nil, nil)

	if _, err := svc.GetReport(context.Background(), "scan_1"); !errors.Is(err, sharedErrors.ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}
	if err := svc.DeleteReport(context.Background(), "scan_1"); !errors.Is(err, sharedErrors.ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}
	reports, err := svc.ListReports(context.Background())
	if err != nil || len(reports) != 0 {
		t.Fatalf("expected empty list, got %v %v", reports, err)
	}
}
