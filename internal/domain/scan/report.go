package scan

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"slices"
	"time"
)

// Report is the aggregate produced by a scan: the target, the probed range
// and one result per launched port, ordered by port.
type Report struct {
	id          string
	target      Target
	portRange   PortRange
	results     []ProbeResult
	concurrency int
	timeout     time.Duration
	startedAt   time.Time
	completedAt time.Time
	cancelled   bool
}

// ReportParams carries the fields needed to build a Report.
type ReportParams struct {
	Target      Target
	Range       PortRange
	Results     []ProbeResult
	Concurrency int
	Timeout     time.Duration
	StartedAt   time.Time
	CompletedAt time.Time
	Cancelled   bool
}

// Summary counts results by status.
type Summary struct {
	Total  int `json:"total"`
	Open   int `json:"open"`
	Closed int `json:"closed"`
	Errors int `json:"error"`
}

// NewReport creates a report with a fresh ID. Results are sorted by port so the
// order never depends on the order in which probes completed.
func NewReport(p ReportParams) *Report {
	return Reconstruct(generateReportID(), p)
}

// Reconstruct creates a report from persisted data
func Reconstruct(id string, p ReportParams) *Report {
	results := slices.Clone(p.Results)
	slices.SortStableFunc(results, func(a, b ProbeResult) int {
		return a.Port - b.Port
	})
	return &Report{
		id:          id,
		target:      p.Target,
		portRange:   p.Range,
		results:     results,
		concurrency: p.Concurrency,
		timeout:     p.Timeout,
		startedAt:   p.StartedAt,
		completedAt: p.CompletedAt,
		cancelled:   p.Cancelled,
	}
}

// Getters

func (r *Report) ID() string {
	return r.id
}

func (r *Report) Target() Target {
	return r.target
}

func (r *Report) Range() PortRange {
	return r.portRange
}

func (r *Report) Concurrency() int {
	return r.concurrency
}

func (r *Report) Timeout() time.Duration {
	return r.timeout
}

func (r *Report) StartedAt() time.Time {
	return r.startedAt
}

func (r *Report) CompletedAt() time.Time {
	return r.completedAt
}

func (r *Report) Duration() time.Duration {
	if r.completedAt.IsZero() {
		return 0
	}
	return r.completedAt.Sub(r.startedAt)
}

// Cancelled reports whether the scan stopped before every port was launched.
func (r *Report) Cancelled() bool {
	return r.cancelled
}

func (r *Report) Results() []ProbeResult {
	// Return a copy to prevent external modification
	return slices.Clone(r.results)
}

// Result returns the result recorded for port, if any.
func (r *Report) Result(port int) (ProbeResult, bool) {
	i, found := slices.BinarySearchFunc(r.results, port, func(res ProbeResult, p int) int {
		return res.Port - p
	})
	if !found {
		return ProbeResult{}, false
	}
	return r.results[i], true
}

func (r *Report) Summary() Summary {
	s := Summary{Total: len(r.results)}
	for _, res := range r.results {
		switch res.Status {
		case StatusOpen:
			s.Open++
		case StatusClosed:
			s.Closed++
		case StatusError:
			s.Errors++
		}
	}
	return s
}

func (r *Report) OpenPorts() []int {
	var ports []int
	for _, res := range r.results {
		if res.Status == StatusOpen {
			ports = append(ports, res.Port)
		}
	}
	return ports
}

func generateReportID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("scan_%d", time.Now().UnixNano())
	}
	return "scan_" + hex.EncodeToString(b)
}
