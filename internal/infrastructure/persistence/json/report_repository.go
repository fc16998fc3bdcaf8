package json

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
	"github.com/khanhnv2901/seca-probe/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-probe/internal/shared/errors"
	"github.com/khanhnv2901/seca-probe/internal/shared/security"
)

const reportExt = ".json"

// ReportDTO is the data transfer object for JSON serialization
type ReportDTO struct {
	ID          string       `json:"id"`
	Host        string       `json:"host"`
	Address     string       `json:"address"`
	StartPort   int          `json:"start_port"`
	EndPort     int          `json:"end_port"`
	Concurrency int          `json:"concurrency"`
	TimeoutMS   int64        `json:"timeout_ms"`
	StartedAt   string       `json:"started_at"`
	CompletedAt string       `json:"completed_at,omitempty"`
	Cancelled   bool         `json:"cancelled,omitempty"`
	Summary     scan.Summary `json:"summary"`
	Results     []ResultDTO  `json:"results"`
}

// ResultDTO is one probed port inside a ReportDTO
type ResultDTO struct {
	Port      int     `json:"port"`
	Status    string  `json:"status"`
	Detail    string  `json:"detail,omitempty"`
	ElapsedMS float64 `json:"elapsed_ms"`
}

// ReportRepository implements the scan.Repository interface using one JSON file per report
type ReportRepository struct {
	dir string
	mu  sync.RWMutex
}

// NewReportRepository creates a new JSON-based report repository
func NewReportRepository(dir string) (*ReportRepository, error) {
	if dir == "" {
		return nil, fmt.Errorf("reports directory cannot be empty")
	}

	// Ensure the reports directory exists
	if err := os.MkdirAll(dir, constants.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create reports directory: %w", err)
	}

	return &ReportRepository{dir: dir}, nil
}

// Save persists a report, replacing an existing report with the same ID
func (r *ReportRepository) Save(ctx context.Context, report *scan.Report) error {
	path, err := r.pathFor(report.ID())
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(ToDTO(report), "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", sharedErrors.ErrSerializationFailed, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := writeAtomic(path, data); err != nil {
		return fmt.Errorf("%w: save report %s: %v", sharedErrors.ErrRepositoryOperation, report.ID(), err)
	}
	return nil
}

// FindByID retrieves a report by its ID
func (r *ReportRepository) FindByID(ctx context.Context, id string) (*scan.Report, error) {
	path, err := r.pathFor(id)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	report, err := r.loadFromFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", sharedErrors.ErrReportNotFound, id)
	}
	return report, err
}

// FindAll retrieves all reports, newest first. Unreadable files are skipped.
func (r *ReportRepository) FindAll(ctx context.Context) ([]*scan.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read reports directory: %w", err)
	}

	var reports []*scan.Report
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, reportExt) || strings.HasPrefix(name, ".") {
			continue
		}
		report, err := r.loadFromFile(filepath.Join(r.dir, name))
		if err != nil {
			continue
		}
		reports = append(reports, report)
	}

	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].StartedAt().After(reports[j].StartedAt())
	})
	return reports, nil
}

// Delete removes a report by its ID
func (r *ReportRepository) Delete(ctx context.Context, id string) error {
	path, err := r.pathFor(id)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", sharedErrors.ErrReportNotFound, id)
		}
		return fmt.Errorf("%w: delete report %s: %v", sharedErrors.ErrRepositoryOperation, id, err)
	}
	return nil
}

// Helper methods

func (r *ReportRepository) pathFor(id string) (string, error) {
	if err := security.ValidateName(id); err != nil {
		return "", fmt.Errorf("%w: %v", sharedErrors.ErrInvalidReportID, err)
	}
	path, err := security.ResolveWithin(r.dir, id+reportExt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", sharedErrors.ErrInvalidReportID, err)
	}
	return path, nil
}

func (r *ReportRepository) loadFromFile(path string) (*scan.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var dto ReportDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("%w: %v", sharedErrors.ErrDeserializationFailed, err)
	}

	return FromDTO(dto)
}

// ToDTO converts a report into its JSON representation
func ToDTO(report *scan.Report) ReportDTO {
	dto := ReportDTO{
		ID:          report.ID(),
		Host:        report.Target().Host(),
		Address:     report.Target().Addr().String(),
		StartPort:   report.Range().Start(),
		EndPort:     report.Range().End(),
		Concurrency: report.Concurrency(),
		TimeoutMS:   report.Timeout().Milliseconds(),
		StartedAt:   report.StartedAt().Format(time.RFC3339Nano),
		Cancelled:   report.Cancelled(),
		Summary:     report.Summary(),
		Results:     make([]ResultDTO, 0, len(report.Results())),
	}

	if !report.CompletedAt().IsZero() {
		dto.CompletedAt = report.CompletedAt().Format(time.RFC3339Nano)
	}

	for _, res := range report.Results() {
		dto.Results = append(dto.Results, ResultDTO{
			Port:      res.Port,
			Status:    string(res.Status),
			Detail:    res.Detail,
			ElapsedMS: float64(res.Elapsed.Microseconds()) / 1000,
		})
	}
	return dto
}

// FromDTO rebuilds a report from its JSON representation
func FromDTO(dto ReportDTO) (*scan.Report, error) {
	startedAt, err := time.Parse(time.RFC3339Nano, dto.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started at time: %w", err)
	}

	var completedAt time.Time
	if dto.CompletedAt != "" {
		completedAt, err = time.Parse(time.RFC3339Nano, dto.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse completed at time: %w", err)
		}
	}

	addr, err := netip.ParseAddr(dto.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to parse address: %w", err)
	}
	target, err := scan.NewTarget(dto.Host, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild target: %w", err)
	}

	ports, err := scan.NewPortRange(dto.StartPort, dto.EndPort)
	if err != nil {
		return nil, err
	}

	results := make([]scan.ProbeResult, 0, len(dto.Results))
	for _, res := range dto.Results {
		status := scan.Status(res.Status)
		if !status.Valid() {
			return nil, fmt.Errorf("port %d: unknown status %q", res.Port, res.Status)
		}
		if !ports.Contains(res.Port) {
			return nil, fmt.Errorf("port %d outside range %s", res.Port, ports)
		}
		result := scan.ProbeResult{
			Port:    res.Port,
			Status:  status,
			Detail:  res.Detail,
			Elapsed: time.Duration(res.ElapsedMS * float64(time.Millisecond)),
		}
		if status == scan.StatusError {
			result.Err = &scan.ProbeError{Port: res.Port, Err: errors.New(res.Detail)}
		}
		results = append(results, result)
	}

	return scan.Reconstruct(dto.ID, scan.ReportParams{
		Target:      target,
		Range:       ports,
		Results:     results,
		Concurrency: dto.Concurrency,
		Timeout:     time.Duration(dto.TimeoutMS) * time.Millisecond,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Cancelled:   dto.Cancelled,
	}), nil
}
