package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
	consts "github.com/khanhnv2901/seca-probe/internal/shared/constants"
)

const telemetryFileName = "telemetry.jsonl"

type telemetryRecord struct {
	Timestamp       time.Time `json:"timestamp"`
	Command         string    `json:"command"`
	ReportID        string    `json:"report_id"`
	Host            string    `json:"host"`
	PortCount       int       `json:"port_count"`
	OpenCount       int       `json:"open_count"`
	ClosedCount     int       `json:"closed_count"`
	ErrorCount      int       `json:"error_count"`
	Cancelled       bool      `json:"cancelled,omitempty"`
	DurationSeconds float64   `json:"duration_seconds"`
	ProbesPerSecond float64   `json:"probes_per_second"`
}

func newTelemetryRecord(command string, report *scan.Report) telemetryRecord {
	summary := report.Summary()
	duration := report.Duration()

	rate := 0.0
	if duration > 0 {
		rate = float64(summary.Total) / duration.Seconds()
	}

	return telemetryRecord{
		Timestamp:       time.Now().UTC(),
		Command:         command,
		ReportID:        report.ID(),
		Host:            report.Target().Host(),
		PortCount:       summary.Total,
		OpenCount:       summary.Open,
		ClosedCount:     summary.Closed,
		ErrorCount:      summary.Errors,
		Cancelled:       report.Cancelled(),
		DurationSeconds: duration.Seconds(),
		ProbesPerSecond: rate,
	}
}

// recordTelemetry appends one JSON line describing report to <dir>/telemetry.jsonl
func recordTelemetry(dir, command string, report *scan.Report) error {
	data, err := json.Marshal(newTelemetryRecord(command, report))
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}

	telemetryPath := filepath.Join(dir, telemetryFileName)
	f, err := os.OpenFile(telemetryPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, consts.DefaultFilePerm)
	if err != nil {
		return fmt.Errorf("open telemetry file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write telemetry: %w", err)
	}

	return nil
}
