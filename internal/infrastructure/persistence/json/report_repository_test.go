package json

import (
	"context"
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
	sharedErrors "github.com/khanhnv2901/seca-probe/internal/shared/errors"
)

func sampleReport(t *testing.T, id string, startedAt time.Time) *scan.Report {
	t.Helper()
	target, err := scan.NewTarget("scanme.example.test", netip.MustParseAddr("192.0.2.10"))
	if err != nil {
		t.Fatalf("NewTarget: %v", err)
	}
	ports, err := scan.NewPortRange(20, 23)
	if err != nil {
		t.Fatalf("NewPortRange: %v", err)
	}
	return scan.Reconstruct(id, scan.ReportParams{
		Target: target,
		Range:  ports,
		Results: []scan.ProbeResult{
			{Port: 22, Status: scan.StatusOpen, Elapsed: 1500 * time.Microsecond},
			{Port: 20, Status: scan.StatusClosed, Elapsed: 2 * time.Millisecond},
			{Port: 21, Status: scan.StatusError, Detail: "no route to host", Elapsed: 3 * time.Millisecond},
		},
		Concurrency: 50,
		Timeout:     750 * time.Millisecond,
		StartedAt:   startedAt,
		CompletedAt: startedAt.Add(2 * time.Second),
		Cancelled:   true,
	})
}

func TestReportRepositorySaveAndFind(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewReportRepository(dir)
	if err != nil {
		t.Fatalf("NewReportRepository: %v", err)
	}

	started := time.Date(2024, 3, 1, 10, 0, 0, 123456789, time.UTC)
	original := sampleReport(t, "scan_abc", started)
	if err := repo.Save(context.Background(), original); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "scan_abc.json")); err != nil {
		t.Fatalf("expected report file on disk: %v", err)
	}

	loaded, err := repo.FindByID(context.Background(), "scan_abc")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}

	if loaded.Target().Host() != "scanme.example.test" || loaded.Target().Addr() != original.Target().Addr() {
		t.Fatalf("unexpected target %s", loaded.Target())
	}
	if loaded.Range() != original.Range() {
		t.Fatalf("expected range %s, got %s", original.Range(), loaded.Range())
	}
	if !loaded.StartedAt().Equal(started) || loaded.Duration() != 2*time.Second {
		t.Fatalf("unexpected timestamps %s / %s", loaded.StartedAt(), loaded.Duration())
	}
	if loaded.Concurrency() != 50 || loaded.Timeout() != 750*time.Millisecond || !loaded.Cancelled() {
		t.Fatalf("unexpected settings: %d %s %v", loaded.Concurrency(), loaded.Timeout(), loaded.Cancelled())
	}

	results := loaded.Results()
	if len(results) != 3 || results[0].Port != 20 || results[2].Port != 22 {
		t.Fatalf("unexpected results %+v", results)
	}
	if results[1].Detail != "no route to host" {
		t.Fatalf("expected detail to survive, got %q", results[1].Detail)
	}
	if !errors.Is(results[1].Err, sharedErrors.ErrProbe) || results[1].Err.Error() != "probe port 21: no route to host" {
		t.Fatalf("expected probe error rebuilt from detail, got %v", results[1].Err)
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Fatalf("only ERROR results carry an error: %+v", results)
	}
	if results[2].Elapsed != 1500*time.Microsecond {
		t.Fatalf("expected elapsed 1.5ms, got %s", results[2].Elapsed)
	}
}

func TestReportRepositoryFindAllNewestFirst(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewReportRepository(dir)
	if err != nil {
		t.Fatalf("NewReportRepository: %v", err)
	}

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"scan_old", "scan_new", "scan_mid"} {
		offset := []time.Duration{0, 2 * time.Hour, time.Hour}[i]
		if err := repo.Save(context.Background(), sampleReport(t, id, base.Add(offset))); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	// Foreign files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}

	reports, err := repo.FindAll(context.Background())
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(reports))
	}
	want := []string{"scan_new", "scan_mid", "scan_old"}
	for i, r := range reports {
		if r.ID() != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], r.ID())
		}
	}
}

func TestReportRepositoryDelete(t *testing.T) {
	repo, err := NewReportRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewReportRepository: %v", err)
	}

	if err := repo.Save(context.Background(), sampleReport(t, "scan_del", time.Now().UTC())); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := repo.Delete(context.Background(), "scan_del"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.FindByID(context.Background(), "scan_del"); !errors.Is(err, sharedErrors.ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound after delete, got %v", err)
	}
	if err := repo.Delete(context.Background(), "scan_del"); !errors.Is(err, sharedErrors.ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound for second delete, got %v", err)
	}
}

func TestReportRepositoryRejectsUnsafeIDs(t *testing.T) {
	repo, err := NewReportRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewReportRepository: %v", err)
	}

	for _, id := range []string{"", "..", "../escape", "a/b"} {
		if _, err := repo.FindByID(context.Background(), id); !errors.Is(err, sharedErrors.ErrInvalidReportID) {
			t.Errorf("FindByID(%q): expected ErrInvalidReportID, got %v", id, err)
		}
		if err := repo.Delete(context.Background(), id); !errors.Is(err, sharedErrors.ErrInvalidReportID) {
			t.Errorf("Delete(%q): expected ErrInvalidReportID, got %v", id, err)
		}
	}
}

func TestNewReportRepositoryRequiresDir(t *testing.T) {
	if _, err := NewReportRepository(""); err == nil {
		t.Fatal("expected error for empty directory")
	}
}

func TestWriteAtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "file.json")

	if err := writeAtomic(path, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("writeAtomic: %v", err)
	}
	if err := writeAtomic(path, []byte(`{"a":2}`)); err != nil {
		t.Fatalf("writeAtomic overwrite: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != `{"a":2}` {
		t.Fatalf("unexpected content %s", data)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the final file, found %d entries", len(entries))
	}
}
