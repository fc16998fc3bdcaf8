package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/khanhnv2901/seca-probe/cmd/testutil"
	"github.com/khanhnv2901/seca-probe/internal/api"
	"go.uber.org/zap/zaptest"
)

func newTestAPI(t *testing.T, env *testutil.TestEnv) *httptest.Server {
	t.Helper()
	cfg := newCLIConfig()
	cfg.Serve.AuthToken = "secret"
	cfg.Serve.RateLimit = 0
	appCtx := &AppContext{
		Logger:     zaptest.NewLogger(t),
		ResultsDir: env.ResultsDir,
		Config:     cfg,
	}

	handler, shutdown, err := newAPIHandler(appCtx, cfg.Serve)
	if err != nil {
		t.Fatalf("newAPIHandler: %v", err)
	}
	ts := httptest.NewServer(handler)
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(ctx)
	})
	return ts
}

func apiRequest(t *testing.T, ts *httptest.Server, method, path string, body any, out any) int {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &payload)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("X-Auth-Token", "secret")
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestServeScanJobSavesReport(t *testing.T) {
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()
	ts := newTestAPI(t, env)

	open := testutil.OpenPort(t)
	var created api.Job
	if status := apiRequest(t, ts, http.MethodPost, "/api/v1/scans",
		api.ScanRequest{Host: "127.0.0.1", StartPort: open, EndPort: open}, &created); status != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", status)
	}

	job := waitForJob(t, ts, created.ID)
	if job.Status != api.JobDone {
		t.Fatalf("expected done job, got %+v", job)
	}
	if len(job.OpenPorts) != 1 || job.OpenPorts[0] != open {
		t.Fatalf("expected open port %d, got %v", open, job.OpenPorts)
	}

	var report map[string]any
	if status := apiRequest(t, ts, http.MethodGet, "/api/v1/reports/"+job.ReportID, nil, &report); status != http.StatusOK {
		t.Fatalf("expected saved report, got %d", status)
	}
	if report["id"] != job.ReportID {
		t.Fatalf("unexpected report %v", report)
	}
	env.MustExist(filepath.Join("results", job.ReportID+".json"))
}

func TestServeRejectsInvalidRange(t *testing.T) {
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()
	ts := newTestAPI(t, env)

	var body map[string]string
	status := apiRequest(t, ts, http.MethodPost, "/api/v1/scans",
		api.ScanRequest{Host: "127.0.0.1", StartPort: 100, EndPort: 1}, &body)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%v)", status, body)
	}

	var jobs []api.Job
	if status := apiRequest(t, ts, http.MethodGet, "/api/v1/scans", nil, &jobs); status != http.StatusOK || len(jobs) != 0 {
		t.Fatalf("rejected request must not create a job, got %d %v", status, jobs)
	}
}

func waitForJob(t *testing.T, ts *httptest.Server, id string) api.Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for {
		var job api.Job
		if status := apiRequest(t, ts, http.MethodGet, "/api/v1/scans/"+id, nil, &job); status != http.StatusOK {
			t.Fatalf("expected 200 polling job %s, got %d", id, status)
		}
		if job.Finished() {
			return job
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s did not finish, last state %+v", id, job)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestHealthAPIService(t *testing.T) {
	dir := t.TempDir()
	svc := &healthAPIService{resultsDir: dir}
	if err := svc.Check(context.Background()); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if err := svc.Ready(context.Background()); err != nil {
		t.Fatalf("Ready: %v", err)
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		dir  string
	}{
		{name: "unset", dir: ""},
		{name: "missing", dir: filepath.Join(dir, "missing")},
		{name: "not a directory", dir: file},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := (&healthAPIService{resultsDir: tt.dir}).Ready(context.Background()); err == nil {
				t.Fatalf("expected %s results dir to fail readiness", tt.name)
			}
		})
	}
}

func TestServeRejectsNonPositiveMaxJobs(t *testing.T) {
	env := testutil.NewTestEnv(t)
	defer env.Cleanup()

	_, _, err := executeCommand(t, "serve", "--max-jobs", "0", "--results-dir", env.ResultsDir)
	if exitCode(err) != ExitUsage {
		t.Fatalf("expected usage error, got %v", err)
	}

	_, _, err = executeCommand(t, "serve", "--job-history", "0", "--results-dir", env.ResultsDir)
	if exitCode(err) != ExitUsage {
		t.Fatalf("expected usage error for --job-history 0, got %v", err)
	}
}
