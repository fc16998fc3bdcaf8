package cmd

import (
	"bytes"
	"context"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// lockedBuffer is shared between the command and background writers such as
// the logger and the progress printer.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testReport(t *testing.T) *scan.Report {
	t.Helper()
	target, err := scan.NewTarget("localhost", netip.MustParseAddr("127.0.0.1"))
	if err != nil {
		t.Fatal(err)
	}
	ports, err := scan.NewPortRange(79, 81)
	if err != nil {
		t.Fatal(err)
	}
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return scan.Reconstruct("scan_cmdtest", scan.ReportParams{
		Target: target,
		Range:  ports,
		Results: []scan.ProbeResult{
			{Port: 79, Status: scan.StatusClosed},
			{Port: 80, Status: scan.StatusOpen},
			{Port: 81, Status: scan.StatusError, Detail: "network is unreachable"},
		},
		Concurrency: 10,
		Timeout:     time.Second,
		StartedAt:   start,
		CompletedAt: start.Add(2 * time.Second),
	})
}

// resetCommandState puts every flag, the viper registry and the shared
// runtime config back to their defaults so commands can be executed
// repeatedly within one test binary.
func resetCommandState(t *testing.T) {
	t.Helper()

	viper.Reset()
	originalNoColor := color.NoColor
	originalAppCtx := globalAppContext
	t.Cleanup(func() {
		viper.Reset()
		color.NoColor = originalNoColor
		globalAppContext = originalAppCtx
	})

	var walk func(c *cobra.Command)
	walk = func(c *cobra.Command) {
		reset := func(f *pflag.Flag) {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				_ = sv.Replace(nil)
			} else {
				_ = f.Value.Set(f.DefValue)
			}
			f.Changed = false
		}
		c.Flags().VisitAll(reset)
		c.PersistentFlags().VisitAll(reset)
		c.SetContext(context.Background())
		for _, child := range c.Commands() {
			walk(child)
		}
	}
	walk(rootCmd)
}

// executeCommand runs the root command with args and returns what it wrote
// to stdout and stderr.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetCommandState(t)

	stdout := &lockedBuffer{}
	stderr := &lockedBuffer{}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	}()

	err := execute(context.Background())
	return stdout.String(), stderr.String(), err
}

// savedReportIDs lists the report IDs stored in dir.
func savedReportIDs(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read results dir: %v", err)
	}
	var ids []string
	for _, e := range entries {
		if name := e.Name(); strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, ".") {
			ids = append(ids, strings.TrimSuffix(name, filepath.Ext(name)))
		}
	}
	return ids
}
