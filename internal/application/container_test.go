package application

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	scanapp "github.com/khanhnv2901/seca-probe/internal/application/scan"
	sharedErrors "github.com/khanhnv2901/seca-probe/internal/shared/errors"
	"go.uber.org/zap/zaptest"
)

func TestNewContainerWiresServices(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	c, err := NewContainer(dir, Options{Logger: zaptest.NewLogger(t)})
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	if c.ReportRepo == nil || c.Resolver == nil || c.Coordinator == nil || c.ScanService == nil {
		t.Fatalf("container has unset members: %+v", c)
	}
}

func TestNewContainerRejectsBadProxy(t *testing.T) {
	_, err := NewContainer(t.TempDir(), Options{Proxy: "http://127.0.0.1:8080"})
	if !errors.Is(err, sharedErrors.ErrUnsupportedProxy) {
		t.Fatalf("expected ErrUnsupportedProxy, got %v", err)
	}
}

func TestContainerScanAndPersist(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen on loopback: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	port := ln.Addr().(*net.TCPAddr).Port

	c, err := NewContainer(t.TempDir(), Options{RateLimit: 1000, Logger: zaptest.NewLogger(t)})
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}

	report, err := c.ScanService.Run(context.Background(), scanapp.Request{
		Host:      "127.0.0.1",
		StartPort: port,
		EndPort:   port,
		Timeout:   time.Second,
		Save:      true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := report.OpenPorts(); len(got) != 1 || got[0] != port {
		t.Fatalf("expected port %d open, got %v", port, got)
	}

	stored, err := c.ScanService.GetReport(context.Background(), report.ID())
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if stored.ID() != report.ID() {
		t.Fatalf("expected stored report %s, got %s", report.ID(), stored.ID())
	}
}
