package prober

import (
	"context"
	"net"
	"net/netip"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
)

// dialFunc adapts a function to the Dialer interface and counts calls.
type dialFunc struct {
	fn    func(ctx context.Context, port int) (net.Conn, error)
	calls atomic.Int64
}

func (d *dialFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.calls.Add(1)
	_, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}
	return d.fn(ctx, port)
}

// openConn returns a connection whose peer is already closed.
func openConn() net.Conn {
	client, server := net.Pipe()
	_ = server.Close()
	return client
}

func loopbackTarget(t *testing.T) scan.Target {
	t.Helper()
	target, err := scan.NewTarget("127.0.0.1", netip.MustParseAddr("127.0.0.1"))
	if err != nil {
		t.Fatalf("NewTarget: %v", err)
	}
	return target
}

func mustRange(t *testing.T, start, end int) scan.PortRange {
	t.Helper()
	r, err := scan.NewPortRange(start, end)
	if err != nil {
		t.Fatalf("NewPortRange(%d, %d): %v", start, end, err)
	}
	return r
}

// listenerWithClosedNeighbour returns a listener on port P where P+1 was
// bindable a moment ago and has been released again.
func listenerWithClosedNeighbour(t *testing.T) (net.Listener, int) {
	t.Helper()
	for attempt := 0; attempt < 20; attempt++ {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		port := ln.Addr().(*net.TCPAddr).Port
		if port >= 65535 {
			_ = ln.Close()
			continue
		}
		neighbour, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port+1)))
		if err != nil {
			_ = ln.Close()
			continue
		}
		_ = neighbour.Close()
		t.Cleanup(func() { _ = ln.Close() })
		return ln, port
	}
	t.Skip("could not find a free port pair on loopback")
	return nil, 0
}
