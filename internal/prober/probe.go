package prober

import (
	"context"
	"time"

	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
)

// Probe makes one connection attempt to target:port bounded by timeout and
// classifies the outcome. The connection is closed before returning.
func Probe(ctx context.Context, d Dialer, target scan.Target, port int, timeout time.Duration) scan.ProbeResult {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	conn, err := d.DialContext(probeCtx, "tcp", target.Dial(port))
	elapsed := time.Since(start)
	if conn != nil {
		_ = conn.Close()
	}

	status, detail := Classify(err)
	res := scan.ProbeResult{
		Port:    port,
		Status:  status,
		Detail:  detail,
		Elapsed: elapsed,
	}
	if status == scan.StatusError {
		res.Err = &scan.ProbeError{Port: port, Err: err}
	}
	return res
}
