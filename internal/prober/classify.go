package prober

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"syscall"

	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
)

// Classify maps the outcome of a connection attempt to a status and, for
// StatusError only, a detail string.
//
// A timeout is reported as CLOSED: without raw packets it cannot be told
// apart from a silently dropped connection attempt.
func Classify(err error) (scan.Status, string) {
	switch {
	case err == nil:
		return scan.StatusOpen, ""
	case isTimeout(err):
		return scan.StatusClosed, ""
	case isConnectionRefused(err):
		return scan.StatusClosed, ""
	default:
		return scan.StatusError, errorDetail(err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isConnectionRefused covers an RST answer to the SYN as well as the ICMP
// port unreachable reply, which the kernel reports as ECONNREFUSED too.
func isConnectionRefused(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	// Windows and SOCKS5 proxies surface refusals only as text
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "actively refused")
}

// errorDetail returns the innermost useful message, without the dial prefix
// that repeats the address already present in the result.
func errorDetail(err error) string {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Err != nil {
		var sysErr *os.SyscallError
		if errors.As(opErr.Err, &sysErr) && sysErr.Err != nil {
			return sysErr.Err.Error()
		}
		return opErr.Err.Error()
	}
	return err.Error()
}
