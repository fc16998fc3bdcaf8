package scan

import (
	"net"
	"net/netip"
	"strconv"
	"strings"

	sharedErrors "github.com/khanhnv2901/seca-probe/internal/shared/errors"
)

// Target is a host together with the single address it resolved to.
// It is immutable once constructed.
type Target struct {
	host string
	addr netip.Addr
}

// NewTarget creates a target from the host as supplied and its resolved address.
func NewTarget(host string, addr netip.Addr) (Target, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return Target{}, sharedErrors.ErrEmptyTarget
	}
	if !addr.IsValid() {
		return Target{}, sharedErrors.ErrUnresolved
	}
	return Target{host: host, addr: addr.Unmap()}, nil
}

func (t Target) Host() string {
	return t.host
}

func (t Target) Addr() netip.Addr {
	return t.addr
}

// IsZero reports whether the target was never resolved.
func (t Target) IsZero() bool {
	return !t.addr.IsValid()
}

// Dial returns the network address for the given port, bracketing IPv6 literals.
func (t Target) Dial(port int) string {
	return net.JoinHostPort(t.addr.String(), strconv.Itoa(port))
}

func (t Target) String() string {
	if t.host == t.addr.String() {
		return t.host
	}
	return t.host + " (" + t.addr.String() + ")"
}
