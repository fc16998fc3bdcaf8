package prober

import (
	"context"
	"net"
	"net/netip"
	"time"

	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
	"github.com/khanhnv2901/seca-probe/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-probe/internal/shared/errors"
)

// LookupFunc returns the addresses a host name maps to.
type LookupFunc func(ctx context.Context, network, host string) ([]netip.Addr, error)

// Resolver turns operator supplied host names into a single address.
type Resolver struct {
	Lookup  LookupFunc    // defaults to net.DefaultResolver.LookupNetIP
	Timeout time.Duration // bounds one lookup, defaults to constants.DefaultLookupTimeout
}

// NewResolver returns a resolver backed by the system resolver.
func NewResolver(timeout time.Duration) *Resolver {
	return &Resolver{Lookup: net.DefaultResolver.LookupNetIP, Timeout: timeout}
}

// Resolve returns the target for host. Literal addresses are used as is.
// For names the first IPv4 address wins and IPv6 is used only when the host
// has no IPv4 address. Every failure is a *scan.ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, host string) (scan.Target, error) {
	name := ExtractHost(host)
	if name == "" {
		return scan.Target{}, &scan.ResolutionError{Host: host, Err: sharedErrors.ErrEmptyTarget}
	}

	if addr, err := netip.ParseAddr(name); err == nil {
		return newTarget(host, name, addr)
	}

	lookup := r.Lookup
	if lookup == nil {
		lookup = net.DefaultResolver.LookupNetIP
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultLookupTimeout
	}

	lookupCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addrs, err := lookup(lookupCtx, "ip", name)
	if err != nil {
		return scan.Target{}, &scan.ResolutionError{Host: name, Err: err}
	}

	addr, ok := pickAddr(addrs)
	if !ok {
		return scan.Target{}, &scan.ResolutionError{Host: name, Err: sharedErrors.ErrNoAddress}
	}
	return newTarget(host, name, addr)
}

func newTarget(input, name string, addr netip.Addr) (scan.Target, error) {
	target, err := scan.NewTarget(name, addr)
	if err != nil {
		return scan.Target{}, &scan.ResolutionError{Host: input, Err: err}
	}
	return target, nil
}

func pickAddr(addrs []netip.Addr) (netip.Addr, bool) {
	var fallback netip.Addr
	for _, a := range addrs {
		a = a.Unmap()
		if !a.IsValid() {
			continue
		}
		if a.Is4() {
			return a, true
		}
		if !fallback.IsValid() {
			fallback = a
		}
	}
	return fallback, fallback.IsValid()
}
