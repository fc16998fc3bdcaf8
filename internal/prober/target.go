package prober

import (
	"net/netip"
	"net/url"
	"strings"
)

// ExtractHost strips scheme, port, path and brackets from operator input and
// returns the bare host. The following forms are accepted:
//   - example.com
//   - https://example.com:8443/path
//   - example.com:8080
//   - 192.0.2.1, [2001:db8::1]:22, 2001:db8::1
func ExtractHost(target string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		return ""
	}

	// A bare IPv6 literal would be mangled by URL parsing.
	if addr, err := netip.ParseAddr(strings.Trim(target, "[]")); err == nil {
		return addr.String()
	}

	parsed, err := url.Parse(target)
	if err == nil && parsed.Scheme != "" && parsed.Host == "" && strings.HasPrefix(target, parsed.Scheme+"://") {
		// scheme with nothing after it, e.g. "http://"
		return ""
	}
	// If parsing fails OR scheme is empty OR scheme doesn't look like a real scheme
	// then prepend a scheme and parse again
	if err != nil || parsed.Scheme == "" || parsed.Host == "" || strings.Contains(parsed.Scheme, ".") {
		parsed, err = url.Parse("tcp://" + target)
	}
	if err == nil && parsed.Hostname() != "" {
		return parsed.Hostname()
	}

	// Fallback: cut everything after the first path or port separator
	host := strings.Split(target, "/")[0]
	return strings.Split(host, ":")[0]
}
