package prober

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	sharedErrors "github.com/khanhnv2901/seca-probe/internal/shared/errors"
	"golang.org/x/net/proxy"
)

// Dialer establishes a single connection. The probe deadline is carried by ctx.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// DirectDialer connects straight to the target.
type DirectDialer struct {
	dialer net.Dialer
}

func NewDirectDialer() *DirectDialer {
	return &DirectDialer{}
}

func (d *DirectDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return d.dialer.DialContext(ctx, network, address)
}

// ProxyDialer routes connections through a SOCKS5 proxy.
type ProxyDialer struct {
	proxyURL *url.URL
	forward  proxy.Dialer
}

// NewProxyDialer parses socks5://[user:pass@]host:port. Other schemes are rejected.
func NewProxyDialer(proxyAddr string) (*ProxyDialer, error) {
	u, err := url.Parse(strings.TrimSpace(proxyAddr))
	if err != nil {
		return nil, fmt.Errorf("invalid proxy address: %w", err)
	}
	if u.Scheme != "socks5" && u.Scheme != "socks5h" {
		return nil, fmt.Errorf("%w: %q (only socks5 is supported)", sharedErrors.ErrUnsupportedProxy, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid proxy address: missing host in %q", proxyAddr)
	}

	var auth *proxy.Auth
	if u.User != nil {
		auth = &proxy.Auth{User: u.User.Username()}
		if p, ok := u.User.Password(); ok {
			auth.Password = p
		}
	}

	forward, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create socks5 dialer: %w", err)
	}

	return &ProxyDialer{proxyURL: u, forward: forward}, nil
}

// Address returns the proxy host:port.
func (d *ProxyDialer) Address() string {
	return d.proxyURL.Host
}

func (d *ProxyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := d.forward.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	ch := make(chan dialResult, 1)
	go func() {
		conn, err := d.forward.Dial(network, address)
		ch <- dialResult{conn: conn, err: err}
	}()

	select {
	case <-ctx.Done():
		// Close a connection that lands after we gave up on it.
		go func() {
			if res := <-ch; res.conn != nil {
				_ = res.conn.Close()
			}
		}()
		return nil, ctx.Err()
	case res := <-ch:
		return res.conn, res.err
	}
}

// NewDialer returns a ProxyDialer when proxyAddr is set and a DirectDialer otherwise.
func NewDialer(proxyAddr string) (Dialer, error) {
	if strings.TrimSpace(proxyAddr) == "" {
		return NewDirectDialer(), nil
	}
	return NewProxyDialer(proxyAddr)
}
