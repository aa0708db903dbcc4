package tcp

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"
)

// Options describes one IRC server endpoint and how to reach it.
type Options struct {
	// Addr is host:port of the IRC server.
	Addr string
	IPv6 bool
	// VHost is a local IP to bind before dialing.
	VHost string
	// Proxy is a SOCKS5 proxy, host:port or socks5://[user:pass@]host:port.
	Proxy string

	TLS       bool
	TLSVerify bool
	// ServerName overrides the host used for certificate verification.
	ServerName string
	// RootCAs replaces the system pool; nil means system roots.
	RootCAs *x509.CertPool

	CertFile     string
	KeyFile      string
	CertPassword string

	// KeepAlive is the TCP keep-alive period; zero keeps the net.Dialer default.
	KeepAlive time.Duration
}

// Dialer opens plain or TLS connections, optionally through SOCKS5.
// It satisfies core.Dialer.
type Dialer struct {
	opts    Options
	network string
	base    *net.Dialer
	tls     *tls.Config
	log     *zerolog.Logger
}

// New validates opts and loads the client certificate, if any.
func New(opts Options, logger *zerolog.Logger) (*Dialer, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	host, _, err := net.SplitHostPort(opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("server address %q: %w", opts.Addr, err)
	}

	d := &Dialer{
		opts:    opts,
		network: "tcp4",
		base:    &net.Dialer{KeepAlive: opts.KeepAlive},
		log:     logger,
	}
	if opts.IPv6 {
		d.network = "tcp6"
	}

	if opts.VHost != "" {
		ip := net.ParseIP(opts.VHost)
		if ip == nil {
			return nil, fmt.Errorf("vhost %q is not an IP address", opts.VHost)
		}
		d.base.LocalAddr = &net.TCPAddr{IP: ip}
	}

	if opts.TLS {
		serverName := opts.ServerName
		if serverName == "" {
			serverName = host
		}
		d.tls = &tls.Config{
			ServerName:         serverName,
			InsecureSkipVerify: !opts.TLSVerify, //nolint:gosec
			RootCAs:            opts.RootCAs,
			MinVersion:         tls.VersionTLS12,
		}
		if opts.CertFile != "" {
			cert, err := LoadClientCert(opts.CertFile, opts.KeyFile, opts.CertPassword)
			if err != nil {
				return nil, err
			}
			d.tls.Certificates = []tls.Certificate{cert}
		}
	} else if opts.CertFile != "" {
		logger.Warn().Str("cert", opts.CertFile).Msg("client certificate ignored without tls")
	}

	return d, nil
}

// Dial connects to the server. The TLS handshake is bound to ctx.
func (d *Dialer) Dial(ctx context.Context) (net.Conn, error) {
	conn, err := d.dialTCP(ctx)
	if err != nil {
		return nil, err
	}
	if d.tls == nil {
		return conn, nil
	}

	tlsConn := tls.Client(conn, d.tls.Clone())
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}
	state := tlsConn.ConnectionState()
	d.log.Debug().
		Str("version", tls.VersionName(state.Version)).
		Str("cipher", tls.CipherSuiteName(state.CipherSuite)).
		Msg("tls established")
	return tlsConn, nil
}

func (d *Dialer) dialTCP(ctx context.Context) (net.Conn, error) {
	if d.opts.Proxy == "" {
		return d.base.DialContext(ctx, d.network, d.opts.Addr)
	}

	proxyAddr, auth, err := parseProxy(d.opts.Proxy)
	if err != nil {
		return nil, err
	}
	socks, err := proxy.SOCKS5("tcp", proxyAddr, auth, d.base)
	if err != nil {
		return nil, fmt.Errorf("socks5 proxy: %w", err)
	}
	cd, ok := socks.(proxy.ContextDialer)
	if !ok {
		return nil, errors.New("socks5 dialer does not support contexts")
	}
	d.log.Debug().Str("proxy", proxyAddr).Msg("dialing through proxy")
	conn, err := cd.DialContext(ctx, d.network, d.opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("socks5 %s: %w", proxyAddr, err)
	}
	return conn, nil
}

// parseProxy accepts host:port or a socks5:// URL with optional credentials.
func parseProxy(raw string) (string, *proxy.Auth, error) {
	if !strings.Contains(raw, "://") {
		if _, _, err := net.SplitHostPort(raw); err != nil {
			return "", nil, fmt.Errorf("proxy %q: %w", raw, err)
		}
		return raw, nil, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", nil, fmt.Errorf("proxy %q: %w", raw, err)
	}
	if u.Scheme != "socks5" && u.Scheme != "socks5h" {
		return "", nil, fmt.Errorf("proxy scheme %q not supported", u.Scheme)
	}
	if u.Port() == "" {
		return "", nil, fmt.Errorf("proxy %q has no port", raw)
	}

	var auth *proxy.Auth
	if u.User != nil {
		pw, _ := u.User.Password()
		auth = &proxy.Auth{User: u.User.Username(), Password: pw}
	}
	return u.Host, auth, nil
}
