package fingerprint

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	utls "github.com/refraction-networking/utls"
)

// Profile represents a recognized TLS fingerprint profile.
type Profile string

const (
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileGo      Profile = "go"     // standard go TLS
	ProfileRandom  Profile = "random" // randomized uTLS profile
)

// Options tunes the transport returned by Transport.
type Options struct {
	// InsecureSkipVerify disables certificate checks. Tests only.
	InsecureSkipVerify bool
	// Proxy, when set, replaces the environment proxy lookup.
	Proxy              func(*http.Request) (*url.URL, error)
}

// ParseProfile maps a config value to a Profile. Empty means ProfileGo.
func ParseProfile(s string) (Profile, error) {
	p := Profile(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case "":
		return ProfileGo, nil
	case ProfileChrome, ProfileFirefox, ProfileSafari, ProfileGo, ProfileRandom:
		return p, nil
	default:
		return "", fmt.Errorf("fingerprint: unknown profile %q", s)
	}
}

// Transport returns an http.RoundTripper presenting the given TLS
// fingerprint. ProfileGo yields a plain clone of http.DefaultTransport.
// Browser profiles advertise only http/1.1 in ALPN, since the returned
// transport cannot speak HTTP/2 over a uTLS connection.
func Transport(p Profile, opts Options) (http.RoundTripper, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.Proxy != nil {
		transport.Proxy = opts.Proxy
	}

	if p == ProfileGo {
		if opts.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		return transport, nil
	}

	id, spec, err := hello(p)
	if err != nil {
		return nil, err
	}

	dial := transport.DialContext
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		tcpConn, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}

		uConn := utls.UClient(tcpConn, &utls.Config{
			ServerName:         host,
			InsecureSkipVerify: opts.InsecureSkipVerify,
		}, id)
		if spec != nil {
			if err := uConn.ApplyPreset(spec); err != nil {
				_ = tcpConn.Close()
				return nil, fmt.Errorf("fingerprint: apply %s preset: %w", p, err)
			}
		}
		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = tcpConn.Close()
			return nil, fmt.Errorf("fingerprint: utls handshake failed: %w", err)
		}
		return uConn, nil
	}

	return transport, nil
}

// hello resolves the ClientHello to send. Browser parrots are expanded to a
// spec so their ALPN list can be pinned to http/1.1.
func hello(p Profile) (utls.ClientHelloID, *utls.ClientHelloSpec, error) {
	var id utls.ClientHelloID
	switch p {
	case ProfileChrome:
		id = utls.HelloChrome_Auto
	case ProfileFirefox:
		id = utls.HelloFirefox_Auto
	case ProfileSafari:
		id = utls.HelloIOS_Auto
	case ProfileRandom:
		return utls.HelloRandomizedNoALPN, nil, nil
	default:
		return utls.ClientHelloID{}, nil, fmt.Errorf("fingerprint: unknown profile %q", p)
	}

	spec, err := utls.UTLSIdToSpec(id)
	if err != nil {
		return utls.ClientHelloID{}, nil, fmt.Errorf("fingerprint: %s spec: %w", p, err)
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}
	return utls.HelloCustom, &spec, nil
}
