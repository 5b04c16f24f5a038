package config

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// LookupHostFunc resolves a hostname to IP address strings. Injectable so
// tests can simulate DNS without touching the network.
type LookupHostFunc func(ctx context.Context, host string) ([]string, error)

// DefaultLookupHost resolves via the system resolver.
func DefaultLookupHost(ctx context.Context, host string) ([]string, error) {
	return net.DefaultResolver.LookupHost(ctx, host)
}

// ValidateOutboundURL vets a URL before any fetcher touches it. Scheme must
// be http or https, the hostname must resolve, and no resolved address may
// fall in loopback, private, or link-local ranges. Hostnames in allowHosts
// bypass DNS entirely.
func ValidateOutboundURL(ctx context.Context, raw string, allowHosts []string, lookup LookupHostFunc) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("invalid url %q: scheme must be http or https", raw)
	}

	host := parsed.Hostname()
	if host == "" {
		return "", fmt.Errorf("invalid url %q: missing hostname", raw)
	}

	for _, allowed := range allowHosts {
		if strings.EqualFold(host, allowed) {
			return raw, nil
		}
	}

	// IP-literal hosts are validated directly, no DNS round trip.
	if ip := net.ParseIP(host); ip != nil {
		if reason := blockedIPReason(ip); reason != "" {
			return "", fmt.Errorf("url %q rejected: %s address %s", raw, reason, ip)
		}
		return raw, nil
	}

	if lookup == nil {
		lookup = DefaultLookupHost
	}
	addrs, err := lookup(ctx, host)
	if err != nil || len(addrs) == 0 {
		return "", fmt.Errorf("url %q rejected: hostname %s does not resolve", raw, host)
	}

	for _, addr := range addrs {
		ip := net.ParseIP(addr)
		if ip == nil {
			return "", fmt.Errorf("url %q rejected: resolver returned non-IP %q", raw, addr)
		}
		if reason := blockedIPReason(ip); reason != "" {
			return "", fmt.Errorf("url %q rejected: %s resolves to %s address %s", raw, host, reason, ip)
		}
	}

	return raw, nil
}

// blockedIPReason returns a non-empty label when the address must not be
// fetched from this host.
func blockedIPReason(ip net.IP) string {
	switch {
	case ip.IsLoopback():
		return "loopback"
	case ip.IsPrivate():
		return "private"
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return "link-local"
	case ip.IsUnspecified():
		return "unspecified"
	}
	return ""
}

// ValidateURL applies the configured allow-set with the system resolver.
func (c *Config) ValidateURL(ctx context.Context, raw string) (string, error) {
	return ValidateOutboundURL(ctx, raw, c.Guard.AllowHosts, nil)
}
