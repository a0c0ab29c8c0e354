package middleware

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// ProxyAuth decides whether PrincipalHeader can be believed. The header is
// only accepted when the direct peer is one of the trusted proxies that
// authenticate users upstream; from anyone else it is ignored.
type ProxyAuth struct {
	trusted []netip.Prefix
}

// NewProxyAuth parses a comma-separated list of proxy addresses or CIDRs.
// An empty list trusts nobody.
func NewProxyAuth(list string) (*ProxyAuth, error) {
	auth := &ProxyAuth{}

	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if !strings.Contains(entry, "/") {
			addr, err := netip.ParseAddr(entry)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
			}

			auth.trusted = append(auth.trusted, netip.PrefixFrom(addr, addr.BitLen()))

			continue
		}

		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
		}

		auth.trusted = append(auth.trusted, prefix.Masked())
	}

	return auth, nil
}

// Principal returns header if remoteAddr belongs to a trusted proxy, or "".
func (a *ProxyAuth) Principal(remoteAddr, header string) string {
	if a == nil || header == "" || !a.trusts(remoteAddr) {
		return ""
	}

	return header
}

func (a *ProxyAuth) trusts(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}

	addr = addr.Unmap()

	for _, prefix := range a.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}

	return false
}
