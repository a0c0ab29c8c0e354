package ratelimit

import (
	"fmt"
	"net"
	"strings"
)

// UnknownIdentifier is the bucket shared by callers with no usable address.
const UnknownIdentifier = "unknown"

// Request is the minimal view of an inbound request the limiter needs.
type Request interface {
	// Header returns the first value of the named header, or "".
	Header(name string) string
	// Path returns the destination path of the request.
	Path() string
	// RemoteAddr returns the direct connection address, possibly with a port.
	RemoteAddr() string
	// Principal returns the authenticated user id, or "" for anonymous callers.
	Principal() string
}

// KeyFunc derives a rate limit identifier from a request.
type KeyFunc func(req Request) string

// Resolve returns the identifier used to key rate limit buckets. A custom
// extractor's result is used verbatim.
func Resolve(req Request, extract KeyFunc) string {
	if extract != nil {
		return extract(req)
	}

	return ClientIP(req)
}

// ClientIP extracts the client address, considering proxies. Callers with no
// signal at all share the UnknownIdentifier bucket.
func ClientIP(req Request) string {
	// Take the first IP (original client)
	if xff := req.Header("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(req.Header("X-Real-IP")); xri != "" {
		return xri
	}

	addr := strings.TrimSpace(req.RemoteAddr())
	if addr == "" {
		return UnknownIdentifier
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}

	return host
}

// UserOrIP keys authenticated callers by user id and everyone else by address.
func UserOrIP(req Request) string {
	if principal := req.Principal(); principal != "" {
		return "user:" + principal
	}

	return "ip:" + ClientIP(req)
}

// BuildKey combines the policy shape with the identifier so that requests
// sharing a quota always land in the same bucket.
func BuildKey(policy Policy, identifier string) string {
	return fmt.Sprintf("%d:%d:%s", policy.Window.Milliseconds(), policy.Max, identifier)
}
