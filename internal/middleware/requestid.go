package middleware

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	// HeaderXRequestID is the header name for request ID.
	HeaderXRequestID = "X-Request-ID"
	// HeaderXForwardedFor is the header name for forwarded client IP.
	HeaderXForwardedFor = "X-Forwarded-For"
	// HeaderXRealIP is the header name for real client IP.
	HeaderXRealIP = "X-Real-IP"
)

// requestIDMaxLength is the maximum length for a valid request ID.
const requestIDMaxLength = 128

// validRequestIDRegex matches alphanumeric strings with dashes and underscores.
var validRequestIDRegex = regexp.MustCompile(`^[a-zA-Z0-9\-_]+$`)

// RequestID returns a middleware that tags each request with an ID. A valid
// incoming X-Request-ID is kept; otherwise a UUID v4 is generated.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(HeaderXRequestID)
			if !isValidRequestID(requestID) {
				requestID = uuid.New().String()
			}

			w.Header().Set(HeaderXRequestID, requestID)
			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isValidRequestID(id string) bool {
	if id == "" || len(id) > requestIDMaxLength {
		return false
	}
	return validRequestIDRegex.MatchString(id)
}

// ProxyPolicy decides whether forwarding headers are honoured.
type ProxyPolicy struct {
	trust   bool
	proxies []netip.Prefix
}

// NewProxyPolicy builds a policy. With trust off only the remote address
// counts. With trust on and no trusted proxies every peer may forward;
// otherwise only peers inside one of the listed addresses or CIDR ranges.
// Unparseable entries are ignored.
func NewProxyPolicy(trust bool, trustedProxies []string) ProxyPolicy {
	p := ProxyPolicy{trust: trust}
	for _, raw := range trustedProxies {
		raw = strings.TrimSpace(raw)
		if prefix, err := netip.ParsePrefix(raw); err == nil {
			p.proxies = append(p.proxies, prefix.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(raw); err == nil {
			addr = addr.Unmap()
			p.proxies = append(p.proxies, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return p
}

func (p ProxyPolicy) trusts(remoteIP string) bool {
	if !p.trust {
		return false
	}
	if len(p.proxies) == 0 {
		return true
	}
	addr, err := netip.ParseAddr(remoteIP)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range p.proxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns a middleware that resolves the client address and
// stores it in the request context.
func ClientIP(policy ProxyPolicy) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), ClientIPKey, ExtractClientIP(r, policy))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ExtractClientIP returns the first X-Forwarded-For entry, then X-Real-IP,
// then the remote address. Headers are read only from trusted peers.
func ExtractClientIP(r *http.Request, policy ProxyPolicy) string {
	remoteIP := extractIPFromAddr(r.RemoteAddr)
	if !policy.trusts(remoteIP) {
		return remoteIP
	}

	if xff := r.Header.Get(HeaderXForwardedFor); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get(HeaderXRealIP)); xri != "" {
		return xri
	}

	return remoteIP
}

// extractIPFromAddr strips the port from host:port.
func extractIPFromAddr(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
