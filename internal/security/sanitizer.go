// Package security validates target URLs before they are shortened.
package security

import (
	"errors"
	"net/netip"
	"net/url"
	"strings"
)

// Validation errors. Every one of them wraps ErrInvalidTarget.
var (
	ErrInvalidTarget   = errors.New("invalid target URL")
	ErrEmptyURL        = invalid("URL cannot be empty")
	ErrURLTooLong      = invalid("URL exceeds maximum length")
	ErrInvalidURL      = invalid("invalid URL format")
	ErrInvalidScheme   = invalid("URL must use http or https scheme")
	ErrDangerousScheme = invalid("dangerous URL scheme detected")
	ErrMissingHost     = invalid("URL must include a host")
	ErrPrivateIP       = invalid("private or local addresses are not allowed")
	ErrBlockedHost     = invalid("host is blocked")
)

type validationError struct{ msg string }

func invalid(msg string) error { return &validationError{msg: msg} }

func (e *validationError) Error() string        { return e.msg }
func (e *validationError) Is(target error) bool { return target == ErrInvalidTarget }

// dangerousSchemes can execute code in a browser or read local files.
var dangerousSchemes = map[string]bool{
	"javascript": true,
	"data":       true,
	"vbscript":   true,
	"file":       true,
}

// Config holds validator configuration.
type Config struct {
	MaxURLLength    int      // Maximum accepted URL length
	AllowPrivateIPs bool     // Accept localhost, loopback and private ranges
	BlockedHosts    []string // Hosts rejected together with their subdomains
}

// DefaultConfig returns the default validator configuration.
func DefaultConfig() Config {
	return Config{
		MaxURLLength: 2048,
	}
}

// Sanitizer validates target URLs.
type Sanitizer struct {
	config       Config
	blockedHosts map[string]bool
}

// NewSanitizer creates a URL validator.
func NewSanitizer(cfg Config) *Sanitizer {
	if cfg.MaxURLLength <= 0 {
		cfg.MaxURLLength = DefaultConfig().MaxURLLength
	}
	blocked := make(map[string]bool, len(cfg.BlockedHosts))
	for _, host := range cfg.BlockedHosts {
		blocked[strings.TrimSuffix(strings.ToLower(host), ".")] = true
	}
	return &Sanitizer{config: cfg, blockedHosts: blocked}
}

// Validate checks that rawURL is an absolute http(s) URL pointing at a
// public host.
func (s *Sanitizer) Validate(rawURL string) error {
	_, err := s.Clean(rawURL)
	return err
}

// Clean validates rawURL and returns it with surrounding whitespace removed.
func (s *Sanitizer) Clean(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", ErrEmptyURL
	}
	if len(rawURL) > s.config.MaxURLLength {
		return "", ErrURLTooLong
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", ErrInvalidURL
	}

	scheme := strings.ToLower(u.Scheme)
	switch {
	case dangerousSchemes[scheme]:
		return "", ErrDangerousScheme
	case scheme != "http" && scheme != "https":
		return "", ErrInvalidScheme
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return "", ErrMissingHost
	}
	if s.isBlockedHost(host) {
		return "", ErrBlockedHost
	}
	if !s.config.AllowPrivateIPs && isPrivateHost(host) {
		return "", ErrPrivateIP
	}

	return rawURL, nil
}

// isBlockedHost checks host and each of its parent domains.
func (s *Sanitizer) isBlockedHost(host string) bool {
	for {
		if s.blockedHosts[host] {
			return true
		}
		_, parent, ok := strings.Cut(host, ".")
		if !ok {
			return false
		}
		host = parent
	}
}

func isPrivateHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	return isPrivateIP(host)
}

// isPrivateIP reports loopback, private, link-local and unspecified
// addresses, including IPv4 addresses mapped into IPv6.
func isPrivateIP(s string) bool {
	addr, err := netip.ParseAddr(strings.Trim(s, "[]"))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsUnspecified()
}
