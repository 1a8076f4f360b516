package spam

import (
	"fmt"
	"net/url"
	"strings"
)

// RejectKind tags which stage of the spam pipeline rejected an attempt.
type RejectKind string

const (
	RejectNone      RejectKind = ""
	RejectOrigin    RejectKind = "origin"
	RejectHoneypot  RejectKind = "honeypot"
	RejectRateLimit RejectKind = "rate_limit"
)

type CheckInput struct {
	IP             string
	UserAgent      string
	Origin         string
	Body           map[string]any
	AllowedOrigins []string
	HoneypotField  string
}

type Verdict struct {
	IsSpam bool
	Kind   RejectKind
	Reason string
}

// Checker composes the origin guard, the honeypot check and the rate limiter
// into one verdict. Construct once per process and share; the limiter state
// is the only mutable part.
type Checker struct {
	limiter *RateLimiter
}

func NewChecker() *Checker {
	return &Checker{limiter: NewRateLimiter()}
}

// Check evaluates origin, honeypot and rate limit in that order; the first
// match wins. The limiter is consulted last on purpose so its state is not
// consumed by requests an earlier check would reject anyway.
func (c *Checker) Check(in CheckInput) Verdict {
	if len(in.AllowedOrigins) > 0 {
		if ok, hostname := originAllowed(in.Origin, in.AllowedOrigins); !ok {
			return Verdict{
				IsSpam: true,
				Kind:   RejectOrigin,
				Reason: fmt.Sprintf("Origin not allowed: %s", hostname),
			}
		}
	}

	if in.HoneypotField != "" && truthy(in.Body[in.HoneypotField]) {
		return Verdict{IsSpam: true, Kind: RejectHoneypot, Reason: "Honeypot filled"}
	}

	if !c.limiter.Allow(in.IP) {
		return Verdict{IsSpam: true, Kind: RejectRateLimit, Reason: "Rate limit exceeded"}
	}

	return Verdict{}
}

// originAllowed normalizes the configured entries to bare hostnames and
// matches the request origin's hostname against them. localhost and
// 127.0.0.1 are always trusted as a development bypass.
func originAllowed(origin string, allowed []string) (bool, string) {
	hostname := originHostname(origin)
	if hostname == "localhost" || hostname == "127.0.0.1" {
		return true, hostname
	}
	if hostname == "" {
		return false, hostname
	}
	for _, entry := range allowed {
		if normalizeOriginEntry(entry) == hostname {
			return true, hostname
		}
	}
	return false, hostname
}

func originHostname(origin string) string {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return ""
	}
	u, err := url.Parse(origin)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func normalizeOriginEntry(entry string) string {
	entry = strings.TrimSpace(entry)
	if strings.HasPrefix(entry, "http://") || strings.HasPrefix(entry, "https://") {
		if u, err := url.Parse(entry); err == nil {
			return u.Hostname()
		}
	}
	return entry
}

// truthy mirrors loose truthiness for decoded JSON values: a honeypot counts
// as filled for any non-empty string, non-zero number or true bool.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case float64:
		return x != 0
	default:
		return true
	}
}
