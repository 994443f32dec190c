// Package shared holds the small pieces every probing module needs:
// HTTP client construction, context-aware status mapping and hostname
// hygiene for discovered subdomains.
package shared

import (
	"context"
	"crypto/tls"
	"net/http"
	"strings"
	"time"

	"bytemomo/moray/internal/domain"
)

// DefaultUserAgent identifies the toolkit on HTTP probes.
const DefaultUserAgent = "moray-toolkit/1.0"

// DefaultHTTPTimeout bounds a single HTTP exchange when the module
// options don't say otherwise.
const DefaultHTTPTimeout = 10 * time.Second

// NewHTTPClient builds the client HTTP-speaking modules use. Probes
// care about reachability and response signatures, not trust, so the
// transport accepts any certificate.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig:   &tls.Config{InsecureSkipVerify: true},
			DisableKeepAlives: true,
		},
	}
}

// Get issues one context-bound GET with the toolkit user agent plus
// any extra headers.
func Get(ctx context.Context, client *http.Client, url, userAgent string, extra map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	for k, v := range extra {
		req.Header.Set(k, v)
	}
	return client.Do(req)
}

// Outcome maps a probe-ending error to a module status: a deadline or
// cancellation is TimedOut, anything else keeps the fallback status.
func Outcome(ctx context.Context, fallback domain.Status) domain.Status {
	if ctx.Err() != nil {
		return domain.StatusTimedOut
	}
	return fallback
}

// Remaining returns the time left on the context, capped at def when
// the context carries no deadline.
func Remaining(ctx context.Context, def time.Duration) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return def
	}
	left := time.Until(deadline)
	if left <= 0 {
		return time.Millisecond
	}
	if def > 0 && left > def {
		return def
	}
	return left
}

// InZone reports whether name is the apex itself or one of its
// subdomains.
func InZone(name, apex string) bool {
	name = CanonicalHost(name)
	apex = CanonicalHost(apex)
	return name == apex || strings.HasSuffix(name, "."+apex)
}

// CanonicalHost lowercases and strips the trailing dot and any
// wildcard label.
func CanonicalHost(name string) string {
	name = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(name), "."))
	name = strings.TrimPrefix(name, "*.")
	return name
}

// ValidSubdomain checks RFC 1035 label shape for a candidate pulled
// out of free text.
func ValidSubdomain(name string) bool {
	name = CanonicalHost(name)
	if name == "" || len(name) > 253 || strings.Contains(name, "..") {
		return false
	}
	for _, label := range strings.Split(name, ".") {
		if label == "" || len(label) > 63 {
			return false
		}
		for i, r := range label {
			switch {
			case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			case r == '-' || r == '_':
				if i == 0 || i == len(label)-1 {
					return false
				}
			default:
				return false
			}
		}
	}
	return true
}
