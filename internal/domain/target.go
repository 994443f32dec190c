package domain

import (
	"fmt"
	"net"
	"strings"
)

// TargetKind identifies the form a target was given in.
type TargetKind string

const (
	TargetHostname TargetKind = "hostname"
	TargetIP       TargetKind = "ip"
	TargetCIDR     TargetKind = "cidr"
)

// Target is a host, IP or CIDR under reconnaissance. Immutable once
// built; identity is the normalized Key.
type Target struct {
	// Raw is the input exactly as the caller supplied it.
	Raw string `json:"raw"`
	// Host is the normalized form: lowercased, scheme/port/trailing
	// dot stripped, or the canonical CIDR string.
	Host string     `json:"host"`
	Kind TargetKind `json:"kind"`
}

// Key returns the deduplication identity of the target.
func (t Target) Key() string { return t.Host }

func (t Target) String() string { return t.Host }

// IsZero reports whether the target was never normalized.
func (t Target) IsZero() bool { return t.Host == "" }

// NormalizeTarget canonicalizes a raw target string. Accepted forms are
// hostnames, IP addresses and CIDR ranges, optionally with a scheme or
// port which are discarded.
func NormalizeTarget(raw string) (Target, error) {
	s := strings.TrimSpace(strings.ToLower(raw))
	if s == "" {
		return Target{}, &Error{Op: "domain.NormalizeTarget", Msg: "empty target", Err: ErrConfiguration}
	}

	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}

	if _, ipnet, err := net.ParseCIDR(s); err == nil {
		return Target{Raw: raw, Host: ipnet.String(), Kind: TargetCIDR}, nil
	}

	// Not a CIDR, so a slash only ever introduces a URL path.
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}

	// Strip a port if one is present. Bracketed IPv6 goes through
	// SplitHostPort; bare IPv6 parses directly below.
	if h, _, err := net.SplitHostPort(s); err == nil {
		s = h
	}
	s = strings.TrimSuffix(s, ".")

	if ip := net.ParseIP(s); ip != nil {
		return Target{Raw: raw, Host: ip.String(), Kind: TargetIP}, nil
	}

	if !validHostname(s) {
		return Target{}, &Error{
			Op:  "domain.NormalizeTarget",
			Msg: fmt.Sprintf("invalid target %q", raw),
			Err: ErrConfiguration,
		}
	}
	return Target{Raw: raw, Host: s, Kind: TargetHostname}, nil
}

// NormalizeTargets canonicalizes and deduplicates a target list,
// preserving first-seen order.
func NormalizeTargets(raws []string) ([]Target, error) {
	seen := make(map[string]struct{}, len(raws))
	out := make([]Target, 0, len(raws))
	for _, raw := range raws {
		t, err := NormalizeTarget(raw)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[t.Key()]; ok {
			continue
		}
		seen[t.Key()] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

func validHostname(s string) bool {
	if s == "" || len(s) > 253 {
		return false
	}
	for _, label := range strings.Split(s, ".") {
		if !validLabel(label) {
			return false
		}
	}
	return true
}

func validLabel(label string) bool {
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
	return true
}
