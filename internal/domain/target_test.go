package domain

import (
	"errors"
	"testing"
)

func TestNormalizeTarget(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		host string
		kind TargetKind
	}{
		{"Example.COM", "example.com", TargetHostname},
		{"https://example.com/login?next=/", "example.com", TargetHostname},
		{"example.com:8443", "example.com", TargetHostname},
		{"example.com.", "example.com", TargetHostname},
		{"  sub.example.com ", "sub.example.com", TargetHostname},
		{"192.168.1.10", "192.168.1.10", TargetIP},
		{"192.168.1.10:443", "192.168.1.10", TargetIP},
		{"::1", "::1", TargetIP},
		{"[::1]:8080", "::1", TargetIP},
		{"10.0.0.0/24", "10.0.0.0/24", TargetCIDR},
		{"10.0.0.17/24", "10.0.0.0/24", TargetCIDR},
	}

	for _, tc := range cases {
		got, err := NormalizeTarget(tc.raw)
		if err != nil {
			t.Errorf("NormalizeTarget(%q) returned error: %v", tc.raw, err)
			continue
		}
		if got.Host != tc.host {
			t.Errorf("NormalizeTarget(%q) host = %q, want %q", tc.raw, got.Host, tc.host)
		}
		if got.Kind != tc.kind {
			t.Errorf("NormalizeTarget(%q) kind = %q, want %q", tc.raw, got.Kind, tc.kind)
		}
		if got.Raw != tc.raw {
			t.Errorf("NormalizeTarget(%q) raw = %q, want original input", tc.raw, got.Raw)
		}
	}
}

func TestNormalizeTargetRejectsInvalid(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "   ", "-bad.example.com", "exa mple.com", "a..b"} {
		_, err := NormalizeTarget(raw)
		if err == nil {
			t.Errorf("NormalizeTarget(%q) expected error, got none", raw)
			continue
		}
		if !errors.Is(err, ErrConfiguration) {
			t.Errorf("NormalizeTarget(%q) error = %v, want ErrConfiguration", raw, err)
		}
	}
}

func TestNormalizeTargetsDeduplicates(t *testing.T) {
	t.Parallel()

	got, err := NormalizeTargets([]string{
		"example.com",
		"EXAMPLE.com",
		"https://example.com/",
		"10.0.0.1",
		"example.com:443",
	})
	if err != nil {
		t.Fatalf("NormalizeTargets returned error: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 deduplicated targets, got %d: %v", len(got), got)
	}
	if got[0].Host != "example.com" || got[1].Host != "10.0.0.1" {
		t.Errorf("expected first-seen order [example.com 10.0.0.1], got [%s %s]", got[0].Host, got[1].Host)
	}
}

func TestNormalizeTargetsStopsOnInvalid(t *testing.T) {
	t.Parallel()

	_, err := NormalizeTargets([]string{"example.com", "bad host"})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
