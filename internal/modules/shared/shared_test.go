package shared

import (
	"context"
	"testing"
	"time"

	"bytemomo/moray/internal/domain"
)

func TestInZone(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name, apex string
		want       bool
	}{
		{"example.com", "example.com", true},
		{"api.example.com", "example.com", true},
		{"deep.api.example.com", "example.com", true},
		{"API.Example.COM.", "example.com", true},
		{"notexample.com", "example.com", false},
		{"example.com.evil.org", "example.com", false},
	}
	for _, tc := range cases {
		if got := InZone(tc.name, tc.apex); got != tc.want {
			t.Errorf("InZone(%q, %q) = %v, want %v", tc.name, tc.apex, got, tc.want)
		}
	}
}

func TestCanonicalHost(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"*.Example.COM.":    "example.com",
		" api.example.com ": "api.example.com",
		"example.com":       "example.com",
	}
	for in, want := range cases {
		if got := CanonicalHost(in); got != want {
			t.Errorf("CanonicalHost(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidSubdomain(t *testing.T) {
	t.Parallel()

	valid := []string{"api.example.com", "a-b.example.com", "x_1.example.com", "*.example.com"}
	for _, s := range valid {
		if !ValidSubdomain(s) {
			t.Errorf("ValidSubdomain(%q) = false, want true", s)
		}
	}

	invalid := []string{"", "a..b.example.com", "-bad.example.com", "spa ce.example.com", "héllo.example.com"}
	for _, s := range invalid {
		if ValidSubdomain(s) {
			t.Errorf("ValidSubdomain(%q) = true, want false", s)
		}
	}
}

func TestOutcome(t *testing.T) {
	t.Parallel()

	if got := Outcome(context.Background(), domain.StatusFailed); got != domain.StatusFailed {
		t.Errorf("live context: got %q, want fallback", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := Outcome(ctx, domain.StatusFailed); got != domain.StatusTimedOut {
		t.Errorf("cancelled context: got %q, want timed_out", got)
	}
}

func TestRemaining(t *testing.T) {
	t.Parallel()

	def := 5 * time.Second
	if got := Remaining(context.Background(), def); got != def {
		t.Errorf("no deadline: got %v, want %v", got, def)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got := Remaining(ctx, def)
	if got <= 0 || got > time.Second {
		t.Errorf("deadline-bound context: got %v, want at most 1s", got)
	}

	short, cancel2 := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel2()
	time.Sleep(5 * time.Millisecond)
	if got := Remaining(short, def); got <= 0 {
		t.Errorf("expired context must still return a positive duration, got %v", got)
	}
}
