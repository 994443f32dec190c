package portscan

import (
	"context"
	"io"
	"net"
	"strconv"
	"testing"

	"github.com/sirupsen/logrus"

	"bytemomo/moray/internal/domain"
	"bytemomo/moray/internal/module"
)

type allowLimiter struct{}

func (allowLimiter) Acquire(context.Context, string, int) error { return nil }

type denyLimiter struct{}

func (denyLimiter) Acquire(context.Context, string, int) error {
	return domain.E("ratelimit.Acquire", "wait exceeded", domain.ErrRateLimit)
}

func testDeps(l module.Limiter) module.Deps {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return module.Deps{Limiter: l, Log: logrus.NewEntry(logger)}
}

func localTarget() domain.Target {
	return domain.Target{Raw: "127.0.0.1", Host: "127.0.0.1", Kind: domain.TargetIP}
}

// listenPort opens a listener on an ephemeral port and returns the
// port number. close it to get a port that refuses connections.
func listenPort(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	return ln, port
}

func TestProbeFindsOpenPort(t *testing.T) {
	t.Parallel()

	ln, openPort := listenPort(t)
	defer ln.Close()

	closedLn, closedPort := listenPort(t)
	closedLn.Close()

	s := New(testDeps(allowLimiter{}))
	res := s.Probe(context.Background(), localTarget(), domain.ModuleOptions{
		Ports: []int{openPort, closedPort},
	})

	if res.Status != domain.StatusSuccess {
		t.Fatalf("expected success, got %q (%s)", res.Status, res.Err)
	}
	if len(res.Findings) != 1 {
		t.Fatalf("expected exactly the open port, got %d findings", len(res.Findings))
	}
	f := res.Findings[0].(domain.OpenPort)
	if f.Port != openPort || f.Protocol != "tcp" {
		t.Errorf("unexpected finding %+v", f)
	}
}

func TestProbeGrabsBanner(t *testing.T) {
	t.Parallel()

	ln, port := listenPort(t)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Write([]byte("SSH-2.0-testserver\r\n"))
			conn.Close()
		}
	}()

	s := New(testDeps(allowLimiter{}))
	res := s.Probe(context.Background(), localTarget(), domain.ModuleOptions{
		Ports:      []int{port},
		BannerGrab: true,
	})

	if len(res.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(res.Findings))
	}
	f := res.Findings[0].(domain.OpenPort)
	if f.Banner != "SSH-2.0-testserver" {
		t.Errorf("banner = %q, want SSH greeting", f.Banner)
	}
}

func TestProbeReportsRateLimitedSweepAsPartial(t *testing.T) {
	t.Parallel()

	s := New(testDeps(denyLimiter{}))
	res := s.Probe(context.Background(), localTarget(), domain.ModuleOptions{
		Ports: []int{80, 443},
	})

	if res.Status != domain.StatusPartialSuccess {
		t.Fatalf("expected partial success, got %q", res.Status)
	}
	if len(res.Findings) != 0 {
		t.Errorf("expected no findings, got %d", len(res.Findings))
	}
	if res.Err == "" {
		t.Error("expected an explanation of the skipped ports")
	}
}

func TestProbeRejectsCIDRForConnectSweep(t *testing.T) {
	t.Parallel()

	s := New(testDeps(allowLimiter{}))
	res := s.Probe(context.Background(), domain.Target{Host: "10.0.0.0/24", Kind: domain.TargetCIDR}, domain.ModuleOptions{})

	if res.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %q", res.Status)
	}
}

func TestProbeTimesOut(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(testDeps(allowLimiter{}))
	res := s.Probe(ctx, localTarget(), domain.ModuleOptions{Ports: []int{80}})

	if res.Status != domain.StatusTimedOut {
		t.Fatalf("expected timed_out for expired context, got %q", res.Status)
	}
}

func TestServiceName(t *testing.T) {
	t.Parallel()

	if got := serviceName(22); got != "ssh" {
		t.Errorf("serviceName(22) = %q, want ssh", got)
	}
	if got := serviceName(49999); got != "" {
		t.Errorf("serviceName(49999) = %q, want empty", got)
	}
}
