// Package portscan probes a configured port set with bounded connect
// attempts. Concurrency inside one sweep is capped by a per-module
// worker limit; the shared rate limiter independently bounds the
// absolute connection rate.
package portscan

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"bytemomo/moray/internal/domain"
	"bytemomo/moray/internal/module"
	"bytemomo/moray/internal/modules/shared"
)

const (
	defaultWorkers = 50
	connectTimeout = 2 * time.Second
	bannerTimeout  = 800 * time.Millisecond
	bannerBytes    = 256
)

// defaultPorts is the compact common-service sweep used when the scan
// config doesn't name ports explicitly.
var defaultPorts = []int{
	21, 22, 23, 25, 53, 80, 110, 111, 135, 139, 143, 443, 445,
	465, 587, 631, 873, 993, 995, 1433, 1521, 1723, 2049, 3306,
	3389, 5432, 5900, 5984, 6379, 8000, 8080, 8443, 9200, 11211,
	27017,
}

// Scanner is the TCP connect port sweep module.
type Scanner struct {
	limiter module.Limiter
	log     *logrus.Entry
}

// New builds the port scanner.
func New(deps module.Deps) module.Prober {
	return &Scanner{limiter: deps.Limiter, log: deps.Log.WithField("module", domain.ModulePortScan)}
}

func (s *Scanner) Kind() domain.ModuleKind { return domain.ModulePortScan }

// Probe sweeps the configured ports. A refused or unreachable port is
// an ordinary non-finding, not a failure.
func (s *Scanner) Probe(ctx context.Context, target domain.Target, opts domain.ModuleOptions) domain.ModuleResult {
	start := time.Now()
	res := domain.ModuleResult{Module: s.Kind(), Target: target}

	if strings.EqualFold(opts.PortStrategy, "nmap") {
		return s.nmapSweep(ctx, target, opts)
	}
	if target.Kind == domain.TargetCIDR {
		res.Status = domain.StatusFailed
		res.Err = "connect sweep does not expand CIDR targets; set port_strategy: nmap"
		return res
	}

	ports := opts.Ports
	if len(ports) == 0 {
		ports = defaultPorts
	}
	workers := opts.PortWorkers
	if workers < 1 {
		workers = defaultWorkers
	}

	var (
		mu          sync.Mutex
		open        []domain.OpenPort
		rateLimited int
	)
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

sweep:
	for _, p := range ports {
		select {
		case <-ctx.Done():
			break sweep
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := s.limiter.Acquire(ctx, target.Key(), 1); err != nil {
				if errors.Is(err, domain.ErrRateLimit) {
					mu.Lock()
					rateLimited++
					mu.Unlock()
				}
				return
			}
			if f, ok := s.probePort(ctx, target.Host, port, opts.BannerGrab); ok {
				mu.Lock()
				open = append(open, f)
				mu.Unlock()
			}
		}(p)
	}
	wg.Wait()

	sort.Slice(open, func(i, j int) bool { return open[i].Port < open[j].Port })
	res.Findings = make([]domain.Finding, 0, len(open))
	for _, f := range open {
		res.Findings = append(res.Findings, f)
	}
	res.Duration = time.Since(start)

	switch {
	case ctx.Err() != nil:
		res.Status = domain.StatusTimedOut
		res.Err = ctx.Err().Error()
	case rateLimited > 0:
		res.Status = domain.StatusPartialSuccess
		res.Err = fmt.Sprintf("%d ports skipped: rate limit wait exceeded", rateLimited)
	default:
		res.Status = domain.StatusSuccess
	}
	return res
}

// probePort returns a finding only when the port accepted the
// connection; everything else is silence.
func (s *Scanner) probePort(ctx context.Context, host string, port int, grabBanner bool) (domain.OpenPort, bool) {
	dctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return domain.OpenPort{}, false
	}
	defer conn.Close()

	f := domain.OpenPort{Port: port, Protocol: "tcp", Service: serviceName(port)}
	if grabBanner {
		f.Banner = readBanner(ctx, conn)
	}
	return f, true
}

func readBanner(ctx context.Context, conn net.Conn) string {
	deadline := time.Now().Add(shared.Remaining(ctx, bannerTimeout))
	if err := conn.SetReadDeadline(deadline); err != nil {
		return ""
	}
	buf := make([]byte, bannerBytes)
	n, err := conn.Read(buf)
	if err != nil || n == 0 {
		return ""
	}
	return strings.TrimSpace(strings.ToValidUTF8(string(buf[:n]), ""))
}
