package portscan

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"

	"bytemomo/moray/internal/domain"
)

// nmapSweep delegates the sweep to the nmap library. The shared budget
// stays honest: one token is acquired per scanned port up front, since
// nmap batches the probes itself.
func (s *Scanner) nmapSweep(ctx context.Context, target domain.Target, opts domain.ModuleOptions) domain.ModuleResult {
	start := time.Now()
	res := domain.ModuleResult{Module: s.Kind(), Target: target}

	ports := opts.Ports
	if len(ports) == 0 {
		ports = defaultPorts
	}
	for range ports {
		if err := s.limiter.Acquire(ctx, target.Key(), 1); err != nil {
			res.Duration = time.Since(start)
			if errors.Is(err, domain.ErrRateLimit) {
				res.Status = domain.StatusFailed
				res.Err = "rate limit wait exceeded before sweep"
			} else {
				res.Status = domain.StatusTimedOut
				res.Err = err.Error()
			}
			return res
		}
	}

	nmapOpts := []nmap.Option{
		nmap.WithTargets(target.Host),
		nmap.WithPorts(joinPorts(ports)),
		nmap.WithOpenOnly(),
		nmap.WithSkipHostDiscovery(),
		nmap.WithDisabledDNSResolution(),
	}
	if opts.BannerGrab {
		nmapOpts = append(nmapOpts, nmap.WithServiceInfo(), nmap.WithVersionLight())
	}

	scanner, err := nmap.NewScanner(ctx, nmapOpts...)
	if err != nil {
		res.Status = domain.StatusFailed
		res.Err = "create nmap scanner: " + err.Error()
		res.Duration = time.Since(start)
		return res
	}

	result, warnings, err := scanner.Run()
	res.Duration = time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			res.Status = domain.StatusTimedOut
		} else {
			res.Status = domain.StatusFailed
		}
		res.Err = err.Error()
		return res
	}
	if warnings != nil && len(*warnings) > 0 {
		s.log.WithField("warnings", *warnings).Debug("nmap finished with warnings")
	}

	for _, host := range result.Hosts {
		for _, p := range host.Ports {
			if p.State.State != "open" {
				continue
			}
			f := domain.OpenPort{
				Port:     int(p.ID),
				Protocol: p.Protocol,
				Service:  p.Service.Name,
			}
			if v := strings.TrimSpace(p.Service.Product + " " + p.Service.Version); v != "" {
				f.Banner = v
			}
			if f.Service == "" {
				f.Service = serviceName(f.Port)
			}
			res.Findings = append(res.Findings, f)
		}
	}
	res.Status = domain.StatusSuccess
	return res
}

func joinPorts(ports []int) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}
