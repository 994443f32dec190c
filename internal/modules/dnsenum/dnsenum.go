// Package dnsenum sweeps the common DNS record types for a domain and
// attempts a zone transfer against its name servers. Every query is a
// separate rate-gated unit.
package dnsenum

import (
	"context"
	"fmt"
	"strings"
	"time"

	mdns "github.com/miekg/dns"
	"github.com/sirupsen/logrus"

	"bytemomo/moray/internal/domain"
	"bytemomo/moray/internal/module"
	"bytemomo/moray/internal/modules/shared"
)

const queryTimeout = 3 * time.Second

// defaultResolvers are used when the scan config names none.
var defaultResolvers = []string{"8.8.8.8:53", "1.1.1.1:53"}

var recordTypes = []struct {
	name string
	code uint16
}{
	{"A", mdns.TypeA},
	{"AAAA", mdns.TypeAAAA},
	{"CNAME", mdns.TypeCNAME},
	{"MX", mdns.TypeMX},
	{"NS", mdns.TypeNS},
	{"TXT", mdns.TypeTXT},
	{"SOA", mdns.TypeSOA},
}

// Enumerator is the DNS record sweep module.
type Enumerator struct {
	limiter module.Limiter
	log     *logrus.Entry
}

// New builds the DNS enumerator.
func New(deps module.Deps) module.Prober {
	return &Enumerator{limiter: deps.Limiter, log: deps.Log.WithField("module", domain.ModuleDnsEnum)}
}

func (e *Enumerator) Kind() domain.ModuleKind { return domain.ModuleDnsEnum }

// Probe resolves every record type in turn. NXDOMAIN and empty answers
// are ordinary non-findings; only transport-level failures count
// against the module.
func (e *Enumerator) Probe(ctx context.Context, target domain.Target, opts domain.ModuleOptions) domain.ModuleResult {
	start := time.Now()
	res := domain.ModuleResult{Module: e.Kind(), Target: target}

	resolvers := normalizeResolvers(opts.Resolvers)
	client := &mdns.Client{Timeout: queryTimeout}

	if target.Kind == domain.TargetCIDR {
		res.Status = domain.StatusSuccess
		res.Duration = time.Since(start)
		return res
	}
	if target.Kind == domain.TargetIP {
		return e.probePTR(ctx, client, resolvers, target, start)
	}

	var (
		queries  int
		failures int
		nsHosts  []string
	)

	for i, rt := range recordTypes {
		if ctx.Err() != nil {
			break
		}
		if err := e.limiter.Acquire(ctx, target.Key(), 1); err != nil {
			failures++
			queries++
			continue
		}
		queries++

		answers, err := exchange(ctx, client, resolvers[i%len(resolvers)], target.Host, rt.code)
		if err != nil {
			failures++
			continue
		}
		for _, rr := range answers {
			value := recordValue(rr)
			if value == "" {
				continue
			}
			res.Findings = append(res.Findings, domain.DnsRecord{Type: rt.name, Value: value})

			if host := recordHost(rr); host != "" {
				if rt.name == "NS" {
					nsHosts = append(nsHosts, host)
				}
				if shared.InZone(host, target.Host) && shared.CanonicalHost(host) != target.Host {
					res.Findings = append(res.Findings, domain.Subdomain{
						Name:    shared.CanonicalHost(host),
						Sources: []domain.DiscoverySource{domain.SourceDns},
					})
				}
			}
		}
	}

	// Zone transfers are almost always refused; a refusal is silence,
	// a success is a batch of subdomains.
	if ctx.Err() == nil && len(nsHosts) > 0 {
		res.Findings = append(res.Findings, e.zoneTransfer(ctx, target, nsHosts)...)
	}

	res.Duration = time.Since(start)
	switch {
	case ctx.Err() != nil:
		res.Status = domain.StatusTimedOut
		res.Err = ctx.Err().Error()
	case queries > 0 && failures == queries:
		res.Status = domain.StatusFailed
		res.Err = "all record queries failed"
	case failures > 0:
		res.Status = domain.StatusPartialSuccess
		res.Err = fmt.Sprintf("%d of %d record queries failed", failures, queries)
	default:
		res.Status = domain.StatusSuccess
	}
	return res
}

func (e *Enumerator) probePTR(ctx context.Context, client *mdns.Client, resolvers []string, target domain.Target, start time.Time) domain.ModuleResult {
	res := domain.ModuleResult{Module: e.Kind(), Target: target}

	if err := e.limiter.Acquire(ctx, target.Key(), 1); err != nil {
		res.Status = shared.Outcome(ctx, domain.StatusFailed)
		res.Err = err.Error()
		res.Duration = time.Since(start)
		return res
	}

	rev, err := mdns.ReverseAddr(target.Host)
	if err != nil {
		res.Status = domain.StatusFailed
		res.Err = err.Error()
		res.Duration = time.Since(start)
		return res
	}

	m := new(mdns.Msg)
	m.SetQuestion(rev, mdns.TypePTR)
	r, _, err := client.ExchangeContext(ctx, m, resolvers[0])
	res.Duration = time.Since(start)
	if err != nil {
		res.Status = shared.Outcome(ctx, domain.StatusFailed)
		res.Err = err.Error()
		return res
	}
	for _, rr := range r.Answer {
		if ptr, ok := rr.(*mdns.PTR); ok {
			res.Findings = append(res.Findings, domain.DnsRecord{Type: "PTR", Value: shared.CanonicalHost(ptr.Ptr)})
		}
	}
	res.Status = domain.StatusSuccess
	return res
}

func (e *Enumerator) zoneTransfer(ctx context.Context, target domain.Target, nsHosts []string) []domain.Finding {
	var out []domain.Finding
	seen := make(map[string]struct{})

	for _, ns := range nsHosts {
		if ctx.Err() != nil {
			break
		}
		if err := e.limiter.Acquire(ctx, target.Key(), 1); err != nil {
			break
		}

		tr := &mdns.Transfer{
			DialTimeout: shared.Remaining(ctx, queryTimeout),
			ReadTimeout: shared.Remaining(ctx, queryTimeout),
		}
		m := new(mdns.Msg)
		m.SetAxfr(mdns.Fqdn(target.Host))

		env, err := tr.In(m, ensurePort(ns))
		if err != nil {
			continue
		}
		for en := range env {
			if en.Error != nil {
				break
			}
			for _, rr := range en.RR {
				name := shared.CanonicalHost(rr.Header().Name)
				if name == target.Host || !shared.InZone(name, target.Host) {
					continue
				}
				if _, dup := seen[name]; dup {
					continue
				}
				seen[name] = struct{}{}
				out = append(out, domain.Subdomain{
					Name:    name,
					Sources: []domain.DiscoverySource{domain.SourceDns},
				})
			}
		}
	}
	return out
}

func exchange(ctx context.Context, client *mdns.Client, resolver, host string, qtype uint16) ([]mdns.RR, error) {
	m := new(mdns.Msg)
	m.SetQuestion(mdns.Fqdn(host), qtype)
	m.RecursionDesired = true

	r, _, err := client.ExchangeContext(ctx, m, resolver)
	if err != nil {
		return nil, err
	}
	// NXDOMAIN and friends are empty answers, not errors.
	if r.Rcode != mdns.RcodeSuccess {
		return nil, nil
	}
	return r.Answer, nil
}

func recordValue(rr mdns.RR) string {
	switch v := rr.(type) {
	case *mdns.A:
		return v.A.String()
	case *mdns.AAAA:
		return v.AAAA.String()
	case *mdns.CNAME:
		return shared.CanonicalHost(v.Target)
	case *mdns.MX:
		return fmt.Sprintf("%d %s", v.Preference, shared.CanonicalHost(v.Mx))
	case *mdns.NS:
		return shared.CanonicalHost(v.Ns)
	case *mdns.TXT:
		return strings.Join(v.Txt, " ")
	case *mdns.SOA:
		return fmt.Sprintf("%s %s", shared.CanonicalHost(v.Ns), shared.CanonicalHost(v.Mbox))
	default:
		return ""
	}
}

// recordHost extracts the hostname a record points at, for subdomain
// harvesting.
func recordHost(rr mdns.RR) string {
	switch v := rr.(type) {
	case *mdns.CNAME:
		return v.Target
	case *mdns.MX:
		return v.Mx
	case *mdns.NS:
		return v.Ns
	default:
		return ""
	}
}

func normalizeResolvers(in []string) []string {
	if len(in) == 0 {
		return defaultResolvers
	}
	out := make([]string, 0, len(in))
	for _, r := range in {
		out = append(out, ensurePort(r))
	}
	return out
}

func ensurePort(addr string) string {
	if strings.Contains(addr, ":") && !strings.HasPrefix(addr, "[") {
		return addr
	}
	return addr + ":53"
}
