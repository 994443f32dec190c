// Package whois performs one registrar lookup per target and extracts
// the registration fields. Registrars throttle aggressively, so the
// single request carries extra weight on the shared limiter.
package whois

import (
	"context"
	"regexp"
	"strings"
	"time"

	likwhois "github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
	"github.com/sirupsen/logrus"

	"bytemomo/moray/internal/domain"
	"bytemomo/moray/internal/module"
	"bytemomo/moray/internal/modules/shared"
)

// acquireWeight makes one WHOIS query cost two tokens.
const acquireWeight = 2

const defaultTimeout = 15 * time.Second

// Scanner is the WHOIS lookup module.
type Scanner struct {
	limiter module.Limiter
	log     *logrus.Entry
}

// New builds the WHOIS scanner.
func New(deps module.Deps) module.Prober {
	return &Scanner{limiter: deps.Limiter, log: deps.Log.WithField("module", domain.ModuleWhois)}
}

func (s *Scanner) Kind() domain.ModuleKind { return domain.ModuleWhois }

// Probe issues a single request/response. No reachable WHOIS server is
// a Failed result, unlike the port scanner's silent closed ports.
func (s *Scanner) Probe(ctx context.Context, target domain.Target, opts domain.ModuleOptions) domain.ModuleResult {
	start := time.Now()
	res := domain.ModuleResult{Module: s.Kind(), Target: target}

	if target.Kind == domain.TargetCIDR {
		res.Status = domain.StatusSuccess
		res.Duration = time.Since(start)
		return res
	}

	if err := s.limiter.Acquire(ctx, target.Key(), acquireWeight); err != nil {
		res.Status = shared.Outcome(ctx, domain.StatusFailed)
		res.Err = err.Error()
		res.Duration = time.Since(start)
		return res
	}

	client := likwhois.NewClient()
	client.SetTimeout(shared.Remaining(ctx, defaultTimeout))

	raw, err := client.Whois(target.Host)
	res.Duration = time.Since(start)
	if err != nil {
		res.Status = shared.Outcome(ctx, domain.StatusFailed)
		res.Err = err.Error()
		return res
	}

	parsed, err := whoisparser.Parse(raw)
	if err != nil {
		// IP and registry blocks don't parse as domain records; fall
		// back to scraping the interesting keys.
		res.Findings = scrapeFields(raw)
		if len(res.Findings) == 0 {
			res.Status = domain.StatusFailed
			res.Err = "unparseable whois response: " + err.Error()
			return res
		}
		res.Status = domain.StatusPartialSuccess
		res.Err = "structured parse failed, raw fields scraped"
		return res
	}

	res.Findings = parsedFields(parsed)
	res.Status = domain.StatusSuccess
	return res
}

func parsedFields(info whoisparser.WhoisInfo) []domain.Finding {
	var out []domain.Finding
	add := func(field, value string) {
		value = strings.TrimSpace(value)
		if value != "" {
			out = append(out, domain.WhoisField{Field: field, Value: value})
		}
	}

	if d := info.Domain; d != nil {
		add("domain", d.Domain)
		add("created", d.CreatedDate)
		add("updated", d.UpdatedDate)
		add("expires", d.ExpirationDate)
		add("dnssec", dnssec(d.DNSSec))
		for _, ns := range d.NameServers {
			add("name_server", strings.ToLower(ns))
		}
		for _, st := range d.Status {
			add("status", st)
		}
	}
	if r := info.Registrar; r != nil {
		add("registrar", r.Name)
	}
	if r := info.Registrant; r != nil {
		add("registrant_org", r.Organization)
		add("registrant_country", r.Country)
		add("registrant_email", r.Email)
	}
	return out
}

func dnssec(enabled bool) string {
	if enabled {
		return "signed"
	}
	return "unsigned"
}

// scrapePatterns pulls the handful of useful keys out of registry
// responses the parser can't handle (IP allocations, odd TLDs).
var scrapePatterns = []struct {
	field string
	re    *regexp.Regexp
}{
	{"netname", regexp.MustCompile(`(?im)^netname:\s*(.+)$`)},
	{"org", regexp.MustCompile(`(?im)^(?:org|org-name|orgname|organi[sz]ation):\s*(.+)$`)},
	{"country", regexp.MustCompile(`(?im)^country:\s*(.+)$`)},
	{"cidr", regexp.MustCompile(`(?im)^cidr:\s*(.+)$`)},
	{"registrar", regexp.MustCompile(`(?im)^registrar:\s*(.+)$`)},
}

func scrapeFields(raw string) []domain.Finding {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	seen := make(map[string]struct{})

	var out []domain.Finding
	for _, p := range scrapePatterns {
		field := p.field
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			value := strings.TrimSpace(m[1])
			if value == "" {
				continue
			}
			key := field + "=" + value
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, domain.WhoisField{Field: field, Value: value})
		}
	}
	return out
}
