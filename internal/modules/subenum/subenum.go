// Package subenum discovers subdomains through certificate
// transparency logs, OSINT host search and optional wordlist brute
// force. Each sub-query is a separate rate-gated unit.
package subenum

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	mdns "github.com/miekg/dns"
	"github.com/sirupsen/logrus"

	"bytemomo/moray/internal/domain"
	"bytemomo/moray/internal/module"
	"bytemomo/moray/internal/modules/shared"
)

const (
	maxBodyBytes    = 10 << 20
	maxFetchRetries = 2
	bruteWorkers    = 20
	resolveTimeout  = 2 * time.Second
	defaultResolver = "8.8.8.8:53"
	crtShURL        = "https://crt.sh/?q=%%25.%s&output=json"
	hackerTargetURL = "https://api.hackertarget.com/hostsearch/?q=%s"
)

// Enumerator is the subdomain discovery module.
type Enumerator struct {
	limiter module.Limiter
	log     *logrus.Entry
}

// New builds the subdomain enumerator.
func New(deps module.Deps) module.Prober {
	return &Enumerator{limiter: deps.Limiter, log: deps.Log.WithField("module", domain.ModuleSubEnum)}
}

func (e *Enumerator) Kind() domain.ModuleKind { return domain.ModuleSubEnum }

// Probe runs every technique and reports the union of discoveries.
// Individual source failures degrade the result to PartialSuccess;
// only a total blackout is Failed.
func (e *Enumerator) Probe(ctx context.Context, target domain.Target, opts domain.ModuleOptions) domain.ModuleResult {
	start := time.Now()
	res := domain.ModuleResult{Module: e.Kind(), Target: target}

	if target.Kind != domain.TargetHostname {
		res.Status = domain.StatusSuccess
		res.Duration = time.Since(start)
		return res
	}

	client := shared.NewHTTPClient(opts.HTTPTimeout)
	found := make(map[string]domain.Subdomain)
	var sourcesRun, sourcesFailed int

	merge := func(name string, src domain.DiscoverySource) {
		name = shared.CanonicalHost(name)
		if name == "" || name == target.Host || !shared.InZone(name, target.Host) || !shared.ValidSubdomain(name) {
			return
		}
		f := domain.Subdomain{Name: name, Sources: []domain.DiscoverySource{src}}
		if kept, dup := found[name]; dup {
			found[name] = domain.MergeFinding(kept, f).(domain.Subdomain)
			return
		}
		found[name] = f
	}

	sourcesRun++
	if names, err := e.fromCrtSh(ctx, client, target, opts.UserAgent); err != nil {
		sourcesFailed++
		e.log.WithError(err).WithField("target", target.Key()).Debug("crt.sh lookup failed")
	} else {
		for _, n := range names {
			merge(n, domain.SourceCTLog)
		}
	}

	if ctx.Err() == nil {
		sourcesRun++
		if names, err := e.fromHackerTarget(ctx, client, target, opts.UserAgent); err != nil {
			sourcesFailed++
			e.log.WithError(err).WithField("target", target.Key()).Debug("hackertarget lookup failed")
		} else {
			for _, n := range names {
				merge(n, domain.SourceOSINT)
			}
		}
	}

	if ctx.Err() == nil && len(opts.Wordlist) > 0 {
		for _, n := range e.bruteforce(ctx, target, opts) {
			merge(n, domain.SourceBruteforce)
		}
	}

	names := make([]string, 0, len(found))
	for n := range found {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		res.Findings = append(res.Findings, found[n])
	}

	res.Duration = time.Since(start)
	switch {
	case ctx.Err() != nil:
		res.Status = domain.StatusTimedOut
		res.Err = ctx.Err().Error()
	case sourcesFailed == sourcesRun && len(res.Findings) == 0:
		res.Status = domain.StatusFailed
		res.Err = "all discovery sources failed"
	case sourcesFailed > 0:
		res.Status = domain.StatusPartialSuccess
		res.Err = fmt.Sprintf("%d of %d discovery sources failed", sourcesFailed, sourcesRun)
	default:
		res.Status = domain.StatusSuccess
	}
	return res
}

func (e *Enumerator) fromCrtSh(ctx context.Context, client *http.Client, target domain.Target, ua string) ([]string, error) {
	body, err := e.fetch(ctx, client, fmt.Sprintf(crtShURL, target.Host), target.Key(), ua)
	if err != nil {
		return nil, err
	}
	return parseCrtSh(body)
}

func parseCrtSh(body []byte) ([]string, error) {
	var entries []struct {
		NameValue string `json:"name_value"`
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("parse crt.sh response: %w", err)
	}

	var names []string
	for _, entry := range entries {
		for _, line := range strings.Split(entry.NameValue, "\n") {
			names = append(names, strings.TrimSpace(line))
		}
	}
	return names, nil
}

func (e *Enumerator) fromHackerTarget(ctx context.Context, client *http.Client, target domain.Target, ua string) ([]string, error) {
	body, err := e.fetch(ctx, client, fmt.Sprintf(hackerTargetURL, target.Host), target.Key(), ua)
	if err != nil {
		return nil, err
	}
	return parseHackerTarget(body)
}

func parseHackerTarget(body []byte) ([]string, error) {
	text := string(body)
	if strings.HasPrefix(text, "error") || strings.Contains(text, "API count exceeded") {
		return nil, fmt.Errorf("hackertarget refused the query")
	}

	var names []string
	for _, line := range strings.Split(text, "\n") {
		if host, _, ok := strings.Cut(line, ","); ok {
			names = append(names, strings.TrimSpace(host))
		}
	}
	return names, nil
}

// fetch issues one rate-gated GET, retrying transient failures with
// exponential backoff. The probe deadline cuts retries short.
func (e *Enumerator) fetch(ctx context.Context, client *http.Client, url, targetKey, ua string) ([]byte, error) {
	var body []byte
	op := func() error {
		if err := e.limiter.Acquire(ctx, targetKey, 1); err != nil {
			return backoff.Permanent(err)
		}
		resp, err := shared.Get(ctx, client, url, ua, nil)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			err = fmt.Errorf("unexpected status %d", resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxFetchRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return body, nil
}

// bruteforce resolves wordlist candidates, keeping the ones with an A
// record. Worker-bounded like the port sweep; the shared limiter still
// gates every query.
func (e *Enumerator) bruteforce(ctx context.Context, target domain.Target, opts domain.ModuleOptions) []string {
	resolver := defaultResolver
	if len(opts.Resolvers) > 0 {
		resolver = opts.Resolvers[0]
		if !strings.Contains(resolver, ":") {
			resolver += ":53"
		}
	}
	client := &mdns.Client{Timeout: resolveTimeout}

	var (
		mu    sync.Mutex
		names []string
		wg    sync.WaitGroup
	)
	sem := make(chan struct{}, bruteWorkers)

words:
	for _, word := range opts.Wordlist {
		word = strings.TrimSpace(strings.ToLower(word))
		if word == "" {
			continue
		}

		select {
		case <-ctx.Done():
			break words
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(candidate string) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := e.limiter.Acquire(ctx, target.Key(), 1); err != nil {
				return
			}
			m := new(mdns.Msg)
			m.SetQuestion(mdns.Fqdn(candidate), mdns.TypeA)
			m.RecursionDesired = true
			r, _, err := client.ExchangeContext(ctx, m, resolver)
			if err != nil || r.Rcode != mdns.RcodeSuccess || len(r.Answer) == 0 {
				return
			}
			mu.Lock()
			names = append(names, candidate)
			mu.Unlock()
		}(word + "." + target.Host)
	}
	wg.Wait()
	return names
}
