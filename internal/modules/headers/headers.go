// Package headers audits the HTTP security response headers of a
// target endpoint.
package headers

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"bytemomo/moray/internal/domain"
	"bytemomo/moray/internal/module"
	"bytemomo/moray/internal/modules/shared"
)

// audited is the header checklist, in report order.
var audited = []string{
	"X-Frame-Options",
	"X-XSS-Protection",
	"X-Content-Type-Options",
	"Strict-Transport-Security",
	"Content-Security-Policy",
	"Referrer-Policy",
}

// Analyzer is the security header audit module.
type Analyzer struct {
	limiter module.Limiter
	log     *logrus.Entry
}

// New builds the header analyzer.
func New(deps module.Deps) module.Prober {
	return &Analyzer{limiter: deps.Limiter, log: deps.Log.WithField("module", domain.ModuleHeaders)}
}

func (a *Analyzer) Kind() domain.ModuleKind { return domain.ModuleHeaders }

// Probe issues one GET and reports the state of every audited header,
// present or missing, plus any Server disclosure.
func (a *Analyzer) Probe(ctx context.Context, target domain.Target, opts domain.ModuleOptions) domain.ModuleResult {
	start := time.Now()
	res := domain.ModuleResult{Module: a.Kind(), Target: target}

	if target.Kind == domain.TargetCIDR {
		res.Status = domain.StatusSuccess
		res.Duration = time.Since(start)
		return res
	}

	client := shared.NewHTTPClient(opts.HTTPTimeout)
	resp, err := a.get(ctx, client, target, opts.UserAgent)
	if err != nil {
		res.Status = shared.Outcome(ctx, domain.StatusFailed)
		res.Err = err.Error()
		res.Duration = time.Since(start)
		return res
	}
	resp.Body.Close()

	res.Findings = audit(resp.Header)
	res.Status = domain.StatusSuccess
	res.Duration = time.Since(start)
	return res
}

// audit reports every checklist header, present or missing, plus any
// Server disclosure.
func audit(h http.Header) []domain.Finding {
	var out []domain.Finding
	for _, name := range audited {
		v := h.Get(name)
		out = append(out, domain.SecurityHeader{
			Header:  name,
			Value:   v,
			Missing: v == "",
		})
	}
	if server := h.Get("Server"); server != "" {
		out = append(out, domain.SecurityHeader{Header: "Server", Value: server})
	}
	return out
}

func (a *Analyzer) get(ctx context.Context, client *http.Client, target domain.Target, ua string) (*http.Response, error) {
	if err := a.limiter.Acquire(ctx, target.Key(), 1); err != nil {
		return nil, err
	}
	resp, err := shared.Get(ctx, client, "https://"+target.Host, ua, nil)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	if err := a.limiter.Acquire(ctx, target.Key(), 1); err != nil {
		return nil, err
	}
	return shared.Get(ctx, client, "http://"+target.Host, ua, nil)
}
