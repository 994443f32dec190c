// Package wafdetect identifies web application firewalls from the
// response to a mildly suspicious request.
package wafdetect

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"bytemomo/moray/internal/domain"
	"bytemomo/moray/internal/module"
	"bytemomo/moray/internal/modules/shared"
)

// probeHeaders nudge header-inspecting WAFs into identifying
// themselves.
var probeHeaders = map[string]string{
	"X-Forwarded-For":  "127.0.0.1",
	"X-Remote-IP":      "127.0.0.1",
	"X-Originating-IP": "127.0.0.1",
}

// wafSignatures lists the header/cookie markers each product leaves on
// responses.
var wafSignatures = []struct {
	name    string
	markers []string
}{
	{"Cloudflare", []string{"cloudflare", "__cfduid", "cf-ray", "cf-cache-status"}},
	{"AWS WAF", []string{"x-amzn-requestid", "x-amz-cf-id", "x-amz-id"}},
	{"Akamai", []string{"akamai", "ak_bmsc", "bm_sz"}},
	{"Imperva", []string{"incap_ses", "_incapsula_version", "visid_incap"}},
	{"F5 BIG-IP", []string{"bigip", "bigipserver", "f5_st"}},
}

// Detector is the WAF detection module.
type Detector struct {
	limiter module.Limiter
	log     *logrus.Entry
}

// New builds the WAF detector.
func New(deps module.Deps) module.Prober {
	return &Detector{limiter: deps.Limiter, log: deps.Log.WithField("module", domain.ModuleWAFDetect)}
}

func (d *Detector) Kind() domain.ModuleKind { return domain.ModuleWAFDetect }

// Probe issues one request and matches the signature table against
// response header names, header values and cookies. No WAF is an
// ordinary empty result.
func (d *Detector) Probe(ctx context.Context, target domain.Target, opts domain.ModuleOptions) domain.ModuleResult {
	start := time.Now()
	res := domain.ModuleResult{Module: d.Kind(), Target: target}

	if target.Kind == domain.TargetCIDR {
		res.Status = domain.StatusSuccess
		res.Duration = time.Since(start)
		return res
	}

	if err := d.limiter.Acquire(ctx, target.Key(), 1); err != nil {
		res.Status = shared.Outcome(ctx, domain.StatusFailed)
		res.Err = err.Error()
		res.Duration = time.Since(start)
		return res
	}

	client := shared.NewHTTPClient(opts.HTTPTimeout)
	resp, err := shared.Get(ctx, client, "https://"+target.Host, opts.UserAgent, probeHeaders)
	if err != nil {
		if ctx.Err() == nil {
			if err2 := d.limiter.Acquire(ctx, target.Key(), 1); err2 == nil {
				resp, err = shared.Get(ctx, client, "http://"+target.Host, opts.UserAgent, probeHeaders)
			}
		}
		if err != nil || resp == nil {
			res.Status = shared.Outcome(ctx, domain.StatusFailed)
			if err != nil {
				res.Err = err.Error()
			}
			res.Duration = time.Since(start)
			return res
		}
	}
	defer resp.Body.Close()

	res.Findings = detect(resp)
	res.Status = domain.StatusSuccess
	res.Duration = time.Since(start)
	return res
}

// detect matches the signature table against response header names,
// header values and cookie names.
func detect(resp *http.Response) []domain.Finding {
	var haystack strings.Builder
	for name, values := range resp.Header {
		haystack.WriteString(strings.ToLower(name))
		haystack.WriteString(": ")
		haystack.WriteString(strings.ToLower(strings.Join(values, " ")))
		haystack.WriteString("\n")
	}
	for _, c := range resp.Cookies() {
		haystack.WriteString(strings.ToLower(c.Name))
		haystack.WriteString("\n")
	}
	text := haystack.String()

	var out []domain.Finding
	for _, sig := range wafSignatures {
		for _, marker := range sig.markers {
			if strings.Contains(text, marker) {
				out = append(out, domain.WAFProduct{Name: sig.name, Evidence: marker})
				break
			}
		}
	}
	return out
}
