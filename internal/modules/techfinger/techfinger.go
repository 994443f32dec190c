// Package techfinger classifies the technologies behind an HTTP
// endpoint from response signatures: headers, cookies, markup, script
// sources and meta tags.
package techfinger

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"bytemomo/moray/internal/domain"
	"bytemomo/moray/internal/module"
	"bytemomo/moray/internal/modules/shared"
)

const maxBodyBytes = 2 << 20

// Fingerprinter is the HTTP technology fingerprinting module.
type Fingerprinter struct {
	limiter module.Limiter
	log     *logrus.Entry
}

// New builds the technology fingerprinter.
func New(deps module.Deps) module.Prober {
	return &Fingerprinter{limiter: deps.Limiter, log: deps.Log.WithField("module", domain.ModuleTechFinger)}
}

func (f *Fingerprinter) Kind() domain.ModuleKind { return domain.ModuleTechFinger }

// Probe fetches the target over HTTPS (falling back to HTTP) and
// matches the signature table. A match backed by a single weak
// signature is reported as tentative.
func (f *Fingerprinter) Probe(ctx context.Context, target domain.Target, opts domain.ModuleOptions) domain.ModuleResult {
	start := time.Now()
	res := domain.ModuleResult{Module: f.Kind(), Target: target}

	if target.Kind == domain.TargetCIDR {
		res.Status = domain.StatusSuccess
		res.Duration = time.Since(start)
		return res
	}

	client := shared.NewHTTPClient(opts.HTTPTimeout)
	resp, err := f.get(ctx, client, target, opts.UserAgent)
	if err != nil {
		res.Status = shared.Outcome(ctx, domain.StatusFailed)
		res.Err = err.Error()
		res.Duration = time.Since(start)
		return res
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil && len(body) == 0 {
		res.Status = shared.Outcome(ctx, domain.StatusFailed)
		res.Err = err.Error()
		res.Duration = time.Since(start)
		return res
	}

	page := parsePage(body)
	res.Findings = match(resp, page)
	res.Status = domain.StatusSuccess
	res.Duration = time.Since(start)
	return res
}

// get prefers HTTPS; plain HTTP is the fallback, not an extra probe.
func (f *Fingerprinter) get(ctx context.Context, client *http.Client, target domain.Target, ua string) (*http.Response, error) {
	if err := f.limiter.Acquire(ctx, target.Key(), 1); err != nil {
		return nil, err
	}
	resp, err := shared.Get(ctx, client, "https://"+target.Host, ua, nil)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	if err := f.limiter.Acquire(ctx, target.Key(), 1); err != nil {
		return nil, err
	}
	return shared.Get(ctx, client, "http://"+target.Host, ua, nil)
}

// page is the pre-chewed response document.
type page struct {
	content string
	scripts []string
	metas   []string
}

func parsePage(body []byte) page {
	p := page{content: string(body)}

	doc, err := html.Parse(strings.NewReader(p.content))
	if err != nil {
		return p
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script":
				for _, attr := range n.Attr {
					if attr.Key == "src" && attr.Val != "" {
						p.scripts = append(p.scripts, attr.Val)
					}
				}
			case "meta":
				var parts []string
				for _, attr := range n.Attr {
					parts = append(parts, attr.Key+"="+attr.Val)
				}
				p.metas = append(p.metas, strings.Join(parts, " "))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return p
}

func match(resp *http.Response, p page) []domain.Finding {
	var cookieText strings.Builder
	for _, c := range resp.Cookies() {
		cookieText.WriteString(c.Name)
		cookieText.WriteString("=")
		cookieText.WriteString(c.Value)
		cookieText.WriteString("; ")
	}

	var out []domain.Finding
	for _, tech := range signatures {
		hits := 0
		strong := false
		var version, evidence string

		for _, sig := range tech.sigs {
			matched, ev, ver := evaluate(sig, resp, p, cookieText.String())
			if !matched {
				continue
			}
			hits++
			if sig.loc == locHeader || sig.loc == locCookie {
				strong = true
			}
			if evidence == "" {
				evidence = ev
			}
			if version == "" {
				version = ver
			}
		}
		if hits == 0 {
			continue
		}

		confidence := "tentative"
		if strong || hits >= 2 {
			confidence = "confirmed"
		}
		out = append(out, domain.Technology{
			Name:       tech.name,
			Version:    version,
			Category:   tech.category,
			Evidence:   evidence,
			Confidence: confidence,
		})
	}
	return out
}

func evaluate(sig signature, resp *http.Response, p page, cookies string) (matched bool, evidence, version string) {
	switch sig.loc {
	case locHeader:
		if sig.header != "" {
			v := resp.Header.Get(sig.header)
			if m := sig.re.FindStringSubmatch(v); m != nil {
				return true, fmt.Sprintf("header %s: %s", sig.header, v), capture(m)
			}
			return false, "", ""
		}
		for name, values := range resp.Header {
			joined := strings.Join(values, " ")
			if m := sig.re.FindStringSubmatch(name + ": " + joined); m != nil {
				return true, fmt.Sprintf("header %s: %s", name, joined), capture(m)
			}
		}
	case locCookie:
		if sig.re.MatchString(cookies) {
			return true, "cookie " + sig.re.FindString(cookies), ""
		}
	case locContent:
		if loc := sig.re.FindString(p.content); loc != "" {
			return true, "body: " + loc, ""
		}
	case locScript:
		for _, src := range p.scripts {
			if sig.re.MatchString(src) {
				return true, "script src " + src, ""
			}
		}
	case locMeta:
		for _, meta := range p.metas {
			if sig.re.MatchString(meta) {
				return true, "meta " + meta, ""
			}
		}
	}
	return false, "", ""
}

func capture(m []string) string {
	if len(m) > 1 {
		return m[1]
	}
	return ""
}
