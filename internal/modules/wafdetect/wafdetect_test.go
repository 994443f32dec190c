package wafdetect

import (
	"net/http"
	"testing"

	"bytemomo/moray/internal/domain"
)

func responseWith(headers map[string]string) *http.Response {
	resp := &http.Response{Header: http.Header{}}
	for k, v := range headers {
		resp.Header.Add(k, v)
	}
	return resp
}

func TestDetectHeaderMarker(t *testing.T) {
	t.Parallel()

	findings := detect(responseWith(map[string]string{
		"CF-RAY": "7d0f2a-IAD",
		"Server": "cloudflare",
	}))

	if len(findings) != 1 {
		t.Fatalf("expected one product per detected WAF, got %d", len(findings))
	}
	waf := findings[0].(domain.WAFProduct)
	if waf.Name != "Cloudflare" {
		t.Errorf("name = %q, want Cloudflare", waf.Name)
	}
	if waf.Evidence == "" {
		t.Error("expected the matched marker as evidence")
	}
}

func TestDetectCookieMarker(t *testing.T) {
	t.Parallel()

	findings := detect(responseWith(map[string]string{
		"Set-Cookie": "incap_ses_1=xyz; Path=/",
	}))

	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if waf := findings[0].(domain.WAFProduct); waf.Name != "Imperva" {
		t.Errorf("name = %q, want Imperva", waf.Name)
	}
}

func TestDetectMultipleProducts(t *testing.T) {
	t.Parallel()

	findings := detect(responseWith(map[string]string{
		"CF-Cache-Status":  "HIT",
		"X-Amzn-RequestId": "abc-123",
	}))

	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d: %v", len(findings), findings)
	}
}

func TestDetectNothing(t *testing.T) {
	t.Parallel()

	findings := detect(responseWith(map[string]string{
		"Server":       "nginx",
		"Content-Type": "text/html",
	}))
	if len(findings) != 0 {
		t.Errorf("expected no findings, got %v", findings)
	}
}
