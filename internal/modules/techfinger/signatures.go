package techfinger

import "regexp"

type location int

const (
	locHeader location = iota
	locCookie
	locContent
	locScript
	locMeta
)

type signature struct {
	loc location
	// header narrows a locHeader signature to one header; empty means
	// every header value is checked.
	header string
	re     *regexp.Regexp
}

type techSig struct {
	name     string
	category string
	sigs     []signature
}

// signatures is the fingerprint table: web servers, frameworks, CMSes,
// client-side libraries, analytics and security layers.
var signatures = []techSig{
	{name: "nginx", category: "web_server", sigs: []signature{
		{loc: locHeader, header: "Server", re: regexp.MustCompile(`(?i)nginx/?([0-9.]+)?`)},
	}},
	{name: "apache", category: "web_server", sigs: []signature{
		{loc: locHeader, header: "Server", re: regexp.MustCompile(`(?i)apache/?([0-9.]+)?`)},
	}},
	{name: "iis", category: "web_server", sigs: []signature{
		{loc: locHeader, header: "Server", re: regexp.MustCompile(`(?i)iis/?([0-9.]+)?`)},
	}},
	{name: "laravel", category: "framework", sigs: []signature{
		{loc: locCookie, re: regexp.MustCompile(`(?i)laravel_session`)},
		{loc: locMeta, re: regexp.MustCompile(`(?i)csrf-token`)},
	}},
	{name: "django", category: "framework", sigs: []signature{
		{loc: locCookie, re: regexp.MustCompile(`(?i)csrftoken`)},
		{loc: locCookie, re: regexp.MustCompile(`(?i)django`)},
	}},
	{name: "rails", category: "framework", sigs: []signature{
		{loc: locCookie, re: regexp.MustCompile(`(?i)_rails`)},
		{loc: locMeta, re: regexp.MustCompile(`(?i)csrf-param`)},
	}},
	{name: "wordpress", category: "cms", sigs: []signature{
		{loc: locMeta, re: regexp.MustCompile(`(?i)generator.*wordpress`)},
		{loc: locContent, re: regexp.MustCompile(`(?i)/wp-content/`)},
		{loc: locContent, re: regexp.MustCompile(`(?i)/wp-includes/`)},
	}},
	{name: "drupal", category: "cms", sigs: []signature{
		{loc: locMeta, re: regexp.MustCompile(`(?i)generator.*drupal`)},
		{loc: locContent, re: regexp.MustCompile(`(?i)/sites/default/files`)},
	}},
	{name: "joomla", category: "cms", sigs: []signature{
		{loc: locMeta, re: regexp.MustCompile(`(?i)generator.*joomla`)},
		{loc: locContent, re: regexp.MustCompile(`(?i)/media/jui/`)},
	}},
	{name: "jquery", category: "javascript", sigs: []signature{
		{loc: locScript, re: regexp.MustCompile(`(?i)jquery[^"']*\.js`)},
		{loc: locContent, re: regexp.MustCompile(`jQuery`)},
	}},
	{name: "react", category: "javascript", sigs: []signature{
		{loc: locScript, re: regexp.MustCompile(`(?i)react[^"']*\.js`)},
		{loc: locContent, re: regexp.MustCompile(`(?i)data-reactroot|react-root`)},
	}},
	{name: "vue", category: "javascript", sigs: []signature{
		{loc: locScript, re: regexp.MustCompile(`(?i)vue[^"']*\.js`)},
		{loc: locContent, re: regexp.MustCompile(`(?i)data-v-[0-9a-f]{8}`)},
	}},
	{name: "google_analytics", category: "analytics", sigs: []signature{
		{loc: locScript, re: regexp.MustCompile(`(?i)google-analytics\.com|googletagmanager\.com`)},
		{loc: locContent, re: regexp.MustCompile(`ga\('create'`)},
	}},
	{name: "mixpanel", category: "analytics", sigs: []signature{
		{loc: locScript, re: regexp.MustCompile(`(?i)mixpanel`)},
		{loc: locContent, re: regexp.MustCompile(`(?i)mixpanel\.init`)},
	}},
	{name: "cloudflare", category: "security", sigs: []signature{
		{loc: locHeader, header: "Server", re: regexp.MustCompile(`(?i)cloudflare`)},
		{loc: locCookie, re: regexp.MustCompile(`(?i)__cfduid|__cf_bm`)},
	}},
	{name: "sucuri", category: "security", sigs: []signature{
		{loc: locHeader, re: regexp.MustCompile(`(?i)sucuri`)},
		{loc: locCookie, re: regexp.MustCompile(`(?i)sucuri`)},
	}},
}
