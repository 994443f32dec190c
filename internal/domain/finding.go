package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// FindingKind identifies the variant of a discovery.
type FindingKind string

const (
	KindOpenPort       FindingKind = "open_port"
	KindDnsRecord      FindingKind = "dns_record"
	KindSubdomain      FindingKind = "subdomain"
	KindCertificate    FindingKind = "certificate"
	KindTechnology     FindingKind = "technology"
	KindWhoisField     FindingKind = "whois_field"
	KindSecurityHeader FindingKind = "security_header"
	KindWAFProduct     FindingKind = "waf_product"
)

// Finding is a single discrete discovery emitted by a module. Findings
// are immutable values, comparable for deduplication through Key.
type Finding interface {
	Kind() FindingKind
	// Key is the semantic deduplication identity within a kind.
	Key() string
	String() string
}

// mergeable findings retain information from duplicates instead of
// discarding them (subdomains keep the union of discovery sources).
type mergeable interface {
	merge(other Finding) Finding
}

// MergeFinding combines a deduplicated finding with a newly observed
// duplicate, returning the value to keep.
func MergeFinding(kept, dup Finding) Finding {
	if m, ok := kept.(mergeable); ok {
		return m.merge(dup)
	}
	return kept
}

// DiscoverySource names the technique that surfaced a subdomain.
type DiscoverySource string

const (
	SourceDns        DiscoverySource = "dns"
	SourceCert       DiscoverySource = "cert"
	SourceCTLog      DiscoverySource = "ctlog"
	SourceOSINT      DiscoverySource = "osint"
	SourceBruteforce DiscoverySource = "bruteforce"
)

// OpenPort reports a reachable TCP or UDP port.
type OpenPort struct {
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	Service  string `json:"service,omitempty"`
	Banner   string `json:"banner,omitempty"`
}

func (f OpenPort) Kind() FindingKind { return KindOpenPort }
func (f OpenPort) Key() string       { return fmt.Sprintf("%d/%s", f.Port, f.Protocol) }
func (f OpenPort) String() string {
	if f.Service != "" {
		return fmt.Sprintf("%d/%s (%s)", f.Port, f.Protocol, f.Service)
	}
	return fmt.Sprintf("%d/%s", f.Port, f.Protocol)
}

// DnsRecord reports one resolved DNS record.
type DnsRecord struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (f DnsRecord) Kind() FindingKind { return KindDnsRecord }
func (f DnsRecord) Key() string       { return f.Type + " " + f.Value }
func (f DnsRecord) String() string    { return f.Type + " " + f.Value }

// Subdomain reports a discovered subdomain together with every
// technique that surfaced it.
type Subdomain struct {
	Name    string            `json:"name"`
	Sources []DiscoverySource `json:"sources"`
}

func (f Subdomain) Kind() FindingKind { return KindSubdomain }
func (f Subdomain) Key() string       { return strings.ToLower(strings.TrimSuffix(f.Name, ".")) }
func (f Subdomain) String() string {
	srcs := make([]string, len(f.Sources))
	for i, s := range f.Sources {
		srcs[i] = string(s)
	}
	return fmt.Sprintf("%s [%s]", f.Key(), strings.Join(srcs, ","))
}

func (f Subdomain) merge(other Finding) Finding {
	o, ok := other.(Subdomain)
	if !ok {
		return f
	}
	seen := make(map[DiscoverySource]struct{}, len(f.Sources)+len(o.Sources))
	merged := Subdomain{Name: f.Key()}
	for _, s := range append(append([]DiscoverySource{}, f.Sources...), o.Sources...) {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		merged.Sources = append(merged.Sources, s)
	}
	sort.Slice(merged.Sources, func(i, j int) bool { return merged.Sources[i] < merged.Sources[j] })
	return merged
}

// HasSource reports whether the subdomain was discovered by src.
func (f Subdomain) HasSource(src DiscoverySource) bool {
	for _, s := range f.Sources {
		if s == src {
			return true
		}
	}
	return false
}

// Certificate reports the leaf certificate presented during a TLS
// handshake, or the handshake failure when no certificate could be
// obtained.
type Certificate struct {
	Subject       string    `json:"subject,omitempty"`
	Issuer        string    `json:"issuer,omitempty"`
	SANs          []string  `json:"sans,omitempty"`
	NotBefore     time.Time `json:"not_before,omitempty"`
	NotAfter      time.Time `json:"not_after,omitempty"`
	HandshakeNote string    `json:"handshake_note,omitempty"`
}

func (f Certificate) Kind() FindingKind { return KindCertificate }
func (f Certificate) Key() string {
	if f.Subject == "" && f.HandshakeNote != "" {
		return "handshake:" + f.HandshakeNote
	}
	return f.Subject + "|" + f.Issuer + "|" + f.NotAfter.UTC().Format(time.RFC3339)
}
func (f Certificate) String() string {
	if f.HandshakeNote != "" && f.Subject == "" {
		return "handshake failed: " + f.HandshakeNote
	}
	return fmt.Sprintf("%s (issuer %s, expires %s)", f.Subject, f.Issuer, f.NotAfter.UTC().Format("2006-01-02"))
}

// Technology reports a fingerprinted product or framework.
type Technology struct {
	Name       string `json:"name"`
	Version    string `json:"version,omitempty"`
	Category   string `json:"category,omitempty"`
	Evidence   string `json:"evidence,omitempty"`
	Confidence string `json:"confidence,omitempty"`
}

func (f Technology) Kind() FindingKind { return KindTechnology }
func (f Technology) Key() string       { return strings.ToLower(f.Name) }
func (f Technology) String() string {
	if f.Version != "" {
		return f.Name + "/" + f.Version
	}
	return f.Name
}

// WhoisField reports one parsed WHOIS attribute.
type WhoisField struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (f WhoisField) Kind() FindingKind { return KindWhoisField }
func (f WhoisField) Key() string       { return f.Field + "=" + f.Value }
func (f WhoisField) String() string    { return f.Field + ": " + f.Value }

// SecurityHeader reports the state of one HTTP security header.
type SecurityHeader struct {
	Header  string `json:"header"`
	Value   string `json:"value,omitempty"`
	Missing bool   `json:"missing"`
}

func (f SecurityHeader) Kind() FindingKind { return KindSecurityHeader }
func (f SecurityHeader) Key() string       { return strings.ToLower(f.Header) }
func (f SecurityHeader) String() string {
	if f.Missing {
		return f.Header + ": not set"
	}
	return f.Header + ": " + f.Value
}

// WAFProduct reports a detected web application firewall.
type WAFProduct struct {
	Name     string `json:"name"`
	Evidence string `json:"evidence,omitempty"`
}

func (f WAFProduct) Kind() FindingKind { return KindWAFProduct }
func (f WAFProduct) Key() string       { return strings.ToLower(f.Name) }
func (f WAFProduct) String() string    { return f.Name }
