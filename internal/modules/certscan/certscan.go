// Package certscan performs a TLS handshake against the target and
// extracts the leaf certificate. A failed handshake is itself a
// finding describing the failure, not an error.
package certscan

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"bytemomo/moray/internal/domain"
	"bytemomo/moray/internal/module"
	"bytemomo/moray/internal/modules/shared"
)

const defaultTLSPort = 443

// Scanner is the TLS certificate inspection module.
type Scanner struct {
	limiter module.Limiter
	log     *logrus.Entry
}

// New builds the certificate scanner.
func New(deps module.Deps) module.Prober {
	return &Scanner{limiter: deps.Limiter, log: deps.Log.WithField("module", domain.ModuleCertScan)}
}

func (s *Scanner) Kind() domain.ModuleKind { return domain.ModuleCertScan }

// Probe dials the target's TLS port once. Verification is disabled on
// purpose: an untrusted certificate still carries subject, issuer and
// SAN intelligence.
func (s *Scanner) Probe(ctx context.Context, target domain.Target, opts domain.ModuleOptions) domain.ModuleResult {
	start := time.Now()
	res := domain.ModuleResult{Module: s.Kind(), Target: target}

	if target.Kind == domain.TargetCIDR {
		res.Status = domain.StatusSuccess
		res.Duration = time.Since(start)
		return res
	}

	if err := s.limiter.Acquire(ctx, target.Key(), 1); err != nil {
		res.Status = shared.Outcome(ctx, domain.StatusFailed)
		res.Err = err.Error()
		res.Duration = time.Since(start)
		return res
	}

	port := opts.TLSPort
	if port <= 0 {
		port = defaultTLSPort
	}

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			InsecureSkipVerify: true,
			ServerName:         serverName(target),
		},
	}

	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(target.Host, strconv.Itoa(port)))
	res.Duration = time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			res.Status = domain.StatusTimedOut
			res.Err = err.Error()
			return res
		}
		// Protocol mismatch or a broken handshake is still a result.
		res.Status = domain.StatusSuccess
		res.Findings = append(res.Findings, domain.Certificate{HandshakeNote: err.Error()})
		return res
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		res.Status = domain.StatusSuccess
		res.Findings = append(res.Findings, domain.Certificate{HandshakeNote: "no peer certificate presented"})
		return res
	}

	leaf := state.PeerCertificates[0]
	cert := domain.Certificate{
		Subject:   leaf.Subject.String(),
		Issuer:    leaf.Issuer.String(),
		SANs:      append([]string(nil), leaf.DNSNames...),
		NotBefore: leaf.NotBefore.UTC(),
		NotAfter:  leaf.NotAfter.UTC(),
	}
	res.Findings = append(res.Findings, cert)

	// SANs inside the target's zone double as subdomain discoveries.
	if target.Kind == domain.TargetHostname {
		for _, san := range leaf.DNSNames {
			name := shared.CanonicalHost(san)
			if name == target.Host || !shared.InZone(name, target.Host) || !shared.ValidSubdomain(name) {
				continue
			}
			res.Findings = append(res.Findings, domain.Subdomain{
				Name:    name,
				Sources: []domain.DiscoverySource{domain.SourceCert},
			})
		}
	}

	res.Status = domain.StatusSuccess
	return res
}

func serverName(t domain.Target) string {
	if t.Kind == domain.TargetHostname {
		return t.Host
	}
	return ""
}
