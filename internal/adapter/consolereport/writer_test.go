package consolereport

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"bytemomo/moray/internal/domain"
)

func TestWriteRendersReport(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := New(&buf)

	err := w.Write(domain.Report{
		ScanID: "scan-1",
		Target: domain.Target{Host: "example.com", Kind: domain.TargetHostname},
		Status: domain.ReportComplete,
		FindingsByKind: map[domain.FindingKind][]domain.Finding{
			domain.KindOpenPort: {
				domain.OpenPort{Port: 22, Protocol: "tcp", Service: "ssh"},
				domain.OpenPort{Port: 443, Protocol: "tcp", Service: "https"},
			},
			domain.KindSubdomain: {
				domain.Subdomain{Name: "api.example.com", Sources: []domain.DiscoverySource{domain.SourceDns}},
			},
		},
		ModuleStatuses: map[domain.ModuleKind]domain.Status{
			domain.ModulePortScan: domain.StatusSuccess,
			domain.ModuleDnsEnum:  domain.StatusPartialSuccess,
		},
		ModuleErrors: map[domain.ModuleKind]string{
			domain.ModuleDnsEnum: "2 record lookups failed",
		},
		StartedAt:  time.Now().Add(-time.Second),
		FinishedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"=== example.com ===",
		"portscan",
		"partial_success",
		"2 record lookups failed",
		"22/tcp (ssh)",
		"api.example.com [dns]",
		"3 findings",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "INCOMPLETE") {
		t.Error("complete report must not be flagged incomplete")
	}
}

func TestWriteFlagsIncompleteReports(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := New(&buf)

	err := w.Write(domain.Report{
		Target: domain.Target{Host: "example.com", Kind: domain.TargetHostname},
		Status: domain.ReportIncomplete,
	})
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if !strings.Contains(buf.String(), "[INCOMPLETE]") {
		t.Errorf("incomplete report not flagged:\n%s", buf.String())
	}
}
