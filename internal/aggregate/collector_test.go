package aggregate

import (
	"testing"
	"time"

	"bytemomo/moray/internal/domain"
)

func testTarget(host string) domain.Target {
	return domain.Target{Raw: host, Host: host, Kind: domain.TargetHostname}
}

func result(target domain.Target, kind domain.ModuleKind, findings ...domain.Finding) domain.ModuleResult {
	return domain.ModuleResult{
		Module:   kind,
		Target:   target,
		Status:   domain.StatusSuccess,
		Findings: findings,
	}
}

func TestCollectorDeduplicatesAcrossModules(t *testing.T) {
	t.Parallel()

	c := New("scan-1")
	target := testTarget("example.com")
	c.Track(target, []domain.ModuleKind{domain.ModulePortScan, domain.ModuleCertScan}, time.Now())

	port := domain.OpenPort{Port: 443, Protocol: "tcp", Service: "https"}
	if err := c.Merge(result(target, domain.ModulePortScan, port)); err != nil {
		t.Fatalf("merge portscan result: %v", err)
	}
	if err := c.Merge(result(target, domain.ModuleCertScan, port)); err != nil {
		t.Fatalf("merge certscan result: %v", err)
	}

	rep, ok := c.FinalizeIfComplete(target)
	if !ok {
		t.Fatal("expected report to finalize after all modules reported")
	}
	if got := len(rep.FindingsByKind[domain.KindOpenPort]); got != 1 {
		t.Errorf("expected 1 deduplicated open port, got %d", got)
	}
	if rep.Status != domain.ReportComplete {
		t.Errorf("expected complete report, got %q", rep.Status)
	}
}

func TestCollectorUnionsSubdomainSources(t *testing.T) {
	t.Parallel()

	c := New("scan-1")
	target := testTarget("example.com")
	c.Track(target, []domain.ModuleKind{domain.ModuleDnsEnum, domain.ModuleSubEnum}, time.Now())

	if err := c.Merge(result(target, domain.ModuleDnsEnum,
		domain.Subdomain{Name: "api.example.com", Sources: []domain.DiscoverySource{domain.SourceDns}},
	)); err != nil {
		t.Fatalf("merge dnsenum result: %v", err)
	}
	if err := c.Merge(result(target, domain.ModuleSubEnum,
		domain.Subdomain{Name: "API.example.com.", Sources: []domain.DiscoverySource{domain.SourceOSINT}},
	)); err != nil {
		t.Fatalf("merge subenum result: %v", err)
	}

	rep, ok := c.FinalizeIfComplete(target)
	if !ok {
		t.Fatal("expected report to finalize")
	}

	subs := rep.FindingsByKind[domain.KindSubdomain]
	if len(subs) != 1 {
		t.Fatalf("expected 1 merged subdomain, got %d", len(subs))
	}
	sub := subs[0].(domain.Subdomain)
	if !sub.HasSource(domain.SourceDns) || !sub.HasSource(domain.SourceOSINT) {
		t.Errorf("expected union of discovery sources, got %v", sub.Sources)
	}
}

func TestFinalizeWaitsForAllModules(t *testing.T) {
	t.Parallel()

	c := New("scan-1")
	target := testTarget("example.com")
	c.Track(target, []domain.ModuleKind{domain.ModulePortScan, domain.ModuleWhois}, time.Now())

	if err := c.Merge(result(target, domain.ModulePortScan)); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if _, ok := c.FinalizeIfComplete(target); ok {
		t.Fatal("report finalized before every module reported")
	}

	if err := c.Merge(result(target, domain.ModuleWhois)); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if _, ok := c.FinalizeIfComplete(target); !ok {
		t.Fatal("expected report to finalize")
	}
	if _, ok := c.FinalizeIfComplete(target); ok {
		t.Fatal("finalization must happen exactly once")
	}
}

func TestFlushIncomplete(t *testing.T) {
	t.Parallel()

	c := New("scan-1")
	done := testTarget("done.example.com")
	pending := testTarget("pending.example.com")
	c.Track(done, []domain.ModuleKind{domain.ModulePortScan}, time.Now())
	c.Track(pending, []domain.ModuleKind{domain.ModulePortScan, domain.ModuleWhois}, time.Now())

	if err := c.Merge(result(done, domain.ModulePortScan)); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if _, ok := c.FinalizeIfComplete(done); !ok {
		t.Fatal("expected done target to finalize")
	}
	if err := c.Merge(result(pending, domain.ModulePortScan)); err != nil {
		t.Fatalf("merge: %v", err)
	}

	flushed := c.FlushIncomplete()
	if len(flushed) != 1 {
		t.Fatalf("expected 1 flushed report, got %d", len(flushed))
	}
	rep := flushed[0]
	if rep.Target.Key() != pending.Key() {
		t.Errorf("flushed wrong target %q", rep.Target.Key())
	}
	if rep.Status != domain.ReportIncomplete {
		t.Errorf("expected incomplete status, got %q", rep.Status)
	}
	if rep.ModuleStatuses[domain.ModulePortScan] != domain.StatusSuccess {
		t.Error("flushed report lost the module result that did arrive")
	}
}

func TestMergeRejectsUntrackedTarget(t *testing.T) {
	t.Parallel()

	c := New("scan-1")
	if err := c.Merge(result(testTarget("ghost.example.com"), domain.ModulePortScan)); err == nil {
		t.Fatal("expected error for untracked target")
	}
}

func TestDuplicateResultMarksReportIncomplete(t *testing.T) {
	t.Parallel()

	c := New("scan-1")
	target := testTarget("example.com")
	c.Track(target, []domain.ModuleKind{domain.ModulePortScan}, time.Now())

	if err := c.Merge(result(target, domain.ModulePortScan)); err != nil {
		t.Fatalf("first merge: %v", err)
	}
	if err := c.Merge(result(target, domain.ModulePortScan)); err == nil {
		t.Fatal("expected error for duplicate module result")
	}

	rep, ok := c.FinalizeIfComplete(target)
	if !ok {
		t.Fatal("expected report to finalize")
	}
	if rep.Status != domain.ReportIncomplete {
		t.Errorf("conflicting report must surface as incomplete, got %q", rep.Status)
	}
}

func TestMergeRejectsUnexpectedModule(t *testing.T) {
	t.Parallel()

	c := New("scan-1")
	target := testTarget("example.com")
	c.Track(target, []domain.ModuleKind{domain.ModulePortScan}, time.Now())

	if err := c.Merge(result(target, domain.ModuleWhois)); err == nil {
		t.Fatal("expected error for module that was never scheduled")
	}
}
