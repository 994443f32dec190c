// Package consolereport renders finalized reports as human-readable
// text.
package consolereport

import (
	"fmt"
	"io"
	"sync"
	"time"

	"bytemomo/moray/internal/domain"
)

// kindOrder fixes the rendering order of finding sections.
var kindOrder = []domain.FindingKind{
	domain.KindOpenPort,
	domain.KindDnsRecord,
	domain.KindSubdomain,
	domain.KindCertificate,
	domain.KindTechnology,
	domain.KindWhoisField,
	domain.KindSecurityHeader,
	domain.KindWAFProduct,
}

// Writer renders reports to Out as they are emitted.
type Writer struct {
	Out io.Writer

	mu sync.Mutex
}

// New creates a console writer.
func New(out io.Writer) *Writer { return &Writer{Out: out} }

// Write renders one report. Incomplete reports are flagged loudly so
// a cancelled scan is never mistaken for an empty one.
func (w *Writer) Write(r domain.Report) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	header := fmt.Sprintf("=== %s ===", r.Target.Key())
	if r.Status == domain.ReportIncomplete {
		header = fmt.Sprintf("=== %s [INCOMPLETE] ===", r.Target.Key())
	}
	if _, err := fmt.Fprintln(w.Out, header); err != nil {
		return err
	}

	for _, kind := range domain.AllModuleKinds() {
		status, scheduled := r.ModuleStatuses[kind]
		if !scheduled {
			continue
		}
		line := fmt.Sprintf("  module %-12s %s", kind, status)
		if msg := r.ModuleErrors[kind]; msg != "" {
			line += " (" + msg + ")"
		}
		fmt.Fprintln(w.Out, line)
	}

	for _, kind := range kindOrder {
		fs := r.FindingsByKind[kind]
		if len(fs) == 0 {
			continue
		}
		fmt.Fprintf(w.Out, "  %s (%d)\n", kind, len(fs))
		for _, f := range fs {
			fmt.Fprintf(w.Out, "    - %s\n", f.String())
		}
	}

	_, err := fmt.Fprintf(w.Out, "  %d findings in %s\n\n",
		r.FindingCount(), r.FinishedAt.Sub(r.StartedAt).Round(10*time.Millisecond))
	return err
}
