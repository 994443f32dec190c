// Package jsonreport persists finalized reports as JSON files, one per
// target plus an aggregated scan file.
package jsonreport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"bytemomo/moray/internal/domain"
)

// Writer writes reports under OutDir.
type Writer struct {
	OutDir string

	mu  sync.Mutex
	all []domain.Report
}

// New creates a JSON report writer rooted at outDir.
func New(outDir string) *Writer { return &Writer{OutDir: outDir} }

// Write persists one report to targets/<key>.json in emission order.
func (w *Writer) Write(r domain.Report) error {
	dir := filepath.Join(w.OutDir, "targets")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	w.mu.Lock()
	w.all = append(w.all, r)
	w.mu.Unlock()

	return writeJSON(filepath.Join(dir, safeName(r.Target.Key())+".json"), view(r))
}

// Summary writes the aggregated scan.json and returns its path.
func (w *Writer) Summary() (string, error) {
	if err := os.MkdirAll(w.OutDir, 0o755); err != nil {
		return "", err
	}

	w.mu.Lock()
	reports := make([]reportView, 0, len(w.all))
	scanID := ""
	for _, r := range w.all {
		scanID = r.ScanID
		reports = append(reports, view(r))
	}
	w.mu.Unlock()

	path := filepath.Join(w.OutDir, "scan.json")
	return path, writeJSON(path, struct {
		Version string       `json:"version"`
		ScanID  string       `json:"scan_id"`
		Reports []reportView `json:"reports"`
	}{
		Version: "1.0",
		ScanID:  scanID,
		Reports: reports,
	})
}

// reportView flattens the Finding interface values into per-kind
// string lists so the JSON stays stable and diffable.
type reportView struct {
	Target     string                              `json:"target"`
	Status     domain.ReportStatus                 `json:"status"`
	Modules    map[domain.ModuleKind]domain.Status `json:"modules"`
	Errors     map[domain.ModuleKind]string        `json:"errors,omitempty"`
	Findings   map[domain.FindingKind][]string     `json:"findings"`
	StartedAt  string                              `json:"started_at"`
	FinishedAt string                              `json:"finished_at"`
}

func view(r domain.Report) reportView {
	findings := make(map[domain.FindingKind][]string, len(r.FindingsByKind))
	for kind, fs := range r.FindingsByKind {
		lines := make([]string, 0, len(fs))
		for _, f := range fs {
			lines = append(lines, f.String())
		}
		findings[kind] = lines
	}
	return reportView{
		Target:     r.Target.Key(),
		Status:     r.Status,
		Modules:    r.ModuleStatuses,
		Errors:     r.ModuleErrors,
		Findings:   findings,
		StartedAt:  r.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
		FinishedAt: r.FinishedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return '_'
		}
	}, s)
}
