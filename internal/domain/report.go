package domain

import "time"

// ReportStatus distinguishes reports whose scheduled modules all
// reported from reports flushed early by cancellation.
type ReportStatus string

const (
	ReportComplete   ReportStatus = "complete"
	ReportIncomplete ReportStatus = "incomplete"
)

// Report is the finalized, deduplicated set of findings plus module
// statuses for one target. Immutable once finalized.
type Report struct {
	ScanID         string                    `json:"scan_id"`
	Target         Target                    `json:"target"`
	Status         ReportStatus              `json:"status"`
	FindingsByKind map[FindingKind][]Finding `json:"findings_by_kind"`
	ModuleStatuses map[ModuleKind]Status     `json:"module_statuses"`
	ModuleErrors   map[ModuleKind]string     `json:"module_errors,omitempty"`
	StartedAt      time.Time                 `json:"started_at"`
	FinishedAt     time.Time                 `json:"finished_at"`
}

// FindingCount returns the total number of deduplicated findings.
func (r Report) FindingCount() int {
	n := 0
	for _, fs := range r.FindingsByKind {
		n += len(fs)
	}
	return n
}

// ReportSink consumes finalized reports in emission order.
type ReportSink interface {
	// Write renders or persists one finalized report.
	Write(r Report) error
}
