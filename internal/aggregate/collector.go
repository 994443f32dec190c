// Package aggregate builds per-target reports out of module results,
// deduplicating findings as they arrive. Reports for different targets
// are built fully in parallel; merges for one target serialize on that
// target's own lock.
package aggregate

import (
	"fmt"
	"sync"
	"time"

	"bytemomo/moray/internal/domain"
)

// Collector merges module results into one report per tracked target.
type Collector struct {
	scanID string

	mu      sync.RWMutex
	targets map[string]*targetState
}

type targetState struct {
	mu sync.Mutex

	target    domain.Target
	startedAt time.Time

	expected map[domain.ModuleKind]struct{}
	statuses map[domain.ModuleKind]domain.Status
	errors   map[domain.ModuleKind]string

	// findings dedupes by (kind, key); keyOrder preserves first-seen
	// order so reports render deterministically.
	findings map[domain.FindingKind]map[string]domain.Finding
	keyOrder map[domain.FindingKind][]string

	conflict  bool
	finalized bool
}

// New creates a collector for one scan.
func New(scanID string) *Collector {
	return &Collector{
		scanID:  scanID,
		targets: make(map[string]*targetState),
	}
}

// Track registers the modules scheduled for a target. It must be
// called before any Merge for that target.
func (c *Collector) Track(target domain.Target, kinds []domain.ModuleKind, startedAt time.Time) {
	st := &targetState{
		target:    target,
		startedAt: startedAt,
		expected:  make(map[domain.ModuleKind]struct{}, len(kinds)),
		statuses:  make(map[domain.ModuleKind]domain.Status, len(kinds)),
		errors:    make(map[domain.ModuleKind]string),
		findings:  make(map[domain.FindingKind]map[string]domain.Finding),
		keyOrder:  make(map[domain.FindingKind][]string),
	}
	for _, k := range kinds {
		st.expected[k] = struct{}{}
	}

	c.mu.Lock()
	c.targets[target.Key()] = st
	c.mu.Unlock()
}

// Merge folds one module result into its target's report. Every issued
// result is merged exactly once; a merge against an untracked or
// already finalized target is an invariant violation, reported as an
// error and surfaced as an Incomplete report for that target only.
func (c *Collector) Merge(res domain.ModuleResult) error {
	st := c.state(res.Target.Key())
	if st == nil {
		return domain.E("aggregate.Merge", fmt.Sprintf("result for untracked target %q", res.Target.Key()), nil)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.finalized {
		st.conflict = true
		return domain.E("aggregate.Merge", fmt.Sprintf("result for finalized target %q", res.Target.Key()), nil)
	}
	if _, expected := st.expected[res.Module]; !expected {
		st.conflict = true
		return domain.E("aggregate.Merge", fmt.Sprintf("unexpected module %q for target %q", res.Module, res.Target.Key()), nil)
	}
	if _, dup := st.statuses[res.Module]; dup {
		st.conflict = true
		return domain.E("aggregate.Merge", fmt.Sprintf("duplicate result for %s/%s", res.Target.Key(), res.Module), nil)
	}

	st.statuses[res.Module] = res.Status
	if res.Err != "" {
		st.errors[res.Module] = res.Err
	}
	for _, f := range res.Findings {
		st.add(f)
	}
	return nil
}

func (st *targetState) add(f domain.Finding) {
	kind := f.Kind()
	byKey := st.findings[kind]
	if byKey == nil {
		byKey = make(map[string]domain.Finding)
		st.findings[kind] = byKey
	}
	key := f.Key()
	if kept, dup := byKey[key]; dup {
		byKey[key] = domain.MergeFinding(kept, f)
		return
	}
	byKey[key] = f
	st.keyOrder[kind] = append(st.keyOrder[kind], key)
}

// FinalizeIfComplete finalizes the target's report once every
// scheduled module has reported. It returns the report and true only
// on the call that performs the finalization; repeat calls are no-ops.
func (c *Collector) FinalizeIfComplete(target domain.Target) (domain.Report, bool) {
	st := c.state(target.Key())
	if st == nil {
		return domain.Report{}, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.finalized || len(st.statuses) < len(st.expected) {
		return domain.Report{}, false
	}
	return st.finalize(c.scanID, domain.ReportComplete), true
}

// FlushIncomplete finalizes every still-pending target as Incomplete.
// Used on cancellation so no target is silently dropped.
func (c *Collector) FlushIncomplete() []domain.Report {
	c.mu.RLock()
	states := make([]*targetState, 0, len(c.targets))
	for _, st := range c.targets {
		states = append(states, st)
	}
	c.mu.RUnlock()

	var out []domain.Report
	for _, st := range states {
		st.mu.Lock()
		if !st.finalized {
			out = append(out, st.finalize(c.scanID, domain.ReportIncomplete))
		}
		st.mu.Unlock()
	}
	return out
}

// finalize builds the immutable report. Callers hold st.mu.
func (st *targetState) finalize(scanID string, status domain.ReportStatus) domain.Report {
	st.finalized = true
	if st.conflict {
		status = domain.ReportIncomplete
	}

	byKind := make(map[domain.FindingKind][]domain.Finding, len(st.findings))
	for kind, keys := range st.keyOrder {
		fs := make([]domain.Finding, 0, len(keys))
		for _, key := range keys {
			fs = append(fs, st.findings[kind][key])
		}
		byKind[kind] = fs
	}

	statuses := make(map[domain.ModuleKind]domain.Status, len(st.statuses))
	for k, s := range st.statuses {
		statuses[k] = s
	}
	var errs map[domain.ModuleKind]string
	if len(st.errors) > 0 {
		errs = make(map[domain.ModuleKind]string, len(st.errors))
		for k, e := range st.errors {
			errs[k] = e
		}
	}

	return domain.Report{
		ScanID:         scanID,
		Target:         st.target,
		Status:         status,
		FindingsByKind: byKind,
		ModuleStatuses: statuses,
		ModuleErrors:   errs,
		StartedAt:      st.startedAt,
		FinishedAt:     time.Now().UTC(),
	}
}

func (c *Collector) state(key string) *targetState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.targets[key]
}
