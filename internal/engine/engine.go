// Package engine turns a scan request into a stream of finalized
// per-target reports. It schedules concurrent module probes across the
// target x module cross product, bounded by a scheduler concurrency
// cap, while the shared rate limiter bounds network egress.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"bytemomo/moray/internal/aggregate"
	"bytemomo/moray/internal/domain"
	"bytemomo/moray/internal/module"
	"bytemomo/moray/internal/ratelimit"
)

// Engine orchestrates one scan request at a time. The rate limiter it
// builds is scoped to that request's execution.
type Engine struct {
	Registry *module.Registry
	Log      *logrus.Entry
}

// New creates an engine dispatching over the given registry.
func New(registry *module.Registry, log *logrus.Entry) *Engine {
	return &Engine{Registry: registry, Log: log}
}

// Run validates the request and starts probing. It returns a channel
// that yields exactly one report per resolved target, each emitted as
// soon as it finalizes. Configuration errors surface here, before any
// scheduling; module-level failures are recorded in reports instead.
// On cancellation, targets with modules still pending are flushed as
// Incomplete reports before the channel closes.
func (e *Engine) Run(ctx context.Context, req domain.ScanRequest) (<-chan domain.Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	targets, err := domain.NormalizeTargets(req.Targets)
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.New(ratelimit.Config{
		RatePerSec:          req.RateLimitPerSec,
		Burst:               req.Burst,
		PerTargetRatePerSec: req.PerTargetRatePerSec,
		PerTargetBurst:      req.Burst,
		AcquireTimeout:      req.AcquireTimeout,
	})

	scanID := uuid.NewString()
	log := e.Log.WithField("scan_id", scanID)

	probers, err := e.Registry.Build(req.Modules, module.Deps{Limiter: limiter, Log: log})
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"targets":         len(targets),
		"modules":         len(req.Modules),
		"max_concurrency": req.MaxConcurrency,
		"rate_per_sec":    req.RateLimitPerSec,
	}).Info("Starting scan")

	collector := aggregate.New(scanID)
	startedAt := time.Now().UTC()
	for _, t := range targets {
		collector.Track(t, req.Modules, startedAt)
	}

	// One report per target, so sends never block even if the
	// consumer falls behind a full batch.
	reports := make(chan domain.Report, len(targets))
	go e.schedule(ctx, log, req, targets, probers, collector, reports)
	return reports, nil
}

func (e *Engine) schedule(
	ctx context.Context,
	log *logrus.Entry,
	req domain.ScanRequest,
	targets []domain.Target,
	probers map[domain.ModuleKind]module.Prober,
	collector *aggregate.Collector,
	reports chan<- domain.Report,
) {
	defer close(reports)

	sem := make(chan struct{}, req.MaxConcurrency)
	var wg sync.WaitGroup

pairs:
	for _, t := range targets {
		for _, kind := range req.Modules {
			select {
			case <-ctx.Done():
				break pairs
			case sem <- struct{}{}:
			}

			wg.Add(1)
			go func(t domain.Target, p module.Prober) {
				defer wg.Done()
				defer func() { <-sem }()

				res := e.probe(ctx, log, p, t, req)
				if err := collector.Merge(res); err != nil {
					log.WithError(err).WithFields(logrus.Fields{
						"target": t.Key(),
						"module": res.Module,
					}).Error("Aggregation conflict")
				}
				if rep, ok := collector.FinalizeIfComplete(t); ok {
					log.WithFields(logrus.Fields{
						"target":   t.Key(),
						"findings": rep.FindingCount(),
					}).Info("Target finalized")
					reports <- rep
				}
			}(t, probers[kind])
		}
	}

	wg.Wait()

	for _, rep := range collector.FlushIncomplete() {
		log.WithField("target", rep.Target.Key()).Warn("Target flushed incomplete")
		reports <- rep
	}
	log.Info("Scan finished")
}

// probe runs one module against one target under the per-module
// deadline. A panicking module is an ordinary Failed result; failures
// are isolated per module-target pair, never escalated.
func (e *Engine) probe(ctx context.Context, log *logrus.Entry, p module.Prober, t domain.Target, req domain.ScanRequest) (res domain.ModuleResult) {
	pctx, cancel := context.WithTimeout(ctx, req.PerModuleTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logrus.Fields{
				"target": t.Key(),
				"module": p.Kind(),
				"panic":  fmt.Sprint(r),
			}).Error("Module panicked")
			res = domain.ModuleResult{
				Module:   p.Kind(),
				Target:   t,
				Status:   domain.StatusFailed,
				Err:      fmt.Sprintf("panic: %v", r),
				Duration: time.Since(start),
			}
		}
	}()

	res = p.Probe(pctx, t, req.Options)
	res.Module = p.Kind()
	res.Target = t
	if res.Duration == 0 {
		res.Duration = time.Since(start)
	}

	log.WithFields(logrus.Fields{
		"target":   t.Key(),
		"module":   p.Kind(),
		"status":   res.Status,
		"findings": len(res.Findings),
		"duration": res.Duration.Round(time.Millisecond).String(),
	}).Info("Module probe complete")
	return res
}
