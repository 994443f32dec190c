// Package module defines the contract probing modules satisfy to plug
// into the engine, and the registry the engine dispatches through.
package module

import (
	"context"

	"github.com/sirupsen/logrus"

	"bytemomo/moray/internal/domain"
)

// Limiter is the shared gate modules acquire from before every
// outbound network operation. A module issuing N network calls
// acquires N times, not once.
type Limiter interface {
	Acquire(ctx context.Context, targetKey string, weight int) error
}

// Prober is one probing capability. Implementations must honor the
// context deadline (returning TimedOut with any findings confirmed so
// far), map ordinary network failures to statuses rather than panics,
// and leave no background work running past the call's return.
type Prober interface {
	Kind() domain.ModuleKind
	Probe(ctx context.Context, target domain.Target, opts domain.ModuleOptions) domain.ModuleResult
}

// Deps are the collaborators handed to every module factory.
type Deps struct {
	Limiter Limiter
	Log     *logrus.Entry
}

// Factory builds one prober wired to its dependencies.
type Factory func(deps Deps) Prober
