package domain

import (
	"fmt"
	"time"
)

// ModuleOptions carries per-module configuration. The engine passes it
// through opaquely; each module reads only its own fields.
type ModuleOptions struct {
	// Port scanner.
	Ports        []int  `yaml:"ports,omitempty"`
	PortWorkers  int    `yaml:"port_workers,omitempty"`
	PortStrategy string `yaml:"port_strategy,omitempty"` // connect (default) or nmap
	BannerGrab   bool   `yaml:"banner_grab,omitempty"`

	// DNS enumerator and brute forcer.
	Resolvers    []string `yaml:"resolvers,omitempty"`
	Wordlist     []string `yaml:"wordlist,omitempty"`
	WordlistPath string   `yaml:"wordlist_path,omitempty"`

	// Certificate scanner.
	TLSPort int `yaml:"tls_port,omitempty"`

	// HTTP-speaking modules.
	HTTPTimeout time.Duration `yaml:"http_timeout,omitempty"`
	UserAgent   string        `yaml:"user_agent,omitempty"`
}

// ScanRequest is one immutable scan invocation: the resolved target
// set, the module selection and the knobs shared by every module.
type ScanRequest struct {
	Targets []string     `yaml:"targets"`
	Modules []ModuleKind `yaml:"modules"`

	RateLimitPerSec     float64 `yaml:"rate_limit_per_sec"`
	Burst               int     `yaml:"burst"`
	PerTargetRatePerSec float64 `yaml:"per_target_rate_per_sec,omitempty"`

	MaxConcurrency   int           `yaml:"max_concurrency"`
	PerModuleTimeout time.Duration `yaml:"per_module_timeout"`
	AcquireTimeout   time.Duration `yaml:"acquire_timeout"`

	Options ModuleOptions `yaml:"options,omitempty"`
}

// Validate reports the first fatal configuration error, before any
// scheduling begins.
func (r ScanRequest) Validate() error {
	const op = "domain.ScanRequest"
	if len(r.Targets) == 0 {
		return E(op, "empty target set", ErrConfiguration)
	}
	if len(r.Modules) == 0 {
		return E(op, "no modules selected", ErrConfiguration)
	}
	for _, m := range r.Modules {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	if r.RateLimitPerSec <= 0 {
		return E(op, fmt.Sprintf("invalid rate limit %v", r.RateLimitPerSec), ErrConfiguration)
	}
	if r.Burst < 1 {
		return E(op, fmt.Sprintf("invalid burst %d", r.Burst), ErrConfiguration)
	}
	if r.MaxConcurrency < 1 {
		return E(op, fmt.Sprintf("invalid max concurrency %d", r.MaxConcurrency), ErrConfiguration)
	}
	if r.PerModuleTimeout <= 0 {
		return E(op, "per-module timeout must be positive", ErrConfiguration)
	}
	return nil
}
