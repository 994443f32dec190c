package domain

import (
	"fmt"
	"strings"
	"time"
)

// ModuleKind identifies one probing capability. Dispatch is a closed
// enumeration: there is no runtime plugin loading.
type ModuleKind string

const (
	ModulePortScan   ModuleKind = "portscan"
	ModuleDnsEnum    ModuleKind = "dnsenum"
	ModuleSubEnum    ModuleKind = "subenum"
	ModuleCertScan   ModuleKind = "certscan"
	ModuleTechFinger ModuleKind = "techfinger"
	ModuleWhois      ModuleKind = "whois"
	ModuleHeaders    ModuleKind = "headers"
	ModuleWAFDetect  ModuleKind = "wafdetect"
)

// AllModuleKinds lists every known module in a stable order.
func AllModuleKinds() []ModuleKind {
	return []ModuleKind{
		ModulePortScan, ModuleDnsEnum, ModuleSubEnum, ModuleCertScan,
		ModuleTechFinger, ModuleWhois, ModuleHeaders, ModuleWAFDetect,
	}
}

// Validate checks that the kind names a known module.
func (k ModuleKind) Validate() error {
	for _, known := range AllModuleKinds() {
		if k == known {
			return nil
		}
	}
	return E("domain.ModuleKind", fmt.Sprintf("unknown module %q", string(k)), ErrConfiguration)
}

// ParseModuleKinds parses a comma-separated module selection. The
// literal "all" (or an empty string) selects every module.
func ParseModuleKinds(s string) ([]ModuleKind, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "all" {
		return AllModuleKinds(), nil
	}

	seen := make(map[ModuleKind]struct{})
	var out []ModuleKind
	for _, part := range strings.Split(s, ",") {
		k := ModuleKind(strings.TrimSpace(part))
		if k == "" {
			continue
		}
		if err := k.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	if len(out) == 0 {
		return nil, E("domain.ParseModuleKinds", "no modules selected", ErrConfiguration)
	}
	return out, nil
}

// Status is the outcome of one module probe against one target.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusPartialSuccess Status = "partial_success"
	StatusFailed         Status = "failed"
	StatusTimedOut       Status = "timed_out"
)

// ModuleResult is the outcome of exactly one Probe call. The engine
// owns it until it is merged into the target's report.
type ModuleResult struct {
	Module   ModuleKind    `json:"module"`
	Target   Target        `json:"target"`
	Status   Status        `json:"status"`
	Findings []Finding     `json:"findings,omitempty"`
	Err      string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}
