// Package modules assembles the default registry of probing modules.
package modules

import (
	"bytemomo/moray/internal/module"
	"bytemomo/moray/internal/modules/certscan"
	"bytemomo/moray/internal/modules/dnsenum"
	"bytemomo/moray/internal/modules/headers"
	"bytemomo/moray/internal/modules/portscan"
	"bytemomo/moray/internal/modules/subenum"
	"bytemomo/moray/internal/modules/techfinger"
	"bytemomo/moray/internal/modules/wafdetect"
	"bytemomo/moray/internal/modules/whois"

	"bytemomo/moray/internal/domain"
)

// DefaultRegistry wires every built-in module. The set is closed;
// unknown module names are configuration errors, not plugin lookups.
func DefaultRegistry() *module.Registry {
	r := module.NewRegistry()
	for kind, factory := range map[domain.ModuleKind]module.Factory{
		domain.ModulePortScan:   portscan.New,
		domain.ModuleDnsEnum:    dnsenum.New,
		domain.ModuleSubEnum:    subenum.New,
		domain.ModuleCertScan:   certscan.New,
		domain.ModuleTechFinger: techfinger.New,
		domain.ModuleWhois:      whois.New,
		domain.ModuleHeaders:    headers.New,
		domain.ModuleWAFDetect:  wafdetect.New,
	} {
		if err := r.Register(kind, factory); err != nil {
			// Only reachable through a programming error in this table.
			panic(err)
		}
	}
	return r
}
