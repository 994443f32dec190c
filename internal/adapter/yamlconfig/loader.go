// Package yamlconfig loads a scan request from a YAML file and applies
// the toolkit defaults.
package yamlconfig

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"bytemomo/moray/internal/domain"
)

// Defaults applied to unset knobs.
const (
	DefaultRatePerSec        = 10.0
	DefaultBurst             = 5
	DefaultMaxConcurrency    = 10
	DefaultModuleTimeoutSec  = 30
	DefaultAcquireTimeoutSec = 10
)

const maxWordlistEntries = 100000

// File is the on-disk scan configuration. Durations are plain seconds
// so the file stays shell-friendly.
type File struct {
	Targets []string `yaml:"targets"`
	Modules string   `yaml:"modules"` // comma-separated, or "all"

	RateLimitPerSec     float64 `yaml:"rate_limit_per_sec"`
	Burst               int     `yaml:"burst"`
	PerTargetRatePerSec float64 `yaml:"per_target_rate_per_sec"`

	MaxConcurrency      int `yaml:"max_concurrency"`
	PerModuleTimeoutSec int `yaml:"per_module_timeout_sec"`
	AcquireTimeoutSec   int `yaml:"acquire_timeout_sec"`

	Options Options `yaml:"options"`
}

// Options is the per-module configuration block, passed through to the
// modules opaquely by the engine.
type Options struct {
	Ports          []int    `yaml:"ports"`
	PortWorkers    int      `yaml:"port_workers"`
	PortStrategy   string   `yaml:"port_strategy"`
	BannerGrab     bool     `yaml:"banner_grab"`
	Resolvers      []string `yaml:"resolvers"`
	WordlistPath   string   `yaml:"wordlist_path"`
	TLSPort        int      `yaml:"tls_port"`
	HTTPTimeoutSec int      `yaml:"http_timeout_sec"`
	UserAgent      string   `yaml:"user_agent"`
}

// Load reads path, resolves the wordlist relative to the config file
// and builds a scan request with defaults applied. Validation proper
// happens in the engine, before scheduling.
func Load(path string) (domain.ScanRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ScanRequest{}, fmt.Errorf("read config %q: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return domain.ScanRequest{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	return f.ToRequest(filepath.Dir(path))
}

// ToRequest converts the file form into a scan request. baseDir
// anchors relative wordlist paths.
func (f File) ToRequest(baseDir string) (domain.ScanRequest, error) {
	modules, err := domain.ParseModuleKinds(f.Modules)
	if err != nil {
		return domain.ScanRequest{}, err
	}

	req := domain.ScanRequest{
		Targets:             f.Targets,
		Modules:             modules,
		RateLimitPerSec:     f.RateLimitPerSec,
		Burst:               f.Burst,
		PerTargetRatePerSec: f.PerTargetRatePerSec,
		MaxConcurrency:      f.MaxConcurrency,
		PerModuleTimeout:    time.Duration(f.PerModuleTimeoutSec) * time.Second,
		AcquireTimeout:      time.Duration(f.AcquireTimeoutSec) * time.Second,
		Options: domain.ModuleOptions{
			Ports:        f.Options.Ports,
			PortWorkers:  f.Options.PortWorkers,
			PortStrategy: f.Options.PortStrategy,
			BannerGrab:   f.Options.BannerGrab,
			Resolvers:    f.Options.Resolvers,
			WordlistPath: f.Options.WordlistPath,
			TLSPort:      f.Options.TLSPort,
			HTTPTimeout:  time.Duration(f.Options.HTTPTimeoutSec) * time.Second,
			UserAgent:    f.Options.UserAgent,
		},
	}
	applyDefaults(&req)

	if req.Options.WordlistPath != "" {
		p := req.Options.WordlistPath
		if !filepath.IsAbs(p) && baseDir != "" {
			p = filepath.Join(baseDir, p)
		}
		words, err := loadWordlist(p)
		if err != nil {
			return domain.ScanRequest{}, err
		}
		req.Options.Wordlist = words
	}
	return req, nil
}

// Defaults builds a request from nothing but a target list and module
// selection, for config-less CLI runs.
func Defaults(targets []string, modules string) (domain.ScanRequest, error) {
	return File{Targets: targets, Modules: modules}.ToRequest("")
}

func applyDefaults(req *domain.ScanRequest) {
	if req.RateLimitPerSec <= 0 {
		req.RateLimitPerSec = DefaultRatePerSec
	}
	if req.Burst < 1 {
		req.Burst = DefaultBurst
	}
	if req.MaxConcurrency < 1 {
		req.MaxConcurrency = DefaultMaxConcurrency
	}
	if req.PerModuleTimeout <= 0 {
		req.PerModuleTimeout = DefaultModuleTimeoutSec * time.Second
	}
	if req.AcquireTimeout <= 0 {
		req.AcquireTimeout = DefaultAcquireTimeoutSec * time.Second
	}
}

func loadWordlist(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wordlist %q: %w", path, err)
	}
	defer file.Close()

	var words []string
	sc := bufio.NewScanner(file)
	for sc.Scan() && len(words) < maxWordlistEntries {
		w := strings.TrimSpace(sc.Text())
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		words = append(words, w)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read wordlist %q: %w", path, err)
	}
	return words, nil
}
