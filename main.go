package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bytemomo/moray/internal/adapter/consolereport"
	"bytemomo/moray/internal/adapter/jsonreport"
	"bytemomo/moray/internal/adapter/logger"
	"bytemomo/moray/internal/adapter/yamlconfig"
	"bytemomo/moray/internal/domain"
	"bytemomo/moray/internal/engine"
	"bytemomo/moray/internal/modules"

	"github.com/sirupsen/logrus"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to scan config YAML")
		targetsArg = flag.String("targets", "", "Comma-separated targets (hostnames, IPs, CIDRs)")
		modulesArg = flag.String("modules", "all", "Comma-separated modules to run, or 'all'")
		outDir     = flag.String("out", "./moray-results", "Output directory")
		logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		silent     = flag.Bool("silent", false, "Suppress console report, write JSON only")
		moduleList = flag.Bool("list-modules", false, "Print the available scan modules")
		help       = flag.Bool("help", false, "Print program usage")
	)
	flag.Parse()

	if *moduleList {
		for _, k := range domain.AllModuleKinds() {
			fmt.Printf("   - %s\n", k)
		}
		return
	}

	if (*configPath == "" && *targetsArg == "") || *help {
		flag.Usage()
		os.Exit(2)
	}

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		flag.Usage()
		os.Exit(2)
	}
	logger.SetLoggerToStructured(level, fmt.Sprintf("%s/moray.log", *outDir))

	if err := run(*configPath, *targetsArg, *modulesArg, *outDir, *silent); err != nil {
		logrus.WithError(err).Fatal("Failed to run scan")
	}
}

func run(configPath, targetsArg, modulesArg, outDir string, silent bool) error {
	log := logrus.WithFields(logrus.Fields{
		"config_path": configPath,
	})
	log.Info("Starting scan")

	req, err := loadRequest(configPath, targetsArg, modulesArg)
	if err != nil {
		return fmt.Errorf("could not load scan config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.New(modules.DefaultRegistry(), log)
	reports, err := eng.Run(ctx, req)
	if err != nil {
		return err
	}

	jsonWriter := jsonreport.New(outDir)
	var sinks []domain.ReportSink
	sinks = append(sinks, jsonWriter)
	if !silent {
		sinks = append(sinks, consolereport.New(os.Stdout))
	}

	var incomplete int
	for r := range reports {
		if r.Status == domain.ReportIncomplete {
			incomplete++
		}
		for _, sink := range sinks {
			if err := sink.Write(r); err != nil {
				log.WithError(err).WithField("target", r.Target.Key()).Error("Failed to write report")
			}
		}
	}

	path, err := jsonWriter.Summary()
	if err != nil {
		return fmt.Errorf("cannot write scan summary: %w", err)
	}
	log.WithField("report_path", path).Info("Scan summary written")

	if incomplete > 0 {
		log.WithField("incomplete_count", incomplete).Warning("Scan interrupted before all targets completed")
	}
	return nil
}

func loadRequest(configPath, targetsArg, modulesArg string) (domain.ScanRequest, error) {
	if configPath != "" {
		return yamlconfig.Load(configPath)
	}
	targets := splitCSV(targetsArg)
	if len(targets) == 0 {
		return domain.ScanRequest{}, errors.New("no targets specified")
	}
	return yamlconfig.Defaults(targets, modulesArg)
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
