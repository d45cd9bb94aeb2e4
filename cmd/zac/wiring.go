package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zabbix-auto-config/zac/internal/config"
	"github.com/zabbix-auto-config/zac/internal/hostmodifier"
	"github.com/zabbix-auto-config/zac/internal/mapfile"
	"github.com/zabbix-auto-config/zac/internal/metrics"
	"github.com/zabbix-auto-config/zac/internal/model"
	"github.com/zabbix-auto-config/zac/internal/sourcecollector"
	"github.com/zabbix-auto-config/zac/internal/sourcehandler"
	"github.com/zabbix-auto-config/zac/internal/sourcemerger"
	"github.com/zabbix-auto-config/zac/internal/storage"
	"github.com/zabbix-auto-config/zac/internal/storage/postgres"
	"github.com/zabbix-auto-config/zac/internal/storage/sqlite"
	"github.com/zabbix-auto-config/zac/internal/supervisor"
	"github.com/zabbix-auto-config/zac/internal/zabbixapi"
	"github.com/zabbix-auto-config/zac/internal/zabbixreconcile"
)

// The three fixed map files spec §6 names, read from the
// zabbix.map_dir directory.
const (
	propertyTemplateMapFile   = "property_template_map.txt"
	propertyHostgroupMapFile  = "property_hostgroup_map.txt"
	siteadminHostgroupMapFile = "siteadmin_hostgroup_map.txt"
)

// buildDaemon wires every configured worker into a Supervisor, ready
// to Run. The returned Store must be closed by the caller once the
// supervisor has exited.
func buildDaemon(cfg *config.Config, log *slog.Logger) (*supervisor.Supervisor, storage.Store, error) {
	ctx := context.Background()

	store, err := openStore(ctx, cfg.Zac.DBURI)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	propertyTemplates, err := loadMapFile(log, cfg.Zabbix.MapDir, propertyTemplateMapFile)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	propertyGroups, err := loadMapFile(log, cfg.Zabbix.MapDir, propertyHostgroupMapFile)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	siteadminGroups, err := loadMapFile(log, cfg.Zabbix.MapDir, siteadminHostgroupMapFile)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	client := zabbixapi.New(cfg.Zabbix.URL, cfg.Zabbix.InsecureSkipVerify)
	if err := client.Login(ctx, cfg.Zabbix.Username, cfg.Zabbix.Password); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("zabbix login: %w", err)
	}

	metricsReg := metrics.New()
	if err := metricsReg.Register(prometheus.DefaultRegisterer); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("register metrics: %w", err)
	}

	collectors := builtinCollectors()
	modifiers := builtinModifiers()

	var (
		processes []supervisor.Process
		queues    []supervisor.QueueSource
	)

	handlerQueues := make(map[string]<-chan model.SourceHosts, len(cfg.SourceCollectors))

	maxInterval := time.Duration(0)
	for _, sc := range cfg.SourceCollectors {
		if sc.UpdateInterval > maxInterval {
			maxInterval = sc.UpdateInterval
		}
	}

	sourceNames := make([]string, 0, len(cfg.SourceCollectors))
	for name := range cfg.SourceCollectors {
		sourceNames = append(sourceNames, name)
	}
	sort.Strings(sourceNames)

	for _, name := range sourceNames {
		sc := cfg.SourceCollectors[name]
		collector, ok := collectors.Lookup(sc.ModuleName)
		if !ok {
			store.Close()
			return nil, nil, fmt.Errorf("source_collectors.%s: unknown module_name %q", name, sc.ModuleName)
		}

		queue := make(chan model.SourceHosts, 1)
		handlerQueues[name] = queue

		worker := &sourcecollector.Worker{
			Name:           name,
			Collector:      collector,
			Settings:       sc.Extra,
			UpdateInterval: sc.UpdateInterval,
			Queue:          queue,
			Logger:         log,
			StartupDelay:   maxInterval,
		}
		processes = append(processes, supervisor.Process{Name: "collector:" + name, Run: worker.Run})
		queues = append(queues, supervisor.QueueSource{
			Name:  name,
			Depth: func() int { return len(queue) },
		})
	}

	handler := &sourcehandler.Handler{
		Queues: handlerQueues,
		Store:  store,
		Logger: log,
	}
	processes = append(processes, supervisor.Process{
		Name: "source-handler",
		Run:  func(ctx context.Context) error { handler.Run(ctx); return nil },
	})

	chain, err := buildModifierChain(cfg, modifiers, log)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	merger := &sourcemerger.Merger{
		Store:          store,
		Chain:          chain,
		UpdateInterval: cfg.Zac.MergeUpdateInterval,
		Logger:         log,
	}
	processes = append(processes, supervisor.Process{
		Name: "source-merger",
		Run:  func(ctx context.Context) error { merger.Run(ctx); return nil },
	})

	hostReconciler := &zabbixreconcile.HostReconciler{
		Client:     client,
		Store:      store,
		Failsafe:   cfg.Zabbix.Failsafe,
		Dryrun:     cfg.Zabbix.Dryrun,
		OKFilePath: cfg.Zac.FailsafeOKFile,
		Strict:     cfg.Zac.FailsafeOKFileStrict,
		Logger:     log,
		Metrics:    metricsReg,
	}
	hostgroupReconciler := &zabbixreconcile.HostgroupReconciler{
		Client:          client,
		Store:           store,
		PropertyGroups:  propertyGroups,
		SiteAdminGroups: siteadminGroups,
		Dryrun:          cfg.Zabbix.Dryrun,
		Logger:          log,
		Metrics:         metricsReg,
	}
	templateReconciler := &zabbixreconcile.TemplateReconciler{
		Client:            client,
		Store:             store,
		PropertyTemplates: propertyTemplates,
		Dryrun:            cfg.Zabbix.Dryrun,
		Logger:            log,
		Metrics:           metricsReg,
	}

	reconcileInterval := cfg.Zabbix.ReconcileInterval
	processes = append(processes,
		supervisor.Process{Name: "reconcile:host", Run: runEvery(reconcileInterval, hostReconciler.Run)},
		supervisor.Process{Name: "reconcile:hostgroup", Run: runEvery(reconcileInterval, hostgroupReconciler.Run)},
		supervisor.Process{Name: "reconcile:template", Run: runEvery(reconcileInterval, templateReconciler.Run)},
	)

	sup := &supervisor.Supervisor{
		Processes:      processes,
		Queues:         queues,
		HealthFile:     cfg.Zac.HealthFile,
		StatusInterval: cfg.Zac.StatusInterval,
		Failsafe:       cfg.Zabbix.Failsafe,
		Logger:         log,
	}
	return sup, store, nil
}

// runEvery adapts a single-pass reconciler Run method into the
// continuous supervisor.Process shape, ticking at interval until ctx
// is cancelled. A single pass's error is logged, not fatal — one bad
// tick does not bring down the reconciler, matching the collector and
// merger workers' fail-open posture.
func runEvery(interval time.Duration, tick func(ctx context.Context) error) func(ctx context.Context) error {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return func(ctx context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := tick(ctx); err != nil {
					slog.Default().Error("reconcile tick failed", "error", err)
				}
			}
		}
	}
}

// openStore selects the storage backend from dsn's scheme: a
// "postgres://" or "postgresql://" URI connects via pgxpool; anything
// else (a bare path, or "sqlite://path") opens modernc.org/sqlite.
func openStore(ctx context.Context, dsn string) (storage.Store, error) {
	driver, conn := dsnDialect(dsn)
	switch driver {
	case "postgres":
		return postgres.New(ctx, conn)
	default:
		return sqlite.New(conn)
	}
}

// dsnDialect splits a db_uri into a goose/backend dialect name
// ("postgres" or "sqlite3") and the connection string each backend's
// constructor expects.
func dsnDialect(dsn string) (dialect string, conn string) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", dsn
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite3", strings.TrimPrefix(dsn, "sqlite://")
	default:
		return "sqlite3", dsn
	}
}

func loadMapFile(log *slog.Logger, dir, filename string) (mapfile.Mapping, error) {
	path := filepath.Join(dir, filename)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open map file %q: %w", path, err)
	}
	defer f.Close()

	mapping, warnings := mapfile.Parse(f)
	for _, w := range warnings {
		log.Warn("map file warning", "file", path, "warning", w)
	}
	return mapping, nil
}

// builtinCollectors registers the reference source collector
// strategies compiled into this binary (spec §9's "plugin model
// without dynamic import": every strategy is a statically registered
// Go type, not a loaded file).
func builtinCollectors() *sourcecollector.Registry {
	r := sourcecollector.NewRegistry()
	r.Register("static", sourcecollector.Static{})
	return r
}

// builtinModifiers registers the reference host modifier strategies
// compiled into this binary.
func builtinModifiers() *hostmodifier.Registry {
	r := hostmodifier.NewRegistry()
	r.Register("append_property", hostmodifier.AppendProperty{})
	return r
}

// buildModifierChain orders the configured host_modifiers entries by
// name for determinism: TOML sub-tables are an unordered map, unlike
// the original's ordered plugin list, so name order is the adaptation
// that keeps a merge tick's chain reproducible across runs.
func buildModifierChain(cfg *config.Config, registry *hostmodifier.Registry, log *slog.Logger) (*hostmodifier.Chain, error) {
	names := make([]string, 0, len(cfg.HostModifiers))
	for name := range cfg.HostModifiers {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]hostmodifier.Entry, 0, len(names))
	for _, name := range names {
		hm := cfg.HostModifiers[name]
		modifier, ok := registry.Lookup(hm.ModuleName)
		if !ok {
			return nil, fmt.Errorf("host_modifiers.%s: unknown module_name %q", name, hm.ModuleName)
		}
		entries = append(entries, hostmodifier.Entry{Name: name, Modifier: modifier, Settings: hm.Extra})
	}
	return &hostmodifier.Chain{Entries: entries, Logger: log}, nil
}
