// Package zabbixreconcile implements the three Zabbix convergence
// loops (spec §4.5): hosts, host-groups, and templates. Each shares
// the same failsafe gate and managed-set discipline, so the common
// pieces live in shared.go.
package zabbixreconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zabbix-auto-config/zac/internal/failsafeok"
	"github.com/zabbix-auto-config/zac/internal/metrics"
	"github.com/zabbix-auto-config/zac/internal/storage"
	"github.com/zabbix-auto-config/zac/internal/zabbixapi"
)

// AllHostsGroup, AllManualHostsGroup, and AllAutoDisabledHostsGroup are
// the well-known group names the host reconciler relies on (spec §4.5.1).
const (
	AllHostsGroup             = "All-hosts"
	AllManualHostsGroup        = "All-manual-hosts"
	AllAutoDisabledHostsGroup = "All-auto-disabled-hosts"
)

// HostReconciler converges Zabbix's managed hosts onto the set of
// enabled hosts in the database (spec §4.5.1).
type HostReconciler struct {
	Client     client
	Store      storage.Store
	Failsafe   int
	Dryrun     bool
	OKFilePath string
	Strict     bool
	Logger     *slog.Logger
	Metrics    *metrics.Registry

	groups *groupResolver
}

// Run performs one reconciliation pass.
func (r *HostReconciler) Run(ctx context.Context) error {
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}
	if r.groups == nil {
		r.groups = newGroupResolver(r.Client)
	}

	dbHosts, err := r.Store.ListEnabledHosts(ctx)
	if err != nil {
		return fmt.Errorf("zabbixreconcile: list enabled hosts: %w", err)
	}
	dbNames := make(map[string]bool, len(dbHosts))
	for _, h := range dbHosts {
		dbNames[h.Hostname] = true
	}

	zabbixHosts, err := r.Client.MonitoredHosts(ctx)
	if err != nil {
		return fmt.Errorf("zabbixreconcile: fetch monitored hosts: %w", err)
	}

	managed := make(map[string]zabbixapi.ZabbixHost)
	for _, zh := range zabbixHosts {
		if isManual(zh) || zh.Status != "0" {
			continue
		}
		managed[zh.Host] = zh
	}

	toRemove := make([]string, 0)
	for name := range managed {
		if !dbNames[name] {
			toRemove = append(toRemove, name)
		}
	}
	toAdd := make([]string, 0)
	for name := range dbNames {
		if _, ok := managed[name]; !ok {
			toAdd = append(toAdd, name)
		}
	}

	if len(toRemove) > r.Failsafe || len(toAdd) > r.Failsafe {
		authorized, err := failsafeok.Check(r.OKFilePath, r.Strict)
		if err != nil {
			if r.Metrics != nil {
				r.Metrics.FailsafeTrips.WithLabelValues("host").Inc()
			}
			return fmt.Errorf("zabbixreconcile: failsafe OK file: %w", err)
		}
		if !authorized {
			log.Warn("host reconciler failsafe tripped, skipping tick",
				"to_remove", len(toRemove), "to_add", len(toAdd), "failsafe", r.Failsafe)
			if r.Metrics != nil {
				r.Metrics.FailsafeTrips.WithLabelValues("host").Inc()
			}
			return nil
		}
		log.Warn("host reconciler failsafe exceeded but OK file authorized this run",
			"to_remove", len(toRemove), "to_add", len(toAdd), "failsafe", r.Failsafe)
	}

	for _, name := range toRemove {
		zh := managed[name]
		if r.Dryrun {
			log.Info("dryrun: would disable host", "hostname", name)
			continue
		}
		if err := r.disable(ctx, zh); err != nil {
			log.Error("failed to disable host", "hostname", name, "error", err)
			continue
		}
		if r.Metrics != nil {
			r.Metrics.ReconcileChanges.WithLabelValues("host", "disable").Inc()
		}
	}

	allHostsID, err := r.groups.resolve(ctx, AllHostsGroup)
	if err != nil {
		return err
	}

	for _, name := range toAdd {
		if r.Dryrun {
			log.Info("dryrun: would enable/create host", "hostname", name)
			continue
		}
		kind, err := r.enableOrCreate(ctx, name, zabbixHosts, allHostsID)
		if err != nil {
			log.Error("failed to enable/create host", "hostname", name, "error", err)
			continue
		}
		if r.Metrics != nil {
			r.Metrics.ReconcileChanges.WithLabelValues("host", kind).Inc()
		}
	}

	if r.Metrics != nil {
		r.Metrics.ReconcileTicks.WithLabelValues("host").Inc()
	}
	return nil
}

func (r *HostReconciler) disable(ctx context.Context, zh zabbixapi.ZabbixHost) error {
	disabledGroupID, err := r.groups.resolve(ctx, AllAutoDisabledHostsGroup)
	if err != nil {
		return err
	}
	if err := r.Client.ClearTemplates(ctx, zh.HostID); err != nil {
		return err
	}
	return r.Client.SetHostGroupsAndStatus(ctx, zh.HostID, []string{disabledGroupID}, 1)
}

// enableOrCreate implements spec §4.5.1 step 6: if the hostname already
// exists in Zabbix (but was filtered out of managed — e.g. it was
// manual, or disabled and not previously tracked), move it to
// All-hosts and enable it; otherwise create it fresh.
func (r *HostReconciler) enableOrCreate(ctx context.Context, hostname string, existing []zabbixapi.ZabbixHost, allHostsID string) (string, error) {
	for _, zh := range existing {
		if zh.Host == hostname {
			return "enable", r.Client.SetHostGroupsAndStatus(ctx, zh.HostID, []string{allHostsID}, 0)
		}
	}
	_, err := r.Client.CreateHost(ctx, hostname, []string{allHostsID})
	return "create", err
}

func isManual(zh zabbixapi.ZabbixHost) bool {
	for _, g := range zh.Groups {
		if g.Name == AllManualHostsGroup {
			return true
		}
	}
	return false
}
