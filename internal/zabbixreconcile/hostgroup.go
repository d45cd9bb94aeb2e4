package zabbixreconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/zabbix-auto-config/zac/internal/mapfile"
	"github.com/zabbix-auto-config/zac/internal/metrics"
	"github.com/zabbix-auto-config/zac/internal/model"
	"github.com/zabbix-auto-config/zac/internal/storage"
)

// SourceGroupPrefix names the per-source group every host is tagged
// with: "Source-{source}" (spec §4.5.2).
const SourceGroupPrefix = "Source-"

// HostgroupReconciler keeps each managed Zabbix host's group
// membership in sync with its properties, site admins, and sources
// (spec §4.5.2).
type HostgroupReconciler struct {
	Client          client
	Store           storage.Store
	PropertyGroups  mapfile.Mapping
	SiteAdminGroups mapfile.Mapping
	Dryrun          bool
	Logger          *slog.Logger
	Metrics         *metrics.Registry

	groups *groupResolver
}

// ManagedGroups returns the full set of group names this reconciler is
// responsible for: every group named by the property/siteadmin maps,
// a Source-{name} group per source, and All-hosts.
func (r *HostgroupReconciler) ManagedGroups(sources []string) map[string]bool {
	out := map[string]bool{AllHostsGroup: true}
	for name := range r.PropertyGroups.Values() {
		out[name] = true
	}
	for name := range r.SiteAdminGroups.Values() {
		out[name] = true
	}
	for _, source := range sources {
		out[SourceGroupPrefix+source] = true
	}
	return out
}

// Run performs one reconciliation pass.
func (r *HostgroupReconciler) Run(ctx context.Context) error {
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
	byHostname := make(map[string]model.Host, len(dbHosts))
	sources := map[string]bool{}
	for _, row := range dbHosts {
		byHostname[row.Hostname] = row.Host
		for source := range row.Host.Sources {
			sources[source] = true
		}
	}
	sourceList := make([]string, 0, len(sources))
	for s := range sources {
		sourceList = append(sourceList, s)
	}
	sort.Strings(sourceList)
	managed := r.ManagedGroups(sourceList)

	zabbixHosts, err := r.Client.MonitoredHosts(ctx)
	if err != nil {
		return fmt.Errorf("zabbixreconcile: fetch monitored hosts: %w", err)
	}

	for _, zh := range zabbixHosts {
		if isManual(zh) {
			continue
		}
		host, ok := byHostname[zh.Host]
		if !ok {
			continue
		}

		desired := r.desiredGroups(host)
		current := map[string]bool{}
		unmanagedIDs := make([]string, 0, len(zh.Groups))
		for _, g := range zh.Groups {
			if managed[g.Name] {
				current[g.Name] = true
				continue
			}
			// Outside the managed set: carried through untouched so the
			// update never strips a group this reconciler doesn't own
			// (spec §8 managed-set containment).
			unmanagedIDs = append(unmanagedIDs, g.GroupID)
		}
		if setsEqual(desired, current) {
			continue
		}

		if r.Dryrun {
			log.Info("dryrun: would set host groups", "hostname", zh.Host, "groups", sortedKeys(desired))
			continue
		}

		ids := append([]string{}, unmanagedIDs...)
		for name := range desired {
			id, err := r.groups.resolve(ctx, name)
			if err != nil {
				return fmt.Errorf("zabbixreconcile: resolve group %q: %w", name, err)
			}
			ids = append(ids, id)
		}

		if err := r.Client.SetHostGroups(ctx, zh.HostID, ids); err != nil {
			log.Error("failed to set host groups", "hostname", zh.Host, "error", err)
			continue
		}
		if r.Metrics != nil {
			r.Metrics.ReconcileChanges.WithLabelValues("hostgroup", "update").Inc()
		}
	}

	if r.Metrics != nil {
		r.Metrics.ReconcileTicks.WithLabelValues("hostgroup").Inc()
	}
	return nil
}

// desiredGroups computes the full group-name set a host should belong
// to: All-hosts, one group per matching property, one per site admin,
// and one Source-{s} per source it was collected from.
func (r *HostgroupReconciler) desiredGroups(host model.Host) map[string]bool {
	out := map[string]bool{AllHostsGroup: true}
	for property := range host.Properties {
		for _, group := range r.PropertyGroups[property] {
			out[group] = true
		}
	}
	for admin := range host.SiteAdmins {
		for _, group := range r.SiteAdminGroups[admin] {
			out[group] = true
		}
	}
	for source := range host.Sources {
		out[SourceGroupPrefix+source] = true
	}
	return out
}

func setsEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
