package zabbixreconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zabbix-auto-config/zac/internal/mapfile"
	"github.com/zabbix-auto-config/zac/internal/metrics"
	"github.com/zabbix-auto-config/zac/internal/model"
	"github.com/zabbix-auto-config/zac/internal/storage"
)

// TemplateReconciler keeps each managed Zabbix host's linked templates
// in sync with its properties (spec §4.5.3). Removal is always applied
// before addition so a template slated to be re-added is never briefly
// orphaned and re-triggers discovery state.
type TemplateReconciler struct {
	Client           client
	Store            storage.Store
	PropertyTemplates mapfile.Mapping
	Dryrun           bool
	Logger           *slog.Logger
	Metrics          *metrics.Registry

	templates *templateResolver
}

// Run performs one reconciliation pass.
func (r *TemplateReconciler) Run(ctx context.Context) error {
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}
	if r.templates == nil {
		r.templates = newTemplateResolver(r.Client)
	}

	dbHosts, err := r.Store.ListEnabledHosts(ctx)
	if err != nil {
		return fmt.Errorf("zabbixreconcile: list enabled hosts: %w", err)
	}
	byHostname := make(map[string]model.Host, len(dbHosts))
	for _, row := range dbHosts {
		byHostname[row.Hostname] = row.Host
	}

	zabbixHosts, err := r.Client.MonitoredHosts(ctx)
	if err != nil {
		return fmt.Errorf("zabbixreconcile: fetch monitored hosts: %w", err)
	}

	managedIDs, err := r.managedTemplateIDs(ctx)
	if err != nil {
		return fmt.Errorf("zabbixreconcile: resolve managed templates: %w", err)
	}

	for _, zh := range zabbixHosts {
		if isManual(zh) {
			continue
		}
		host, ok := byHostname[zh.Host]
		if !ok {
			continue
		}

		desiredIDs, desiredNames, err := r.desiredTemplates(ctx, host)
		if err != nil {
			return fmt.Errorf("zabbixreconcile: resolve desired templates for %q: %w", zh.Host, err)
		}

		currentIDs := map[string]bool{}
		unmanagedIDs := make([]string, 0, len(zh.Templates))
		for _, t := range zh.Templates {
			if managedIDs[t.TemplateID] {
				currentIDs[t.TemplateID] = true
				continue
			}
			// Outside the managed set: left linked untouched (spec §8
			// managed-set containment).
			unmanagedIDs = append(unmanagedIDs, t.TemplateID)
		}

		wantIDs := map[string]bool{}
		for _, id := range desiredIDs {
			wantIDs[id] = true
		}

		if setsEqual(wantIDs, currentIDs) {
			continue
		}

		if r.Dryrun {
			log.Info("dryrun: would set host templates", "hostname", zh.Host, "templates", sortedKeys(desiredNames))
			continue
		}

		// Detach only the managed templates no longer desired, first, so
		// a template being re-added is never held in a stale,
		// partially-applied state. Unmanaged templates are never passed
		// to ClearTemplatesByID and so are never detached.
		toRemove := make([]string, 0, len(currentIDs))
		for id := range currentIDs {
			if !wantIDs[id] {
				toRemove = append(toRemove, id)
			}
		}
		if err := r.Client.ClearTemplatesByID(ctx, zh.HostID, toRemove); err != nil {
			log.Error("failed to clear stale templates before reconciling", "hostname", zh.Host, "error", err)
			continue
		}

		ids := append([]string{}, unmanagedIDs...)
		for _, id := range desiredIDs {
			ids = append(ids, id)
		}
		if err := r.Client.SetTemplates(ctx, zh.HostID, ids); err != nil {
			log.Error("failed to set templates", "hostname", zh.Host, "error", err)
			continue
		}
		if r.Metrics != nil {
			r.Metrics.ReconcileChanges.WithLabelValues("template", "update").Inc()
		}
	}

	if r.Metrics != nil {
		r.Metrics.ReconcileTicks.WithLabelValues("template").Inc()
	}
	return nil
}

// managedTemplateIDs returns the ids of every template named anywhere in
// PropertyTemplates that actually exists in Zabbix — the full universe
// this reconciler is responsible for, matching the original's
// managed_template_names (processing.py ZabbixTemplateUpdater.work).
// Any template linked to a host outside this set is left alone.
func (r *TemplateReconciler) managedTemplateIDs(ctx context.Context) (map[string]bool, error) {
	names := map[string]bool{}
	for _, group := range r.PropertyTemplates {
		for _, name := range group {
			names[name] = true
		}
	}
	ids := make(map[string]bool, len(names))
	for name := range names {
		id, ok, err := r.templates.lookup(ctx, name)
		if err != nil {
			return nil, err
		}
		if ok {
			ids[id] = true
		}
	}
	return ids, nil
}

// desiredTemplates computes the template name->id set a host's
// properties map to, intersected with templates that actually exist
// in Zabbix (spec §4.5.3: a referenced-but-missing template is skipped,
// never created — templates are operator-managed).
func (r *TemplateReconciler) desiredTemplates(ctx context.Context, host model.Host) (map[string]string, map[string]bool, error) {
	ids := map[string]string{}
	names := map[string]bool{}
	for property := range host.Properties {
		for _, name := range r.PropertyTemplates[property] {
			id, ok, err := r.templates.lookup(ctx, name)
			if err != nil {
				return nil, nil, err
			}
			if !ok {
				continue
			}
			ids[name] = id
			names[name] = true
		}
	}
	return ids, names, nil
}
