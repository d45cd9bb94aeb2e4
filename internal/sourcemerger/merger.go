// Package sourcemerger implements the periodic worker that folds every
// source's view of a hostname into the canonical hosts table
// (spec §4.4).
package sourcemerger

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/zabbix-auto-config/zac/internal/hostmodifier"
	"github.com/zabbix-auto-config/zac/internal/model"
	"github.com/zabbix-auto-config/zac/internal/storage"
)

// DefaultUpdateInterval is the merger's default tick cadence (spec §4.4).
const DefaultUpdateInterval = 60 * time.Second

// Merger periodically recomputes the hosts table from hosts_source.
type Merger struct {
	Store          storage.Store
	Chain          *hostmodifier.Chain
	UpdateInterval time.Duration
	Logger         *slog.Logger
}

// Run ticks every UpdateInterval until ctx is cancelled, calling Tick
// each time.
func (m *Merger) Run(ctx context.Context) {
	log := m.Logger
	if log == nil {
		log = slog.Default()
	}

	interval := m.UpdateInterval
	if interval <= 0 {
		interval = DefaultUpdateInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := m.Tick(ctx); err != nil {
			log.Error("merge tick failed", "error", err)
		}
	}
}

// Tick runs one full merge pass: snapshot hostnames, fold each one's
// source rows, run the modifier chain, and converge the hosts table
// onto the result (spec §4.4 steps 1-4), all inside a single
// transaction so a mid-tick failure never leaves hosts partially
// converged — the same "one transaction per batch" rule the source
// handler applies to its own writes (spec §5).
func (m *Merger) Tick(ctx context.Context) error {
	log := m.Logger
	if log == nil {
		log = slog.Default()
	}

	return m.Store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		hostnames, err := tx.ListSourceHostnames(ctx)
		if err != nil {
			return err
		}

		for _, hostname := range hostnames {
			rows, err := tx.ListSourceHostRows(ctx, hostname)
			if err != nil {
				return err
			}
			merged := Fold(rows, log)
			if m.Chain != nil {
				merged = m.Chain.Run(ctx, merged)
			}
			if _, err := tx.UpsertHost(ctx, hostname, merged); err != nil {
				return err
			}
		}

		if _, err := tx.DeleteHostsNotIn(ctx, hostnames); err != nil {
			return err
		}
		return nil
	})
}

// Fold folds rows into one canonical Host using the merge rule,
// sorting by (source, hostname) first so the result is independent of
// the order rows were read in (spec §4.4 step 2, §8 "Merge
// commutativity").
func Fold(rows []storage.SourceHostRow, log *slog.Logger) model.Host {
	sorted := append([]storage.SourceHostRow(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Source != sorted[j].Source {
			return sorted[i].Source < sorted[j].Source
		}
		return sorted[i].Hostname < sorted[j].Hostname
	})

	if len(sorted) == 0 {
		return model.Host{}
	}

	out := sorted[0].Host.Clone()
	for _, row := range sorted[1:] {
		out = model.Merge(out, row.Host, log)
	}
	return out
}
