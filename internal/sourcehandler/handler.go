// Package sourcehandler implements the single-consumer worker that
// drains every source's collector queue into the hosts_source table
// (spec §4.3).
package sourcehandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/zabbix-auto-config/zac/internal/errcounter"
	"github.com/zabbix-auto-config/zac/internal/model"
	"github.com/zabbix-auto-config/zac/internal/storage"
)

// IdleSleep is how long the handler waits between polling passes over
// every source queue when none had data, per spec §4.3's "polling each
// queue non-blockingly" loop.
const IdleSleep = time.Second

// BatchCounts is the {equal, replaced, inserted, removed} tuple logged
// per batch (spec §4.3 step 3).
type BatchCounts struct {
	Equal    int
	Replaced int
	Inserted int
	Removed  int
}

// Handler drains a fixed set of source queues into Store, one batch at
// a time, in its own goroutine.
type Handler struct {
	Queues  map[string]<-chan model.SourceHosts
	Store   storage.Store
	Logger  *slog.Logger
	Counter *errcounter.RollingCounter
}

// Run polls every queue in a round until ctx is cancelled. A batch
// that fails to commit rolls back and increments Counter, but the
// handler keeps running.
func (h *Handler) Run(ctx context.Context) {
	log := h.Logger
	if log == nil {
		log = slog.Default()
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		drainedAny := false
		for source, queue := range h.Queues {
			select {
			case batch := <-queue:
				drainedAny = true
				if err := h.applyBatch(ctx, batch); err != nil {
					log.Error("source batch failed, rolled back", "source", source, "error", err)
					if h.Counter != nil {
						h.Counter.Add()
					}
				}
			default:
			}
		}

		if !drainedAny {
			select {
			case <-ctx.Done():
				return
			case <-time.After(IdleSleep):
			}
		}
	}
}

// applyBatch runs one source's upserts and stale-row deletion inside a
// single transaction, per spec §4.3's "all statements for one batch
// run in one transaction" rule.
func (h *Handler) applyBatch(ctx context.Context, batch model.SourceHosts) error {
	log := h.Logger
	if log == nil {
		log = slog.Default()
	}

	return h.Store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		counts := BatchCounts{}
		now := time.Now()
		keep := make([]string, 0, len(batch.Hosts))

		for _, host := range batch.Hosts {
			keep = append(keep, host.Hostname)
			row := storage.SourceHostRow{
				Source:    batch.Source,
				Hostname:  host.Hostname,
				Host:      host,
				Timestamp: now,
			}
			result, err := tx.UpsertSourceHost(ctx, row)
			if err != nil {
				return err
			}
			switch result {
			case storage.Inserted:
				counts.Inserted++
			case storage.Replaced:
				counts.Replaced++
			default:
				counts.Equal++
			}
		}

		removed, err := tx.DeleteSourceHostsNotIn(ctx, batch.Source, keep)
		if err != nil {
			return err
		}
		counts.Removed = removed

		log.Info("applied source batch",
			"source", batch.Source,
			"equal", counts.Equal,
			"replaced", counts.Replaced,
			"inserted", counts.Inserted,
			"removed", counts.Removed,
		)
		return nil
	})
}
