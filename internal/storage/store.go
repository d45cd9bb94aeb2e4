// Package storage defines the persistence contract shared by the
// Postgres and SQLite backends (spec §6): the hosts_source and hosts
// tables, keyed and upserted exactly as the schema describes.
package storage

import (
	"context"
	"time"

	"github.com/zabbix-auto-config/zac/internal/model"
)

// SourceHostRow is one row of hosts_source: a single source's view of
// a single hostname, plus the timestamp of its last write.
type SourceHostRow struct {
	Source    string
	Hostname  string
	Host      model.Host
	Timestamp time.Time
}

// HostRow is one row of hosts: the merged canonical view of a hostname.
type HostRow struct {
	Hostname string
	Host     model.Host
}

// UpsertResult reports what an upsert actually did, distinguishing a
// genuinely new row from one that existed but changed — the
// {equal, replaced, inserted} split from spec §4.3 step 3.
type UpsertResult int

const (
	Unchanged UpsertResult = iota
	Inserted
	Replaced
)

// Store is the persistence contract every pipeline stage after
// ingestion depends on. Implementations must make UpsertSourceHost and
// UpsertHost byte-equality short-circuits (spec §4.3 step on "equal"),
// comparing serialized form rather than relying on ORM dirty-tracking.
type Store interface {
	// UpsertSourceHost inserts or replaces the (source, hostname) row,
	// reporting which of the three outcomes occurred.
	UpsertSourceHost(ctx context.Context, row SourceHostRow) (UpsertResult, error)

	// DeleteSourceHostsNotIn removes every hosts_source row for source
	// whose hostname is not in keep, reporting how many rows were removed.
	DeleteSourceHostsNotIn(ctx context.Context, source string, keep []string) (removed int, err error)

	// ListSourceHostnames returns every distinct hostname currently
	// present in hosts_source, across all sources.
	ListSourceHostnames(ctx context.Context) ([]string, error)

	// ListSourceHostRows returns every hosts_source row for hostname,
	// across all sources, sorted by (source, hostname) for deterministic
	// fold order (spec §8 "Merge commutativity").
	ListSourceHostRows(ctx context.Context, hostname string) ([]SourceHostRow, error)

	// UpsertHost inserts or replaces the merged row for hostname,
	// reporting which of the three outcomes occurred.
	UpsertHost(ctx context.Context, hostname string, host model.Host) (UpsertResult, error)

	// DeleteHostsNotIn removes every hosts row whose hostname is not in
	// keep, reporting how many rows were removed.
	DeleteHostsNotIn(ctx context.Context, keep []string) (removed int, err error)

	// ListEnabledHosts returns every hosts row with enabled = true.
	ListEnabledHosts(ctx context.Context) ([]HostRow, error)

	// WithTx runs fn inside a single transaction; a non-nil return
	// rolls back, nil commits.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// Close releases the backend's connections.
	Close()
}
