// Package sqlite implements storage.Store over modernc.org/sqlite, a
// pure-Go driver used for local development and tests where a running
// Postgres instance is impractical.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zabbix-auto-config/zac/internal/model"
	"github.com/zabbix-auto-config/zac/internal/storage"
)

// Store is a storage.Store backed by a modernc.org/sqlite database.
type Store struct {
	db *sql.DB
}

// New opens (creating if absent) the sqlite database at path. Use
// ":memory:" for an ephemeral in-process database, the common case in
// tests.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid SQLITE_BUSY churn
	return &Store{db: db}, nil
}

// DB exposes the underlying database/sql handle, e.g. for tests. The
// migrate subcommand does not use it; it opens its own handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close implements storage.Store.
func (s *Store) Close() { s.db.Close() }

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) UpsertSourceHost(ctx context.Context, row storage.SourceHostRow) (storage.UpsertResult, error) {
	return upsertSourceHost(ctx, s.db, row)
}

func (s *Store) DeleteSourceHostsNotIn(ctx context.Context, source string, keep []string) (int, error) {
	return deleteSourceHostsNotIn(ctx, s.db, source, keep)
}

func (s *Store) ListSourceHostnames(ctx context.Context) ([]string, error) {
	return listSourceHostnames(ctx, s.db)
}

func (s *Store) ListSourceHostRows(ctx context.Context, hostname string) ([]storage.SourceHostRow, error) {
	return listSourceHostRows(ctx, s.db, hostname)
}

func (s *Store) UpsertHost(ctx context.Context, hostname string, host model.Host) (storage.UpsertResult, error) {
	return upsertHost(ctx, s.db, hostname, host)
}

func (s *Store) DeleteHostsNotIn(ctx context.Context, keep []string) (int, error) {
	return deleteHostsNotIn(ctx, s.db, keep)
}

func (s *Store) ListEnabledHosts(ctx context.Context) ([]storage.HostRow, error) {
	return listEnabledHosts(ctx, s.db)
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx storage.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &txStore{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (t *txStore) UpsertSourceHost(ctx context.Context, row storage.SourceHostRow) (storage.UpsertResult, error) {
	return upsertSourceHost(ctx, t.tx, row)
}

func (t *txStore) DeleteSourceHostsNotIn(ctx context.Context, source string, keep []string) (int, error) {
	return deleteSourceHostsNotIn(ctx, t.tx, source, keep)
}

func (t *txStore) ListSourceHostnames(ctx context.Context) ([]string, error) {
	return listSourceHostnames(ctx, t.tx)
}

func (t *txStore) ListSourceHostRows(ctx context.Context, hostname string) ([]storage.SourceHostRow, error) {
	return listSourceHostRows(ctx, t.tx, hostname)
}

func (t *txStore) UpsertHost(ctx context.Context, hostname string, host model.Host) (storage.UpsertResult, error) {
	return upsertHost(ctx, t.tx, hostname, host)
}

func (t *txStore) DeleteHostsNotIn(ctx context.Context, keep []string) (int, error) {
	return deleteHostsNotIn(ctx, t.tx, keep)
}

func (t *txStore) ListEnabledHosts(ctx context.Context) ([]storage.HostRow, error) {
	return listEnabledHosts(ctx, t.tx)
}

func (t *txStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx storage.Store) error) error {
	return fn(ctx, t)
}

func (t *txStore) Close() {}

func upsertSourceHost(ctx context.Context, c execer, row storage.SourceHostRow) (storage.UpsertResult, error) {
	encoded, err := json.Marshal(row.Host)
	if err != nil {
		return storage.Unchanged, fmt.Errorf("sqlite: marshal host %q: %w", row.Hostname, err)
	}

	var existing string
	err = c.QueryRowContext(ctx,
		`SELECT data FROM hosts_source WHERE source = ? AND hostname = ?`,
		row.Source, row.Hostname).Scan(&existing)
	existed := err == nil
	if existed && existing == string(encoded) {
		return storage.Unchanged, nil
	}
	if err != nil && err != sql.ErrNoRows {
		return storage.Unchanged, fmt.Errorf("sqlite: read existing source host: %w", err)
	}

	_, err = c.ExecContext(ctx,
		`INSERT INTO hosts_source (source, hostname, data, timestamp) VALUES (?, ?, ?, ?)
		 ON CONFLICT (source, hostname) DO UPDATE SET data = excluded.data, timestamp = excluded.timestamp`,
		row.Source, row.Hostname, string(encoded), row.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return storage.Unchanged, fmt.Errorf("sqlite: upsert source host %q: %w", row.Hostname, err)
	}
	if existed {
		return storage.Replaced, nil
	}
	return storage.Inserted, nil
}

func deleteSourceHostsNotIn(ctx context.Context, c execer, source string, keep []string) (int, error) {
	placeholders, args := inArgs(keep)
	args = append([]any{source}, args...)
	result, err := c.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM hosts_source WHERE source = ? AND hostname NOT IN (%s)`, placeholders),
		args...)
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete stale source hosts: %w", err)
	}
	n, err := result.RowsAffected()
	return int(n), err
}

func listSourceHostnames(ctx context.Context, c execer) ([]string, error) {
	rows, err := c.QueryContext(ctx, `SELECT DISTINCT hostname FROM hosts_source`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list source hostnames: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var hostname string
		if err := rows.Scan(&hostname); err != nil {
			return nil, fmt.Errorf("sqlite: scan hostname: %w", err)
		}
		out = append(out, hostname)
	}
	return out, rows.Err()
}

func listSourceHostRows(ctx context.Context, c execer, hostname string) ([]storage.SourceHostRow, error) {
	rows, err := c.QueryContext(ctx,
		`SELECT source, hostname, data, timestamp FROM hosts_source WHERE hostname = ? ORDER BY source, hostname`,
		hostname)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list source host rows: %w", err)
	}
	defer rows.Close()

	var out []storage.SourceHostRow
	for rows.Next() {
		var (
			row       storage.SourceHostRow
			encoded   string
			timestamp string
		)
		if err := rows.Scan(&row.Source, &row.Hostname, &encoded, &timestamp); err != nil {
			return nil, fmt.Errorf("sqlite: scan source host row: %w", err)
		}
		if err := json.Unmarshal([]byte(encoded), &row.Host); err != nil {
			return nil, fmt.Errorf("sqlite: unmarshal host %q: %w", row.Hostname, err)
		}
		row.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp)
		if err != nil {
			return nil, fmt.Errorf("sqlite: parse timestamp for %q: %w", row.Hostname, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func upsertHost(ctx context.Context, c execer, hostname string, host model.Host) (storage.UpsertResult, error) {
	encoded, err := json.Marshal(host)
	if err != nil {
		return storage.Unchanged, fmt.Errorf("sqlite: marshal host %q: %w", hostname, err)
	}

	var existing string
	err = c.QueryRowContext(ctx, `SELECT data FROM hosts WHERE hostname = ?`, hostname).Scan(&existing)
	existed := err == nil
	if existed && existing == string(encoded) {
		return storage.Unchanged, nil
	}
	if err != nil && err != sql.ErrNoRows {
		return storage.Unchanged, fmt.Errorf("sqlite: read existing host: %w", err)
	}

	_, err = c.ExecContext(ctx,
		`INSERT INTO hosts (hostname, data) VALUES (?, ?)
		 ON CONFLICT (hostname) DO UPDATE SET data = excluded.data`,
		hostname, string(encoded))
	if err != nil {
		return storage.Unchanged, fmt.Errorf("sqlite: upsert host %q: %w", hostname, err)
	}
	if existed {
		return storage.Replaced, nil
	}
	return storage.Inserted, nil
}

func deleteHostsNotIn(ctx context.Context, c execer, keep []string) (int, error) {
	placeholders, args := inArgs(keep)
	result, err := c.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM hosts WHERE hostname NOT IN (%s)`, placeholders), args...)
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete stale hosts: %w", err)
	}
	n, err := result.RowsAffected()
	return int(n), err
}

func listEnabledHosts(ctx context.Context, c execer) ([]storage.HostRow, error) {
	rows, err := c.QueryContext(ctx, `SELECT hostname, data FROM hosts`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list enabled hosts: %w", err)
	}
	defer rows.Close()

	var out []storage.HostRow
	for rows.Next() {
		var (
			hostname string
			encoded  string
		)
		if err := rows.Scan(&hostname, &encoded); err != nil {
			return nil, fmt.Errorf("sqlite: scan host row: %w", err)
		}
		var host model.Host
		if err := json.Unmarshal([]byte(encoded), &host); err != nil {
			return nil, fmt.Errorf("sqlite: unmarshal host %q: %w", hostname, err)
		}
		if !host.Enabled {
			continue
		}
		out = append(out, storage.HostRow{Hostname: hostname, Host: host})
	}
	return out, rows.Err()
}

// inArgs builds a "?,?,?" placeholder list and the matching []any args
// for a dynamic-length IN clause. An empty keep list still produces a
// clause that matches nothing, via a placeholder value no hostname can
// equal.
func inArgs(keep []string) (string, []any) {
	if len(keep) == 0 {
		return "?", []any{"\x00impossible\x00"}
	}
	placeholders := make([]string, len(keep))
	args := make([]any, len(keep))
	for i, k := range keep {
		placeholders[i] = "?"
		args[i] = k
	}
	return strings.Join(placeholders, ","), args
}
