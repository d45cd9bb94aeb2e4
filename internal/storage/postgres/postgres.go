// Package postgres implements storage.Store over pgxpool, the backend
// used in production deployments.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zabbix-auto-config/zac/internal/model"
	"github.com/zabbix-auto-config/zac/internal/storage"
)

// conn is the subset of pgx used by Store, satisfied by both
// *pgxpool.Pool and pgx.Tx, so the query logic below runs unchanged
// whether it is the top-level Store or a WithTx transaction calling it.
type conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a storage.Store backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to Postgres using dsn (a libpq connection string) and
// returns a ready Store.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close implements storage.Store.
func (s *Store) Close() { s.pool.Close() }

// Pool exposes the underlying pool. The migrate subcommand does not use
// it; it opens its own database/sql handle.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) UpsertSourceHost(ctx context.Context, row storage.SourceHostRow) (storage.UpsertResult, error) {
	return upsertSourceHost(ctx, s.pool, row)
}

func (s *Store) DeleteSourceHostsNotIn(ctx context.Context, source string, keep []string) (int, error) {
	return deleteSourceHostsNotIn(ctx, s.pool, source, keep)
}

func (s *Store) ListSourceHostnames(ctx context.Context) ([]string, error) {
	return listSourceHostnames(ctx, s.pool)
}

func (s *Store) ListSourceHostRows(ctx context.Context, hostname string) ([]storage.SourceHostRow, error) {
	return listSourceHostRows(ctx, s.pool, hostname)
}

func (s *Store) UpsertHost(ctx context.Context, hostname string, host model.Host) (storage.UpsertResult, error) {
	return upsertHost(ctx, s.pool, hostname, host)
}

func (s *Store) DeleteHostsNotIn(ctx context.Context, keep []string) (int, error) {
	return deleteHostsNotIn(ctx, s.pool, keep)
}

func (s *Store) ListEnabledHosts(ctx context.Context) ([]storage.HostRow, error) {
	return listEnabledHosts(ctx, s.pool)
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx storage.Store) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &txStore{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// txStore is the transactional view of Store, used only inside WithTx.
type txStore struct {
	tx pgx.Tx
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

func upsertSourceHost(ctx context.Context, c conn, row storage.SourceHostRow) (storage.UpsertResult, error) {
	encoded, err := json.Marshal(row.Host)
	if err != nil {
		return storage.Unchanged, fmt.Errorf("postgres: marshal host %q: %w", row.Hostname, err)
	}

	var existing string
	err = c.QueryRow(ctx,
		`SELECT data FROM hosts_source WHERE source = $1 AND hostname = $2`,
		row.Source, row.Hostname).Scan(&existing)
	existed := err == nil
	if existed && existing == string(encoded) {
		return storage.Unchanged, nil
	}
	if err != nil && err != pgx.ErrNoRows {
		return storage.Unchanged, fmt.Errorf("postgres: read existing source host: %w", err)
	}

	_, err = c.Exec(ctx,
		`INSERT INTO hosts_source (source, hostname, data, timestamp)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (source, hostname) DO UPDATE SET data = EXCLUDED.data, timestamp = EXCLUDED.timestamp`,
		row.Source, row.Hostname, string(encoded), row.Timestamp.UTC())
	if err != nil {
		return storage.Unchanged, fmt.Errorf("postgres: upsert source host %q: %w", row.Hostname, err)
	}
	if existed {
		return storage.Replaced, nil
	}
	return storage.Inserted, nil
}

func deleteSourceHostsNotIn(ctx context.Context, c conn, source string, keep []string) (int, error) {
	tag, err := c.Exec(ctx,
		`DELETE FROM hosts_source WHERE source = $1 AND NOT (hostname = ANY($2))`,
		source, keep)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete stale source hosts: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func listSourceHostnames(ctx context.Context, c conn) ([]string, error) {
	rows, err := c.Query(ctx, `SELECT DISTINCT hostname FROM hosts_source`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list source hostnames: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var hostname string
		if err := rows.Scan(&hostname); err != nil {
			return nil, fmt.Errorf("postgres: scan hostname: %w", err)
		}
		out = append(out, hostname)
	}
	return out, rows.Err()
}

func listSourceHostRows(ctx context.Context, c conn, hostname string) ([]storage.SourceHostRow, error) {
	rows, err := c.Query(ctx,
		`SELECT source, hostname, data, timestamp FROM hosts_source WHERE hostname = $1 ORDER BY source, hostname`,
		hostname)
	if err != nil {
		return nil, fmt.Errorf("postgres: list source host rows: %w", err)
	}
	defer rows.Close()

	var out []storage.SourceHostRow
	for rows.Next() {
		var (
			row     storage.SourceHostRow
			encoded string
		)
		if err := rows.Scan(&row.Source, &row.Hostname, &encoded, &row.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan source host row: %w", err)
		}
		if err := json.Unmarshal([]byte(encoded), &row.Host); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal host %q: %w", row.Hostname, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func upsertHost(ctx context.Context, c conn, hostname string, host model.Host) (storage.UpsertResult, error) {
	encoded, err := json.Marshal(host)
	if err != nil {
		return storage.Unchanged, fmt.Errorf("postgres: marshal host %q: %w", hostname, err)
	}

	var existing string
	err = c.QueryRow(ctx, `SELECT data FROM hosts WHERE hostname = $1`, hostname).Scan(&existing)
	existed := err == nil
	if existed && existing == string(encoded) {
		return storage.Unchanged, nil
	}
	if err != nil && err != pgx.ErrNoRows {
		return storage.Unchanged, fmt.Errorf("postgres: read existing host: %w", err)
	}

	_, err = c.Exec(ctx,
		`INSERT INTO hosts (hostname, data) VALUES ($1, $2)
		 ON CONFLICT (hostname) DO UPDATE SET data = EXCLUDED.data`,
		hostname, string(encoded))
	if err != nil {
		return storage.Unchanged, fmt.Errorf("postgres: upsert host %q: %w", hostname, err)
	}
	if existed {
		return storage.Replaced, nil
	}
	return storage.Inserted, nil
}

func deleteHostsNotIn(ctx context.Context, c conn, keep []string) (int, error) {
	tag, err := c.Exec(ctx, `DELETE FROM hosts WHERE NOT (hostname = ANY($1))`, keep)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete stale hosts: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func listEnabledHosts(ctx context.Context, c conn) ([]storage.HostRow, error) {
	rows, err := c.Query(ctx, `SELECT hostname, data FROM hosts`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list enabled hosts: %w", err)
	}
	defer rows.Close()

	var out []storage.HostRow
	for rows.Next() {
		var (
			hostname string
			encoded  string
		)
		if err := rows.Scan(&hostname, &encoded); err != nil {
			return nil, fmt.Errorf("postgres: scan host row: %w", err)
		}
		var host model.Host
		if err := json.Unmarshal([]byte(encoded), &host); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal host %q: %w", hostname, err)
		}
		if !host.Enabled {
			continue
		}
		out = append(out, storage.HostRow{Hostname: hostname, Host: host})
	}
	return out, rows.Err()
}
