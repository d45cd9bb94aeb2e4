package main

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/zabbix-auto-config/zac/internal/config"
	"github.com/zabbix-auto-config/zac/internal/storage/migrate"
)

// newMigrateCommand applies the embedded schema migrations and exits,
// grounded on the teacher's separate cmd/migrate subcommand for schema
// management independent of the running daemon.
func newMigrateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			dialect, conn := dsnDialect(cfg.Zac.DBURI)

			// goose expects a database/sql handle. pgx's pool-based
			// Store doesn't expose one, so Postgres opens its own
			// database/sql connection through the pgx stdlib driver
			// for this one-shot operation instead of reusing the pool.
			driverName := "sqlite"
			if dialect == "postgres" {
				driverName = "pgx"
			}

			db, err := sql.Open(driverName, conn)
			if err != nil {
				return fmt.Errorf("migrate: open %q: %w", driverName, err)
			}
			defer db.Close()

			if err := migrate.Up(db, dialect); err != nil {
				return err
			}
			fmt.Println("migrations applied")
			return nil
		},
	}
}
