package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/zabbix-auto-config/zac/internal/config"
	"github.com/zabbix-auto-config/zac/internal/logging"
)

// newRunCommand wraps runDaemon for explicit invocation ("zac run"),
// mirroring the default root action.
func newRunCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the reconciliation daemon (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, *configPath)
		},
	}
}

func runDaemon(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logging.New(logging.Config{
		Level:  cfg.Zac.LogLevel,
		Format: cfg.Zac.LogFormat,
	})
	slog.SetDefault(log)

	sup, store, err := buildDaemon(cfg, log)
	if err != nil {
		return fmt.Errorf("zac: build daemon: %w", err)
	}
	defer store.Close()

	return sup.Run(cmd.Context())
}
