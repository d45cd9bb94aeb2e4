package main

import (
	"github.com/spf13/cobra"
)

// newRootCommand builds the zac CLI, grounded on the teacher's
// cmd/migrate/cmd/configvalidator subcommand split: one root command
// carrying the shared --config flag, with run (the daemon itself) as
// the default action when no subcommand is given.
func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "zac",
		Short: "Zabbix auto-config reconciliation daemon",
		Long: "zac collects hosts from configured sources, merges them into a canonical\n" +
			"record per hostname, and reconciles Zabbix hosts, host groups, and\n" +
			"templates to match. Run with no subcommand to start the daemon.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.toml", "path to config.toml")

	root.AddCommand(
		newRunCommand(&configPath),
		newMigrateCommand(&configPath),
		newValidateConfigCommand(&configPath),
	)
	return root
}
