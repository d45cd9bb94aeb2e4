// Command zac is the zabbix-auto-config reconciliation daemon: it
// collects hosts from configured sources, merges them into one
// canonical record per hostname, and reconciles Zabbix hosts, host
// groups, and templates to match.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
