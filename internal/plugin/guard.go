// Package plugin implements the safety contract every call into
// pluggable collector/modifier code goes through (spec §4.1): recover
// panics, log them with the plugin's name, and feed the caller's
// rolling error counter.
//
// This target is statically compiled, so "pluggable" modules are
// compiled-in strategies registered by name (spec §9, Design Note
// "Plugin model without dynamic import") rather than dynamically
// imported files. Collect() and Modify() stand in for whatever a
// dynamically loaded module would have exposed; Guard wraps both the
// same way the original's SourceCollectorProcess/modifier chain wraps
// a dynamically imported module's entrypoint.
package plugin

import (
	"fmt"
	"log/slog"

	"github.com/zabbix-auto-config/zac/internal/errcounter"
)

// Guard wraps a single named plugin call (collector or modifier) with
// panic recovery, logging, and error-budget accounting.
type Guard struct {
	Name    string
	Logger  *slog.Logger
	Counter *errcounter.RollingCounter
}

// Call invokes fn, recovering any panic and turning it into an error.
// On any error (panic or returned), it logs with the plugin's name and
// records the failure against Counter.
func (g Guard) Call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin %q panicked: %v", g.Name, r)
		}
		if err != nil {
			if g.Logger != nil {
				g.Logger.Warn("plugin call failed", "plugin", g.Name, "error", err)
			}
			if g.Counter != nil {
				g.Counter.Add()
			}
		}
	}()
	return fn()
}
