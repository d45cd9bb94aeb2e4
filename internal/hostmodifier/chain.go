package hostmodifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/zabbix-auto-config/zac/internal/errcounter"
	"github.com/zabbix-auto-config/zac/internal/model"
	"github.com/zabbix-auto-config/zac/internal/plugin"
)

// Entry is one configured position in the chain: a named strategy plus
// its settings bag.
type Entry struct {
	Name     string
	Modifier Modifier
	Settings map[string]any
}

// Chain runs a fixed, ordered sequence of modifiers over a host,
// per spec §4.4 step 3. Each entry gets its own rolling error counter
// so one misbehaving modifier can't starve the tolerance budget of its
// neighbours.
type Chain struct {
	Entries []Entry
	Logger  *slog.Logger

	counters map[string]*errcounter.RollingCounter
}

// DefaultWindow and DefaultTolerance mirror sourcecollector's defaults;
// a merge tick runs far more often than a collector tick, but the
// failure semantics (fail-open, leave the host unchanged) are the same
// regardless of cadence.
const (
	DefaultWindow    = 5 * time.Minute
	DefaultTolerance = 5
)

// Run applies every entry in order, threading each entry's output host
// into the next. A failing or panicking entry leaves the working host
// unchanged for that step and the chain continues to the next entry —
// one modifier's fault never blocks the others or the merge itself.
func (c *Chain) Run(ctx context.Context, host model.Host) model.Host {
	log := c.Logger
	if log == nil {
		log = slog.Default()
	}
	if c.counters == nil {
		c.counters = make(map[string]*errcounter.RollingCounter, len(c.Entries))
	}

	working := host
	for _, entry := range c.Entries {
		counter, ok := c.counters[entry.Name]
		if !ok {
			var err error
			counter, err = errcounter.New(DefaultWindow, DefaultTolerance)
			if err != nil {
				continue
			}
			c.counters[entry.Name] = counter
		}

		guard := plugin.Guard{Name: entry.Name, Logger: log, Counter: counter}

		candidate := working.Clone()
		callErr := guard.Call(func() error {
			var innerErr error
			candidate, innerErr = entry.Modifier.Modify(ctx, entry.Settings, working.Clone())
			return innerErr
		})
		if callErr != nil {
			continue
		}
		if err := candidate.Validate(); err != nil {
			log.Warn("modifier produced an invalid host, discarding its change", "modifier", entry.Name, "hostname", working.Hostname, "error", err)
			continue
		}
		working = candidate
	}
	return working
}
