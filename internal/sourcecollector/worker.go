package sourcecollector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/zabbix-auto-config/zac/internal/errcounter"
	"github.com/zabbix-auto-config/zac/internal/model"
	"github.com/zabbix-auto-config/zac/internal/plugin"
)

// DefaultToleranceMultiplier is the factor applied to UpdateInterval to
// derive the rolling error counter's window, per spec §4.2 step 5.
const DefaultToleranceMultiplier = 5

// DefaultTolerance is the number of failures tolerated within the
// rolling window before a worker marks itself unhealthy and exits.
const DefaultTolerance = 5

// Worker runs one configured source's collector on its own cadence,
// publishing batches onto Queue. Queue must be buffered with capacity
// 1: a full queue is the intended backpressure signal that the handler
// has fallen behind (spec §4.2 step 4).
type Worker struct {
	Name           string
	Collector      Collector
	Settings       map[string]any
	UpdateInterval time.Duration
	Queue          chan<- model.SourceHosts
	Logger         *slog.Logger

	// StartupDelay staggers this worker's first tick; the daemon's
	// wiring (buildDaemon) sets it to the maximum UpdateInterval across all sources so
	// collectors come online staggered rather than thundering on boot.
	StartupDelay time.Duration

	counter *errcounter.RollingCounter
}

// Run blocks until ctx is cancelled or the rolling error budget is
// exceeded, in which case it returns a non-nil error so the supervisor
// treats this worker as dead.
func (w *Worker) Run(ctx context.Context) error {
	log := w.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("source", w.Name)

	window := w.UpdateInterval * DefaultToleranceMultiplier
	if window <= 0 {
		window = time.Minute
	}
	var err error
	w.counter, err = errcounter.New(window, DefaultTolerance)
	if err != nil {
		return err
	}

	guard := plugin.Guard{Name: w.Name, Logger: log, Counter: w.counter}

	if w.StartupDelay > 0 {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.StartupDelay):
		}
	}

	interval := w.UpdateInterval
	if interval <= 0 {
		interval = time.Minute
	}
	// limiter paces collect() invocations at one per interval and, unlike
	// a plain ticker, unblocks the moment ctx is cancelled rather than at
	// the next tick boundary.
	limiter := rate.NewLimiter(rate.Every(interval), 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}

		start := time.Now()
		var hosts []model.Host
		callErr := guard.Call(func() error {
			var innerErr error
			hosts, innerErr = w.Collector.Collect(ctx, w.Settings)
			return innerErr
		})
		if callErr != nil {
			if w.counter.ToleranceExceeded() {
				log.Error("rolling error budget exceeded, worker exiting", "window", window)
				return callErr
			}
			continue
		}

		valid := make([]model.Host, 0, len(hosts))
		for _, h := range hosts {
			h.Sources = map[string]bool{w.Name: true}
			if err := h.Validate(); err != nil {
				log.Warn("dropping invalid host from collector", "hostname", h.Hostname, "error", err)
				continue
			}
			valid = append(valid, h)
		}

		select {
		case w.Queue <- model.SourceHosts{Source: w.Name, Hosts: valid}:
		case <-ctx.Done():
			return nil
		}

		log.Info("collected hosts", "count", len(valid), "duration", time.Since(start))

		if w.counter.ToleranceExceeded() {
			log.Error("rolling error budget exceeded, worker exiting", "window", window)
			return fmt.Errorf("source %q: rolling error budget exceeded", w.Name)
		}
	}
}
