// Package supervisor starts every daemon worker, watches for the
// first one to die, and drives shutdown on SIGINT/SIGTERM or a dead
// worker (spec §5 Cancellation), writing the periodic health snapshot
// described in spec §6 along the way.
//
// Workers here are goroutines, not OS processes — spec §5 leaves the
// isolation unit as an implementation choice ("process or
// goroutine/thread"). The one place this changes observable behavior
// is the "force-terminate" step: a goroutine that ignores context
// cancellation cannot be killed from outside it, so past the 10s grace
// period the supervisor logs the stragglers and returns rather than
// actually terminating them.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/zabbix-auto-config/zac/internal/health"
)

// Process is one managed worker: a name and the function that runs it
// until ctx is cancelled or it fails.
type Process struct {
	Name string
	Run  func(ctx context.Context) error
}

// QueueSource names a source queue whose current depth is reported in
// the health snapshot's "queues" array.
type QueueSource struct {
	Name  string
	Depth func() int
}

// Supervisor owns the daemon's one process-wide stop flag (spec §9
// "Global state") and the worker status registry used to build health
// snapshots.
type Supervisor struct {
	Processes      []Process
	Queues         []QueueSource
	HealthFile     string
	StatusInterval time.Duration
	Failsafe       int
	Logger         *slog.Logger

	mu     sync.Mutex
	status map[string]*workerStatus
}

type workerStatus struct {
	alive bool
	ok    bool
}

// Run blocks until SIGINT/SIGTERM, a dead worker, or ctx cancellation,
// then drives every worker's shutdown and returns. A non-nil error
// means a worker exited on its own (the original crash, not a clean
// shutdown); a nil error means shutdown was requested externally.
func (s *Supervisor) Run(ctx context.Context) error {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	interval := s.StatusInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}

	instanceID := uuid.New().String()
	log.Info("supervisor starting", "instance_id", instanceID, "workers", len(s.Processes))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.status = make(map[string]*workerStatus, len(s.Processes))
	for _, p := range s.Processes {
		s.status[p.Name] = &workerStatus{alive: true, ok: true}
	}

	done := make(chan string, len(s.Processes))
	errs := make(map[string]error, len(s.Processes))
	var errsMu sync.Mutex

	for _, p := range s.Processes {
		p := p
		go func() {
			err := p.Run(runCtx)

			errsMu.Lock()
			errs[p.Name] = err
			errsMu.Unlock()

			s.mu.Lock()
			s.status[p.Name].alive = false
			s.status[p.Name].ok = err == nil
			s.mu.Unlock()

			done <- p.Name
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var crashed string
loop:
	for {
		select {
		case <-sigCh:
			log.Info("received shutdown signal")
			break loop
		case name := <-done:
			log.Error("worker exited unexpectedly, shutting down", "worker", name, "error", errs[name])
			crashed = name
			break loop
		case <-ticker.C:
			s.writeHealth(log)
			s.logProcessStatus(log)
		case <-ctx.Done():
			break loop
		}
	}

	cancel()
	s.waitForExit(log, done, crashed)

	if crashed != "" {
		return fmt.Errorf("supervisor: worker %q exited: %w", crashed, errs[crashed])
	}
	log.Info("supervisor exit")
	return nil
}

// waitForExit waits up to 10s for every still-running worker to react
// to cancellation. already is a worker name already known to be done
// (the crashed one, if any) and is excluded from the wait set.
func (s *Supervisor) waitForExit(log *slog.Logger, done <-chan string, already string) {
	remaining := make(map[string]bool, len(s.Processes))
	for _, p := range s.Processes {
		if p.Name != already {
			remaining[p.Name] = true
		}
	}

	deadline := time.After(10 * time.Second)
	for len(remaining) > 0 {
		select {
		case name := <-done:
			delete(remaining, name)
		case <-deadline:
			for name := range remaining {
				log.Warn("worker did not exit within grace period, abandoning", "worker", name)
			}
			return
		}
	}
}

func (s *Supervisor) writeHealth(log *slog.Logger) {
	if s.HealthFile == "" {
		return
	}

	s.mu.Lock()
	processes := make([]health.ProcessStatus, 0, len(s.Processes))
	pid := os.Getpid()
	for _, p := range s.Processes {
		st := s.status[p.Name]
		processes = append(processes, health.ProcessStatus{Name: p.Name, PID: pid, Alive: st.alive, OK: st.ok})
	}
	s.mu.Unlock()

	queues := make([]health.QueueStatus, 0, len(s.Queues))
	for _, q := range s.Queues {
		queues = append(queues, health.QueueStatus{Name: q.Name, Size: q.Depth()})
	}

	snapshot := health.New(time.Now(), processes, queues, s.Failsafe)
	if err := health.Write(s.HealthFile, snapshot); err != nil {
		log.Error("failed to write health file", "path", s.HealthFile, "error", err)
	}
}

func (s *Supervisor) logProcessStatus(log *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]string, 0, len(s.Processes))
	for _, p := range s.Processes {
		state := "alive"
		if !s.status[p.Name].alive {
			state = "dead"
		}
		statuses = append(statuses, fmt.Sprintf("%s is %s", p.Name, state))
	}
	log.Info("process status", "status", strings.Join(statuses, ", "))
}
