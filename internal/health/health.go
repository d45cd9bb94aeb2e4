// Package health writes the periodic liveness snapshot described in
// spec §6: one JSON file an external prober (or an operator) can read
// to see each worker's status, queue depth, and the failsafe threshold
// in effect — without needing an HTTP listener in a daemon that
// otherwise has no inbound surface.
package health

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ProcessStatus is one worker's entry in Snapshot.Processes.
type ProcessStatus struct {
	Name  string `json:"name"`
	PID   int    `json:"pid"`
	Alive bool   `json:"alive"`
	OK    bool   `json:"ok"`
}

// QueueStatus is one source queue's entry in Snapshot.Queues.
type QueueStatus struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// Snapshot is the on-disk health payload, shaped exactly as spec §6
// describes it so existing operator tooling built against the Python
// daemon's health file keeps working unmodified.
type Snapshot struct {
	Date         string          `json:"date"`
	DateUnixtime int64           `json:"date_unixtime"`
	PID          int             `json:"pid"`
	Cwd          string          `json:"cwd"`
	AllOK        bool            `json:"all_ok"`
	Processes    []ProcessStatus `json:"processes"`
	Queues       []QueueStatus   `json:"queues"`
	Failsafe     int             `json:"failsafe"`
}

// New builds a Snapshot for now, deriving AllOK as the conjunction of
// every process's OK field (an empty process list is vacuously ok).
func New(now time.Time, processes []ProcessStatus, queues []QueueStatus, failsafe int) Snapshot {
	allOK := true
	for _, p := range processes {
		if !p.OK {
			allOK = false
			break
		}
	}
	cwd, _ := os.Getwd()
	return Snapshot{
		Date:         now.Format("2006-01-02T15:04:05Z07:00"),
		DateUnixtime: now.Unix(),
		PID:          os.Getpid(),
		Cwd:          cwd,
		AllOK:        allOK,
		Processes:    processes,
		Queues:       queues,
		Failsafe:     failsafe,
	}
}

// Write atomically replaces the file at path with snapshot's JSON
// encoding: write to a temp file in the same directory, then rename,
// so a reader never observes a half-written file.
func Write(path string, snapshot Snapshot) error {
	encoded, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("health: marshal snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".health-*.tmp")
	if err != nil {
		return fmt.Errorf("health: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		return fmt.Errorf("health: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("health: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("health: rename into place: %w", err)
	}
	return nil
}

// Read loads a previously written Snapshot, e.g. for a CLI health check.
func Read(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("health: read %q: %w", path, err)
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("health: unmarshal %q: %w", path, err)
	}
	return snapshot, nil
}
