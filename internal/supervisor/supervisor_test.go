package supervisor_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zabbix-auto-config/zac/internal/health"
	"github.com/zabbix-auto-config/zac/internal/supervisor"
)

func TestRunExitsCleanlyOnContextCancellation(t *testing.T) {
	started := make(chan struct{}, 2)
	s := &supervisor.Supervisor{
		Processes: []supervisor.Process{
			{Name: "a", Run: func(ctx context.Context) error {
				started <- struct{}{}
				<-ctx.Done()
				return nil
			}},
			{Name: "b", Run: func(ctx context.Context) error {
				started <- struct{}{}
				<-ctx.Done()
				return nil
			}},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	<-started
	<-started
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not exit after context cancellation")
	}
}

func TestRunReturnsErrorWhenWorkerDies(t *testing.T) {
	boom := errors.New("boom")
	s := &supervisor.Supervisor{
		Processes: []supervisor.Process{
			{Name: "flaky", Run: func(ctx context.Context) error {
				return boom
			}},
			{Name: "steady", Run: func(ctx context.Context) error {
				<-ctx.Done()
				return nil
			}},
		},
	}

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
		require.ErrorIs(t, err, boom)
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not exit after a worker died")
	}
}

func TestRunWritesHealthFile(t *testing.T) {
	healthPath := filepath.Join(t.TempDir(), "health.json")

	s := &supervisor.Supervisor{
		Processes: []supervisor.Process{
			{Name: "worker", Run: func(ctx context.Context) error {
				<-ctx.Done()
				return nil
			}},
		},
		Queues: []supervisor.QueueSource{
			{Name: "netbox", Depth: func() int { return 1 }},
		},
		HealthFile:     healthPath,
		StatusInterval: 20 * time.Millisecond,
		Failsafe:       20,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, err := health.Read(healthPath)
		return err == nil
	}, time.Second, 10*time.Millisecond)

	snapshot, err := health.Read(healthPath)
	require.NoError(t, err)
	require.Equal(t, 20, snapshot.Failsafe)
	require.Len(t, snapshot.Queues, 1)
	require.Equal(t, "netbox", snapshot.Queues[0].Name)
	require.Equal(t, 1, snapshot.Queues[0].Size)
	require.True(t, snapshot.AllOK)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not exit after context cancellation")
	}
}
