package sourcecollector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zabbix-auto-config/zac/internal/model"
)

type fakeCollector struct {
	hosts []model.Host
	err   error
	calls int
}

func (f *fakeCollector) Collect(_ context.Context, _ map[string]any) ([]model.Host, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.hosts, nil
}

func TestWorkerValidatesAndTagsSource(t *testing.T) {
	queue := make(chan model.SourceHosts, 1)
	collector := &fakeCollector{hosts: []model.Host{model.New("good.example.com"), model.New("")}}

	w := &Worker{
		Name:           "src1",
		Collector:      collector,
		UpdateInterval: 10 * time.Millisecond,
		Queue:          queue,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	go w.Run(ctx)

	select {
	case batch := <-queue:
		require.Len(t, batch.Hosts, 1)
		require.Equal(t, "good.example.com", batch.Hosts[0].Hostname)
		require.True(t, batch.Hosts[0].Sources["src1"])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for batch")
	}
}

func TestWorkerExitsAfterToleranceExceeded(t *testing.T) {
	queue := make(chan model.SourceHosts, 1)
	collector := &fakeCollector{err: errors.New("boom")}

	w := &Worker{
		Name:           "src1",
		Collector:      collector,
		UpdateInterval: time.Millisecond,
		Queue:          queue,
	}

	done := make(chan error, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go func() { done <- w.Run(ctx) }()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit after exceeding its error budget")
	}
}
