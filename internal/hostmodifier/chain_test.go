package hostmodifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zabbix-auto-config/zac/internal/model"
)

type failingModifier struct{}

func (failingModifier) Modify(_ context.Context, _ map[string]any, host model.Host) (model.Host, error) {
	return host, errors.New("always fails")
}

type panickingModifier struct{}

func (panickingModifier) Modify(_ context.Context, _ map[string]any, _ model.Host) (model.Host, error) {
	panic("boom")
}

func TestChainAppliesInOrder(t *testing.T) {
	chain := &Chain{
		Entries: []Entry{
			{Name: "a", Modifier: AppendProperty{}, Settings: map[string]any{"property": "first"}},
			{Name: "b", Modifier: AppendProperty{}, Settings: map[string]any{"property": "second"}},
		},
	}

	host := model.New("example.com")
	out := chain.Run(context.Background(), host)

	require.True(t, out.Properties["first"])
	require.True(t, out.Properties["second"])
}

func TestChainSkipsFailingModifierAndContinues(t *testing.T) {
	chain := &Chain{
		Entries: []Entry{
			{Name: "broken", Modifier: failingModifier{}},
			{Name: "ok", Modifier: AppendProperty{}, Settings: map[string]any{"property": "tag"}},
		},
	}

	host := model.New("example.com")
	out := chain.Run(context.Background(), host)

	require.True(t, out.Properties["tag"])
}

func TestChainSurvivesPanickingModifier(t *testing.T) {
	chain := &Chain{
		Entries: []Entry{
			{Name: "panics", Modifier: panickingModifier{}},
			{Name: "ok", Modifier: AppendProperty{}, Settings: map[string]any{"property": "tag"}},
		},
	}

	host := model.New("example.com")
	require.NotPanics(t, func() {
		out := chain.Run(context.Background(), host)
		require.True(t, out.Properties["tag"])
	})
}

func TestChainRejectsInvalidCandidateOutput(t *testing.T) {
	badModifier := ModifierFunc(func(_ context.Context, _ map[string]any, host model.Host) (model.Host, error) {
		host.Hostname = ""
		return host, nil
	})
	chain := &Chain{
		Entries: []Entry{
			{Name: "wipes-hostname", Modifier: badModifier},
		},
	}

	host := model.New("example.com")
	out := chain.Run(context.Background(), host)
	require.Equal(t, "example.com", out.Hostname)
}
