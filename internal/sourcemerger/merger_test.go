package sourcemerger_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zabbix-auto-config/zac/internal/hostmodifier"
	"github.com/zabbix-auto-config/zac/internal/model"
	"github.com/zabbix-auto-config/zac/internal/sourcemerger"
	"github.com/zabbix-auto-config/zac/internal/storage"
	"github.com/zabbix-auto-config/zac/internal/storage/migrate"
	"github.com/zabbix-auto-config/zac/internal/storage/sqlite"
)

func TestFoldIsOrderIndependent(t *testing.T) {
	a := model.New("foo.example.com")
	a.Enabled = true
	a.Properties["a"] = true

	b := model.New("foo.example.com")
	b.Properties["b"] = true
	b.Properties["a"] = true

	rows := []storage.SourceHostRow{
		{Source: "src1", Hostname: "foo.example.com", Host: a},
		{Source: "src2", Hostname: "foo.example.com", Host: b},
	}

	base := sourcemerger.Fold(rows, nil)

	for i := 0; i < 10; i++ {
		shuffled := append([]storage.SourceHostRow(nil), rows...)
		rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got := sourcemerger.Fold(shuffled, nil)
		require.ElementsMatch(t, base.SortedProperties(), got.SortedProperties())
		require.Equal(t, base.Enabled, got.Enabled)
	}

	require.ElementsMatch(t, []string{"a", "b"}, base.SortedProperties())
	require.True(t, base.Enabled)
}

func TestMergerTickConvergesHostsTable(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, migrate.Up(store.DB(), "sqlite3"))

	ctx := context.Background()

	h1 := model.New("foo.example.com")
	h1.Properties["a"] = true
	_, err = store.UpsertSourceHost(ctx, storage.SourceHostRow{Source: "src1", Hostname: "foo.example.com", Host: h1})
	require.NoError(t, err)

	h2 := model.New("foo.example.com")
	h2.Properties["b"] = true
	h2.Enabled = true
	_, err = store.UpsertSourceHost(ctx, storage.SourceHostRow{Source: "src2", Hostname: "foo.example.com", Host: h2})
	require.NoError(t, err)

	chain := &hostmodifier.Chain{Entries: []hostmodifier.Entry{
		{Name: "append", Modifier: hostmodifier.AppendProperty{}, Settings: map[string]any{"property": "barry"}},
	}}
	m := &sourcemerger.Merger{Store: store, Chain: chain}

	require.NoError(t, m.Tick(ctx))

	rows, err := store.ListEnabledHosts(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, rows[0].Host.Properties["a"])
	require.True(t, rows[0].Host.Properties["b"])
	require.True(t, rows[0].Host.Properties["barry"])
}
