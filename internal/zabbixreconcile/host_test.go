package zabbixreconcile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zabbix-auto-config/zac/internal/model"
	"github.com/zabbix-auto-config/zac/internal/storage"
	"github.com/zabbix-auto-config/zac/internal/storage/migrate"
	"github.com/zabbix-auto-config/zac/internal/storage/sqlite"
	"github.com/zabbix-auto-config/zac/internal/zabbixapi"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, migrate.Up(store.DB(), "sqlite3"))
	return store
}

func enableHosts(t *testing.T, store storage.Store, names ...string) {
	t.Helper()
	for _, name := range names {
		h := model.New(name)
		h.Enabled = true
		_, err := store.UpsertHost(context.Background(), name, h)
		require.NoError(t, err)
	}
}

// TestHostReconcilerFailsafeBlocksLargeChange is the spec §8 scenario
// 3: 30 enabled DB hosts absent from Zabbix, failsafe=20, dryrun=false,
// no OK file present. The reconciler must make zero host.create calls.
func TestHostReconcilerFailsafeBlocksLargeChange(t *testing.T) {
	store := newTestStore(t)
	names := make([]string, 30)
	for i := range names {
		names[i] = fmt.Sprintf("host%02d.example.com", i)
	}
	enableHosts(t, store, names...)

	fc := &fakeClient{groups: []zabbixapi.HostGroup{{GroupID: "g1", Name: AllHostsGroup}}}
	r := &HostReconciler{
		Client:     fc,
		Store:      store,
		Failsafe:   20,
		OKFilePath: filepath.Join(t.TempDir(), "missing-ok-file"),
	}

	require.NoError(t, r.Run(context.Background()))
	require.Empty(t, fc.createCalls, "failsafe must block every host.create call")
}

// TestHostReconcilerOKFileAuthorizesLargeChange is spec §8 scenario 4:
// same setup, but an OK file exists. The reconciler consumes it and
// proceeds, creating all 30 hosts.
func TestHostReconcilerOKFileAuthorizesLargeChange(t *testing.T) {
	store := newTestStore(t)
	names := make([]string, 30)
	for i := range names {
		names[i] = fmt.Sprintf("host%02d.example.com", i)
	}
	enableHosts(t, store, names...)

	okPath := filepath.Join(t.TempDir(), "ok")
	require.NoError(t, os.WriteFile(okPath, nil, 0o644))

	fc := &fakeClient{groups: []zabbixapi.HostGroup{{GroupID: "g1", Name: AllHostsGroup}}}
	r := &HostReconciler{
		Client:     fc,
		Store:      store,
		Failsafe:   20,
		OKFilePath: okPath,
	}

	require.NoError(t, r.Run(context.Background()))
	require.Len(t, fc.createCalls, 30)
	require.NoFileExists(t, okPath, "the OK file must be consumed")
}

// TestHostReconcilerNeverTouchesManualHosts asserts the managed-set
// containment property: a Zabbix host in All-manual-hosts is never a
// to_remove candidate even when absent from the DB.
func TestHostReconcilerNeverTouchesManualHosts(t *testing.T) {
	store := newTestStore(t)

	fc := &fakeClient{
		groups: []zabbixapi.HostGroup{
			{GroupID: "g1", Name: AllHostsGroup},
			{GroupID: "g2", Name: AllManualHostsGroup},
			{GroupID: "g3", Name: AllAutoDisabledHostsGroup},
		},
		hosts: []zabbixapi.ZabbixHost{
			{HostID: "h1", Host: "manual.example.com", Groups: []zabbixapi.ZabbixHostGroup{{GroupID: "g2", Name: AllManualHostsGroup}}},
		},
	}
	r := &HostReconciler{Client: fc, Store: store, Failsafe: 20}

	require.NoError(t, r.Run(context.Background()))
	require.Empty(t, fc.updateCalls, "a manual host must never be disabled by the host reconciler")
}

// TestHostReconcilerCreatesMissingHost covers the ordinary path below
// the failsafe threshold.
func TestHostReconcilerCreatesMissingHost(t *testing.T) {
	store := newTestStore(t)
	enableHosts(t, store, "new.example.com")

	fc := &fakeClient{groups: []zabbixapi.HostGroup{{GroupID: "g1", Name: AllHostsGroup}}}
	r := &HostReconciler{Client: fc, Store: store, Failsafe: 20}

	require.NoError(t, r.Run(context.Background()))
	require.Equal(t, []string{"new.example.com"}, fc.createCalls)
}
