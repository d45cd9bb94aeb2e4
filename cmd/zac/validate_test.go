package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validateFixtureTOML = `
[zac]
source_collector_dir = "/etc/zac/source-collectors"
host_modifier_dir = "/etc/zac/host-modifiers"
db_uri = "postgres://zac@localhost/zac"

[zabbix]
map_dir = "%s"
url = "https://zabbix.example.com/api_jsonrpc.php"
username = "zac"
password = "secret"
`

func writeValidateFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	mapDir := filepath.Join(dir, "maps")
	require.NoError(t, os.Mkdir(mapDir, 0o755))

	for _, name := range []string{
		propertyTemplateMapFile,
		propertyHostgroupMapFile,
		siteadminHostgroupMapFile,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(mapDir, name), []byte("app:App\n"), 0o600))
	}

	configPath := filepath.Join(dir, "zac.toml")
	content := fmt.Sprintf(validateFixtureTOML, mapDir)
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))
	return configPath
}

func TestValidateConfigCommandSucceeds(t *testing.T) {
	configPath := writeValidateFixture(t)

	var out bytes.Buffer
	cmd := newValidateConfigCommand(&configPath)
	cmd.SetOut(&out)

	require.NoError(t, cmd.RunE(cmd, nil))
	assert.Contains(t, out.String(), "config OK")
}

func TestValidateConfigCommandFailsOnMissingMapFile(t *testing.T) {
	dir := t.TempDir()
	mapDir := filepath.Join(dir, "maps")
	require.NoError(t, os.Mkdir(mapDir, 0o755))
	// only write one of the three required map files
	require.NoError(t, os.WriteFile(filepath.Join(mapDir, propertyTemplateMapFile), []byte(""), 0o600))

	configPath := filepath.Join(dir, "zac.toml")
	content := fmt.Sprintf(validateFixtureTOML, mapDir)
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))

	cmd := newValidateConfigCommand(&configPath)
	cmd.SetOut(&bytes.Buffer{})

	err := cmd.RunE(cmd, nil)
	require.Error(t, err)
}
