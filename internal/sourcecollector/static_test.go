package sourcecollector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// staticFixture describes a static collector manifest the way an
// operator would hand-author one: a YAML list of hostnames to seed a
// demo or test environment, parsed the same way the teacher's
// configvalidator parser decodes operator-authored YAML before
// converting it into the settings bag Collect expects.
type staticFixture struct {
	Hostnames []string `yaml:"hostnames"`
}

const staticManifestYAML = `
hostnames:
  - host-a.example.com
  - host-b.example.com
`

func TestStaticCollectFromYAMLManifest(t *testing.T) {
	var fixture staticFixture
	require.NoError(t, yaml.Unmarshal([]byte(staticManifestYAML), &fixture))

	hosts, err := Static{}.Collect(context.Background(), map[string]any{
		"hostnames": fixture.Hostnames,
	})
	require.NoError(t, err)
	require.Len(t, hosts, 2)
	assert.Equal(t, "host-a.example.com", hosts[0].Hostname)
	assert.True(t, hosts[0].Enabled)
	assert.Equal(t, "host-b.example.com", hosts[1].Hostname)
}

func TestStaticCollectMissingHostnamesSetting(t *testing.T) {
	_, err := Static{}.Collect(context.Background(), map[string]any{})
	require.Error(t, err)
}

func TestStaticCollectWrongSettingType(t *testing.T) {
	_, err := Static{}.Collect(context.Background(), map[string]any{"hostnames": "not-a-list"})
	require.Error(t, err)
}
