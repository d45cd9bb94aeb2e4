package sourcecollector

import (
	"context"
	"fmt"

	"github.com/zabbix-auto-config/zac/internal/model"
)

// Static is a reference collector that returns a fixed list of
// hostnames from its settings bag (settings key "hostnames", a
// []string), useful for fixtures, demos, and tests. Grounded on
// original_source/tests/data/source_collector_untyped.py, which is
// likewise a trivial fixed-output collector used only to exercise the
// loader.
type Static struct{}

// Collect implements Collector.
func (Static) Collect(_ context.Context, settings map[string]any) ([]model.Host, error) {
	raw, ok := settings["hostnames"]
	if !ok {
		return nil, fmt.Errorf("static collector requires a \"hostnames\" setting")
	}
	names, ok := raw.([]string)
	if !ok {
		return nil, fmt.Errorf("static collector \"hostnames\" setting must be a list of strings")
	}
	hosts := make([]model.Host, 0, len(names))
	for _, name := range names {
		h := model.New(name)
		h.Enabled = true
		hosts = append(hosts, h)
	}
	return hosts, nil
}
