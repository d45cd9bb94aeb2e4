package hostmodifier

import (
	"context"
	"fmt"

	"github.com/zabbix-auto-config/zac/internal/model"
)

// AppendProperty is a reference modifier that appends a fixed property
// string to every host it sees, grounded on
// original_source/tests/data/host_modifier_typed.py (the property-tag
// fixture modifier used to exercise the modifier chain in the original
// test suite).
//
// Settings:
//
//	property (string, required) - the tag value to append.
type AppendProperty struct{}

// Modify implements Modifier.
func (AppendProperty) Modify(_ context.Context, settings map[string]any, host model.Host) (model.Host, error) {
	raw, ok := settings["property"]
	if !ok {
		return host, fmt.Errorf("append_property modifier requires a \"property\" setting")
	}
	property, ok := raw.(string)
	if !ok || property == "" {
		return host, fmt.Errorf("append_property modifier \"property\" setting must be a non-empty string")
	}

	out := host.Clone()
	out.Properties[property] = true
	return out, nil
}
