// Package zabbixapi wraps github.com/tpretz/go-zabbix-api with the
// narrow surface the reconcilers need (spec §4.5): enabled-host
// lookup with groups, host create/enable/disable, host-group
// create/set, and template clear/set.
//
// Apart from Login, every call in this package (host, host-group and
// template operations alike) goes through api.CallWithErrorParse directly
// (the same generic escape hatch the client's own typed wrappers are
// built on top of — see base.go's CallWithErrorParse). That keeps every
// call going through the one real HTTP/JSON-RPC client rather than a
// hand-rolled one.
package zabbixapi

import (
	"context"
	"fmt"

	zabbix "github.com/tpretz/go-zabbix-api"
)

// Client is a thin, context-aware façade over *zabbix.API.
type Client struct {
	api *zabbix.API
}

// New builds a Client pointed at url (e.g.
// "https://zabbix.example.com/api_jsonrpc.php").
func New(url string, insecureSkipVerify bool) *Client {
	api := zabbix.NewAPI(zabbix.Config{
		Url:         url,
		TlsNoVerify: insecureSkipVerify,
	})
	return &Client{api: api}
}

// Login authenticates and stores the session token on the underlying API.
func (c *Client) Login(_ context.Context, user, password string) error {
	_, err := c.api.Login(user, password)
	if err != nil {
		return fmt.Errorf("zabbixapi: login: %w", err)
	}
	return nil
}

// ZabbixHost is the subset of Zabbix's host.get output the reconciler
// cares about: identity, status, and the host groups it currently
// belongs to.
type ZabbixHost struct {
	HostID    string            `json:"hostid"`
	Host      string            `json:"host"`
	Status    string            `json:"status"`
	Groups    []ZabbixHostGroup `json:"groups"`
	Templates []ZabbixTemplate  `json:"parentTemplates"`
	Flags     string            `json:"flags"`
}

// ZabbixHostGroup identifies a host group by id and name.
type ZabbixHostGroup struct {
	GroupID string `json:"groupid"`
	Name    string `json:"name"`
}

// ZabbixTemplate identifies a template linked to a host.
type ZabbixTemplate struct {
	TemplateID string `json:"templateid"`
	Name       string `json:"name"`
}

// MonitoredHosts returns every non-discovered host (flags=0) with its
// status, current group memberships and linked templates. Disabled
// hosts are included; callers filter on Status.
func (c *Client) MonitoredHosts(_ context.Context) ([]ZabbixHost, error) {
	var hosts []ZabbixHost
	params := zabbix.Params{
		"output":               []string{"hostid", "host", "status", "flags"},
		"selectGroups":         []string{"groupid", "name"},
		"selectParentTemplates": []string{"templateid", "name"},
		"filter":               zabbix.Params{"flags": 0},
	}
	if err := c.api.CallWithErrorParse("host.get", params, &hosts); err != nil {
		return nil, fmt.Errorf("zabbixapi: host.get: %w", err)
	}
	return hosts, nil
}

// CreateHost creates a new host in the groups with the given groupIDs, with a default Zabbix
// agent interface (spec §4.5.1 step 6: type=1, port=10050,
// dns=hostname, useip=0, main=1).
func (c *Client) CreateHost(_ context.Context, hostname string, groupIDs []string) (string, error) {
	groups := make([]zabbix.Params, len(groupIDs))
	for i, id := range groupIDs {
		groups[i] = zabbix.Params{"groupid": id}
	}

	params := zabbix.Params{
		"host":   hostname,
		"groups": groups,
		"interfaces": []zabbix.Params{{
			"type":  1,
			"main":  1,
			"useip": 0,
			"ip":    "",
			"dns":   hostname,
			"port":  "10050",
		}},
	}

	var result struct {
		HostIDs []string `json:"hostids"`
	}
	if err := c.api.CallWithErrorParse("host.create", params, &result); err != nil {
		return "", fmt.Errorf("zabbixapi: host.create %q: %w", hostname, err)
	}
	if len(result.HostIDs) != 1 {
		return "", fmt.Errorf("zabbixapi: host.create %q: expected 1 hostid, got %d", hostname, len(result.HostIDs))
	}
	return result.HostIDs[0], nil
}

// SetHostGroupsAndStatus replaces a host's group set and status in one
// call (status 0 = monitored, 1 = disabled).
func (c *Client) SetHostGroupsAndStatus(_ context.Context, hostID string, groupIDs []string, status int) error {
	groups := make([]zabbix.Params, len(groupIDs))
	for i, id := range groupIDs {
		groups[i] = zabbix.Params{"groupid": id}
	}
	params := zabbix.Params{
		"hostid": hostID,
		"groups": groups,
		"status": status,
	}
	if err := c.api.CallWithErrorParse("host.update", params, nil); err != nil {
		return fmt.Errorf("zabbixapi: host.update %q: %w", hostID, err)
	}
	return nil
}

// SetHostGroups replaces a host's group set without touching status,
// for the host-group reconciler (spec §4.5.2), which must not
// re-enable a host the host reconciler disabled.
func (c *Client) SetHostGroups(_ context.Context, hostID string, groupIDs []string) error {
	groups := make([]zabbix.Params, len(groupIDs))
	for i, id := range groupIDs {
		groups[i] = zabbix.Params{"groupid": id}
	}
	params := zabbix.Params{
		"hostid": hostID,
		"groups": groups,
	}
	if err := c.api.CallWithErrorParse("host.update", params, nil); err != nil {
		return fmt.Errorf("zabbixapi: set groups on %q: %w", hostID, err)
	}
	return nil
}

// ClearTemplates detaches every template currently linked to hostID,
// for the full-wipe case (spec §4.5.1 step 5, host disable).
func (c *Client) ClearTemplates(_ context.Context, hostID string) error {
	params := zabbix.Params{
		"hostid":    hostID,
		"templates": []zabbix.Params{},
	}
	if err := c.api.CallWithErrorParse("host.update", params, nil); err != nil {
		return fmt.Errorf("zabbixapi: clear templates on %q: %w", hostID, err)
	}
	return nil
}

// ClearTemplatesByID detaches only templateIDs from hostID via Zabbix's
// templates_clear, leaving every other linked template untouched — the
// template reconciler's containment-safe removal half (spec §8 managed-set
// containment): only templates inside its managed set are ever detached.
func (c *Client) ClearTemplatesByID(_ context.Context, hostID string, templateIDs []string) error {
	if len(templateIDs) == 0 {
		return nil
	}
	clear := make([]zabbix.Params, len(templateIDs))
	for i, id := range templateIDs {
		clear[i] = zabbix.Params{"templateid": id}
	}
	params := zabbix.Params{
		"hostid":          hostID,
		"templates_clear": clear,
	}
	if err := c.api.CallWithErrorParse("host.update", params, nil); err != nil {
		return fmt.Errorf("zabbixapi: clear templates %v on %q: %w", templateIDs, hostID, err)
	}
	return nil
}

// SetTemplates links hostID to exactly templateIDs, detaching every
// other template — the "remove before add" ordering from spec §4.5.3
// is the caller's responsibility; this call is the add/replace half.
func (c *Client) SetTemplates(_ context.Context, hostID string, templateIDs []string) error {
	templates := make([]zabbix.Params, len(templateIDs))
	for i, id := range templateIDs {
		templates[i] = zabbix.Params{"templateid": id}
	}
	params := zabbix.Params{
		"hostid":    hostID,
		"templates": templates,
	}
	if err := c.api.CallWithErrorParse("host.update", params, nil); err != nil {
		return fmt.Errorf("zabbixapi: set templates on %q: %w", hostID, err)
	}
	return nil
}

// HostGroup identifies a host group by id and name.
type HostGroup struct {
	GroupID string `json:"groupid"`
	Name    string `json:"name"`
}

// HostGroups returns every host group currently defined in Zabbix.
func (c *Client) HostGroups(_ context.Context) ([]HostGroup, error) {
	var groups []HostGroup
	params := zabbix.Params{"output": []string{"groupid", "name"}}
	if err := c.api.CallWithErrorParse("hostgroup.get", params, &groups); err != nil {
		return nil, fmt.Errorf("zabbixapi: hostgroup.get: %w", err)
	}
	return groups, nil
}

// CreateHostGroup creates a new host group and returns its id.
func (c *Client) CreateHostGroup(_ context.Context, name string) (string, error) {
	var result struct {
		GroupIDs []string `json:"groupids"`
	}
	params := zabbix.Params{"name": name}
	if err := c.api.CallWithErrorParse("hostgroup.create", params, &result); err != nil {
		return "", fmt.Errorf("zabbixapi: hostgroup.create %q: %w", name, err)
	}
	if len(result.GroupIDs) != 1 {
		return "", fmt.Errorf("zabbixapi: hostgroup.create %q: expected 1 groupid, got %d", name, len(result.GroupIDs))
	}
	return result.GroupIDs[0], nil
}

// Template identifies a Zabbix template by id and name.
type Template struct {
	TemplateID string `json:"templateid"`
	Name       string `json:"name"`
}

// Templates returns every template currently defined in Zabbix.
func (c *Client) Templates(_ context.Context) ([]Template, error) {
	var templates []Template
	params := zabbix.Params{"output": []string{"templateid", "name"}}
	if err := c.api.CallWithErrorParse("template.get", params, &templates); err != nil {
		return nil, fmt.Errorf("zabbixapi: template.get: %w", err)
	}
	return templates, nil
}
