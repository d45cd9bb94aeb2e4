package zabbixreconcile

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/zabbix-auto-config/zac/internal/zabbixapi"
)

// client is the narrow surface every reconciler needs from Zabbix.
// *zabbixapi.Client satisfies it directly; tests substitute a fake so
// reconciler logic can be exercised without a live Zabbix server.
type client interface {
	MonitoredHosts(ctx context.Context) ([]zabbixapi.ZabbixHost, error)
	CreateHost(ctx context.Context, hostname string, groupIDs []string) (string, error)
	SetHostGroupsAndStatus(ctx context.Context, hostID string, groupIDs []string, status int) error
	SetHostGroups(ctx context.Context, hostID string, groupIDs []string) error
	ClearTemplates(ctx context.Context, hostID string) error
	ClearTemplatesByID(ctx context.Context, hostID string, templateIDs []string) error
	SetTemplates(ctx context.Context, hostID string, templateIDs []string) error
	HostGroups(ctx context.Context) ([]zabbixapi.HostGroup, error)
	CreateHostGroup(ctx context.Context, name string) (string, error)
	Templates(ctx context.Context) ([]zabbixapi.Template, error)
}

var _ client = (*zabbixapi.Client)(nil)

// groupCacheSize bounds the name->id memoization caches below; the
// number of host groups/templates in a real Zabbix instance is small
// and static within a tick, so this is generous headroom, not a limit
// meant to evict under real load.
const groupCacheSize = 512

// groupResolver memoizes Zabbix host-group name->id lookups across a
// reconciler's lifetime, fetching the full group list once, on first
// use, and creating a group on demand when a name is not in the cache;
// the list is not fetched again.
type groupResolver struct {
	client client
	cache  *lru.Cache[string, string]
	loaded bool
}

func newGroupResolver(c client) *groupResolver {
	cache, err := lru.New[string, string](groupCacheSize)
	if err != nil {
		panic(fmt.Sprintf("zabbixreconcile: building group cache: %v", err))
	}
	return &groupResolver{client: c, cache: cache}
}

func (g *groupResolver) load(ctx context.Context) error {
	if g.loaded {
		return nil
	}
	groups, err := g.client.HostGroups(ctx)
	if err != nil {
		return err
	}
	for _, grp := range groups {
		g.cache.Add(grp.Name, grp.GroupID)
	}
	g.loaded = true
	return nil
}

// resolve returns name's group id, fetching the current group list on
// first use and creating the group in Zabbix if it still isn't found.
func (g *groupResolver) resolve(ctx context.Context, name string) (string, error) {
	if err := g.load(ctx); err != nil {
		return "", err
	}
	if id, ok := g.cache.Get(name); ok {
		return id, nil
	}
	id, err := g.client.CreateHostGroup(ctx, name)
	if err != nil {
		return "", err
	}
	g.cache.Add(name, id)
	return id, nil
}

// templateResolver memoizes Zabbix template name->id lookups.
// Templates are operator-managed (spec §4.5.3): this resolver never
// creates one, it only reports whether a desired name currently exists.
type templateResolver struct {
	client client
	cache  *lru.Cache[string, string]
	loaded bool
}

func newTemplateResolver(c client) *templateResolver {
	cache, err := lru.New[string, string](groupCacheSize)
	if err != nil {
		panic(fmt.Sprintf("zabbixreconcile: building template cache: %v", err))
	}
	return &templateResolver{client: c, cache: cache}
}

func (t *templateResolver) load(ctx context.Context) error {
	if t.loaded {
		return nil
	}
	templates, err := t.client.Templates(ctx)
	if err != nil {
		return err
	}
	for _, tpl := range templates {
		t.cache.Add(tpl.Name, tpl.TemplateID)
	}
	t.loaded = true
	return nil
}

func (t *templateResolver) lookup(ctx context.Context, name string) (string, bool, error) {
	if err := t.load(ctx); err != nil {
		return "", false, err
	}
	id, ok := t.cache.Get(name)
	return id, ok, nil
}
