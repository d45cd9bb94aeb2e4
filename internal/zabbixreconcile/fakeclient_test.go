package zabbixreconcile

import (
	"context"
	"fmt"

	"github.com/zabbix-auto-config/zac/internal/zabbixapi"
)

// fakeClient is an in-memory stand-in for *zabbixapi.Client, letting
// reconciler logic be exercised without a live Zabbix server.
type fakeClient struct {
	hosts      []zabbixapi.ZabbixHost
	groups     []zabbixapi.HostGroup
	templates  []zabbixapi.Template
	nextID     int
	createCalls []string
	updateCalls []string
}

func (f *fakeClient) newID() string {
	f.nextID++
	return fmt.Sprintf("id%d", f.nextID)
}

func (f *fakeClient) MonitoredHosts(_ context.Context) ([]zabbixapi.ZabbixHost, error) {
	return f.hosts, nil
}

func (f *fakeClient) CreateHost(_ context.Context, hostname string, groupIDs []string) (string, error) {
	id := f.newID()
	groups := make([]zabbixapi.ZabbixHostGroup, len(groupIDs))
	for i, gid := range groupIDs {
		groups[i] = zabbixapi.ZabbixHostGroup{GroupID: gid, Name: f.groupName(gid)}
	}
	f.hosts = append(f.hosts, zabbixapi.ZabbixHost{HostID: id, Host: hostname, Status: "0", Groups: groups})
	f.createCalls = append(f.createCalls, hostname)
	return id, nil
}

func (f *fakeClient) SetHostGroupsAndStatus(_ context.Context, hostID string, groupIDs []string, status int) error {
	for i := range f.hosts {
		if f.hosts[i].HostID != hostID {
			continue
		}
		groups := make([]zabbixapi.ZabbixHostGroup, len(groupIDs))
		for j, gid := range groupIDs {
			groups[j] = zabbixapi.ZabbixHostGroup{GroupID: gid, Name: f.groupName(gid)}
		}
		f.hosts[i].Groups = groups
		f.hosts[i].Status = fmt.Sprintf("%d", status)
	}
	f.updateCalls = append(f.updateCalls, hostID)
	return nil
}

func (f *fakeClient) SetHostGroups(_ context.Context, hostID string, groupIDs []string) error {
	for i := range f.hosts {
		if f.hosts[i].HostID != hostID {
			continue
		}
		groups := make([]zabbixapi.ZabbixHostGroup, len(groupIDs))
		for j, gid := range groupIDs {
			groups[j] = zabbixapi.ZabbixHostGroup{GroupID: gid, Name: f.groupName(gid)}
		}
		f.hosts[i].Groups = groups
	}
	f.updateCalls = append(f.updateCalls, hostID)
	return nil
}

func (f *fakeClient) ClearTemplates(_ context.Context, hostID string) error {
	for i := range f.hosts {
		if f.hosts[i].HostID == hostID {
			f.hosts[i].Templates = nil
		}
	}
	return nil
}

func (f *fakeClient) ClearTemplatesByID(_ context.Context, hostID string, templateIDs []string) error {
	remove := map[string]bool{}
	for _, id := range templateIDs {
		remove[id] = true
	}
	for i := range f.hosts {
		if f.hosts[i].HostID != hostID {
			continue
		}
		kept := make([]zabbixapi.ZabbixTemplate, 0, len(f.hosts[i].Templates))
		for _, t := range f.hosts[i].Templates {
			if !remove[t.TemplateID] {
				kept = append(kept, t)
			}
		}
		f.hosts[i].Templates = kept
	}
	return nil
}

func (f *fakeClient) SetTemplates(_ context.Context, hostID string, templateIDs []string) error {
	for i := range f.hosts {
		if f.hosts[i].HostID != hostID {
			continue
		}
		templates := make([]zabbixapi.ZabbixTemplate, len(templateIDs))
		for j, tid := range templateIDs {
			templates[j] = zabbixapi.ZabbixTemplate{TemplateID: tid, Name: f.templateName(tid)}
		}
		f.hosts[i].Templates = templates
	}
	return nil
}

func (f *fakeClient) HostGroups(_ context.Context) ([]zabbixapi.HostGroup, error) {
	return f.groups, nil
}

func (f *fakeClient) CreateHostGroup(_ context.Context, name string) (string, error) {
	id := f.newID()
	f.groups = append(f.groups, zabbixapi.HostGroup{GroupID: id, Name: name})
	return id, nil
}

func (f *fakeClient) Templates(_ context.Context) ([]zabbixapi.Template, error) {
	return f.templates, nil
}

func (f *fakeClient) groupName(id string) string {
	for _, g := range f.groups {
		if g.GroupID == id {
			return g.Name
		}
	}
	return ""
}

func (f *fakeClient) templateName(id string) string {
	for _, t := range f.templates {
		if t.TemplateID == id {
			return t.Name
		}
	}
	return ""
}

var _ client = (*fakeClient)(nil)
