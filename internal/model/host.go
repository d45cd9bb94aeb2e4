// Package model defines the canonical host data model shared by every
// stage of the pipeline: the per-source record, the merge rule that folds
// several of those into one canonical host, and the validation a host must
// pass before it is allowed further into the system.
package model

import (
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"sort"
)

// Interface is a single monitoring endpoint on a Host. Type follows the
// Zabbix interface type enum (1=agent, 2=SNMP, 3=IPMI, 4=JMX).
type Interface struct {
	Type     int               `json:"type"`
	Endpoint string            `json:"endpoint"`
	Port     string            `json:"port"` // may be a macro, so string rather than int
	Details  map[string]string `json:"details,omitempty"`
}

// Host is the canonical view of one monitored host, shared by the
// per-source rows and the merged record.
type Host struct {
	Hostname    string            `json:"hostname"`
	Enabled     bool              `json:"enabled"`
	Importance  *int              `json:"importance,omitempty"`
	Interfaces  []Interface       `json:"interfaces,omitempty"`
	Inventory   map[string]string `json:"inventory,omitempty"`
	Properties  map[string]bool   `json:"properties,omitempty"`
	SiteAdmins  map[string]bool   `json:"siteadmins,omitempty"`
	Sources     map[string]bool   `json:"sources,omitempty"`
	Tags        map[Tag]bool      `json:"tags,omitempty"`
	ProxyPattern *string          `json:"proxy_pattern,omitempty"`
}

// Tag is a (key, value) pair attached to a host.
type Tag struct {
	Key   string `json:"tag"`
	Value string `json:"value"`
}

// New returns an empty, valid Host for the given hostname.
func New(hostname string) Host {
	return Host{
		Hostname:   hostname,
		Properties: map[string]bool{},
		SiteAdmins: map[string]bool{},
		Sources:    map[string]bool{},
		Tags:       map[Tag]bool{},
		Inventory:  map[string]string{},
	}
}

// SortedProperties returns Properties as a deterministically ordered slice.
func (h Host) SortedProperties() []string { return sortedKeys(h.Properties) }

// SortedSiteAdmins returns SiteAdmins as a deterministically ordered slice.
func (h Host) SortedSiteAdmins() []string { return sortedKeys(h.SiteAdmins) }

// SortedSources returns Sources as a deterministically ordered slice.
func (h Host) SortedSources() []string { return sortedKeys(h.Sources) }

// SortedTags returns Tags as a deterministically ordered slice.
func (h Host) SortedTags() []Tag {
	tags := make([]Tag, 0, len(h.Tags))
	for t := range h.Tags {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Key != tags[j].Key {
			return tags[i].Key < tags[j].Key
		}
		return tags[i].Value < tags[j].Value
	})
	return tags
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy of h. Every stage that hands a Host to
// user-pluggable code (a modifier) must pass a clone, never the original,
// per the safety contract: plugins may not mutate shared state.
func (h Host) Clone() Host {
	c := h
	c.Interfaces = append([]Interface(nil), h.Interfaces...)
	for i, iface := range c.Interfaces {
		if iface.Details != nil {
			d := make(map[string]string, len(iface.Details))
			for k, v := range iface.Details {
				d[k] = v
			}
			c.Interfaces[i].Details = d
		}
	}
	c.Inventory = cloneStringMap(h.Inventory)
	c.Properties = cloneBoolSet(h.Properties)
	c.SiteAdmins = cloneBoolSet(h.SiteAdmins)
	c.Sources = cloneBoolSet(h.Sources)
	c.Tags = make(map[Tag]bool, len(h.Tags))
	for t := range h.Tags {
		c.Tags[t] = true
	}
	if h.Importance != nil {
		v := *h.Importance
		c.Importance = &v
	}
	if h.ProxyPattern != nil {
		v := *h.ProxyPattern
		c.ProxyPattern = &v
	}
	return c
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneBoolSet(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k := range m {
		out[k] = true
	}
	return out
}

// Validate checks the invariants from the data model: a non-empty
// hostname, at most one interface per type, and a compilable proxy
// pattern. It never panics.
func (h Host) Validate() error {
	if h.Hostname == "" {
		return fmt.Errorf("hostname is empty")
	}
	seen := map[int]bool{}
	for _, iface := range h.Interfaces {
		if seen[iface.Type] {
			return fmt.Errorf("host %q has duplicate interface type %d", h.Hostname, iface.Type)
		}
		seen[iface.Type] = true
	}
	if h.ProxyPattern != nil && !IsValidRegexp(*h.ProxyPattern) {
		return fmt.Errorf("host %q has invalid proxy_pattern %q", h.Hostname, *h.ProxyPattern)
	}
	return nil
}

// IsValidRegexp reports whether pattern compiles as a regular expression.
func IsValidRegexp(pattern string) bool {
	_, err := regexp.Compile(pattern)
	return err == nil
}

// IsValidIP reports whether s parses as an IP address.
func IsValidIP(s string) bool {
	return net.ParseIP(s) != nil
}

// Merge folds other into h per the merge rule (data model §3) and
// returns the result; h and other are left unmodified. log may be nil,
// in which case conflicts are dropped silently with no warning.
func Merge(h, other Host, log *slog.Logger) Host {
	if log == nil {
		log = slog.New(slog.NewTextHandler(discardWriter{}, nil))
	}
	out := h.Clone()
	out.Enabled = h.Enabled || other.Enabled

	for p := range other.Properties {
		out.Properties[p] = true
	}
	for a := range other.SiteAdmins {
		out.SiteAdmins[a] = true
	}
	for s := range other.Sources {
		out.Sources[s] = true
	}
	for t := range other.Tags {
		out.Tags[t] = true
	}

	out.Importance = mergeImportance(h.Importance, other.Importance)

	out.Interfaces = mergeInterfaces(h.Hostname, out.Interfaces, other.Interfaces, log)

	for k, v := range other.Inventory {
		existing, ok := out.Inventory[k]
		if !ok {
			if out.Inventory == nil {
				out.Inventory = map[string]string{}
			}
			out.Inventory[k] = v
		} else if existing != v {
			log.Warn("conflicting inventory value, keeping existing",
				"hostname", h.Hostname, "key", k)
		}
	}

	out.ProxyPattern = mergeProxyPattern(h.Hostname, h.ProxyPattern, other.ProxyPattern, log)

	return out
}

func mergeImportance(a, b *int) *int {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		v := *b
		return &v
	case b == nil:
		v := *a
		return &v
	default:
		v := *a
		if *b < v {
			v = *b
		}
		return &v
	}
}

func mergeInterfaces(hostname string, existing, incoming []Interface, log *slog.Logger) []Interface {
	present := map[int]bool{}
	for _, iface := range existing {
		present[iface.Type] = true
	}
	merged := append([]Interface(nil), existing...)
	for _, iface := range incoming {
		if present[iface.Type] {
			log.Warn("dropping interface with duplicate type on merge",
				"hostname", hostname, "type", iface.Type)
			continue
		}
		present[iface.Type] = true
		merged = append(merged, iface)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Type < merged[j].Type })
	return merged
}

func mergeProxyPattern(hostname string, a, b *string, log *slog.Logger) *string {
	patterns := []string{}
	if a != nil {
		patterns = append(patterns, *a)
	}
	if b != nil {
		patterns = append(patterns, *b)
	}
	switch len(patterns) {
	case 0:
		return nil
	case 1:
		return &patterns[0]
	default:
		sort.Strings(patterns)
		if patterns[0] != patterns[len(patterns)-1] {
			log.Warn("multiple proxy patterns provided, picking lexicographically smallest",
				"hostname", hostname, "patterns", patterns)
		}
		return &patterns[0]
	}
}

// discardWriter is an io.Writer sink used when Merge is called without a
// logger, so slog never needs a nil check on its write path.
type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
