package model

// SourceHosts is one batch produced by a single source collector tick:
// every host that source currently knows about.
type SourceHosts struct {
	Source string
	Hosts  []Host
}
