package dispatch

import (
	"git.home.luguber.info/inful/docbot/internal/project"
)

// Snapshot is one immutable view of the loaded configuration: the
// authorized identity set, the project table, and the merged dispatch
// table. Reload produces a fresh snapshot and swaps it in atomically;
// in-flight rebuilds keep the snapshot they were triggered under.
type Snapshot struct {
	Authorized map[string]bool
	Projects   map[string]*project.Project
	Table      map[project.TriggerKey][]project.Target
}

// NewSnapshot assembles a snapshot from project declarations. Trigger
// lists for a key appearing in several projects are concatenated in
// declaration order across projects.
func NewSnapshot(authorized []string, decls []project.Declaration) *Snapshot {
	snap := &Snapshot{
		Authorized: make(map[string]bool, len(authorized)),
		Projects:   make(map[string]*project.Project, len(decls)),
		Table:      make(map[project.TriggerKey][]project.Target),
	}
	for _, id := range authorized {
		snap.Authorized[id] = true
	}
	for _, decl := range decls {
		snap.Projects[decl.Name] = decl.Project
		for key, targets := range decl.Project.Triggers() {
			snap.Table[key] = append(snap.Table[key], targets...)
		}
	}
	return snap
}
