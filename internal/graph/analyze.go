package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/migrationiq/migrationiq/internal/types"
)

// Analyze runs every structural check over a built graph and returns the
// full finding list: construction defects (missing dependencies, self-loops),
// multiple heads, cycles, and orphans. Results are deterministic for a given
// record set; all tie-breaks are lexicographic on migration id.
func Analyze(g *Graph) []types.Finding {
	findings := make([]types.Finding, 0, len(g.defects))
	findings = append(findings, g.defects...)

	heads := g.Heads()
	if len(heads) > 1 {
		for _, extra := range heads[1:] {
			findings = append(findings, types.Finding{
				Category:    types.CategoryMultipleHeads,
				MigrationID: extra,
				Nodes:       heads,
				Message: fmt.Sprintf("migration graph has %d heads (%s); create a merge migration to resolve",
					len(heads), strings.Join(heads, ", ")),
			})
		}
	}

	cycles := g.DetectCycles()
	for _, cycle := range cycles {
		findings = append(findings, types.Finding{
			Category:    types.CategoryCycle,
			MigrationID: cycle[0],
			Nodes:       cycle,
			Message: fmt.Sprintf("circular dependency: %s -> %s",
				strings.Join(cycle, " -> "), cycle[0]),
		})
	}
	if g.Len() > 0 && len(heads) == 0 && len(cycles) == 0 {
		// A finite graph with no head implies a cycle, so this only fires on
		// malformed input the cycle pass could not attribute.
		findings = append(findings, types.Finding{
			Category: types.CategoryCycle,
			Nodes:    g.ids,
			Message:  "migration graph has no head; every migration has a dependent",
		})
	}

	for _, id := range g.Orphans(cycles) {
		findings = append(findings, types.Finding{
			Category:    types.CategoryOrphan,
			MigrationID: id,
			SourcePath:  g.nodes[id].SourcePath,
			Message:     fmt.Sprintf("migration %q is orphaned: its prerequisite chain cannot be resolved or reached", id),
		})
	}

	return findings
}

// DetectCycles finds dependency cycles using white/gray/black DFS coloring.
// Each cycle is reported once, rotated so its lexicographically smallest id
// comes first; cycles are ordered by that id. Shared sub-dependencies are
// never falsely re-reported: black nodes are skipped across traversal roots.
func (g *Graph) DetectCycles() [][]string {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(g.ids))
	pathIndex := make(map[string]int)
	var path []string
	var cycles [][]string

	var dfs func(id string)
	dfs = func(id string) {
		color[id] = gray
		pathIndex[id] = len(path)
		path = append(path, id)
		for _, dep := range g.deps[id] {
			switch color[dep] {
			case white:
				dfs(dep)
			case gray:
				cycle := make([]string, len(path)-pathIndex[dep])
				copy(cycle, path[pathIndex[dep]:])
				cycles = append(cycles, rotateToMin(cycle))
			}
		}
		delete(pathIndex, id)
		path = path[:len(path)-1]
		color[id] = black
	}

	// Traverse from heads first, then sweep the remaining nodes (those
	// unreachable from any head, e.g. fully cyclic components).
	for _, start := range append(g.Heads(), g.ids...) {
		if color[start] == white {
			dfs(start)
		}
	}

	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles
}

// Orphans returns the nodes whose prerequisite chain is broken: every
// declared dependency is unresolved, or the node is unreachable from every
// head despite not being part of a reported cycle. Sorted by id.
func (g *Graph) Orphans(cycles [][]string) []string {
	inCycle := make(map[string]bool)
	for _, cycle := range cycles {
		for _, id := range cycle {
			inCycle[id] = true
		}
	}

	reachable := make(map[string]bool, len(g.ids))
	var visit func(id string)
	visit = func(id string) {
		if reachable[id] {
			return
		}
		reachable[id] = true
		for _, dep := range g.deps[id] {
			visit(dep)
		}
	}
	for _, head := range g.Heads() {
		visit(head)
	}

	var orphans []string
	for _, id := range g.ids {
		allDepsMissing := len(g.missing[id]) > 0 && len(g.deps[id]) == 0
		unreachable := !reachable[id] && !inCycle[id]
		if allDepsMissing || unreachable {
			orphans = append(orphans, id)
		}
	}
	return orphans
}

func rotateToMin(cycle []string) []string {
	min := 0
	for i, id := range cycle {
		if id < cycle[min] {
			min = i
		}
	}
	if min == 0 {
		return cycle
	}
	return append(cycle[min:], cycle[:min]...)
}
