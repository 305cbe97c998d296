// Package graph builds and analyzes the migration dependency graph.
//
// The graph is rebuilt fresh on every run and is immutable once built; all
// analyses are read-only traversals, so a single graph can be shared across
// concurrent analyzers.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/migrationiq/migrationiq/internal/types"
)

// DuplicateMigrationError is returned when a record set contains two or more
// records with the same id. This is a fatal ingestion error, not a finding.
type DuplicateMigrationError struct {
	IDs []string
}

func (e *DuplicateMigrationError) Error() string {
	return fmt.Sprintf("duplicate migration id(s): %s", strings.Join(e.IDs, ", "))
}

// Graph is the immutable dependency graph for one migration record set.
// Nodes are stored in an id index; edges are derived from dependency-id
// lookups rather than node pointers.
type Graph struct {
	nodes      map[string]*types.MigrationRecord
	ids        []string            // all node ids, sorted
	deps       map[string][]string // id -> resolved dependency ids, sorted
	dependents map[string][]string // id -> ids that depend on it, sorted
	missing    map[string][]string // id -> unresolved dependency ids, sorted
	defects    []types.Finding     // construction-time defects
}

// Build assembles records into a Graph. Construction never fails on broken
// structure: every missing dependency and self-loop is recorded as a defect
// so one run reports all of them. The only fatal condition is a duplicate id.
func Build(records []types.MigrationRecord) (*Graph, []types.Finding, error) {
	g := &Graph{
		nodes:      make(map[string]*types.MigrationRecord, len(records)),
		deps:       make(map[string][]string),
		dependents: make(map[string][]string),
		missing:    make(map[string][]string),
	}

	var dups []string
	for i := range records {
		rec := &records[i]
		if _, exists := g.nodes[rec.ID]; exists {
			dups = append(dups, rec.ID)
			continue
		}
		g.nodes[rec.ID] = rec
		g.ids = append(g.ids, rec.ID)
	}
	if len(dups) > 0 {
		sort.Strings(dups)
		return nil, nil, &DuplicateMigrationError{IDs: uniqueSorted(dups)}
	}
	sort.Strings(g.ids)

	// Resolution pass. Dependencies are a set: duplicate entries collapse.
	for _, id := range g.ids {
		rec := g.nodes[id]
		seen := make(map[string]bool, len(rec.Dependencies))
		for _, dep := range sortedCopy(rec.Dependencies) {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			switch {
			case dep == id:
				g.defects = append(g.defects, types.Finding{
					Category:    types.CategoryCycle,
					MigrationID: id,
					SourcePath:  rec.SourcePath,
					Nodes:       []string{id},
					Message:     fmt.Sprintf("migration %q declares itself as a dependency", id),
				})
			case g.nodes[dep] != nil:
				g.deps[id] = append(g.deps[id], dep)
				g.dependents[dep] = append(g.dependents[dep], id)
			default:
				g.missing[id] = append(g.missing[id], dep)
				g.defects = append(g.defects, types.Finding{
					Category:    types.CategoryMissingDependency,
					MigrationID: id,
					SourcePath:  rec.SourcePath,
					Nodes:       []string{id, dep},
					Message:     fmt.Sprintf("migration %q depends on %q which does not exist", id, dep),
				})
			}
		}
	}
	for _, m := range []map[string][]string{g.deps, g.dependents, g.missing} {
		for k := range m {
			sort.Strings(m[k])
		}
	}

	return g, g.defects, nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.ids) }

// IDs returns all node ids in lexicographic order.
func (g *Graph) IDs() []string { return g.ids }

// Record returns the record for id, or nil if the graph has no such node.
func (g *Graph) Record(id string) *types.MigrationRecord { return g.nodes[id] }

// Contains reports whether id is a node in the graph.
func (g *Graph) Contains(id string) bool { return g.nodes[id] != nil }

// DepsOf returns the resolved dependency ids of id, sorted.
func (g *Graph) DepsOf(id string) []string { return g.deps[id] }

// DependentsOf returns the ids that declare id as a dependency, sorted.
func (g *Graph) DependentsOf(id string) []string { return g.dependents[id] }

// MissingOf returns the unresolved dependency ids declared by id, sorted.
func (g *Graph) MissingOf(id string) []string { return g.missing[id] }

// HasMissing reports whether any node declares an unresolved dependency.
func (g *Graph) HasMissing() bool { return len(g.missing) > 0 }

// Defects returns the construction-time defects (missing dependencies and
// self-loops) recorded while resolving edges.
func (g *Graph) Defects() []types.Finding { return g.defects }

// Heads returns the nodes no other node depends on, sorted. A healthy
// migration history has exactly one.
func (g *Graph) Heads() []string {
	var heads []string
	for _, id := range g.ids {
		if len(g.dependents[id]) == 0 {
			heads = append(heads, id)
		}
	}
	return heads
}

// Roots returns the nodes with no resolved dependencies, sorted.
func (g *Graph) Roots() []string {
	var roots []string
	for _, id := range g.ids {
		if len(g.deps[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// TopoOrder returns the node ids ordered so every dependency precedes its
// dependents, ties broken lexicographically. Nodes trapped in cycles are
// appended at the end in lexicographic order so the result always covers the
// whole graph.
func (g *Graph) TopoOrder() []string {
	inDeg := make(map[string]int, len(g.ids))
	for _, id := range g.ids {
		inDeg[id] = len(g.deps[id])
	}
	var queue []string
	for _, id := range g.ids {
		if inDeg[id] == 0 {
			queue = append(queue, id)
		}
	}
	order := make([]string, 0, len(g.ids))
	for len(queue) > 0 {
		sort.Strings(queue)
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, dependent := range g.dependents[id] {
			inDeg[dependent]--
			if inDeg[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}
	if len(order) < len(g.ids) {
		placed := make(map[string]bool, len(order))
		for _, id := range order {
			placed[id] = true
		}
		for _, id := range g.ids {
			if !placed[id] {
				order = append(order, id)
			}
		}
	}
	return order
}

// TransitiveDeps returns every id reachable from id by following dependency
// references, including unresolved ones. limit bounds the traversal depth;
// limit <= 0 means unbounded.
func (g *Graph) TransitiveDeps(id string, limit int) map[string]bool {
	out := make(map[string]bool)
	g.walkDeps(id, limit, 0, out)
	return out
}

// DependencyClosure returns the union of every node's transitive dependency
// references, including unresolved ones.
func (g *Graph) DependencyClosure(limit int) map[string]bool {
	out := make(map[string]bool)
	for _, id := range g.ids {
		g.walkDeps(id, limit, 0, out)
	}
	return out
}

func (g *Graph) walkDeps(id string, limit, depth int, out map[string]bool) {
	if limit > 0 && depth >= limit {
		return
	}
	for _, dep := range g.deps[id] {
		if !out[dep] {
			out[dep] = true
			g.walkDeps(dep, limit, depth+1, out)
		}
	}
	for _, dep := range g.missing[id] {
		out[dep] = true
	}
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

func uniqueSorted(in []string) []string {
	out := in[:0]
	for i, s := range in {
		if i == 0 || s != in[i-1] {
			out = append(out, s)
		}
	}
	return out
}
