// Package compare implements two-branch migration divergence analysis.
//
// The comparator builds a graph per side, reasons over derived reachability
// sets and topological orders, and never mutates either input. The two
// builds run concurrently; they share no state.
package compare

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/migrationiq/migrationiq/internal/graph"
	"github.com/migrationiq/migrationiq/internal/types"
)

// DefaultDepthLimit bounds ancestor searches on pathological histories.
const DefaultDepthLimit = 1000

// Result is the structured comparison summary plus divergence findings.
type Result struct {
	LocalOnly   []string        `json:"local_only"`
	TargetOnly  []string        `json:"target_only"`
	Common      []string        `json:"common"`
	LocalHeads  []string        `json:"local_heads"`
	TargetHeads []string        `json:"target_heads"`
	Findings    []types.Finding `json:"findings"`
}

// Branches compares the local record set against the target record set.
// depthLimit bounds ancestor traversal; <= 0 means DefaultDepthLimit.
// The only error condition is a duplicate id within one side.
func Branches(ctx context.Context, local, target []types.MigrationRecord, depthLimit int) (*Result, error) {
	if depthLimit <= 0 {
		depthLimit = DefaultDepthLimit
	}

	var lg, tg *graph.Graph
	eg, _ := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		lg, _, err = graph.Build(local)
		if err != nil {
			return fmt.Errorf("local branch: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		tg, _, err = graph.Build(target)
		if err != nil {
			return fmt.Errorf("target branch: %w", err)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	res := &Result{
		LocalOnly:   difference(lg.IDs(), tg),
		TargetOnly:  difference(tg.IDs(), lg),
		Common:      intersection(lg.IDs(), tg),
		LocalHeads:  orEmpty(lg.Heads()),
		TargetHeads: orEmpty(tg.Heads()),
		Findings:    []types.Finding{},
	}

	// Diverged graph: hypothetically merge target-only records into the
	// local set and test whether the union still has a clean shape. Highest
	// priority comparator signal, so it is computed and listed first.
	if len(res.TargetOnly) > 0 {
		merged := make([]types.MigrationRecord, 0, len(local)+len(res.TargetOnly))
		merged = append(merged, local...)
		for _, id := range res.TargetOnly {
			merged = append(merged, *tg.Record(id))
		}
		mg, _, err := graph.Build(merged)
		if err != nil {
			return nil, fmt.Errorf("merged graph: %w", err)
		}
		cyclic := len(mg.DetectCycles()) > 0
		splitHead := len(tg.Heads()) == 1 && len(mg.Heads()) > 1
		if cyclic || splitHead {
			reason := "would produce multiple heads"
			if cyclic {
				reason = "would contain a dependency cycle"
			}
			res.Findings = append(res.Findings, types.Finding{
				Category: types.CategoryDivergedGraph,
				Nodes:    mg.Heads(),
				Message:  fmt.Sprintf("merging the target branch's migrations %s; the branches will not merge cleanly", reason),
			})
		}
	}

	// Branch behind: target has migrations the local branch has not
	// incorporated anywhere in its dependency closure.
	if len(res.TargetOnly) > 0 {
		closure := lg.DependencyClosure(depthLimit)
		incorporated := false
		for _, id := range res.TargetOnly {
			if closure[id] {
				incorporated = true
				break
			}
		}
		if !incorporated {
			behind := inTopoOrder(res.TargetOnly, tg)
			res.Findings = append(res.Findings, types.Finding{
				Category: types.CategoryBranchBehind,
				Nodes:    behind,
				Message: fmt.Sprintf("local branch is missing %d migration(s) from target: %s",
					len(behind), strings.Join(behind, ", ")),
			})
		}
	}

	// Parallel migrations: both sides added work on top of a shared
	// ancestor. Named heads are the new tips each side introduced.
	if len(res.LocalOnly) > 0 && len(res.TargetOnly) > 0 &&
		sharesAncestor(lg, res.LocalOnly, tg, res.TargetOnly, res.Common, depthLimit) {
		localTips := memberHeads(lg, res.LocalOnly)
		targetTips := memberHeads(tg, res.TargetOnly)
		tips := make([]string, 0, len(localTips)+len(targetTips))
		tips = append(tips, localTips...)
		tips = append(tips, targetTips...)
		sort.Strings(tips)
		res.Findings = append(res.Findings, types.Finding{
			Category: types.CategoryParallelMigration,
			Nodes:    tips,
			Message: fmt.Sprintf("both branches added migrations from the same base: local adds %s, target adds %s",
				strings.Join(localTips, ", "), strings.Join(targetTips, ", ")),
		})
	}

	return res, nil
}

// sharesAncestor reports whether some local-only and some target-only
// migration both transitively depend on one common id.
func sharesAncestor(lg *graph.Graph, localOnly []string, tg *graph.Graph, targetOnly, common []string, limit int) bool {
	if len(common) == 0 {
		return false
	}
	localAnc := closureOf(lg, localOnly, limit)
	targetAnc := closureOf(tg, targetOnly, limit)
	for _, id := range common {
		if localAnc[id] && targetAnc[id] {
			return true
		}
	}
	return false
}

func closureOf(g *graph.Graph, ids []string, limit int) map[string]bool {
	out := make(map[string]bool)
	for _, id := range ids {
		for dep := range g.TransitiveDeps(id, limit) {
			out[dep] = true
		}
	}
	return out
}

// memberHeads returns the graph heads that belong to the given id set, sorted.
func memberHeads(g *graph.Graph, members []string) []string {
	in := make(map[string]bool, len(members))
	for _, id := range members {
		in[id] = true
	}
	var heads []string
	for _, h := range g.Heads() {
		if in[h] {
			heads = append(heads, h)
		}
	}
	return heads
}

// inTopoOrder filters ids to the target's topological order (ties already
// broken lexicographically by TopoOrder).
func inTopoOrder(ids []string, g *graph.Graph) []string {
	in := make(map[string]bool, len(ids))
	for _, id := range ids {
		in[id] = true
	}
	var out []string
	for _, id := range g.TopoOrder() {
		if in[id] {
			out = append(out, id)
		}
	}
	return out
}

// difference and intersection keep empty results as empty (not nil) slices
// so the Result always marshals its sets as JSON arrays.
func difference(ids []string, other *graph.Graph) []string {
	out := []string{}
	for _, id := range ids {
		if !other.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}

func intersection(ids []string, other *graph.Graph) []string {
	out := []string{}
	for _, id := range ids {
		if other.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}

func orEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
