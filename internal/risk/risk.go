// Package risk merges findings from all analyzers into a weighted score and
// severity tier. Aggregation is concatenation plus summation: repeated
// categories add linearly, since N destructive operations are N times the
// risk of one.
package risk

import (
	"sort"

	"github.com/migrationiq/migrationiq/internal/types"
)

// DefaultStructuralWeight scores the correctness-breaking categories (cycle,
// orphan, missing dependency, parallel migration, diverged graph) that have
// no per-category entry in the weight table.
const DefaultStructuralWeight = 9

// DefaultWeights is the base scoring table. Values are overridable per
// category via configuration.
func DefaultWeights() map[types.Category]int {
	return map[types.Category]int{
		types.CategoryDropTable:        10,
		types.CategoryMultipleHeads:    9,
		types.CategoryDropColumn:       8,
		types.CategoryNonNullNoDefault: 7,
		types.CategoryRiskyTypeChange:  6,
		types.CategoryLargeTableAlter:  6,
		types.CategoryBranchBehind:     5,
	}
}

// Report is the aggregator's output: the total score, its severity tier, and
// the full finding list in stable order (descending weight, then category,
// then migration id).
type Report struct {
	Findings   []types.Finding `json:"findings"`
	TotalScore int             `json:"total_score"`
	Severity   types.Severity  `json:"severity"`
}

// Aggregator assigns weights and computes reports. Construct once per run
// with NewAggregator; zero-value maps fall back to defaults.
type Aggregator struct {
	weights          map[types.Category]int
	structuralWeight int
}

// NewAggregator builds an aggregator from per-category overrides and a
// structural-weight override (0 means DefaultStructuralWeight).
func NewAggregator(overrides map[types.Category]int, structuralWeight int) *Aggregator {
	weights := DefaultWeights()
	for cat, w := range overrides {
		weights[cat] = w
	}
	if structuralWeight <= 0 {
		structuralWeight = DefaultStructuralWeight
	}
	return &Aggregator{weights: weights, structuralWeight: structuralWeight}
}

// WeightFor returns the effective weight for a category.
func (a *Aggregator) WeightFor(cat types.Category) int {
	if w, ok := a.weights[cat]; ok {
		return w
	}
	return a.structuralWeight
}

// StampWeights returns a copy of findings with each finding's effective
// weight filled in. The input is not mutated. Callers that hand finding
// lists to renderers or JSON encoders use this so severity_weight is never
// zero on the wire.
func (a *Aggregator) StampWeights(findings []types.Finding) []types.Finding {
	out := make([]types.Finding, len(findings))
	for i, f := range findings {
		f.Weight = a.WeightFor(f.Category)
		out[i] = f
	}
	return out
}

// Aggregate concatenates the finding lists, stamps each finding with its
// effective weight, and returns the scored report. Inputs are not mutated;
// no deduplication is performed.
func (a *Aggregator) Aggregate(lists ...[]types.Finding) Report {
	var all []types.Finding
	for _, list := range lists {
		all = append(all, list...)
	}
	total := 0
	for i := range all {
		all[i].Weight = a.WeightFor(all[i].Category)
		total += all[i].Weight
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Weight != all[j].Weight {
			return all[i].Weight > all[j].Weight
		}
		if all[i].Category != all[j].Category {
			return all[i].Category < all[j].Category
		}
		return all[i].MigrationID < all[j].MigrationID
	})
	if all == nil {
		all = []types.Finding{}
	}
	return Report{Findings: all, TotalScore: total, Severity: types.SeverityFromScore(total)}
}
