// Package engine composes the graph builder, structural analyzer, lint
// engine, branch comparator, and risk aggregator into the operations the CLI
// exposes. Analyzers are pure functions of their inputs and run concurrently
// where they operate on independent data; results merge only at the risk
// aggregation boundary.
package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/migrationiq/migrationiq/internal/compare"
	"github.com/migrationiq/migrationiq/internal/config"
	"github.com/migrationiq/migrationiq/internal/graph"
	"github.com/migrationiq/migrationiq/internal/risk"
	"github.com/migrationiq/migrationiq/internal/rules"
	"github.com/migrationiq/migrationiq/internal/types"
)

// Engine runs analyses under one configuration. It holds no mutable state;
// every method builds what it needs from its arguments and discards it.
type Engine struct {
	cfg *config.Config
	agg *risk.Aggregator
}

// New creates an engine for the given (already validated) configuration.
func New(cfg *config.Config) *Engine {
	return &Engine{
		cfg: cfg,
		agg: risk.NewAggregator(cfg.WeightOverrides(), cfg.StructuralWeight),
	}
}

// CheckResult is the structural analysis of one record set.
type CheckResult struct {
	Findings []types.Finding `json:"findings"`
	Heads    []string        `json:"heads"`
	Roots    []string        `json:"roots"`
	Count    int             `json:"migration_count"`
}

// Report is the full pre-merge gate output handed to the presentation layer.
type Report struct {
	Structural []types.Finding `json:"structural_findings"`
	Lint       []types.Finding `json:"lint_findings"`
	Comparison *compare.Result `json:"comparison,omitempty"`
	Heads      []string        `json:"heads"`
	Roots      []string        `json:"roots"`
	Risk       risk.Report     `json:"risk"`
}

// ExceedsThreshold reports whether the aggregate score is over the limit
// enforced by `miq protect`.
func (r *Report) ExceedsThreshold(threshold int) bool {
	return r.Risk.TotalScore > threshold
}

// Check builds the dependency graph and returns every structural finding.
// The only error is a duplicate migration id.
func (e *Engine) Check(records []types.MigrationRecord) (*CheckResult, error) {
	g, _, err := graph.Build(records)
	if err != nil {
		return nil, err
	}
	return &CheckResult{
		Findings: e.agg.StampWeights(graph.Analyze(g)),
		Heads:    g.Heads(),
		Roots:    g.Roots(),
		Count:    g.Len(),
	}, nil
}

// Lint evaluates the rule registry against every record.
func (e *Engine) Lint(records []types.MigrationRecord) []types.Finding {
	return e.agg.StampWeights(rules.Evaluate(records, e.cfg.LintConfig()))
}

// Compare runs the branch comparator over the local and target record sets.
func (e *Engine) Compare(ctx context.Context, local, target []types.MigrationRecord) (*compare.Result, error) {
	res, err := compare.Branches(ctx, local, target, e.cfg.AncestorDepthLimit)
	if err != nil {
		return nil, err
	}
	res.Findings = e.agg.StampWeights(res.Findings)
	return res, nil
}

// Score aggregates finding lists into a risk report.
func (e *Engine) Score(lists ...[]types.Finding) risk.Report {
	return e.agg.Aggregate(lists...)
}

// Ready runs the full pre-merge gate: structural check and lint on the local
// records, branch comparison against target when a target set is supplied
// (nil skips comparison), and risk aggregation over everything. Check, lint,
// and comparison share no state and run concurrently.
func (e *Engine) Ready(ctx context.Context, local, target []types.MigrationRecord) (*Report, error) {
	var (
		check *CheckResult
		lint  []types.Finding
		cmp   *compare.Result
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		check, err = e.Check(local)
		return err
	})
	eg.Go(func() error {
		lint = e.Lint(local)
		return nil
	})
	if target != nil {
		eg.Go(func() error {
			var err error
			cmp, err = e.Compare(egCtx, local, target)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		Structural: check.Findings,
		Lint:       lint,
		Comparison: cmp,
		Heads:      check.Heads,
		Roots:      check.Roots,
	}
	var cmpFindings []types.Finding
	if cmp != nil {
		cmpFindings = cmp.Findings
	}
	report.Risk = e.agg.Aggregate(check.Findings, lint, cmpFindings)
	return report, nil
}
