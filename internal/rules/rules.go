// Package rules implements the lint engine: a static, ordered registry of
// independent rule evaluators run against every operation of every migration
// record. Rules are additive and order-independent; adding a rule means
// appending a descriptor to the registry, never touching dispatch.
package rules

import (
	"github.com/migrationiq/migrationiq/internal/types"
)

// Config carries the lint-relevant configuration slice. The engine never
// reads configuration files itself; callers hand it a populated struct.
type Config struct {
	AllowDropTable        bool
	AllowDropColumn       bool
	RequireTwoStepNonNull bool

	// LargeTableRowThreshold is the estimated row count above which in-place
	// table alterations are flagged. Zero means use DefaultLargeTableRows.
	LargeTableRowThreshold int64

	// NarrowingPairs is the set of (from, to) column type changes considered
	// lossy. Nil means use DefaultNarrowingPairs(). varchar(N) -> varchar(M)
	// with M < N is always checked regardless of this list.
	NarrowingPairs []TypePair

	// Disabled lists rule ids switched off entirely.
	Disabled map[string]bool
}

// DefaultLargeTableRows is the default large-table threshold.
const DefaultLargeTableRows int64 = 1_000_000

// TypePair is a from/to column type transition.
type TypePair struct {
	From string `json:"from" yaml:"from" toml:"from"`
	To   string `json:"to" yaml:"to" toml:"to"`
}

// CheckFunc evaluates one operation of one record. Pure: no shared state,
// no ordering dependence between rules.
type CheckFunc func(op types.Operation, rec *types.MigrationRecord, cfg *Config) []types.Finding

// Rule is one registry entry.
type Rule struct {
	ID          string
	Category    types.Category
	Description string
	Doc         string // markdown remediation guide, rendered by `miq rules explain`

	enabled func(cfg *Config) bool
	check   CheckFunc
}

// Enabled reports whether the rule is active under cfg. A rule disabled by
// id or by its toggle stays in the dispatch loop as a no-op.
func (r Rule) Enabled(cfg *Config) bool {
	if cfg.Disabled[r.ID] {
		return false
	}
	if r.enabled != nil {
		return r.enabled(cfg)
	}
	return true
}

// Registry returns the built-in rule table in evaluation order.
func Registry() []Rule {
	out := make([]Rule, len(registry))
	copy(out, registry)
	return out
}

// Lookup returns the rule with the given id.
func Lookup(id string) (Rule, bool) {
	for _, r := range registry {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

// KnownIDs returns every registered rule id, in registry order.
func KnownIDs() []string {
	ids := make([]string, len(registry))
	for i, r := range registry {
		ids[i] = r.ID
	}
	return ids
}

// Evaluate runs every registered rule against every operation of every
// record and concatenates the results. The graph is not consulted: lint is
// a per-record static check. Output order is registry order, then record
// order, then operation order, which keeps runs deterministic.
func Evaluate(records []types.MigrationRecord, cfg *Config) []types.Finding {
	if cfg == nil {
		cfg = &Config{}
	}
	var findings []types.Finding
	for _, rule := range registry {
		if !rule.Enabled(cfg) {
			continue
		}
		for i := range records {
			rec := &records[i]
			for _, op := range rec.Operations {
				findings = append(findings, rule.check(op, rec, cfg)...)
			}
		}
	}
	return findings
}
