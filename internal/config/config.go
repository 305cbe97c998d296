// Package config loads and validates miq configuration.
//
// Discovery walks up from the working directory looking for
// migrationiq.yaml/.yml/.toml (and dotfile variants). Values merge as
// defaults < config file < MIQ_* environment variables. Validation errors
// are fatal and surface before any analysis starts.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"github.com/migrationiq/migrationiq/internal/risk"
	"github.com/migrationiq/migrationiq/internal/rules"
	"github.com/migrationiq/migrationiq/internal/types"
)

// FileNames are the config file names probed during discovery, in order.
var FileNames = []string{
	"migrationiq.yaml",
	"migrationiq.yml",
	"migrationiq.toml",
	".migrationiq.yaml",
	".migrationiq.yml",
	".migrationiq.toml",
}

// Rules holds the per-rule toggles.
type Rules struct {
	AllowDropTable        bool     `mapstructure:"allow_drop_table" yaml:"allow_drop_table" toml:"allow_drop_table"`
	AllowDropColumn       bool     `mapstructure:"allow_drop_column" yaml:"allow_drop_column" toml:"allow_drop_column"`
	RequireTwoStepNonNull bool     `mapstructure:"require_two_step_non_null" yaml:"require_two_step_non_null" toml:"require_two_step_non_null"`
	Disabled              []string `mapstructure:"disabled" yaml:"disabled,omitempty" toml:"disabled"`
}

// Config is the full configuration surface the engine consumes.
type Config struct {
	Framework          string           `mapstructure:"framework" yaml:"framework" toml:"framework"`
	MigrationDirs      []string         `mapstructure:"migration_dirs" yaml:"migration_dirs" toml:"migration_dirs"`
	TargetBranch       string           `mapstructure:"target_branch" yaml:"target_branch" toml:"target_branch"`
	RiskThreshold      int              `mapstructure:"risk_threshold" yaml:"risk_threshold" toml:"risk_threshold"`
	LargeTableRows     int64            `mapstructure:"large_table_rows" yaml:"large_table_rows" toml:"large_table_rows"`
	AncestorDepthLimit int              `mapstructure:"ancestor_depth_limit" yaml:"ancestor_depth_limit" toml:"ancestor_depth_limit"`
	StructuralWeight   int              `mapstructure:"structural_weight" yaml:"structural_weight" toml:"structural_weight"`
	Weights            map[string]int   `mapstructure:"weights" yaml:"weights,omitempty" toml:"weights"`
	NarrowingTypes     []rules.TypePair `mapstructure:"narrowing_types" yaml:"narrowing_types,omitempty" toml:"narrowing_types"`
	Rules              Rules            `mapstructure:"rules" yaml:"rules" toml:"rules"`
	StatsDSN           string           `mapstructure:"stats_dsn" yaml:"stats_dsn,omitempty" toml:"stats_dsn"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		Framework:          "auto",
		MigrationDirs:      []string{"."},
		TargetBranch:       "origin/main",
		RiskThreshold:      7,
		LargeTableRows:     rules.DefaultLargeTableRows,
		AncestorDepthLimit: 1000,
		StructuralWeight:   risk.DefaultStructuralWeight,
		Rules: Rules{
			AllowDropTable:        false,
			AllowDropColumn:       false,
			RequireTwoStepNonNull: true,
		},
	}
}

// Load reads configuration from explicitPath, or discovers a config file by
// walking up from dir (the working directory when empty). A missing file is
// not an error; defaults apply. The returned config is validated.
func Load(explicitPath, dir string) (*Config, error) {
	path := explicitPath
	if path == "" {
		if dir == "" {
			var err error
			if dir, err = os.Getwd(); err != nil {
				return nil, err
			}
		}
		path = discover(dir)
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("MIQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if strings.HasSuffix(path, ".toml") {
			raw := map[string]interface{}{}
			if _, err := toml.DecodeFile(path, &raw); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
			if err := v.MergeConfigMap(raw); err != nil {
				return nil, fmt.Errorf("merge %s: %w", path, err)
			}
		} else {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return nil, err
	}
	return cfg, nil
}

// discover walks up from dir and returns the first config file found.
func discover(dir string) string {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for {
		for _, name := range FileNames {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("framework", d.Framework)
	v.SetDefault("migration_dirs", d.MigrationDirs)
	v.SetDefault("target_branch", d.TargetBranch)
	v.SetDefault("risk_threshold", d.RiskThreshold)
	v.SetDefault("large_table_rows", d.LargeTableRows)
	v.SetDefault("ancestor_depth_limit", d.AncestorDepthLimit)
	v.SetDefault("structural_weight", d.StructuralWeight)
	v.SetDefault("rules.allow_drop_table", d.Rules.AllowDropTable)
	v.SetDefault("rules.allow_drop_column", d.Rules.AllowDropColumn)
	v.SetDefault("rules.require_two_step_non_null", d.Rules.RequireTwoStepNonNull)
	v.SetDefault("stats_dsn", "")
}

// validCategories is the set of category names accepted in weight overrides.
var validCategories = map[string]bool{
	string(types.CategoryDropTable):         true,
	string(types.CategoryDropColumn):        true,
	string(types.CategoryNonNullNoDefault):  true,
	string(types.CategoryRiskyTypeChange):   true,
	string(types.CategoryLargeTableAlter):   true,
	string(types.CategoryMultipleHeads):     true,
	string(types.CategoryMissingDependency): true,
	string(types.CategoryCycle):             true,
	string(types.CategoryOrphan):            true,
	string(types.CategoryBranchBehind):      true,
	string(types.CategoryDivergedGraph):     true,
	string(types.CategoryParallelMigration): true,
}

// Validate checks the configuration for fatal errors: unknown rule or
// category names, negative thresholds or weights, bad framework names.
func (c *Config) Validate() error {
	switch c.Framework {
	case "auto", "django", "alembic", "sql":
	default:
		return fmt.Errorf("unknown framework %q (expected auto, django, alembic, or sql)", c.Framework)
	}
	if c.RiskThreshold < 0 {
		return fmt.Errorf("risk_threshold must not be negative (got %d)", c.RiskThreshold)
	}
	if c.LargeTableRows < 0 {
		return fmt.Errorf("large_table_rows must not be negative (got %d)", c.LargeTableRows)
	}
	if c.AncestorDepthLimit < 0 {
		return fmt.Errorf("ancestor_depth_limit must not be negative (got %d)", c.AncestorDepthLimit)
	}
	if c.StructuralWeight < 0 {
		return fmt.Errorf("structural_weight must not be negative (got %d)", c.StructuralWeight)
	}

	known := make(map[string]bool)
	for _, id := range rules.KnownIDs() {
		known[id] = true
	}
	for _, id := range c.Rules.Disabled {
		if !known[id] {
			return fmt.Errorf("unknown rule %q in rules.disabled (known: %s)",
				id, strings.Join(rules.KnownIDs(), ", "))
		}
	}

	cats := make([]string, 0, len(c.Weights))
	for cat := range c.Weights {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	for _, cat := range cats {
		if !validCategories[cat] {
			return fmt.Errorf("unknown category %q in weights", cat)
		}
		if c.Weights[cat] < 0 {
			return fmt.Errorf("weight for %q must not be negative (got %d)", cat, c.Weights[cat])
		}
	}
	return nil
}

// LintConfig projects the lint-relevant slice of the configuration.
func (c *Config) LintConfig() *rules.Config {
	disabled := make(map[string]bool, len(c.Rules.Disabled))
	for _, id := range c.Rules.Disabled {
		disabled[id] = true
	}
	return &rules.Config{
		AllowDropTable:         c.Rules.AllowDropTable,
		AllowDropColumn:        c.Rules.AllowDropColumn,
		RequireTwoStepNonNull:  c.Rules.RequireTwoStepNonNull,
		LargeTableRowThreshold: c.LargeTableRows,
		NarrowingPairs:         c.NarrowingTypes,
		Disabled:               disabled,
	}
}

// WeightOverrides converts the string-keyed weight map to category keys.
func (c *Config) WeightOverrides() map[types.Category]int {
	if len(c.Weights) == 0 {
		return nil
	}
	out := make(map[types.Category]int, len(c.Weights))
	for cat, w := range c.Weights {
		out[types.Category(cat)] = w
	}
	return out
}
