// Package types defines the core data structures for the miq migration analyzer.
package types

import "fmt"

// OpKind tags a schema operation with its shape. Rules pattern-match on the tag.
type OpKind string

const (
	OpCreateTable        OpKind = "create_table"
	OpDropTable          OpKind = "drop_table"
	OpAddColumn          OpKind = "add_column"
	OpDropColumn         OpKind = "drop_column"
	OpAlterColumnType    OpKind = "alter_column_type"
	OpAddConstraint      OpKind = "add_constraint"
	OpAlterNullability   OpKind = "alter_column_nullability"
	OpOther              OpKind = "other"
)

// Operation is one schema change declared by a migration. Only the attribute
// fields relevant to the operation's kind are populated; the rest stay nil or
// empty.
type Operation struct {
	Kind   OpKind `json:"kind"`
	Target string `json:"target,omitempty"` // table or table.column

	// alter_column_nullability
	Nullable   *bool `json:"nullable,omitempty"`
	HasDefault *bool `json:"has_default,omitempty"`

	// alter_column_type
	FromType string `json:"from_type,omitempty"`
	ToType   string `json:"to_type,omitempty"`

	// Table operations. Nil means unknown; adapters or the stats provider
	// fill it in when catalog statistics are available.
	EstimatedRowCount *int64 `json:"estimated_row_count_hint,omitempty"`
}

// AltersTable reports whether the operation modifies an existing table in
// place (the shapes that matter for lock-duration risk on large tables).
func (o Operation) AltersTable() bool {
	switch o.Kind {
	case OpAddColumn, OpDropColumn, OpAlterColumnType, OpAddConstraint, OpAlterNullability:
		return true
	}
	return false
}

// MigrationRecord is the normalized unit the engine consumes. Adapters
// produce these from framework-specific migration files; the engine never
// constructs them itself.
type MigrationRecord struct {
	ID           string      `json:"id"`
	AppLabel     string      `json:"app_label,omitempty"`
	Dependencies []string    `json:"dependencies,omitempty"`
	Operations   []Operation `json:"operations,omitempty"`
	SourcePath   string      `json:"source_path,omitempty"`
}

// Validate checks the record's own invariants. Graph-level invariants
// (duplicate ids, unresolved dependencies) belong to the graph builder.
func (m *MigrationRecord) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("migration record has empty id (source: %s)", m.SourcePath)
	}
	return nil
}

// DependsOn reports whether the record directly declares id as a prerequisite.
func (m *MigrationRecord) DependsOn(id string) bool {
	for _, d := range m.Dependencies {
		if d == id {
			return true
		}
	}
	return false
}
