// Package adapter translates framework-specific migration files into the
// normalized records the engine consumes. Adapters are the only component
// that touches the filesystem; the engine itself never does I/O.
package adapter

import (
	"fmt"

	"github.com/migrationiq/migrationiq/internal/types"
)

// Adapter discovers and parses one migration framework's files under a root
// directory.
type Adapter interface {
	// Name identifies the framework ("django", "alembic", "sql").
	Name() string
	// Detect reports whether the framework appears to be present.
	Detect() bool
	// Discover scans for migration files and returns parsed records.
	Discover() ([]types.MigrationRecord, error)
}

// New returns the adapter for an explicit framework name.
func New(framework, root string, dirs []string) (Adapter, error) {
	switch framework {
	case "django":
		return NewDjango(root, dirs), nil
	case "alembic":
		return NewAlembic(root, dirs), nil
	case "sql":
		return NewSQL(root, dirs), nil
	default:
		return nil, fmt.Errorf("unknown migration framework %q", framework)
	}
}

// Resolve picks an adapter for the configured framework, probing each
// framework in order when set to "auto". When nothing is detected it falls
// back to the SQL adapter, which degrades to an empty record set.
func Resolve(framework, root string, dirs []string) (Adapter, error) {
	if framework != "auto" && framework != "" {
		return New(framework, root, dirs)
	}
	candidates := []Adapter{
		NewDjango(root, dirs),
		NewAlembic(root, dirs),
		NewSQL(root, dirs),
	}
	for _, a := range candidates {
		if a.Detect() {
			return a, nil
		}
	}
	return NewSQL(root, dirs), nil
}

// Discover resolves an adapter and returns its records in one step.
func Discover(framework, root string, dirs []string) ([]types.MigrationRecord, error) {
	a, err := Resolve(framework, root, dirs)
	if err != nil {
		return nil, err
	}
	return a.Discover()
}

func boolPtr(b bool) *bool    { return &b }
func int64Ptr(n int64) *int64 { return &n }
