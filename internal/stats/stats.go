// Package stats fills estimated_row_count hints from live database catalog
// statistics. It reads planner estimates only (pg_class.reltuples,
// information_schema.tables.table_rows) and never touches schema or data;
// the engine stays a static analyzer with or without it.
package stats

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"

	"github.com/migrationiq/migrationiq/internal/types"
)

// Provider estimates row counts for tables.
type Provider interface {
	RowCount(ctx context.Context, table string) (int64, error)
	Close(ctx context.Context) error
}

// Open connects to the catalog named by dsn. postgres:// and postgresql://
// DSNs use pgx; mysql:// (or a bare go-sql-driver DSN) uses the mysql driver.
func Open(ctx context.Context, dsn string) (Provider, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		conn, err := pgx.Connect(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return &postgresProvider{conn: conn}, nil
	case strings.HasPrefix(dsn, "mysql://"), strings.Contains(dsn, "@tcp("):
		db, err := sql.Open("mysql", strings.TrimPrefix(dsn, "mysql://"))
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping mysql: %w", err)
		}
		return &mysqlProvider{db: db}, nil
	default:
		return nil, fmt.Errorf("unsupported stats DSN %q (expected postgres:// or mysql://)", redact(dsn))
	}
}

// Annotate fills EstimatedRowCount on every table-altering operation that
// lacks a hint. Lookups are best-effort: a table the catalog does not know
// (it may not exist yet on this branch) is simply left without a hint.
func Annotate(ctx context.Context, p Provider, records []types.MigrationRecord) {
	cache := make(map[string]*int64)
	for ri := range records {
		ops := records[ri].Operations
		for oi := range ops {
			op := &ops[oi]
			if !op.AltersTable() || op.EstimatedRowCount != nil {
				continue
			}
			table := tableOf(op.Target)
			if table == "" {
				continue
			}
			hint, seen := cache[table]
			if !seen {
				if n, err := p.RowCount(ctx, table); err == nil {
					hint = &n
				}
				cache[table] = hint
			}
			op.EstimatedRowCount = hint
		}
	}
}

// tableOf strips the column part of a table.column target.
func tableOf(target string) string {
	if i := strings.IndexByte(target, '.'); i > 0 {
		return target[:i]
	}
	return target
}

type postgresProvider struct {
	conn *pgx.Conn
}

func (p *postgresProvider) RowCount(ctx context.Context, table string) (int64, error) {
	var rows float64
	err := p.conn.QueryRow(ctx,
		`SELECT reltuples FROM pg_class WHERE relname = $1 AND relkind = 'r'`,
		table).Scan(&rows)
	if err != nil {
		return 0, fmt.Errorf("pg_class lookup for %q: %w", table, err)
	}
	if rows < 0 {
		rows = 0 // never analyzed
	}
	return int64(rows), nil
}

func (p *postgresProvider) Close(ctx context.Context) error {
	return p.conn.Close(ctx)
}

type mysqlProvider struct {
	db *sql.DB
}

func (m *mysqlProvider) RowCount(ctx context.Context, table string) (int64, error) {
	var rows sql.NullInt64
	err := m.db.QueryRowContext(ctx,
		`SELECT table_rows FROM information_schema.tables
		 WHERE table_name = ? AND table_schema = DATABASE()`,
		table).Scan(&rows)
	if err != nil {
		return 0, fmt.Errorf("information_schema lookup for %q: %w", table, err)
	}
	return rows.Int64, nil
}

func (m *mysqlProvider) Close(context.Context) error {
	return m.db.Close()
}

// redact hides credentials when a DSN ends up in an error message.
func redact(dsn string) string {
	if i := strings.Index(dsn, "@"); i > 0 {
		if j := strings.Index(dsn, "://"); j > 0 && j < i {
			return dsn[:j+3] + "***" + dsn[i:]
		}
		return "***" + dsn[i:]
	}
	return dsn
}
