package rules

// Remediation guides rendered by `miq rules explain <id>`.

const dropTableDoc = `# drop-table

Dropping a table permanently removes all of its data. In production this is
irreversible.

## Safer alternatives

1. Rename the table and keep it through a deprecation period:

    ALTER TABLE users RENAME TO users_deprecated;

2. Verify nothing reads the renamed table, then drop it in a later release.
3. Always take a backup before the final drop.

Set ` + "`rules.allow_drop_table: true`" + ` to accept the risk project-wide.
`

const dropColumnDoc = `# drop-column

Dropping a column discards its data and breaks any reader still selecting it.
Rolling deploys will briefly run old code against the new schema.

## Safer alternatives

1. Stop reading and writing the column in application code first.
2. Ship that release fully, then drop the column in a follow-up migration.
3. For quick rollback, rename instead of dropping and drop one release later.

Set ` + "`rules.allow_drop_column: true`" + ` to accept the risk project-wide.
`

const nonNullDoc = `# non-null-without-default

Adding a NOT NULL constraint without a default fails outright on any table
that already contains rows, and blocks writes while the constraint is
validated.

## Two-step approach

1. Add the column nullable, with a default:

    ALTER TABLE users ADD COLUMN role VARCHAR(50) DEFAULT 'member';

2. Back-fill existing rows in batches.
3. In a separate migration, set NOT NULL:

    ALTER TABLE users ALTER COLUMN role SET NOT NULL;

Set ` + "`rules.require_two_step_non_null: false`" + ` to disable this check.
`

const typeChangeDoc = `# type-change

Changing a column to a narrower type can silently truncate or corrupt data,
and on large tables the ALTER takes an exclusive lock for the full rewrite.

## Expand-contract approach

1. Add a new column with the target type.
2. Back-fill with an explicit, checked cast.
3. Switch application reads/writes to the new column.
4. Drop the old column in a later release.

The narrowing pair list is configurable via ` + "`narrowing_types`" + `.
`

const largeTableDoc = `# large-table-alter

In-place alterations (add/drop column, type change, new constraint) on a
large table can hold locks for minutes and stall every writer.

## Mitigations

- Prefer operations your database performs as metadata-only changes.
- Use online schema-change tooling (gh-ost, pt-online-schema-change,
  ALTER ... CONCURRENTLY where supported).
- Schedule the migration in a low-traffic window.

The row threshold is configurable via ` + "`large_table_rows`" + `; estimates
come from adapter hints or the optional stats provider (` + "`stats_dsn`" + `).
`
