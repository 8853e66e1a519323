package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureSchema creates every table and index this backend needs. Statements
// are idempotent so repeated boots are safe.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS attachments (
			id                TEXT PRIMARY KEY,
			name              TEXT NOT NULL,
			mime_type         TEXT NOT NULL DEFAULT '',
			size              BIGINT NOT NULL DEFAULT 0,
			bucket            TEXT NOT NULL DEFAULT '',
			storage_key       TEXT NOT NULL DEFAULT '',
			status            TEXT NOT NULL DEFAULT 'pending',
			invoice_id        TEXT,
			inventory_item_id TEXT,
			created_at        TIMESTAMPTZ NOT NULL,
			updated_at        TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attachments_name ON attachments (lower(name))`,
		`CREATE INDEX IF NOT EXISTS idx_attachments_invoice ON attachments (invoice_id) WHERE invoice_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_attachments_item ON attachments (inventory_item_id) WHERE inventory_item_id IS NOT NULL`,

		`CREATE TABLE IF NOT EXISTS attachment_expenses (
			attachment_id TEXT NOT NULL REFERENCES attachments(id) ON DELETE CASCADE,
			expense_id    TEXT NOT NULL,
			PRIMARY KEY (attachment_id, expense_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attachment_expenses_expense ON attachment_expenses (expense_id)`,

		`CREATE TABLE IF NOT EXISTS inventory_locations (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			parent_id   TEXT,
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_inventory_locations_parent ON inventory_locations (parent_id) WHERE parent_id IS NOT NULL`,

		`CREATE TABLE IF NOT EXISTS inventory_types (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			parent_id   TEXT,
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_inventory_types_parent ON inventory_types (parent_id) WHERE parent_id IS NOT NULL`,

		`CREATE TABLE IF NOT EXISTS inventory_items (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			quantity    BIGINT NOT NULL DEFAULT 0,
			type_id     TEXT,
			location_id TEXT,
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_inventory_items_type ON inventory_items (type_id) WHERE type_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_inventory_items_location ON inventory_items (location_id) WHERE location_id IS NOT NULL`,

		`CREATE TABLE IF NOT EXISTS time_based_jobs (
			id            TEXT PRIMARY KEY,
			run_after     BIGINT NOT NULL,
			event_type    TEXT NOT NULL,
			event_payload JSONB,
			created_at    TIMESTAMPTZ NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_time_based_jobs_run_after ON time_based_jobs (run_after)`,

		`CREATE TABLE IF NOT EXISTS sequences (
			name       TEXT PRIMARY KEY,
			last_value TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
