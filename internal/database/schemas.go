package database

// schemas maps database names to their DDL. All statements are idempotent so
// they can run on every startup. The three-database split mirrors how the
// data is used: history is bulk reingested, config is operator-maintained,
// planning holds the audit trail of generated plans and learning signals.
var schemas = map[string]string{
	"history": `
		CREATE TABLE IF NOT EXISTS sales_records (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			sku          TEXT NOT NULL,
			product_name TEXT NOT NULL DEFAULT '',
			date         TEXT NOT NULL,
			day_of_week  INTEGER NOT NULL,
			hour         INTEGER,
			quantity     REAL NOT NULL,
			dataset      TEXT NOT NULL CHECK (dataset IN ('current', 'prior'))
		);
		CREATE INDEX IF NOT EXISTS idx_sales_records_sku ON sales_records(dataset, sku);
		CREATE INDEX IF NOT EXISTS idx_sales_records_date ON sales_records(date);

		CREATE TABLE IF NOT EXISTS waste_records (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			sku      TEXT NOT NULL,
			date     TEXT NOT NULL,
			quantity REAL NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_waste_records_sku ON waste_records(sku);
	`,

	"config": `
		CREATE TABLE IF NOT EXISTS products (
			sku               TEXT PRIMARY KEY,
			name              TEXT NOT NULL,
			is_key            INTEGER NOT NULL DEFAULT 0,
			is_packaged       INTEGER NOT NULL DEFAULT 0,
			units_per_package INTEGER NOT NULL DEFAULT 1
		) STRICT;

		CREATE TABLE IF NOT EXISTS oven_product_config (
			sku            TEXT PRIMARY KEY,
			program        INTEGER NOT NULL,
			units_per_tray INTEGER NOT NULL
		) STRICT;

		CREATE TABLE IF NOT EXISTS baking_programs (
			program          INTEGER PRIMARY KEY,
			name             TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL
		) STRICT;

		CREATE TABLE IF NOT EXISTS oven_layout (
			oven_number INTEGER PRIMARY KEY,
			capacity    INTEGER NOT NULL
		) STRICT;

		CREATE TABLE IF NOT EXISTS settings (
			key         TEXT PRIMARY KEY,
			value       TEXT NOT NULL,
			description TEXT,
			updated_at  INTEGER NOT NULL
		);
	`,

	"planning": `
		CREATE TABLE IF NOT EXISTS daily_plans (
			date       TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS forecast_weights (
			sku        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS stockout_events (
			id         TEXT PRIMARY KEY,
			sku        TEXT NOT NULL,
			date       TEXT NOT NULL,
			hour       INTEGER NOT NULL,
			confidence REAL NOT NULL,
			reason     TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_stockout_events_sku ON stockout_events(sku, date);

		CREATE TABLE IF NOT EXISTS manager_corrections (
			id           TEXT PRIMARY KEY,
			date         TEXT NOT NULL,
			wave         INTEGER NOT NULL,
			sku          TEXT NOT NULL,
			original_qty INTEGER NOT NULL,
			adjusted_qty INTEGER NOT NULL,
			created_at   INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_manager_corrections_sku ON manager_corrections(sku);

		CREATE TABLE IF NOT EXISTS actual_sales (
			date     TEXT NOT NULL,
			sku      TEXT NOT NULL,
			quantity REAL NOT NULL,
			PRIMARY KEY (date, sku)
		);

		CREATE TABLE IF NOT EXISTS actual_waste (
			date     TEXT NOT NULL,
			sku      TEXT NOT NULL,
			quantity REAL NOT NULL,
			PRIMARY KEY (date, sku)
		);

		CREATE TABLE IF NOT EXISTS daily_metrics (
			date         TEXT NOT NULL,
			sku          TEXT NOT NULL,
			forecast     REAL NOT NULL,
			actual       REAL NOT NULL,
			waste        REAL NOT NULL,
			had_stockout INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (date, sku)
		);
	`,
}
