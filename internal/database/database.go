package database

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database owns the sqlite connection. The write side (collector) goes
// through the gorm handle, the read side (stats engine) through the raw
// *sql.DB; both share a single connection pool.
type Database struct {
	db   *sql.DB
	gorm *gorm.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	// Foreign keys are per-connection in sqlite, so enable them in the DSN
	// rather than with a one-off PRAGMA that only reaches one pooled
	// connection.
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	// An in-memory database exists per connection, so the pool must not
	// open a second one.
	if strings.Contains(dbPath, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	gormDB, err := gorm.Open(&sqlite.Dialector{Conn: db}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm handle: %w", err)
	}

	return &Database{db: db, gorm: gormDB}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) GetDB() *sql.DB {
	return d.db
}

func (d *Database) GetGorm() *gorm.DB {
	return d.gorm
}

func (d *Database) RunMigrations() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS regions (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS districts (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			region_id INTEGER NOT NULL REFERENCES regions(id),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS suburbs (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			district_id INTEGER NOT NULL REFERENCES districts(id),
			region_id INTEGER NOT NULL REFERENCES regions(id),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS listing_categories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL,
			category_group TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			snapshot_date TEXT NOT NULL UNIQUE,
			collected_at TIMESTAMP NOT NULL,
			status TEXT NOT NULL DEFAULT 'in_progress',
			processing_time_ms INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS suburb_listings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			snapshot_id INTEGER NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
			listing_type_id INTEGER NOT NULL REFERENCES listing_categories(id),
			suburb_id INTEGER NOT NULL REFERENCES suburbs(id),
			listing_count INTEGER NOT NULL CHECK (listing_count > 0),
			UNIQUE (snapshot_id, listing_type_id, suburb_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_suburb_listings_snapshot_type
			ON suburb_listings(snapshot_id, listing_type_id);`,
		`CREATE INDEX IF NOT EXISTS idx_suburbs_district ON suburbs(district_id);`,
		`CREATE INDEX IF NOT EXISTS idx_suburbs_region ON suburbs(region_id);`,
		`CREATE INDEX IF NOT EXISTS idx_districts_region ON districts(region_id);`,
	}

	for _, stmt := range statements {
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}
