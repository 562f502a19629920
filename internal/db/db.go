package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrationsFS embed.FS

// Dialect selects placeholder style and migration set.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// containsIgnoreCase returns true if s contains substr (case-insensitive)
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// DB wraps the database connection
type DB struct {
	*sql.DB
	dialect Dialect
}

// New opens a database from a connection string. Postgres URLs go through
// lib/pq; "sqlite://path" (or "sqlite://:memory:") goes through modernc sqlite.
func New(connectionString string) (*DB, error) {
	if connectionString == "" {
		return nil, fmt.Errorf("database connection string is required")
	}
	if strings.HasPrefix(connectionString, "sqlite://") {
		return openSQLite(strings.TrimPrefix(connectionString, "sqlite://"))
	}
	return openPostgres(connectionString)
}

func openPostgres(connectionString string) (*DB, error) {
	sqlDB, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		// Try with SSL disabled if connection fails and SSL mode not specified
		if !containsIgnoreCase(connectionString, "sslmode") {
			log.Println("retrying database connection with SSL disabled")
			sqlDB.Close()
			sslDisabledConnection := connectionString
			if strings.Contains(connectionString, "?") {
				sslDisabledConnection += "&sslmode=disable"
			} else {
				sslDisabledConnection += "?sslmode=disable"
			}
			var err2 error
			sqlDB, err2 = sql.Open("postgres", sslDisabledConnection)
			if err2 != nil {
				return nil, fmt.Errorf("failed to open database: %w", err2)
			}
		}
		if err := sqlDB.Ping(); err != nil {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	return &DB{DB: sqlDB, dialect: Postgres}, nil
}

func openSQLite(file string) (*DB, error) {
	if file == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := file + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if file != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn += "&_pragma=journal_mode(WAL)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single writer; also keeps an in-memory database on one connection.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &DB{DB: sqlDB, dialect: SQLite}, nil
}

// Dialect reports which driver backs the connection.
func (db *DB) Dialect() Dialect { return db.dialect }

// Rebind rewrites '?' placeholders into the driver's native style.
func (db *DB) Rebind(query string) string {
	if db.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// HealthCheck verifies the database connection is healthy
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// Migrate applies the embedded migrations for this dialect.
func (db *DB) Migrate() error {
	sub, err := fs.Sub(migrationsFS, path.Join("migrations", string(db.dialect)))
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	return db.RunMigrations(sub)
}

// RunMigrations executes all SQL migration files found in fsys
func (db *DB) RunMigrations(fsys fs.FS) error {
	migrations, err := readMigrations(fsys)
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	if len(migrations) == 0 {
		log.Println("no migrations found")
		return nil
	}

	// Ensure migration tracking table exists
	if err := db.createMigrationTable(); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	for _, migration := range migrations {
		applied, err := db.isMigrationApplied(migration.Number)
		if err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}

		if applied {
			continue
		}

		log.Printf("applying migration %d: %s", migration.Number, migration.Name)

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if _, err := tx.Exec(migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Number, err)
		}

		if _, err := tx.Exec(
			db.Rebind("INSERT INTO schema_migrations (version, name) VALUES (?, ?)"),
			migration.Number,
			migration.Name,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration: %w", err)
		}

		log.Printf("migration %d applied successfully", migration.Number)
	}

	return nil
}

// Migration represents a single migration file
type Migration struct {
	Number int
	Name   string
	SQL    string
}

// readMigrations reads "NNN_name.sql" files from fsys, sorted by number
func readMigrations(fsys fs.FS) ([]Migration, error) {
	var migrations []Migration

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !strings.HasSuffix(p, ".sql") {
			return nil
		}

		filename := d.Name()
		parts := strings.Split(filename, "_")
		if len(parts) < 2 {
			return nil
		}

		number, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil
		}

		sqlBytes, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}

		name := strings.TrimSuffix(strings.Join(parts[1:], "_"), ".sql")

		migrations = append(migrations, Migration{
			Number: number,
			Name:   name,
			SQL:    string(sqlBytes),
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Number < migrations[j].Number
	})

	return migrations, nil
}

// createMigrationTable creates the table that tracks which migrations have been applied
func (db *DB) createMigrationTable() error {
	createTableSQL := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	_, err := db.Exec(createTableSQL)
	return err
}

// isMigrationApplied checks if a migration with the given number has been applied
func (db *DB) isMigrationApplied(number int) (bool, error) {
	var count int
	err := db.QueryRow(
		db.Rebind("SELECT COUNT(*) FROM schema_migrations WHERE version = ?"),
		number,
	).Scan(&count)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}
