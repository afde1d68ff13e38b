package database

import (
	"context"
	"database/sql"
	"fmt"
	"itemsvc/pkg/config"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

type Config struct {
	Driver string
	DSN    string

	// Zero values fall back to per-driver defaults.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DB is the process-wide storage handle. Request code never uses it directly;
// it acquires a Session per unit of work.
type DB struct {
	db     *sqlx.DB
	driver string
}

// Open connects, verifies the connection and applies pending migrations so the
// items table exists before the first request.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	switch cfg.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	configurePool(db, cfg)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d := &DB{db: db, driver: cfg.Driver}

	if err := d.Migrate(ctx); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("failed to run migrations: %w (also failed to close db: %v)", err, cerr)
		}
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return d, nil
}

func configurePool(db *sqlx.DB, cfg Config) {
	maxOpen, maxIdle := cfg.MaxOpenConns, cfg.MaxIdleConns
	if maxOpen == 0 {
		maxOpen = 15
		// sqlite allows a single writer; one connection also keeps
		// ":memory:" databases coherent across sessions.
		if cfg.Driver == DriverSQLite {
			maxOpen = 1
		}
	}
	if maxIdle == 0 || maxIdle > maxOpen {
		maxIdle = min(8, maxOpen)
	}

	lifetime := cfg.ConnMaxLifetime
	if lifetime == 0 {
		lifetime = 5 * time.Minute
	}
	idleTime := cfg.ConnMaxIdleTime
	if idleTime == 0 {
		idleTime = 2 * time.Minute
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	// A recycled sqlite ":memory:" connection would drop the database.
	if cfg.Driver != DriverSQLite {
		db.SetConnMaxLifetime(lifetime)
		db.SetConnMaxIdleTime(idleTime)
	}
}

// SQLiteDSN turns a database file path into a modernc.org/sqlite DSN with
// WAL journaling and a busy timeout.
func SQLiteDSN(path string) string {
	if path == ":memory:" {
		return path
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
}

func (d *DB) Driver() string {
	return d.driver
}

func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DB) Close() error {
	return d.db.Close()
}

// PoolStats returns current connection pool statistics
func (d *DB) PoolStats() sql.DBStats {
	return d.db.Stats()
}

// ConfigFromApp picks the driver and data source from application settings.
func ConfigFromApp(appConfig *config.AppConfig) Config {
	dsn := appConfig.DataSource()
	if appConfig.DBDriver == DriverSQLite && appConfig.DBDSN == "" {
		dsn = SQLiteDSN(appConfig.SQLitePath)
	}

	return Config{
		Driver: appConfig.DBDriver,
		DSN:    dsn,
	}
}
