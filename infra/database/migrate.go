package database

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Migrate applies all pending up migrations for the driver's dialect.
func (d *DB) Migrate(ctx context.Context) error {
	return d.withMigrator(ctx, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}

		version, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			return err
		}
		zap.L().Info("Database schema up to date",
			zap.String("driver", d.driver),
			zap.Uint("version", version),
			zap.Bool("dirty", dirty),
		)
		return nil
	})
}

// DropSchema rolls every migration back, removing the items table.
func (d *DB) DropSchema(ctx context.Context) error {
	return d.withMigrator(ctx, func(m *migrate.Migrate) error {
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		return nil
	})
}

func (d *DB) withMigrator(ctx context.Context, fn func(m *migrate.Migrate) error) error {
	source, err := iofs.New(migrationsFS, "migrations/"+d.driver)
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	defer source.Close()

	driver, release, err := d.migrationDriver(ctx)
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	defer release()

	m, err := migrate.NewWithInstance("iofs", source, d.driver, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	return fn(m)
}

// migrationDriver wraps the pool without handing ownership to migrate: the
// drivers' Close would otherwise close d.db. release frees only what the
// driver itself acquired.
func (d *DB) migrationDriver(ctx context.Context) (migratedb.Driver, func(), error) {
	switch d.driver {
	case DriverPostgres:
		conn, err := d.db.Conn(ctx)
		if err != nil {
			return nil, nil, err
		}
		driver, err := migratepostgres.WithConnection(ctx, conn, &migratepostgres.Config{})
		if err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		return driver, func() { _ = driver.Close() }, nil
	case DriverSQLite:
		driver, err := migratesqlite.WithInstance(d.db.DB, &migratesqlite.Config{})
		if err != nil {
			return nil, nil, err
		}
		return driver, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", d.driver)
	}
}
