package migrations

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/uptrace/bun"

	"ms-storefront/internal/logger"
)

//go:embed sql/*.sql
var files embed.FS

// SchemaVersion is the last migration that only creates schema. Later versions seed data.
const SchemaVersion uint = 1

type MigrateOptions struct {
	// SeedData also applies the migrations after SchemaVersion.
	SeedData bool
}

// Runner applies the embedded SQL migrations to the service database.
type Runner struct {
	bunDB    *bun.DB
	options  MigrateOptions
	logger   *logger.Logger
	migrator *migrate.Migrate
}

func NewRunner(bunDB *bun.DB, opts MigrateOptions, log *logger.Logger) *Runner {
	return &Runner{bunDB: bunDB, options: opts, logger: log}
}

// Initialize binds the embedded sources to the database. Every other method calls it lazily.
func (r *Runner) Initialize() error {
	source, err := iofs.New(files, "sql")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	driver, err := postgres.WithInstance(r.bunDB.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("postgres migration driver: %w", err)
	}
	r.migrator, err = migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	return nil
}

// RunMigrations brings the schema up to date, and the seed data too when enabled. A dirty
// version is forced clean first so a crashed deploy does not wedge startup.
func (r *Runner) RunMigrations() error {
	if err := r.ensure(); err != nil {
		return err
	}

	version, dirty, err := r.Version()
	if err != nil {
		return err
	}
	if dirty {
		r.logger.Warn("MIGRATE", fmt.Sprintf("Version %d is dirty, forcing it clean", version))
		if err := r.migrator.Force(int(version)); err != nil {
			return fmt.Errorf("force dirty version %d: %w", version, err)
		}
	}

	switch {
	case r.options.SeedData:
		r.logger.Info("MIGRATE", "Applying schema and seed migrations")
		err = r.step("up", r.migrator.Up)
	case version < SchemaVersion:
		r.logger.Info("MIGRATE", "Applying schema migrations")
		err = r.MigrateTo(SchemaVersion)
	}
	if err != nil {
		return err
	}

	if version, _, err = r.Version(); err != nil {
		return err
	}
	r.logger.Info("MIGRATE", fmt.Sprintf("Schema at version %d", version))
	return nil
}

func (r *Runner) MigrateUp() error {
	if err := r.ensure(); err != nil {
		return err
	}
	return r.step("up", r.migrator.Up)
}

// MigrateDown rolls back every migration, seed data included.
func (r *Runner) MigrateDown() error {
	if err := r.ensure(); err != nil {
		return err
	}
	return r.step("down", r.migrator.Down)
}

func (r *Runner) MigrateTo(version uint) error {
	if err := r.ensure(); err != nil {
		return err
	}
	return r.step(fmt.Sprintf("to version %d", version), func() error { return r.migrator.Migrate(version) })
}

// Version reports the applied version, zero when nothing ran yet.
func (r *Runner) Version() (uint, bool, error) {
	if err := r.ensure(); err != nil {
		return 0, false, err
	}
	v, dirty, err := r.migrator.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("read migration version: %w", err)
	}
	return v, dirty, nil
}

// Close releases the migrator. The postgres driver closes the *sql.DB it was given, so
// long-running processes keep the runner open.
func (r *Runner) Close() error {
	if r.migrator == nil {
		return nil
	}
	srcErr, dbErr := r.migrator.Close()
	return errors.Join(srcErr, dbErr)
}

func (r *Runner) ensure() error {
	if r.migrator != nil {
		return nil
	}
	return r.Initialize()
}

// step runs one migrate call, treating "nothing to do" as success.
func (r *Runner) step(name string, fn func() error) error {
	if err := fn(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: %w", name, err)
	}
	return nil
}
