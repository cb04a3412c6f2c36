// Command migrate applies the embedded SQL migrations to the storefront database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"ms-storefront/internal/config"
	"ms-storefront/internal/database"
	"ms-storefront/internal/database/migrations"
	"ms-storefront/internal/logger"
)

func main() {
	var (
		direction = flag.String("direction", "up", "up, down or to")
		version   = flag.Uint("version", 0, "target version when -direction=to")
		seed      = flag.Bool("seed", false, "also apply seed data migrations")
	)
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	log, err := logger.NewLogger(logger.Options{MinLevel: logger.ParseLevel(cfg.Log.Level), NoColor: cfg.Log.NoColor})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	db, err := database.Connect(context.Background(), cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}

	runner := migrations.NewRunner(db, migrations.MigrateOptions{SeedData: *seed}, log)
	defer runner.Close()

	switch *direction {
	case "up":
		if *seed {
			err = runner.MigrateUp()
		} else {
			err = runner.RunMigrations()
		}
	case "down":
		err = runner.MigrateDown()
	case "to":
		err = runner.MigrateTo(*version)
	default:
		log.Fatal("MIGRATE", fmt.Sprintf("unknown direction %q", *direction))
	}
	if err != nil {
		log.Fatal("MIGRATE", err.Error())
	}

	v, dirty, err := runner.Version()
	if err != nil {
		log.Fatal("MIGRATE", err.Error())
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tDIRTY\tSEED")
	fmt.Fprintf(tw, "%d\t%t\t%t\n", v, dirty, v > migrations.SchemaVersion)
	tw.Flush()
}
