// Command migrate applies the platform's SQL schema to the configured
// database and exits. It exists so schema changes can be rolled out
// independently of the long-running courseapi process.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/course-supporter/platform/internal/config"
	"github.com/course-supporter/platform/internal/migrations"
	"github.com/course-supporter/platform/internal/platformdb"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := platformdb.Open(context.Background(), cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := migrations.Apply(db); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	fmt.Println("migrations applied")
	return nil
}
