package cmd

import (
	"fmt"
	"log/slog"

	"github.com/sreddy75/kr8-vector/db"
	"github.com/sreddy75/kr8-vector/internal/config"
)

// runMigrate applies pending database migrations. It only needs the
// database connection, not the embedder, so it skips the full setup path.
func runMigrate() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := db.Migrate(cfg.PostgresURL(), slog.Default()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
