package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/henryproto/turnstile-emu/internal/catalog"
	"github.com/henryproto/turnstile-emu/internal/config"
	"github.com/henryproto/turnstile-emu/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run catalog database migrations",
	Long: `Open (creating if absent) the device's catalog database and apply its
schema migrations. Run this once before the first "turnstile start" on a
fresh state directory, or after an upgrade that changed the catalog schema.

Examples:
  turnstile migrate --config /etc/turnstile/config.yaml`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	path := resolveCatalogPath(cfg.Catalog.Path)
	logger.Info("running catalog migrations", "path", path)

	store, err := catalog.Open(path)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	defer func() { _ = store.Close() }()

	fmt.Printf("Migrations completed successfully (catalog: %s)\n", path)
	return nil
}
