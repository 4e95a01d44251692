package main

import (
	"account_service/internal/config"
	"account_service/internal/storage"

	"github.com/spf13/cobra"
)

func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg := mustLoadConfig()

	if cfg.DB.Driver != config.DriverPostgres {
		cmd.Println("nothing to migrate for driver", cfg.DB.Driver)
		return nil
	}

	cmd.Println("Running migrations...")
	if err := storage.Migrate(cmd.Context(), cfg.DB.DbURL); err != nil {
		return err
	}

	cmd.Println("Migrations completed successfully")
	return nil
}
