package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"focusbot/internal/config"
	"focusbot/internal/db"
)

func newMigrateCmd() *cobra.Command {
	var migrationsDir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if migrationsDir != "" {
				cfg.MigrationsDir = migrationsDir
			}

			database, err := db.OpenSQLite(cfg.DBPath)
			if err != nil {
				log.Error().Err(err).Str("path", cfg.DBPath).Msg("Failed to open database")
				return err
			}
			defer database.Close()

			applied, err := db.RunMigrations(database, cfg.MigrationsDir)
			if err != nil {
				log.Error().Err(err).Msg("Failed to run migrations")
				return err
			}

			log.Info().Int("applied", len(applied)).Msg("Migrations applied successfully")
			return nil
		},
	}

	cmd.Flags().StringVar(&migrationsDir, "dir", "", "Migrations directory (defaults to MIGRATIONS_DIR)")
	return cmd
}
