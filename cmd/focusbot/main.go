package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"focusbot/internal/config"
	"focusbot/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("focusbot failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "focusbot",
		Short:         "Shared pomodoro sessions for chat channels",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env is fine; the environment may already be set.
			envErr := godotenv.Load()

			cfg := config.Load()
			logging.Setup(cfg.LogLevel, cfg.LogPretty)
			if envErr != nil {
				log.Debug().Msg("No .env file found, using environment variables")
			}
		},
	}

	cmd.AddCommand(newServeCmd(), newMigrateCmd())
	return cmd
}
