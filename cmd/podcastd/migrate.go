package main

import (
	"github.com/spf13/cobra"

	"podcastai/internal/logging"
	"podcastai/internal/storage/postgres"
	"podcastai/migrations"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel, cfg.Log.Format)

			db, err := postgres.Open(cmd.Context(), cfg.Database.DSN())
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := postgres.Migrate(cmd.Context(), db, migrations.FS, logger)
			if err != nil {
				return err
			}
			cmd.Printf("%d migration(s) applied\n", applied)
			return nil
		},
	}
}
