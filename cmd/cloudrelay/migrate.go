package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cloudrelay/internal/adapters/driven/postgres"
)

func newMigrateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long:  "Apply the database schema. The schema is idempotent, so running it twice is safe.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closer, err := g.load()
			if err != nil {
				return err
			}
			defer closer.Close()

			db, err := postgres.Connect(cmd.Context(), postgres.Config{
				URL:          cfg.Database.URL,
				MaxOpenConns: 1,
			})
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer db.Close()

			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			logger.Info("schema applied")
			return nil
		},
	}
}
