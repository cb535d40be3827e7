package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
)

func newHealthCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Inspect connection health",
	}
	cmd.AddCommand(newHealthCheckCmd(g))
	return cmd
}

func newHealthCheckCmd(g *globals) *cobra.Command {
	var userID, provider string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one connection health check and print the summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := g.bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			name := domain.ProviderName(provider)
			if name == "" {
				name = a.storage.UserProviderName(cmd.Context(), userID)
			}
			if _, err := a.health.CheckConnectionHealth(cmd.Context(), userID, name); err != nil {
				return fmt.Errorf("check %s: %w", name, err)
			}
			summary, err := a.health.GetHealthSummary(cmd.Context(), userID, name)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(summary); err != nil {
				return err
			}
			if !summary.IsHealthy {
				return fmt.Errorf("%s is %s", name, summary.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user ID (required)")
	cmd.Flags().StringVar(&provider, "provider", "", "provider name, defaults to the user's provider")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
