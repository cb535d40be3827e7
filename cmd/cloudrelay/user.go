package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driving"
)

func newUserCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(newUserCreateCmd(g))
	return cmd
}

func newUserCreateCmd(g *globals) *cobra.Command {
	var req driving.CreateUserRequest
	var role string

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Create a user",
		Example: `  cloudrelay user create --email admin@example.com --name Admin --role admin --password 'change-me-now'`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := g.bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			req.Role = domain.Role(role)
			user, err := a.users.Create(cmd.Context(), req)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(user.ToSummary())
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&req.Name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&req.Password, "password", "", "password, at least 8 characters (required)")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleEmployee), "admin, employee or client")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
