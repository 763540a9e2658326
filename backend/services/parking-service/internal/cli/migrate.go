package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"sparkpark/backend/services/parking-service/internal/db"
)

func newMigrateCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			if env.Store.DB == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "in-memory gateway: nothing to migrate")
				return nil
			}
			if err := db.Migrate(cmd.Context(), env.Store.DB, env.Logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
