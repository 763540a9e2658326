package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"sparkpark/backend/services/parking-service/internal/billing"
	"sparkpark/backend/services/parking-service/internal/gateway"
)

func newReceiptsCommand(open Opener, root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "receipts",
		Short: "Inspect receipts",
	}
	cmd.AddCommand(newReceiptsListCommand(open, root))
	return cmd
}

func newReceiptsListCommand(open Opener, root *rootOptions) *cobra.Command {
	var principalID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a principal's receipts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if principalID == "" {
				return errors.New("--principal is required")
			}

			env, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			ctx := gateway.WithPrincipal(cmd.Context(), principalID)
			receipts, err := env.Receipts.ListForPrincipal(ctx)
			if err != nil {
				return err
			}
			if root.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), receipts)
			}
			if len(receipts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no receipts")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ENDED\tZONE\tCODE\tDURATION\tTOTAL\tID")
			for _, r := range receipts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s %s\t%s\n",
					r.EndedAt.Format("2006-01-02 15:04"),
					r.ZoneName,
					r.ZoneCode,
					billing.FormatDuration(r.DurationSeconds),
					r.TotalCost,
					r.Currency,
					r.ID,
				)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&principalID, "principal", "", "principal id")
	return cmd
}
