// Package cli implements parkadmin, the operator tool for the parking database.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is stamped at build time.
var Version = "dev"

type rootOptions struct {
	jsonOutput bool
}

// NewRootCommand builds parkadmin. Every subcommand opens its Env through open.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "parkadmin",
		Short: "parkadmin - SparkPark operator tool",
		Long: `parkadmin manages the SparkPark parking database: schema migrations,
the zone catalogue and receipt lookups for support.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output in JSON format")

	cmd.AddCommand(
		newVersionCommand(),
		newMigrateCommand(open),
		newZonesCommand(open, opts),
		newReceiptsCommand(open, opts),
	)
	return cmd
}

// Execute runs parkadmin against the configured database.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand(OpenFromConfig).ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the parkadmin version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "parkadmin %s\n", Version)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
