// Command oidcrp runs an OpenID Connect relying party and its tooling.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/kbukum/oidcrp/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "oidcrp",
		Short:        "OpenID Connect relying party",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newDiscoverCmd(), newMigrateCmd(), &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Get())
		},
	})
	return root
}
