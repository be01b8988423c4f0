// Command authbroker runs the OAuth login broker.
//
//	authbroker serve              serve HTTP until SIGINT/SIGTERM
//	authbroker migrate            apply the SQL ledger schema
//	authbroker keygen --alg RS256 print a new signing key
package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "authbroker",
		Short:        "OAuth login broker and token service",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newKeygenCmd())
	return root
}
