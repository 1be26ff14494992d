// searchctl inspects search queries, boxes and result layouts offline.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "searchctl",
		Short:         "Offline tools for map search queries and result layouts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCanonCmd(), newAreaCmd(), newPlanCmd(), newCheckCmd())
	return root
}
