package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/mapsearch/internal/params"
)

func newCanonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "canon <query>",
		Short: "Print the canonical form of a search query",
		Long: `Decodes a query string with the search parameter table and encodes it
again. Unknown keys and malformed values are dropped; "(none)" is printed
when nothing survives.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, ok := params.Search.Encode(params.Search.Decode(args[0]))
			if !ok {
				q = "(none)"
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), q)
			return err
		},
	}
}
