package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/mapsearch/internal/geobox"
	"github.com/mohammed-shakir/mapsearch/internal/searchstate"
)

func newAreaCmd() *cobra.Command {
	var bigArea float64
	cmd := &cobra.Command{
		Use:   "area <south,north,west,east>",
		Short: "Print the area of a box and whether it is too big to filter on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			box, ok := geobox.Parse(args[0])
			if !ok {
				return fmt.Errorf("not a box: %q", args[0])
			}
			a := box.Area()
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "area_km2=%.1f big=%t\n", a, a > bigArea)
			return err
		},
	}
	cmd.Flags().Float64Var(&bigArea, "big-area", searchstate.DefaultBigAreaKm2, "area in km² above which a location is not used as a filter")
	return cmd
}
