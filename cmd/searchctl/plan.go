package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/mapsearch/internal/geobox"
	"github.com/mohammed-shakir/mapsearch/internal/planner"
	"github.com/mohammed-shakir/mapsearch/internal/transport"
)

type planOptions struct {
	file     string
	offset   int
	limit    int
	viewport string
}

func newPlanCmd() *cobra.Command {
	var o planOptions
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan a saved search response into detail and abstract entries",
		Long: `Reads a backend search response and prints the bucket of every item
address followed by the pagination links. Without --viewport every address
counts as visible, as in the list view.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlan(cmd.InOrStdin(), cmd.OutOrStdout(), o)
		},
	}
	cmd.Flags().StringVar(&o.file, "file", "-", "response JSON file, - for stdin")
	cmd.Flags().IntVar(&o.offset, "offset", 0, "result offset of the page")
	cmd.Flags().IntVar(&o.limit, "limit", 20, "page size")
	cmd.Flags().StringVar(&o.viewport, "viewport", "", "visible box as south,north,west,east")
	return cmd
}

func runPlan(stdin io.Reader, out io.Writer, o planOptions) error {
	var (
		b   []byte
		err error
	)
	if o.file == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(o.file) // #nosec G304 -- operator-supplied path
	}
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	res, err := transport.Decode(b)
	if err != nil {
		return err
	}

	var vp planner.Viewport = planner.ViewportFunc(func(float64, float64) bool { return true })
	if o.viewport != "" {
		box, ok := geobox.Parse(o.viewport)
		if !ok {
			return fmt.Errorf("not a box: %q", o.viewport)
		}
		vp = box
	}

	layout := planner.Plan(res, vp, o.offset, o.limit)
	mode := "page"
	if layout.Overview {
		mode = "overview"
	}
	fmt.Fprintf(out, "mode=%s items=%d total=%d\n", mode, len(res.Items), max(res.ItemCount, res.Slots()))
	for _, p := range layout.Placements {
		it := res.Items[p.Item]
		fmt.Fprintf(out, "%s\taddress=%d\t%s\n", it.ID, p.Address, p.Bucket)
	}

	pg := layout.Pagination
	if !pg.Visible {
		fmt.Fprintln(out, "pagination: none")
		return nil
	}
	if pg.Previous != nil {
		fmt.Fprintf(out, "previous=%d\n", pg.Previous.Offset)
	}
	for _, l := range pg.Pages {
		marker := ""
		if !l.Clickable {
			marker = "*"
		}
		fmt.Fprintf(out, "page %s%s=%d\n", l.Label, marker, l.Offset)
	}
	if pg.Range != "" {
		fmt.Fprintf(out, "range=%s\n", pg.Range)
	}
	if pg.Next != nil {
		fmt.Fprintf(out, "next=%d\n", pg.Next.Offset)
	}
	return nil
}
