package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"slunch/internal/access"
	"slunch/pkg/models"
)

func newPopularCmd() *cobra.Command {
	var (
		limit    int
		minCount int
		window   time.Duration
		all      bool
	)
	cmd := &cobra.Command{
		Use:   "popular [data-dir]",
		Short: "List the schools the precache job would warm",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(dataDir(args), true)
			if err != nil {
				return err
			}
			defer s.Close()

			t := access.New(s, access.Options{MinCount: minCount, Window: window})
			var stats []models.AccessStat
			if all {
				stats, err = t.All()
			} else {
				stats, err = t.Rank(limit)
			}
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RANK\tREGION\tSCHOOL\tREQUESTS\tLAST")
			for i, st := range stats {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, st.RegionCode, st.SchoolCode, humanize.Comma(int64(st.Count)), humanize.Time(st.LastAccessed))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of schools to list")
	cmd.Flags().IntVar(&minCount, "min-count", 0, "minimum requests to rank (default from the tracker)")
	cmd.Flags().DurationVar(&window, "window", 0, "only rank schools requested this recently (default from the tracker)")
	cmd.Flags().BoolVar(&all, "all", false, "list every stat in key order, ignoring the ranking rules")
	return cmd
}
