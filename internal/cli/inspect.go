package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [data-dir]",
		Short: "Show key counts and sizes per collection",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(dataDir(args), true)
			if err != nil {
				return err
			}
			defer s.Close()

			stats, err := s.Stats()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "COLLECTION\tKEYS\tSIZE")
			var keys, bytes int64
			for _, st := range stats {
				fmt.Fprintf(w, "%s\t%s\t%s\n", st.Name, humanize.Comma(int64(st.Keys)), humanize.IBytes(uint64(st.Bytes)))
				keys += int64(st.Keys)
				bytes += st.Bytes
			}
			fmt.Fprintf(w, "total\t%s\t%s\n", humanize.Comma(keys), humanize.IBytes(uint64(bytes)))
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\ndisk usage: %s\n", humanize.IBytes(s.DiskUsage()))
			return nil
		},
	}
}
