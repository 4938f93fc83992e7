package cli

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"slunch/internal/access"
	"slunch/internal/retention"
	"slunch/pkg/state"
)

func newPruneCmd() *cobra.Command {
	var (
		mealMaxAge time.Duration
		horizon    time.Duration
		dryRun     bool
	)
	cmd := &cobra.Command{
		Use:   "prune [data-dir]",
		Short: "Run the retention job once",
		Long: `Run the retention job once: drop access stats idle past the horizon and,
with --meal-max-age, cached meals older than that age. The run takes the
same lease as the server's retention job.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := dataDir(args)
			s, err := openStore(dir, dryRun)
			if err != nil {
				return err
			}
			defer s.Close()

			leaseDir := state.PathsFor(dir).State
			if err := os.MkdirAll(leaseDir, 0o700); err != nil {
				return err
			}
			t := access.New(s, access.Options{Horizon: horizon})
			r := retention.New(s, t, leaseDir, retention.Options{MealMaxAge: mealMaxAge, DryRun: dryRun})
			rep, err := r.Run(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		},
	}
	cmd.Flags().DurationVar(&mealMaxAge, "meal-max-age", 0, "also remove cached meals older than this; zero keeps them")
	cmd.Flags().DurationVar(&horizon, "horizon", 0, "access stat horizon (default from the tracker)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be removed without writing")
	return cmd
}
