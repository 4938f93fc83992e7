package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"slunch/internal/subscription"
	"slunch/pkg/apperr"
	"slunch/pkg/models"
	"slunch/pkg/state/logger"
	"slunch/pkg/store"
)

type migrateReport struct {
	Scanned    int `json:"scanned"`
	Migrated   int `json:"migrated"`
	Existing   int `json:"existing"`
	Incomplete int `json:"incomplete"`
	Undecoded  int `json:"undecoded"`
}

// migrateLegacyFCM copies subscriptions from the legacy fcm collection into
// fcm_meal. Tokens already present are left alone; records missing a
// school or a valid time are counted and skipped. The legacy collection is
// only cleared with removeLegacy and never in a dry run.
func migrateLegacyFCM(s *store.Store, dryRun, removeLegacy bool) (migrateReport, error) {
	var rep migrateReport
	legacy := s.Collection(store.CollFCMLegacy)
	subs := subscription.New(s)

	var pending []models.MealSubscription
	err := legacy.All(func(k string, v []byte) error {
		rep.Scanned++
		var sub models.MealSubscription
		if err := json.Unmarshal(v, &sub); err != nil {
			logger.Warn("legacy_fcm_decode_failed", "token", logger.MaskToken(k), "error", err)
			rep.Undecoded++
			return nil
		}
		if sub.Token == "" {
			sub.Token = k
		}
		pending = append(pending, sub)
		return nil
	})
	if err != nil {
		return rep, err
	}

	for _, sub := range pending {
		if dryRun {
			if _, terr := subscription.ValidateTime(sub.Time); terr != nil || sub.SchoolCode == "" || sub.RegionCode == "" {
				rep.Incomplete++
			} else if _, err := subs.Meal.Get(sub.Token); err == nil {
				rep.Existing++
			} else {
				rep.Migrated++
			}
			continue
		}
		_, err := subs.Meal.Create(sub)
		switch {
		case err == nil:
			rep.Migrated++
		case apperr.IsConflict(err):
			rep.Existing++
		case apperr.IsValidation(err):
			logger.Warn("legacy_fcm_incomplete", "token", logger.MaskToken(sub.Token), "error", err)
			rep.Incomplete++
		default:
			return rep, err
		}
	}

	if removeLegacy && !dryRun {
		if err := legacy.Clear(); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

func newMigrateFCMCmd() *cobra.Command {
	var dryRun, removeLegacy bool
	cmd := &cobra.Command{
		Use:   "migrate-fcm [data-dir]",
		Short: "Copy legacy fcm subscriptions into fcm_meal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(dataDir(args), dryRun)
			if err != nil {
				return err
			}
			defer s.Close()

			rep, err := migrateLegacyFCM(s, dryRun, removeLegacy)
			if err != nil {
				return fmt.Errorf("migrate fcm: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scanned %d, migrated %d, already present %d, incomplete %d, undecodable %d\n",
				rep.Scanned, rep.Migrated, rep.Existing, rep.Incomplete, rep.Undecoded)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "count what would be migrated without writing")
	cmd.Flags().BoolVar(&removeLegacy, "remove-legacy", false, "clear the legacy collection after copying")
	return cmd
}
