// Package cli implements slunchctl, the offline admin tool. Every command
// opens the data directory directly, so the server must not be running.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"slunch/pkg/state"
	"slunch/pkg/state/logger"
	"slunch/pkg/store"
)

const defaultDataDir = "./.database"

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "slunchctl",
		Short: "Offline admin tool for the slunch data directory",
		Long: `slunchctl inspects and maintains a slunch data directory.

The data directory defaults to $SLUNCH_DB_PATH, then ./.database.
Stop the server first: pebble allows one process per directory.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := "warn"
			if v, _ := cmd.Flags().GetBool("verbose"); v {
				level = "debug"
			}
			logger.InitWriter(level, cmd.ErrOrStderr())
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newInspectCmd(),
		newPopularCmd(),
		newPruneCmd(),
		newMigrateFCMCmd(),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute(version string) {
	if err := NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func dataDir(args []string) string {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return args[0]
	}
	if v := strings.TrimSpace(os.Getenv("SLUNCH_DB_PATH")); v != "" {
		return v
	}
	return defaultDataDir
}

func openStore(dir string, readOnly bool) (*store.Store, error) {
	path := state.StorePath(dir)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("no store under %s: %w", dir, err)
	}
	return store.Open(path, store.Options{ReadOnly: readOnly})
}
