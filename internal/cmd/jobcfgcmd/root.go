// Package jobcfgcmd implements the jobcfg command tree: init and import,
// the configuration-time half of spec.md §6's CLI surface. It follows the
// package-level-command-var-plus-init()-flag-registration idiom the
// examples pack's cobra commands use.
package jobcfgcmd

import (
	"github.com/spf13/cobra"

	"github.com/3leaps/jobd/internal/config"
	"github.com/3leaps/jobd/internal/observability"
)

var (
	verbose    bool
	configPath string

	cfg *config.Config
)

// RootCmd is the jobcfg entry point; cmd/jobcfg/main.go just calls Execute.
var RootCmd = &cobra.Command{
	Use:           "jobcfg",
	Short:         "Create and populate the jobd catalog",
	Long:          "jobcfg creates a jobd catalog and imports job manifests into it.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		observability.InitCLI(verbose)
		loaded, err := config.Load("", nil)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	RootCmd.PersistentFlags().StringVarP(&configPath, "file", "f", "", "catalog path (init) or manifest file/directory (import)")

	RootCmd.AddCommand(initCmd)
	RootCmd.AddCommand(importCmd)
}

// initCatalogPath resolves the path jobcfg init should create: -f when
// given, otherwise the layered config's default (JOBD_DB_PATH or platform
// default). import's -f means something different (the manifest source),
// so it always uses cfg.DBPath directly instead.
func initCatalogPath() string {
	if configPath != "" {
		return configPath
	}
	return cfg.DBPath
}
