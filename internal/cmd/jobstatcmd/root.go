// Package jobstatcmd implements jobstat, the read-only status tool of
// spec.md §6: "print one job ID per line, sorted". --format is this
// rework's supplemented alternate rendering (SPEC_FULL.md); the default
// table output is exactly the original's bare ID list.
package jobstatcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/3leaps/jobd/internal/catalog"
	"github.com/3leaps/jobd/internal/config"
	"github.com/3leaps/jobd/internal/observability"
	"github.com/3leaps/jobd/internal/query"
)

var (
	verbose bool
	format  string
)

// RootCmd is the jobstat entry point; cmd/jobstat/main.go just calls Execute.
var RootCmd = &cobra.Command{
	Use:           "jobstat",
	Short:         "List jobd catalog entries and their state",
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		observability.InitCLI(verbose)
		cfg, err := config.Load("", nil)
		if err != nil {
			return err
		}

		c, err := catalog.Open(cfg.DBPath, true)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		summaries, err := query.List(c.DB())
		if err != nil {
			return err
		}

		return render(cmd, summaries, format)
	},
}

func init() {
	RootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	RootCmd.Flags().StringVar(&format, "format", "table", "output format: table|json|yaml")
}

func render(cmd *cobra.Command, summaries []query.JobSummary, format string) error {
	switch format {
	case "table":
		return renderTable(cmd, summaries)
	case "json":
		return renderJSON(cmd, summaries)
	case "yaml":
		return renderYAML(cmd, summaries)
	default:
		return fmt.Errorf("unknown --format %q (want table, json, or yaml)", format)
	}
}

func renderTable(cmd *cobra.Command, summaries []query.JobSummary) error {
	for _, s := range summaries {
		fmt.Fprintln(cmd.OutOrStdout(), s.ID)
	}
	return nil
}
