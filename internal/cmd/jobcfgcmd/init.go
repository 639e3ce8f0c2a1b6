package jobcfgcmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/jobd/internal/catalog"
	"github.com/3leaps/jobd/internal/observability"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new, empty jobd catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := initCatalogPath()
		c, err := catalog.Create(path)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		observability.CLILogger.Info("catalog created", zap.String("path", path))
		return nil
	},
}
