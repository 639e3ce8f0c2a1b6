// Command jobcfg creates a jobd catalog and imports job manifests into it.
package main

import (
	"os"

	"github.com/3leaps/jobd/internal/apperrors"
	"github.com/3leaps/jobd/internal/cmd/jobcfgcmd"
	"github.com/3leaps/jobd/internal/observability"
)

func main() {
	defer observability.Sync()

	if err := jobcfgcmd.RootCmd.Execute(); err != nil {
		observability.CLILogger.Error(err.Error())
		os.Exit(apperrors.ExitCodeOf(err))
	}
}
