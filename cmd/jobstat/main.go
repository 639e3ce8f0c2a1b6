// Command jobstat lists jobd catalog entries and their current state.
package main

import (
	"os"

	"github.com/3leaps/jobd/internal/apperrors"
	"github.com/3leaps/jobd/internal/cmd/jobstatcmd"
	"github.com/3leaps/jobd/internal/observability"
)

func main() {
	defer observability.Sync()

	if err := jobstatcmd.RootCmd.Execute(); err != nil {
		observability.CLILogger.Error(err.Error())
		os.Exit(apperrors.ExitCodeOf(err))
	}
}
