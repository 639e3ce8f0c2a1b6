package jobcfgcmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/jobd/internal/catalog"
	"github.com/3leaps/jobd/internal/manifest"
	"github.com/3leaps/jobd/internal/manifestio"
	"github.com/3leaps/jobd/internal/observability"
	"github.com/3leaps/jobd/internal/query"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import one or more job manifests into the catalog",
	Long:  "import reads -f as a manifest file or a directory of *.toml manifests; with no -f it reads one manifest from stdin.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := loadManifests(configPath)
		if err != nil {
			return err
		}

		c, err := catalog.Open(cfg.DBPath, false)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		rowIDs, err := c.Import(context.Background(), records)
		if err != nil {
			return err
		}

		for i, m := range records {
			observability.CLILogger.Info("job imported",
				zap.String("job_id", m.ID),
				zap.Int64("row_id", rowIDs[i]),
			)
		}

		summaries, err := query.List(c.DB())
		if err != nil {
			return err
		}
		for _, s := range summaries {
			fmt.Fprintln(cmd.OutOrStdout(), s.ID)
		}
		return nil
	},
}

// loadManifests resolves -f (file, directory, or empty for stdin) into a
// slice of validated manifests, per spec.md §6's import contract.
func loadManifests(source string) ([]*manifest.Record, error) {
	if source == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read manifest from stdin: %w", err)
		}
		record, err := manifestio.LoadBytes(data, "<stdin>")
		if err != nil {
			return nil, err
		}
		return []*manifest.Record{record}, nil
	}

	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("stat manifest source %s: %w", source, err)
	}
	if info.IsDir() {
		return manifestio.LoadDirectory(source)
	}
	record, err := manifestio.LoadFile(source)
	if err != nil {
		return nil, err
	}
	return []*manifest.Record{record}, nil
}
