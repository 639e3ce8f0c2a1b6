package jobstatcmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/3leaps/jobd/internal/query"
)

func renderJSON(cmd *cobra.Command, summaries []query.JobSummary) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(summaries)
}

func renderYAML(cmd *cobra.Command, summaries []query.JobSummary) error {
	data, err := yaml.Marshal(summaries)
	if err != nil {
		return fmt.Errorf("marshal status as yaml: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
