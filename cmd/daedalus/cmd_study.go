package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wehubfusion/Daedalus/pkg/client"
	"github.com/wehubfusion/Daedalus/pkg/exploration"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <worksheet-id> <row>",
		Short: "Summarise the study referenced by a row",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, "study_stats", func(ctx context.Context, c *client.Client) error {
				studyID, err := c.Worksheets.StudyIDOfRow(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				stats, err := c.Studies.Stats(ctx, studyID)
				if err != nil {
					return err
				}
				return printResult(cmd, stats, fmt.Sprintf("%s (%s): %s, %d/%d simulations succeeded",
					stats.StudyName, stats.StudyID, stats.StudyState,
					stats.SucceededSimulationCount, stats.SimulationCount))
			})
		},
	}
}

func newExploreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explore <name> <parameters-file>",
		Short: "Create a Monte Carlo exploration config",
		Long: `Creates a Monte Carlo exploration sweeping the parameters listed in the
file. The file holds a list of {path, min, max} entries as JSON or YAML
(.yaml or .yml).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			points, _ := cmd.Flags().GetInt("points")
			simVersion, _ := cmd.Flags().GetString("sim-version")
			raw, err := loadSweptParameters(args[1])
			if err != nil {
				return err
			}
			return withClient(cmd, "create_exploration", func(ctx context.Context, c *client.Client) error {
				if simVersion == "" {
					simVersion = c.Config().SimVersion
				}
				configID, err := c.Explorations.CreateMonteCarloConfigFromJSON(ctx, args[0], simVersion, raw, points)
				if err != nil {
					return err
				}
				return printResult(cmd, map[string]string{"config_id": configID},
					fmt.Sprintf("Exploration config %s created", configID))
			})
		},
	}
	cmd.Flags().Int("points", exploration.DefaultPoints, "Number of Monte Carlo points")
	cmd.Flags().String("sim-version", "", "Simulator version")
	return cmd
}

// loadSweptParameters reads a parameters file and returns it as JSON. YAML files are
// converted so both formats go through the same schema validation.
func loadSweptParameters(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading parameters file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var params []map[string]any
		if err := yaml.Unmarshal(data, &params); err != nil {
			return nil, fmt.Errorf("parsing parameters file %s: %w", path, err)
		}
		return json.Marshal(params)
	default:
		return data, nil
	}
}
