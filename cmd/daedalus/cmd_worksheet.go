package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wehubfusion/Daedalus/pkg/client"
	"github.com/wehubfusion/Daedalus/pkg/worksheet"
)

func newResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset <worksheet-id>",
		Short: "Remove every row of a worksheet except the kept ones",
		Long: `Rewrites the worksheet keeping only the rows named with --keep, in their
original order. Worksheet properties and label definitions are preserved.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keep, _ := cmd.Flags().GetStringSlice("keep")
			return withClient(cmd, "reset_worksheet", func(ctx context.Context, c *client.Client) error {
				ws, err := c.Worksheets.ResetWorksheet(ctx, args[0], keep)
				if err != nil {
					return err
				}
				names := make([]string, 0, len(ws.Outline.Rows))
				for _, row := range ws.Outline.Rows {
					names = append(names, row.Name)
				}
				return printResult(cmd, map[string]any{"worksheet_id": args[0], "rows": names},
					fmt.Sprintf("Worksheet %s reset, %d rows kept", args[0], len(names)))
			})
		},
	}
	cmd.Flags().StringSlice("keep", nil, "Names of rows to keep")
	return cmd
}

func newRunRowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run-row <worksheet-id> <source-row>",
		Short: "Submit a study for a new row built from an existing one",
		Long: `Builds a new row from the source row's configs, replacing configs of the
same type with the ones given by --config-id, submits it as a study and
appends the row to the worksheet.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := runRowRequest(cmd, args[0], args[1])
			if err != nil {
				return err
			}
			return withClient(cmd, "run_row_study", func(ctx context.Context, c *client.Client) error {
				if req.SimVersion == "" {
					req.SimVersion = c.Config().SimVersion
				}
				studyID, err := c.Worksheets.RunRowStudy(ctx, req)
				if err != nil {
					return err
				}
				return printResult(cmd, map[string]string{"study_id": studyID},
					fmt.Sprintf("Study %s submitted", studyID))
			})
		},
	}
	cmd.Flags().String("name", "", "Name of the new row (defaults to \"<source-row> <suffix>\")")
	cmd.Flags().String("suffix", "", "Suffix appended to the source row name")
	cmd.Flags().StringSlice("config-id", nil, "Ids of configs overriding the source row's")
	cmd.Flags().StringSlice("exclude-type", nil, "Config types dropped from the new row")
	cmd.Flags().StringSlice("sim-type", nil, "Simulation types to run")
	cmd.Flags().String("study-type", "", "Study type")
	cmd.Flags().String("notes", "", "Study notes")
	cmd.Flags().String("sim-version", "", "Simulator version")
	return cmd
}

func runRowRequest(cmd *cobra.Command, worksheetID, sourceRow string) (worksheet.RunRowRequest, error) {
	flags := cmd.Flags()
	name, _ := flags.GetString("name")
	suffix, _ := flags.GetString("suffix")
	if name == "" && suffix == "" {
		return worksheet.RunRowRequest{}, fmt.Errorf("either --name or --suffix is required")
	}
	configIDs, _ := flags.GetStringSlice("config-id")
	excluded, _ := flags.GetStringSlice("exclude-type")
	simTypes, _ := flags.GetStringSlice("sim-type")
	studyType, _ := flags.GetString("study-type")
	notes, _ := flags.GetString("notes")
	simVersion, _ := flags.GetString("sim-version")

	return worksheet.RunRowRequest{
		WorksheetID:         worksheetID,
		SourceRowName:       sourceRow,
		NewRowName:          name,
		RowSuffix:           suffix,
		ConfigIDs:           configIDs,
		ExcludedConfigTypes: excluded,
		SimTypes:            simTypes,
		StudyType:           studyType,
		Notes:               notes,
		SimVersion:          simVersion,
	}, nil
}
