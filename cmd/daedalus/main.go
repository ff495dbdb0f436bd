package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wehubfusion/Daedalus/internal/app"
	"github.com/wehubfusion/Daedalus/pkg/client"
)

var version = "0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "daedalus",
		Short: "Orchestrate simulation studies on worksheets",
		Long: `daedalus runs worksheet rows as studies, resets worksheets, creates
exploration configs and summarises study results.

Connection settings are read from DAEDALUS_* environment variables.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newResetCmd(),
		newRunRowCmd(),
		newStatsCmd(),
		newExploreCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printResult(cmd, map[string]string{"version": version}, "daedalus version "+version)
		},
	}
}

// withClient starts the process runtime, connects a client and runs fn. Failures are
// reported before being returned.
func withClient(cmd *cobra.Command, operation string, fn func(ctx context.Context, c *client.Client) error) error {
	ctx := cmd.Context()
	rt, err := app.Start(ctx, "daedalus-cli")
	if err != nil {
		return err
	}
	defer rt.Stop()

	c, err := client.New(rt.Config, client.WithLogger(rt.Logger))
	if err != nil {
		rt.Reporter.Report(operation, err)
		return err
	}
	if err := c.Connect(ctx); err != nil {
		rt.Reporter.Report(operation, err)
		return err
	}
	defer c.Close()

	if err := fn(ctx, c); err != nil {
		rt.Reporter.Report(operation, err)
		return err
	}
	return nil
}

// printResult writes v as JSON when --json is set and text otherwise.
func printResult(cmd *cobra.Command, v any, text string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")
	return writeResult(cmd.OutOrStdout(), jsonOut, v, text)
}

func writeResult(w io.Writer, jsonOut bool, v any, text string) error {
	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
