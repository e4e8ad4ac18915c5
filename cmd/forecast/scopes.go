package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var scopesCmd = &cobra.Command{
	Use:   "scopes",
	Short: "List depots that have items",
	RunE:  runScopes,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent jobs for a scope",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(scopesCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().String("scope", "", "Depot (required)")
	historyCmd.Flags().Int("limit", 10, "Maximum number of jobs")
	_ = historyCmd.MarkFlagRequired("scope")
}

func runScopes(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	scopes, err := a.Products.ListScopes(cmdContext(cmd))
	if err != nil {
		return fmt.Errorf("list scopes: %w", err)
	}
	for _, s := range scopes {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), s)
	}
	return nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	scope, _ := cmd.Flags().GetString("scope")
	limit, _ := cmd.Flags().GetInt("limit")

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	jobs, err := a.Orchestrator.History(cmdContext(cmd), scope, limit)
	if err != nil {
		return fmt.Errorf("job history: %w", err)
	}
	if len(jobs) == 0 {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "No jobs for scope %s\n", scope)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "JOB\tSTATUS\tPROGRESS\tFAILED\tCREATED")
	for _, j := range jobs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d/%d\t%d\t%s\n",
			j.ID, j.Status, j.Current, j.Total, j.FailedCount, j.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}
