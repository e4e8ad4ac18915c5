package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/timmy/stockcast/internal/domain"
	"github.com/timmy/stockcast/internal/risk"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored forecasts for a scope, most urgent first",
	Long: `List the forecast ledger for one depot.

Examples:
  # Everything in the north depot
  forecast list --scope north

  # Only items about to run out
  forecast list --scope north --tier critical`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().String("scope", "", "Depot to list (required)")
	listCmd.Flags().String("tier", "", "Only show one risk tier (critical, watch, safe)")
	listCmd.Flags().Bool("json", false, "Output as JSON")
	_ = listCmd.MarkFlagRequired("scope")
}

func runList(cmd *cobra.Command, _ []string) error {
	scope, _ := cmd.Flags().GetString("scope")
	tierFlag, _ := cmd.Flags().GetString("tier")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	var tier domain.RiskTier
	if tierFlag != "" {
		t, err := domain.ParseRiskTier(tierFlag)
		if err != nil {
			return err
		}
		tier = t
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	results, err := a.Forecasts.ListByScope(cmdContext(cmd), scope)
	if err != nil {
		return fmt.Errorf("list forecasts: %w", err)
	}
	summary := risk.Summarize(results)
	results = risk.Filter(results, tier)
	risk.Sort(results)

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"scope":   scope,
			"summary": summary,
			"results": results,
		})
	}

	if len(results) == 0 {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "No forecasts for scope %s\n", scope)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SKU\tITEM\tTIER\tETA\tREORDER\tSTATUS")
	for _, r := range results {
		eta := "-"
		if r.Insight.ETADays != nil {
			eta = strconv.Itoa(*r.Insight.ETADays)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.SKU, r.Label, r.Insight.RiskTier, eta, r.Insight.RecommendedReorder, r.Insight.Status)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "\n%d critical, %d watch, %d safe (%d total)\n",
		summary.Critical, summary.Watch, summary.Safe, summary.Total)
	return nil
}
