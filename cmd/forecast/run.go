package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/timmy/stockcast/internal/broadcast"
	"github.com/timmy/stockcast/internal/domain"
	"github.com/timmy/stockcast/internal/service"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Forecast every item in a scope and follow its progress",
	Long: `Start a bulk forecast job for one depot and print progress until it ends.

Interrupting the command (Ctrl-C) cancels the job after the item in flight.
The exit status is non-zero when the job fails or is cancelled.

Examples:
  # Forecast the north depot with configured defaults
  forecast run --scope north

  # 60 day horizon, 14 day lead time, JSON progress lines
  forecast run --scope north --days 60 --lead-time 14 --json`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("scope", "", "Depot to forecast (required)")
	runCmd.Flags().Int("days", 0, "Forecast horizon in days (0 = config default)")
	runCmd.Flags().Int("lead-time", 0, "Supplier lead time in days (0 = item or config default)")
	runCmd.Flags().Int("reorder-level", 0, "Reorder level (0 = item or config default)")
	runCmd.Flags().Bool("json", false, "Print progress events as JSON lines")
	_ = runCmd.MarkFlagRequired("scope")
}

func runRun(cmd *cobra.Command, _ []string) error {
	scope, _ := cmd.Flags().GetString("scope")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	overrides, err := overridesFromFlags(cmd)
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := cmdContext(cmd)
	interrupt, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	jobID, err := a.Orchestrator.StartScope(ctx, scope, overrides)
	if err != nil {
		return fmt.Errorf("start job: %w", err)
	}
	sub, err := a.Orchestrator.Subscribe(jobID)
	if err != nil {
		return fmt.Errorf("subscribe to job %s: %w", jobID, err)
	}
	defer sub.Close()

	if !jsonOutput {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Job %s started for scope %s\n", jobID, scope)
	}

	last := follow(interrupt, sub, cmd.OutOrStdout(), jsonOutput, func() {
		if err := a.Orchestrator.Cancel(jobID); err != nil && !errors.Is(err, service.ErrJobFinished) {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "cancel: %v\n", err)
			return
		}
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Cancelling after the current item...")
	})

	job, err := a.Orchestrator.Job(ctx, jobID)
	if err != nil {
		return fmt.Errorf("read job %s: %w", jobID, err)
	}

	if !jsonOutput {
		if counts, err := a.Forecasts.CountByTier(ctx, scope); err == nil {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Ledger for %s: %d critical, %d watch, %d safe\n", scope,
				counts[domain.RiskCritical], counts[domain.RiskWatch], counts[domain.RiskSafe])
		}
	}

	switch last.Phase {
	case domain.PhaseCompleted:
		return nil
	case domain.PhaseFailed, domain.PhaseCancelled:
		if job.ErrorLog != "" {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), job.ErrorLog)
		}
		return fmt.Errorf("job %s %s after %d/%d items (%d failed)",
			jobID, last.Phase, last.Current, last.Total, last.FailedCount)
	default:
		return fmt.Errorf("job %s: progress stream ended without a final event", jobID)
	}
}

// follow prints events until the stream closes and returns the last one.
// onInterrupt runs once when interrupt is done.
func follow(interrupt context.Context, sub *broadcast.Subscription, out io.Writer, jsonOutput bool, onInterrupt func()) domain.ProgressEvent {
	var last domain.ProgressEvent
	enc := json.NewEncoder(out)
	stop := interrupt.Done()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return last
			}
			last = ev
			if jsonOutput {
				_ = enc.Encode(ev)
				continue
			}
			_, _ = fmt.Fprintf(out, "[%d/%d] %-9s failed=%d %s\n",
				ev.Current, ev.Total, ev.Phase, ev.FailedCount, ev.LastItemLabel)
		case <-stop:
			stop = nil
			onInterrupt()
		}
	}
}

func overridesFromFlags(cmd *cobra.Command) (*domain.ParamOverrides, error) {
	var o domain.ParamOverrides
	set := false
	for flag, dst := range map[string]**int{
		"days":          &o.ForecastDays,
		"lead-time":     &o.LeadTimeDays,
		"reorder-level": &o.ReorderLevel,
	} {
		if !cmd.Flags().Changed(flag) {
			continue
		}
		v, _ := cmd.Flags().GetInt(flag)
		*dst = &v
		set = true
	}
	if !set {
		return nil, nil
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return &o, nil
}
