package service

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/timmy/stockcast/internal/domain"
	"github.com/timmy/stockcast/internal/ledger"
	"github.com/timmy/stockcast/internal/risk"
	"github.com/timmy/stockcast/internal/storage"
)

// Report is the archived record of one finished job.
type Report struct {
	Job         domain.ForecastJob      `json:"job"`
	Summary     risk.Summary            `json:"summary"`
	Results     []domain.ForecastResult `json:"results"`
	GeneratedAt time.Time               `json:"generated_at"`
}

// ReportArchiver writes a JSON report per finished job to object storage.
type ReportArchiver struct {
	store  storage.ObjectStorage
	ledger ledger.Ledger
	prefix string
	now    func() time.Time
}

var _ Archiver = (*ReportArchiver)(nil)

// NewReportArchiver creates a ReportArchiver writing under prefix.
func NewReportArchiver(store storage.ObjectStorage, l ledger.Ledger, prefix string) *ReportArchiver {
	return &ReportArchiver{store: store, ledger: l, prefix: prefix, now: time.Now}
}

// ReportKey returns the object key for a job's report.
func (a *ReportArchiver) ReportKey(scope, jobID string) string {
	return path.Join(a.prefix, scope, jobID+".json")
}

// Archive snapshots the scope's ledger in urgency order and uploads it with the job.
func (a *ReportArchiver) Archive(ctx context.Context, job domain.ForecastJob) error {
	results, err := a.ledger.ListByScope(ctx, job.Scope)
	if err != nil {
		return fmt.Errorf("failed to read ledger for %s: %w", job.Scope, err)
	}
	risk.Sort(results)

	report := Report{
		Job:         job,
		Summary:     risk.Summarize(results),
		Results:     results,
		GeneratedAt: a.now(),
	}
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	if err := a.store.Put(ctx, a.ReportKey(job.Scope, job.ID), body, "application/json"); err != nil {
		return err
	}
	return nil
}

// ListReports returns the archived reports for scope.
func (a *ReportArchiver) ListReports(ctx context.Context, scope string) ([]storage.ObjectInfo, error) {
	return a.store.List(ctx, path.Join(a.prefix, scope)+"/")
}

// GetReport loads one archived report.
func (a *ReportArchiver) GetReport(ctx context.Context, scope, jobID string) (*Report, error) {
	body, err := a.store.Get(ctx, a.ReportKey(scope, jobID))
	if err != nil {
		return nil, err
	}
	var report Report
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", jobID, err)
	}
	return &report, nil
}
