package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/stockcast/internal/broadcast"
	"github.com/timmy/stockcast/internal/domain"
	"github.com/timmy/stockcast/internal/ledger"
	"github.com/timmy/stockcast/internal/logger"
	"github.com/timmy/stockcast/internal/repository"
	"github.com/timmy/stockcast/internal/risk"
	"github.com/timmy/stockcast/internal/source"
)

const (
	defaultItemTimeout    = 20 * time.Second
	defaultArchiveTimeout = 30 * time.Second
	persistTimeout        = 5 * time.Second
	maxErrorLogLines      = 20
)

// JobStore keeps job history beyond the in-memory retention window.
type JobStore interface {
	Save(ctx context.Context, job *domain.ForecastJob) error
	Get(ctx context.Context, id string) (*domain.ForecastJob, error)
	ListByScope(ctx context.Context, scope string, limit int) ([]domain.ForecastJob, error)
}

// Archiver exports a job once it reaches a terminal state.
type Archiver interface {
	Archive(ctx context.Context, job domain.ForecastJob) error
}

// OrchestratorOptions configures an Orchestrator. Zero values get defaults;
// Items, Jobs and Archiver are optional.
type OrchestratorOptions struct {
	// ItemTimeout bounds each compute call.
	ItemTimeout time.Duration
	// FailureThreshold is the number of consecutive failed items tolerated.
	// A longer streak fails the job while items remain. Zero disables the check.
	FailureThreshold int
	// Retention is how long a finished job stays queryable in memory.
	// Zero keeps it until a new job for the same scope supersedes it.
	Retention time.Duration
	Defaults  domain.ParamDefaults

	Classifier     *risk.Classifier
	Items          source.ItemSource
	Jobs           JobStore
	Archiver       Archiver
	ArchiveTimeout time.Duration
	Now            func() time.Time
}

type jobRun struct {
	id    string
	scope string

	mu         sync.Mutex
	job        domain.ForecastJob
	errs       []string
	evictTimer *time.Timer

	cancelRequested atomic.Bool
	done            chan struct{}
}

func (r *jobRun) snapshot() domain.ForecastJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.job
}

func (r *jobRun) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

func (r *jobRun) recordErrorLocked(msg string) {
	if len(r.errs) >= maxErrorLogLines {
		return
	}
	r.errs = append(r.errs, msg)
	r.job.ErrorLog = strings.Join(r.errs, "\n")
}

// Orchestrator runs bulk forecast jobs. Each job is one sequential worker;
// jobs for different scopes run concurrently, at most one per scope.
type Orchestrator struct {
	engine Computer
	ledger ledger.Ledger
	bus    *broadcast.Broadcaster
	opts   OrchestratorOptions
	logger *logger.Logger
	locks  *scopeLocks

	mu      sync.Mutex
	runs    map[string]*jobRun
	latest  map[string]string // scope -> most recent job id
	closing bool

	wg         sync.WaitGroup
	baseCtx    context.Context
	baseCancel context.CancelFunc
}

// NewOrchestrator creates an Orchestrator.
// Parameters:
//   - engine: compute dependency called once per item.
//   - l: ledger receiving successful results.
//   - bus: progress broadcaster; nil creates a private one.
//   - opts: timeouts, thresholds and optional collaborators.
//   - log: base logger; nil uses the default logger.
//
// Returns:
//   - *Orchestrator: ready to accept jobs.
func NewOrchestrator(engine Computer, l ledger.Ledger, bus *broadcast.Broadcaster, opts OrchestratorOptions, log *logger.Logger) *Orchestrator {
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = defaultItemTimeout
	}
	if opts.FailureThreshold < 0 {
		opts.FailureThreshold = 0
	}
	if opts.Defaults == (domain.ParamDefaults{}) {
		opts.Defaults = domain.DefaultParamDefaults()
	}
	if opts.Classifier == nil {
		opts.Classifier = risk.NewClassifier(risk.DefaultThresholds())
	}
	if opts.ArchiveTimeout <= 0 {
		opts.ArchiveTimeout = defaultArchiveTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if bus == nil {
		bus = broadcast.New(broadcast.Options{})
	}
	if log == nil {
		log = logger.GetDefault()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		engine:     engine,
		ledger:     l,
		bus:        bus,
		opts:       opts,
		logger:     log.WithField(logger.FieldComponent, "orchestrator"),
		locks:      newScopeLocks(),
		runs:       map[string]*jobRun{},
		latest:     map[string]string{},
		baseCtx:    ctx,
		baseCancel: cancel,
	}
}

// StartScope resolves scope through the configured item source and starts a job.
func (o *Orchestrator) StartScope(ctx context.Context, scope string, overrides *domain.ParamOverrides) (string, error) {
	if o.opts.Items == nil {
		return "", ErrNoItemSource
	}
	scope = strings.TrimSpace(scope)
	if _, busy := o.locks.holder(scope); busy {
		return "", fmt.Errorf("%w: %s", ErrScopeBusy, scope)
	}
	items, err := o.opts.Items.ListByScope(ctx, scope)
	if err != nil {
		return "", fmt.Errorf("failed to load items for %s: %w", scope, err)
	}
	return o.Start(ctx, scope, items, overrides)
}

// Start accepts a bulk job over items and returns its id before any item is
// processed. The progress channel exists, holding a Running event with
// current=0, by the time Start returns.
// Parameters:
//   - ctx: request context; the job itself outlives it.
//   - scope: item set identifier, at most one unfinished job per scope.
//   - items: items in processing order.
//   - overrides: optional parameter overrides applied to every item.
//
// Returns:
//   - string: the job id used to subscribe, query and cancel.
//   - error: ErrScopeBusy, ErrShuttingDown or domain.ErrInvalidParams.
func (o *Orchestrator) Start(ctx context.Context, scope string, items []domain.Item, overrides *domain.ParamOverrides) (string, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return "", fmt.Errorf("%w: scope is required", domain.ErrInvalidParams)
	}
	if err := overrides.Validate(); err != nil {
		return "", err
	}

	jobID := uuid.NewString()
	if !o.locks.tryAcquire(scope, jobID) {
		return "", fmt.Errorf("%w: %s", ErrScopeBusy, scope)
	}
	if err := o.bus.CreateChannel(jobID); err != nil {
		o.locks.release(scope, jobID)
		return "", fmt.Errorf("failed to create progress channel: %w", err)
	}

	now := o.opts.Now()
	run := &jobRun{
		id:    jobID,
		scope: scope,
		job: domain.ForecastJob{
			ID:        jobID,
			Scope:     scope,
			Status:    domain.JobStatusPending,
			Total:     len(items),
			CreatedAt: now,
			UpdatedAt: now,
		},
		done: make(chan struct{}),
	}

	o.mu.Lock()
	if o.closing {
		o.mu.Unlock()
		o.locks.release(scope, jobID)
		o.bus.Remove(jobID)
		return "", ErrShuttingDown
	}
	prevID, hadPrev := o.latest[scope]
	o.runs[jobID] = run
	o.latest[scope] = jobID
	o.wg.Add(1)
	o.mu.Unlock()

	if hadPrev {
		o.supersede(prevID)
	}

	o.persist(run.job)

	run.mu.Lock()
	o.transitionLocked(run, domain.JobStatusRunning)
	job := run.job
	run.mu.Unlock()
	o.persist(job)
	o.publish(jobID, job.Progress(job.UpdatedAt))

	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldJobID: jobID,
		logger.FieldScope: scope,
		logger.FieldCount: len(items),
	}).Info("Forecast job started")

	go o.run(run, append([]domain.Item(nil), items...), overrides)
	return jobID, nil
}

func (o *Orchestrator) run(r *jobRun, items []domain.Item, overrides *domain.ParamOverrides) {
	defer o.wg.Done()

	ctx := o.logger.WithContext(o.baseCtx)
	ctx = logger.SetScope(logger.SetJobID(ctx, r.id), r.scope)
	started := time.Now()
	consecutive := 0

	for i, item := range items {
		if r.cancelRequested.Load() || o.baseCtx.Err() != nil {
			o.finish(ctx, r, domain.JobStatusCancelled, "", started)
			return
		}

		params := domain.BuildParams(item, o.opts.Defaults, overrides)
		err := o.processItem(ctx, r, item, params)

		r.mu.Lock()
		r.job.Current++
		r.job.LastItemLabel = itemLabel(item)
		if err != nil {
			r.job.FailedCount++
			consecutive++
			r.recordErrorLocked(fmt.Sprintf("%s: %v", item.SKU, err))
		} else {
			consecutive = 0
		}
		r.job.UpdatedAt = o.opts.Now()
		ev := r.job.Progress(r.job.UpdatedAt)
		r.mu.Unlock()

		if err != nil {
			logger.FromContext(ctx).WithField(logger.FieldSKU, item.SKU).WithError(err).Warn("Item forecast failed")
		}
		o.publish(r.id, ev)

		// Exhausting the list always completes, whatever the trailing streak.
		if o.opts.FailureThreshold > 0 && consecutive > o.opts.FailureThreshold && i < len(items)-1 {
			o.finish(ctx, r, domain.JobStatusFailed,
				fmt.Sprintf("aborted after %d consecutive compute failures", consecutive), started)
			return
		}
	}

	if o.baseCtx.Err() != nil {
		o.finish(ctx, r, domain.JobStatusCancelled, "", started)
		return
	}
	o.finish(ctx, r, domain.JobStatusCompleted, "", started)
}

func (o *Orchestrator) processItem(ctx context.Context, r *jobRun, item domain.Item, params domain.InputParams) error {
	res, err := o.compute(ctx, item, params)
	if err != nil {
		return err
	}

	res.SKU = item.SKU
	if res.Label == "" {
		res.Label = itemLabel(item)
	}
	res.Scope = r.scope
	res.Params = params
	res.JobID = r.id
	res.ComputedAt = o.opts.Now()
	res = o.opts.Classifier.Apply(res, params.CurrentStock)

	if err := o.ledger.Upsert(ctx, res); err != nil {
		return fmt.Errorf("failed to store forecast: %w", err)
	}
	return nil
}

// compute calls the engine under the per-item deadline. The deadline holds
// even when the engine ignores its context; the abandoned call finishes in
// the background and its result is discarded.
func (o *Orchestrator) compute(ctx context.Context, item domain.Item, params domain.InputParams) (*domain.ForecastResult, error) {
	itemCtx, cancel := context.WithTimeout(ctx, o.opts.ItemTimeout)
	defer cancel()

	type outcome struct {
		res *domain.ForecastResult
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		res, err := o.engine.Compute(itemCtx, item, params)
		ch <- outcome{res: res, err: err}
	}()

	select {
	case out := <-ch:
		if out.err != nil {
			return nil, out.err
		}
		if out.res == nil {
			return nil, fmt.Errorf("%w: empty result", ErrCompute)
		}
		return out.res, nil
	case <-itemCtx.Done():
		if errors.Is(itemCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrComputeTimeout, o.opts.ItemTimeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrCompute, itemCtx.Err())
	}
}

func (o *Orchestrator) finish(ctx context.Context, r *jobRun, status domain.JobStatus, reason string, started time.Time) {
	r.mu.Lock()
	// A cancel accepted while the last item was in flight still wins.
	if status == domain.JobStatusCompleted && r.cancelRequested.Load() {
		status = domain.JobStatusCancelled
	}
	o.transitionLocked(r, status)
	if reason != "" {
		r.recordErrorLocked(reason)
	}
	job := r.job
	r.mu.Unlock()

	o.persist(job)
	// Release before publishing so an observer reacting to the terminal
	// event can immediately start the next job for the scope.
	o.locks.release(r.scope, r.id)
	o.publish(r.id, job.Progress(job.UpdatedAt))
	close(r.done)

	entry := logger.With(logger.Fields{logger.FieldFailed: job.FailedCount}).
		WithCount(job.Current).
		WithDuration(time.Since(started).Milliseconds()).
		WithStatus(string(job.Status))
	if job.Status == domain.JobStatusFailed {
		entry.Error(ctx, "Forecast job failed: %s", reason)
	} else {
		entry.Info(ctx, "Forecast job %s: %d/%d items, %d failed", job.Status, job.Current, job.Total, job.FailedCount)
	}

	if o.opts.Archiver != nil {
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.ArchiveTimeout)
		if err := o.opts.Archiver.Archive(actx, job); err != nil {
			logger.FromContext(ctx).WithError(err).Warn("Failed to archive job report")
		}
		cancel()
	}

	o.scheduleEviction(r)
}

func (o *Orchestrator) transitionLocked(r *jobRun, to domain.JobStatus) {
	if err := domain.ValidateTransition(r.job.Status, to); err != nil {
		o.logger.WithField(logger.FieldJobID, r.id).WithError(err).Error("Rejected job transition")
		return
	}
	now := o.opts.Now()
	r.job.Status = to
	r.job.UpdatedAt = now
	switch {
	case to == domain.JobStatusRunning:
		r.job.StartedAt = &now
	case to.IsTerminal():
		r.job.CompletedAt = &now
	}
}

func (o *Orchestrator) publish(jobID string, ev domain.ProgressEvent) {
	if err := o.bus.Publish(jobID, ev); err != nil {
		o.logger.WithField(logger.FieldJobID, jobID).WithError(err).Debug("Progress event not delivered")
	}
}

func (o *Orchestrator) persist(job domain.ForecastJob) {
	if o.opts.Jobs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := o.opts.Jobs.Save(ctx, &job); err != nil {
		o.logger.WithField(logger.FieldJobID, job.ID).WithError(err).Warn("Failed to persist job")
	}
}

func (o *Orchestrator) scheduleEviction(r *jobRun) {
	if o.opts.Retention <= 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	// Already superseded.
	if o.runs[r.id] != r {
		return
	}
	r.mu.Lock()
	r.evictTimer = time.AfterFunc(o.opts.Retention, func() { o.evict(r.id) })
	r.mu.Unlock()
}

// supersede drops the previous job for a scope once a new job takes it.
// The predecessor has already released the scope, so at most it is still
// publishing its terminal event; wait for that before removing its channel.
func (o *Orchestrator) supersede(prevID string) {
	o.mu.Lock()
	r, ok := o.runs[prevID]
	o.mu.Unlock()
	if !ok {
		return
	}
	<-r.done
	o.evict(prevID)
}

func (o *Orchestrator) evict(jobID string) {
	o.mu.Lock()
	r, ok := o.runs[jobID]
	if ok {
		delete(o.runs, jobID)
		if o.latest[r.scope] == jobID {
			delete(o.latest, r.scope)
		}
	}
	o.mu.Unlock()
	if !ok {
		return
	}

	r.mu.Lock()
	if r.evictTimer != nil {
		r.evictTimer.Stop()
	}
	r.mu.Unlock()
	o.bus.Remove(jobID)
}

// Cancel asks a job to stop at the next item boundary. The in-flight item
// always completes.
func (o *Orchestrator) Cancel(jobID string) error {
	o.mu.Lock()
	r, ok := o.runs[jobID]
	o.mu.Unlock()
	if !ok {
		return ErrJobNotFound
	}
	r.mu.Lock()
	if r.job.Status.IsTerminal() {
		r.mu.Unlock()
		return ErrJobFinished
	}
	r.cancelRequested.Store(true)
	r.mu.Unlock()
	o.logger.WithField(logger.FieldJobID, jobID).Info("Cancellation requested")
	return nil
}

// Job returns a snapshot of the job. Jobs evicted from memory are looked up
// in the job store when one is configured.
func (o *Orchestrator) Job(ctx context.Context, jobID string) (domain.ForecastJob, error) {
	o.mu.Lock()
	r, ok := o.runs[jobID]
	o.mu.Unlock()
	if ok {
		return r.snapshot(), nil
	}
	if o.opts.Jobs == nil {
		return domain.ForecastJob{}, ErrJobNotFound
	}
	job, err := o.opts.Jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return domain.ForecastJob{}, ErrJobNotFound
		}
		return domain.ForecastJob{}, err
	}
	return *job, nil
}

// Done returns a channel closed once the job's terminal event is published.
func (o *Orchestrator) Done(jobID string) (<-chan struct{}, error) {
	o.mu.Lock()
	r, ok := o.runs[jobID]
	o.mu.Unlock()
	if !ok {
		return nil, ErrJobNotFound
	}
	return r.done, nil
}

// Subscribe opens a progress stream for a job that is still in memory.
func (o *Orchestrator) Subscribe(jobID string) (*broadcast.Subscription, error) {
	sub, err := o.bus.Subscribe(jobID)
	if errors.Is(err, broadcast.ErrUnknownJob) {
		return nil, ErrJobNotFound
	}
	return sub, err
}

// ActiveJob returns the unfinished job holding scope, if any.
func (o *Orchestrator) ActiveJob(scope string) (domain.ForecastJob, bool) {
	jobID, ok := o.locks.holder(scope)
	if !ok {
		return domain.ForecastJob{}, false
	}
	o.mu.Lock()
	r, ok := o.runs[jobID]
	o.mu.Unlock()
	if !ok {
		return domain.ForecastJob{}, false
	}
	return r.snapshot(), true
}

// ActiveJobs returns every unfinished job.
func (o *Orchestrator) ActiveJobs() []domain.ForecastJob {
	var out []domain.ForecastJob
	for scope := range o.locks.held() {
		if job, ok := o.ActiveJob(scope); ok {
			out = append(out, job)
		}
	}
	return out
}

// History lists recent jobs for scope, newest first.
func (o *Orchestrator) History(ctx context.Context, scope string, limit int) ([]domain.ForecastJob, error) {
	if o.opts.Jobs != nil {
		return o.opts.Jobs.ListByScope(ctx, scope, limit)
	}

	o.mu.Lock()
	var out []domain.ForecastJob
	for _, r := range o.runs {
		if r.scope == scope {
			out = append(out, r.snapshot())
		}
	}
	o.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Shutdown stops accepting jobs, asks running jobs to cancel at their next
// item boundary and waits for them. When ctx expires first, in-flight compute
// calls are abandoned and ctx.Err() is returned.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closing = true
	runs := make([]*jobRun, 0, len(o.runs))
	for _, r := range o.runs {
		runs = append(runs, r)
	}
	o.mu.Unlock()

	for _, r := range runs {
		if !r.finished() {
			r.cancelRequested.Store(true)
		}
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.baseCancel()
		o.stopTimers()
		return nil
	case <-ctx.Done():
		o.baseCancel()
		return ctx.Err()
	}
}

func (o *Orchestrator) stopTimers() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, r := range o.runs {
		r.mu.Lock()
		if r.evictTimer != nil {
			r.evictTimer.Stop()
		}
		r.mu.Unlock()
	}
}
