package service

import "errors"

var (
	// ErrScopeBusy is returned by Start when a job for the scope has not finished yet.
	ErrScopeBusy = errors.New("a forecast job is already running for this scope")

	// ErrJobNotFound is returned for unknown or evicted job ids.
	ErrJobNotFound = errors.New("forecast job not found")

	// ErrJobFinished is returned when cancelling a job that already reached a terminal state.
	ErrJobFinished = errors.New("forecast job already finished")

	// ErrShuttingDown is returned by Start once Shutdown has begun.
	ErrShuttingDown = errors.New("orchestrator is shutting down")

	// ErrNoItemSource is returned by StartScope when no item source is configured.
	ErrNoItemSource = errors.New("no item source configured")

	// ErrComputeTimeout marks a compute call that exceeded its per-item deadline.
	ErrComputeTimeout = errors.New("forecast compute timed out")

	// ErrCompute marks any other compute failure: transport, non-2xx or a rejected request.
	ErrCompute = errors.New("forecast compute failed")
)
