package janitor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"carelog-backend/internal/attachments"
	"carelog-backend/internal/auditreports"
	"carelog-backend/internal/bootstrap"
	"carelog-backend/internal/shared/metrics"
	"carelog-backend/internal/shared/telemetry"
	"carelog-backend/internal/staging"
)

// Job names a janitor run.
type Job string

const (
	// JobSweep removes attachments of updates that were never committed.
	JobSweep Job = "sweep"
	// JobReconcile deletes audit report blobs no asset references.
	JobReconcile Job = "reconcile"
)

// Jobs lists every runnable job.
var Jobs = []Job{JobSweep, JobReconcile}

// ErrUnknownJob indicates a trigger naming no known job.
type ErrUnknownJob struct {
	Name string
}

func (e ErrUnknownJob) Error() string { return "unknown janitor job: " + e.Name }

// ErrBootstrap indicates the shared dependencies could not be built.
type ErrBootstrap struct {
	Err error
}

func (e ErrBootstrap) Error() string {
	if e.Err == nil {
		return "bootstrap"
	}
	return "bootstrap: " + e.Err.Error()
}

func (e ErrBootstrap) Unwrap() error { return e.Err }

// ErrRun indicates a job failed as a whole after it started.
type ErrRun struct {
	Job   Job
	RunID string
	Err   error
}

func (e ErrRun) Error() string {
	if e.Err == nil {
		return "run " + string(e.Job)
	}
	return "run " + string(e.Job) + ": " + e.Err.Error()
}

func (e ErrRun) Unwrap() error { return e.Err }

// ParseJob normalizes a job name.
func ParseJob(raw string) (Job, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	for _, job := range Jobs {
		if string(job) == name {
			return job, nil
		}
	}
	return "", ErrUnknownJob{Name: raw}
}

// Report describes one finished run.
type Report struct {
	Job       Job
	RunID     string
	Duration  time.Duration
	Sweep     *attachments.SweepResult
	Reconcile *auditreports.ReconcileResult
	Purged    int
}

// AppProvider hands out the bootstrapped App; *bootstrap.Gate satisfies it.
type AppProvider interface {
	EnsureBootstrapped(ctx context.Context) (*bootstrap.App, error)
}

// Execute bootstraps on first use and runs job.
func Execute(ctx context.Context, apps AppProvider, job Job) (Report, error) {
	app, err := apps.EnsureBootstrapped(ctx)
	if err != nil {
		fields := telemetry.FieldsFrom(ctx)
		fields["job"] = string(job)
		fields["error"] = err.Error()
		telemetry.Error("janitor.bootstrap.failed", fields)
		return Report{Job: job}, ErrBootstrap{Err: err}
	}
	return Run(ctx, app, job)
}

// Run executes one job against app. The whole job waits for every item it touches.
func Run(ctx context.Context, app *bootstrap.App, job Job) (Report, error) {
	if app == nil {
		return Report{Job: job}, errors.New("janitor app not configured")
	}

	runID := uuid.NewString()
	ctx = telemetry.WithFields(ctx, map[string]any{"job": string(job), "run_id": runID})
	report := Report{Job: job, RunID: runID}
	start := time.Now()

	telemetry.Info("janitor.run.started", telemetry.FieldsFrom(ctx))

	var err error
	switch job {
	case JobSweep:
		err = runSweep(ctx, app, &report)
	case JobReconcile:
		err = runReconcile(ctx, app, &report)
	default:
		err = ErrUnknownJob{Name: string(job)}
	}

	report.Duration = time.Since(start)
	metrics.ObserveJobDurationMs(float64(report.Duration.Milliseconds()))

	if err != nil {
		fields := telemetry.FieldsFrom(ctx)
		fields["error"] = err.Error()
		fields["duration_ms"] = report.Duration.Milliseconds()
		telemetry.Error("janitor.run.failed", fields)
		return report, ErrRun{Job: job, RunID: runID, Err: err}
	}
	return report, nil
}

func runSweep(ctx context.Context, app *bootstrap.App, report *Report) error {
	if app.Sweeper == nil {
		metrics.IncSweepRunFailed()
		return errors.New("sweeper not configured")
	}
	result, err := app.Sweeper.Sweep(ctx)
	if err != nil {
		metrics.IncSweepRunFailed()
		return err
	}
	report.Sweep = &result
	metrics.ObserveSweep(metrics.SweepCounts{
		Candidates: result.Candidates,
		Removed:    result.Removed,
		Pending:    result.Pending,
		Skipped:    result.Skipped,
		Failed:     result.Failed,
	})

	if purger, ok := app.Staging.(staging.Purger); ok {
		purged, err := purger.PurgeExpired(ctx)
		if err != nil {
			fields := telemetry.FieldsFrom(ctx)
			fields["error"] = err.Error()
			telemetry.Warn("janitor.staging.purge_failed", fields)
		} else {
			report.Purged = purged
		}
	}

	fields := telemetry.FieldsFrom(ctx)
	fields["candidates"] = result.Candidates
	fields["removed"] = result.Removed
	fields["pending"] = result.Pending
	fields["skipped"] = result.Skipped
	fields["failed"] = result.Failed
	fields["purged"] = report.Purged
	telemetry.Info("janitor.sweep.completed", fields)
	return nil
}

func runReconcile(ctx context.Context, app *bootstrap.App, report *Report) error {
	if app.Reconciler == nil {
		metrics.IncReconcileRunFailed()
		return errors.New("reconciler not configured")
	}
	result, err := app.Reconciler.Reconcile(ctx, app.Config.AuditContainer)
	report.Reconcile = &result
	if err != nil {
		metrics.IncReconcileRunFailed()
		return err
	}
	metrics.ObserveReconcile(metrics.ReconcileCounts{
		Listed:   result.Listed,
		Retained: result.Retained,
		Deleted:  result.Deleted,
		Failed:   result.Failed,
	})

	fields := telemetry.FieldsFrom(ctx)
	fields["container"] = result.Container
	fields["listed"] = result.Listed
	fields["retained"] = result.Retained
	fields["surplus"] = result.Surplus
	fields["deleted"] = result.Deleted
	fields["failed"] = result.Failed
	fields["dry_run"] = result.DryRun
	telemetry.Info("janitor.reconcile.completed", fields)
	return nil
}

func withRequestID(ctx context.Context, requestID string) context.Context {
	if strings.TrimSpace(requestID) == "" {
		return ctx
	}
	return telemetry.WithFields(ctx, map[string]any{"request_id": requestID})
}
