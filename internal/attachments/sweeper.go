package attachments

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"carelog-backend/internal/shared/telemetry"
	"carelog-backend/internal/staging"
)

const defaultSweepConcurrency = 8

// Outcome is the settled state of one sweep candidate.
type Outcome string

const (
	// OutcomeRemoved means the removal strategy completed.
	OutcomeRemoved Outcome = "removed"
	// OutcomePending means the update is still staged and the attachment was kept.
	OutcomePending Outcome = "pending"
	// OutcomeSkipped means no strategy is registered for the attachment type, or
	// the row lacks the fields needed to locate what it owns.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed means the staging lookup or the removal failed; the next run retries.
	OutcomeFailed Outcome = "failed"
)

// CandidateResult records what a sweep did with one attachment.
type CandidateResult struct {
	Attachment Attachment
	Outcome    Outcome
	Err        error
}

// SweepResult summarizes a sweep run.
type SweepResult struct {
	Candidates int
	Removed    int
	Pending    int
	Skipped    int
	Failed     int
	Results    []CandidateResult
}

// CandidateSource lists attachments not referenced by a committed update.
type CandidateSource interface {
	ListUncommitted(ctx context.Context) ([]Attachment, error)
}

// StagingReader reads in-authoring updates.
type StagingReader interface {
	Get(ctx context.Context, collection, key string) (staging.Entry, error)
}

// Sweeper removes attachments whose update was never committed and whose staging entry expired.
type Sweeper struct {
	Candidates  CandidateSource
	Staging     StagingReader
	Collection  string
	Registry    *Registry
	Concurrency int
}

// Sweep evaluates every uncommitted attachment concurrently and waits for all of them.
// Only the candidate query can fail the run; per-attachment errors land in the result.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	if s.Candidates == nil || s.Staging == nil {
		return result, errors.New("sweeper not configured")
	}

	candidates, err := s.Candidates.ListUncommitted(ctx)
	if err != nil {
		return result, fmt.Errorf("list uncommitted attachments: %w", err)
	}
	result.Candidates = len(candidates)
	if len(candidates) == 0 {
		return result, nil
	}

	limit := s.Concurrency
	if limit <= 0 {
		limit = defaultSweepConcurrency
	}

	results := make([]CandidateResult, len(candidates))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, candidate := range candidates {
		g.Go(func() error {
			results[i] = s.evaluate(ctx, candidate)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		switch r.Outcome {
		case OutcomeRemoved:
			result.Removed++
		case OutcomePending:
			result.Pending++
		case OutcomeSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
	}
	result.Results = results
	return result, nil
}

func (s *Sweeper) evaluate(ctx context.Context, a Attachment) (res CandidateResult) {
	res = CandidateResult{Attachment: a}
	fields := telemetry.FieldsFrom(ctx)
	fields["attachment_id"] = a.ID
	fields["update_id"] = a.UpdateID
	fields["encounter_id"] = a.EncounterID
	fields["type"] = string(a.Type)

	defer func() {
		if rec := recover(); rec != nil {
			res.Outcome = OutcomeFailed
			res.Err = fmt.Errorf("removal panicked: %v", rec)
			fields["error"] = res.Err.Error()
			fields["stack"] = string(debug.Stack())
			telemetry.Error("sweep.candidate.panic", fields)
		}
	}()

	// A live staging entry always wins over deletion.
	_, err := s.Staging.Get(ctx, s.Collection, a.UpdateID)
	switch {
	case err == nil:
		res.Outcome = OutcomePending
		return res
	case !errors.Is(err, staging.ErrNotFound):
		res.Outcome = OutcomeFailed
		res.Err = fmt.Errorf("staging lookup: %w", err)
		fields["error"] = res.Err.Error()
		telemetry.Error("sweep.candidate.staging_failed", fields)
		return res
	}

	strategy, ok := s.Registry.Resolve(a.Type)
	if !ok {
		res.Outcome = OutcomeSkipped
		res.Err = ErrNoStrategy
		telemetry.Warn("sweep.candidate.no_strategy", fields)
		return res
	}

	err = strategy.Remove(ctx, a.Removal())
	if errors.Is(err, ErrInvalidRequest) {
		// Retrying cannot help until the row itself is repaired.
		res.Outcome = OutcomeSkipped
		res.Err = err
		fields["error"] = err.Error()
		telemetry.Warn("sweep.candidate.unreclaimable", fields)
		return res
	}
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		fields["error"] = err.Error()
		telemetry.Error("sweep.candidate.remove_failed", fields)
		return res
	}

	res.Outcome = OutcomeRemoved
	telemetry.Info("sweep.candidate.removed", fields)
	return res
}
