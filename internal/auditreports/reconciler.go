package auditreports

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"carelog-backend/internal/shared/storage/blob"
	"carelog-backend/internal/shared/telemetry"
)

const defaultReconcileConcurrency = 4

// ReconcileResult summarizes one reconcile run of a container.
type ReconcileResult struct {
	Container   string
	Listed      int
	Retained    int
	Surplus     int
	Deleted     int
	Failed      int
	DryRun      bool
	FailedNames []string
}

// Reconciler deletes blobs in an audit report container that no asset references.
type Reconciler struct {
	Assets      Repo
	Blobs       blob.Store
	Concurrency int
	DryRun      bool
}

// Reconcile diffs the container listing against the retained set and deletes the surplus.
//
// The retained set is loaded before anything is listed; if it cannot be loaded the run
// aborts without deleting. Deletions run on a bounded pool fed while the listing is
// consumed, so only one page of names is held at a time. A failed deletion is recorded
// and does not stop the others.
func (r *Reconciler) Reconcile(ctx context.Context, container string) (ReconcileResult, error) {
	result := ReconcileResult{Container: container, DryRun: r.DryRun}
	if r.Assets == nil || r.Blobs == nil {
		return result, errors.New("reconciler not configured")
	}

	assets, err := r.Assets.ListAssets(ctx)
	if err != nil {
		return result, fmt.Errorf("list audit report assets: %w", err)
	}
	retained := RetainedNames(assets)

	limit := r.Concurrency
	if limit <= 0 {
		limit = defaultReconcileConcurrency
	}

	var (
		mu       sync.Mutex
		g        errgroup.Group
		listErr  error
		baseLogs = telemetry.FieldsFrom(ctx)
	)
	g.SetLimit(limit)

	for b, err := range r.Blobs.List(ctx, container) {
		if err != nil {
			listErr = err
			break
		}
		result.Listed++
		if _, keep := retained[b.Name]; keep {
			result.Retained++
			continue
		}
		result.Surplus++
		if r.DryRun {
			telemetry.Info("reconcile.blob.would_delete", withBlob(baseLogs, container, b.Name))
			continue
		}

		name := b.Name
		g.Go(func() error {
			delErr := r.Blobs.Delete(ctx, container, name)
			mu.Lock()
			defer mu.Unlock()
			if delErr != nil {
				result.Failed++
				result.FailedNames = append(result.FailedNames, name)
				fields := withBlob(baseLogs, container, name)
				fields["error"] = delErr.Error()
				telemetry.Error("reconcile.blob.delete_failed", fields)
				return nil
			}
			result.Deleted++
			telemetry.Info("reconcile.blob.deleted", withBlob(baseLogs, container, name))
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(result.FailedNames)

	if listErr != nil {
		return result, fmt.Errorf("list container %s: %w", container, listErr)
	}
	return result, nil
}

func withBlob(base map[string]any, container, name string) map[string]any {
	fields := make(map[string]any, len(base)+2)
	for k, v := range base {
		fields[k] = v
	}
	fields["container"] = container
	fields["blob"] = name
	return fields
}
