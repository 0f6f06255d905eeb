package auditreports

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"carelog-backend/internal/shared/storage/blob"
	"carelog-backend/internal/shared/storage/blob/memory"
)

const container = "audit-reports"

func seed(t *testing.T, store *memory.Store, names ...string) {
	t.Helper()
	for _, name := range names {
		_, err := store.Put(context.Background(), container, name, "application/pdf", strings.NewReader(name))
		require.NoError(t, err)
	}
}

func reportAsset(files ...File) Asset {
	return Asset{UserID: "auditor-1", TenantID: "tenant-1", Name: "Q1 audit", Metadata: files}
}

func TestReconcileDeletesOnlySurplus(t *testing.T) {
	blobs := memory.New()
	seed(t, blobs, "report_2021.pdf", "stale.pdf")
	repo := NewMemoryRepo(reportAsset(File{URL: "https://blob/report_2021.pdf", Filename: "report_2021.pdf"}))

	rec := &Reconciler{Assets: repo, Blobs: blobs}
	result, err := rec.Reconcile(context.Background(), container)

	require.NoError(t, err)
	require.Equal(t, []string{"report_2021.pdf"}, blobs.Names(container))
	require.Equal(t, 1, blobs.DeleteCalls(container, "stale.pdf"))
	require.Zero(t, blobs.DeleteCalls(container, "report_2021.pdf"))
	require.Equal(t, ReconcileResult{Container: container, Listed: 2, Retained: 1, Surplus: 1, Deleted: 1}, result)
}

func TestReconcileRetainsEveryFileOfAnAsset(t *testing.T) {
	blobs := memory.New()
	seed(t, blobs, "tenant-1/q1.pdf", "q1-summary.csv", "orphan.csv")
	repo := NewMemoryRepo(reportAsset(
		File{FilePath: "tenant-1/q1.pdf", Filename: "q1.pdf"},
		File{Filename: "q1-summary.csv"},
	))

	rec := &Reconciler{Assets: repo, Blobs: blobs, Concurrency: 2}
	result, err := rec.Reconcile(context.Background(), container)

	require.NoError(t, err)
	require.Equal(t, []string{"q1-summary.csv", "tenant-1/q1.pdf"}, blobs.Names(container))
	require.Equal(t, 1, result.Deleted)
}

func TestReconcileIsIdempotent(t *testing.T) {
	blobs := memory.New()
	seed(t, blobs, "keep.pdf", "a.pdf", "b.pdf")
	rec := &Reconciler{Assets: NewMemoryRepo(reportAsset(File{Filename: "keep.pdf"})), Blobs: blobs}

	first, err := rec.Reconcile(context.Background(), container)
	require.NoError(t, err)
	require.Equal(t, 2, first.Deleted)

	second, err := rec.Reconcile(context.Background(), container)
	require.NoError(t, err)
	require.Zero(t, second.Surplus)
	require.Equal(t, 1, blobs.DeleteCalls(container, "a.pdf"))
	require.Equal(t, []string{"keep.pdf"}, blobs.Names(container))
}

func TestReconcileIsolatesDeleteFailures(t *testing.T) {
	blobs := memory.New()
	seed(t, blobs, "a.pdf", "b.pdf", "c.pdf")
	blobs.FailDelete(container, "b.pdf", errors.New("access denied"))

	rec := &Reconciler{Assets: NewMemoryRepo(), Blobs: blobs}
	result, err := rec.Reconcile(context.Background(), container)

	require.NoError(t, err)
	require.Equal(t, 2, result.Deleted)
	require.Equal(t, 1, result.Failed)
	require.Equal(t, []string{"b.pdf"}, result.FailedNames)
	require.Equal(t, []string{"b.pdf"}, blobs.Names(container))
}

type failingAssets struct{ err error }

func (f failingAssets) ListAssets(ctx context.Context) ([]Asset, error) { return nil, f.err }

func TestReconcileAbortsWithoutRetainedSet(t *testing.T) {
	blobs := memory.New()
	seed(t, blobs, "report_2021.pdf")
	boom := errors.New("db down")

	rec := &Reconciler{Assets: failingAssets{err: boom}, Blobs: blobs}
	_, err := rec.Reconcile(context.Background(), container)

	require.ErrorIs(t, err, boom)
	require.Equal(t, []string{"report_2021.pdf"}, blobs.Names(container))
}

func TestReconcileDryRunDeletesNothing(t *testing.T) {
	blobs := memory.New()
	seed(t, blobs, "stale.pdf")

	rec := &Reconciler{Assets: NewMemoryRepo(), Blobs: blobs, DryRun: true}
	result, err := rec.Reconcile(context.Background(), container)

	require.NoError(t, err)
	require.True(t, result.DryRun)
	require.Equal(t, 1, result.Surplus)
	require.Zero(t, result.Deleted)
	require.Zero(t, blobs.DeleteCalls(container, "stale.pdf"))
}

type brokenListing struct {
	*memory.Store
	after int
	err   error
}

func (b brokenListing) List(ctx context.Context, c string) iter.Seq2[blob.Blob, error] {
	return func(yield func(blob.Blob, error) bool) {
		n := 0
		for item, err := range b.Store.List(ctx, c) {
			if n == b.after {
				yield(blob.Blob{}, b.err)
				return
			}
			if !yield(item, err) {
				return
			}
			n++
		}
	}
}

func TestReconcileReportsListingFailureAfterPartialProgress(t *testing.T) {
	store := memory.New()
	seed(t, store, "a.pdf", "b.pdf", "c.pdf")
	boom := errors.New("list throttled")

	rec := &Reconciler{Assets: NewMemoryRepo(), Blobs: brokenListing{Store: store, after: 1, err: boom}}
	result, err := rec.Reconcile(context.Background(), container)

	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, result.Deleted)
	require.Equal(t, []string{"b.pdf", "c.pdf"}, store.Names(container))
}

func TestRetainedNames(t *testing.T) {
	got := RetainedNames([]Asset{
		reportAsset(File{Filename: "a.pdf", FilePath: "t/a.pdf"}),
		reportAsset(File{URL: "https://only-url"}),
		reportAsset(File{Filename: "a.pdf"}),
	})
	require.Equal(t, map[string]struct{}{"a.pdf": {}, "t/a.pdf": {}}, got)
}
