package janitor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"carelog-backend/internal/attachments"
	"carelog-backend/internal/auditreports"
	"carelog-backend/internal/bootstrap"
	"carelog-backend/internal/shared/config"
	"carelog-backend/internal/shared/storage/blob/memory"
	"carelog-backend/internal/shared/telemetry"
	"carelog-backend/internal/staging"
)

type fixture struct {
	app     *bootstrap.App
	repo    *attachments.MemoryRepo
	assets  *auditreports.MemoryRepo
	blobs   *memory.Store
	staging *staging.MemoryStore
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:   attachments.NewMemoryRepo(),
		assets: auditreports.NewMemoryRepo(),
		blobs:  memory.New(),
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.staging = staging.NewMemoryStoreWithClock(func() time.Time { return f.now })

	cfg := config.Config{StagingCollection: "updates", MediaContainer: "media", AuditContainer: "audit-reports"}
	registry := attachments.DefaultRegistry(f.blobs, cfg.MediaContainer, f.repo)
	f.app = &bootstrap.App{
		Config:      cfg,
		Blobs:       f.blobs,
		Staging:     f.staging,
		Attachments: f.repo,
		AuditAssets: f.assets,
		Registry:    registry,
		Sweeper: &attachments.Sweeper{
			Candidates: f.repo,
			Staging:    f.staging,
			Collection: cfg.StagingCollection,
			Registry:   registry,
		},
		Reconciler: &auditreports.Reconciler{Assets: f.assets, Blobs: f.blobs},
	}
	return f
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := telemetry.SetOutput(&buf)
	t.Cleanup(func() { telemetry.SetOutput(prev) })
	return &buf
}

func TestParseJob(t *testing.T) {
	cases := map[string]Job{"sweep": JobSweep, " Reconcile ": JobReconcile}
	for raw, want := range cases {
		got, err := ParseJob(raw)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := ParseJob("vacuum")
	var unknown ErrUnknownJob
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "vacuum", unknown.Name)
}

func TestRunSweepRemovesExpiredAndPurgesStaging(t *testing.T) {
	f := newFixture(t)
	logs := captureLogs(t)
	ctx := context.Background()

	f.repo.Add(attachments.Attachment{ID: 1, UpdateID: "live", EncounterID: 9, Type: attachments.TypeText})
	f.repo.Add(attachments.Attachment{ID: 2, UpdateID: "gone", EncounterID: 9, Type: attachments.TypeText})
	require.NoError(t, f.staging.Set(ctx, "updates", 3600, "live", staging.Entry{EncounterID: 9}))
	require.NoError(t, f.staging.Set(ctx, "updates", 60, "gone", staging.Entry{EncounterID: 9}))
	f.now = f.now.Add(10 * time.Minute)

	report, err := Run(ctx, f.app, JobSweep)

	require.NoError(t, err)
	require.NotEmpty(t, report.RunID)
	require.Equal(t, 1, report.Sweep.Removed)
	require.Equal(t, 1, report.Sweep.Pending)
	require.Equal(t, 1, report.Purged)
	require.True(t, f.repo.Has(1, "live"))
	require.False(t, f.repo.Has(2, "gone"))
	require.Contains(t, logs.String(), `"run_id":"`+report.RunID+`"`)
	require.Contains(t, logs.String(), "janitor.sweep.completed")
}

func TestRunReconcileUsesAuditContainer(t *testing.T) {
	f := newFixture(t)
	captureLogs(t)
	ctx := context.Background()
	for _, name := range []string{"report_2021.pdf", "stale.pdf"} {
		_, err := f.blobs.Put(ctx, "audit-reports", name, "application/pdf", strings.NewReader("x"))
		require.NoError(t, err)
	}
	f.assets.Add(auditreports.Asset{Name: "2021", Metadata: []auditreports.File{{Filename: "report_2021.pdf"}}})

	report, err := Run(ctx, f.app, JobReconcile)

	require.NoError(t, err)
	require.Equal(t, 1, report.Reconcile.Deleted)
	require.Equal(t, []string{"report_2021.pdf"}, f.blobs.Names("audit-reports"))
}

type failingCandidates struct{ err error }

func (f failingCandidates) ListUncommitted(ctx context.Context) ([]attachments.Attachment, error) {
	return nil, f.err
}

func TestRunWrapsJobFailure(t *testing.T) {
	f := newFixture(t)
	captureLogs(t)
	boom := errors.New("db down")
	f.app.Sweeper.Candidates = failingCandidates{err: boom}

	report, err := Run(context.Background(), f.app, JobSweep)

	var runErr ErrRun
	require.ErrorAs(t, err, &runErr)
	require.ErrorIs(t, err, boom)
	require.Equal(t, JobSweep, runErr.Job)
	require.Equal(t, report.RunID, runErr.RunID)
}

type appFunc func(ctx context.Context) (*bootstrap.App, error)

func (f appFunc) EnsureBootstrapped(ctx context.Context) (*bootstrap.App, error) { return f(ctx) }

func TestExecuteReportsBootstrapFailure(t *testing.T) {
	captureLogs(t)
	boom := errors.New("no database")
	_, err := Execute(context.Background(), appFunc(func(context.Context) (*bootstrap.App, error) {
		return nil, boom
	}), JobSweep)

	var bootErr ErrBootstrap
	require.ErrorAs(t, err, &bootErr)
	require.ErrorIs(t, err, boom)
}

func TestHandleMessageRunsNamedJob(t *testing.T) {
	f := newFixture(t)
	logs := captureLogs(t)
	apps := appFunc(func(context.Context) (*bootstrap.App, error) { return f.app, nil })

	report, err := HandleMessage(context.Background(), apps, `{"job":"sweep","requestId":"req-9","version":1}`)

	require.NoError(t, err)
	require.Equal(t, JobSweep, report.Job)
	require.Contains(t, logs.String(), `"request_id":"req-9"`)
}

func TestParseMessageClassifiesUnrecoverable(t *testing.T) {
	cases := map[string]string{
		"empty":   "  ",
		"garbage": "{bad",
		"unknown": `{"job":"vacuum"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, _, err := ParseMessage(body)
			require.Error(t, err)
			require.True(t, IsUnrecoverable(err))
		})
	}

	require.False(t, IsUnrecoverable(ErrRun{Job: JobSweep, Err: errors.New("x")}))
}

func TestComputeMeta(t *testing.T) {
	require.Equal(t, MessageMeta{}, ComputeMeta(""))
	meta := ComputeMeta("abc")
	require.Equal(t, 3, meta.BodyLen)
	require.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", meta.BodySHA)
}
