package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"carelog-backend/internal/attachments"
	"carelog-backend/internal/auditreports"
	"carelog-backend/internal/bootstrap"
	"carelog-backend/internal/janitor"
	"carelog-backend/internal/queue"
	"carelog-backend/internal/shared/storage/blob/memory"
	"carelog-backend/internal/shared/telemetry"
	"carelog-backend/internal/staging"
)

type staticApps struct {
	app   *bootstrap.App
	err   error
	calls int
}

func (s *staticApps) EnsureBootstrapped(ctx context.Context) (*bootstrap.App, error) {
	s.calls++
	return s.app, s.err
}

func quiet(t *testing.T) {
	t.Helper()
	prev := telemetry.SetOutput(&bytes.Buffer{})
	t.Cleanup(func() { telemetry.SetOutput(prev) })
}

func TestFireEnqueuesWhenQueueConfigured(t *testing.T) {
	quiet(t)
	sender := &queue.MemoryClient{}
	apps := &staticApps{}

	if err := fireFunc(apps, sender)(context.Background(), janitor.JobReconcile); err != nil {
		t.Fatalf("fire: %v", err)
	}

	sent := sender.Sent()
	if len(sent) != 1 || sent[0].Job != "reconcile" || sent[0].RequestID == "" || sent[0].Version != queue.MessageVersion {
		t.Fatalf("unexpected trigger %+v", sent)
	}
	if apps.calls != 0 {
		t.Fatalf("enqueue mode must not bootstrap")
	}
}

func TestFireRunsInlineWithoutQueue(t *testing.T) {
	quiet(t)
	repo := attachments.NewMemoryRepo()
	repo.Add(attachments.Attachment{ID: 3, UpdateID: "stale", Type: attachments.TypeText})
	blobs := memory.New()
	stage := staging.NewMemoryStore()
	registry := attachments.DefaultRegistry(blobs, "media", repo)
	apps := &staticApps{app: &bootstrap.App{
		Staging: stage,
		Sweeper: &attachments.Sweeper{Candidates: repo, Staging: stage, Collection: "updates", Registry: registry},
		Reconciler: &auditreports.Reconciler{
			Assets: auditreports.NewMemoryRepo(),
			Blobs:  blobs,
		},
	}}

	if err := fireFunc(apps, nil)(context.Background(), janitor.JobSweep); err != nil {
		t.Fatalf("fire: %v", err)
	}
	if repo.Has(3, "stale") {
		t.Fatalf("expected inline sweep to remove attachment")
	}
}

func TestFireSurfacesBootstrapError(t *testing.T) {
	quiet(t)
	boom := errors.New("no db")
	err := fireFunc(&staticApps{err: boom}, nil)(context.Background(), janitor.JobSweep)
	if !errors.Is(err, boom) {
		t.Fatalf("expected bootstrap error, got %v", err)
	}
}

func TestJobNames(t *testing.T) {
	names := jobNames()
	if len(names) != 2 || names[0] != "sweep" || names[1] != "reconcile" {
		t.Fatalf("unexpected job names %v", names)
	}
}
