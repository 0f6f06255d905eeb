package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"carelog-backend/internal/attachments"
	"carelog-backend/internal/auditreports"
	"carelog-backend/internal/bootstrap"
	"carelog-backend/internal/shared/storage/blob/memory"
	"carelog-backend/internal/shared/telemetry"
	"carelog-backend/internal/staging"
)

type fakeApps struct {
	app   *bootstrap.App
	err   error
	calls int
}

func (f *fakeApps) EnsureBootstrapped(ctx context.Context) (*bootstrap.App, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.app, nil
}

func quietLogs(t *testing.T) {
	t.Helper()
	prev := telemetry.SetOutput(&bytes.Buffer{})
	t.Cleanup(func() { telemetry.SetOutput(prev) })
}

func memoryApp() (*bootstrap.App, *attachments.MemoryRepo) {
	repo := attachments.NewMemoryRepo()
	blobs := memory.New()
	stage := staging.NewMemoryStore()
	registry := attachments.DefaultRegistry(blobs, "media", repo)
	return &bootstrap.App{
		Blobs:    blobs,
		Staging:  stage,
		Registry: registry,
		Sweeper: &attachments.Sweeper{
			Candidates: repo,
			Staging:    stage,
			Collection: "updates",
			Registry:   registry,
		},
		Reconciler: &auditreports.Reconciler{Assets: auditreports.NewMemoryRepo(), Blobs: blobs},
	}, repo
}

func TestScheduledEventRunsSweep(t *testing.T) {
	quietLogs(t)
	app, repo := memoryApp()
	repo.Add(attachments.Attachment{ID: 1, UpdateID: "abandoned", Type: attachments.TypeText})
	h := handler{apps: &fakeApps{app: app}}

	raw, _ := json.Marshal(events.CloudWatchEvent{ID: "evt-1", DetailType: "Scheduled Event", Detail: json.RawMessage(`{}`)})
	if _, err := h.Invoke(context.Background(), raw); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if repo.Has(1, "abandoned") {
		t.Fatalf("expected abandoned attachment to be swept")
	}
}

func TestScheduledEventRejectsUnknownJob(t *testing.T) {
	quietLogs(t)
	apps := &fakeApps{}
	h := handler{apps: apps}

	raw, _ := json.Marshal(events.CloudWatchEvent{ID: "evt-2", Detail: json.RawMessage(`{"job":"vacuum"}`)})
	if _, err := h.Invoke(context.Background(), raw); err == nil {
		t.Fatalf("expected unknown job error")
	}
	if apps.calls != 0 {
		t.Fatalf("expected no bootstrap for unknown job")
	}
}

func TestScheduledEventSurfacesBootstrapFailure(t *testing.T) {
	quietLogs(t)
	boom := errors.New("db unreachable")
	h := handler{apps: &fakeApps{err: boom}, defaultJob: "reconcile"}

	raw, _ := json.Marshal(events.CloudWatchEvent{ID: "evt-3"})
	_, err := h.Invoke(context.Background(), raw)
	if !errors.Is(err, boom) {
		t.Fatalf("expected bootstrap error, got %v", err)
	}
}

func TestSQSBatchReportsOnlyRetryableFailures(t *testing.T) {
	quietLogs(t)
	app, _ := memoryApp()
	h := handler{apps: &fakeApps{app: app}}

	event := events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "ok", Body: `{"job":"sweep","requestId":"r1","version":1}`},
		{MessageId: "garbage", Body: `{bad`},
		{MessageId: "unknown", Body: `{"job":"vacuum"}`},
	}}
	raw, _ := json.Marshal(event)

	out, err := h.Invoke(context.Background(), raw)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	resp := out.(events.SQSEventResponse)
	if len(resp.BatchItemFailures) != 0 {
		t.Fatalf("expected no retries, got %+v", resp.BatchItemFailures)
	}
}

func TestSQSBatchRetriesEverythingOnBootstrapFailure(t *testing.T) {
	quietLogs(t)
	h := handler{apps: &fakeApps{err: errors.New("no db")}}

	event := events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "a", Body: `{"job":"sweep"}`},
		{MessageId: "b", Body: `{"job":"reconcile"}`},
	}}
	raw, _ := json.Marshal(event)

	out, err := h.Invoke(context.Background(), raw)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	resp := out.(events.SQSEventResponse)
	if len(resp.BatchItemFailures) != 2 {
		t.Fatalf("expected both messages retried, got %+v", resp.BatchItemFailures)
	}
}
