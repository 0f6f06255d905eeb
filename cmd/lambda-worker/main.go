package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker
//
// The function accepts EventBridge scheduled events, whose detail may carry {"job":"sweep"},
// and SQS batches of trigger messages.

import (
	"context"
	"encoding/json"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"carelog-backend/internal/bootstrap"
	"carelog-backend/internal/janitor"
	"carelog-backend/internal/shared/config"
	"carelog-backend/internal/shared/metrics"
	"carelog-backend/internal/shared/telemetry"
)

type handler struct {
	apps       janitor.AppProvider
	defaultJob string
}

type scheduledDetail struct {
	Job string `json:"job"`
}

type envelope struct {
	Records    []json.RawMessage `json:"Records"`
	DetailType string            `json:"detail-type"`
}

// Invoke dispatches on the event shape.
func (h handler) Invoke(ctx context.Context, raw json.RawMessage) (any, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	if len(env.Records) > 0 {
		var event events.SQSEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return nil, err
		}
		return h.handleSQS(ctx, event)
	}

	var event events.CloudWatchEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, err
	}
	return nil, h.handleScheduled(ctx, event)
}

func (h handler) handleScheduled(ctx context.Context, event events.CloudWatchEvent) error {
	name := h.defaultJob
	if len(event.Detail) > 0 {
		var detail scheduledDetail
		if err := json.Unmarshal(event.Detail, &detail); err == nil && detail.Job != "" {
			name = detail.Job
		}
	}
	if name == "" {
		name = string(janitor.JobSweep)
	}

	job, err := janitor.ParseJob(name)
	if err != nil {
		telemetry.Error("lambda.scheduled.unknown_job", map[string]any{"job": name, "event_id": event.ID})
		return err
	}

	ctx = telemetry.WithFields(ctx, map[string]any{"event_id": event.ID})
	_, err = janitor.Execute(ctx, h.apps, job)
	return err
}

func (h handler) handleSQS(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		metrics.IncTriggersReceived()
		msgCtx := telemetry.WithFields(ctx, map[string]any{"sqs_message_id": record.MessageId})
		_, err := janitor.HandleMessage(msgCtx, h.apps, record.Body)
		if err == nil {
			continue
		}

		fields := telemetry.FieldsFrom(msgCtx)
		fields["error"] = err.Error()
		if janitor.IsUnrecoverable(err) {
			meta := janitor.ComputeMeta(record.Body)
			fields["body_len"] = meta.BodyLen
			fields["body_sha256"] = meta.BodySHA
			telemetry.Error("lambda.trigger.dropped", fields)
			continue
		}
		telemetry.Error("lambda.trigger.failed", fields)
		failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})

		if _, ok := err.(janitor.ErrBootstrap); ok {
			for _, rest := range event.Records {
				if rest.MessageId != record.MessageId && !containsFailure(failures, rest.MessageId) {
					failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: rest.MessageId})
				}
			}
			return events.SQSEventResponse{BatchItemFailures: failures}, nil
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}, nil
}

func containsFailure(failures []events.SQSBatchItemFailure, id string) bool {
	for _, f := range failures {
		if f.ItemIdentifier == id {
			return true
		}
	}
	return false
}

func main() {
	cfg := config.Load()
	h := handler{apps: bootstrap.NewGate(cfg), defaultJob: cfg.Job}
	log.Printf("lambda worker starting env=%s default_job=%q", cfg.Env, cfg.Job)
	lambda.Start(h.Invoke)
}
