package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"carelog-backend/internal/bootstrap"
	"carelog-backend/internal/janitor"
	"carelog-backend/internal/queue"
	"carelog-backend/internal/shared/config"
	"carelog-backend/internal/shared/metrics"
	"carelog-backend/internal/shared/telemetry"
)

const (
	defaultVisibilitySeconds  = 1800
	defaultWorkerConcurrency  = 2
	defaultShutdownTimeoutSec = 60
)

func main() {
	cfg := config.Load()

	if cfg.QueueURL == "" {
		log.Fatal("RA_SQS_QUEUE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	visibilitySeconds := envInt("RA_SQS_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds)
	concurrency := envInt("RA_WORKER_CONCURRENCY", defaultWorkerConcurrency)
	shutdownTimeout := time.Duration(envInt("RA_SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second

	region := cfg.AWSRegion
	if region == "" {
		region = queue.DefaultRegion
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	var sqsClient sqsAPI = sqs.NewFromConfig(awsCfg)

	gate := bootstrap.NewGate(cfg)
	if _, err := gate.EnsureBootstrapped(ctx); err != nil {
		log.Printf("bootstrap failed, retrying per message: %v", err)
	}

	sem := make(chan struct{}, max(1, concurrency))
	var wg sync.WaitGroup

	log.Printf("worker started queue=%s concurrency=%d visibility=%ds", cfg.QueueURL, concurrency, visibilitySeconds)

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		default:
		}

		resp, err := sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(cfg.QueueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   int32(visibilitySeconds),
			AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName("ApproximateReceiveCount")},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break pollLoop
			}
			log.Printf("receive message: %v", err)
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			metrics.IncTriggersReceived()
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				handleMessage(ctx, sqsClient, cfg.QueueURL, gate, m)
			}(msg)
		}
	}

	log.Printf("shutdown requested, waiting up to %s for in-flight jobs", shutdownTimeout)
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		log.Printf("shutdown timeout reached; exiting with in-flight jobs")
	}
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// handleMessage runs the job a trigger names. Successful and unrecoverable messages are
// deleted; failed runs stay on the queue and come back after the visibility timeout.
func handleMessage(ctx context.Context, client sqsAPI, queueURL string, apps janitor.AppProvider, msg sqstypes.Message) {
	body := aws.ToString(msg.Body)
	decoded, job, meta, err := janitor.ParseMessage(body)
	if err != nil {
		fields := baseFields(msg, "", decoded.RequestID)
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		fields["error"] = err.Error()
		telemetry.Error("worker.trigger.invalid", fields)
		deleteMessage(ctx, client, queueURL, msg, "", decoded.RequestID)
		return
	}

	telemetry.Info("worker.trigger.received", baseFields(msg, job, decoded.RequestID))

	runCtx := telemetry.WithFields(ctx, map[string]any{
		"sqs_message_id": aws.ToString(msg.MessageId),
		"request_id":     decoded.RequestID,
	})
	if _, err := janitor.Execute(runCtx, apps, job); err != nil {
		fields := baseFields(msg, job, decoded.RequestID)
		fields["error"] = err.Error()
		var runErr janitor.ErrRun
		if errors.As(err, &runErr) {
			fields["run_id"] = runErr.RunID
		}
		telemetry.Error("worker.trigger.failed", fields)
		return
	}

	if deleteMessage(ctx, client, queueURL, msg, job, decoded.RequestID) {
		telemetry.Info("worker.trigger.completed", baseFields(msg, job, decoded.RequestID))
	}
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, job janitor.Job, requestID string) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg, job, requestID)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.trigger.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg, job, requestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.trigger.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message, job janitor.Job, requestID string) map[string]any {
	fields := map[string]any{
		"job":            string(job),
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if strings.TrimSpace(requestID) != "" {
		fields["request_id"] = requestID
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	if msg.Attributes == nil {
		return 0
	}
	raw := msg.Attributes["ApproximateReceiveCount"]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
