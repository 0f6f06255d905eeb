package main

// The scheduler fires every janitor job on its interval. With RA_SQS_QUEUE_URL set it only
// enqueues triggers for cmd/worker or the Lambda; otherwise it runs the jobs in process.

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"carelog-backend/internal/bootstrap"
	"carelog-backend/internal/janitor"
	"carelog-backend/internal/queue"
	"carelog-backend/internal/services/health"
	"carelog-backend/internal/shared/config"
	"carelog-backend/internal/shared/server"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gate := bootstrap.NewGate(cfg)
	var sender queue.Client
	if cfg.QueueURL != "" {
		client, err := queue.NewSQSClient(ctx, cfg.QueueURL, cfg.AWSRegion)
		if err != nil {
			log.Fatalf("queue client: %v", err)
		}
		sender = client
	}
	fire := fireFunc(gate, sender)

	intervals := map[janitor.Job]time.Duration{
		janitor.JobSweep:     cfg.SweepInterval,
		janitor.JobReconcile: cfg.ReconcileInterval,
	}
	schedules := make([]*janitor.Schedule, 0, len(intervals))
	for _, job := range janitor.Jobs {
		s := janitor.NewSchedule(job, intervals[job], fire)
		s.Start(ctx)
		schedules = append(schedules, s)
	}

	router := server.NewRouter(server.RouterDeps{
		Health: readiness(gate, sender),
		Jobs:   jobNames(),
		Trigger: func(ctx context.Context, name string) error {
			job, err := janitor.ParseJob(name)
			if err != nil {
				return err
			}
			if sender != nil {
				return fire(ctx, job)
			}
			go func() {
				if err := fire(context.WithoutCancel(ctx), job); err != nil {
					log.Printf("manual %s run failed: %v", job, err)
				}
			}()
			return nil
		},
	})
	srv := &http.Server{Addr: server.Addr(cfg.Port), Handler: router}
	go func() {
		log.Printf("scheduler ops server on %s (mode=%s)", srv.Addr, mode(sender))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("ops server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Printf("shutdown requested, waiting for running jobs")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	for _, s := range schedules {
		s.Stop()
	}
}

// fireFunc enqueues a trigger when a queue is configured and runs the job in process otherwise.
func fireFunc(apps janitor.AppProvider, sender queue.Client) janitor.FireFunc {
	return func(ctx context.Context, job janitor.Job) error {
		if sender != nil {
			return sender.Send(ctx, queue.NewMessage(string(job), uuid.NewString(), time.Now()))
		}
		_, err := janitor.Execute(ctx, apps, job)
		return err
	}
}

// readiness checks bootstrap and database reachability; enqueue mode needs neither.
func readiness(gate *bootstrap.Gate, sender queue.Client) *health.Service {
	svc := health.NewService()
	if sender != nil {
		return svc
	}
	svc.Add("bootstrap", func(ctx context.Context) error {
		if !gate.Ready() {
			return errors.New("not bootstrapped")
		}
		return nil
	})
	svc.Add("database", func(ctx context.Context) error {
		if !gate.Ready() {
			return nil
		}
		app, err := gate.EnsureBootstrapped(ctx)
		if err != nil {
			return err
		}
		if app.DB == nil {
			return nil
		}
		return app.DB.PingContext(ctx)
	})
	return svc
}

func jobNames() []string {
	names := make([]string, 0, len(janitor.Jobs))
	for _, job := range janitor.Jobs {
		names = append(names, string(job))
	}
	return names
}

func mode(sender queue.Client) string {
	if sender != nil {
		return "enqueue"
	}
	return "inline"
}
