package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/parkwatch/internal/adapters/nats"
	"github.com/samirrijal/parkwatch/internal/adapters/postgres"
	"github.com/samirrijal/parkwatch/internal/core/domain"
	"github.com/samirrijal/parkwatch/internal/core/usecases"
	"github.com/samirrijal/parkwatch/internal/pkg/config"
	"github.com/samirrijal/parkwatch/internal/pkg/logging"
	"github.com/samirrijal/parkwatch/internal/workflows"
)

func main() {
	cfg, err := config.Load("parkwatch-notifier")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Favorites live in Postgres
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Pushes go out on the per-user NATS subjects the websocket relays
	conn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer conn.Close()

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	availability := usecases.NewAvailabilityService(
		postgres.NewFavoriteRepo(db),
		natsadapter.NewNotifier(conn),
	)

	// Connect to Temporal; without it pushes go out straight from the subscriber
	handler := directHandler(availability)
	mode := "direct"
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(logger.With("component", "temporal")),
	})
	if err != nil {
		slog.Warn("temporal unavailable, delivering without workflows", "error", err)
	} else {
		defer c.Close()

		w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

		// Register workflow & activities
		w.RegisterWorkflow(workflows.AvailabilityNotificationWorkflow)
		w.RegisterActivity(&workflows.AvailabilityActivities{Availability: availability})

		if err := w.Start(); err != nil {
			log.Fatalf("worker: %v", err)
		}
		defer w.Stop()

		handler = func(ctx context.Context, event *domain.AvailabilityEvent) error {
			return startWorkflow(ctx, c, cfg.Temporal.TaskQueue, *event)
		}
		mode = "temporal"
	}

	if err := sub.SubscribeAvailability(ctx, handler); err != nil {
		log.Fatalf("subscribe: %v", err)
	}

	slog.Info("notifier started", "mode", mode, "task_queue", cfg.Temporal.TaskQueue)
	<-ctx.Done()
	slog.Info("notifier stopping")
}

// startWorkflow starts the notification workflow for event. An event that
// already has a workflow is a redelivery and counts as handled.
func startWorkflow(ctx context.Context, c client.Client, taskQueue string, event domain.AvailabilityEvent) error {
	opts := client.StartWorkflowOptions{
		ID:                    workflows.WorkflowID(event),
		TaskQueue:             taskQueue,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}
	run, err := c.ExecuteWorkflow(ctx, opts, workflows.AvailabilityNotificationWorkflow, workflows.AvailabilityInput{Event: event})
	var started *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &started) {
		slog.Debug("duplicate availability event", "event_id", event.ID)
		return nil
	}
	if err != nil {
		return err
	}
	slog.Info("availability workflow started",
		"workflow_id", run.GetID(), "run_id", run.GetRunID(), "lot_id", event.LotID)
	return nil
}

// directHandler notifies every recipient from the subscriber itself. The
// event is only redelivered when no push went out; a partial failure is
// logged, matching the workflow's per-user failure handling.
func directHandler(svc *usecases.AvailabilityService) func(ctx context.Context, event *domain.AvailabilityEvent) error {
	return func(ctx context.Context, event *domain.AvailabilityEvent) error {
		sent, err := svc.NotifyAll(ctx, *event)
		if err != nil && sent == 0 {
			return err
		}
		slog.Info("availability pushes sent", "lot_id", event.LotID, "event_id", event.ID, "sent", sent)
		return nil
	}
}
