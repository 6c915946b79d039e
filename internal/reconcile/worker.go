package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/medintake/intake-ai-platform/pkg/logging"
)

// Resolver applies one repair task against the mirror.
type Resolver interface {
	Resolve(ctx context.Context, task Task) error
}

const (
	receiveBatchSize   = 10
	receiveWaitSeconds = 5
	maxResolveRetries  = 4
)

// Worker drains the reconcile queue and applies tasks with exponential
// backoff. A task that still fails after the retry budget is logged as a
// mirror_inconsistency event for manual follow-up and dropped so it cannot
// poison the queue.
type Worker struct {
	queue    Queue
	resolver Resolver
	logger   *logging.Logger
}

// NewWorker wires a worker to its queue and resolver.
func NewWorker(queue Queue, resolver Resolver, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{
		queue:    queue,
		resolver: resolver,
		logger:   logger.WithComponent("reconcile"),
	}
}

// Run blocks until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("reconcile worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reconcile worker stopping")
			return ctx.Err()
		default:
		}

		messages, err := w.queue.Receive(ctx, receiveBatchSize, receiveWaitSeconds)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			w.logger.Error("failed to receive reconcile tasks", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		for _, msg := range messages {
			w.handle(ctx, msg)
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg Message) {
	task, err := DecodeTask(msg.Body)
	if err != nil {
		w.logger.Error("dropping malformed reconcile task", "message_id", msg.ID, "error", err)
		w.deleteMessage(ctx, msg)
		return
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxResolveRetries), ctx)
	err = backoff.Retry(func() error {
		return w.resolver.Resolve(ctx, task)
	}, policy)
	if err != nil {
		w.logger.Error("mirror_inconsistency",
			"task_id", task.ID,
			"op", string(task.Op),
			"provider_bot_id", task.ProviderBotID,
			"reason", task.Reason,
			"error", err)
		w.deleteMessage(ctx, msg)
		return
	}

	w.logger.Info("reconcile task applied",
		"task_id", task.ID, "op", string(task.Op), "provider_bot_id", task.ProviderBotID)
	w.deleteMessage(ctx, msg)
}

func (w *Worker) deleteMessage(ctx context.Context, msg Message) {
	if err := w.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		w.logger.Error("failed to delete reconcile message", "message_id", msg.ID, "error", err)
	}
}
