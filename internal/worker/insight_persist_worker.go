package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"contextinsight/internal/app"
	"contextinsight/internal/pkg/logger"
)

const logModule = "insight_persist_worker"

const defaultRetryDelay = time.Second

// errMalformedRequest marks messages that can never be persisted; they are
// dropped instead of requeued.
var errMalformedRequest = errors.New("malformed persist request")

// PersistRequest is the message the context agent enqueues once its
// analysis of a dataset is complete.
type PersistRequest struct {
	SessionID   string          `json:"session_id"`
	ContextData app.ContextData `json:"context_data"`
}

type InsightSaver interface {
	Save(ctx context.Context, sessionID string, data app.ContextData) app.Result
}

type InsightPersistWorker struct {
	conn      *amqp.Connection
	saver     InsightSaver
	queueName string
	log       logger.Logger

	retryDelay time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewInsightPersistWorker(conn *amqp.Connection, saver InsightSaver, queueName string, log logger.Logger) *InsightPersistWorker {
	return &InsightPersistWorker{
		conn:       conn,
		saver:      saver,
		queueName:  queueName,
		log:        log,
		retryDelay: defaultRetryDelay,
	}
}

func (w *InsightPersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker prefetch failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				if err := w.handle(workerCtx, d.Body); err != nil {
					requeue := shouldRequeue(err)
					w.log.Error(logModule, "persist context insight failed", map[string]interface{}{"error": err, "requeue": requeue})
					if requeue {
						w.backoff(workerCtx)
					}
					_ = d.Nack(false, requeue)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *InsightPersistWorker) handle(ctx context.Context, body []byte) error {
	var req PersistRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return fmt.Errorf("%w: decode failed: %v", errMalformedRequest, err)
	}
	if strings.TrimSpace(req.SessionID) == "" {
		return fmt.Errorf("%w: no session_id", errMalformedRequest)
	}

	result := w.saver.Save(ctx, req.SessionID, req.ContextData)
	if !result.Success {
		return fmt.Errorf("save context insight for session %s failed: %w", req.SessionID, result.Err)
	}
	return nil
}

// shouldRequeue reports whether a failed delivery may succeed on a later
// attempt. Storage failures are retried; malformed messages are not.
func shouldRequeue(err error) bool {
	return !errors.Is(err, errMalformedRequest)
}

func (w *InsightPersistWorker) backoff(ctx context.Context) {
	timer := time.NewTimer(w.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (w *InsightPersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
