package worker

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"example.com/socialapi/internal/activity"
	appkafka "example.com/socialapi/internal/broker"
	"example.com/socialapi/internal/logger"
	"example.com/socialapi/internal/metrics"
	"github.com/segmentio/kafka-go"
)

var logg = logger.New()

// Worker consumes activity events from Kafka and stores notifications concurrently.
type Worker struct {
	handler      *activity.Handler
	reader       appkafka.KafkaReader
	metrics      metrics.Recorder
	workerCount  int
	jobQueueSize int
}

// New creates a new concurrent Worker using pre-initialized dependencies.
func New(handler *activity.Handler, reader appkafka.KafkaReader, rec metrics.Recorder, workerCount, jobQueueSize int) *Worker {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if jobQueueSize <= 0 {
		jobQueueSize = workerCount * 10
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Worker{
		handler:      handler,
		reader:       reader,
		metrics:      rec,
		workerCount:  workerCount,
		jobQueueSize: jobQueueSize,
	}
}

// Run starts message reading and concurrent processing. It returns once ctx
// is cancelled and every in-flight event has been handled.
func (w *Worker) Run(ctx context.Context) {
	if w.workerCount <= 0 {
		w.workerCount = 1
	}
	if w.jobQueueSize <= 0 {
		w.jobQueueSize = 10
	}
	if w.metrics == nil {
		w.metrics = metrics.Nop{}
	}

	logg.Info("worker", "Starting "+fmt.Sprint(w.workerCount)+" workers with queue size "+fmt.Sprint(w.jobQueueSize))

	jobs := make(chan kafka.Message, w.jobQueueSize)
	var wg sync.WaitGroup

	for range w.workerCount {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.processLoop(ctx, jobs)
		}()
	}

	w.readLoop(ctx, jobs)

	close(jobs)
	wg.Wait()
	logg.Info("worker", "All workers stopped gracefully")
}

// readLoop reads Kafka messages and pushes them into a job queue.
func (w *Worker) readLoop(ctx context.Context, jobs chan<- kafka.Message) {
	var retry int
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := w.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			backoff := time.Duration(math.Min(1000, math.Pow(2, float64(retry)))) * time.Millisecond
			logg.Error("worker", "Kafka read error, backing off", err)
			if !waitWithContext(ctx, backoff) {
				return
			}
			retry++
			continue
		}
		retry = 0

		if len(msg.Value) == 0 {
			if !waitWithContext(ctx, 50*time.Millisecond) {
				return
			}
			continue
		}

		for enqueued := false; !enqueued; {
			select {
			case jobs <- msg:
				enqueued = true
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
				logg.Info("worker", "Queue full, waiting to enqueue Kafka message")
			}
		}
	}
}

// processLoop drains the job queue. Jobs already queued are still handled
// after ctx is cancelled.
func (w *Worker) processLoop(ctx context.Context, jobs <-chan kafka.Message) {
	for msg := range jobs {
		if err := w.handle(context.WithoutCancel(ctx), msg); err != nil {
			logg.Error("worker", "Failed to handle activity event", err)
		}
	}
}

// handle decodes one message and stores the resulting notification.
func (w *Worker) handle(ctx context.Context, msg kafka.Message) error {
	ev, err := appkafka.DecodeEvent(msg)
	if err != nil {
		w.metrics.RecordEventProcessed("invalid", false)
		return err
	}
	if err := w.handler.Handle(ctx, ev); err != nil {
		w.metrics.RecordEventProcessed(ev.Type, false)
		return fmt.Errorf("handle %s event %s: %w", ev.Type, ev.ID, err)
	}
	w.metrics.RecordEventProcessed(ev.Type, true)
	return nil
}

// waitWithContext waits for duration or context cancellation.
func waitWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Close shuts down the Kafka reader. The notification store is owned by the caller.
func (w *Worker) Close() error {
	logg.Info("worker", "Closing Kafka reader")
	if err := w.reader.Close(); err != nil {
		logg.Error("worker", "Error closing Kafka reader", err)
		return err
	}
	return nil
}
