package signals

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mindcast/internal/canon"
	"mindcast/internal/logging"
	"mindcast/internal/store"
)

const (
	defaultQueueDepth = 256
	recordTimeout     = 5 * time.Second
)

// Recorder appends usage events off the caller's request path. Submit
// never blocks and never fails the caller: events queue onto a bounded
// channel, a background goroutine persists them, and overflow or write
// failures surface only as warnings plus the Dropped counter.
type Recorder struct {
	store  *store.Store
	logger *slog.Logger

	events  chan *canon.TopicRequest
	dropped atomic.Int64

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewRecorder constructs a recorder over the canon store.
func NewRecorder(st *store.Store, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:  st,
		logger: logging.WithComponent(logger, "signal-recorder"),
		events: make(chan *canon.TopicRequest, defaultQueueDepth),
		done:   make(chan struct{}),
	}
}

// Start launches the background writer. Safe to call once.
func (r *Recorder) Start() {
	r.startOnce.Do(func() {
		r.wg.Add(1)
		go r.run()
	})
}

// Stop drains queued events and waits for the writer to exit.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
	})
	r.wg.Wait()
}

// Submit queues a usage event for persistence. When the queue is full the
// event is dropped and counted rather than blocking the caller.
func (r *Recorder) Submit(event *canon.TopicRequest) {
	if event == nil {
		return
	}
	select {
	case r.events <- event:
	default:
		r.dropped.Add(1)
		r.logger.Warn("usage event dropped, queue full",
			logging.Int64("topic_id", event.TopicID),
			logging.Int64("dropped_total", r.dropped.Load()),
		)
	}
}

// RecordNow persists a usage event synchronously. Batch jobs and tests
// use it where the fire-and-forget path is not wanted.
func (r *Recorder) RecordNow(ctx context.Context, event *canon.TopicRequest) (*canon.TopicRequest, error) {
	return r.store.RecordRequest(ctx, event)
}

// Dropped reports how many events were discarded due to backpressure.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for {
		select {
		case event := <-r.events:
			r.persist(event)
		case <-r.done:
			// Drain whatever is still queued before exiting.
			for {
				select {
				case event := <-r.events:
					r.persist(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) persist(event *canon.TopicRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if _, err := r.store.RecordRequest(ctx, event); err != nil {
		r.dropped.Add(1)
		r.logger.Warn("usage event write failed",
			logging.Error(err),
			logging.Int64("topic_id", event.TopicID),
			logging.Int64("dropped_total", r.dropped.Load()),
		)
	}
}
