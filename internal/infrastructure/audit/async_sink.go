package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/turtacn/dashgate/internal/domain/models"
	"github.com/turtacn/dashgate/internal/domain/service"
	"github.com/turtacn/dashgate/pkg/logger"
)

var _ service.SecurityEventSink = (*AsyncSink)(nil)

// DefaultAsyncBuffer is the queue length used when NewAsyncSink gets size <= 0.
const DefaultAsyncBuffer = 1024

// AsyncSink hands events to a slower sink through a bounded queue drained by
// one worker. Record never blocks: when the queue is full the event is dropped
// and counted.
// AsyncSink 通过有界队列异步写入安全事件，队列满时丢弃。
type AsyncSink struct {
	next    service.SecurityEventSink
	queue   chan queuedEvent
	logger  logger.Logger
	dropped atomic.Int64

	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

type queuedEvent struct {
	ctx   context.Context
	event models.SecurityEvent
}

// NewAsyncSink starts the worker. Call Close to drain the queue on shutdown.
func NewAsyncSink(next service.SecurityEventSink, size int, log logger.Logger) *AsyncSink {
	if size <= 0 {
		size = DefaultAsyncBuffer
	}
	s := &AsyncSink{
		next:   next,
		queue:  make(chan queuedEvent, size),
		logger: log,
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *AsyncSink) Record(ctx context.Context, event models.SecurityEvent) {
	select {
	case <-s.closed:
		s.drop(ctx, event)
		return
	default:
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	// The worker outlives the request, so only its values are carried over.
	item := queuedEvent{ctx: context.WithoutCancel(ctx), event: event}
	select {
	case s.queue <- item:
	default:
		s.drop(ctx, event)
	}
}

func (s *AsyncSink) drop(ctx context.Context, event models.SecurityEvent) {
	// Log only the first drop of every hundred to avoid a log flood under load.
	if n := s.dropped.Add(1); n%100 == 1 {
		s.logger.Warn(ctx, "Security event queue full, dropping events",
			logger.String("security_event", string(event.Type)),
			logger.Int64("dropped_total", n),
		)
	}
}

// Dropped returns the number of events discarded so far.
func (s *AsyncSink) Dropped() int64 {
	return s.dropped.Load()
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for {
		select {
		case item := <-s.queue:
			s.next.Record(item.ctx, item.event)
		case <-s.closed:
			for {
				select {
				case item := <-s.queue:
					s.next.Record(item.ctx, item.event)
				default:
					return
				}
			}
		}
	}
}

// Close stops accepting events and waits for queued ones to be written or
// for ctx to expire.
func (s *AsyncSink) Close(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.closed) })
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
