package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yazcar/yazcarfax/internal/domain/authevent"
)

// AuthEventService records sign-in and sign-out events without blocking the
// request path. Events go through a buffered channel to a background worker
// that writes them in batches.
type AuthEventService struct {
	store         authevent.Store
	events        chan authevent.Event
	wg            sync.WaitGroup
	stopOnce      sync.Once
	logger        *slog.Logger
	batchSize     int
	flushInterval time.Duration

	channelSize int
	sendTimeout time.Duration // 0 = drop immediately
	dropCount   atomic.Int64
	written     atomic.Int64
}

// AuthEventOption configures AuthEventService.
type AuthEventOption func(*AuthEventService)

// WithBatchSize sets the number of events to batch before writing.
func WithBatchSize(size int) AuthEventOption {
	return func(s *AuthEventService) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithFlushInterval sets the interval to flush pending events.
func WithFlushInterval(interval time.Duration) AuthEventOption {
	return func(s *AuthEventService) {
		if interval > 0 {
			s.flushInterval = interval
		}
	}
}

// WithChannelSize sets the size of the event buffer.
func WithChannelSize(size int) AuthEventOption {
	return func(s *AuthEventService) {
		if size > 0 {
			s.events = make(chan authevent.Event, size)
			s.channelSize = size
		}
	}
}

// WithSendTimeout sets the backpressure timeout.
// 0 = drop immediately, >0 = block up to this duration before dropping.
func WithSendTimeout(timeout time.Duration) AuthEventOption {
	return func(s *AuthEventService) {
		s.sendTimeout = timeout
	}
}

// NewAuthEventService creates an AuthEventService writing to store.
func NewAuthEventService(store authevent.Store, logger *slog.Logger, opts ...AuthEventOption) *AuthEventService {
	if logger == nil {
		logger = slog.Default()
	}
	const defaultChannelSize = 256
	s := &AuthEventService{
		store:         store,
		events:        make(chan authevent.Event, defaultChannelSize),
		logger:        logger,
		batchSize:     50,
		flushInterval: time.Second,
		channelSize:   defaultChannelSize,
		sendTimeout:   50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the background worker.
func (s *AuthEventService) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.worker(ctx)
}

// Record queues an event. Emails are masked before they leave the caller.
// When the buffer stays full for longer than the send timeout the event is
// dropped and counted.
func (s *AuthEventService) Record(ev authevent.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	ev.Email = authevent.MaskEmail(ev.Email)

	select {
	case s.events <- ev:
		return
	default:
	}

	if s.sendTimeout <= 0 {
		s.recordDrop(ev)
		return
	}

	timer := time.NewTimer(s.sendTimeout)
	defer timer.Stop()
	select {
	case s.events <- ev:
	case <-timer.C:
		s.recordDrop(ev)
	}
}

func (s *AuthEventService) recordDrop(ev authevent.Event) {
	drops := s.dropCount.Add(1)
	s.logger.Warn("auth event dropped",
		"type", ev.Type,
		"request_id", ev.RequestID,
		"total_drops", drops,
	)
}

// DroppedEvents returns the number of events dropped under backpressure.
func (s *AuthEventService) DroppedEvents() int64 {
	return s.dropCount.Load()
}

// WrittenEvents returns the number of events handed to the store.
func (s *AuthEventService) WrittenEvents() int64 {
	return s.written.Load()
}

// ChannelDepth returns the number of queued events.
func (s *AuthEventService) ChannelDepth() int {
	return len(s.events)
}

// ChannelCapacity returns the event buffer size.
func (s *AuthEventService) ChannelCapacity() int {
	return s.channelSize
}

// Stop closes the queue, waits for the worker to write what is pending and
// flushes the store. Record must not be called after Stop.
func (s *AuthEventService) Stop() {
	s.stopOnce.Do(func() {
		close(s.events)
	})
	s.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.Flush(ctx); err != nil {
		s.logger.Error("failed to flush auth event store", "error", err)
	}
}

func (s *AuthEventService) worker(ctx context.Context) {
	defer s.wg.Done()

	batch := make([]authevent.Event, 0, s.batchSize)
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	finalFlush := func() {
		if len(batch) == 0 {
			return
		}
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.flush(flushCtx, batch)
	}

	for {
		select {
		case ev, ok := <-s.events:
			if !ok {
				finalFlush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= s.batchSize {
				s.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ctx.Done():
			// Drain until Stop closes the channel.
			for ev := range s.events {
				batch = append(batch, ev)
			}
			finalFlush()
			return
		}
	}
}

// flush writes a batch. Errors are logged; event logging never fails a sign-in.
func (s *AuthEventService) flush(ctx context.Context, batch []authevent.Event) {
	if err := s.store.Append(ctx, batch...); err != nil {
		s.logger.Error("failed to write auth events",
			"error", err,
			"count", len(batch),
		)
		return
	}
	s.written.Add(int64(len(batch)))
}
