package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"commerce-agent/internal/application/port/output"
	"commerce-agent/internal/domain/entity"
)

var (
	_ output.ProgressSink = (*HTTPSink)(nil)
	_ output.ProgressSink = Fanout(nil)
)

const (
	defaultPostTimeout = 3 * time.Second
	defaultSinkQueue   = 256
)

// HTTPSink posts each event to {endpoint}/plans/{id}/events from a single
// background worker, so events keep their emission order. Emit never blocks:
// when the queue is full the event is dropped. Failures are logged and
// dropped.
type HTTPSink struct {
	endpoint string
	client   *http.Client
	logger   output.LoggerPort

	mu     sync.RWMutex
	closed bool
	queue  chan queuedEvent
	done   chan struct{}
	once   sync.Once
}

type queuedEvent struct {
	ctx   context.Context
	event entity.ProgressEvent
}

func NewHTTPSink(endpoint string, client *http.Client, logger output.LoggerPort) *HTTPSink {
	return NewHTTPSinkWithQueue(endpoint, client, logger, defaultSinkQueue)
}

func NewHTTPSinkWithQueue(endpoint string, client *http.Client, logger output.LoggerPort, size int) *HTTPSink {
	if client == nil {
		client = &http.Client{Timeout: defaultPostTimeout}
	}
	if size <= 0 {
		size = defaultSinkQueue
	}
	s := &HTTPSink{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   client,
		logger:   logger.WithField("component", "progress-sink"),
		queue:    make(chan queuedEvent, size),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *HTTPSink) Emit(ctx context.Context, event entity.ProgressEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.logger.Debug("Progress sink closed, event dropped", "planId", event.PlanID, "phase", event.Phase)
		return
	}

	select {
	case s.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), event: event}:
	default:
		s.logger.Warn("Progress queue full, event dropped",
			"planId", event.PlanID,
			"phase", event.Phase,
			"step", event.Step,
		)
	}
}

// Close stops accepting events and waits until the queued ones are posted.
func (s *HTTPSink) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.queue)
		s.mu.Unlock()
	})
	<-s.done
	return nil
}

func (s *HTTPSink) run() {
	defer close(s.done)
	for q := range s.queue {
		if err := s.post(q.ctx, q.event); err != nil {
			s.logger.Warn("Progress event not delivered",
				"planId", q.event.PlanID,
				"phase", q.event.Phase,
				"error", err,
			)
		}
	}
}

func (s *HTTPSink) post(ctx context.Context, event entity.ProgressEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	// Delivery must not be cut short by a cancelled run.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultPostTimeout)
	defer cancel()

	target := s.endpoint + "/plans/" + url.PathEscape(event.PlanID) + "/events"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Fanout delivers every event to each sink in order.
type Fanout []output.ProgressSink

func (f Fanout) Emit(ctx context.Context, event entity.ProgressEvent) {
	for _, sink := range f {
		if sink != nil {
			sink.Emit(ctx, event)
		}
	}
}
