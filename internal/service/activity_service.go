package service

import (
	"context"
	"sync"

	"chatedge-be/internal/pkg/logger"
	"chatedge-be/pkg/events"
)

const activityConsumer = "chatedge-activity"

// EventSource is a bus that can attach a named consumer to a subject.
// Satisfied by the NATS subscriber and events.LocalBus.
type EventSource interface {
	Subscribe(ctx context.Context, subject string, consumer string, handler events.Handler) error
}

// ActivityService consumes domain events from the bus and records them in
// the application log.
type ActivityService struct {
	source EventSource
	logger logger.ILogger

	mu     sync.Mutex
	counts map[string]int64
}

func NewActivityService(source EventSource, log logger.ILogger) *ActivityService {
	return &ActivityService{
		source: source,
		logger: log,
		counts: make(map[string]int64),
	}
}

// Start attaches the consumer. A nil source makes it a no-op.
func (s *ActivityService) Start(ctx context.Context) error {
	if s.source == nil {
		return nil
	}
	if err := s.source.Subscribe(ctx, events.AllEvents, activityConsumer, s.HandleEvent); err != nil {
		return err
	}
	s.logger.Info("ActivityService", "Listening for domain events", map[string]interface{}{"subject": events.AllEvents})
	return nil
}

func (s *ActivityService) HandleEvent(ctx context.Context, event events.Event) error {
	s.mu.Lock()
	s.counts[event.EventType()]++
	s.mu.Unlock()

	details := map[string]interface{}{
		"type":        event.EventType(),
		"occurred_at": event.Timestamp(),
	}
	for k, v := range event.Payload() {
		details[k] = v
	}
	s.logger.Info("ActivityService", "Domain event", details)
	return nil
}

// Counts returns how many events of each type were handled.
func (s *ActivityService) Counts() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}
