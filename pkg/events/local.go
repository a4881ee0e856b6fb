package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	localTopic = "chatedge.events"

	metaEventType  = "event_type"
	metaOccurredAt = "occurred_at"
)

// LocalBus is the in-process event bus used when no NATS server is
// configured. Events are only seen by subscribers of this process and are
// lost on restart.
type LocalBus struct {
	pubSub *gochannel.GoChannel
}

var _ Publisher = (*LocalBus)(nil)

func NewLocalBus() *LocalBus {
	return &LocalBus{
		pubSub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			watermill.NewStdLogger(false, false),
		),
	}
}

func (b *LocalBus) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(metaEventType, event.EventType())
	msg.Metadata.Set(metaOccurredAt, event.Timestamp().Format(time.RFC3339Nano))
	msg.SetContext(ctx)

	if err := b.pubSub.Publish(localTopic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.EventType(), err)
	}
	return nil
}

// Subscribe delivers events whose subject matches. Subjects use the NATS
// form: an exact SubjectPrefix+type, or a trailing ">" for a prefix match.
// The consumer name is accepted for parity with the NATS subscriber.
func (b *LocalBus) Subscribe(ctx context.Context, subject string, consumer string, handler Handler) error {
	messages, err := b.pubSub.Subscribe(ctx, localTopic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", consumer, err)
	}

	go func() {
		for msg := range messages {
			event, err := decodeLocal(msg)
			if err == nil && matchSubject(subject, SubjectPrefix+event.Type) {
				// No redelivery in-process; a failed handler has already logged.
				_ = handler(ctx, event)
			}
			msg.Ack()
		}
	}()
	return nil
}

func (b *LocalBus) Close() error {
	return b.pubSub.Close()
}

func decodeLocal(msg *message.Message) (BaseEvent, error) {
	var data map[string]interface{}
	if err := json.Unmarshal(msg.Payload, &data); err != nil {
		return BaseEvent{}, fmt.Errorf("unmarshal event payload: %w", err)
	}
	occurredAt := time.Now()
	if t, err := time.Parse(time.RFC3339Nano, msg.Metadata.Get(metaOccurredAt)); err == nil {
		occurredAt = t
	}
	return BaseEvent{Type: msg.Metadata.Get(metaEventType), Data: data, OccurredAt: occurredAt}, nil
}

func matchSubject(pattern, subject string) bool {
	if prefix, ok := strings.CutSuffix(pattern, ">"); ok {
		return strings.HasPrefix(subject, prefix)
	}
	return pattern == subject
}
