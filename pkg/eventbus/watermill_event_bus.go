package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/vaultpilot/automations/pkg/events"
)

// WatermillEventBus carries events over a watermill publisher/subscriber
// pair. The engine runs it over an in-process gochannel pub/sub; the host can
// substitute any other watermill transport.
type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	subscriptions map[events.EventType]EventHandler
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) EventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		subscriptions: make(map[events.EventType]EventHandler),
	}
}

// NewGoChannelEventBus builds an in-process bus where publisher and
// subscriber share one gochannel.
func NewGoChannelEventBus(logger *slog.Logger) EventBus {
	channel := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(logger))

	return NewWatermillEventBus(channel, channel)
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(events.Topic, msg)
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) {
	eb.subscriptions[eventType] = handler
}

func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

			handler, exists := eb.subscriptions[eventType]
			if !exists {
				msg.Ack()

				continue
			}

			event := newEvent(eventType)
			if event == nil {
				msg.Nack()

				continue
			}

			if err := json.Unmarshal(msg.Payload, event); err != nil {
				msg.Nack()

				continue
			}

			if err := handler(ctx, event); err != nil {
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

// newEvent maps an event type to a fresh instance for decoding.
func newEvent(eventType events.EventType) any {
	switch eventType {
	case events.NoteCreatedEvent:
		return &events.NoteCreated{}
	case events.NoteModifiedEvent:
		return &events.NoteModified{}
	case events.NoteDeletedEvent:
		return &events.NoteDeleted{}
	case events.TagsChangedEvent:
		return &events.TagsChanged{}
	case events.VaultOpenedEvent:
		return &events.VaultOpened{}
	case events.StartupEvent:
		return &events.Startup{}
	case events.AutomationTriggeredEvent:
		return &events.AutomationTriggered{}
	case events.AutomationFinishedEvent:
		return &events.AutomationFinished{}
	case events.AutomationFailedEvent:
		return &events.AutomationFailed{}
	default:
		return nil
	}
}

func (eb *WatermillEventBus) Close() error {
	if err := eb.publisher.Close(); err != nil {
		return err
	}

	// A gochannel bus uses one value for both roles; close it only once.
	if any(eb.subscriber) != any(eb.publisher) {
		return eb.subscriber.Close()
	}

	return nil
}
