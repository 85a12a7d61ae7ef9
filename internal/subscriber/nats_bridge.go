package subscriber

import (
	"eis-ingest-be/pkg/events"
)

// EventPublisher is satisfied by *nats.Publisher.
type EventPublisher interface {
	PublishAsync(event events.Event) error
}

// NatsBridge mirrors every hub event onto the message bus.
type NatsBridge struct {
	publisher EventPublisher
}

func NewNatsBridge(publisher EventPublisher) *NatsBridge {
	return &NatsBridge{publisher: publisher}
}

func (b *NatsBridge) Notify(e events.Event) error {
	return b.publisher.PublishAsync(e)
}
