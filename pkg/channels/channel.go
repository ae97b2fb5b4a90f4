package channels

import (
	"context"

	"onebridge/pkg/bus"
)

// Channel is one messaging surface the gateway bridges.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
	HealthCheck(ctx context.Context) error
}

// BaseChannel carries the pieces every channel shares.
type BaseChannel struct {
	name string
	bus  *bus.MessageBus
}

func NewBaseChannel(name string, messageBus *bus.MessageBus) BaseChannel {
	return BaseChannel{name: name, bus: messageBus}
}

func (b *BaseChannel) Name() string {
	return b.name
}

// PublishInbound hands a normalized message to the host dispatcher.
func (b *BaseChannel) PublishInbound(msg bus.InboundMessage) {
	msg.Channel = b.name
	b.bus.PublishInbound(msg)
}
