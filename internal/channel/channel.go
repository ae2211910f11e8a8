// Package channel holds the chat transports that feed the message bus.
package channel

import (
	"context"

	"go.uber.org/zap"

	"github.com/stellarlinkco/edusphere/internal/bus"
)

type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Send(msg bus.OutboundMessage) error
}

// BaseChannel carries what every transport shares: its name, the bus and
// an optional sender allow-list.
type BaseChannel struct {
	name      string
	bus       *bus.MessageBus
	allowFrom map[string]struct{}
	logger    *zap.Logger
}

func NewBaseChannel(name string, b *bus.MessageBus, allowFrom []string) BaseChannel {
	var allowed map[string]struct{}
	if len(allowFrom) > 0 {
		allowed = make(map[string]struct{}, len(allowFrom))
		for _, id := range allowFrom {
			allowed[id] = struct{}{}
		}
	}
	return BaseChannel{
		name:      name,
		bus:       b,
		allowFrom: allowed,
		logger:    zap.NewNop(),
	}
}

func (c *BaseChannel) Name() string { return c.name }

// IsAllowed reports whether senderID may talk to the bot. An empty
// allow-list admits everyone.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowFrom) == 0 {
		return true
	}
	_, ok := c.allowFrom[senderID]
	return ok
}

// SetLogger replaces the channel's logger; nil is ignored.
func (c *BaseChannel) SetLogger(logger *zap.Logger) {
	if logger != nil {
		c.logger = logger.Named(c.name)
	}
}

// publish hands msg to the gateway, giving up when ctx is done.
func (c *BaseChannel) publish(ctx context.Context, msg bus.InboundMessage) bool {
	select {
	case c.bus.Inbound <- msg:
		return true
	case <-ctx.Done():
		c.logger.Warn("inbound message dropped",
			zap.String("chat_id", msg.ChatID),
			zap.Error(ctx.Err()))
		return false
	}
}
