package bus

import (
	"context"
	"sync"
)

type OutboundHandler func(OutboundMessage)

// MessageBus decouples transports from the gateway. Transports push to
// Inbound; the gateway pushes replies to Outbound and DispatchOutbound fans
// them out to the subscriber registered for the message's channel.
type MessageBus struct {
	Inbound  chan InboundMessage
	Outbound chan OutboundMessage

	mu          sync.RWMutex
	subscribers map[string]OutboundHandler
}

func NewMessageBus(size int) *MessageBus {
	if size < 0 {
		size = 0
	}
	return &MessageBus{
		Inbound:     make(chan InboundMessage, size),
		Outbound:    make(chan OutboundMessage, size),
		subscribers: make(map[string]OutboundHandler),
	}
}

// SubscribeOutbound registers fn for messages addressed to channel,
// replacing any previous subscriber.
func (b *MessageBus) SubscribeOutbound(channel string, fn OutboundHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[channel] = fn
}

func (b *MessageBus) handler(channel string) (OutboundHandler, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	fn, ok := b.subscribers[channel]
	return fn, ok
}

// DispatchOutbound delivers outbound messages until ctx is done. Messages
// for a channel without a subscriber are dropped and reported to onDrop,
// if set.
func (b *MessageBus) DispatchOutbound(ctx context.Context, onDrop func(OutboundMessage)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.Outbound:
			fn, ok := b.handler(msg.Channel)
			if !ok {
				if onDrop != nil {
					onDrop(msg)
				}
				continue
			}
			fn(msg)
		}
	}
}
