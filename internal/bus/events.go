package bus

import (
	"time"

	"github.com/stellarlinkco/edusphere/internal/nav"
)

// Commands carried by InboundMessage.Command.
const (
	CommandReset = "reset"
)

type InboundMessage struct {
	Channel   string
	SenderID  string
	ChatID    string
	Content   string
	Timestamp time.Time
	// Command is empty for a chat message.
	Command  string
	Metadata map[string]any
}

func (m *InboundMessage) SessionKey() string {
	return m.Channel + ":" + m.ChatID
}

type OutboundMessage struct {
	Channel  string
	ChatID   string
	Content  string
	Segments []nav.Segment
	ReplyTo  string
	Metadata map[string]any
}
