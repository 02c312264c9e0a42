// ABOUTME: Message types carried over the internal bus.
// ABOUTME: Inbound flows from channels to the agent; outbound flows back.

package bus

// InboundMessage is a request handed from a channel to the agent side.
type InboundMessage struct {
	Channel  string // originating channel, e.g. "web"
	SenderID string
	ChatID   string // conversation key; for the web channel this is the correlation id
	Content  string
}

// SessionKey identifies the conversation this message belongs to.
func (m InboundMessage) SessionKey() string {
	return m.Channel + ":" + m.ChatID
}

// OutboundMessage is a response produced by the agent side for a channel.
type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
}
