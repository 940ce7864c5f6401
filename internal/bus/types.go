package bus

// InboundMessage represents a message received from a channel account.
type InboundMessage struct {
	Channel    string            `json:"channel"`
	AccountID  string            `json:"account_id,omitempty"` // bot account within the channel
	SenderID   string            `json:"sender_id"`
	SenderName string            `json:"sender_name,omitempty"`
	ChatID     string            `json:"chat_id"`
	Content    string            `json:"content"`
	PeerKind   string            `json:"peer_kind,omitempty"`   // "direct" or "group"
	AgentID    string            `json:"agent_id,omitempty"`    // target agent (for multi-agent routing)
	SessionKey string            `json:"session_key,omitempty"` // canonical session key built by the channel
	MessageID  string            `json:"message_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage represents a message to be sent to a channel.
type OutboundMessage struct {
	Channel  string            `json:"channel"`
	ChatID   string            `json:"chat_id"`
	Content  string            `json:"content"`
	MediaURL string            `json:"media_url,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"` // channel-specific metadata
}
