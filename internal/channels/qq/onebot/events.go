// Package onebot implements the OneBot 11 wire protocol consumed from a
// NapCat bridge: the WebSocket event stream, the HTTP command API, and the
// segment message format.
package onebot

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Event post types. Only "message" is processed beyond the envelope.
const (
	PostTypeMessage   = "message"
	PostTypeNotice    = "notice"
	PostTypeRequest   = "request"
	PostTypeMetaEvent = "meta_event"
)

// Message types within a message event.
const (
	MessageTypePrivate = "private"
	MessageTypeGroup   = "group"
)

// Event is the OneBot 11 event envelope, discriminated by PostType.
// Fields beyond the envelope are populated only for their post type.
type Event struct {
	PostType string `json:"post_type"`
	Time     int64  `json:"time"` // unix seconds
	SelfID   int64  `json:"self_id,omitempty"`

	// message events
	MessageType string          `json:"message_type,omitempty"` // "private" | "group"
	SubType     string          `json:"sub_type,omitempty"`
	MessageID   json.Number     `json:"message_id,omitempty"`
	UserID      json.Number     `json:"user_id,omitempty"`
	GroupID     json.Number     `json:"group_id,omitempty"`
	Message     json.RawMessage `json:"message,omitempty"` // flat string OR []Segment
	RawMessage  string          `json:"raw_message,omitempty"`
	Sender      Sender          `json:"sender"`

	// meta events
	MetaEventType string `json:"meta_event_type,omitempty"`
}

// Sender describes the message author.
type Sender struct {
	UserID   json.Number `json:"user_id,omitempty"`
	Nickname string      `json:"nickname,omitempty"`
	Card     string      `json:"card,omitempty"` // group nickname override
}

// IsMessage reports whether the event is a message event.
func (e *Event) IsMessage() bool { return e.PostType == PostTypeMessage }

// Segment is one tagged unit of rich-message content.
type Segment struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Segment type tags. Only text and reply are interpreted on receive;
// the rest are forwarded opaquely on send or ignored.
const (
	SegText   = "text"
	SegImage  = "image"
	SegAt     = "at"
	SegReply  = "reply"
	SegFace   = "face"
	SegRecord = "record"
	SegVideo  = "video"
	SegFile   = "file"
)

// TextSegment builds an outbound text segment.
func TextSegment(text string) Segment {
	return Segment{Type: SegText, Data: map[string]any{"text": text}}
}

// ReplySegment builds an outbound reply-reference segment.
func ReplySegment(messageID string) Segment {
	return Segment{Type: SegReply, Data: map[string]any{"id": messageID}}
}

// ImageSegment builds an outbound image segment from a file path or URL.
func ImageSegment(file string) Segment {
	return Segment{Type: SegImage, Data: map[string]any{"file": file}}
}

// AtSegment builds an outbound @-mention segment.
func AtSegment(userID string) Segment {
	return Segment{Type: SegAt, Data: map[string]any{"qq": userID}}
}

// dataString extracts a string-ish value from segment data.
// Reply ids arrive as string or number depending on the bridge build.
func dataString(data map[string]any, key string) string {
	switch v := data[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// segments decodes the message body as a segment array.
// Returns (nil, false) when the body is a flat string or malformed.
func (e *Event) segments() ([]Segment, bool) {
	if len(e.Message) == 0 || e.Message[0] != '[' {
		return nil, false
	}
	var segs []Segment
	if err := json.Unmarshal(e.Message, &segs); err != nil {
		return nil, false
	}
	return segs, true
}

// flatText decodes the message body as a flat string.
func (e *Event) flatText() (string, bool) {
	if len(e.Message) == 0 || e.Message[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(e.Message, &s); err != nil {
		return "", false
	}
	return s, true
}

// ChatType distinguishes direct from group conversations.
type ChatType string

const (
	ChatDirect ChatType = "direct"
	ChatGroup  ChatType = "group"
)

// IncomingMessage is the channel-agnostic record a wire message event
// normalizes into. Constructed once per event, immutable, consumed
// synchronously — never persisted.
type IncomingMessage struct {
	AccountID  string
	ChatType   ChatType
	PeerID     string // user id, or "groupId[:senderId]" for groups
	SenderID   string
	SenderName string
	Text       string
	MessageID  string
	Timestamp  int64  // milliseconds
	ReplyToID  string // first reply segment id, if any
	GroupID    string
}

// ParseIncoming normalizes a message event into an IncomingMessage.
// Pure, no I/O, never fails: malformed or missing fields degrade to empty
// strings and absent optionals.
func ParseIncoming(ev *Event, accountID string) *IncomingMessage {
	msg := &IncomingMessage{
		AccountID: accountID,
		ChatType:  ChatDirect,
		MessageID: ev.MessageID.String(),
		Timestamp: ev.Time * 1000,
		SenderID:  ev.UserID.String(),
	}

	if ev.MessageType == MessageTypeGroup {
		msg.ChatType = ChatGroup
		msg.GroupID = ev.GroupID.String()
		msg.PeerID = msg.GroupID
		if msg.SenderID != "" {
			msg.PeerID = msg.GroupID + ":" + msg.SenderID
		}
	} else {
		msg.PeerID = msg.SenderID
	}

	// Display name: group card override, then nickname, then the raw id
	switch {
	case ev.Sender.Card != "":
		msg.SenderName = ev.Sender.Card
	case ev.Sender.Nickname != "":
		msg.SenderName = ev.Sender.Nickname
	default:
		msg.SenderName = msg.SenderID
	}

	if text, ok := ev.flatText(); ok {
		msg.Text = text
		return msg
	}

	if segs, ok := ev.segments(); ok {
		var b strings.Builder
		for _, seg := range segs {
			switch seg.Type {
			case SegText:
				b.WriteString(dataString(seg.Data, "text"))
			case SegReply:
				if msg.ReplyToID == "" {
					msg.ReplyToID = dataString(seg.Data, "id")
				}
			}
		}
		msg.Text = b.String()
	}

	return msg
}
