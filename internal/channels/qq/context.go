package qq

import (
	"github.com/nextlevelbuilder/napclaw/internal/channels/qq/onebot"
	"github.com/nextlevelbuilder/napclaw/internal/config"
	"github.com/nextlevelbuilder/napclaw/internal/sessions"
)

// MsgContext is the routing outcome for one inbound message: which agent,
// which session, and where a reply must be delivered. Transient, not
// persisted.
type MsgContext struct {
	AgentID    string
	SessionKey string

	// ChatID is the delivery address, "group:<groupId>" or "user:<senderId>".
	// Not the same as the inbound peer id, which may carry a ":sender"
	// suffix for groups.
	ChatID   string
	PeerKind sessions.PeerKind

	AccountID  string
	MessageID  string
	SenderID   string
	SenderName string
	Text       string
	ReplyToID  string
}

// BuildContext derives the routing context for a parsed inbound message.
// Returns nil when no route can be produced — a soft skip: the caller logs
// and drops the message.
func BuildContext(msg *onebot.IncomingMessage, cfg *config.Config, acct Account) *MsgContext {
	var (
		peerKind sessions.PeerKind
		chatID   string
		routeID  string // raw platform id used for binding peer matches
	)

	switch msg.ChatType {
	case onebot.ChatGroup:
		if msg.GroupID == "" {
			return nil
		}
		peerKind = sessions.PeerGroup
		chatID = "group:" + msg.GroupID
		routeID = msg.GroupID
	default:
		if msg.SenderID == "" {
			return nil
		}
		peerKind = sessions.PeerDirect
		chatID = "user:" + msg.SenderID
		routeID = msg.SenderID
	}

	agentID := cfg.ResolveAgentRoute(ChannelName, acct.ID, routeID, string(peerKind))
	if agentID == "" {
		return nil
	}

	var sessionKey string
	if peerKind == sessions.PeerGroup {
		// Group sessions are thread-scoped by the group id.
		sessionKey = sessions.BuildGroupThreadSessionKey(agentID, ChannelName, msg.GroupID, msg.GroupID)
	} else {
		sessionKey = sessions.BuildScopedSessionKey(agentID, ChannelName, peerKind, msg.PeerID,
			cfg.Sessions.Scope, cfg.Sessions.DmScope, cfg.Sessions.MainKey)
	}

	return &MsgContext{
		AgentID:    agentID,
		SessionKey: sessionKey,
		ChatID:     chatID,
		PeerKind:   peerKind,
		AccountID:  msg.AccountID,
		MessageID:  msg.MessageID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Text:       msg.Text,
		ReplyToID:  msg.ReplyToID,
	}
}
