package qq

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/nextlevelbuilder/napclaw/internal/bus"
	"github.com/nextlevelbuilder/napclaw/internal/channels"
	"github.com/nextlevelbuilder/napclaw/internal/channels/qq/onebot"
	"github.com/nextlevelbuilder/napclaw/internal/config"
)

// ChannelName is the channel identifier used in routing and session keys.
const ChannelName = "qq"

// runningAccount bundles one started account with its protocol handles.
// The monitor owns the socket exclusively; accounts never share state
// beyond the read-only config snapshot.
type runningAccount struct {
	account Account
	client  *onebot.Client
	monitor *onebot.Monitor
}

// Channel connects QQ accounts to the message bus via NapCat bridges.
type Channel struct {
	*channels.BaseChannel
	cfg *config.Config

	mu       sync.Mutex
	accounts map[string]*runningAccount
}

// New creates the QQ channel from config.
func New(cfg *config.Config, msgBus *bus.MessageBus) *Channel {
	return &Channel{
		BaseChannel: channels.NewBaseChannel(ChannelName, msgBus, cfg.Channels.QQ.AllowFrom),
		cfg:         cfg,
		accounts:    make(map[string]*runningAccount),
	}
}

// Start resolves all accounts and opens one event monitor per usable one.
// Fails when no account can be started — a misconfigured single-account
// setup should surface at startup, not sit silent.
func (c *Channel) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ListAccountIDs(c.cfg) {
		acct := ResolveAccount(c.cfg, id)
		if !acct.Enabled {
			slog.Info("qq account disabled, skipping", "account", id)
			continue
		}
		if acct.WSURL == "" {
			slog.Warn("qq account has no ws_url, skipping", "account", id)
			continue
		}

		ra := &runningAccount{
			account: acct,
			client:  onebot.NewClient(acct.HTTPURL, acct.AccessToken),
		}

		monitor, err := onebot.StartMonitor(ctx, onebot.MonitorOptions{
			WSURL:             acct.WSURL,
			AccessToken:       acct.AccessToken,
			ReconnectInterval: acct.ReconnectInterval,
			OnMessage:         func(ev *onebot.Event) { c.handleMessage(ra, ev) },
			OnError: func(err error) {
				slog.Warn("qq event stream error", "account", acct.ID, "error", err)
			},
		})
		if err != nil {
			return fmt.Errorf("qq account %s: %w", id, err)
		}
		ra.monitor = monitor
		c.accounts[id] = ra

		slog.Info("qq account started",
			"account", id,
			"ws_url", acct.WSURL,
			"token_source", acct.TokenSource,
		)
	}

	if len(c.accounts) == 0 {
		return fmt.Errorf("qq: no usable accounts (ws_url is required)")
	}

	c.SetRunning(true)
	return nil
}

// Stop closes every account monitor. Idempotent.
func (c *Channel) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, ra := range c.accounts {
		ra.monitor.Close()
		delete(c.accounts, id)
	}
	c.SetRunning(false)
	return nil
}

// handleMessage turns one wire message event into a routed inbound message.
// Runs on the monitor's dispatch path — sequential per account.
func (c *Channel) handleMessage(ra *runningAccount, ev *onebot.Event) {
	// Echoes of the bot's own messages are not conversation input.
	if ev.SelfID != 0 && ev.UserID.String() == strconv.FormatInt(ev.SelfID, 10) {
		return
	}

	msg := onebot.ParseIncoming(ev, ra.account.ID)
	if msg.Text == "" {
		return
	}

	if !c.CheckPolicy(string(msg.ChatType), ra.account.DMPolicy, ra.account.GroupPolicy, msg.SenderID, ra.account.AllowFrom) {
		slog.Debug("qq message rejected by policy",
			"account", ra.account.ID, "sender", msg.SenderID, "chat_type", msg.ChatType)
		return
	}

	mctx := BuildContext(msg, c.cfg, ra.account)
	if mctx == nil {
		slog.Warn("qq message dropped: no route",
			"account", ra.account.ID, "sender", msg.SenderID)
		return
	}

	slog.Debug("qq message received",
		"account", ra.account.ID,
		"chat_id", mctx.ChatID,
		"sender", msg.SenderID,
		"preview", channels.Truncate(msg.Text, 50),
	)

	inbound := bus.InboundMessage{
		Channel:    ChannelName,
		AccountID:  ra.account.ID,
		SenderID:   mctx.SenderID,
		SenderName: mctx.SenderName,
		ChatID:     mctx.ChatID,
		Content:    mctx.Text,
		PeerKind:   string(mctx.PeerKind),
		AgentID:    mctx.AgentID,
		SessionKey: mctx.SessionKey,
		MessageID:  mctx.MessageID,
		Metadata: map[string]string{
			"peer_id": msg.PeerID,
		},
	}
	if msg.GroupID != "" {
		inbound.Metadata["group_id"] = msg.GroupID
	}
	if msg.ReplyToID != "" {
		inbound.Metadata["reply_to"] = msg.ReplyToID
	}

	if err := c.Bus().PublishInbound(context.Background(), inbound); err != nil {
		slog.Error("qq publish inbound failed", "error", err)
	}
}

// Send delivers an outbound message. Group vs direct is re-derived from the
// target string via ParseTarget — the addressing convention, not the inbound
// classification, decides the send path.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	ra := c.accountFor(msg.Metadata["account_id"])
	if ra == nil {
		return fmt.Errorf("qq channel not running")
	}

	isGroup, targetID := ParseTarget(msg.ChatID)
	if targetID == "" {
		return fmt.Errorf("qq: empty send target")
	}

	replyTo := msg.Metadata["reply_to"]
	if ra.account.ReplyToMode == "" || ra.account.ReplyToMode == "off" {
		replyTo = ""
	}

	chunks := chunkText(msg.Content, ra.account.TextChunkLimit)
	if len(chunks) == 0 && msg.MediaURL != "" {
		chunks = []string{""} // media-only send
	}

	for i, chunk := range chunks {
		// Segment order matters: reply reference, then media, then text.
		var segments []onebot.Segment
		if replyTo != "" && (ra.account.ReplyToMode == "all" || i == 0) {
			segments = append(segments, onebot.ReplySegment(replyTo))
		}
		if i == 0 && msg.MediaURL != "" {
			segments = append(segments, onebot.ImageSegment(msg.MediaURL))
		}
		if chunk != "" {
			segments = append(segments, onebot.TextSegment(chunk))
		}
		if len(segments) == 0 {
			continue
		}

		var err error
		if isGroup {
			_, err = ra.client.SendGroupMsg(ctx, targetID, segments)
		} else {
			_, err = ra.client.SendPrivateMsg(ctx, targetID, segments)
		}
		if err != nil {
			return fmt.Errorf("qq send to %s: %w", msg.ChatID, err)
		}
	}
	return nil
}

// accountFor returns the running account by id, or any running account when
// id is empty (single-account deployments).
func (c *Channel) accountFor(id string) *runningAccount {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id != "" {
		return c.accounts[id]
	}
	if ra, ok := c.accounts[config.DefaultQQAccountID]; ok {
		return ra
	}
	for _, ra := range c.accounts {
		return ra
	}
	return nil
}

// chunkText splits text into chunks of at most limit bytes, preferring to
// break on a newline past the midpoint.
func chunkText(text string, limit int) []string {
	if text == "" {
		return nil
	}
	if limit <= 0 {
		return []string{text}
	}
	var chunks []string
	for len(text) > 0 {
		chunk := text
		if len(chunk) > limit {
			cutAt := limit
			if idx := strings.LastIndex(text[:limit], "\n"); idx > limit/2 {
				cutAt = idx + 1
			}
			chunk = text[:cutAt]
			text = text[cutAt:]
		} else {
			text = ""
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}
