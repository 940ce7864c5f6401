package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/napclaw/internal/bus"
	"github.com/nextlevelbuilder/napclaw/internal/channels"
	"github.com/nextlevelbuilder/napclaw/internal/config"
	"github.com/nextlevelbuilder/napclaw/internal/dispatch"
	"github.com/nextlevelbuilder/napclaw/internal/store"
)

// consumer drains the inbound bus and runs each message through dispatch.
type consumer struct {
	cfg       *config.Config
	bus       *bus.MessageBus
	manager   *channels.Manager
	store     *store.SessionStore
	responder dispatch.Responder
}

func newConsumer(cfg *config.Config, msgBus *bus.MessageBus, manager *channels.Manager,
	sessionStore *store.SessionStore, responder dispatch.Responder) *consumer {
	return &consumer{
		cfg:       cfg,
		bus:       msgBus,
		manager:   manager,
		store:     sessionStore,
		responder: responder,
	}
}

// run processes inbound messages until the context closes. Messages are
// handled sequentially: QQ conversations expect replies in order.
func (c *consumer) run(ctx context.Context) {
	for {
		msg, ok := c.bus.ConsumeInbound(ctx)
		if !ok {
			return
		}
		c.handle(ctx, msg)
	}
}

func (c *consumer) handle(ctx context.Context, msg bus.InboundMessage) {
	content := msg.Content
	if max := c.cfg.Gateway.MaxMessageChars; max > 0 && len(content) > max {
		slog.Warn("inbound message truncated",
			"chat_id", msg.ChatID, "size", len(content), "max", max)
		content = channels.Clip(content, max)
	}

	if err := c.store.Touch(ctx, msg.SessionKey, msg.AgentID, msg.Channel, msg.ChatID); err != nil {
		slog.Warn("session touch failed", "session", msg.SessionKey, "error", err)
	}

	timeout := time.Duration(c.cfg.Agent.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := dispatch.Request{
		AgentID:    msg.AgentID,
		SessionKey: msg.SessionKey,
		Channel:    msg.Channel,
		AccountID:  msg.AccountID,
		ChatID:     msg.ChatID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		PeerKind:   msg.PeerKind,
		MessageID:  msg.MessageID,
		Content:    content,
		Metadata:   msg.Metadata,
	}

	deliver := func(ctx context.Context, reply dispatch.Reply) error {
		out := bus.OutboundMessage{
			Channel:  msg.Channel,
			ChatID:   msg.ChatID,
			Content:  reply.Text,
			MediaURL: reply.MediaURL,
			Metadata: map[string]string{},
		}
		if msg.AccountID != "" {
			out.Metadata["account_id"] = msg.AccountID
		}
		// The reply segment references the message being answered.
		if msg.MessageID != "" {
			out.Metadata["reply_to"] = msg.MessageID
		}
		return c.manager.Send(ctx, out)
	}

	// Dispatch errors are already logged with run context; nothing to do here.
	_ = dispatch.Run(runCtx, c.responder, req, deliver)
}
