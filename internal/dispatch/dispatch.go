// Package dispatch runs one inbound message through the agent backend and
// delivers whatever comes back. It owns the reply/skip accounting and the
// fallback reply for runs that produce nothing deliverable.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// FallbackText is sent when a run finishes with no delivered reply and at
// least one non-silent skip. Silent skips produce nothing.
const FallbackText = "No response generated. Please try again."

// Request carries everything the agent backend needs to produce a reply.
type Request struct {
	RunID      string            `json:"run_id"`
	AgentID    string            `json:"agent_id"`
	SessionKey string            `json:"session_key"`
	Channel    string            `json:"channel"`
	AccountID  string            `json:"account_id,omitempty"`
	ChatID     string            `json:"chat_id"`
	SenderID   string            `json:"sender_id"`
	SenderName string            `json:"sender_name,omitempty"`
	PeerKind   string            `json:"peer_kind"`
	MessageID  string            `json:"message_id,omitempty"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Reply is one deliverable unit of agent output.
type Reply struct {
	Text     string `json:"text,omitempty"`
	MediaURL string `json:"media_url,omitempty"`
}

// Skip records that the agent declined to answer. Silent skips are expected
// (e.g. the agent chose not to respond in a group), non-silent ones mean the
// user is owed an explanation.
type Skip struct {
	Reason string `json:"reason,omitempty"`
	Silent bool   `json:"silent,omitempty"`
}

// Outcome is the full result of one agent run.
type Outcome struct {
	Replies []Reply `json:"replies,omitempty"`
	Skips   []Skip  `json:"skips,omitempty"`
}

// Responder produces an outcome for a request. Implementations talk to the
// agent backend.
type Responder interface {
	Respond(ctx context.Context, req Request) (Outcome, error)
}

// DeliverFunc sends one reply back to the originating chat.
type DeliverFunc func(ctx context.Context, reply Reply) error

var tracer = otel.Tracer("napclaw/dispatch")

// Run executes one dispatch: ask the responder, deliver every non-empty
// reply, and send the fallback when nothing was delivered but a non-silent
// skip occurred. Delivery errors are logged, not propagated; a responder
// error is returned after the fallback attempt.
func Run(ctx context.Context, responder Responder, req Request, deliver DeliverFunc) error {
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}

	ctx, span := tracer.Start(ctx, "dispatch.run",
		trace.WithAttributes(
			attribute.String("run.id", req.RunID),
			attribute.String("agent.id", req.AgentID),
			attribute.String("channel", req.Channel),
			attribute.String("chat.id", req.ChatID),
			attribute.String("peer.kind", req.PeerKind),
		))
	defer span.End()

	start := time.Now()
	outcome, err := responder.Respond(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "agent run failed")
		slog.Error("agent run failed",
			"run_id", req.RunID, "agent", req.AgentID, "error", err)
		sendFallback(ctx, req, deliver)
		return err
	}

	delivered := 0
	for _, reply := range outcome.Replies {
		if reply.Text == "" && reply.MediaURL == "" {
			continue
		}
		if err := deliver(ctx, reply); err != nil {
			slog.Error("reply delivery failed",
				"run_id", req.RunID, "chat_id", req.ChatID, "error", err)
			continue
		}
		delivered++
	}

	nonSilent := 0
	for _, skip := range outcome.Skips {
		if !skip.Silent {
			nonSilent++
		}
		slog.Debug("agent skipped",
			"run_id", req.RunID, "reason", skip.Reason, "silent", skip.Silent)
	}

	if delivered == 0 && nonSilent > 0 {
		sendFallback(ctx, req, deliver)
	}

	span.SetAttributes(
		attribute.Int("replies.delivered", delivered),
		attribute.Int("skips.non_silent", nonSilent),
	)
	slog.Info("dispatch complete",
		"run_id", req.RunID,
		"agent", req.AgentID,
		"delivered", delivered,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func sendFallback(ctx context.Context, req Request, deliver DeliverFunc) {
	if err := deliver(ctx, Reply{Text: FallbackText}); err != nil {
		slog.Error("fallback delivery failed",
			"run_id", req.RunID, "chat_id", req.ChatID, "error", err)
	}
}
