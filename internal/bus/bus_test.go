package bus

import (
	"context"
	"testing"
	"time"
)

func TestPublishConsumeInbound(t *testing.T) {
	mb := New()
	defer mb.Close()

	msg := InboundMessage{Channel: "qq", SenderID: "123", ChatID: "123", Content: "hi"}
	if err := mb.PublishInbound(context.Background(), msg); err != nil {
		t.Fatalf("PublishInbound: %v", err)
	}

	got, ok := mb.ConsumeInbound(context.Background())
	if !ok {
		t.Fatal("ConsumeInbound returned not ok")
	}
	if got.Content != "hi" || got.Channel != "qq" {
		t.Errorf("got %+v, want content=hi channel=qq", got)
	}
}

func TestPublishAfterClose(t *testing.T) {
	mb := New()
	mb.Close()

	if err := mb.PublishInbound(context.Background(), InboundMessage{}); err != ErrBusClosed {
		t.Errorf("PublishInbound after close = %v, want ErrBusClosed", err)
	}
	if err := mb.PublishOutbound(context.Background(), OutboundMessage{}); err != ErrBusClosed {
		t.Errorf("PublishOutbound after close = %v, want ErrBusClosed", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	mb := New()
	mb.Close()
	mb.Close() // must not panic
}

func TestConsumeCancelled(t *testing.T) {
	mb := New()
	defer mb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, ok := mb.ConsumeInbound(ctx); ok {
		t.Error("ConsumeInbound on cancelled ctx returned ok")
	}
}

func TestOutboundRoundTrip(t *testing.T) {
	mb := New()
	defer mb.Close()

	out := OutboundMessage{Channel: "qq", ChatID: "group:555", Content: "ok"}
	if err := mb.PublishOutbound(context.Background(), out); err != nil {
		t.Fatalf("PublishOutbound: %v", err)
	}
	got, ok := mb.SubscribeOutbound(context.Background())
	if !ok || got.ChatID != "group:555" {
		t.Errorf("SubscribeOutbound = %+v ok=%v", got, ok)
	}
}
