package bus

import (
	"context"
	"testing"
	"time"
)

func TestPublishConsumeInbound(t *testing.T) {
	t.Parallel()

	mb := NewMessageBus()
	defer mb.Close()

	mb.PublishInbound(InboundMessage{
		Channel:    "onebot",
		SenderID:   "111",
		ChatID:     "onebot:111",
		Content:    "hello",
		SessionKey: "onebot:111",
		MediaPaths: []string{"/tmp/a.jpg"},
		MediaPath:  "/tmp/a.jpg",
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := mb.ConsumeInbound(ctx)
	if !ok {
		t.Fatal("expected a message")
	}
	if msg.Content != "hello" || msg.MediaPath != "/tmp/a.jpg" {
		t.Errorf("unexpected message: %+v", msg)
	}
}

func TestPublishAfterCloseDoesNotPanic(t *testing.T) {
	t.Parallel()

	mb := NewMessageBus()
	mb.Close()
	mb.Close()

	mb.PublishInbound(InboundMessage{Channel: "onebot"})
	mb.PublishOutbound(OutboundMessage{Channel: "onebot"})
}

func TestSubscribeOutboundRespectsContext(t *testing.T) {
	t.Parallel()

	mb := NewMessageBus()
	defer mb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := mb.SubscribeOutbound(ctx); ok {
		t.Error("cancelled context should report no message")
	}
}

func TestHandlerRegistry(t *testing.T) {
	t.Parallel()

	mb := NewMessageBus()
	defer mb.Close()

	called := false
	mb.RegisterHandler("onebot", func(InboundMessage) error {
		called = true
		return nil
	})

	h, ok := mb.GetHandler("onebot")
	if !ok {
		t.Fatal("handler not registered")
	}
	if err := h(InboundMessage{}); err != nil || !called {
		t.Error("handler not invoked")
	}
	if _, ok := mb.GetHandler("telegram"); ok {
		t.Error("unregistered channel should not resolve")
	}
}
