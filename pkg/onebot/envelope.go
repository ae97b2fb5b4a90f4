package onebot

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"onebridge/pkg/bus"
)

// Route is where the host framework wants an inbound message delivered.
type Route struct {
	SessionKey string
	AccountID  string
	AgentID    string
}

// RouteResolver maps a chat identity to host session/agent ids. The host
// supplies its own; the default keys sessions by chat id.
type RouteResolver interface {
	Resolve(channel, senderID, chatID string) Route
}

// Formatter renders the display body shown in the agent transcript. It gets
// the current and previous message timestamps so it can decide whether to
// re-print a time header.
type Formatter interface {
	FormatDisplay(channel, senderLabel string, ts, prev time.Time, body string) string
}

type defaultResolver struct{}

func (defaultResolver) Resolve(channel, senderID, chatID string) Route {
	return Route{SessionKey: chatID, AccountID: senderID}
}

type defaultFormatter struct{}

func (defaultFormatter) FormatDisplay(channel, senderLabel string, ts, prev time.Time, body string) string {
	if prev.IsZero() || ts.Sub(prev) > 5*time.Minute {
		return fmt.Sprintf("[%s %s] %s: %s", channel, ts.Format("15:04"), senderLabel, body)
	}
	return fmt.Sprintf("[%s] %s: %s", channel, senderLabel, body)
}

// Builder assembles the normalized inbound envelope. It remembers the last
// timestamp per session so the formatter can suppress repeated time headers.
type Builder struct {
	resolver  RouteResolver
	formatter Formatter

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

func NewBuilder(resolver RouteResolver, formatter Formatter) *Builder {
	if resolver == nil {
		resolver = defaultResolver{}
	}
	if formatter == nil {
		formatter = defaultFormatter{}
	}
	return &Builder{
		resolver:  resolver,
		formatter: formatter,
		lastSeen:  make(map[string]time.Time),
	}
}

// ChatID is the adapter-scoped chat identifier for an event.
func ChatID(ev *MessageEvent) string {
	if ev.ChatKind == ChatGroup {
		return "onebot:group:" + ev.GroupID
	}
	return "onebot:private:" + ev.UserID
}

// Build produces the envelope for a policy-accepted event. Media fields are
// set only when the event actually carried materialized media: the host's
// media detector triggers on field presence, not emptiness.
func (b *Builder) Build(ev *MessageEvent, d Decision, arts []*Artifact) bus.InboundMessage {
	chatID := ChatID(ev)
	route := b.resolver.Resolve("onebot", ev.UserID, chatID)

	ts := time.Unix(ev.Time, 0)
	if ev.Time == 0 {
		ts = time.Now()
	}
	prev := b.swapLastSeen(route.SessionKey, ts)

	senderLabel := ev.SenderName
	if senderLabel == "" {
		senderLabel = ev.UserID
	}

	body := d.Content
	if extra := inlineArtifactText(arts); extra != "" {
		body = strings.TrimSpace(body + "\n" + extra)
	}

	msg := bus.InboundMessage{
		Channel:    "onebot",
		SenderID:   ev.UserID,
		SenderName: ev.SenderName,
		ChatID:     chatID,
		Content:    b.formatter.FormatDisplay("onebot", senderLabel, ts, prev, body),
		SessionKey: route.SessionKey,
		Timestamp:  ts.Unix(),
		Metadata: map[string]string{
			"protocol":        "onebot",
			"provider":        "qq",
			"surface":         ev.ChatKind,
			"raw_body":        body,
			"message_id":      ev.MessageID,
			"message_id_full": ev.MessageID,
			"was_mentioned":   fmt.Sprintf("%t", d.Mentioned),
			"account_id":      route.AccountID,
			"agent_id":        route.AgentID,
		},
	}

	var paths, urls, mimes []string
	for _, a := range arts {
		if a == nil || a.DataURL == "" || a.InlineText != "" || a.Placeholder != "" {
			continue
		}
		paths = append(paths, a.Path)
		urls = append(urls, a.DataURL)
		mimes = append(mimes, a.MIME)
	}
	if len(paths) > 0 {
		msg.MediaPaths = paths
		msg.MediaURLs = urls
		msg.MediaMIMEs = mimes
		msg.MediaPath = paths[0]
		msg.MediaURL = urls[0]
		msg.MediaMIME = mimes[0]
	}
	return msg
}

func (b *Builder) swapLastSeen(key string, ts time.Time) time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev := b.lastSeen[key]
	b.lastSeen[key] = ts
	return prev
}

// inlineArtifactText collects inlined text attachments and placeholders so
// they ride along in the body instead of the media arrays.
func inlineArtifactText(arts []*Artifact) string {
	var parts []string
	for _, a := range arts {
		if a == nil {
			continue
		}
		if a.InlineText != "" {
			parts = append(parts, a.InlineText)
		} else if a.Placeholder != "" {
			parts = append(parts, a.Placeholder)
		}
	}
	return strings.Join(parts, "\n")
}
