package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"onebridge/pkg/bus"
	"onebridge/pkg/config"
	"onebridge/pkg/logger"
	"onebridge/pkg/onebot"
	"onebridge/pkg/session"
)

const (
	// Inbound webhook bodies beyond this are rejected before parsing.
	maxWebhookBody = 1 << 20

	probeTimeout = 5 * time.Second

	quoteLookupTimeout = 8 * time.Second
)

// OneBotChannel bridges a OneBot v11 gateway (NapCat, Lagrange) to the host
// dispatcher: webhook or forward-WebSocket events in, HTTP action calls out.
type OneBotChannel struct {
	BaseChannel
	cfg      *config.Config
	client   *onebot.Client
	gate     *onebot.Gate
	mat      *onebot.Materializer
	builder  *onebot.Builder
	rec      *onebot.Reconciler
	sessions *session.Manager
	dedup    *dedupRing

	ws        cancelGuard
	wsBackoff time.Duration
}

// NewOneBotChannel wires the adapter components. sessions may be nil when
// the host does its own transcript recording.
func NewOneBotChannel(cfg *config.Config, messageBus *bus.MessageBus, sessions *session.Manager) (*OneBotChannel, error) {
	if cfg.OneBot.Endpoint == "" {
		return nil, fmt.Errorf("onebot endpoint is required")
	}
	client := onebot.NewClient(cfg.OneBot.Endpoint, cfg.OneBot.AccessToken)
	mat := onebot.NewMaterializer()
	return &OneBotChannel{
		BaseChannel: NewBaseChannel("onebot", messageBus),
		cfg:         cfg,
		client:      client,
		gate:        onebot.NewGate(cfg),
		mat:         mat,
		builder:     onebot.NewBuilder(nil, nil),
		rec:         onebot.NewReconciler(client, mat),
		sessions:    sessions,
		dedup:       newDedupRing(),
		wsBackoff:   wsReconnectDelay,
	}, nil
}

func (c *OneBotChannel) Start(ctx context.Context) error {
	if c.cfg.OneBot.Transport == "ws" {
		c.startWS(ctx)
		logger.InfoCF("onebot", "Channel started", map[string]interface{}{
			"transport": "ws", "ws_url": c.cfg.OneBot.WSUrl,
		})
		return nil
	}
	// Webhook transport: the HTTP server mounts WebhookHandler; nothing to
	// run here.
	logger.InfoCF("onebot", "Channel started", map[string]interface{}{
		"transport": "webhook", "path": c.cfg.OneBot.WebhookPath,
	})
	return nil
}

func (c *OneBotChannel) Stop(ctx context.Context) error {
	c.ws.cancelAndClear()
	logger.InfoC("onebot", "Channel stopped")
	return nil
}

// HealthCheck probes the gateway with a bounded deadline.
func (c *OneBotChannel) HealthCheck(ctx context.Context) error {
	return c.client.Probe(ctx, probeTimeout)
}

// WebhookHandler accepts gateway event pushes. The push is acknowledged
// immediately after parsing; the event is processed in the background so a
// slow agent never delays the gateway.
func (c *OneBotChannel) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "POST only")
			return
		}
		if !c.cfg.OneBot.Enabled {
			writeJSONError(w, http.StatusInternalServerError, "onebot channel is not enabled")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
		buf, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "read body: "+err.Error())
			return
		}

		raw, err := onebot.ParseEvent(buf)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))

		go c.processEvent(raw)
	})
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// processEvent is the async half of the webhook: any panic here is caught
// so a bad event can never take the process down.
func (c *OneBotChannel) processEvent(raw *onebot.RawEvent) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF("onebot", "panic while processing event", map[string]interface{}{
				"panic": fmt.Sprintf("%v", r),
			})
		}
	}()

	switch raw.PostType {
	case onebot.PostMessage:
		c.handleMessage(raw)
	case onebot.PostMetaEvent:
		logger.DebugCF("onebot", "meta event", map[string]interface{}{
			"type": raw.MetaEventType,
		})
	case onebot.PostNotice:
		logger.DebugCF("onebot", "notice event ignored", map[string]interface{}{
			"type": raw.NoticeType,
		})
	case onebot.PostRequest:
		logger.InfoCF("onebot", "request event ignored", map[string]interface{}{
			"type": raw.RequestType,
		})
	default:
		logger.DebugCF("onebot", "unknown post type", map[string]interface{}{
			"type": raw.PostType,
		})
	}
}

func (c *OneBotChannel) handleMessage(raw *onebot.RawEvent) {
	ev, err := raw.DecodeMessage()
	if err != nil {
		logger.WarnCF("onebot", "undecodable message event", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
		return
	}
	if c.dedup.Seen(ev.MessageID) {
		logger.DebugCF("onebot", "duplicate message dropped", map[string]interface{}{
			logger.FieldMessageID: ev.MessageID,
		})
		return
	}
	if ev.SelfID > 0 {
		c.cfg.SetSelfID(ev.SelfID)
	}
	if fmt.Sprintf("%d", ev.SelfID) == ev.UserID {
		return // our own echo
	}

	text := onebot.ExtractText(ev.Segments)
	media := onebot.ExtractMedia(ev.Segments)

	decision := c.gate.Evaluate(ev, text, media)
	if !decision.Accept {
		logger.DebugCF("onebot", "event rejected by policy", map[string]interface{}{
			"reason":             decision.Reason,
			logger.FieldSenderID: ev.UserID,
			logger.FieldGroupID:  ev.GroupID,
		})
		return
	}

	decision.Content = c.expandReply(ev, decision.Content)

	arts := c.materializeAll(media)

	SetLastSender(&SenderContext{
		UserID:   ev.UserID,
		ChatKind: ev.ChatKind,
		GroupID:  ev.GroupID,
		ChatID:   onebot.ChatID(ev),
	})

	msg := c.builder.Build(ev, decision, arts)
	c.recordSession(msg)

	logger.InfoCF("onebot", "inbound message", map[string]interface{}{
		logger.FieldChatID:    msg.ChatID,
		logger.FieldSenderID:  msg.SenderID,
		logger.FieldMessageID: ev.MessageID,
		logger.FieldPreview:   truncateString(decision.Content, 80),
		"media":               len(msg.MediaPaths),
	})
	c.PublishInbound(msg)
}

// expandReply prepends the quoted message behind a reply segment so the
// agent sees what the sender is responding to. Lookup failures drop the
// quote, never the message.
func (c *OneBotChannel) expandReply(ev *onebot.MessageEvent, content string) string {
	replyID := onebot.ReplyID(ev.Segments)
	if replyID == "" {
		return content
	}

	ctx, cancel := context.WithTimeout(context.Background(), quoteLookupTimeout)
	defer cancel()
	quoted, sender, err := c.client.QuotedText(ctx, replyID)
	if err != nil {
		logger.WarnCF("onebot", "reply lookup failed", map[string]interface{}{
			logger.FieldMessageID: replyID,
			logger.FieldError:     err.Error(),
		})
		return content
	}
	if quoted == "" {
		return content
	}
	if sender != "" {
		quoted = sender + ": " + quoted
	}
	return strings.TrimSpace("[回复 " + quoted + "]\n" + content)
}

// materializeAll resolves every media item; failures drop the item and the
// rest continue.
func (c *OneBotChannel) materializeAll(media []onebot.ExtractedMedia) []*onebot.Artifact {
	if len(media) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var arts []*onebot.Artifact
	for _, m := range media {
		if art, ok := c.mat.Materialize(ctx, m); ok {
			arts = append(arts, art)
		}
	}
	return arts
}

func (c *OneBotChannel) recordSession(msg bus.InboundMessage) {
	if c.sessions == nil {
		return
	}
	if err := c.sessions.Record(msg.SessionKey, "user", msg.Content, msg.Metadata); err != nil {
		logger.WarnCF("onebot", "session record failed", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	}
}

// Send delivers one host reply through the reconciler.
func (c *OneBotChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	target, err := onebot.ParseTarget(msg.ChatID)
	if err != nil {
		return err
	}
	c.rec.Deliver(ctx, target, msg)

	if c.sessions != nil && msg.Content != "" {
		if err := c.sessions.Record(msg.ChatID, "assistant", msg.Content, nil); err != nil {
			logger.WarnCF("onebot", "session record failed", map[string]interface{}{
				logger.FieldError: err.Error(),
			})
		}
	}
	return nil
}

// Self resolves the logged-in account and caches the learned id.
func (c *OneBotChannel) Self(ctx context.Context) (*onebot.LoginInfo, error) {
	info, err := c.client.GetLoginInfo(ctx)
	if err != nil {
		return nil, err
	}
	c.cfg.SetSelfID(info.UserID)
	return info, nil
}

func (c *OneBotChannel) Friends(ctx context.Context) ([]onebot.Friend, error) {
	return c.client.GetFriendList(ctx)
}

func (c *OneBotChannel) Groups(ctx context.Context) ([]onebot.Group, error) {
	return c.client.GetGroupList(ctx)
}

func (c *OneBotChannel) GroupMembers(ctx context.Context, groupID int64) ([]onebot.GroupMember, error) {
	return c.client.GetGroupMemberList(ctx, groupID)
}

func (c *OneBotChannel) RecallMessage(ctx context.Context, messageID string) error {
	return c.client.DeleteMsg(ctx, messageID)
}
