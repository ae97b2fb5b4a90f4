package onebot

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"onebridge/pkg/bus"
	"onebridge/pkg/logger"
)

// Target addresses one chat for outbound sends.
type Target struct {
	Kind string
	ID   int64
}

// ParseTarget reads a chat id like "onebot:group:100" or "onebot:private:42".
// A bare numeric id is treated as a private chat.
func ParseTarget(chatID string) (Target, error) {
	parts := strings.Split(chatID, ":")
	switch {
	case len(parts) == 3 && parts[0] == "onebot":
		id, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return Target{}, fmt.Errorf("bad chat id %q: %w", chatID, err)
		}
		if parts[1] != ChatPrivate && parts[1] != ChatGroup {
			return Target{}, fmt.Errorf("bad chat kind in %q", chatID)
		}
		return Target{Kind: parts[1], ID: id}, nil
	case len(parts) == 1:
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return Target{}, fmt.Errorf("bad chat id %q: %w", chatID, err)
		}
		return Target{Kind: ChatPrivate, ID: id}, nil
	default:
		return Target{}, fmt.Errorf("bad chat id %q", chatID)
	}
}

// SegmentSender delivers one segment array to one chat.
type SegmentSender interface {
	Send(ctx context.Context, target Target, segs []Segment) error
}

// Send routes to the private or group action based on the target kind.
func (c *Client) Send(ctx context.Context, target Target, segs []Segment) error {
	var err error
	if target.Kind == ChatGroup {
		_, err = c.SendGroupMsg(ctx, target.ID, segs)
	} else {
		_, err = c.SendPrivateMsg(ctx, target.ID, segs)
	}
	return err
}

// Reconciler translates one host reply into ordered gateway sends. Sends
// are strictly sequential so the recipient sees caption, media, and
// follow-ups in order; individual failures never abort the rest of the pass.
type Reconciler struct {
	sender SegmentSender
	mat    *Materializer
}

func NewReconciler(sender SegmentSender, mat *Materializer) *Reconciler {
	if mat == nil {
		mat = NewMaterializer()
	}
	return &Reconciler{sender: sender, mat: mat}
}

// Deliver runs one reconciliation pass for a reply payload.
func (r *Reconciler) Deliver(ctx context.Context, target Target, msg bus.OutboundMessage) {
	text := strings.TrimSpace(msg.Content)
	if text == "" && len(msg.MediaURLs) == 0 {
		return
	}

	// Voice fast path: one audio send covers the whole reply.
	if msg.Voice && len(msg.MediaURLs) > 0 && KindForURL(msg.MediaURLs[0]) == "audio" {
		if err := r.sendMedia(ctx, target, msg.MediaURLs[0], "audio", ""); err == nil {
			return
		}
		logger.WarnCF("onebot", "voice send failed, falling back to general path", map[string]interface{}{
			logger.FieldChatID: targetLabel(target),
		})
	}

	captionSent := false
	for i, ref := range msg.MediaURLs {
		kind := KindForURL(ref)
		caption := ""
		if i == 0 && text != "" && kind != "audio" {
			caption = text
		}
		if err := r.sendMedia(ctx, target, ref, kind, caption); err != nil {
			logSendFailure(target, kind, err)
			continue
		}
		if caption != "" {
			captionSent = true
		}
	}

	if text != "" && !captionSent {
		r.sendText(ctx, target, text)
	}
}

func (r *Reconciler) sendMedia(ctx context.Context, target Target, ref, kind, caption string) error {
	resolved, err := r.resolveRef(ref)
	if err != nil {
		return err
	}

	var media Segment
	switch kind {
	case "audio":
		media = RecordSegment(resolved)
	case "video":
		media = VideoSegment(resolved)
	default:
		media = ImageSegment(resolved)
	}

	segs := []Segment{media}
	if caption != "" {
		segs = append([]Segment{TextSegment(caption)}, segs...)
	}
	return r.sender.Send(ctx, target, segs)
}

// resolveRef turns local-file references into inline base64 the gateway can
// ingest; remote URLs and already-inline refs pass through.
func (r *Reconciler) resolveRef(ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"), strings.HasPrefix(ref, "base64://"):
		return ref, nil
	case strings.HasPrefix(ref, "data:"):
		_, b64, ok := strings.Cut(ref, ";base64,")
		if !ok {
			return "", fmt.Errorf("unsupported data url")
		}
		return "base64://" + b64, nil
	default:
		path := NormalizeLocalPath(ref)
		data, err := r.mat.readFn(path)
		if err != nil {
			return "", fmt.Errorf("read local media %s: %w", path, err)
		}
		return "base64://" + base64.StdEncoding.EncodeToString(data), nil
	}
}

// sendText tries the emoji-aware segment form first; a gateway rejection is
// retried exactly once as plain text.
func (r *Reconciler) sendText(ctx context.Context, target Target, text string) {
	segs := EncodeEmojiText(text)
	if IsPlainText(segs) {
		if err := r.sender.Send(ctx, target, segs); err != nil {
			logSendFailure(target, "text", err)
		}
		return
	}

	err := r.sender.Send(ctx, target, segs)
	if err == nil {
		return
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		logger.WarnCF("onebot", "emoji send rejected, retrying as plain text", map[string]interface{}{
			logger.FieldChatID:  targetLabel(target),
			logger.FieldRetcode: apiErr.Retcode,
		})
		if err := r.sender.Send(ctx, target, []Segment{TextSegment(text)}); err != nil {
			logSendFailure(target, "text", err)
		}
		return
	}
	logSendFailure(target, "text", err)
}

func logSendFailure(target Target, kind string, err error) {
	fields := map[string]interface{}{
		logger.FieldChatID: targetLabel(target),
		"kind":             kind,
		logger.FieldError:  err.Error(),
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		fields[logger.FieldRetcode] = apiErr.Retcode
	}
	logger.ErrorCF("onebot", "send failed", fields)
}

func targetLabel(t Target) string {
	return fmt.Sprintf("%s:%d", t.Kind, t.ID)
}
