package onebot

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Event post types pushed by the gateway.
const (
	PostMessage   = "message"
	PostNotice    = "notice"
	PostRequest   = "request"
	PostMetaEvent = "meta_event"
)

// Chat kinds for message events.
const (
	ChatPrivate = "private"
	ChatGroup   = "group"
)

// RawEvent is the wire shape of a pushed event. NapCat and Lagrange are not
// consistent about numeric vs string ids, so id-bearing fields stay raw and
// go through asInt64/asString.
type RawEvent struct {
	Time          int64           `json:"time"`
	SelfID        json.RawMessage `json:"self_id,omitempty"`
	PostType      string          `json:"post_type"`
	MessageType   string          `json:"message_type,omitempty"`
	SubType       string          `json:"sub_type,omitempty"`
	MessageID     json.RawMessage `json:"message_id,omitempty"`
	UserID        json.RawMessage `json:"user_id,omitempty"`
	GroupID       json.RawMessage `json:"group_id,omitempty"`
	Message       json.RawMessage `json:"message,omitempty"`
	RawMessage    string          `json:"raw_message,omitempty"`
	Sender        *EventSender    `json:"sender,omitempty"`
	NoticeType    string          `json:"notice_type,omitempty"`
	RequestType   string          `json:"request_type,omitempty"`
	MetaEventType string          `json:"meta_event_type,omitempty"`
}

type EventSender struct {
	UserID   json.RawMessage `json:"user_id,omitempty"`
	Nickname string          `json:"nickname,omitempty"`
	Card     string          `json:"card,omitempty"`
	Role     string          `json:"role,omitempty"`
}

// MessageEvent is the decoded message variant of the event union.
type MessageEvent struct {
	Time       int64
	SelfID     int64
	MessageID  string
	ChatKind   string
	UserID     string
	GroupID    string
	SenderName string
	Segments   []Segment
}

func ParseEvent(body []byte) (*RawEvent, error) {
	var raw RawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if raw.PostType == "" {
		return nil, fmt.Errorf("decode event: missing post_type")
	}
	return &raw, nil
}

// DecodeMessage converts a message-typed raw event into a MessageEvent.
func (r *RawEvent) DecodeMessage() (*MessageEvent, error) {
	if r.PostType != PostMessage {
		return nil, fmt.Errorf("not a message event: %s", r.PostType)
	}
	if r.MessageType != ChatPrivate && r.MessageType != ChatGroup {
		return nil, fmt.Errorf("unsupported message_type: %q", r.MessageType)
	}

	ev := &MessageEvent{
		Time:      r.Time,
		SelfID:    asInt64(r.SelfID),
		MessageID: asString(r.MessageID),
		ChatKind:  r.MessageType,
		UserID:    asString(r.UserID),
	}
	if ev.UserID == "" {
		return nil, fmt.Errorf("message event without user_id")
	}
	if r.MessageType == ChatGroup {
		ev.GroupID = asString(r.GroupID)
		if ev.GroupID == "" {
			return nil, fmt.Errorf("group message without group_id")
		}
	}
	if r.Sender != nil {
		ev.SenderName = r.Sender.Card
		if ev.SenderName == "" {
			ev.SenderName = r.Sender.Nickname
		}
	}

	segs, err := DecodeSegments(r.Message)
	if err != nil {
		// Some gateways omit the structured array; raw_message still has
		// the CQ-encoded text.
		if r.RawMessage == "" {
			return nil, err
		}
		segs = DecodeCQString(r.RawMessage)
	}
	ev.Segments = segs
	return ev, nil
}

// asInt64 reads a JSON value that may arrive as a number or a quoted string.
func asInt64(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return n
		}
	}
	return 0
}

func asString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return strings.Trim(string(raw), `"`)
}
