package onebot

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Segment is one element of a message array. Unknown kinds pass through
// untouched: Data keeps whatever the gateway sent.
type Segment struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Media-bearing segment kinds collected by ExtractMedia.
var mediaKinds = map[string]string{
	"image":  "image",
	"mface":  "image",
	"record": "audio",
	"video":  "video",
	"file":   "file",
}

// ExtractedMedia is the normalized view over one media-bearing segment.
type ExtractedMedia struct {
	Kind    string
	URL     string
	File    string
	Name    string
	Size    int64
	Summary string
}

func TextSegment(text string) Segment {
	return Segment{Type: "text", Data: map[string]any{"text": text}}
}

func FaceSegment(id int64) Segment {
	return Segment{Type: "face", Data: map[string]any{"id": strconv.FormatInt(id, 10)}}
}

func AtSegment(target string) Segment {
	return Segment{Type: "at", Data: map[string]any{"qq": target}}
}

func ImageSegment(file string) Segment {
	return Segment{Type: "image", Data: map[string]any{"file": file}}
}

func RecordSegment(file string) Segment {
	return Segment{Type: "record", Data: map[string]any{"file": file}}
}

func VideoSegment(file string) Segment {
	return Segment{Type: "video", Data: map[string]any{"file": file}}
}

func ReplySegment(messageID string) Segment {
	return Segment{Type: "reply", Data: map[string]any{"id": messageID}}
}

func (s Segment) str(key string) string {
	switch v := s.Data[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func (s Segment) int64Field(key string) int64 {
	switch v := s.Data[key].(type) {
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case json.Number:
		n, _ := v.Int64()
		return n
	default:
		return 0
	}
}

// DecodeSegments accepts either a segment array or a CQ-encoded string.
func DecodeSegments(raw json.RawMessage) ([]Segment, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty message payload")
	}
	var segs []Segment
	if err := json.Unmarshal(raw, &segs); err == nil {
		return segs, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return DecodeCQString(s), nil
	}
	return nil, fmt.Errorf("message is neither segment array nor string")
}

var cqCodeRe = regexp.MustCompile(`\[CQ:([a-zA-Z0-9_.-]+)((?:,[^\[\]]*)?)\]`)

// DecodeCQString parses legacy CQ-code text like
// "hi [CQ:face,id=14] [CQ:at,qq=123]" into segments.
func DecodeCQString(s string) []Segment {
	var segs []Segment
	last := 0
	for _, m := range cqCodeRe.FindAllStringSubmatchIndex(s, -1) {
		if s[last:m[0]] != "" {
			segs = append(segs, TextSegment(cqUnescape(s[last:m[0]])))
		}
		seg := Segment{Type: s[m[2]:m[3]], Data: map[string]any{}}
		for _, kv := range strings.Split(strings.TrimPrefix(s[m[4]:m[5]], ","), ",") {
			if kv == "" {
				continue
			}
			k, v, _ := strings.Cut(kv, "=")
			seg.Data[k] = cqUnescape(v)
		}
		segs = append(segs, seg)
		last = m[1]
	}
	if s[last:] != "" {
		segs = append(segs, TextSegment(cqUnescape(s[last:])))
	}
	if len(segs) == 0 {
		segs = append(segs, TextSegment(""))
	}
	return segs
}

var cqUnescaper = strings.NewReplacer("&#91;", "[", "&#93;", "]", "&#44;", ",", "&amp;", "&")

func cqUnescape(s string) string {
	return cqUnescaper.Replace(s)
}

// ExtractText concatenates text segments in order. Face segments render as
// [表情:名字], or [表情:id] when the id has no known name. Media segments
// are skipped here and picked up by ExtractMedia.
func ExtractText(segs []Segment) string {
	var b strings.Builder
	for _, seg := range segs {
		switch seg.Type {
		case "text":
			b.WriteString(seg.str("text"))
		case "face":
			id := seg.int64Field("id")
			if name, ok := FaceName(id); ok {
				fmt.Fprintf(&b, "[表情:%s]", name)
			} else {
				fmt.Fprintf(&b, "[表情:%d]", id)
			}
		}
	}
	return b.String()
}

// ExtractMedia collects media-bearing segments preserving order. Segments
// with neither url nor file are dropped.
func ExtractMedia(segs []Segment) []ExtractedMedia {
	var out []ExtractedMedia
	for _, seg := range segs {
		kind, ok := mediaKinds[seg.Type]
		if !ok {
			continue
		}
		m := ExtractedMedia{
			Kind:    kind,
			URL:     seg.str("url"),
			File:    seg.str("file"),
			Name:    seg.str("file_name"),
			Size:    seg.int64Field("file_size"),
			Summary: seg.str("summary"),
		}
		if m.URL == "" && m.File == "" {
			continue
		}
		if m.Name == "" {
			m.Name = seg.str("name")
		}
		out = append(out, m)
	}
	return out
}

// ReplyID returns the quoted message id from the first reply segment, or ""
// when the message quotes nothing.
func ReplyID(segs []Segment) string {
	for _, seg := range segs {
		if seg.Type == "reply" {
			return seg.str("id")
		}
	}
	return ""
}

// IsMentioned reports whether any at segment targets selfID or everyone.
func IsMentioned(segs []Segment, selfID string) bool {
	for _, seg := range segs {
		if seg.Type != "at" {
			continue
		}
		qq := seg.str("qq")
		if qq == "all" || (selfID != "" && qq == selfID) {
			return true
		}
	}
	return false
}

var emojiNotationRe = regexp.MustCompile(`\[表情:([^\[\]]+)\]`)

// EncodeEmojiText turns inline [表情:名字] and [表情:数字] notation into face
// segments, keeping surrounding text as text segments. Names without a
// deliverable id stay as literal text. Always returns at least one segment.
func EncodeEmojiText(text string) []Segment {
	var segs []Segment
	last := 0
	for _, m := range emojiNotationRe.FindAllStringSubmatchIndex(text, -1) {
		token := text[m[2]:m[3]]
		id, ok := resolveFaceToken(token)
		if !ok {
			continue
		}
		if text[last:m[0]] != "" {
			segs = append(segs, TextSegment(text[last:m[0]]))
		}
		segs = append(segs, FaceSegment(id))
		last = m[1]
	}
	if len(segs) == 0 {
		return []Segment{TextSegment(text)}
	}
	if text[last:] != "" {
		segs = append(segs, TextSegment(text[last:]))
	}
	return segs
}

func resolveFaceToken(token string) (int64, bool) {
	if id, err := strconv.ParseInt(token, 10, 64); err == nil {
		if FaceIDDeliverable(id) {
			return id, true
		}
		return 0, false
	}
	return FaceID(token)
}

// IsPlainText reports whether encoded segments carry no face segment, i.e.
// a plain text send suffices.
func IsPlainText(segs []Segment) bool {
	return len(segs) == 1 && segs[0].Type == "text"
}
