package onebot

import (
	"encoding/json"
	"testing"
)

func TestExtractTextPreservesOrder(t *testing.T) {
	t.Parallel()

	segs := []Segment{
		TextSegment("look "),
		ImageSegment("http://x/a.jpg"),
		TextSegment("at "),
		FaceSegment(14),
		TextSegment(" this"),
	}
	got := ExtractText(segs)
	want := "look at [表情:微笑] this"
	if got != want {
		t.Errorf("ExtractText = %q, want %q", got, want)
	}
}

func TestExtractTextUnknownFaceFallsBackToID(t *testing.T) {
	t.Parallel()

	got := ExtractText([]Segment{FaceSegment(99999)})
	if got != "[表情:99999]" {
		t.Errorf("ExtractText = %q", got)
	}
}

func TestExtractMediaDropsEmptyReferences(t *testing.T) {
	t.Parallel()

	segs := []Segment{
		ImageSegment("http://x/a.jpg"),
		{Type: "image", Data: map[string]any{"summary": "no ref"}},
		{Type: "record", Data: map[string]any{"file": "/tmp/v.silk"}},
		{Type: "video", Data: map[string]any{"url": "http://x/v.mp4", "file_size": float64(1024)}},
		TextSegment("hi"),
	}
	media := ExtractMedia(segs)
	if len(media) != 3 {
		t.Fatalf("got %d media items, want 3", len(media))
	}
	if media[0].Kind != "image" || media[1].Kind != "audio" || media[2].Kind != "video" {
		t.Errorf("kinds = %s/%s/%s", media[0].Kind, media[1].Kind, media[2].Kind)
	}
	if media[2].Size != 1024 {
		t.Errorf("size = %d", media[2].Size)
	}
}

func TestReplyID(t *testing.T) {
	t.Parallel()

	segs := []Segment{
		ReplySegment("11"),
		TextSegment("看这个"),
		ReplySegment("22"),
	}
	if got := ReplyID(segs); got != "11" {
		t.Errorf("ReplyID = %q, want the first reply segment", got)
	}
	if got := ReplyID([]Segment{TextSegment("hi")}); got != "" {
		t.Errorf("ReplyID without a reply segment = %q", got)
	}
}

func TestIsMentioned(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		segs []Segment
		want bool
	}{
		{"direct", []Segment{TextSegment("hi "), AtSegment("10001")}, true},
		{"all", []Segment{AtSegment("all"), TextSegment("hi")}, true},
		{"other", []Segment{AtSegment("20002")}, false},
		{"none", []Segment{TextSegment("hi")}, false},
	}
	for _, tc := range cases {
		if got := IsMentioned(tc.segs, "10001"); got != tc.want {
			t.Errorf("%s: IsMentioned = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestEncodeEmojiTextByName(t *testing.T) {
	t.Parallel()

	segs := EncodeEmojiText("早上好[表情:微笑]再见")
	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3", len(segs))
	}
	if segs[0].str("text") != "早上好" {
		t.Errorf("lead text = %q", segs[0].str("text"))
	}
	if segs[1].Type != "face" || segs[1].int64Field("id") != 14 {
		t.Errorf("face segment = %+v", segs[1])
	}
	if segs[2].str("text") != "再见" {
		t.Errorf("tail text = %q", segs[2].str("text"))
	}
}

func TestEncodeEmojiTextByID(t *testing.T) {
	t.Parallel()

	segs := EncodeEmojiText("[表情:14]")
	if len(segs) != 1 || segs[0].Type != "face" {
		t.Fatalf("segments = %+v", segs)
	}
}

func TestEncodeEmojiTextUnknownNameStaysLiteral(t *testing.T) {
	t.Parallel()

	segs := EncodeEmojiText("hi [表情:不存在的表情] there")
	if !IsPlainText(segs) {
		t.Fatalf("unknown name should yield one text segment, got %+v", segs)
	}
	if segs[0].str("text") != "hi [表情:不存在的表情] there" {
		t.Errorf("text = %q", segs[0].str("text"))
	}
}

func TestEncodeEmojiTextNoNotation(t *testing.T) {
	t.Parallel()

	segs := EncodeEmojiText("plain text only")
	if !IsPlainText(segs) {
		t.Fatalf("expected single text segment, got %+v", segs)
	}
}

// Text with no emoji notation survives encode → extract unchanged.
func TestEmojiRoundTripStableWithoutFaces(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"hello", "带中文的句子", "[not emoji]", ""} {
		if got := ExtractText(EncodeEmojiText(s)); got != s {
			t.Errorf("round trip of %q = %q", s, got)
		}
	}
}

// Scenario: inbound [face:14] renders as [表情:微笑], and encoding that text
// back produces the same deliverable face id.
func TestFaceNotationRoundTrip(t *testing.T) {
	t.Parallel()

	text := ExtractText([]Segment{FaceSegment(14)})
	if text != "[表情:微笑]" {
		t.Fatalf("ExtractText = %q", text)
	}
	segs := EncodeEmojiText(text)
	if len(segs) != 1 || segs[0].Type != "face" || segs[0].int64Field("id") != 14 {
		t.Fatalf("re-encoded segments = %+v", segs)
	}
}

func TestFaceIDPrefersLowestDuplicate(t *testing.T) {
	t.Parallel()

	for name, id := range faceIDs {
		for otherID, otherName := range faceNames {
			if otherName == name && otherID < id {
				t.Errorf("name %q resolved to %d but %d exists", name, id, otherID)
			}
		}
	}
}

func TestDecodeSegmentsArray(t *testing.T) {
	t.Parallel()

	raw := json.RawMessage(`[{"type":"text","data":{"text":"hi"}},{"type":"custom_thing","data":{"x":1}}]`)
	segs, err := DecodeSegments(raw)
	if err != nil {
		t.Fatalf("DecodeSegments: %v", err)
	}
	if len(segs) != 2 || segs[1].Type != "custom_thing" {
		t.Errorf("segments = %+v", segs)
	}
}

func TestDecodeCQString(t *testing.T) {
	t.Parallel()

	segs := DecodeCQString("hi [CQ:face,id=14] bye [CQ:at,qq=123] &#91;x&#93;")
	if len(segs) != 5 {
		t.Fatalf("got %d segments: %+v", len(segs), segs)
	}
	if segs[1].Type != "face" || segs[1].str("id") != "14" {
		t.Errorf("face segment = %+v", segs[1])
	}
	if segs[3].Type != "at" || segs[3].str("qq") != "123" {
		t.Errorf("at segment = %+v", segs[3])
	}
	if segs[4].str("text") != " [x]" {
		t.Errorf("unescaped tail = %q", segs[4].str("text"))
	}
}

func TestDecodeMessageEvent(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"time": 1724300000,
		"self_id": 10001,
		"post_type": "message",
		"message_type": "group",
		"message_id": 987,
		"user_id": "20002",
		"group_id": 30003,
		"sender": {"user_id": 20002, "nickname": "nick", "card": "card-name"},
		"message": [{"type":"text","data":{"text":"hello"}}]
	}`)
	raw, err := ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	ev, err := raw.DecodeMessage()
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if ev.SelfID != 10001 || ev.UserID != "20002" || ev.GroupID != "30003" {
		t.Errorf("ids = %d/%s/%s", ev.SelfID, ev.UserID, ev.GroupID)
	}
	if ev.MessageID != "987" {
		t.Errorf("message id = %q", ev.MessageID)
	}
	if ev.SenderName != "card-name" {
		t.Errorf("sender name = %q", ev.SenderName)
	}
	if ExtractText(ev.Segments) != "hello" {
		t.Errorf("text = %q", ExtractText(ev.Segments))
	}
}

func TestDecodeMessageFallsBackToRawMessage(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"post_type": "message",
		"message_type": "private",
		"user_id": 20002,
		"message": 42,
		"raw_message": "plain [CQ:face,id=14]"
	}`)
	raw, err := ParseEvent(body)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	ev, err := raw.DecodeMessage()
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if got := ExtractText(ev.Segments); got != "plain [表情:微笑]" {
		t.Errorf("text = %q", got)
	}
}
