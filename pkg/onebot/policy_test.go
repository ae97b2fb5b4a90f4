package onebot

import (
	"testing"

	"onebridge/pkg/config"
)

func boolPtr(b bool) *bool { return &b }

func groupEvent(groupID, userID string, segs ...Segment) *MessageEvent {
	return &MessageEvent{
		SelfID:   10001,
		ChatKind: ChatGroup,
		UserID:   userID,
		GroupID:  groupID,
		Segments: segs,
	}
}

func privateEvent(userID string, segs ...Segment) *MessageEvent {
	return &MessageEvent{
		SelfID:   10001,
		ChatKind: ChatPrivate,
		UserID:   userID,
		Segments: segs,
	}
}

func TestGateAllowlistRejectsUnknownGroups(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.OneBot.GroupPolicy = config.PolicyAllowlist
	cfg.OneBot.Groups = map[string]config.GroupConfig{
		"100": {RequireMention: boolPtr(false)},
	}
	gate := NewGate(cfg)

	for _, gid := range []string{"200", "300", "999"} {
		ev := groupEvent(gid, "42", TextSegment("hi"))
		if d := gate.Evaluate(ev, "hi", nil); d.Accept {
			t.Errorf("group %s should be rejected", gid)
		}
	}
	ev := groupEvent("100", "42", TextSegment("hi"))
	if d := gate.Evaluate(ev, "hi", nil); !d.Accept {
		t.Errorf("allowlisted group rejected: %s", d.Reason)
	}
}

func TestGateMentionRequiredByDefault(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.OneBot.Groups = map[string]config.GroupConfig{"100": {}}
	gate := NewGate(cfg)

	ev := groupEvent("100", "42", TextSegment("hello"))
	if d := gate.Evaluate(ev, "hello", nil); d.Accept {
		t.Error("unmentioned group message should be rejected by default")
	}

	ev = groupEvent("100", "42", AtSegment("10001"), TextSegment("hello"))
	d := gate.Evaluate(ev, "hello", nil)
	if !d.Accept {
		t.Fatalf("mentioned message rejected: %s", d.Reason)
	}
	if !d.Mentioned {
		t.Error("decision should record the mention")
	}
}

func TestGateMentionRequirementDisabled(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.OneBot.Groups = map[string]config.GroupConfig{
		"100": {RequireMention: boolPtr(false)},
	}
	gate := NewGate(cfg)

	ev := groupEvent("100", "42", TextSegment("hello"))
	if d := gate.Evaluate(ev, "hello", nil); !d.Accept {
		t.Errorf("rejected: %s", d.Reason)
	}
}

func TestGateGroupPolicyDisabled(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.OneBot.GroupPolicy = config.PolicyDisabled
	gate := NewGate(cfg)

	ev := groupEvent("100", "42", AtSegment("10001"), TextSegment("hi"))
	if d := gate.Evaluate(ev, "hi", nil); d.Accept {
		t.Error("disabled group policy should reject everything")
	}
}

func TestGateGroupExplicitlyDisabled(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.OneBot.Groups = map[string]config.GroupConfig{
		"100": {Enabled: boolPtr(false), RequireMention: boolPtr(false)},
	}
	gate := NewGate(cfg)

	ev := groupEvent("100", "42", TextSegment("hi"))
	if d := gate.Evaluate(ev, "hi", nil); d.Accept {
		t.Error("explicitly disabled group should reject")
	}
}

func TestGateGroupMemberAllowlist(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.OneBot.Groups = map[string]config.GroupConfig{
		"100": {RequireMention: boolPtr(false), AllowFrom: []string{"42"}},
	}
	gate := NewGate(cfg)

	if d := gate.Evaluate(groupEvent("100", "42", TextSegment("hi")), "hi", nil); !d.Accept {
		t.Errorf("listed member rejected: %s", d.Reason)
	}
	if d := gate.Evaluate(groupEvent("100", "43", TextSegment("hi")), "hi", nil); d.Accept {
		t.Error("unlisted member should be rejected")
	}
}

func TestGateWildcardGroupFallback(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.OneBot.GroupPolicy = config.PolicyAllowlist
	cfg.OneBot.Groups = map[string]config.GroupConfig{
		"*": {RequireMention: boolPtr(false)},
	}
	gate := NewGate(cfg)

	if d := gate.Evaluate(groupEvent("555", "42", TextSegment("hi")), "hi", nil); !d.Accept {
		t.Errorf("wildcard should admit any group: %s", d.Reason)
	}
}

func TestGateDMPolicy(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.OneBot.DM.Policy = config.PolicyDisabled
	gate := NewGate(cfg)

	if d := gate.Evaluate(privateEvent("42", TextSegment("hi")), "hi", nil); d.Accept {
		t.Error("disabled dm policy should reject")
	}

	cfg.OneBot.DM.Policy = config.PolicyOpen
	if d := gate.Evaluate(privateEvent("42", TextSegment("hi")), "hi", nil); !d.Accept {
		t.Errorf("open dm policy rejected: %s", d.Reason)
	}
}

func TestGateEmptyContentRejected(t *testing.T) {
	t.Parallel()

	gate := NewGate(config.DefaultConfig())
	if d := gate.Evaluate(privateEvent("42"), "   ", nil); d.Accept {
		t.Error("whitespace-only message with no media should be rejected")
	}
}

func TestGateMediaOnlyGetsPlaceholders(t *testing.T) {
	t.Parallel()

	gate := NewGate(config.DefaultConfig())
	media := []ExtractedMedia{
		{Kind: "image", URL: "http://x/a.jpg"},
		{Kind: "audio", File: "/v.silk"},
	}
	d := gate.Evaluate(privateEvent("42"), "", media)
	if !d.Accept {
		t.Fatalf("rejected: %s", d.Reason)
	}
	if d.Content != "[media:image] [media:audio]" {
		t.Errorf("content = %q", d.Content)
	}
}

func TestGateStripsLeadingMention(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.OneBot.Groups = map[string]config.GroupConfig{"100": {}}
	gate := NewGate(cfg)

	ev := groupEvent("100", "42", AtSegment("10001"), TextSegment("@bot do the thing"))
	d := gate.Evaluate(ev, "@bot do the thing", nil)
	if !d.Accept {
		t.Fatalf("rejected: %s", d.Reason)
	}
	if d.Content != "do the thing" {
		t.Errorf("content = %q", d.Content)
	}
}

// An unforced mention stays in the prompt: the strip only applies where the
// group made the mention mandatory.
func TestGateKeepsMentionWhenNotRequired(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.OneBot.Groups = map[string]config.GroupConfig{
		"100": {RequireMention: boolPtr(false)},
	}
	gate := NewGate(cfg)

	ev := groupEvent("100", "42", AtSegment("10001"), TextSegment("@bot do the thing"))
	d := gate.Evaluate(ev, "@bot do the thing", nil)
	if !d.Accept {
		t.Fatalf("rejected: %s", d.Reason)
	}
	if d.Content != "@bot do the thing" {
		t.Errorf("content = %q", d.Content)
	}
	if !d.Mentioned {
		t.Error("decision should still record the mention")
	}
}

func TestGateDMNeverStripsMention(t *testing.T) {
	t.Parallel()

	gate := NewGate(config.DefaultConfig())
	ev := privateEvent("42", AtSegment("10001"), TextSegment("@bot hello"))
	d := gate.Evaluate(ev, "@bot hello", nil)
	if !d.Accept {
		t.Fatalf("rejected: %s", d.Reason)
	}
	if d.Content != "@bot hello" {
		t.Errorf("content = %q", d.Content)
	}
}
