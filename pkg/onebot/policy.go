package onebot

import (
	"fmt"
	"strconv"
	"strings"

	"onebridge/pkg/config"
)

// Decision is the gate's terminal outcome for one inbound event. Content
// carries the (possibly rewritten) text the agent should see.
type Decision struct {
	Accept    bool
	Reason    string
	Content   string
	Mentioned bool
}

func reject(reason string) Decision {
	return Decision{Accept: false, Reason: reason}
}

// Gate applies DM and group policy to decoded message events.
type Gate struct {
	cfg *config.Config
}

func NewGate(cfg *config.Config) *Gate {
	return &Gate{cfg: cfg}
}

// Evaluate runs the accept/reject decision for one event given its already
// extracted text and media. Rejections are not errors; callers log the
// reason and drop the event.
func (g *Gate) Evaluate(ev *MessageEvent, text string, media []ExtractedMedia) Decision {
	mentioned := IsMentioned(ev.Segments, g.selfID(ev))

	mentionRequired := false
	if ev.ChatKind == ChatGroup {
		d, required, ok := g.checkGroup(ev, mentioned)
		if !ok {
			return d
		}
		mentionRequired = required
	} else {
		if !g.cfg.DMAllowed(ev.UserID) {
			return reject("dm policy rejected sender")
		}
	}

	content := strings.TrimSpace(text)
	if content == "" && len(media) == 0 {
		return reject("empty content")
	}

	// The leading @handle is noise only when the sender had to mention the
	// bot to get through; an unforced mention is part of the prompt.
	if mentionRequired && mentioned {
		content = stripLeadingMention(content)
	}
	if content == "" {
		content = mediaPlaceholders(media)
	}

	return Decision{Accept: true, Content: content, Mentioned: mentioned}
}

func (g *Gate) checkGroup(ev *MessageEvent, mentioned bool) (Decision, bool, bool) {
	ob := g.cfg.OneBot
	if ob.GroupPolicy == config.PolicyDisabled {
		return reject("group policy disabled"), false, false
	}

	gc, found := g.cfg.EffectiveGroup(ev.GroupID)
	if ob.GroupPolicy == config.PolicyAllowlist && !found {
		return reject("group not in allowlist"), false, false
	}
	if found && gc.Enabled != nil && !*gc.Enabled {
		return reject("group disabled"), false, false
	}
	if found && len(gc.AllowFrom) > 0 && !containsString(gc.AllowFrom, ev.UserID) {
		return reject("sender not in group allowlist"), false, false
	}

	// Mention is required unless the group config says otherwise.
	requireMention := true
	if found && gc.RequireMention != nil {
		requireMention = *gc.RequireMention
	}
	if requireMention && !mentioned {
		return reject("mention required"), false, false
	}
	return Decision{}, requireMention, true
}

func (g *Gate) selfID(ev *MessageEvent) string {
	if ev.SelfID > 0 {
		return strconv.FormatInt(ev.SelfID, 10)
	}
	if id := g.cfg.GetSelfID(); id > 0 {
		return strconv.FormatInt(id, 10)
	}
	return ""
}

// stripLeadingMention drops one leading @name token so the agent does not
// see its own handle as part of the prompt.
func stripLeadingMention(text string) string {
	if !strings.HasPrefix(text, "@") {
		return text
	}
	if i := strings.IndexAny(text, " \t\n"); i > 0 {
		return strings.TrimSpace(text[i+1:])
	}
	return ""
}

// mediaPlaceholders gives the agent non-empty content for media-only
// messages, one token per item.
func mediaPlaceholders(media []ExtractedMedia) string {
	tokens := make([]string, len(media))
	for i, m := range media {
		tokens[i] = fmt.Sprintf("[media:%s]", m.Kind)
	}
	return strings.Join(tokens, " ")
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
