package channels

import "sync/atomic"

// SenderContext remembers who spoke last so an out-of-band tool invocation
// can address "the current chat" without an explicit target.
type SenderContext struct {
	UserID   string
	ChatKind string
	GroupID  string
	ChatID   string
}

// lastSender is a single process-wide cell, overwritten on every inbound
// message. When two events interleave, last writer wins, and a tool call
// racing them can address the wrong chat. Known limitation: this adapter
// serves one-conversation-at-a-time workflows, not a multi-tenant
// dispatcher.
var lastSender atomic.Pointer[SenderContext]

func SetLastSender(sc *SenderContext) {
	lastSender.Store(sc)
}

// LastSender returns the most recent sender context, or nil before the
// first inbound message.
func LastSender() *SenderContext {
	return lastSender.Load()
}
