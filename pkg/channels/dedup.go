package channels

import "sync"

const dedupRingSize = 1024

// dedupRing drops duplicate message ids. Webhook pushes can repeat when the
// gateway retries a delivery it thinks timed out.
type dedupRing struct {
	mu   sync.Mutex
	ring [dedupRingSize]string
	seen map[string]struct{}
	next int
}

func newDedupRing() *dedupRing {
	return &dedupRing{seen: make(map[string]struct{}, dedupRingSize)}
}

// Seen records the id and reports whether it was already present. Empty ids
// are never deduplicated.
func (d *dedupRing) Seen(id string) bool {
	if id == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	if old := d.ring[d.next]; old != "" {
		delete(d.seen, old)
	}
	d.ring[d.next] = id
	d.seen[id] = struct{}{}
	d.next = (d.next + 1) % dedupRingSize
	return false
}
