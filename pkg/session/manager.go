package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Entry is one transcript line. Role is "user" for inbound messages and
// "assistant" for delivered replies.
type Entry struct {
	Time     string            `json:"time"`
	Role     string            `json:"role"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Manager appends session transcripts as JSON lines, one file per session
// key. Appends across goroutines serialize on a per-manager lock; files are
// opened per write so rotation or deletion by the host never wedges us.
type Manager struct {
	dir string
	mu  sync.Mutex

	nowFunc func() time.Time
}

func NewManager(dir string) *Manager {
	return &Manager{dir: dir, nowFunc: time.Now}
}

// PathFor maps a session key to its transcript file.
func (m *Manager) PathFor(sessionKey string) string {
	return filepath.Join(m.dir, sanitizeKey(sessionKey)+".jsonl")
}

// Record appends one entry to the session transcript.
func (m *Manager) Record(sessionKey, role, content string, metadata map[string]string) error {
	entry := Entry{
		Time:     m.nowFunc().UTC().Format(time.RFC3339),
		Role:     role,
		Content:  content,
		Metadata: metadata,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode session entry: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	f, err := os.OpenFile(m.PathFor(sessionKey), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open session file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append session entry: %w", err)
	}
	return nil
}

// Load reads a session transcript back, skipping corrupt lines.
func (m *Manager) Load(sessionKey string) ([]Entry, error) {
	data, err := os.ReadFile(m.PathFor(sessionKey))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// List returns the known session keys.
func (m *Manager) List() ([]string, error) {
	dirEntries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var keys []string
	for _, e := range dirEntries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(e.Name(), ".jsonl"))
	}
	return keys, nil
}

// sanitizeKey keeps session keys filesystem-safe.
func sanitizeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "default"
	}
	return b.String()
}
