package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRecordAndLoad(t *testing.T) {
	t.Parallel()

	m := NewManager(t.TempDir())
	m.nowFunc = func() time.Time { return time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC) }

	if err := m.Record("onebot:private:42", "user", "hello", map[string]string{"message_id": "1"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := m.Record("onebot:private:42", "assistant", "hi there", nil); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, err := m.Load("onebot:private:42")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries", len(entries))
	}
	if entries[0].Role != "user" || entries[0].Content != "hello" {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].Role != "assistant" {
		t.Errorf("second entry = %+v", entries[1])
	}
	if entries[0].Time != "2026-08-23T12:00:00Z" {
		t.Errorf("time = %q", entries[0].Time)
	}
}

func TestLoadSkipsCorruptLines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m := NewManager(dir)
	path := m.PathFor("broken")
	content := `{"time":"t","role":"user","content":"ok"}
not json at all
{"time":"t","role":"assistant","content":"also ok"}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	entries, err := m.Load("broken")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("got %d entries, want 2", len(entries))
	}
}

func TestLoadMissingSessionIsEmpty(t *testing.T) {
	t.Parallel()

	m := NewManager(t.TempDir())
	entries, err := m.Load("nope")
	if err != nil || entries != nil {
		t.Errorf("entries = %v, err = %v", entries, err)
	}
}

func TestPathForSanitizesKeys(t *testing.T) {
	t.Parallel()

	m := NewManager("/data/sessions")
	got := m.PathFor("onebot:group:100/../../etc")
	if filepath.Dir(got) != "/data/sessions" {
		t.Fatalf("path escaped the session dir: %q", got)
	}
	if got != "/data/sessions/onebot_group_100_.._.._etc.jsonl" {
		t.Errorf("path = %q", got)
	}
}

func TestList(t *testing.T) {
	t.Parallel()

	m := NewManager(t.TempDir())
	if err := m.Record("a", "user", "x", nil); err != nil {
		t.Fatal(err)
	}
	if err := m.Record("b", "user", "y", nil); err != nil {
		t.Fatal(err)
	}

	keys, err := m.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("keys = %v", keys)
	}
}
