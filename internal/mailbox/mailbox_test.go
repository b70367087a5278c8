package mailbox

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MEKXH/citegate/internal/approval"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"file":   NewFileStore(t.TempDir()),
		"memory": NewMemoryStore(),
	}
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get("abc123")
			if err != nil {
				t.Fatalf("Get error: %v", err)
			}
			if ok {
				t.Fatal("expected absence before Put")
			}

			err = s.Put("abc123", Entry{Approved: true, Channel: "slack", Actor: "U42"})
			if err != nil {
				t.Fatalf("Put error: %v", err)
			}

			entry, ok, err := s.Get("abc123")
			if err != nil {
				t.Fatalf("Get error: %v", err)
			}
			if !ok {
				t.Fatal("expected entry after Put")
			}
			if entry.ApprovalID != "abc123" || !entry.Approved || entry.Channel != "slack" {
				t.Fatalf("unexpected entry: %+v", entry)
			}
			if entry.Timestamp.IsZero() {
				t.Fatal("expected Put to stamp the entry")
			}
		})
	}
}

func TestStore_SecondPutLosesWithoutCorruption(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Put("abc123", Entry{Approved: true, Channel: "slack"}); err != nil {
				t.Fatalf("first Put error: %v", err)
			}
			err := s.Put("abc123", Entry{Approved: false, Channel: "file"})
			if !errors.Is(err, approval.ErrAlreadyResolved) {
				t.Fatalf("expected ErrAlreadyResolved, got %v", err)
			}

			entry, ok, err := s.Get("abc123")
			if err != nil || !ok {
				t.Fatalf("Get after losing Put: ok=%v err=%v", ok, err)
			}
			if !entry.Approved || entry.Channel != "slack" {
				t.Fatalf("first entry corrupted: %+v", entry)
			}
		})
	}
}

func TestStore_ConcurrentPutsSingleAuthoritativeEntry(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			const writers = 16
			var wg sync.WaitGroup
			okCount := make(chan bool, writers)

			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(n int) {
					defer wg.Done()
					err := s.Put("race-1", Entry{Approved: n%2 == 0, Channel: "slack"})
					if err == nil {
						okCount <- true
					} else if !errors.Is(err, approval.ErrAlreadyResolved) {
						t.Errorf("unexpected Put error: %v", err)
					}
				}(i)
			}
			wg.Wait()
			close(okCount)

			wins := 0
			for range okCount {
				wins++
			}
			if wins != 1 {
				t.Fatalf("expected exactly one winning Put, got %d", wins)
			}

			entry, ok, err := s.Get("race-1")
			if err != nil || !ok {
				t.Fatalf("Get after race: ok=%v err=%v", ok, err)
			}
			if entry.ApprovalID != "race-1" {
				t.Fatalf("corrupted entry: %+v", entry)
			}
		})
	}
}

func TestStore_RejectsInvalidIDs(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, id := range []string{"", "../escape", "a/b", "a.b"} {
				if err := s.Put(id, Entry{}); !errors.Is(err, approval.ErrInvalidID) {
					t.Fatalf("Put(%q): expected ErrInvalidID, got %v", id, err)
				}
				if _, _, err := s.Get(id); !errors.Is(err, approval.ErrInvalidID) {
					t.Fatalf("Get(%q): expected ErrInvalidID, got %v", id, err)
				}
			}
		})
	}
}

func TestStore_CleanupRemovesEntry(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Put("gone-1", Entry{Approved: true, Channel: "file"}); err != nil {
				t.Fatalf("Put error: %v", err)
			}
			if err := s.Cleanup("gone-1"); err != nil {
				t.Fatalf("Cleanup error: %v", err)
			}
			_, ok, err := s.Get("gone-1")
			if err != nil {
				t.Fatalf("Get error: %v", err)
			}
			if ok {
				t.Fatal("expected entry removed")
			}
			if err := s.Cleanup("gone-1"); err != nil {
				t.Fatalf("repeat Cleanup must be a no-op, got %v", err)
			}
		})
	}
}

func TestFileStore_NoPartialEntryVisible(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	if err := s.Put("abc123", Entry{Approved: true, Channel: "slack"}); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	// Whatever Get observes must always be complete JSON.
	data, err := os.ReadFile(filepath.Join(dir, "abc123.json"))
	if err != nil {
		t.Fatalf("read entry: %v", err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("entry not valid JSON: %v", err)
	}

	// No temp residue after publication.
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, f := range files {
		if filepath.Ext(f.Name()) == ".tmp" {
			t.Fatalf("temp file left behind: %s", f.Name())
		}
	}
}

func TestFileStore_SweepReapsOldEntries(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)

	if err := s.Put("old-1", Entry{Approved: true, Channel: "file"}); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := s.PutRequest(approval.Request{ID: "old-2", ToolName: "exec"}); err != nil {
		t.Fatalf("PutRequest error: %v", err)
	}
	if err := s.Put("fresh-1", Entry{Approved: true, Channel: "file"}); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	past := time.Now().Add(-2 * time.Hour)
	for _, name := range []string{"old-1.json", "old-2.request.json"} {
		if err := os.Chtimes(filepath.Join(dir, name), past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed, err := s.Sweep(time.Hour)
	if err != nil {
		t.Fatalf("Sweep error: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 reaped, got %d", removed)
	}

	_, ok, err := s.Get("fresh-1")
	if err != nil || !ok {
		t.Fatalf("fresh entry must survive sweep: ok=%v err=%v", ok, err)
	}
}

func TestFileStore_SweepReapsStaleTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)

	// A writer that crashed between CreateTemp and publish leaves this.
	stale := filepath.Join(dir, "decision-12345.tmp")
	if err := os.WriteFile(stale, []byte(`{"approved":`), 0644); err != nil {
		t.Fatalf("write stale temp: %v", err)
	}
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	fresh := filepath.Join(dir, "decision-67890.tmp")
	if err := os.WriteFile(fresh, []byte(`{"approved":`), 0644); err != nil {
		t.Fatalf("write fresh temp: %v", err)
	}

	removed, err := s.Sweep(time.Hour)
	if err != nil {
		t.Fatalf("Sweep error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 reaped, got %d", removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("stale temp file must be reaped")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh temp file must survive sweep: %v", err)
	}
}

func TestFileStore_HandwrittenDecisionFile(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)

	// The documented file channel response: the user echoes the minimal
	// document straight into the mailbox, no envelope fields.
	path := filepath.Join(dir, "abc123.json")
	if err := os.WriteFile(path, []byte(`{"approved": true}`), 0644); err != nil {
		t.Fatalf("write decision file: %v", err)
	}

	entry, ok, err := s.Get("abc123")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if !entry.Approved || entry.ApprovalID != "abc123" || entry.Channel != "file" {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	watched, err := Watch(ctx, s, "abc123", 5*time.Millisecond)
	if err != nil {
		t.Fatalf("Watch error: %v", err)
	}
	if !watched.Approved || watched.ApprovalID != "abc123" || watched.Channel != "file" {
		t.Fatalf("unexpected watched entry: %+v", watched)
	}

	decision := watched.Decision()
	if decision.ID != "abc123" || !decision.Approved || decision.Channel != "file" {
		t.Fatalf("unexpected decision: %+v", decision)
	}
}

func TestFileStore_HandwrittenRejection(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)

	path := filepath.Join(dir, "abc123.json")
	if err := os.WriteFile(path, []byte(`{"approved": false}`), 0644); err != nil {
		t.Fatalf("write decision file: %v", err)
	}

	entry, ok, err := s.Get("abc123")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if entry.Approved || entry.Channel != "file" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestFileStore_RequestDocuments(t *testing.T) {
	s := NewFileStore(t.TempDir())

	req := approval.Request{
		ID:       "abc123",
		ToolName: "delete_file",
		Preview:  "Delete README.md",
		Deadline: time.Now().Add(time.Minute).UTC(),
	}
	if err := s.PutRequest(req); err != nil {
		t.Fatalf("PutRequest error: %v", err)
	}

	listed, err := s.ListRequests()
	if err != nil {
		t.Fatalf("ListRequests error: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != "abc123" || listed[0].ToolName != "delete_file" {
		t.Fatalf("unexpected listing: %+v", listed)
	}

	if err := s.Cleanup("abc123"); err != nil {
		t.Fatalf("Cleanup error: %v", err)
	}
	listed, err = s.ListRequests()
	if err != nil {
		t.Fatalf("ListRequests error: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected request document removed, got %+v", listed)
	}
}

func TestWatch_ObservesLateWrite(t *testing.T) {
	s := NewMemoryStore()

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = s.Put("abc123", Entry{Approved: false, Channel: "telegram"})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	entry, err := Watch(ctx, s, "abc123", 5*time.Millisecond)
	if err != nil {
		t.Fatalf("Watch error: %v", err)
	}
	if entry.Approved || entry.Channel != "telegram" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestWatch_StopsOnCancel(t *testing.T) {
	s := NewMemoryStore()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := Watch(ctx, s, "abc123", 5*time.Millisecond)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
