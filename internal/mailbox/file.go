package mailbox

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MEKXH/citegate/internal/approval"
)

const (
	entryFileMode = 0644
	entryDirMode  = 0755

	requestSuffix = ".request.json"
	entrySuffix   = ".json"
)

// FileStore persists decisions as one JSON document per approval ID under a
// well-known directory. Writes go to a temp file that is hardlinked into
// place, so a reader never observes a partial entry and a second writer for
// the same ID always loses.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the mailbox directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) entryPath(id string) (string, error) {
	if !approval.ValidID(id) {
		return "", approval.ErrInvalidID
	}
	return filepath.Join(s.dir, id+entrySuffix), nil
}

// Put writes the entry for id; the first writer wins.
func (s *FileStore) Put(id string, entry Entry) error {
	path, err := s.entryPath(id)
	if err != nil {
		return err
	}
	entry.ApprovalID = id
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	encoded, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal mailbox entry: %w", err)
	}

	if err := os.MkdirAll(s.dir, entryDirMode); err != nil {
		return fmt.Errorf("create mailbox dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(s.dir, "decision-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp mailbox entry: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.Write(encoded); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp mailbox entry: %w", err)
	}
	if err := tmpFile.Chmod(entryFileMode); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("chmod temp mailbox entry: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp mailbox entry: %w", err)
	}

	// Link, not rename: link fails if the target exists, which is exactly
	// the no-clobber guarantee a plain rename cannot give.
	if err := os.Link(tmpPath, path); err != nil {
		if os.IsExist(err) {
			return approval.ErrAlreadyResolved
		}
		return fmt.Errorf("publish mailbox entry: %w", err)
	}
	return nil
}

// Get reads the entry for id; absence means still pending.
func (s *FileStore) Get(id string) (Entry, bool, error) {
	path, err := s.entryPath(id)
	if err != nil {
		return Entry{}, false, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("read mailbox entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("parse mailbox entry: %w", err)
	}
	// Hand-written decision files carry only {"approved": ...}.
	if entry.ApprovalID == "" {
		entry.ApprovalID = id
	}
	if entry.Channel == "" {
		entry.Channel = "file"
	}
	return entry, true, nil
}

// Cleanup removes the entry and any companion request document for id.
func (s *FileStore) Cleanup(id string) error {
	path, err := s.entryPath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove mailbox entry: %w", err)
	}
	reqPath := filepath.Join(s.dir, id+requestSuffix)
	if err := os.Remove(reqPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove mailbox request: %w", err)
	}
	return nil
}

// Sweep removes documents older than maxAge. It covers request documents
// and temp files too, so leftovers from crashed processes do not pile up.
func (s *FileStore) Sweep(maxAge time.Duration) (int, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read mailbox dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		if !strings.HasSuffix(de.Name(), entrySuffix) && !strings.HasSuffix(de.Name(), ".tmp") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, de.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

// PutRequest writes the human-readable instruction document the file
// channel points users at. Unlike decisions it may be overwritten.
func (s *FileStore) PutRequest(req approval.Request) error {
	if !approval.ValidID(req.ID) {
		return approval.ErrInvalidID
	}
	encoded, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal mailbox request: %w", err)
	}
	if err := os.MkdirAll(s.dir, entryDirMode); err != nil {
		return fmt.Errorf("create mailbox dir: %w", err)
	}
	path := filepath.Join(s.dir, req.ID+requestSuffix)
	if err := os.WriteFile(path, encoded, entryFileMode); err != nil {
		return fmt.Errorf("write mailbox request: %w", err)
	}
	return nil
}

// ListRequests returns instruction documents currently in the mailbox.
func (s *FileStore) ListRequests() ([]approval.Request, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read mailbox dir: %w", err)
	}

	var requests []approval.Request
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), requestSuffix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, de.Name()))
		if err != nil {
			continue
		}
		var req approval.Request
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}
		requests = append(requests, req)
	}
	return requests, nil
}
