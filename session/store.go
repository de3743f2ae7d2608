package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned when no session record exists for the given
// (agent, session key) pair.
var ErrNotFound = errors.New("session not found")

// Store persists session records. Implementations must tolerate concurrent
// calls for distinct keys; the Service serializes calls per key.
type Store interface {
	// Load returns the record for the pair or ErrNotFound.
	Load(agentID, sessionKey string) (*Info, error)

	// Save creates or overwrites the record for the pair.
	Save(agentID string, info *Info) error

	// Delete removes the record. Deleting an absent record is not an error.
	Delete(agentID, sessionKey string) error

	// List returns all records for the agent sorted by session key.
	List(agentID string) ([]Info, error)
}

// InMemoryStore is a volatile Store implementation keeping records in a
// process-local map. Safe for concurrent access; best suited for tests.
// Records are copied on load/save to prevent external mutation.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[string]Info // agentID -> sessionKey -> record
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]map[string]Info)}
}

// Load implements Store.
func (s *InMemoryStore) Load(agentID, sessionKey string) (*Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.records[agentID]
	if !ok {
		return nil, ErrNotFound
	}
	info, ok := m[sessionKey]
	if !ok {
		return nil, ErrNotFound
	}
	cp := info
	return &cp, nil
}

// Save implements Store.
func (s *InMemoryStore) Save(agentID string, info *Info) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[agentID]; !ok {
		s.records[agentID] = make(map[string]Info)
	}
	s.records[agentID][info.SessionKey] = *info
	return nil
}

// Delete implements Store.
func (s *InMemoryStore) Delete(agentID, sessionKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.records[agentID]; ok {
		delete(m, sessionKey)
	}
	return nil
}

// List implements Store.
func (s *InMemoryStore) List(agentID string) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.records[agentID]
	out := make([]Info, 0, len(m))
	for _, info := range m {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionKey < out[j].SessionKey })
	return out, nil
}

// FileStore persists one JSON file per (agent, session key) pair under a root
// directory, laid out as <root>/<agentID>/<key>.json. Writes go through a
// temp file + rename so a crash never leaves a torn record.
type FileStore struct {
	root string
}

// NewFileStore constructs a file-backed store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

// Load implements Store.
func (s *FileStore) Load(agentID, sessionKey string) (*Info, error) {
	data, err := os.ReadFile(s.path(agentID, sessionKey))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read session record: %w", err)
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode session record: %w", err)
	}
	return &info, nil
}

// Save implements Store.
func (s *FileStore) Save(agentID string, info *Info) error {
	dir := filepath.Join(s.root, sanitize(agentID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session record: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write session record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close session record: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(agentID, info.SessionKey)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("persist session record: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *FileStore) Delete(agentID, sessionKey string) error {
	err := os.Remove(s.path(agentID, sessionKey))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session record: %w", err)
	}
	return nil
}

// List implements Store.
func (s *FileStore) List(agentID string) ([]Info, error) {
	dir := filepath.Join(s.root, sanitize(agentID))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Info{}, nil
		}
		return nil, fmt.Errorf("list session records: %w", err)
	}
	out := make([]Info, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read session record: %w", err)
		}
		var info Info
		if err := json.Unmarshal(data, &info); err != nil {
			return nil, fmt.Errorf("decode session record %s: %w", e.Name(), err)
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionKey < out[j].SessionKey })
	return out, nil
}

func (s *FileStore) path(agentID, sessionKey string) string {
	return filepath.Join(s.root, sanitize(agentID), sanitize(sessionKey)+".json")
}

// sanitize keeps record names filesystem-safe. Session keys are caller
// chosen, so path separators and parent references must not escape the root.
func sanitize(name string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", "..", "_", string(os.PathSeparator), "_")
	out := r.Replace(name)
	if out == "" {
		out = "_"
	}
	return out
}
