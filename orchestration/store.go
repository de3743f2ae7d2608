package orchestration

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/goatherd/core"
)

// ErrLedgerNotFound is returned when no ledger exists for the run id.
var ErrLedgerNotFound = errors.New("run ledger not found")

// LedgerStore persists run ledgers. Save overwrites the whole ledger keyed by
// run id, which together with RunLedger.AppendStep's dedup makes step
// persistence idempotent under crash-retry.
type LedgerStore interface {
	Save(ledger *core.RunLedger) error
	Load(runID string) (*core.RunLedger, error)
	List() ([]string, error)
}

// InMemoryLedgerStore is a volatile LedgerStore for tests and prototypes.
// Ledgers are deep-copied on save and load so callers cannot mutate stored
// state.
type InMemoryLedgerStore struct {
	mu      sync.RWMutex
	ledgers map[string]*core.RunLedger
}

// NewInMemoryLedgerStore constructs an empty in-memory ledger store.
func NewInMemoryLedgerStore() *InMemoryLedgerStore {
	return &InMemoryLedgerStore{ledgers: make(map[string]*core.RunLedger)}
}

// Save implements LedgerStore.
func (s *InMemoryLedgerStore) Save(ledger *core.RunLedger) error {
	cp, err := cloneLedger(ledger)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledgers[ledger.RunID] = cp
	return nil
}

// Load implements LedgerStore.
func (s *InMemoryLedgerStore) Load(runID string) (*core.RunLedger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.ledgers[runID]
	if !ok {
		return nil, ErrLedgerNotFound
	}
	return cloneLedger(l)
}

// List implements LedgerStore.
func (s *InMemoryLedgerStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.ledgers))
	for id := range s.ledgers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// cloneLedger deep-copies a ledger through its JSON form. Ledgers are plain
// data, so the roundtrip is lossless.
func cloneLedger(l *core.RunLedger) (*core.RunLedger, error) {
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("clone ledger: %w", err)
	}
	var cp core.RunLedger
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("clone ledger: %w", err)
	}
	return &cp, nil
}

// FileLedgerStore persists one JSON file per run under a root directory.
// Writes go through a temp file + rename so a crash mid-write never leaves a
// torn ledger behind.
type FileLedgerStore struct {
	root string
}

// NewFileLedgerStore constructs a file-backed ledger store rooted at dir.
func NewFileLedgerStore(dir string) *FileLedgerStore {
	return &FileLedgerStore{root: dir}
}

// Save implements LedgerStore.
func (s *FileLedgerStore) Save(ledger *core.RunLedger) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	data, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	tmp, err := os.CreateTemp(s.root, ".ledger-*")
	if err != nil {
		return fmt.Errorf("create temp ledger file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(ledger.RunID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("persist ledger: %w", err)
	}
	return nil
}

// Load implements LedgerStore.
func (s *FileLedgerStore) Load(runID string) (*core.RunLedger, error) {
	data, err := os.ReadFile(s.path(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrLedgerNotFound
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	var ledger core.RunLedger
	if err := json.Unmarshal(data, &ledger); err != nil {
		return nil, fmt.Errorf("decode ledger %s: %w", runID, err)
	}
	return &ledger, nil
}

// List implements LedgerStore.
func (s *FileLedgerStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list ledgers: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *FileLedgerStore) path(runID string) string {
	return filepath.Join(s.root, runID+".json")
}
