package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/goatherd/core"
	"github.com/hupe1980/goatherd/logging"
)

// PrepareRequest carries the inputs for one session resolution.
type PrepareRequest struct {
	// SessionRef is the caller-chosen conversation key (e.g. channel id,
	// task key). Required.
	SessionRef string

	// ProjectPath optionally binds the session to a project context. A
	// follow-up turn that omits it must not rotate the session.
	ProjectPath string

	// Policy controls rotation: SessionNew forces a fresh id, SessionReuse
	// forces reuse, SessionAuto (default) rotates only when the supplied
	// ProjectPath differs from the stored one.
	Policy core.SessionPolicy

	// UserMessage is recorded for observability only; it does not affect
	// resolution.
	UserMessage string
}

// Resolution is the outcome of PrepareRunSession. When Enabled is false the
// agent runs stateless and Info is nil; callers must handle both branches.
type Resolution struct {
	Enabled bool
	Info    *Info
}

// Options configures a Service.
type Options struct {
	// Store persists session records. Defaults to an in-memory store.
	Store Store

	// Enabled decides whether sessions are enabled for an agent. Unknown
	// agents should return false. Defaults to enabling every agent.
	Enabled func(agentID string) bool

	// NewSessionID allocates session ids. Defaults to UUIDs. Overridable
	// for deterministic tests.
	NewSessionID func() string

	// Now supplies timestamps. Defaults to time.Now.
	Now func() time.Time

	// Logger defaults to NoOp.
	Logger logging.Logger
}

// Service resolves session identity for orchestration runs. A record for a
// given (agentID, sessionRef) is only ever mutated under that pair's lock, so
// two concurrent runs cannot produce a torn rotation.
type Service struct {
	opts Options

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a session Service with optional overrides.
func NewService(optFns ...func(o *Options)) *Service {
	opts := Options{
		Store:        NewInMemoryStore(),
		Enabled:      func(string) bool { return true },
		NewSessionID: uuid.NewString,
		Now:          time.Now,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Service{opts: opts, locks: make(map[string]*sync.Mutex)}
}

// PrepareRunSession resolves the session for one (agent, sessionRef) pair
// according to the reuse/rotation rules:
//
//   - no record: create one with a fresh session id
//   - policy "new": rotate unconditionally
//   - policy "reuse": keep the stored id unconditionally
//   - policy "auto": rotate only when a supplied ProjectPath differs from the
//     stored one; an omitted ProjectPath always reuses verbatim
//
// Storage failures propagate; the run must not proceed with an unresolved
// session when sessions are expected to be enabled.
func (s *Service) PrepareRunSession(ctx context.Context, agentID string, req PrepareRequest) (Resolution, error) {
	if err := ctx.Err(); err != nil {
		return Resolution{}, err
	}
	if !s.opts.Enabled(agentID) {
		return Resolution{Enabled: false}, nil
	}
	if req.SessionRef == "" {
		return Resolution{}, fmt.Errorf("session: empty session ref for agent %s", agentID)
	}

	lock := s.keyLock(agentID, req.SessionRef)
	lock.Lock()
	defer lock.Unlock()

	now := s.opts.Now()

	info, err := s.opts.Store.Load(agentID, req.SessionRef)
	switch {
	case errors.Is(err, ErrNotFound):
		info = &Info{
			SessionKey:  req.SessionRef,
			SessionID:   s.opts.NewSessionID(),
			ProjectPath: req.ProjectPath,
		}
		info.Touch(now)
		s.opts.Logger.Debug("session created", "agent_id", agentID, "session_key", req.SessionRef, "session_id", info.SessionID)
	case err != nil:
		return Resolution{}, fmt.Errorf("session: load %s/%s: %w", agentID, req.SessionRef, err)
	default:
		if s.shouldRotate(info, req) {
			old := info.SessionID
			info.SessionID = s.opts.NewSessionID()
			if req.ProjectPath != "" {
				info.ProjectPath = req.ProjectPath
			}
			info.CompactionCount = 0
			s.opts.Logger.Debug("session rotated", "agent_id", agentID, "session_key", req.SessionRef, "old_session_id", old, "session_id", info.SessionID)
		}
		info.Touch(now)
	}

	if err := s.opts.Store.Save(agentID, info); err != nil {
		return Resolution{}, fmt.Errorf("session: save %s/%s: %w", agentID, req.SessionRef, err)
	}

	cp := *info
	return Resolution{Enabled: true, Info: &cp}, nil
}

// shouldRotate applies the rotation rules; caller holds the key lock.
func (s *Service) shouldRotate(stored *Info, req PrepareRequest) bool {
	switch req.Policy {
	case core.SessionNew:
		return true
	case core.SessionReuse:
		return false
	default:
		return req.ProjectPath != "" && req.ProjectPath != stored.ProjectPath
	}
}

// Compact increments the record's compaction count without rotating the
// session id. Returns the updated record.
func (s *Service) Compact(ctx context.Context, agentID, sessionRef string) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lock := s.keyLock(agentID, sessionRef)
	lock.Lock()
	defer lock.Unlock()

	info, err := s.opts.Store.Load(agentID, sessionRef)
	if err != nil {
		return nil, fmt.Errorf("session: compact %s/%s: %w", agentID, sessionRef, err)
	}
	info.CompactionCount++
	info.Touch(s.opts.Now())
	if err := s.opts.Store.Save(agentID, info); err != nil {
		return nil, fmt.Errorf("session: compact %s/%s: %w", agentID, sessionRef, err)
	}
	cp := *info
	return &cp, nil
}

// Reset removes the record for the pair. Resetting an absent record is not an
// error.
func (s *Service) Reset(ctx context.Context, agentID, sessionRef string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lock := s.keyLock(agentID, sessionRef)
	lock.Lock()
	defer lock.Unlock()
	return s.opts.Store.Delete(agentID, sessionRef)
}

// List returns all records for an agent.
func (s *Service) List(agentID string) ([]Info, error) {
	return s.opts.Store.List(agentID)
}

// keyLock returns the mutex guarding one (agent, sessionRef) pair, creating
// it lazily.
func (s *Service) keyLock(agentID, sessionRef string) *sync.Mutex {
	key := agentID + "\x00" + sessionRef
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[key] = l
	return l
}
