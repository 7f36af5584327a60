package perception

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/maypok86/otter"
	"go.uber.org/zap"

	"promptcanvas/internal/logging"
)

// ManagerConfig configures a SessionManager.
type ManagerConfig struct {
	// TTL is how long an idle session is kept.
	TTL time.Duration

	// MaxSessions bounds the number of live sessions. The least valuable
	// idle session is evicted when the bound is reached.
	MaxSessions int

	Logger *zap.Logger
}

type sessionEntry struct {
	id      string
	session Session
	// sem is a one-slot semaphore; holding it means holding the session.
	sem chan struct{}

	// Guarded by SessionManager.mu.
	refs    int
	dropped bool
}

// SessionManager hands out sessions by conversation id, creating them on
// first use and forgetting them after TTL of inactivity. Every session is
// used by at most one turn at a time.
type SessionManager struct {
	factory Factory
	logger  *zap.Logger

	// mu serializes session creation and guards pinned.
	mu     sync.Mutex
	closed bool
	cache  *otter.Cache[string, *sessionEntry]

	// pinned holds every entry with a pending or active lease. The cache
	// may evict or expire an entry at any time; a pinned entry is still
	// the one handed out for its id.
	pinned map[string]*sessionEntry
}

// NewSessionManager creates a manager that builds sessions with factory.
func NewSessionManager(factory Factory, cfg ManagerConfig) (*SessionManager, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 1000
	}

	cache, err := otter.MustBuilder[string, *sessionEntry](cfg.MaxSessions).
		WithTTL(cfg.TTL).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build session cache: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Get(logging.CategorySession).Zap()
	}
	return &SessionManager{
		factory: factory,
		logger:  logger,
		cache:   &cache,
		pinned:  make(map[string]*sessionEntry),
	}, nil
}

// Lease is exclusive access to one session until Release.
type Lease struct {
	Session
	ID string

	once    sync.Once
	release func()
}

// Release gives the session back. Calling it more than once is harmless.
func (l *Lease) Release() {
	l.once.Do(l.release)
}

// Acquire returns the session for id, creating it if needed, and waits
// until no other turn holds it. An empty id means DefaultSessionID.
func (m *SessionManager) Acquire(ctx context.Context, id string) (*Lease, error) {
	if id == "" {
		id = DefaultSessionID
	}

	entry, err := m.entry(ctx, id)
	if err != nil {
		return nil, err
	}

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		m.unpin(entry)
		return nil, ctx.Err()
	}

	return &Lease{
		Session: entry.session,
		ID:      id,
		release: func() {
			<-entry.sem
			m.unpin(entry)
		},
	}, nil
}

// entry returns the entry for id with its reference count raised.
func (m *SessionManager) entry(ctx context.Context, id string) (*sessionEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}
	if e, ok := m.pinned[id]; ok {
		e.refs++
		return e, nil
	}
	if e, ok := m.cache.Get(id); ok {
		e.refs++
		m.pinned[id] = e
		return e, nil
	}

	s, err := m.factory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to create session %q: %w", id, err)
	}
	e := &sessionEntry{id: id, session: s, sem: make(chan struct{}, 1), refs: 1}
	m.pinned[id] = e
	m.cache.Set(id, e)
	m.logger.Info("Session created", zap.String("session", id), zap.Int("live", m.cache.Size()))
	return e, nil
}

// unpin drops one reference. The entry is written back to the cache so the
// write-based TTL acts as an idle timeout counted from the last turn.
func (m *SessionManager) unpin(e *sessionEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.refs--
	if e.refs > 0 {
		return
	}
	if m.pinned[e.id] == e {
		delete(m.pinned, e.id)
	}
	if !e.dropped && !m.closed {
		m.cache.Set(e.id, e)
	}
}

// Forget drops the session for id. A turn holding it finishes normally.
func (m *SessionManager) Forget(id string) {
	if id == "" {
		id = DefaultSessionID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.pinned[id]; ok {
		e.dropped = true
		delete(m.pinned, id)
	}
	m.cache.Delete(id)
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	return m.cache.Size()
}

// Close drops every session and stops the expiry worker.
func (m *SessionManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.pinned = make(map[string]*sessionEntry)
	m.cache.Close()
}
