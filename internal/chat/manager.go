package chat

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"artyats/internal/ai"
	"artyats/internal/config"
	"artyats/internal/errors"

	"github.com/google/uuid"
)

// Manager keeps sessions in memory, keyed by a random id, and evicts the ones
// left idle longer than the configured TTL.
type Manager struct {
	gen    ai.Generator
	cfg    config.ChatConfig
	logger *errors.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	onChange func(active int)

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithSessionCount registers a callback told the number of live sessions
// after every change.
func WithSessionCount(fn func(active int)) ManagerOption {
	return func(m *Manager) { m.onChange = fn }
}

// NewManager creates a manager and starts its eviction loop when both the
// TTL and the cleanup interval are positive.
func NewManager(gen ai.Generator, cfg config.ChatConfig, logger *errors.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = errors.Nop()
	}
	m := &Manager{
		gen:      gen,
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*Session),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if cfg.SessionTTL > 0 && cfg.CleanupInterval > 0 {
		go m.cleanupLoop()
	} else {
		close(m.done)
	}
	return m
}

// Create starts a session for one resume and job description pair.
func (m *Manager) Create(resumeText, jobDescriptionText string) (*Session, error) {
	if strings.TrimSpace(resumeText) == "" || strings.TrimSpace(jobDescriptionText) == "" {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidInput,
			"resume and job description text are required to start a chat", nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		return nil, errors.NewConflictError(errors.ErrCodeSessionLimit,
			fmt.Sprintf("session limit of %d reached", m.cfg.MaxSessions), nil)
	}

	s := NewSession(uuid.NewString(), m.gen, resumeText, jobDescriptionText, m.cfg.MaxContextTurns)
	m.sessions[s.ID()] = s
	m.logger.Debug("Chat session created", "session_id", s.ID(), "active_sessions", len(m.sessions))
	m.notify()
	return s, nil
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, sessionNotFound(id)
	}
	return s, nil
}

// Delete discards the session with id.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return sessionNotFound(id)
	}
	delete(m.sessions, id)
	m.logger.Debug("Chat session deleted", "session_id", id)
	m.notify()
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CleanupExpired removes sessions idle longer than the TTL. Sessions waiting
// on an answer are kept.
func (m *Manager) CleanupExpired(now time.Time) int {
	if m.cfg.SessionTTL <= 0 {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		idle, awaiting := s.idleSince(now)
		if !awaiting && idle > m.cfg.SessionTTL {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Debug("Expired chat sessions removed", "removed", removed, "active_sessions", len(m.sessions))
		m.notify()
	}
	return removed
}

// notify reports the session count. Callers hold mu.
func (m *Manager) notify() {
	if m.onChange != nil {
		m.onChange(len(m.sessions))
	}
}

func (m *Manager) cleanupLoop() {
	defer close(m.done)
	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			m.CleanupExpired(now)
		case <-m.stop:
			return
		}
	}
}

// Close stops the eviction loop. It is safe to call more than once.
func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.stop) })
	<-m.done
}

func sessionNotFound(id string) error {
	return errors.NewNotFoundError(errors.ErrCodeSessionNotFound,
		fmt.Sprintf("chat session %q not found", id), nil)
}
