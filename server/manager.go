package server

import "sync"

// SessionManager tracks every session currently in flight, so the admin
// endpoint can list them without each session needing to know about its
// siblings.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

var (
	defaultManager *SessionManager
	managerOnce    sync.Once
)

// GetSessionManager returns the process-wide singleton SessionManager.
func GetSessionManager() *SessionManager {
	managerOnce.Do(func() {
		defaultManager = &SessionManager{sessions: make(map[string]*Session)}
	})
	return defaultManager
}

// Add registers s under its session ID.
func (m *SessionManager) Add(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.id] = s
}

// Remove drops the session with the given ID.
func (m *SessionManager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Snapshot returns the current state of every in-flight session.
func (m *SessionManager) Snapshot() []SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SessionState, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.State())
	}
	return out
}
