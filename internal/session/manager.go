// Package session tracks the pages served to browsers so the live connection
// a page opens can be tied back to its session group.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// Session is one served page awaiting or holding a live connection.
type Session struct {
	ID         string
	Group      string // browsers in the same group share one record
	Component  string
	CreatedAt  time.Time
	LastAccess time.Time
}

// Manager handles session lifecycle
type Manager struct {
	sessions map[string]*Session
	mu       sync.Mutex
	ttl      time.Duration
}

// NewManager creates a session manager; sessions idle longer than ttl expire.
func NewManager(ttl time.Duration) *Manager {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// CreateSession creates a session in group for component
func (m *Manager) CreateSession(group, component string) (*Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	s := &Session{
		ID:         id,
		Group:      group,
		Component:  component,
		CreatedAt:  now,
		LastAccess: now,
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return s, nil
}

// GetSession returns a copy of a live session and refreshes its access time.
func (m *Manager) GetSession(id string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, false
	}
	if time.Since(s.LastAccess) > m.ttl {
		delete(m.sessions, id)
		return Session{}, false
	}
	s.LastAccess = time.Now()
	return *s, true
}

// DeleteSession removes a session
func (m *Manager) DeleteSession(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Len returns the number of tracked sessions, expired ones included.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Groups returns the groups that still hold an unexpired session.
func (m *Manager) Groups() map[string]struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	groups := make(map[string]struct{})
	cutoff := time.Now().Add(-m.ttl)
	for _, s := range m.sessions {
		if !s.LastAccess.Before(cutoff) {
			groups[s.Group] = struct{}{}
		}
	}
	return groups
}

// CleanupExpiredSessions removes expired sessions
func (m *Manager) CleanupExpiredSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	cutoff := time.Now().Add(-m.ttl)
	for id, s := range m.sessions {
		if s.LastAccess.Before(cutoff) {
			delete(m.sessions, id)
			count++
		}
	}
	return count
}

// generateSessionID creates a cryptographically secure session ID
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
