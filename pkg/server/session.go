package server

import (
	"crypto/rand"
	"encoding/binary"
	"strings"
	"sync"

	"github.com/google/uuid"

	"warden/pkg/model"
	"warden/pkg/moderation"
)

// Conn is a session's outbound half.
type Conn interface {
	Send(text string) error
	Close() error
}

// Session is one connected identity.
type Session struct {
	ID        uint32
	Name      string
	SubjectID uuid.UUID
	Role      model.Role
	Address   string // remote host without port; empty when capture failed
	Conn      Conn
}

// SessionManager manages active sessions. The lock makes reads safe from
// listener goroutines; mutation happens on the main loop.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[uint32]*Session // sessionID -> session
}

// NewSessionManager creates a new session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[uint32]*Session),
	}
}

// Create registers a session for a freshly connected identity.
func (sm *SessionManager) Create(name string, subjectID uuid.UUID, role model.Role, address string, conn Conn) *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	// Random non-zero session ID
	var id uint32
	for {
		b := make([]byte, 4)
		if _, err := rand.Read(b); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		id = binary.BigEndian.Uint32(b)
		if id != 0 {
			if _, exists := sm.sessions[id]; !exists {
				break
			}
		}
	}

	sess := &Session{
		ID:        id,
		Name:      name,
		SubjectID: subjectID,
		Role:      role,
		Address:   address,
		Conn:      conn,
	}
	sm.sessions[id] = sess
	return sess
}

// Get retrieves a session by ID.
func (sm *SessionManager) Get(id uint32) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[id]
}

// GetByName retrieves a session by display name, case-insensitive.
func (sm *SessionManager) GetByName(name string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for _, s := range sm.sessions {
		if strings.EqualFold(s.Name, name) {
			return s
		}
	}
	return nil
}

// Remove removes a session.
func (sm *SessionManager) Remove(id uint32) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, id)
}

// Count returns the number of active sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// All returns all active sessions (snapshot).
func (sm *SessionManager) All() []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	result := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		result = append(result, s)
	}
	return result
}

// Names returns all connected display names, for completion.
func (sm *SessionManager) Names() []string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	names := make([]string, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		names = append(names, s.Name)
	}
	return names
}

// LiveSubjectID implements identity.Presence.
func (sm *SessionManager) LiveSubjectID(name string) (uuid.UUID, bool) {
	if s := sm.GetByName(name); s != nil {
		return s.SubjectID, true
	}
	return uuid.UUID{}, false
}

// ByName implements moderation.Presence.
func (sm *SessionManager) ByName(name string) (moderation.LiveSession, bool) {
	s := sm.GetByName(name)
	if s == nil {
		return moderation.LiveSession{}, false
	}
	return liveView(s), true
}

// ByAddress implements moderation.Presence. Sessions without a captured
// address never match.
func (sm *SessionManager) ByAddress(address string) []moderation.LiveSession {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	var out []moderation.LiveSession
	for _, s := range sm.sessions {
		if s.Address != "" && s.Address == address {
			out = append(out, liveView(s))
		}
	}
	return out
}

func liveView(s *Session) moderation.LiveSession {
	return moderation.LiveSession{
		ID:        s.ID,
		Name:      s.Name,
		SubjectID: s.SubjectID,
		Address:   s.Address,
	}
}
