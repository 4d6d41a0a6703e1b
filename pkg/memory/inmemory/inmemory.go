package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/inercia/go-llm-unify/pkg/llm"
)

// Memory keeps sessions in a map keyed by llm.SessionKey. Values are deep
// copied on the way in and out so callers never share state with the store.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*llm.ConversationSession
}

// New returns an empty Memory
func New() *Memory {
	return &Memory{sessions: make(map[string]*llm.ConversationSession)}
}

// Ensure Memory implements llm.Memory at compile time.
var _ llm.Memory = (*Memory)(nil)

// CreateSession stores a fresh session, replacing any previous one
func (m *Memory) CreateSession(_ context.Context, userID, sessionID, systemPrompt string) (*llm.ConversationSession, error) {
	session := llm.NewConversationSession(userID, sessionID, systemPrompt)

	m.mu.Lock()
	m.sessions[llm.SessionKey(userID, sessionID)] = session.DeepCopy()
	m.mu.Unlock()

	return session, nil
}

// GetSession returns a copy of the stored session
func (m *Memory) GetSession(_ context.Context, userID, sessionID string) (*llm.ConversationSession, error) {
	m.mu.RLock()
	session, ok := m.sessions[llm.SessionKey(userID, sessionID)]
	m.mu.RUnlock()

	if !ok {
		return nil, llm.ErrSessionNotFound
	}
	return session.DeepCopy(), nil
}

// UpdateSession replaces the stored session
func (m *Memory) UpdateSession(_ context.Context, session *llm.ConversationSession) error {
	m.mu.Lock()
	m.sessions[llm.SessionKey(session.UserID, session.SessionID)] = session.DeepCopy()
	m.mu.Unlock()
	return nil
}

// AddMessage appends message to the session, creating it when missing
func (m *Memory) AddMessage(_ context.Context, userID, sessionID string, message llm.Message) error {
	key := llm.SessionKey(userID, sessionID)

	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[key]
	if !ok {
		session = llm.NewConversationSession(userID, sessionID, "")
		m.sessions[key] = session
	}
	session.Messages = append(session.Messages, message.DeepCopy())
	session.UpdatedAt = time.Now().UTC()
	return nil
}

// ClearSession removes the session
func (m *Memory) ClearSession(_ context.Context, userID, sessionID string) error {
	m.mu.Lock()
	delete(m.sessions, llm.SessionKey(userID, sessionID))
	m.mu.Unlock()
	return nil
}

// ListSessions returns the sorted session ids of userID
func (m *Memory) ListSessions(_ context.Context, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := []string{}
	for key := range m.sessions {
		if id, ok := llm.SessionIDFromKey(userID, key); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
