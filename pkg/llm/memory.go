package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ConversationSession is the stored history of one (user, session) pair
type ConversationSession struct {
	UserID       string    `json:"user_id"`
	SessionID    string    `json:"session_id"`
	Messages     []Message `json:"messages"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewConversationSession returns an empty session stamped with the current time
func NewConversationSession(userID, sessionID, systemPrompt string) *ConversationSession {
	now := time.Now().UTC()
	return &ConversationSession{
		UserID:       userID,
		SessionID:    sessionID,
		Messages:     []Message{},
		SystemPrompt: systemPrompt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// DeepCopy returns a copy that shares no messages with s
func (s *ConversationSession) DeepCopy() *ConversationSession {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Messages = make([]Message, 0, len(s.Messages))
	for _, m := range s.Messages {
		cp.Messages = append(cp.Messages, m.DeepCopy())
	}
	return &cp
}

// ":" separates the key segments, so it is percent-escaped inside ids
var (
	keyEscaper   = strings.NewReplacer("%", "%25", ":", "%3A")
	keyUnescaper = strings.NewReplacer("%3A", ":", "%25", "%")
)

// SessionKey is the storage key of a session: conversation:{user}:{session}.
// ":" and "%" inside the ids are escaped.
func SessionKey(userID, sessionID string) string {
	return fmt.Sprintf("conversation:%s:%s", keyEscaper.Replace(userID), keyEscaper.Replace(sessionID))
}

// SessionKeyPrefix is the key prefix shared by all sessions of a user
func SessionKeyPrefix(userID string) string {
	return fmt.Sprintf("conversation:%s:", keyEscaper.Replace(userID))
}

// SessionIDFromKey returns the session id of a key built by SessionKey for
// userID. Keys of other users, including users whose id extends userID, are
// rejected.
func SessionIDFromKey(userID, key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, SessionKeyPrefix(userID))
	if !ok || strings.Contains(rest, ":") {
		return "", false
	}
	return keyUnescaper.Replace(rest), true
}

// Memory stores conversation sessions.
//
// Implementations do not lock across calls: callers running concurrent turns
// against the same (user, session) pair must serialize them, updates are
// last-write-wins.
type Memory interface {
	// CreateSession creates (or resets) a session and returns it
	CreateSession(ctx context.Context, userID, sessionID, systemPrompt string) (*ConversationSession, error)
	// GetSession returns ErrSessionNotFound when the session does not exist
	GetSession(ctx context.Context, userID, sessionID string) (*ConversationSession, error)
	// UpdateSession replaces the stored session wholesale
	UpdateSession(ctx context.Context, session *ConversationSession) error
	// AddMessage appends one message, creating the session if needed
	AddMessage(ctx context.Context, userID, sessionID string, message Message) error
	// ClearSession removes the session
	ClearSession(ctx context.Context, userID, sessionID string) error
	// ListSessions returns the session ids of a user
	ListSessions(ctx context.Context, userID string) ([]string, error)
}
