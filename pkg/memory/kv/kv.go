package kv

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/inercia/go-llm-unify/pkg/llm"
)

// ErrNotFound is returned by a Store when the key does not exist
var ErrNotFound = errors.New("kv: key not found")

// Store is the minimal key-value contract a durable memory needs
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys returns every key starting with prefix
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Memory stores sessions as JSON blobs in a Store
type Memory struct {
	store  Store
	logger *slog.Logger
}

// Option configures a Memory
type Option func(*Memory)

// WithLogger sets the logger used for decode failures
func WithLogger(logger *slog.Logger) Option {
	return func(m *Memory) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New returns a Memory backed by store
func New(store Store, opts ...Option) *Memory {
	m := &Memory{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Ensure Memory implements llm.Memory at compile time.
var _ llm.Memory = (*Memory)(nil)

func (m *Memory) put(ctx context.Context, session *llm.ConversationSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "kv: encode session")
	}
	key := llm.SessionKey(session.UserID, session.SessionID)
	if err := m.store.Set(ctx, key, data); err != nil {
		return errors.Wrapf(err, "kv: set %s", key)
	}
	return nil
}

// CreateSession writes a fresh session, overwriting any previous one
func (m *Memory) CreateSession(ctx context.Context, userID, sessionID, systemPrompt string) (*llm.ConversationSession, error) {
	session := llm.NewConversationSession(userID, sessionID, systemPrompt)
	if err := m.put(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession loads and decodes a session
func (m *Memory) GetSession(ctx context.Context, userID, sessionID string) (*llm.ConversationSession, error) {
	key := llm.SessionKey(userID, sessionID)
	data, err := m.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, llm.ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "kv: get %s", key)
	}

	var session llm.ConversationSession
	if err := json.Unmarshal(data, &session); err != nil {
		m.logger.Error("kv: corrupt session", "key", key, "error", err)
		return nil, errors.Wrapf(err, "kv: decode %s", key)
	}
	if session.Messages == nil {
		session.Messages = []llm.Message{}
	}
	return &session, nil
}

// UpdateSession replaces the stored blob
func (m *Memory) UpdateSession(ctx context.Context, session *llm.ConversationSession) error {
	if session == nil {
		return errors.New("kv: nil session")
	}
	return m.put(ctx, session)
}

// AddMessage reads, appends and writes back. It is not atomic.
func (m *Memory) AddMessage(ctx context.Context, userID, sessionID string, message llm.Message) error {
	session, err := m.GetSession(ctx, userID, sessionID)
	if errors.Is(err, llm.ErrSessionNotFound) {
		session = llm.NewConversationSession(userID, sessionID, "")
	} else if err != nil {
		return err
	}
	session.Messages = append(session.Messages, message)
	session.UpdatedAt = time.Now().UTC()
	return m.put(ctx, session)
}

// ClearSession deletes the session key
func (m *Memory) ClearSession(ctx context.Context, userID, sessionID string) error {
	key := llm.SessionKey(userID, sessionID)
	if err := m.store.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		return errors.Wrapf(err, "kv: delete %s", key)
	}
	return nil
}

// ListSessions returns the sorted session ids stored for userID
func (m *Memory) ListSessions(ctx context.Context, userID string) ([]string, error) {
	prefix := llm.SessionKeyPrefix(userID)
	keys, err := m.store.Keys(ctx, prefix)
	if err != nil {
		return nil, errors.Wrapf(err, "kv: list %s", prefix)
	}

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		if id, ok := llm.SessionIDFromKey(userID, key); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
