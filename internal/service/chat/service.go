package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zhouzirui/webhook-chat/backend/internal/model/chat"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidSessionID = errors.New("invalid session id")
)

// Service keeps one append-only transcript per widget session.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	messages map[string][]chat.Message
	now      func() time.Time
}

// NewService bootstraps the in-memory transcript store.
func NewService() *Service {
	return &Service{
		sessions: make(map[string]chat.Session),
		messages: make(map[string][]chat.Message),
		now:      time.Now,
	}
}

// CreateSession issues a fresh session identifier.
func (s *Service) CreateSession(ctx context.Context) (chat.Session, error) {
	for {
		session, created, err := s.EnsureSession(ctx, chat.NewSessionID(s.now()))
		if err != nil {
			return chat.Session{}, err
		}
		if created {
			return session, nil
		}
	}
}

// EnsureSession registers id if it is unknown. created reports whether the
// session did not exist before the call.
func (s *Service) EnsureSession(_ context.Context, id string) (session chat.Session, created bool, err error) {
	if !chat.ValidSessionID(id) {
		return chat.Session{}, false, ErrInvalidSessionID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[id]; ok {
		return existing, false, nil
	}

	session = chat.Session{ID: id, CreatedAt: s.now().UTC()}
	s.sessions[id] = session
	s.messages[id] = make([]chat.Message, 0, 16)
	return session, true, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// Append adds message to the end of the session transcript.
func (s *Service) Append(_ context.Context, sessionID string, message chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}

	s.messages[sessionID] = append(s.messages[sessionID], message)
	return nil
}

// Clear empties the transcript but keeps the session.
func (s *Service) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}

	s.messages[sessionID] = make([]chat.Message, 0, 16)
	return nil
}

// All returns a copy of the transcript in append order.
func (s *Service) All(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}
