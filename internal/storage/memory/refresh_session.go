package memory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rryowa/gymsession/internal/models"
	"github.com/rryowa/gymsession/internal/storage"
)

type RefreshSessionManager struct {
	mu       sync.RWMutex
	sessions map[string]models.RefreshSession
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewRefreshSessionRepository(log *zap.SugaredLogger) *RefreshSessionManager {
	return &RefreshSessionManager{
		sessions: make(map[string]models.RefreshSession),
		log:      log,
		now:      time.Now,
	}
}

func (m *RefreshSessionManager) CreateSession(_ context.Context, session models.RefreshSession, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session.ExpiresAt.IsZero() {
		session.ExpiresAt = m.now().Add(ttl)
	}
	m.sessions[session.Selector] = session
	m.log.Debugw("Refresh session created", "selector", session.Selector, "username", session.Username, "ttl", ttl)

	return nil
}

func (m *RefreshSessionManager) GetActiveSessionBySelector(_ context.Context, selector string) (*models.RefreshSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[selector]
	if !ok || session.Used || m.now().After(session.ExpiresAt) {
		m.log.Debugw("Refresh session not found", "selector", selector)
		return nil, storage.ErrSessionNotFound
	}

	return &session, nil
}

func (m *RefreshSessionManager) MarkSessionAsUsed(_ context.Context, selector string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// A second rotation of the same token loses here.
	session, ok := m.sessions[selector]
	if !ok || session.Used {
		return storage.ErrSessionNotFound
	}
	session.Used = true
	m.sessions[selector] = session

	return nil
}

func (m *RefreshSessionManager) DeleteSession(_ context.Context, selector string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, selector)

	return nil
}
