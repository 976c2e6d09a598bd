package memory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rryowa/gymsession/internal/models"
	"github.com/rryowa/gymsession/internal/storage"
)

const persistTimeout = 5 * time.Second

// SessionStore holds the process-wide client session. Reads and writes never
// fail: the in-memory copy is authoritative and durable write-through errors
// are only logged.
type SessionStore struct {
	mu        sync.RWMutex
	session   models.Session
	persister storage.Persister
	log       *zap.SugaredLogger
}

// NewSessionStore returns an ephemeral store when persister is nil.
func NewSessionStore(persister storage.Persister, log *zap.SugaredLogger) *SessionStore {
	return &SessionStore{
		persister: persister,
		log:       log,
	}
}

// Restore loads the persisted session. A partially persisted session (either
// entry missing) counts as unauthenticated and is dropped.
func (s *SessionStore) Restore(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}

	session, err := s.persister.Load(ctx)
	if err != nil {
		return err
	}
	if session.AccessToken == "" || session.RefreshToken == "" {
		session = models.Session{}
	}

	s.mu.Lock()
	s.session = session
	s.mu.Unlock()

	s.log.Debugw("Session restored", "authenticated", session.Authenticated())
	return nil
}

func (s *SessionStore) Get() models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.session
}

func (s *SessionStore) Set(accessToken, refreshToken string) {
	session := models.Session{AccessToken: accessToken, RefreshToken: refreshToken}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = session
	s.persist(func(ctx context.Context) error { return s.persister.Save(ctx, session) })
}

func (s *SessionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = models.Session{}
	if s.persister != nil {
		s.persist(s.persister.Delete)
	}
}

// persist runs under s.mu so durable writes land in the same order as the
// in-memory updates.
func (s *SessionStore) persist(op func(ctx context.Context) error) {
	if s.persister == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := op(ctx); err != nil {
		s.log.Warnw("Failed to persist session", "error", err)
	}
}
