package storage

import (
	"context"
	"errors"
	"time"

	"github.com/rryowa/gymsession/internal/models"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUnknownBackend  = errors.New("unknown session backend")
)

// Persister is the durable side of the client session. Load returns an empty
// session, not an error, when nothing is stored.
type Persister interface {
	Load(ctx context.Context) (models.Session, error)
	Save(ctx context.Context, session models.Session) error
	Delete(ctx context.Context) error
}

// RefreshSessionRepository backs the development auth server.
type RefreshSessionRepository interface {
	CreateSession(ctx context.Context, session models.RefreshSession, ttl time.Duration) error
	GetActiveSessionBySelector(ctx context.Context, selector string) (*models.RefreshSession, error)
	MarkSessionAsUsed(ctx context.Context, selector string) error
	DeleteSession(ctx context.Context, selector string) error
}
