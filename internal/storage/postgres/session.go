package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rryowa/gymsession/internal/models"
)

// SessionStorage keeps the client session as two named rows of the
// credentials table.
type SessionStorage struct {
	db *sql.DB
}

func NewSessionStorage(db *sql.DB) *SessionStorage {
	return &SessionStorage{db: db}
}

func (r *SessionStorage) Load(ctx context.Context) (models.Session, error) {
	query := `SELECT name, value FROM credentials WHERE name IN ($1, $2)`
	rows, err := r.db.QueryContext(ctx, query, models.AccessTokenKey, models.RefreshTokenKey)
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to load session: %w", err)
	}
	defer rows.Close()

	var session models.Session
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return models.Session{}, fmt.Errorf("failed to scan credential: %w", err)
		}
		switch name {
		case models.AccessTokenKey:
			session.AccessToken = value
		case models.RefreshTokenKey:
			session.RefreshToken = value
		}
	}
	if err := rows.Err(); err != nil {
		return models.Session{}, fmt.Errorf("failed to iterate credentials: %w", err)
	}

	return session, nil
}

// Save upserts both rows in a single transaction.
func (r *SessionStorage) Save(ctx context.Context, session models.Session) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	query := `INSERT INTO credentials (name, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	for _, kv := range [][2]string{
		{models.AccessTokenKey, session.AccessToken},
		{models.RefreshTokenKey, session.RefreshToken},
	} {
		if _, err := tx.ExecContext(ctx, query, kv[0], kv[1]); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", kv[0], err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *SessionStorage) Delete(ctx context.Context) error {
	query := `DELETE FROM credentials WHERE name IN ($1, $2)`
	if _, err := r.db.ExecContext(ctx, query, models.AccessTokenKey, models.RefreshTokenKey); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
