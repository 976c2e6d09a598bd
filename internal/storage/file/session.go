package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/rryowa/gymsession/internal/models"
)

const (
	dirPerm  = 0o700
	filePerm = 0o600
)

// SessionStorage keeps the session in a YAML file with the entries
// "token" and "refreshToken".
type SessionStorage struct {
	path string
}

func NewSessionStorage(path string) *SessionStorage {
	return &SessionStorage{path: path}
}

func (s *SessionStorage) Load(_ context.Context) (models.Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.Session{}, nil
		}
		return models.Session{}, fmt.Errorf("read credentials file: %w", err)
	}

	var session models.Session
	if err := yaml.Unmarshal(data, &session); err != nil {
		return models.Session{}, fmt.Errorf("parse credentials file %s: %w", s.path, err)
	}
	return session, nil
}

// Save replaces the file atomically via a temp file in the same directory.
func (s *SessionStorage) Save(_ context.Context, session models.Session) error {
	data, err := yaml.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("create temp credentials file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after rename

	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp credentials file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp credentials file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp credentials file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace credentials file: %w", err)
	}
	return nil
}

func (s *SessionStorage) Delete(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove credentials file: %w", err)
	}
	return nil
}
