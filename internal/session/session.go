// Package session persists the CLI login session on disk.
package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/uuid/v5"
)

// ErrNoSession is returned when no usable session is stored.
var ErrNoSession = errors.New("no valid session (login required)")

// Session is what the CLI keeps between invocations.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
}

// Store loads and saves the current session.
type Store interface {
	Load() (*Session, error)
	Save(Session) error
	Clear() error
}

// FileStore keeps the session as session.json under a config directory.
type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

// DefaultDir honors XDG_CONFIG_HOME and falls back to ~/.config.
func DefaultDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "puffmeter")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "puffmeter")
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path() string { return filepath.Join(s.dir, "session.json") }

// Load returns ErrNoSession when the file is missing or the token expired.
func (s *FileStore) Load() (*Session, error) {
	b, err := os.ReadFile(s.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, ErrNoSession
	}
	if sess.Token == "" || time.Now().After(sess.ExpiresAt) {
		return nil, ErrNoSession
	}
	return &sess, nil
}

func (s *FileStore) Save(sess Session) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(), b, 0o600)
}

// Clear removes the stored session. A missing file is not an error.
func (s *FileStore) Clear() error {
	err := os.Remove(s.path())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
