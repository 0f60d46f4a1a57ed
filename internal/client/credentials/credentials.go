// Package credentials persists session tokens on disk, one file per user
// name. File names are derived from a hash of the name so arbitrary names
// are safe and not exposed in the directory listing.
package credentials

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var ErrNotFound = errors.New("credentials not found")

// Store loads and saves opaque tokens keyed by user name.
type Store interface {
	Load(username string) (string, error)
	Save(username, token string) error
}

type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Key returns the file key for username.
func Key(username string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(username)))
	return hex.EncodeToString(sum[:])
}

func (s *FileStore) Path(username string) string {
	return filepath.Join(s.dir, Key(username)+".token")
}

func (s *FileStore) Load(username string) (string, error) {
	data, err := os.ReadFile(s.Path(username))
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read credentials: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNotFound
	}
	return token, nil
}

// Save writes the token through a temporary file so a crash never leaves a
// truncated token behind.
func (s *FileStore) Save(username, token string) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	path := s.Path(username)
	tmp, err := os.CreateTemp(s.dir, ".token-*")
	if err != nil {
		return fmt.Errorf("create temp credentials: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(token); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close credentials: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod credentials: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace credentials: %w", err)
	}
	return nil
}
