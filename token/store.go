package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/gotrader/schwab/pkg/autherr"
)

var (
	// ErrNotFound reports that no credential record exists at the store's location.
	ErrNotFound = errors.New("credential record not found")
	// ErrMalformed reports that a record exists but cannot be parsed, for
	// example after a write was cut short.
	ErrMalformed = errors.New("credential record is malformed")
)

// Store persists the credential record between runs.
type Store interface {
	Load() (*Token, error)
	Save(*Token) error
}

// FileStore keeps the record as a single JSON file, overwritten in place on
// every save.
type FileStore struct {
	Path string
}

// NewFileStore returns a FileStore writing to the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// DefaultPath returns the conventional record location for an application,
// "~/.credentials/<app>.json".
func DefaultPath(app string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", autherr.New(autherr.IO, "cannot locate user home directory", err)
	}
	return filepath.Join(home, ".credentials", app+".json"), nil
}

// Load reads and parses the record. Absence and corruption are reported
// through ErrNotFound and ErrMalformed so callers can decide to re-authorize
// instead of failing hard.
func (s *FileStore) Load() (*Token, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.Path)
		}
		return nil, autherr.New(autherr.IO, "cannot read credential record", err)
	}

	var t Token
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &t, nil
}

// Save replaces the record file contents, creating the parent directory on
// first use. The file is written in one call so a reader sees either the old
// record or the new one, never a blend.
func (s *FileStore) Save(t *Token) error {
	if t.RefreshExpiresAt.Before(t.AccessExpiresAt) {
		return autherr.New(autherr.Clock, "refresh expiry precedes access expiry", nil)
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o750); err != nil {
		log.Error().Err(err).Msg("Failed to create credential directory")
		return autherr.New(autherr.IO, "cannot create credential directory", err)
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return autherr.New(autherr.IO, "cannot encode credential record", err)
	}

	if err := os.WriteFile(s.Path, data, 0o600); err != nil {
		log.Error().Err(err).Msg("Failed to write credential record")
		return autherr.New(autherr.IO, "cannot write credential record", err)
	}

	log.Debug().Str("path", s.Path).Msg("Credential record saved")
	return nil
}
