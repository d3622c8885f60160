// Package vault persists the single vault password hash and its metadata in
// a JSON sidecar file.
package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fruitsalade/vaultbox/internal/fault"
	"github.com/fruitsalade/vaultbox/internal/logging"
	"github.com/fruitsalade/vaultbox/internal/storage"
)

// MinPasswordLength is the shortest password SetPassword accepts, in
// characters.
const MinPasswordLength = 8

// Config is the persisted credential record. A nil PasswordHash means the
// vault has no password.
type Config struct {
	PasswordHash *string    `json:"passwordHash"`
	Created      time.Time  `json:"created"`
	LastModified *time.Time `json:"lastModified,omitempty"`
	ResetDate    *time.Time `json:"resetDate,omitempty"`
}

// Store reads and writes the credential record on an afero filesystem.
type Store struct {
	fs   afero.Fs
	path string
	cost int
	now  func() time.Time

	mu sync.Mutex
}

// NewStore creates a store for the record at path on fsys. cost is the
// bcrypt work factor; 0 selects bcrypt.DefaultCost.
func NewStore(fsys afero.Fs, path string, cost int) *Store {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Store{
		fs:   fsys,
		path: path,
		cost: cost,
		now:  time.Now,
	}
}

// Path returns the location of the record on the store's filesystem.
func (s *Store) Path() string { return s.path }

// Ensure writes an empty record (no password) if none exists yet.
func (s *Store) Ensure() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.fs.Stat(s.path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fault.Wrap("vault init", s.path, err)
	}
	cfg := Config{Created: s.now().UTC()}
	if err := s.write(cfg); err != nil {
		return err
	}
	logging.Info("vault config created", zap.String("path", s.path))
	return nil
}

// Load returns the current record. A missing file reads as an empty record.
func (s *Store) Load() (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// IsConfigured reports whether a password hash is stored.
func (s *Store) IsConfigured() (bool, error) {
	cfg, err := s.Load()
	if err != nil {
		return false, err
	}
	return cfg.PasswordHash != nil && *cfg.PasswordHash != "", nil
}

// SetPassword stores a new password hash. When a password already exists,
// current must match it.
func (s *Store) SetPassword(current, next string) error {
	if utf8.RuneCountInString(next) < MinPasswordLength {
		return fault.Invalid("vault set password", "",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.read()
	if err != nil {
		return err
	}
	if cfg.PasswordHash != nil && *cfg.PasswordHash != "" {
		if current == "" {
			return fault.Unauthorized("vault set password", "current password is required")
		}
		if bcrypt.CompareHashAndPassword([]byte(*cfg.PasswordHash), []byte(current)) != nil {
			return fault.Unauthorized("vault set password", "current password is incorrect")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return fault.Invalid("vault set password", "", "password is too long")
	}
	if err != nil {
		return fault.New(fault.KindIO, "vault set password", "", err)
	}

	h := string(hash)
	now := s.now().UTC()
	cfg.PasswordHash = &h
	cfg.LastModified = &now
	if cfg.Created.IsZero() {
		cfg.Created = now
	}
	if err := s.write(cfg); err != nil {
		return err
	}
	logging.Info("vault password updated")
	return nil
}

// ChangedAt returns the time of the last password change or reset, whichever
// is later. It is zero when neither happened.
func (s *Store) ChangedAt() (time.Time, error) {
	cfg, err := s.Load()
	if err != nil {
		return time.Time{}, err
	}
	var t time.Time
	if cfg.LastModified != nil {
		t = *cfg.LastModified
	}
	if cfg.ResetDate != nil && cfg.ResetDate.After(t) {
		t = *cfg.ResetDate
	}
	return t, nil
}

// Verify reports whether plaintext matches the stored hash. It is false when
// no password is configured.
func (s *Store) Verify(plaintext string) (bool, error) {
	cfg, err := s.Load()
	if err != nil {
		return false, err
	}
	if cfg.PasswordHash == nil || *cfg.PasswordHash == "" {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(*cfg.PasswordHash), []byte(plaintext)) == nil, nil
}

// Reset clears the stored hash without asking for any credential.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.read()
	if err != nil {
		return err
	}
	now := s.now().UTC()
	cfg.PasswordHash = nil
	cfg.ResetDate = &now
	if cfg.Created.IsZero() {
		cfg.Created = now
	}
	if err := s.write(cfg); err != nil {
		return err
	}
	logging.Warn("vault password reset")
	return nil
}

func (s *Store) read() (Config, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, fault.New(fault.KindIO, "vault read", s.path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fault.New(fault.KindIO, "vault read", s.path, fmt.Errorf("parse config: %w", err))
	}
	return cfg, nil
}

// write replaces the record through a temp file and rename.
func (s *Store) write(cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fault.New(fault.KindIO, "vault write", s.path, err)
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0700); err != nil {
		return fault.New(fault.KindIO, "vault write", s.path, err)
	}
	tmp, err := afero.TempFile(s.fs, dir, storage.TempPattern())
	if err != nil {
		return fault.New(fault.KindIO, "vault write", s.path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fault.New(fault.KindIO, "vault write", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return fault.New(fault.KindIO, "vault write", s.path, err)
	}
	if err := s.fs.Rename(tmpName, s.path); err != nil {
		s.fs.Remove(tmpName)
		return fault.New(fault.KindIO, "vault write", s.path, err)
	}
	return nil
}
