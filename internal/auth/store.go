package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/poemonsense/antigravity-openai-proxy/internal/utils"
)

// Account is one Antigravity account. Only Email, RefreshToken and ProjectID
// persist; the invalid flag lives in memory for the process lifetime so a
// transiently broken account recovers on restart.
type Account struct {
	Email        string `json:"email"`
	RefreshToken string `json:"refresh_token"`
	ProjectID    string `json:"project_id,omitempty"`

	Invalid       bool   `json:"-"`
	InvalidReason string `json:"-"`
}

type accountsFile struct {
	Accounts []*Account `json:"accounts"`
}

// Store persists accounts to a JSON file. Mutating operations rewrite the
// file atomically (temp file + rename).
type Store struct {
	mu       sync.RWMutex
	path     string
	accounts []*Account
}

// NewStore creates a store backed by the given file and loads it. A missing
// or unreadable file yields an empty store rather than an error, so a fresh
// install starts clean.
func NewStore(path string) *Store {
	s := &Store{path: path}
	s.load()
	return s
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			utils.Warn("reading account store %s: %v", s.path, err)
		}
		return
	}
	var parsed accountsFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		utils.Warn("parsing account store %s: %v (starting empty)", s.path, err)
		return
	}
	accounts := parsed.Accounts[:0]
	for _, acc := range parsed.Accounts {
		if acc != nil && acc.Email != "" && acc.RefreshToken != "" {
			accounts = append(accounts, acc)
		}
	}
	s.accounts = accounts
}

// save rewrites the store file. Callers hold s.mu.
func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := json.MarshalIndent(accountsFile{Accounts: s.accounts}, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// List returns the accounts in stable order. The slice is a copy; the
// account pointers are shared so in-memory flags stay visible.
func (s *Store) List() []*Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Account, len(s.accounts))
	copy(out, s.accounts)
	return out
}

// Len returns the number of stored accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// Get returns the account with the given email, or nil.
func (s *Store) Get(email string) *Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.find(email)
}

func (s *Store) find(email string) *Account {
	for _, acc := range s.accounts {
		if acc.Email == email {
			return acc
		}
	}
	return nil
}

// AddOrUpdate inserts an account or refreshes the stored credentials of an
// existing one, clearing any invalid flag, and persists.
func (s *Store) AddOrUpdate(email, refreshToken, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc := s.find(email); acc != nil {
		acc.RefreshToken = refreshToken
		if projectID != "" {
			acc.ProjectID = projectID
		}
		acc.Invalid = false
		acc.InvalidReason = ""
	} else {
		s.accounts = append(s.accounts, &Account{
			Email:        email,
			RefreshToken: refreshToken,
			ProjectID:    projectID,
		})
	}
	return s.save()
}

// SetProjectID records a discovered project for an account and persists.
func (s *Store) SetProjectID(email, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.find(email)
	if acc == nil {
		return fmt.Errorf("unknown account %s", email)
	}
	acc.ProjectID = projectID
	return s.save()
}

// MarkInvalid flags an account unusable for this process. Nothing is
// persisted.
func (s *Store) MarkInvalid(email, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc := s.find(email); acc != nil {
		acc.Invalid = true
		acc.InvalidReason = reason
	}
}

// Remove deletes an account and persists. It reports whether the account
// existed.
func (s *Store) Remove(email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, acc := range s.accounts {
		if acc.Email == email {
			s.accounts = append(s.accounts[:i], s.accounts[i+1:]...)
			return true, s.save()
		}
	}
	return false, nil
}

// Clear removes every account and persists.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = nil
	return s.save()
}
