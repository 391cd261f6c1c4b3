package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
)

// PendingLogin is the state of an authorization-code flow that has been
// started but not yet completed.
type PendingLogin struct {
	State    string `json:"state"`
	Verifier string `json:"verifier"`
}

// Persisted is what a TokenStore keeps between runs.
type Persisted struct {
	Token        *oauth2.Token `json:"token,omitempty"`
	IDToken      string        `json:"idToken,omitempty"`
	PendingLogin *PendingLogin `json:"pendingLogin,omitempty"`
}

// TokenStore persists session state.
type TokenStore interface {
	// Load returns the stored state. An empty store yields a zero
	// Persisted and no error.
	Load() (Persisted, error)
	Save(p Persisted) error
	Clear() error
}

// FileTokenStore keeps session state in a JSON file readable only by the
// current user.
type FileTokenStore struct {
	mu   sync.Mutex
	path string
}

// Ensure FileTokenStore implements TokenStore interface
var _ TokenStore = (*FileTokenStore)(nil)

// NewFileTokenStore returns a store backed by the file at path. The file
// is created on the first Save.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// Path returns the backing file path.
func (s *FileTokenStore) Path() string {
	return s.path
}

// Load implements TokenStore.Load.
func (s *FileTokenStore) Load() (Persisted, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p Persisted
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("failed to read session file: %w", err)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return Persisted{}, fmt.Errorf("failed to parse session file: %w", err)
	}
	return p, nil
}

// Save implements TokenStore.Save. The file is written with mode 0600.
func (s *FileTokenStore) Save(p Persisted) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Clear implements TokenStore.Clear. Clearing an absent file is not an error.
func (s *FileTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// MemoryTokenStore keeps session state in memory.
type MemoryTokenStore struct {
	mu sync.Mutex
	p  Persisted
}

// Ensure MemoryTokenStore implements TokenStore interface
var _ TokenStore = (*MemoryTokenStore)(nil)

// NewMemoryTokenStore returns an empty in-memory store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

// Load implements TokenStore.Load.
func (s *MemoryTokenStore) Load() (Persisted, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.clone(), nil
}

// Save implements TokenStore.Save.
func (s *MemoryTokenStore) Save(p Persisted) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p = p.clone()
	return nil
}

// Clear implements TokenStore.Clear.
func (s *MemoryTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p = Persisted{}
	return nil
}

func (p Persisted) clone() Persisted {
	c := p
	if p.Token != nil {
		tok := *p.Token
		c.Token = &tok
	}
	if p.PendingLogin != nil {
		pending := *p.PendingLogin
		c.PendingLogin = &pending
	}
	return c
}
