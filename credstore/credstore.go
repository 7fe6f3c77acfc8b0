// Package credstore provides CredentialStore implementations.
//
// The persisted state is exactly one string: the bearer token. The file store
// is the durable analog of browser local storage — read synchronously at
// construction, surviving process restarts. A store whose backing medium is
// unavailable reports "no token" rather than failing; the session then simply
// behaves as logged out.
package credstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	estate "github.com/homequest/estate-go"
)

// Memory is an in-process CredentialStore, used in tests and short-lived
// tools that do not want a session to outlive the process.
type Memory struct {
	mu    sync.RWMutex
	token string
}

var _ estate.CredentialStore = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory { return &Memory{} }

// Get returns the stored token, or false when none is stored.
func (m *Memory) Get() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.token != ""
}

// Set overwrites the stored token.
func (m *Memory) Set(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

// Clear removes the stored token.
func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}

// File persists the token to a single file with 0600 permissions.
type File struct {
	mu   sync.RWMutex
	path string
}

var _ estate.CredentialStore = (*File)(nil)

// NewFile creates a file-backed store at path. The file does not need to
// exist yet.
func NewFile(path string) *File {
	return &File{path: path}
}

// Get reads the persisted token. Unreadable or empty files read as "no
// token" — not distinguished from an absent session.
func (f *File) Get() (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		return "", false
	}
	token := strings.TrimSpace(string(data))
	return token, token != ""
}

// Set overwrites the persisted token.
func (f *File) Set(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("credstore: create token dir: %w", err)
		}
	}
	if err := os.WriteFile(f.path, []byte(token), 0o600); err != nil {
		return fmt.Errorf("credstore: write token: %w", err)
	}
	return nil
}

// Clear removes the persisted token file.
func (f *File) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("credstore: remove token: %w", err)
	}
	return nil
}
