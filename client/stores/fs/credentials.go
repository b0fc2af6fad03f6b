// Package fs persists client credentials as a JSON file, so command-line
// consumers keep their token across runs.
package fs

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/roamly/authkit/client"
)

// FSCredentialStore is a client.CredentialCache backed by one JSON file.
type FSCredentialStore struct {
	mu      sync.RWMutex
	path    string
	servers map[string]*client.Credential
}

// credentialFile is the on-disk structure.
type credentialFile struct {
	Servers map[string]*client.Credential `json:"servers"`
}

// NewFSCredentialStore opens (or initializes) the store. An empty path
// defaults to ~/.config/<appName>/credentials.json.
func NewFSCredentialStore(path string, appName string) (*FSCredentialStore, error) {
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("could not determine config directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
		if appName == "" {
			appName = "authkit"
		}
		path = filepath.Join(configDir, appName, "credentials.json")
	}

	store := &FSCredentialStore{
		path:    path,
		servers: make(map[string]*client.Credential),
	}
	if err := store.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return store, nil
}

func (s *FSCredentialStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var file credentialFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse credentials file: %w", err)
	}
	s.servers = file.Servers
	if s.servers == nil {
		s.servers = make(map[string]*client.Credential)
	}
	return nil
}

// save writes the whole file. Callers hold the write lock. Tokens are
// bearer secrets, so the file is owner-only.
func (s *FSCredentialStore) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(credentialFile{Servers: s.servers}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

// normalizeURL reduces a server URL to scheme://host for keying.
func normalizeURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	return fmt.Sprintf("%s://%s", u.Scheme, u.Host), nil
}

// GetCredential returns the stored credential for a server, or nil when
// there is none.
func (s *FSCredentialStore) GetCredential(serverURL string) (*client.Credential, error) {
	key, err := normalizeURL(serverURL)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.servers[key]
	if !ok {
		return nil, nil
	}
	out := *cred
	return &out, nil
}

// SetCredential stores a credential and persists immediately.
func (s *FSCredentialStore) SetCredential(serverURL string, cred *client.Credential) error {
	key, err := normalizeURL(serverURL)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *cred
	s.servers[key] = &stored
	return s.save()
}

// RemoveCredential deletes a server's credential and persists immediately.
func (s *FSCredentialStore) RemoveCredential(serverURL string) error {
	key, err := normalizeURL(serverURL)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.servers[key]; !ok {
		return nil
	}
	delete(s.servers, key)
	return s.save()
}

// ListServers returns the server URLs with stored credentials.
func (s *FSCredentialStore) ListServers() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.servers))
	for key := range s.servers {
		out = append(out, key)
	}
	return out, nil
}
