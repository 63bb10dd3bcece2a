// Package session persists the non-secret part of the token state across
// process restarts: the session id and the last fetch time. The token value
// itself must never be written here.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/hazlamahedich/antiforge/internal/core"
)

// FileStore keeps one metadata record per server host in a JSON file under
// the user's home directory.
type FileStore struct {
	path string
	host string
}

type fileContents struct {
	Sessions map[string]*core.Metadata `json:"sessions"`
}

func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting user home directory: %w", err)
	}
	return filepath.Join(home, ".antiforge", "sessions.json"), nil
}

// NewFileStore scopes the store to the host of the given server URL.
func NewFileStore(path, server string) (*FileStore, error) {
	u, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("parsing server URL '%s': %w", server, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("server URL '%s' has no host", server)
	}
	return &FileStore{path: path, host: u.Host}, nil
}

var _ core.MetadataStore = (*FileStore)(nil)

func (s *FileStore) Save(meta core.Metadata) error {
	contents, err := s.read()
	if err != nil {
		return err
	}
	if contents.Sessions == nil {
		contents.Sessions = make(map[string]*core.Metadata)
	}
	contents.Sessions[s.host] = &meta
	return s.write(contents)
}

func (s *FileStore) Load() (*core.Metadata, error) {
	contents, err := s.read()
	if err != nil {
		return nil, err
	}
	return contents.Sessions[s.host], nil
}

func (s *FileStore) Delete() error {
	contents, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := contents.Sessions[s.host]; !ok {
		return nil
	}
	delete(contents.Sessions, s.host)
	return s.write(contents)
}

func (s *FileStore) read() (*fileContents, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &fileContents{}, nil
		}
		return nil, fmt.Errorf("opening session file '%s': %w", s.path, err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	var contents fileContents
	if err := json.NewDecoder(f).Decode(&contents); err != nil {
		return nil, fmt.Errorf("decoding session file '%s': %w", s.path, err)
	}
	return &contents, nil
}

func (s *FileStore) write(contents *fileContents) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating session directory '%s': %w", dir, err)
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("opening session file '%s' for writing: %w", s.path, err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	if err := json.NewEncoder(f).Encode(contents); err != nil {
		return fmt.Errorf("encoding session file '%s': %w", s.path, err)
	}
	return nil
}
