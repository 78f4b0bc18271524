// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text
// files, falling back to the OS keyring. Each file in the directory represents
// one secret: the filename is the key name and the trimmed contents the value.
//
// Known keys: anthropic-api-key, redis-password, postgres-dsn, and any
// api_key_secret named by a social feed provider.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService is the service name secrets are filed under in the OS keyring.
const KeyringService = "microfinance-engine"

// ErrNotFound is returned by Resolve when a key is in neither source.
var ErrNotFound = errors.New("secret not found")

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Set holds secrets loaded from disk and resolves misses from the keyring.
type Set struct {
	files map[string]string
}

// NewSet wraps a map returned by Load.
func NewSet(files map[string]string) *Set {
	if files == nil {
		files = map[string]string{}
	}
	return &Set{files: files}
}

// Keys returns the names of the secrets loaded from disk.
func (s *Set) Keys() []string {
	keys := make([]string, 0, len(s.files))
	for k := range s.files {
		keys = append(keys, k)
	}
	return keys
}

// Resolve returns the secret for key from the loaded files, then the keyring.
func (s *Set) Resolve(key string) (string, error) {
	if v, ok := s.files[key]; ok {
		return v, nil
	}
	v, err := keyring.Get(KeyringService, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return "", fmt.Errorf("reading %s from keyring: %w", key, err)
	}
	return strings.TrimSpace(v), nil
}

// Default returns fallback when it is non-empty, otherwise the resolved
// secret for key, or "" when the key is unknown.
func (s *Set) Default(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	v, err := s.Resolve(key)
	if err != nil {
		return ""
	}
	return v
}

// Store writes a secret to the OS keyring.
func Store(key, value string) error {
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		return errors.New("secret key and value are required")
	}
	if err := keyring.Set(KeyringService, key, value); err != nil {
		return fmt.Errorf("writing %s to keyring: %w", key, err)
	}
	return nil
}
