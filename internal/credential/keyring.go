package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "kanban"

// Well-known credential keys.
const (
	KeyRedisPassword        = "redis-password"
	KeyFirestoreCredentials = "firestore-credentials"
)

// Keys lists every credential the board knows how to use.
var Keys = []string{KeyRedisPassword, KeyFirestoreCredentials}

// Known reports whether key is one of Keys.
func Known(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}

// Store reads and writes secrets in a keyring.
type Store struct {
	ring keyring.Keyring
}

// Open returns a Store over the system keyring, falling back to an
// encrypted file when no native backend is available.
func Open() (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/kanban/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("kanban-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Store{ring: ring}, nil
}

// NewStore wraps an already opened keyring.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Get retrieves a credential value by key.
func (s *Store) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Lookup is Get with a missing key reported as ok == false instead of an
// error.
func (s *Store) Lookup(key string) (value string, ok bool, err error) {
	v, err := s.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set stores a credential value by key.
func (s *Store) Set(key string, value string) error {
	err := s.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: serviceName + " " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes a credential by key.
func (s *Store) Delete(key string) error {
	if err := s.ring.Remove(key); err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}
