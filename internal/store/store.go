package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/quill/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket and key names
var (
	bucketSession   = []byte("session")
	keyAccessToken  = []byte("access_token")
	keyRefreshToken = []byte("refresh_token")
)

// SessionStore implements domain.TokenStore using BoltDB.
type SessionStore struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory copy

	// Memory copy, authoritative in memory-only mode
	tokens domain.Credentials
}

// NewSessionStore opens the token database for serverURL under baseDir.
// An empty baseDir keeps tokens in memory only.
func NewSessionStore(baseDir, serverURL string) (*SessionStore, error) {
	if baseDir == "" {
		return &SessionStore{}, nil
	}

	dir := baseDir
	if serverURL != "" {
		dir = filepath.Join(baseDir, hashServerURL(serverURL))
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "quill.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSession)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &SessionStore{db: db}
	if _, err := s.LoadTokens(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// hashServerURL keeps each server's tokens in its own directory
func hashServerURL(serverURL string) string {
	normalized := strings.TrimRight(strings.ToLower(serverURL), "/")
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
}

func (s *SessionStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// LoadTokens reads both tokens. A missing pair is not an error.
func (s *SessionStore) LoadTokens() (domain.Credentials, error) {
	if s.db == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.tokens, nil
	}

	var creds domain.Credentials
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSession)
		if b == nil {
			return nil
		}
		creds.Access = string(b.Get(keyAccessToken))
		creds.Refresh = string(b.Get(keyRefreshToken))
		return nil
	})
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("failed to read tokens: %w", err)
	}

	s.mu.Lock()
	s.tokens = creds
	s.mu.Unlock()
	return creds, nil
}

// SaveTokens writes both tokens in a single transaction
func (s *SessionStore) SaveTokens(creds domain.Credentials) error {
	if s.db != nil {
		err := s.db.Update(func(tx *bolt.Tx) error {
			b := tx.Bucket(bucketSession)
			if err := b.Put(keyAccessToken, []byte(creds.Access)); err != nil {
				return err
			}
			return b.Put(keyRefreshToken, []byte(creds.Refresh))
		})
		if err != nil {
			return fmt.Errorf("failed to save tokens: %w", err)
		}
	}

	s.mu.Lock()
	s.tokens = creds
	s.mu.Unlock()
	return nil
}

// ClearTokens removes both tokens in a single transaction
func (s *SessionStore) ClearTokens() error {
	if s.db != nil {
		err := s.db.Update(func(tx *bolt.Tx) error {
			b := tx.Bucket(bucketSession)
			if b == nil {
				return nil
			}
			if err := b.Delete(keyAccessToken); err != nil {
				return err
			}
			return b.Delete(keyRefreshToken)
		})
		if err != nil {
			return fmt.Errorf("failed to clear tokens: %w", err)
		}
	}

	s.mu.Lock()
	s.tokens = domain.Credentials{}
	s.mu.Unlock()
	return nil
}
