// Package storage owns the on-disk footprint of one messaging session: the
// protocol client's credential database and a small state snapshot the
// operator can inspect after the fact.
package storage

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"chat-gateway/backend/internal/securestore"
)

const (
	credentialDBFile  = "session.db"
	stateSnapshotFile = "state.json"
)

// SessionStore pins every persisted artifact of the session under one
// directory so a credential purge cannot miss a file.
type SessionStore struct {
	mu         sync.Mutex
	dir        string
	passphrase string
}

func NewSessionStore(dir, passphrase string) (*SessionStore, error) {
	if dir == "" {
		return nil, errors.New("session storage directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &SessionStore{dir: dir, passphrase: passphrase}, nil
}

func (s *SessionStore) Dir() string {
	return s.dir
}

// CredentialDBPath is where the protocol client keeps its pairing state.
func (s *SessionStore) CredentialDBPath() string {
	return filepath.Join(s.dir, credentialDBFile)
}

// Purge deletes the persisted credential state. Called before a rebuilt
// client is constructed after a logout, so the fresh instance cannot try to
// resume the dead session. The state snapshot survives: it records why the
// session died.
func (s *SessionStore) Purge() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := s.CredentialDBPath()
	var firstErr error
	for _, path := range []string{base, base + "-wal", base + "-shm"} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// StateSnapshot is the persisted view of the last observed session state.
type StateSnapshot struct {
	State     string    `json:"state"`
	Reason    string    `json:"reason,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordState persists the latest lifecycle state, encrypted when the store
// was built with a passphrase.
func (s *SessionStore) RecordState(state, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := StateSnapshot{
		State:     state,
		Reason:    reason,
		UpdatedAt: time.Now().UTC(),
	}
	return securestore.WriteJSON(filepath.Join(s.dir, stateSnapshotFile), s.passphrase, snap)
}

// LastState loads the persisted snapshot. A missing file is not an error;
// the second return is false.
func (s *SessionStore) LastState() (StateSnapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var snap StateSnapshot
	err := securestore.ReadJSON(filepath.Join(s.dir, stateSnapshotFile), s.passphrase, &snap)
	if err != nil {
		if os.IsNotExist(err) {
			return StateSnapshot{}, false, nil
		}
		return StateSnapshot{}, false, err
	}
	return snap, true, nil
}
