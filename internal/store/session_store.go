package store

import (
	"path/filepath"
	"sync"

	"omemo/internal/domain"
)

const sessionsFilename = "sessions.json"

// SessionFileStore persists established sessions to disk, keyed by
// "bare:device".
type SessionFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewSessionFileStore returns a SessionFileStore rooted at dir.
func NewSessionFileStore(dir string) *SessionFileStore {
	return &SessionFileStore{dir: dir}
}

// SaveSession writes a session record for addr.
func (s *SessionFileStore) SaveSession(addr domain.SessionAddress, record domain.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, sessionsFilename)
	sessions := map[string]domain.SessionRecord{}
	if _, err := readJSON(path, &sessions); err != nil {
		return err
	}
	sessions[addr.String()] = record
	return writeJSON(path, sessions, 0o600)
}

// LoadSession retrieves a stored session for addr.
func (s *SessionFileStore) LoadSession(addr domain.SessionAddress) (domain.SessionRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, sessionsFilename)
	sessions := map[string]domain.SessionRecord{}
	if _, err := readJSON(path, &sessions); err != nil {
		return domain.SessionRecord{}, false, err
	}
	record, ok := sessions[addr.String()]
	return record, ok, nil
}

// Compile-time assertion that SessionFileStore implements domain.SessionStore.
var _ domain.SessionStore = (*SessionFileStore)(nil)
