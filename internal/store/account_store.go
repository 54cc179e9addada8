package store

import (
	"path/filepath"
	"sync"

	"omemo/internal/domain"
)

const accountFile = "account.json"

// AccountFileStore persists the local account record to disk.
type AccountFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewAccountFileStore returns an AccountFileStore rooted at dir.
func NewAccountFileStore(dir string) *AccountFileStore {
	return &AccountFileStore{dir: dir}
}

// SaveAccount stores the account record.
func (s *AccountFileStore) SaveAccount(account domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return writeJSON(filepath.Join(s.dir, accountFile), account, 0o600)
}

// LoadAccount retrieves the account record, if one was saved.
func (s *AccountFileStore) LoadAccount() (domain.Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var account domain.Account
	found, err := readJSON(filepath.Join(s.dir, accountFile), &account)
	if err != nil || !found {
		return domain.Account{}, false, err
	}
	return account, true, nil
}

// Compile-time assertion that AccountFileStore implements domain.AccountStore.
var _ domain.AccountStore = (*AccountFileStore)(nil)
