package store

import (
	"path/filepath"
	"sync"

	"omemo/internal/domain"
)

const bundleFile = "bundle.json"

// BundleFileStore caches the last bundle generated for this device.
type BundleFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewBundleFileStore returns a BundleFileStore rooted at dir.
func NewBundleFileStore(dir string) *BundleFileStore {
	return &BundleFileStore{dir: dir}
}

// SaveBundle writes the bundle record to disk.
func (s *BundleFileStore) SaveBundle(b domain.PublishedBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return writeJSON(filepath.Join(s.dir, bundleFile), b, 0o600)
}

// LoadBundle returns the cached bundle record and whether it was present.
func (s *BundleFileStore) LoadBundle() (domain.PublishedBundle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b domain.PublishedBundle
	found, err := readJSON(filepath.Join(s.dir, bundleFile), &b)
	if err != nil || !found {
		return domain.PublishedBundle{}, false, err
	}
	return b, true, nil
}

// Compile-time assertion that BundleFileStore implements domain.BundleStore.
var _ domain.BundleStore = (*BundleFileStore)(nil)
