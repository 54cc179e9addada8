package store

import (
	"cmp"
	"path/filepath"
	"slices"
	"sync"

	"omemo/internal/domain"
)

const (
	spkPairsFile   = "spk_pairs.json"
	opkPairsFile   = "opk_pairs.json"
	prekeyMetaFile = "prekey_meta.json"
)

// PrekeyFileStore persists Signed Pre-Key and One-Time Pre-Key state to disk.
type PrekeyFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewPrekeyFileStore returns a PrekeyFileStore rooted at dir.
func NewPrekeyFileStore(dir string) *PrekeyFileStore {
	return &PrekeyFileStore{dir: dir}
}

// Internal record types.
type spkPair struct {
	Priv [32]byte `json:"priv"`
	Pub  [32]byte `json:"pub"`
	Sig  []byte   `json:"sig"`
}

type opkPair struct {
	Priv [32]byte `json:"priv"`
	Pub  [32]byte `json:"pub"`
}

type prekeyMeta struct {
	CurrentSignedPreKeyID domain.SignedPreKeyID  `json:"current_signed_pre_key_id"`
	HasCurrent            bool                   `json:"has_current"`
	NextSignedPreKeyID    domain.SignedPreKeyID  `json:"next_signed_pre_key_id"`
	NextOneTimePreKeyID   domain.OneTimePreKeyID `json:"next_one_time_pre_key_id"`
}

// SaveSignedPreKey stores a signed pre-key by id.
func (s *PrekeyFileStore) SaveSignedPreKey(
	id domain.SignedPreKeyID,
	priv domain.X25519Private,
	pub domain.X25519Public,
	sig []byte,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, spkPairsFile)
	m := map[domain.SignedPreKeyID]spkPair{}
	if _, err := readJSON(path, &m); err != nil {
		return err
	}
	m[id] = spkPair{Priv: priv, Pub: pub, Sig: sig}
	return writeJSON(path, m, 0o600)
}

// LoadSignedPreKey retrieves a signed pre-key by id.
func (s *PrekeyFileStore) LoadSignedPreKey(
	id domain.SignedPreKeyID,
) (
	priv domain.X25519Private,
	pub domain.X25519Public,
	sig []byte,
	ok bool,
	err error,
) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, spkPairsFile)
	m := map[domain.SignedPreKeyID]spkPair{}
	if _, err = readJSON(path, &m); err != nil {
		return priv, pub, nil, false, err
	}
	p, ok := m[id]
	if !ok {
		return priv, pub, nil, false, nil
	}
	return p.Priv, p.Pub, p.Sig, true, nil
}

// SaveOneTimePreKeys merges the provided one-time pre-key pairs into the store.
func (s *PrekeyFileStore) SaveOneTimePreKeys(pairs []domain.OneTimePreKeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, opkPairsFile)
	m := map[domain.OneTimePreKeyID]opkPair{}
	if _, err := readJSON(path, &m); err != nil {
		return err
	}
	for _, p := range pairs {
		m[p.ID] = opkPair{Priv: p.Priv, Pub: p.Pub}
	}
	return writeJSON(path, m, 0o600)
}

// ConsumeOneTimePreKey removes and returns a single one-time pre-key by id.
func (s *PrekeyFileStore) ConsumeOneTimePreKey(
	id domain.OneTimePreKeyID,
) (
	priv domain.X25519Private,
	pub domain.X25519Public,
	ok bool,
	err error,
) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, opkPairsFile)
	m := map[domain.OneTimePreKeyID]opkPair{}
	if _, err = readJSON(path, &m); err != nil {
		return priv, pub, false, err
	}
	p, ok := m[id]
	if !ok {
		return priv, pub, false, nil
	}
	delete(m, id)
	if err = writeJSON(path, m, 0o600); err != nil {
		return priv, pub, false, err
	}
	return p.Priv, p.Pub, true, nil
}

// ListOneTimePreKeyPublics exposes only the public halves for bundling, in
// ascending id order.
func (s *PrekeyFileStore) ListOneTimePreKeyPublics() ([]domain.OneTimePreKeyPublic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, opkPairsFile)
	m := map[domain.OneTimePreKeyID]opkPair{}
	if _, err := readJSON(path, &m); err != nil {
		return nil, err
	}

	out := make([]domain.OneTimePreKeyPublic, 0, len(m))
	for id, p := range m {
		out = append(out, domain.OneTimePreKeyPublic{ID: id, Pub: p.Pub})
	}
	slices.SortFunc(out, func(a, b domain.OneTimePreKeyPublic) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// CountOneTimePreKeys returns how many unconsumed one-time pre-keys remain.
func (s *PrekeyFileStore) CountOneTimePreKeys() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := map[domain.OneTimePreKeyID]opkPair{}
	if _, err := readJSON(filepath.Join(s.dir, opkPairsFile), &m); err != nil {
		return 0, err
	}
	return len(m), nil
}

// AllocateSignedPreKeyID reserves the next signed pre-key id.
func (s *PrekeyFileStore) AllocateSignedPreKeyID() (domain.SignedPreKeyID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.loadMeta()
	if err != nil {
		return 0, err
	}
	meta.NextSignedPreKeyID++
	id := meta.NextSignedPreKeyID
	return id, s.saveMeta(meta)
}

// AllocateOneTimePreKeyIDs reserves n consecutive one-time pre-key ids and
// returns the first.
func (s *PrekeyFileStore) AllocateOneTimePreKeyIDs(n int) (domain.OneTimePreKeyID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.loadMeta()
	if err != nil {
		return 0, err
	}
	first := meta.NextOneTimePreKeyID + 1
	meta.NextOneTimePreKeyID += domain.OneTimePreKeyID(n)
	return first, s.saveMeta(meta)
}

// SetCurrentSignedPreKeyID records which signed pre-key id is current.
func (s *PrekeyFileStore) SetCurrentSignedPreKeyID(id domain.SignedPreKeyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.loadMeta()
	if err != nil {
		return err
	}
	meta.CurrentSignedPreKeyID = id
	meta.HasCurrent = true
	return s.saveMeta(meta)
}

// CurrentSignedPreKeyID returns the recorded current signed pre-key id.
func (s *PrekeyFileStore) CurrentSignedPreKeyID() (domain.SignedPreKeyID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.loadMeta()
	if err != nil || !meta.HasCurrent {
		return 0, false, err
	}
	return meta.CurrentSignedPreKeyID, true, nil
}

func (s *PrekeyFileStore) loadMeta() (prekeyMeta, error) {
	var meta prekeyMeta
	_, err := readJSON(filepath.Join(s.dir, prekeyMetaFile), &meta)
	return meta, err
}

func (s *PrekeyFileStore) saveMeta(meta prekeyMeta) error {
	return writeJSON(filepath.Join(s.dir, prekeyMetaFile), meta, 0o600)
}

// Compile-time assertion that PrekeyFileStore implements domain.PreKeyStore.
var _ domain.PreKeyStore = (*PrekeyFileStore)(nil)
