package builder

import (
	"errors"
	"sync"
	"time"
)

var ErrDraftNotFound = errors.New("draft not found")

// DraftStore keeps drafts in memory per owner and evicts the ones that have
// not been touched for the configured TTL.
type DraftStore struct {
	mu      sync.Mutex
	drafts  map[string]*storedDraft
	ttl     time.Duration
	ops     uint64
	nowFunc func() time.Time
}

type storedDraft struct {
	draft    *Draft
	lastSeen time.Time
	// saving serializes saves of one draft.
	saving sync.Mutex
}

func NewDraftStore(ttl time.Duration) *DraftStore {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &DraftStore{
		drafts:  make(map[string]*storedDraft),
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// Put stores d and returns a copy of it.
func (s *DraftStore) Put(d *Draft) *Draft {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	s.drafts[d.ID] = &storedDraft{draft: d.Clone(), lastSeen: now}
	s.sweepLocked(now)
	return d.Clone()
}

func (s *DraftStore) Get(id, ownerID string) (*Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sd, err := s.lookupLocked(id, ownerID)
	if err != nil {
		return nil, err
	}
	return sd.draft.Clone(), nil
}

// Update runs fn against the stored draft while holding the store lock and
// returns a copy of the result. A failing fn leaves the draft untouched.
func (s *DraftStore) Update(id, ownerID string, fn func(*Draft) error) (*Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sd, err := s.lookupLocked(id, ownerID)
	if err != nil {
		return nil, err
	}

	working := sd.draft.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	sd.draft = working
	return working.Clone(), nil
}

// Save runs fn against a snapshot of the draft without holding the store
// lock, so edits keep flowing while fn talks to the database. Saves of the
// same draft run one at a time. On success the snapshot's form id is written
// back to the stored draft, keeping edits made in the meantime, and a copy of
// the stored draft is returned.
func (s *DraftStore) Save(id, ownerID string, fn func(*Draft) error) (*Draft, error) {
	s.mu.Lock()
	sd, err := s.lookupLocked(id, ownerID)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	sd.saving.Lock()
	defer sd.saving.Unlock()

	s.mu.Lock()
	working := sd.draft.Clone()
	s.mu.Unlock()

	if err := fn(working); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drafts[id] != sd {
		// Deleted or evicted while saving.
		return working, nil
	}
	sd.draft.FormID = working.FormID
	sd.lastSeen = s.nowFunc()
	return sd.draft.Clone(), nil
}

func (s *DraftStore) Delete(id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookupLocked(id, ownerID); err != nil {
		return err
	}
	delete(s.drafts, id)
	return nil
}

func (s *DraftStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.drafts)
}

func (s *DraftStore) lookupLocked(id, ownerID string) (*storedDraft, error) {
	now := s.nowFunc()
	s.sweepLocked(now)

	sd, ok := s.drafts[id]
	if !ok || sd.draft.OwnerID != ownerID {
		return nil, ErrDraftNotFound
	}
	if sd.lastSeen.Before(now.Add(-s.ttl)) {
		delete(s.drafts, id)
		return nil, ErrDraftNotFound
	}
	sd.lastSeen = now
	return sd, nil
}

func (s *DraftStore) sweepLocked(now time.Time) {
	s.ops++
	if s.ops%64 != 0 {
		return
	}
	cutoff := now.Add(-s.ttl)
	for id, sd := range s.drafts {
		if sd.lastSeen.Before(cutoff) {
			delete(s.drafts, id)
		}
	}
}
