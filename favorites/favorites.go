package favorites

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"

	"github.com/uplynxed/archivemux/archive"
	"github.com/uplynxed/archivemux/model"
	"github.com/uplynxed/archivemux/store"
	Logger "github.com/uplynxed/archivemux/utils/log"
)

const kvKey = "favorites"

// Store keeps the favorite id list in sync between the KV backend and the
// per-post flags on the built archive. The KV list is the durable truth,
// the flags are its in-memory projection.
type Store struct {
	mu      sync.Mutex
	kv      store.KV
	archive *archive.Store
	ids     []string
}

func New(kv store.KV, archive *archive.Store) *Store {
	return &Store{kv: kv, archive: archive}
}

// Load reads the persisted list and reconciles it against the canonical
// map: ids whose posts no longer exist are pruned and the pruned list is
// written back, flags on posts that left the list are cleared.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var persisted []string
	data, err := s.kv.Get(kvKey)
	switch {
	case err == store.ErrNotFound:
		// First run, nothing persisted yet.
	case err != nil:
		return errors.Wrap(err, "fail to load favorites")
	default:
		if err := json.Unmarshal(data, &persisted); err != nil {
			return errors.Wrap(err, "fail to parse persisted favorites")
		}
	}

	kept := make([]string, 0, len(persisted))
	inList := make(map[string]bool, len(persisted))
	for _, id := range persisted {
		if _, ok := s.archive.Post(id); !ok {
			continue
		}
		kept = append(kept, id)
		inList[id] = true
	}

	for _, post := range s.archive.Order {
		s.archive.SetFavorited(post.ID, inList[post.ID])
	}

	s.ids = kept
	if len(kept) != len(persisted) {
		Logger.Log.Infof("pruned %d stale favorite ids", len(persisted)-len(kept))
		s.persist()
	}
	return nil
}

// Seed applies favorite ids embedded in a re-exported snapshot. It only
// takes effect when nothing was ever persisted locally, a local list always
// wins over the snapshot's.
func (s *Store) Seed(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.kv.Get(kvKey); err != store.ErrNotFound {
		return nil
	}

	encoded, err := json.Marshal(ids)
	if err != nil {
		return errors.Wrap(err, "fail to encode seeded favorites")
	}
	if err := s.kv.Set(kvKey, encoded); err != nil {
		return errors.Wrap(err, "fail to persist seeded favorites")
	}
	return s.Load()
}

// Toggle flips the favorite state of a post. The in-memory flip always
// sticks, a persistence failure only logs, the next successful persist
// repairs the KV copy.
func (s *Store) Toggle(id string) (favorited bool, found bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.archive.Post(id); !ok {
		return false, false
	}

	idx := -1
	for i, existing := range s.ids {
		if existing == id {
			idx = i
			break
		}
	}
	if idx >= 0 {
		s.ids = append(s.ids[:idx], s.ids[idx+1:]...)
		favorited = false
	} else {
		s.ids = append(s.ids, id)
		favorited = true
	}

	s.archive.SetFavorited(id, favorited)
	s.persist()
	return favorited, true
}

// IDs returns a copy of the current favorite id list.
func (s *Store) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Export returns deep copies of the favorited posts in list order, detached
// from the live archive so the download cannot race later toggles.
func (s *Store) Export() ([]*model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.Post, 0, len(s.ids))
	for _, id := range s.ids {
		post, ok := s.archive.Post(id)
		if !ok {
			continue
		}
		clone, err := post.Clone()
		if err != nil {
			return nil, errors.Wrap(err, "fail to copy favorite for export")
		}
		out = append(out, clone)
	}
	return out, nil
}

// Import replaces the persisted list with ids extracted from an uploaded
// payload, then reloads so flags and pruning run the normal path. The
// payload may be a bare id array or an array of exported post objects.
func (s *Store) Import(data []byte) error {
	ids, err := extractIDs(data)
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(ids)
	if err != nil {
		return errors.Wrap(err, "fail to encode imported favorites")
	}
	if err := s.kv.Set(kvKey, encoded); err != nil {
		return errors.Wrap(err, "fail to persist imported favorites")
	}
	return s.Load()
}

func extractIDs(data []byte) ([]string, error) {
	var ids []string
	if err := json.Unmarshal(data, &ids); err == nil {
		return ids, nil
	}

	var posts []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &posts); err == nil {
		for _, post := range posts {
			if post.ID != "" {
				ids = append(ids, post.ID)
			}
		}
		return ids, nil
	}

	return nil, errors.New("unrecognized favorites payload")
}

// persist writes the current list, caller holds the mutex.
func (s *Store) persist() {
	encoded, err := json.Marshal(s.ids)
	if err != nil {
		Logger.Log.Error("fail to encode favorites: ", err)
		return
	}
	if err := s.kv.Set(kvKey, encoded); err != nil {
		Logger.Log.Error("fail to persist favorites, in-memory state kept: ", err)
	}
}
