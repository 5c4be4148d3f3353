package archive

import (
	"github.com/jinzhu/copier"
	"github.com/pkg/errors"

	"github.com/uplynxed/archivemux/model"
)

// Export is the canonical archive in its portable on-disk shape.
type Export struct {
	Tweets map[string]*model.Post `json:"tweets"`
	Users  map[string]*model.User `json:"users"`
}

// Snapshot deep-copies the canonical maps for export. Copies rather than the
// live structs, favorite flags keep mutating underneath a slow download.
func (s *Store) Snapshot() (Export, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Export{
		Tweets: make(map[string]*model.Post, len(s.Posts)),
		Users:  make(map[string]*model.User, len(s.Users)),
	}
	for id, post := range s.Posts {
		clone, err := post.Clone()
		if err != nil {
			return Export{}, errors.Wrap(err, "fail to copy post for export")
		}
		out.Tweets[id] = clone
	}
	for id, user := range s.Users {
		clone := &model.User{}
		if err := copier.Copy(clone, user); err != nil {
			return Export{}, errors.Wrap(err, "fail to copy user for export")
		}
		out.Users[id] = clone
	}
	return out, nil
}
