package archive

import (
	"sort"
	"strings"
	"sync"

	"github.com/uplynxed/archivemux/config"
	"github.com/uplynxed/archivemux/model"
	"github.com/uplynxed/archivemux/normalizer"
	Logger "github.com/uplynxed/archivemux/utils/log"
)

// Store is the built archive: the canonical post/user maps plus every
// derived structure the view engine reads. Built once at startup, read-only
// afterwards, the mutex only guards the favorite flags that mutate at
// runtime.
type Store struct {
	mu sync.Mutex

	MainUserID string

	Posts map[string]*model.Post
	Users map[string]*model.User

	// Conversations maps a conversation id to its member posts in capture
	// order. Single-member groups are pruned, a thread of one is not a thread.
	Conversations map[string][]*model.Post

	// Timeline is the main user's scope, newest first: posts the main user
	// authored or reshared, excluding quoted-only snapshots.
	Timeline []*model.Post

	// Order is the full canonical set in first-seen order.
	Order []*model.Post

	handles map[string]string // lowercased handle (incl. former) -> user id
}

// Build derives the archive from merged capture data. Step order matters:
// sibling quotes resolve first so the timeline reduction sees their
// quoted-only marks, purge before grouping so ads never count as thread
// members, flags after alias application so mention predicates see final
// handles.
func Build(n *normalizer.Normalizer, cfg *config.Config) *Store {
	s := &Store{
		MainUserID:    cfg.MainUserID,
		Posts:         n.Posts,
		Users:         n.Users,
		Conversations: make(map[string][]*model.Post),
		handles:       make(map[string]string),
	}

	n.ResolveQuotes()
	order := s.purgeAds(n.Order)
	s.applyAliases(cfg.Aliases)
	s.groupConversations(order)
	s.linkReplies(order)
	s.computeFlags(order)
	s.buildTimeline(order, n.QuotedOnly)
	s.indexHandles()
	s.upscaleMainAvatar()

	Logger.Log.Infof("archive built: %d posts, %d users, %d conversations, %d in timeline",
		len(s.Posts), len(s.Users), len(s.Conversations), len(s.Timeline))
	return s
}

// purgeAds drops promoted content from the canonical map entirely. A post
// with any scope set was injected, not archived.
func (s *Store) purgeAds(order []string) []*model.Post {
	kept := make([]*model.Post, 0, len(order))
	purged := 0
	for _, id := range order {
		post := s.Posts[id]
		if post == nil {
			continue
		}
		if len(post.Scopes) > 0 {
			delete(s.Posts, id)
			purged++
			continue
		}
		kept = append(kept, post)
	}
	if purged > 0 {
		Logger.Log.Infof("purged %d promoted posts", purged)
	}
	s.Order = kept
	return kept
}

// groupConversations collects thread members in capture order and prunes
// groups that never grew past one member.
func (s *Store) groupConversations(order []*model.Post) {
	for _, post := range order {
		id := post.ConversationID
		if id == "" {
			id = post.ID
		}
		s.Conversations[id] = append(s.Conversations[id], post)
	}
	for id, members := range s.Conversations {
		if len(members) <= 1 {
			delete(s.Conversations, id)
		}
	}
}

// linkReplies attaches each reply to its parent when the parent is present.
// Dangling parents are normal, captures are always partial.
func (s *Store) linkReplies(order []*model.Post) {
	for _, post := range order {
		if post.InReplyToID == "" {
			continue
		}
		parent, ok := s.Posts[post.InReplyToID]
		if !ok {
			continue
		}
		parent.Replies = append(parent.Replies, post)
	}
}

// computeFlags derives the filter-predicate bundle per post. Every filter
// evaluation afterwards reads only these, never the raw fields.
func (s *Store) computeFlags(order []*model.Post) {
	for _, post := range order {
		flags := &model.Flags{
			ByMainUser: post.AuthorID == s.MainUserID || post.ResharingAuthorID == s.MainUserID,
			IsReply:    post.InReplyToID != "",
			IsRetweet:  post.IsRetweet,
			IsQuote:    post.IsQuote,
			HasMention: len(post.Mentions) > 0,
			HasHashtag: len(post.Hashtags) > 0,
			MediaTypes: make(map[string][]string),
		}

		for _, media := range post.Media {
			if _, ok := flags.MediaTypes[media.Kind]; !ok {
				flags.MediaTypes[media.Kind] = nil
			}
		}
		if post.Poll != nil {
			flags.MediaTypes[model.MediaPoll] = nil
		}
		if post.Card != nil {
			flags.MediaTypes[model.MediaCard] = []string{post.Card.URL}
		}
		if len(post.URLs) > 0 {
			expanded := make([]string, 0, len(post.URLs))
			for _, u := range post.URLs {
				expanded = append(expanded, u.ExpandedURL)
			}
			flags.MediaTypes[model.MediaURL] = expanded
		}

		flags.HasMedia = len(post.Media) > 0 || post.Poll != nil || post.Card != nil || len(post.URLs) > 0
		post.Flags = flags
	}
}

// buildTimeline reduces the canonical set to the main user's scope, newest
// first. Ties on timestamp fall back to id order so paging is stable.
func (s *Store) buildTimeline(order []*model.Post, quotedOnly map[string]bool) {
	for _, post := range order {
		if quotedOnly[post.ID] {
			continue
		}
		if post.AuthorID != s.MainUserID && post.ResharingAuthorID != s.MainUserID {
			continue
		}
		s.Timeline = append(s.Timeline, post)
	}
	sort.SliceStable(s.Timeline, func(i, j int) bool {
		a, b := s.Timeline[i], s.Timeline[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

// applyAliases records handle-migration history on the affected users.
func (s *Store) applyAliases(aliases []config.Alias) {
	for _, alias := range aliases {
		found := false
		for _, user := range s.Users {
			if strings.EqualFold(user.Handle, alias.Current) {
				user.FormerHandles = append(user.FormerHandles, alias.Former...)
				found = true
				break
			}
		}
		if !found {
			Logger.Log.Error("alias names an unknown handle: ", alias.Current)
		}
	}
}

func (s *Store) indexHandles() {
	for id, user := range s.Users {
		s.handles[strings.ToLower(user.Handle)] = id
		for _, former := range user.FormerHandles {
			s.handles[strings.ToLower(former)] = id
		}
	}
}

// upscaleMainAvatar swaps the main user's avatar for the large rendition.
// Only the profile header renders it big enough to matter.
func (s *Store) upscaleMainAvatar() {
	user, ok := s.Users[s.MainUserID]
	if !ok {
		Logger.Log.Error("main user id not present in user map: ", s.MainUserID)
		return
	}
	user.AvatarURL = strings.Replace(user.AvatarURL, "_normal.", "_400x400.", 1)
}

// ResolveUser looks a user up by current or former handle,
// case-insensitively.
func (s *Store) ResolveUser(handle string) (*model.User, bool) {
	id, ok := s.handles[strings.ToLower(handle)]
	if !ok {
		return nil, false
	}
	user, ok := s.Users[id]
	return user, ok
}

// Post returns the canonical post for id.
func (s *Store) Post(id string) (*model.Post, bool) {
	post, ok := s.Posts[id]
	return post, ok
}

// Conversation returns the thread members for a conversation id, nil when
// the conversation was pruned or never existed.
func (s *Store) Conversation(id string) []*model.Post {
	return s.Conversations[id]
}

// SetFavorited flips the runtime favorite flag on a post. Safe for
// concurrent callers, this is the only post field that mutates after build.
func (s *Store) SetFavorited(id string, favorited bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	post, ok := s.Posts[id]
	if !ok {
		return false
	}
	post.Favorited = favorited
	return true
}

// Favorited returns every favorited post in timeline order first, then the
// rest of the canonical set in first-seen order.
func (s *Store) Favorited() []*model.Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	var out []*model.Post
	for _, post := range s.Timeline {
		if post.Favorited {
			out = append(out, post)
			seen[post.ID] = true
		}
	}
	for _, post := range s.Order {
		if post.Favorited && !seen[post.ID] {
			out = append(out, post)
		}
	}
	return out
}
