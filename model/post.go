package model

import (
	"encoding/json"
	"time"
)

// Media kinds as they appear in capture data. Poll, card and url are
// pseudo-kinds that only exist in the derived predicate bundle.
const (
	MediaPhoto       = "photo"
	MediaVideo       = "video"
	MediaAnimatedGif = "animated_gif"
	MediaPoll        = "poll"
	MediaCard        = "card"
	MediaURL         = "url"
)

/*

Post is one archived message in its canonical shape.

ID: primary key, the upstream string id (stable across capture batches)
AuthorID: the user that authored the displayed content. For a reshare this is
		the author of the inner post, the wrapping account is kept as
		ResharingAuthorID.
ConversationID: groups the post with its thread, may equal ID for a root
InReplyToID: weak reference to the parent post, empty when not a reply
Quoted:
		owned deep copy of the quoted post's canonical fields. It is a copy
		rather than a reference because the quoted original may be pruned from
		the canonical set while the quoting post must keep rendering it.
		IsQuote stays true with a nil Quoted when the quoted payload was a
		tombstone, the renderer shows a missing-content placeholder for that.
Favorited: presence sentinel, serialized only when true so exports key off of
		field presence the same way the persisted state does.
Replies/Flags: derived once by the archive builder after all batches merged.

*/

type Post struct {
	ID                string    `json:"id"`
	AuthorID          string    `json:"author_id"`
	ResharingAuthorID string    `json:"resharing_author_id,omitempty"`
	ConversationID    string    `json:"conversation_id,omitempty"`
	InReplyToID       string    `json:"in_reply_to_id,omitempty"`
	InReplyToUserID   string    `json:"in_reply_to_user_id,omitempty"`
	Text              string    `json:"text"`
	CreatedAt         time.Time `json:"created_at"`

	ReplyCount    int `json:"reply_count"`
	RetweetCount  int `json:"retweet_count"`
	QuoteCount    int `json:"quote_count"`
	FavoriteCount int `json:"favorite_count"`
	BookmarkCount int `json:"bookmark_count"`

	Media    []Media     `json:"media,omitempty"`
	Poll     *Poll       `json:"poll,omitempty"`
	Card     *Card       `json:"card,omitempty"`
	Mentions []Mention   `json:"mentions,omitempty"`
	Hashtags []string    `json:"hashtags,omitempty"`
	URLs     []URLEntity `json:"urls,omitempty"`

	IsRetweet bool   `json:"is_retweet,omitempty"`
	IsQuote   bool   `json:"is_quote,omitempty"`
	QuotedID  string `json:"quoted_id,omitempty"`
	Quoted    *Post  `json:"quoted_post,omitempty"`

	// Non-empty scopes mark promoted content, purged by the archive builder.
	Scopes []string `json:"scopes,omitempty"`

	Favorited bool `json:"favorited,omitempty"`

	Replies []*Post `json:"-"`
	Flags   *Flags  `json:"-"`
}

// Clone returns a detached deep copy through the post's serialized form.
// Replies and Flags are derived fields and are not carried, the copy serves
// export and quote-snapshot paths that re-derive nothing.
func (p *Post) Clone() (*Post, error) {
	encoded, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	clone := &Post{}
	if err := json.Unmarshal(encoded, clone); err != nil {
		return nil, err
	}
	return clone, nil
}

// Media is one attached photo, video or animated gif.
type Media struct {
	Kind     string         `json:"kind"`
	URL      string         `json:"url"`
	ThumbURL string         `json:"thumb_url,omitempty"`
	Variants []MediaVariant `json:"variants,omitempty"`
}

// MediaVariant is one encoding of a video or animated gif.
type MediaVariant struct {
	Bitrate     int    `json:"bitrate,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	URL         string `json:"url"`
}

type Poll struct {
	Choices []PollChoice `json:"choices"`
	EndsAt  time.Time    `json:"ends_at,omitempty"`
}

type PollChoice struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Card is an external-link preview payload.
type Card struct {
	Name         string `json:"name"`
	URL          string `json:"url"`
	Title        string `json:"title,omitempty"`
	Description  string `json:"description,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

type Mention struct {
	UserID string `json:"user_id"`
	Handle string `json:"handle"`
	Name   string `json:"name,omitempty"`
}

type URLEntity struct {
	URL         string `json:"url"`
	ExpandedURL string `json:"expanded_url,omitempty"`
	DisplayURL  string `json:"display_url,omitempty"`
}

// Flags is the derived filter-predicate bundle, computed once after the
// canonical set is merged and treated as immutable afterwards.
type Flags struct {
	ByMainUser bool
	IsReply    bool
	IsRetweet  bool
	IsQuote    bool
	HasMedia   bool
	HasMention bool
	HasHashtag bool
	// MediaTypes maps a media kind to its auxiliary values (a card's url, the
	// expanded urls of link entities). Plain kinds map to nil.
	MediaTypes map[string][]string
}

// HasMediaType reports whether kind is present in the bundle.
func (f *Flags) HasMediaType(kind string) bool {
	if f == nil {
		return false
	}
	_, ok := f.MediaTypes[kind]
	return ok
}
