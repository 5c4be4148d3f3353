package model

import (
	"time"
)

// Filter dimension keys.
const (
	FilterReply    = "is_reply"
	FilterRetweet  = "is_retweet"
	FilterMedia    = "has_media"
	FilterFavorite = "is_favorite"
)

// Option vocabulary per dimension. Every dimension has an "all" passthrough,
// any unlisted value also passes through so new frontend options degrade
// gracefully instead of filtering everything out.
const (
	FilterAll = "all"

	ReplyOnly = "replies"
	ReplyNone = "no_replies"

	RetweetOnly         = "retweets"
	QuoteOnly           = "quotetweets"
	RetweetOrQuote      = "retweets_quotetweets"
	RetweetNone         = "no_retweets"
	QuoteNone           = "no_quotetweets"
	RetweetAndQuoteNone = "no_retweets_quotetweets"

	MediaOnly   = "media"
	MediaImages = "images"
	MediaVideos = "videos"
	MediaGifs   = "gifs"
	MediaCards  = "cards"
	MediaPolls  = "polls"
	MediaNone   = "no_media"

	FavoriteOnly = "favorites"
	FavoriteNone = "no_favorites"
)

// FilterSet is the active option per filter dimension. Matching is
// conjunctive: a post has to satisfy every dimension to stay in a view.
// Unrecognized dimension keys pass through rather than reject, which
// tolerates forward-compatible filter additions.
type FilterSet map[string]string

// Clone returns an independent copy so per-loop overrides never leak into the
// configured defaults.
func (f FilterSet) Clone() FilterSet {
	out := make(FilterSet, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Match evaluates the conjunction of all active dimensions against the post's
// derived predicate bundle.
func (f FilterSet) Match(post *Post) bool {
	if post.Flags == nil {
		return false
	}
	for key, value := range f {
		if !matchDimension(key, value, post) {
			return false
		}
	}
	return true
}

func matchDimension(key, value string, post *Post) bool {
	flags := post.Flags
	switch key {
	case FilterReply:
		switch value {
		case ReplyOnly:
			return flags.IsReply
		case ReplyNone:
			return !flags.IsReply
		}
	case FilterRetweet:
		switch value {
		case RetweetOnly:
			return flags.IsRetweet
		case QuoteOnly:
			// A pure quote, a retweet wrapping a quote does not qualify.
			return flags.IsQuote && !flags.IsRetweet
		case RetweetOrQuote:
			return flags.IsRetweet || flags.IsQuote
		case RetweetNone:
			return !flags.IsRetweet
		case QuoteNone:
			return !flags.IsQuote
		case RetweetAndQuoteNone:
			return !flags.IsRetweet && !flags.IsQuote
		}
	case FilterMedia:
		switch value {
		case MediaOnly:
			return flags.HasMedia
		case MediaImages:
			return flags.HasMedia && flags.HasMediaType(MediaPhoto)
		case MediaVideos:
			return flags.HasMedia && flags.HasMediaType(MediaVideo)
		case MediaGifs:
			return flags.HasMedia && flags.HasMediaType(MediaAnimatedGif)
		case MediaCards:
			return flags.HasMedia && flags.HasMediaType(MediaCard)
		case MediaPolls:
			return flags.HasMedia && flags.HasMediaType(MediaPoll)
		case MediaNone:
			return !flags.HasMedia
		}
	case FilterFavorite:
		switch value {
		case FavoriteOnly:
			return post.Favorited
		case FavoriteNone:
			return !post.Favorited
		}
	}
	return true
}

// BeforeCutoff reports whether the post predates the cutoff instant. Posts
// created at or after the cutoff are excluded when the cutoff is enabled.
func BeforeCutoff(post *Post, cutoff time.Time) bool {
	return post.CreatedAt.Before(cutoff)
}
