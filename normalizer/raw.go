package normalizer

import (
	"encoding/json"
)

// Recognized capture shape tags. The interceptor labels every raw blob it
// delivers with one of these, dispatch is purely on the tag plus the
// presence of the expected nested paths.
const (
	ShapeLegacyAdaptive        = "legacy-adaptive"
	ShapePaginatedUserTimeline = "paginated-user-timeline"
	ShapePaginatedTweetDetail  = "paginated-tweet-detail"
)

// Snapshot is the top-level capture file: flat id-keyed maps of raw posts
// and users, in whichever raw shape each record was captured in. A snapshot
// re-exported from a running archive may also embed its favorites list.
type Snapshot struct {
	Tweets    map[string]json.RawMessage `json:"tweets"`
	Users     map[string]rawUser         `json:"users"`
	Favorites []string                   `json:"favorites"`
}

// rawTweet is the legacy flat wire shape. Paginated responses bottom out in
// the same shape under tweet_results.result.legacy.
type rawTweet struct {
	IDStr                string          `json:"id_str"`
	FullText             string          `json:"full_text"`
	CreatedAt            json.RawMessage `json:"created_at"`
	UserIDStr            string          `json:"user_id_str"`
	ConversationIDStr    string          `json:"conversation_id_str"`
	InReplyToStatusIDStr string          `json:"in_reply_to_status_id_str"`
	InReplyToUserIDStr   string          `json:"in_reply_to_user_id_str"`

	ReplyCount    int `json:"reply_count"`
	RetweetCount  int `json:"retweet_count"`
	QuoteCount    int `json:"quote_count"`
	FavoriteCount int `json:"favorite_count"`
	BookmarkCount int `json:"bookmark_count"`

	IsQuoteStatus     bool   `json:"is_quote_status"`
	QuotedStatusIDStr string `json:"quoted_status_id_str"`

	Entities         rawEntities          `json:"entities"`
	ExtendedEntities *rawExtendedEntities `json:"extended_entities"`
	Card             *rawCard             `json:"card"`

	// Non-empty scopes mark promoted content.
	Scopes json.RawMessage `json:"scopes"`

	RetweetedStatusResult *rawResultWrapper `json:"retweeted_status_result"`
	QuotedStatusResult    *rawResultWrapper `json:"quoted_status_result"`

	// Subscriber-only content, not normalizable.
	TrustedFriendsInfoResult json.RawMessage `json:"trusted_friends_info_result"`
}

type rawEntities struct {
	Hashtags     []rawHashtag     `json:"hashtags"`
	UserMentions []rawUserMention `json:"user_mentions"`
	URLs         []rawURL         `json:"urls"`
	Media        []rawMedia       `json:"media"`
}

type rawHashtag struct {
	Text string `json:"text"`
}

type rawUserMention struct {
	IDStr      string `json:"id_str"`
	ScreenName string `json:"screen_name"`
	Name       string `json:"name"`
}

type rawURL struct {
	URL         string `json:"url"`
	ExpandedURL string `json:"expanded_url"`
	DisplayURL  string `json:"display_url"`
}

type rawExtendedEntities struct {
	Media []rawMedia `json:"media"`
}

type rawMedia struct {
	Type          string        `json:"type"`
	MediaURLHTTPS string        `json:"media_url_https"`
	VideoInfo     *rawVideoInfo `json:"video_info"`
}

type rawVideoInfo struct {
	Variants []rawVideoVariant `json:"variants"`
}

type rawVideoVariant struct {
	Bitrate     int    `json:"bitrate"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

type rawCard struct {
	Name          string                     `json:"name"`
	URL           string                     `json:"url"`
	BindingValues map[string]rawBindingValue `json:"binding_values"`
}

type rawBindingValue struct {
	StringValue string `json:"string_value"`
}

// rawResultWrapper is the retweeted_status_result / quoted_status_result
// envelope around an embedded tweet result.
type rawResultWrapper struct {
	Result *rawTweetResult `json:"result"`
}

type rawTweetResult struct {
	TypeName string `json:"__typename"`
	RestID   string `json:"rest_id"`
	Core     struct {
		UserResults struct {
			Result rawUserResult `json:"result"`
		} `json:"user_results"`
	} `json:"core"`
	Legacy             *rawTweet         `json:"legacy"`
	QuotedStatusResult *rawResultWrapper `json:"quoted_status_result"`
	Tombstone          json.RawMessage   `json:"tombstone"`

	// Some responses nest the actual result one level deeper.
	Tweet *rawTweetResult `json:"tweet"`

	TrustedFriendsInfoResult json.RawMessage `json:"trusted_friends_info_result"`
}

// unwrap resolves the optional extra nesting level.
func (r *rawTweetResult) unwrap() *rawTweetResult {
	if r != nil && r.Tweet != nil {
		return r.Tweet
	}
	return r
}

type rawUserResult struct {
	RestID string  `json:"rest_id"`
	Legacy rawUser `json:"legacy"`
}

type rawUser struct {
	IDStr                string          `json:"id_str"`
	ScreenName           string          `json:"screen_name"`
	Name                 string          `json:"name"`
	Description          string          `json:"description"`
	Location             string          `json:"location"`
	CreatedAt            json.RawMessage `json:"created_at"`
	FollowersCount       int             `json:"followers_count"`
	FriendsCount         int             `json:"friends_count"`
	StatusesCount        int             `json:"statuses_count"`
	ProfileImageURLHTTPS string          `json:"profile_image_url_https"`
	ProfileBannerURL     string          `json:"profile_banner_url"`
}

// Paginated response shells. The path to content differs per endpoint, the
// timeline object under it is shared.
type paginatedUserTimeline struct {
	Data struct {
		User struct {
			Result struct {
				Timeline struct {
					Timeline timelineObj `json:"timeline"`
				} `json:"timeline"`
				TimelineV2 struct {
					Timeline timelineObj `json:"timeline"`
				} `json:"timeline_v2"`
			} `json:"result"`
		} `json:"user"`
	} `json:"data"`
}

type paginatedTweetDetail struct {
	Data struct {
		ThreadedConversation *timelineObj `json:"threaded_conversation_with_injections_v2"`
	} `json:"data"`
}

type timelineObj struct {
	Instructions []timelineInstruction `json:"instructions"`
}

type timelineInstruction struct {
	Type    string          `json:"type"`
	Entries []timelineEntry `json:"entries"`
}

type timelineEntry struct {
	EntryID string          `json:"entryId"`
	Content timelineContent `json:"content"`
}

type timelineContent struct {
	EntryType   string           `json:"entryType"`
	ItemContent *timelineItem    `json:"itemContent"`
	Items       []timelineModule `json:"items"`
}

type timelineItem struct {
	ItemType     string `json:"itemType"`
	TweetResults struct {
		Result *rawTweetResult `json:"result"`
	} `json:"tweet_results"`
}

type timelineModule struct {
	Item struct {
		ItemContent *timelineItem `json:"itemContent"`
	} `json:"item"`
}
