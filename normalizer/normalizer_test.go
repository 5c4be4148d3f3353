package normalizer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/uplynxed/archivemux/model"
)

const snapshotFixture = `{
	"tweets": {
		"100": {
			"id_str": "100",
			"user_id_str": "1",
			"conversation_id_str": "100",
			"full_text": "plain post with a #tag and @friend",
			"created_at": "Wed Mar 10 12:00:00 +0000 2021",
			"favorite_count": 3,
			"entities": {
				"hashtags": [{"text": "tag"}],
				"user_mentions": [{"id_str": "2", "screen_name": "friend", "name": "A Friend"}]
			}
		},
		"101": {
			"id_str": "101",
			"user_id_str": "1",
			"full_text": "RT @friend: the inner text",
			"created_at": "Thu Mar 11 12:00:00 +0000 2021",
			"retweeted_status_result": {
				"result": {
					"rest_id": "90",
					"core": {"user_results": {"result": {
						"rest_id": "2",
						"legacy": {"screen_name": "friend", "name": "A Friend"}
					}}},
					"legacy": {
						"id_str": "90",
						"full_text": "the inner text",
						"created_at": "Mon Mar 01 08:00:00 +0000 2021",
						"favorite_count": 42,
						"entities": {"media": [{"type": "photo", "media_url_https": "https://pbs.twimg.com/media/AAA.jpg"}]},
						"extended_entities": {"media": [{"type": "photo", "media_url_https": "https://pbs.twimg.com/media/AAA.jpg"}]}
					}
				}
			}
		},
		"102": {
			"id_str": "102",
			"user_id_str": "1",
			"full_text": "look at this",
			"created_at": "Fri Mar 12 12:00:00 +0000 2021",
			"is_quote_status": true,
			"quoted_status_id_str": "91",
			"quoted_status_result": {
				"result": {
					"rest_id": "91",
					"core": {"user_results": {"result": {
						"rest_id": "3",
						"legacy": {"screen_name": "third", "name": "Third User"}
					}}},
					"legacy": {
						"id_str": "91",
						"full_text": "the quoted text",
						"created_at": "Tue Mar 02 08:00:00 +0000 2021",
						"entities": {"user_mentions": [{"id_str": "1", "screen_name": "main"}]}
					}
				}
			}
		},
		"103": {
			"id_str": "103",
			"user_id_str": "1",
			"full_text": "quoting a deleted post",
			"created_at": "Sat Mar 13 12:00:00 +0000 2021",
			"is_quote_status": true,
			"quoted_status_result": {
				"result": {"tombstone": {"text": "this post is unavailable"}}
			}
		},
		"104": {
			"id_str": "104",
			"user_id_str": "9",
			"full_text": "buy my thing",
			"created_at": "Sun Mar 14 12:00:00 +0000 2021",
			"scopes": {"followers": false}
		},
		"105": {
			"id_str": "105",
			"user_id_str": "1",
			"full_text": "subscriber only",
			"created_at": "Sun Mar 14 13:00:00 +0000 2021",
			"trusted_friends_info_result": {"result": {"owner_results": {}}}
		}
	},
	"users": {
		"1": {"id_str": "1", "screen_name": "main", "name": "Main User", "profile_image_url_https": "https://pbs.twimg.com/profile_images/111/me_normal.png"},
		"2": {"screen_name": "friend", "name": "A Friend"}
	}
}`

func TestAddSnapshot(t *testing.T) {
	n := New()
	require.NoError(t, n.AddSnapshot([]byte(snapshotFixture)))

	t.Run("plain post keeps its fields", func(t *testing.T) {
		post, ok := n.Posts["100"]
		require.True(t, ok)
		require.Equal(t, "1", post.AuthorID)
		require.Equal(t, "plain post with a #tag and @friend", post.Text)
		require.Equal(t, 3, post.FavoriteCount)
		require.Equal(t, []string{"tag"}, post.Hashtags)
		require.Len(t, post.Mentions, 1)
		require.Equal(t, "friend", post.Mentions[0].Handle)
		require.Equal(t, time.Date(2021, 3, 10, 12, 0, 0, 0, time.UTC), post.CreatedAt)
	})

	t.Run("reshare wrapper takes the inner post's fields", func(t *testing.T) {
		post, ok := n.Posts["101"]
		require.True(t, ok)
		require.True(t, post.IsRetweet)
		require.Equal(t, "2", post.AuthorID)
		require.Equal(t, "1", post.ResharingAuthorID)
		require.Equal(t, "the inner text", post.Text)
		require.Equal(t, 42, post.FavoriteCount)
		require.Len(t, post.Media, 1)
		// The wrapper decides recency, the reshare happened on its date.
		require.Equal(t, time.Date(2021, 3, 11, 12, 0, 0, 0, time.UTC), post.CreatedAt)
	})

	t.Run("inner author is registered without clobbering the snapshot user", func(t *testing.T) {
		user, ok := n.Users["2"]
		require.True(t, ok)
		require.Equal(t, "friend", user.Handle)
	})

	t.Run("quote carries an owned snapshot", func(t *testing.T) {
		post, ok := n.Posts["102"]
		require.True(t, ok)
		require.True(t, post.IsQuote)
		require.Equal(t, "91", post.QuotedID)
		require.NotNil(t, post.Quoted)
		require.Equal(t, "the quoted text", post.Quoted.Text)
		require.Equal(t, "3", post.Quoted.AuthorID)
		// Quoted entities are merged outward for link rewriting.
		require.Len(t, post.Mentions, 1)
		require.Equal(t, "main", post.Mentions[0].Handle)
	})

	t.Run("quoted snapshot is canonical but marked quoted-only", func(t *testing.T) {
		_, ok := n.Posts["91"]
		require.True(t, ok)
		require.True(t, n.QuotedOnly["91"])
		require.False(t, n.QuotedOnly["102"])
	})

	t.Run("tombstoned quote keeps the flag with no snapshot", func(t *testing.T) {
		post, ok := n.Posts["103"]
		require.True(t, ok)
		require.True(t, post.IsQuote)
		require.Nil(t, post.Quoted)
	})

	t.Run("promoted post keeps its scopes for the purge pass", func(t *testing.T) {
		post, ok := n.Posts["104"]
		require.True(t, ok)
		require.Equal(t, []string{"followers"}, post.Scopes)
	})

	t.Run("subscriber-only record is skipped", func(t *testing.T) {
		_, ok := n.Posts["105"]
		require.False(t, ok)
	})
}

func TestAddSnapshotIsIdempotent(t *testing.T) {
	n := New()
	require.NoError(t, n.AddSnapshot([]byte(snapshotFixture)))
	posts, users, order := len(n.Posts), len(n.Users), len(n.Order)

	require.NoError(t, n.AddSnapshot([]byte(snapshotFixture)))
	require.Equal(t, posts, len(n.Posts))
	require.Equal(t, users, len(n.Users))
	require.Equal(t, order, len(n.Order))
}

func TestMergeIsFirstSeenWins(t *testing.T) {
	n := New()
	require.NoError(t, n.AddSnapshot([]byte(`{"tweets": {"1": {"id_str": "1", "user_id_str": "9", "full_text": "first copy"}}}`)))
	require.NoError(t, n.AddSnapshot([]byte(`{"tweets": {"1": {"id_str": "1", "user_id_str": "9", "full_text": "second copy"}}}`)))
	require.Equal(t, "first copy", n.Posts["1"].Text)
}

func TestSnapshotEmbeddedFavorites(t *testing.T) {
	n := New()
	require.NoError(t, n.AddSnapshot([]byte(`{"tweets": {}, "favorites": ["1", "2"]}`)))
	require.NoError(t, n.AddSnapshot([]byte(`{"tweets": {}, "favorites": ["2", "3"]}`)))
	require.Equal(t, []string{"1", "2", "3"}, n.SeedFavorites)
}

func TestAddSnapshotRejectsMalformedJSON(t *testing.T) {
	n := New()
	require.Error(t, n.AddSnapshot([]byte(`{"tweets": `)))
}

// Flat snapshots store the quoted post as a sibling map entry referenced by
// id rather than a nested payload.
const siblingQuoteFixture = `{
	"tweets": {
		"200": {
			"id_str": "200",
			"user_id_str": "1",
			"full_text": "quoting by reference",
			"created_at": "Wed Mar 10 12:00:00 +0000 2021",
			"is_quote_status": true,
			"quoted_status_id_str": "201"
		},
		"201": {
			"id_str": "201",
			"user_id_str": "2",
			"full_text": "the referenced original with a link",
			"created_at": "Tue Mar 09 12:00:00 +0000 2021",
			"entities": {
				"user_mentions": [{"id_str": "1", "screen_name": "main"}],
				"urls": [{"url": "https://t.co/abc", "expanded_url": "https://example.com/abc"}]
			}
		},
		"202": {
			"id_str": "202",
			"user_id_str": "1",
			"full_text": "quoting something never captured",
			"created_at": "Thu Mar 11 12:00:00 +0000 2021",
			"is_quote_status": true,
			"quoted_status_id_str": "999"
		}
	},
	"users": {
		"1": {"id_str": "1", "screen_name": "main"},
		"2": {"id_str": "2", "screen_name": "friend"}
	}
}`

func TestResolveQuotes(t *testing.T) {
	n := New()
	require.NoError(t, n.AddSnapshot([]byte(siblingQuoteFixture)))
	n.ResolveQuotes()

	t.Run("sibling record is attached as the owned snapshot", func(t *testing.T) {
		post := n.Posts["200"]
		require.NotNil(t, post.Quoted)
		require.Equal(t, "201", post.Quoted.ID)
		require.Equal(t, "the referenced original with a link", post.Quoted.Text)
	})

	t.Run("snapshot is a detached copy", func(t *testing.T) {
		n.Posts["201"].Text = "mutated"
		require.Equal(t, "the referenced original with a link", n.Posts["200"].Quoted.Text)
	})

	t.Run("quoted entities merge outward", func(t *testing.T) {
		post := n.Posts["200"]
		require.Len(t, post.Mentions, 1)
		require.Equal(t, "main", post.Mentions[0].Handle)
		require.Len(t, post.URLs, 1)
		require.Equal(t, "https://example.com/abc", post.URLs[0].ExpandedURL)
	})

	t.Run("resolved target leaves feed scope but stays canonical", func(t *testing.T) {
		require.True(t, n.QuotedOnly["201"])
		require.Contains(t, n.Posts, "201")
	})

	t.Run("dangling reference stays a placeholder", func(t *testing.T) {
		post := n.Posts["202"]
		require.True(t, post.IsQuote)
		require.Nil(t, post.Quoted)
		require.False(t, n.QuotedOnly["999"])
	})

	t.Run("resolution is idempotent", func(t *testing.T) {
		attached := n.Posts["200"].Quoted
		mentions := len(n.Posts["200"].Mentions)
		n.ResolveQuotes()
		require.Same(t, attached, n.Posts["200"].Quoted)
		require.Len(t, n.Posts["200"].Mentions, mentions)
	})
}

const userTimelineFixture = `{
	"data": {"user": {"result": {"timeline_v2": {"timeline": {"instructions": [
		{"type": "TimelineClearCache"},
		{"type": "TimelineAddEntries", "entries": [
			{"entryId": "tweet-200", "content": {
				"entryType": "TimelineTimelineItem",
				"itemContent": {"itemType": "TimelineTweet", "tweet_results": {"result": {
					"rest_id": "200",
					"core": {"user_results": {"result": {"rest_id": "1", "legacy": {"screen_name": "main", "name": "Main User"}}}},
					"legacy": {"id_str": "200", "full_text": "from the paginated api", "created_at": "Sat Jan 01 00:00:00 +0000 2022"}
				}}}
			}},
			{"entryId": "conv-1", "content": {
				"entryType": "TimelineTimelineModule",
				"items": [
					{"item": {"itemContent": {"itemType": "TimelineTweet", "tweet_results": {"result": {
						"tweet": {
							"rest_id": "201",
							"core": {"user_results": {"result": {"rest_id": "1", "legacy": {"screen_name": "main"}}}},
							"legacy": {"id_str": "201", "full_text": "nested one level deeper", "created_at": "Sat Jan 01 01:00:00 +0000 2022"}
						}
					}}}}},
					{"item": {"itemContent": {"itemType": "TimelineTimelineCursor"}}}
				]
			}}
		]}
	]}}}}}
}`

func TestAddBatch(t *testing.T) {
	t.Run("paginated user timeline", func(t *testing.T) {
		n := New()
		require.NoError(t, n.AddBatch(ShapePaginatedUserTimeline, []byte(userTimelineFixture)))

		post, ok := n.Posts["200"]
		require.True(t, ok)
		require.Equal(t, "from the paginated api", post.Text)
		require.Equal(t, "1", post.AuthorID)

		nested, ok := n.Posts["201"]
		require.True(t, ok)
		require.Equal(t, "nested one level deeper", nested.Text)
	})

	t.Run("tweet detail", func(t *testing.T) {
		payload := `{"data": {"threaded_conversation_with_injections_v2": {"instructions": [
			{"type": "TimelineAddEntries", "entries": [
				{"content": {"entryType": "TimelineTimelineItem", "itemContent": {"itemType": "TimelineTweet", "tweet_results": {"result": {
					"rest_id": "300",
					"core": {"user_results": {"result": {"rest_id": "1", "legacy": {"screen_name": "main"}}}},
					"legacy": {"id_str": "300", "full_text": "detail root", "created_at": "Sat Jan 01 00:00:00 +0000 2022"}
				}}}}}
			]}
		]}}}`
		n := New()
		require.NoError(t, n.AddBatch(ShapePaginatedTweetDetail, []byte(payload)))
		require.Contains(t, n.Posts, "300")
	})

	t.Run("legacy adaptive goes through the snapshot path", func(t *testing.T) {
		n := New()
		require.NoError(t, n.AddBatch(ShapeLegacyAdaptive, []byte(snapshotFixture)))
		require.Contains(t, n.Posts, "100")
	})

	t.Run("unknown shape is a logged skip", func(t *testing.T) {
		n := New()
		require.NoError(t, n.AddBatch("graphql-v9", []byte(`{}`)))
		require.Empty(t, n.Posts)
	})
}

func TestParseTime(t *testing.T) {
	t.Run("ruby format", func(t *testing.T) {
		parsed := parseTime(json.RawMessage(`"Wed Mar 10 12:00:00 +0000 2021"`))
		require.Equal(t, time.Date(2021, 3, 10, 12, 0, 0, 0, time.UTC), parsed)
	})
	t.Run("epoch millis", func(t *testing.T) {
		parsed := parseTime(json.RawMessage(`1615377600000`))
		require.Equal(t, time.Date(2021, 3, 10, 12, 0, 0, 0, time.UTC), parsed)
	})
	t.Run("garbage is zero", func(t *testing.T) {
		require.True(t, parseTime(json.RawMessage(`"not a date"`)).IsZero())
		require.True(t, parseTime(nil).IsZero())
	})
}

func TestParseScopes(t *testing.T) {
	require.Nil(t, parseScopes(nil))
	require.Nil(t, parseScopes(json.RawMessage(`null`)))
	require.Nil(t, parseScopes(json.RawMessage(`{}`)))
	require.Equal(t, []string{"followers"}, parseScopes(json.RawMessage(`{"followers": false}`)))
	require.Equal(t, []string{"a", "b"}, parseScopes(json.RawMessage(`["a", "b"]`)))
	require.Equal(t, []string{"promoted"}, parseScopes(json.RawMessage(`"weird"`)))
}

func TestConvertPoll(t *testing.T) {
	raw := `{
		"id_str": "400",
		"user_id_str": "1",
		"full_text": "which one",
		"card": {
			"name": "poll2choice_text_only",
			"binding_values": {
				"choice1_label": {"string_value": "this"},
				"choice1_count": {"string_value": "7"},
				"choice2_label": {"string_value": "that"},
				"choice2_count": {"string_value": "11"}
			}
		}
	}`
	var legacy rawTweet
	require.NoError(t, json.Unmarshal([]byte(raw), &legacy))

	post := convertBase(&legacy)
	require.Nil(t, post.Card)
	require.NotNil(t, post.Poll)
	require.Equal(t, []model.PollChoice{{Label: "this", Count: 7}, {Label: "that", Count: 11}}, post.Poll.Choices)
}

func TestConvertCard(t *testing.T) {
	raw := `{
		"id_str": "401",
		"user_id_str": "1",
		"full_text": "a link",
		"card": {
			"name": "summary_large_image",
			"url": "https://t.co/abc",
			"binding_values": {
				"title": {"string_value": "A Page"},
				"description": {"string_value": "About things"}
			}
		}
	}`
	var legacy rawTweet
	require.NoError(t, json.Unmarshal([]byte(raw), &legacy))

	post := convertBase(&legacy)
	require.Nil(t, post.Poll)
	require.NotNil(t, post.Card)
	require.Equal(t, "A Page", post.Card.Title)
	require.Equal(t, "About things", post.Card.Description)
}
