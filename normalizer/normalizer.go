package normalizer

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/pkg/errors"

	"github.com/uplynxed/archivemux/model"
	"github.com/uplynxed/archivemux/utils"
	Logger "github.com/uplynxed/archivemux/utils/log"
)

// Normalizer folds raw capture batches of any recognized shape into one
// canonical post/user mapping. Merging is first-seen-wins for both, so
// overlapping capture batches are idempotent.
type Normalizer struct {
	Posts map[string]*model.Post
	Users map[string]*model.User
	// Order preserves first-seen post order for deterministic downstream
	// grouping.
	Order []string
	// QuotedOnly marks posts that only ever arrived as somebody else's quote
	// snapshot. They stay canonical but never surface in the timeline.
	QuotedOnly map[string]bool
	// SeedFavorites collects favorite ids embedded in re-exported snapshots,
	// applied by the caller when no persisted list exists yet.
	SeedFavorites []string
}

func New() *Normalizer {
	return &Normalizer{
		Posts:      make(map[string]*model.Post),
		Users:      make(map[string]*model.User),
		QuotedOnly: make(map[string]bool),
	}
}

// AddSnapshot parses a capture file of flat id-keyed posts and users. A
// snapshot that fails to parse as JSON is the one fatal condition: nothing
// downstream has defined behavior without a canonical map.
func (n *Normalizer) AddSnapshot(data []byte) error {
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return errors.Wrap(err, "fail to parse snapshot")
	}

	for id, user := range snapshot.Users {
		if user.IDStr == "" {
			user.IDStr = id
		}
		n.insertUser(convertUser(user))
	}

	// Iterate in sorted id order so merge results do not depend on map
	// iteration order.
	ids := make([]string, 0, len(snapshot.Tweets))
	for id := range snapshot.Tweets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		n.addLegacyRecord(Optimize(snapshot.Tweets[id]))
	}

	for _, id := range snapshot.Favorites {
		if !utils.ContainsString(n.SeedFavorites, id) {
			n.SeedFavorites = append(n.SeedFavorites, id)
		}
	}
	return nil
}

// AddBatch dispatches one tagged raw blob from the capture collaborator.
// Unrecognized shapes and absent nested paths degrade to a logged skip,
// one batch commonly mixes old and new API shapes.
func (n *Normalizer) AddBatch(shape string, payload []byte) error {
	switch shape {
	case ShapeLegacyAdaptive:
		return n.AddSnapshot(payload)
	case ShapePaginatedUserTimeline:
		var parsed paginatedUserTimeline
		if err := json.Unmarshal(payload, &parsed); err != nil {
			return errors.Wrap(err, "fail to parse user timeline batch")
		}
		tl := parsed.Data.User.Result.TimelineV2.Timeline
		if len(tl.Instructions) == 0 {
			tl = parsed.Data.User.Result.Timeline.Timeline
		}
		n.walkTimeline(tl)
		return nil
	case ShapePaginatedTweetDetail:
		var parsed paginatedTweetDetail
		if err := json.Unmarshal(payload, &parsed); err != nil {
			return errors.Wrap(err, "fail to parse tweet detail batch")
		}
		if parsed.Data.ThreadedConversation == nil {
			Logger.Log.Error("tweet detail batch has no conversation payload, skipped")
			return nil
		}
		n.walkTimeline(*parsed.Data.ThreadedConversation)
		return nil
	default:
		Logger.Log.Errorf("unrecognized capture shape %q, batch skipped", shape)
		return nil
	}
}

// walkTimeline extracts post content from timeline instructions. Only
// "add entries" instructions carry content, entries are either single items
// or modules wrapping nested item lists.
func (n *Normalizer) walkTimeline(tl timelineObj) {
	for _, instruction := range tl.Instructions {
		if instruction.Type != "TimelineAddEntries" {
			continue
		}
		for _, entry := range instruction.Entries {
			switch entry.Content.EntryType {
			case "TimelineTimelineItem":
				if entry.Content.ItemContent != nil {
					n.addTweetResult(entry.Content.ItemContent.TweetResults.Result)
				}
			case "TimelineTimelineModule":
				for _, item := range entry.Content.Items {
					content := item.Item.ItemContent
					if content == nil || content.ItemType != "TimelineTweet" {
						continue
					}
					n.addTweetResult(content.TweetResults.Result)
				}
			}
		}
	}
}

// addTweetResult folds one embedded tweet result into the canonical maps.
func (n *Normalizer) addTweetResult(result *rawTweetResult) {
	result = result.unwrap()
	if result == nil || result.Legacy == nil {
		Logger.Log.Error("tweet result has no legacy payload, record skipped")
		return
	}
	if present(result.TrustedFriendsInfoResult) || present(result.Legacy.TrustedFriendsInfoResult) {
		// Subscriber-only content, not normalizable.
		return
	}

	legacy := *result.Legacy
	if legacy.UserIDStr == "" {
		legacy.UserIDStr = result.Core.UserResults.Result.RestID
	}
	if result.QuotedStatusResult != nil && legacy.QuotedStatusResult == nil {
		legacy.QuotedStatusResult = result.QuotedStatusResult
	}
	n.registerResultUser(result)

	n.insertPost(n.buildPost(&legacy))
}

// addLegacyRecord folds one flat legacy record into the canonical maps.
func (n *Normalizer) addLegacyRecord(record json.RawMessage) {
	var legacy rawTweet
	if err := json.Unmarshal(record, &legacy); err != nil {
		Logger.Log.Error("fail to parse raw post record, skipped: ", err)
		return
	}
	if legacy.IDStr == "" {
		Logger.Log.Error("raw post record has no id, skipped")
		return
	}
	if present(legacy.TrustedFriendsInfoResult) {
		return
	}
	n.insertPost(n.buildPost(&legacy))
}

// buildPost converts a legacy record to its canonical post, resolving the
// retweet and quote wrappers it may carry.
func (n *Normalizer) buildPost(legacy *rawTweet) *model.Post {
	post := convertBase(legacy)

	if legacy.RetweetedStatusResult != nil {
		n.applyReshare(post, legacy)
	} else if legacy.QuotedStatusResult != nil {
		n.applyQuote(post, legacy.QuotedStatusResult)
	}

	return post
}

// applyReshare overwrites the wrapper's display fields with the inner
// reshared post's fields. The wrapper author is retained as the resharing
// author, the inner author becomes the primary author.
func (n *Normalizer) applyReshare(post *model.Post, legacy *rawTweet) {
	inner := legacy.RetweetedStatusResult.Result.unwrap()
	if inner == nil || inner.Legacy == nil {
		// Keep the wrapper as-is but still flag it, the renderer degrades to
		// the wrapper text.
		post.IsRetweet = true
		Logger.Log.Error("reshare wrapper has no inner payload for post ", post.ID)
		return
	}

	innerPost := convertBase(inner.Legacy)
	innerUser := inner.Core.UserResults.Result
	n.registerResultUser(inner)

	post.ResharingAuthorID = post.AuthorID
	post.AuthorID = innerUser.RestID
	if post.AuthorID == "" {
		post.AuthorID = inner.Legacy.UserIDStr
	}
	post.Text = innerPost.Text
	post.Media = innerPost.Media
	post.Poll = innerPost.Poll
	post.Card = innerPost.Card
	post.Mentions = innerPost.Mentions
	post.Hashtags = innerPost.Hashtags
	post.URLs = innerPost.URLs
	post.IsQuote = innerPost.IsQuote
	post.QuotedID = innerPost.QuotedID
	post.ReplyCount = innerPost.ReplyCount
	post.RetweetCount = innerPost.RetweetCount
	post.QuoteCount = innerPost.QuoteCount
	post.FavoriteCount = innerPost.FavoriteCount
	post.IsRetweet = true

	if inner.QuotedStatusResult != nil {
		n.applyQuote(post, inner.QuotedStatusResult)
	}
}

// applyQuote attaches an owned snapshot of the quoted payload. A tombstoned
// quote keeps the quote flag with no snapshot, a deliberate degraded state
// the renderer shows as a missing-content placeholder.
func (n *Normalizer) applyQuote(post *model.Post, wrapper *rawResultWrapper) {
	quoted := wrapper.Result.unwrap()
	if quoted == nil {
		post.IsQuote = true
		return
	}
	if present(quoted.Tombstone) || quoted.Legacy == nil {
		post.IsQuote = true
		return
	}

	snapshot := convertBase(quoted.Legacy)
	if id := quoted.Core.UserResults.Result.RestID; id != "" {
		snapshot.AuthorID = id
	}
	n.registerResultUser(quoted)
	n.insertQuoted(snapshot)

	post.IsQuote = true
	post.QuotedID = snapshot.ID
	post.Quoted = snapshot
	mergeQuotedEntities(post, snapshot)
}

// ResolveQuotes attaches quote snapshots that arrived as sibling records
// rather than nested payloads. The flat snapshot shape stores the quoted
// post as its own map entry referenced by quoted_status_id_str, resolvable
// only once every batch has merged. A resolved target leaves the feed scope
// the same way a nested quote snapshot does, it renders inside its quoting
// posts.
func (n *Normalizer) ResolveQuotes() {
	for _, id := range n.Order {
		post := n.Posts[id]
		if post == nil || post.QuotedID == "" || post.Quoted != nil {
			continue
		}
		target, ok := n.Posts[post.QuotedID]
		if !ok || target.ID == post.ID {
			continue
		}
		snapshot, err := target.Clone()
		if err != nil {
			Logger.Log.Error("fail to copy quoted post ", target.ID, ": ", err)
			continue
		}
		post.IsQuote = true
		post.Quoted = snapshot
		mergeQuotedEntities(post, snapshot)
		n.QuotedOnly[target.ID] = true
	}
}

// mergeQuotedEntities extends the outer post's mention and url lists with
// the quoted post's own, so downstream link rewriting never re-inspects the
// quote.
func mergeQuotedEntities(post, quoted *model.Post) {
	post.Mentions = append(post.Mentions, quoted.Mentions...)
	post.URLs = append(post.URLs, quoted.URLs...)
}

func (n *Normalizer) registerResultUser(result *rawTweetResult) {
	userResult := result.Core.UserResults.Result
	if userResult.RestID == "" {
		return
	}
	user := userResult.Legacy
	user.IDStr = userResult.RestID
	n.insertUser(convertUser(user))
}

func (n *Normalizer) insertPost(post *model.Post) {
	// Arriving as a first-class record clears any quoted-only marking.
	delete(n.QuotedOnly, post.ID)
	if _, ok := n.Posts[post.ID]; ok {
		return
	}
	n.Posts[post.ID] = post
	n.Order = append(n.Order, post.ID)
}

func (n *Normalizer) insertQuoted(post *model.Post) {
	if _, ok := n.Posts[post.ID]; ok {
		return
	}
	n.QuotedOnly[post.ID] = true
	n.Posts[post.ID] = post
	n.Order = append(n.Order, post.ID)
}

func (n *Normalizer) insertUser(user *model.User) {
	if user.ID == "" {
		return
	}
	if _, ok := n.Users[user.ID]; ok {
		return
	}
	n.Users[user.ID] = user
}

// convertBase maps the legacy wire fields onto a canonical post without
// resolving wrappers.
func convertBase(legacy *rawTweet) *model.Post {
	post := &model.Post{
		ID:              legacy.IDStr,
		AuthorID:        legacy.UserIDStr,
		ConversationID:  legacy.ConversationIDStr,
		InReplyToID:     legacy.InReplyToStatusIDStr,
		InReplyToUserID: legacy.InReplyToUserIDStr,
		Text:            legacy.FullText,
		CreatedAt:       parseTime(legacy.CreatedAt),
		ReplyCount:      legacy.ReplyCount,
		RetweetCount:    legacy.RetweetCount,
		QuoteCount:      legacy.QuoteCount,
		FavoriteCount:   legacy.FavoriteCount,
		BookmarkCount:   legacy.BookmarkCount,
		IsQuote:         legacy.IsQuoteStatus,
		QuotedID:        legacy.QuotedStatusIDStr,
		Scopes:          parseScopes(legacy.Scopes),
	}

	for _, hashtag := range legacy.Entities.Hashtags {
		post.Hashtags = append(post.Hashtags, hashtag.Text)
	}
	for _, mention := range legacy.Entities.UserMentions {
		post.Mentions = append(post.Mentions, model.Mention{
			UserID: mention.IDStr,
			Handle: mention.ScreenName,
			Name:   mention.Name,
		})
	}
	for _, u := range legacy.Entities.URLs {
		post.URLs = append(post.URLs, model.URLEntity{
			URL:         u.URL,
			ExpandedURL: u.ExpandedURL,
			DisplayURL:  u.DisplayURL,
		})
	}

	media := legacy.Entities.Media
	if legacy.ExtendedEntities != nil && len(legacy.ExtendedEntities.Media) > 0 {
		media = legacy.ExtendedEntities.Media
	}
	for _, m := range media {
		converted := model.Media{
			Kind:     m.Type,
			URL:      m.MediaURLHTTPS,
			ThumbURL: m.MediaURLHTTPS,
		}
		if m.VideoInfo != nil {
			for _, variant := range m.VideoInfo.Variants {
				converted.Variants = append(converted.Variants, model.MediaVariant{
					Bitrate:     variant.Bitrate,
					ContentType: variant.ContentType,
					URL:         variant.URL,
				})
			}
		}
		post.Media = append(post.Media, converted)
	}

	if legacy.Card != nil {
		if strings.Contains(legacy.Card.Name, "poll") {
			post.Poll = convertPoll(legacy.Card)
		} else {
			post.Card = convertCard(legacy.Card)
		}
	}

	return post
}

func convertCard(card *rawCard) *model.Card {
	converted := &model.Card{Name: card.Name, URL: card.URL}
	if v, ok := card.BindingValues["title"]; ok {
		converted.Title = v.StringValue
	}
	if v, ok := card.BindingValues["description"]; ok {
		converted.Description = v.StringValue
	}
	if v, ok := card.BindingValues["thumbnail_image_original"]; ok {
		converted.ThumbnailURL = v.StringValue
	}
	return converted
}

func convertPoll(card *rawCard) *model.Poll {
	poll := &model.Poll{}
	labels := []string{"choice1", "choice2", "choice3", "choice4"}
	for _, choice := range labels {
		label, ok := card.BindingValues[choice+"_label"]
		if !ok {
			continue
		}
		count := 0
		if v, ok := card.BindingValues[choice+"_count"]; ok {
			count = atoiSafe(v.StringValue)
		}
		poll.Choices = append(poll.Choices, model.PollChoice{Label: label.StringValue, Count: count})
	}
	if v, ok := card.BindingValues["end_datetime_utc"]; ok {
		if ends, err := dateparse.ParseAny(v.StringValue); err == nil {
			poll.EndsAt = ends
		}
	}
	return poll
}

func convertUser(user rawUser) *model.User {
	return &model.User{
		ID:            user.IDStr,
		Handle:        user.ScreenName,
		Name:          user.Name,
		Bio:           user.Description,
		Location:      user.Location,
		AvatarURL:     user.ProfileImageURLHTTPS,
		BannerURL:     user.ProfileBannerURL,
		Followers:     user.FollowersCount,
		Following:     user.FriendsCount,
		StatusesCount: user.StatusesCount,
		JoinedAt:      parseTime(user.CreatedAt),
	}
}

// parseTime accepts the ruby-style created_at format, ISO strings and epoch
// milliseconds, the snapshot mixes all three across capture generations.
func parseTime(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return time.Time{}
	}

	var millis int64
	if err := json.Unmarshal(raw, &millis); err == nil {
		return time.Unix(millis/1000, millis%1000*int64(time.Millisecond)).UTC()
	}

	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return time.Time{}
	}
	parsed, err := dateparse.ParseAny(str)
	if err != nil {
		Logger.Log.Error("unparseable timestamp in raw record: ", str)
		return time.Time{}
	}
	return parsed.UTC()
}

// parseScopes flattens the scopes payload: any non-empty value marks the
// record as promoted content.
func parseScopes(raw json.RawMessage) []string {
	if !present(raw) {
		return nil
	}

	var asMap map[string]interface{}
	if err := json.Unmarshal(raw, &asMap); err == nil {
		keys := make([]string, 0, len(asMap))
		for key := range asMap {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		return keys
	}

	var asList []string
	if err := json.Unmarshal(raw, &asList); err == nil {
		return asList
	}

	return []string{"promoted"}
}

func atoiSafe(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// present reports whether an optional raw field carries a value.
func present(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	trimmed := strings.TrimSpace(string(raw))
	return trimmed != "null" && trimmed != "{}" && trimmed != "[]"
}
