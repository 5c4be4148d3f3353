package view

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/uplynxed/archivemux/archive"
	"github.com/uplynxed/archivemux/config"
	"github.com/uplynxed/archivemux/model"
	"github.com/uplynxed/archivemux/normalizer"
)

// buildFixture assembles an archive with enough timeline posts to page
// through, plus a small conversation and a quoted post for thread and
// search cases.
func buildFixture(t *testing.T, timelinePosts int) *archive.Store {
	t.Helper()
	n := normalizer.New()

	add := func(post *model.Post) {
		n.Posts[post.ID] = post
		n.Order = append(n.Order, post.ID)
	}

	base := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < timelinePosts; i++ {
		add(&model.Post{
			ID:             fmt.Sprintf("t%03d", i),
			AuthorID:       "main",
			ConversationID: fmt.Sprintf("t%03d", i),
			Text:           fmt.Sprintf("timeline post number %d", i),
			CreatedAt:      base.Add(time.Duration(i) * time.Hour),
		})
	}

	add(&model.Post{ID: "root", AuthorID: "main", ConversationID: "root",
		Text: "conversation root", CreatedAt: base.Add(1000 * time.Hour)})
	add(&model.Post{ID: "reply1", AuthorID: "other", ConversationID: "root", InReplyToID: "root",
		Text: "first reply", CreatedAt: base.Add(1001 * time.Hour)})
	add(&model.Post{ID: "reply2", AuthorID: "main", ConversationID: "root", InReplyToID: "reply1",
		Text: "second reply", CreatedAt: base.Add(1002 * time.Hour)})

	add(&model.Post{ID: "quoting", AuthorID: "main", ConversationID: "quoting",
		Text: "check this out", CreatedAt: base.Add(1003 * time.Hour),
		IsQuote: true, QuotedID: "quoted",
		Quoted: &model.Post{ID: "quoted", AuthorID: "other", Text: "wise words inside the quote"}})

	n.Users["main"] = &model.User{ID: "main", Handle: "mainuser", Name: "Main User"}
	n.Users["other"] = &model.User{ID: "other", Handle: "otheruser", Name: "Other User"}

	cfg := config.Default()
	cfg.MainUserID = "main"
	cfg.Filters = model.FilterSet{}
	return archive.Build(n, cfg)
}

func fixtureEngine(t *testing.T, timelinePosts int) *Engine {
	cfg := config.Default()
	cfg.MainUserID = "main"
	cfg.Filters = model.FilterSet{}
	return NewEngine(buildFixture(t, timelinePosts), cfg)
}

func TestPagination(t *testing.T) {
	store := buildFixture(t, 70)
	cfg := config.Default()
	cfg.MainUserID = "main"
	cfg.Filters = model.FilterSet{}
	e := NewEngine(store, cfg)
	total := len(store.Timeline)
	require.Greater(t, total, 2*DefaultLimit)

	first, err := e.Switch(LoopFeed)
	require.NoError(t, err)
	require.Len(t, first.Posts, DefaultLimit)
	require.Equal(t, PageMore, first.State)
	require.Equal(t, total, first.Total)

	t.Run("more grows the window and earlier pages are a prefix", func(t *testing.T) {
		second, err := e.More(LoopFeed)
		require.NoError(t, err)
		require.Len(t, second.Posts, 2*DefaultLimit)
		for i, post := range first.Posts {
			require.Equal(t, post.ID, second.Posts[i].ID)
		}
	})

	t.Run("exhaustion is terminal", func(t *testing.T) {
		var last *Page
		for i := 0; i < 10; i++ {
			page, err := e.More(LoopFeed)
			require.NoError(t, err)
			last = page
			if page.State == PageEnd {
				break
			}
		}
		require.Equal(t, PageEnd, last.State)
		require.Len(t, last.Posts, total)

		again, err := e.More(LoopFeed)
		require.NoError(t, err)
		require.Equal(t, PageEnd, again.State)
		require.Len(t, again.Posts, total)
	})

	t.Run("explicit offsets do not move the loop cursor", func(t *testing.T) {
		page, err := e.PageAt(LoopFeed, 0)
		require.NoError(t, err)
		require.Len(t, page.Posts, DefaultLimit)

		after, err := e.More(LoopFeed)
		require.NoError(t, err)
		require.Equal(t, PageEnd, after.State)
	})
}

func TestEmptyIsDistinctFromEnd(t *testing.T) {
	e := fixtureEngine(t, 2)

	page, err := e.SetFilter(LoopFeed, model.FilterRetweet, model.RetweetOnly)
	require.NoError(t, err)
	require.Equal(t, PageEmpty, page.State)
	require.Empty(t, page.Posts)

	page, err = e.SetFilter(LoopFeed, model.FilterRetweet, model.FilterAll)
	require.NoError(t, err)
	require.Equal(t, PageEnd, page.State)
	require.NotEmpty(t, page.Posts)
}

func TestUnknownLoop(t *testing.T) {
	e := fixtureEngine(t, 2)
	_, err := e.Switch("bookmarks")
	require.Error(t, err)
}

func TestSortOrders(t *testing.T) {
	e := fixtureEngine(t, 5)

	newest, err := e.SetSort(LoopFeed, SortNewest)
	require.NoError(t, err)
	for i := 1; i < len(newest.Posts); i++ {
		require.False(t, newest.Posts[i-1].CreatedAt.Before(newest.Posts[i].CreatedAt))
	}

	oldest, err := e.SetSort(LoopFeed, SortOldest)
	require.NoError(t, err)
	for i := 1; i < len(oldest.Posts); i++ {
		require.False(t, oldest.Posts[i-1].CreatedAt.After(oldest.Posts[i].CreatedAt))
	}
	require.Equal(t, newest.Total, oldest.Total)

	random, err := e.SetSort(LoopFeed, SortRandom)
	require.NoError(t, err)
	require.Equal(t, newest.Total, random.Total)
}

func TestDateCutoff(t *testing.T) {
	store := buildFixture(t, 10)
	cfg := config.Default()
	cfg.MainUserID = "main"
	cfg.Filters = model.FilterSet{}
	cfg.DateCutoff = time.Date(2021, 1, 1, 5, 0, 0, 0, time.UTC)
	cfg.DateCutoffEnabled = true
	e := NewEngine(store, cfg)

	off, err := e.Switch(LoopFeed)
	require.NoError(t, err)

	on, err := e.SetCutoff(LoopFeed, true)
	require.NoError(t, err)
	require.Less(t, on.Total, off.Total)
	for _, post := range on.Posts {
		require.True(t, post.CreatedAt.Before(cfg.DateCutoff))
	}
}

func TestThread(t *testing.T) {
	e := fixtureEngine(t, 2)

	t.Run("requested reply comes right after the root", func(t *testing.T) {
		page := e.Thread("reply2")
		require.Equal(t, PageEnd, page.State)
		require.Len(t, page.Posts, 3)
		require.Equal(t, "root", page.Posts[0].ID)
		require.Equal(t, "reply2", page.Posts[1].ID)
		require.Equal(t, "reply1", page.Posts[2].ID)
	})

	t.Run("requesting the root keeps capture order", func(t *testing.T) {
		page := e.Thread("root")
		require.Equal(t, []string{"root", "reply1", "reply2"}, postIDs(page))
	})

	t.Run("post outside any conversation is a thread of one", func(t *testing.T) {
		page := e.Thread("t000")
		require.Equal(t, []string{"t000"}, postIDs(page))
	})

	t.Run("unknown id is not found, not an error", func(t *testing.T) {
		page := e.Thread("nope")
		require.Equal(t, PageNotFound, page.State)
		require.Empty(t, page.Posts)
	})
}

func TestSingle(t *testing.T) {
	e := fixtureEngine(t, 2)

	page := e.Single("root")
	require.Equal(t, []string{"root"}, postIDs(page))
	require.Equal(t, PageEnd, page.State)

	require.Equal(t, PageNotFound, e.Single("nope").State)
}

func TestSearch(t *testing.T) {
	e := fixtureEngine(t, 5)

	t.Run("matches post text", func(t *testing.T) {
		page := e.Search("conversation")
		require.Equal(t, []string{"root"}, postIDs(page))
	})

	t.Run("or across terms", func(t *testing.T) {
		page := e.Search("conversation standalone-nonsense check")
		require.ElementsMatch(t, []string{"root", "quoting"}, postIDs(page))
	})

	t.Run("quoted phrase is one term", func(t *testing.T) {
		require.Empty(t, postIDs(e.Search(`"conversation check"`)))
		require.Equal(t, []string{"root"}, postIDs(e.Search(`"conversation root"`)))
	})

	t.Run("matches quoted post text", func(t *testing.T) {
		page := e.Search("wise words")
		require.Contains(t, postIDs(page), "quoting")
	})

	t.Run("finds replies outside the timeline", func(t *testing.T) {
		page := e.Search("first")
		require.Equal(t, []string{"reply1"}, postIDs(page))
	})

	t.Run("matches author handle", func(t *testing.T) {
		page := e.Search("mainuser")
		require.Equal(t, len(e.store.Timeline), page.Total)
	})

	t.Run("empty query is empty, not everything", func(t *testing.T) {
		page := e.Search("   ")
		require.Equal(t, PageEmpty, page.State)
	})
}

func TestRelevantUsers(t *testing.T) {
	e := fixtureEngine(t, 2)

	posts := []*model.Post{
		{AuthorID: "main", Mentions: []model.Mention{{UserID: "other"}, {UserID: "ghost"}}},
		{AuthorID: "other"},
	}
	users := e.RelevantUsers(posts)
	require.Len(t, users, 2)
	require.Equal(t, "main", users[0].ID)
	require.Equal(t, "other", users[1].ID)
}

func postIDs(page *Page) []string {
	var ids []string
	for _, post := range page.Posts {
		ids = append(ids, post.ID)
	}
	return ids
}
