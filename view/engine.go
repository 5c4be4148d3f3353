package view

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/uplynxed/archivemux/archive"
	"github.com/uplynxed/archivemux/config"
	"github.com/uplynxed/archivemux/model"
	"github.com/uplynxed/archivemux/utils"
)

// Named loops. Thread and single-post views are served off the same engine
// but bypass filters, sort and pagination entirely, so they are not loops.
const (
	LoopFeed      = "feed"
	LoopMedia     = "media"
	LoopFavorites = "favorites"
	LoopAll       = "all"
	LoopSearch    = "search"
)

// Loop lifecycle states.
const (
	StateIdle      = "idle"
	StateFiltered  = "filtered"
	StatePaginated = "paginated"
	StateExhausted = "exhausted"
)

// Sort orders. Newest and oldest are stable, random is an explicit
// reshuffle on every rebuild.
const (
	SortNewest = "newest"
	SortOldest = "oldest"
	SortRandom = "random"
)

// Page end markers. End is terminal and distinct from empty (the filter
// matched nothing) and from not-found (an unknown id was requested).
const (
	PageMore     = "more"
	PageEnd      = "end"
	PageEmpty    = "empty"
	PageNotFound = "not_found"
)

const DefaultLimit = 30

// Page is one rendered slice of a loop.
type Page struct {
	Posts  []*model.Post `json:"posts"`
	Users  []*model.User `json:"users"`
	Offset int           `json:"offset"`
	Total  int           `json:"total"`
	State  string        `json:"state"`
}

// Loop is one named view over the canonical set with its own filter, sort
// and pagination state. The working list is rebuilt from its source on
// every filter or sort change, never maintained incrementally.
type Loop struct {
	Name          string
	Filters       model.FilterSet
	Sort          string
	Offset        int
	Limit         int
	CutoffEnabled bool

	working []*model.Post
	state   string
	results []*model.Post // search loop only
}

// Engine owns the loops and serves pages off the built archive.
type Engine struct {
	mu    sync.Mutex
	store *archive.Store
	cfg   *config.Config
	loops map[string]*Loop
	rng   *rand.Rand
}

func NewEngine(store *archive.Store, cfg *config.Config) *Engine {
	e := &Engine{
		store: store,
		cfg:   cfg,
		loops: make(map[string]*Loop),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, name := range []string{LoopFeed, LoopMedia, LoopFavorites, LoopAll, LoopSearch} {
		e.loops[name] = &Loop{
			Name:          name,
			Filters:       cfg.Filters.Clone(),
			Sort:          SortNewest,
			Limit:         DefaultLimit,
			CutoffEnabled: cfg.DateCutoffToggle,
			state:         StateIdle,
		}
	}
	return e
}

// Switch rebuilds and returns the first page of a named loop.
func (e *Engine) Switch(name string) (*Page, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	loop, ok := e.loops[name]
	if !ok {
		return nil, errors.Errorf("unknown loop %q", name)
	}
	e.rebuild(loop)
	return e.page(loop), nil
}

// SetFilter changes one filter dimension on a loop and rebuilds it.
func (e *Engine) SetFilter(name, key, value string) (*Page, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	loop, ok := e.loops[name]
	if !ok {
		return nil, errors.Errorf("unknown loop %q", name)
	}
	loop.Filters[key] = value
	e.rebuild(loop)
	return e.page(loop), nil
}

// SetSort changes the sort order on a loop and rebuilds it.
func (e *Engine) SetSort(name, order string) (*Page, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	loop, ok := e.loops[name]
	if !ok {
		return nil, errors.Errorf("unknown loop %q", name)
	}
	loop.Sort = order
	e.rebuild(loop)
	return e.page(loop), nil
}

// SetCutoff toggles the date cutoff on a loop and rebuilds it.
func (e *Engine) SetCutoff(name string, enabled bool) (*Page, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	loop, ok := e.loops[name]
	if !ok {
		return nil, errors.Errorf("unknown loop %q", name)
	}
	loop.CutoffEnabled = enabled
	e.rebuild(loop)
	return e.page(loop), nil
}

// More extends the loop's visible window by one limit and returns the grown
// page. Calling More on an exhausted loop returns the terminal page
// unchanged.
func (e *Engine) More(name string) (*Page, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	loop, ok := e.loops[name]
	if !ok {
		return nil, errors.Errorf("unknown loop %q", name)
	}
	if loop.state == StateIdle {
		e.rebuild(loop)
		return e.page(loop), nil
	}
	if loop.state != StateExhausted {
		loop.Offset += loop.Limit
	}
	return e.page(loop), nil
}

// PageAt serves a loop window at an explicit offset without touching the
// loop's own cursor, for stateless clients that carry the offset themselves.
// The working list is rebuilt on every call so runtime favorite flips are
// always reflected.
func (e *Engine) PageAt(name string, offset int) (*Page, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	loop, ok := e.loops[name]
	if !ok {
		return nil, errors.Errorf("unknown loop %q", name)
	}
	if offset < 0 {
		offset = 0
	}
	saved := loop.Offset
	e.rebuild(loop)
	loop.Offset = offset
	page := e.page(loop)
	loop.Offset = saved
	return page, nil
}

// rebuild recomputes the working list from the loop's source, then applies
// the cutoff conjunct, the filter set and the sort, and resets the cursor.
func (e *Engine) rebuild(loop *Loop) {
	source := e.source(loop)

	working := make([]*model.Post, 0, len(source))
	for _, post := range source {
		if loop.CutoffEnabled && e.cfg.DateCutoffEnabled &&
			!model.BeforeCutoff(post, e.cfg.DateCutoff) {
			continue
		}
		if loop.Name != LoopSearch && !loop.Filters.Match(post) {
			continue
		}
		working = append(working, post)
	}

	switch loop.Sort {
	case SortOldest:
		sort.SliceStable(working, func(i, j int) bool {
			return working[i].CreatedAt.Before(working[j].CreatedAt)
		})
	case SortRandom:
		e.rng.Shuffle(len(working), func(i, j int) {
			working[i], working[j] = working[j], working[i]
		})
	}

	loop.working = working
	loop.Offset = 0
	loop.state = StateFiltered
}

func (e *Engine) source(loop *Loop) []*model.Post {
	switch loop.Name {
	case LoopFeed:
		return e.store.Timeline
	case LoopMedia:
		var out []*model.Post
		for _, post := range e.store.Timeline {
			if len(post.Media) > 0 {
				out = append(out, post)
			}
		}
		return out
	case LoopFavorites:
		return e.store.Favorited()
	case LoopAll:
		return e.store.Order
	case LoopSearch:
		return loop.results
	}
	return nil
}

// page renders the loop's visible window and advances its state machine.
func (e *Engine) page(loop *Loop) *Page {
	total := len(loop.working)
	end := utils.Min(loop.Offset+loop.Limit, total)
	if end == total {
		loop.state = StateExhausted
	} else {
		loop.state = StatePaginated
	}

	posts := loop.working[:end]
	page := &Page{
		Posts:  posts,
		Users:  e.RelevantUsers(posts),
		Offset: loop.Offset,
		Total:  total,
		State:  PageMore,
	}
	if total == 0 {
		page.State = PageEmpty
	} else if loop.state == StateExhausted {
		page.State = PageEnd
	}
	return page
}
