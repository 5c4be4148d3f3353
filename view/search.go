package view

import (
	"regexp"
	"strings"

	"github.com/uplynxed/archivemux/model"
)

// Terms are whitespace-separated except for double-quoted substrings, which
// stay intact with the quotes stripped.
var termPattern = regexp.MustCompile(`"[^"]+"|\S+`)

// Search rebuilds the search loop from a free-text query and returns its
// first page. Matching is OR across terms: a post stays in when any term is
// a case-insensitive substring of its text, its quoted text, or its
// author's display name or handle. The whole canonical set is scanned, not
// just the timeline, so replies by other participants of a captured thread
// are findable. Results keep first-seen order.
func (e *Engine) Search(query string) *Page {
	e.mu.Lock()
	defer e.mu.Unlock()

	loop := e.loops[LoopSearch]
	loop.results = e.searchPosts(query)
	e.rebuild(loop)
	return e.page(loop)
}

func (e *Engine) searchPosts(query string) []*model.Post {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	var out []*model.Post
	seen := make(map[string]bool)
	for _, post := range e.store.Order {
		if seen[post.ID] {
			continue
		}
		if e.matches(post, terms) {
			out = append(out, post)
			seen[post.ID] = true
		}
	}
	return out
}

func (e *Engine) matches(post *model.Post, terms []string) bool {
	haystacks := []string{strings.ToLower(post.Text)}
	if post.Quoted != nil {
		haystacks = append(haystacks, strings.ToLower(post.Quoted.Text))
	}
	if author, ok := e.store.Users[post.AuthorID]; ok {
		haystacks = append(haystacks,
			strings.ToLower(author.Name), strings.ToLower(author.Handle))
	}

	for _, term := range terms {
		for _, haystack := range haystacks {
			if strings.Contains(haystack, term) {
				return true
			}
		}
	}
	return false
}

func tokenize(query string) []string {
	var terms []string
	for _, raw := range termPattern.FindAllString(query, -1) {
		term := strings.ToLower(strings.Trim(raw, `"`))
		if term != "" {
			terms = append(terms, term)
		}
	}
	return terms
}
