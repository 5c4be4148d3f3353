package view

import (
	"github.com/uplynxed/archivemux/model"
)

// RelevantUsers collects every user a post slice renders, in display-order
// first-seen order: the author, the resharing account, the quoted author,
// then mentioned users that exist in the user table.
func (e *Engine) RelevantUsers(posts []*model.Post) []*model.User {
	var out []*model.User
	seen := make(map[string]bool)

	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		user, ok := e.store.Users[id]
		if !ok {
			return
		}
		seen[id] = true
		out = append(out, user)
	}

	for _, post := range posts {
		add(post.AuthorID)
		add(post.ResharingAuthorID)
		if post.Quoted != nil {
			add(post.Quoted.AuthorID)
		}
		for _, mention := range post.Mentions {
			add(mention.UserID)
		}
	}
	return out
}
