package view

import (
	"github.com/uplynxed/archivemux/model"
)

// Thread returns the conversation around a post: the conversation root
// first, then the requested post when it is not the root, then the rest of
// the members in capture order. An unknown id degrades to a not-found page,
// never an error.
func (e *Engine) Thread(id string) *Page {
	post, ok := e.store.Post(id)
	if !ok {
		return &Page{State: PageNotFound}
	}

	conversationID := post.ConversationID
	if conversationID == "" {
		conversationID = post.ID
	}
	members := e.store.Conversation(conversationID)

	var root *model.Post
	for _, member := range members {
		if member.ID == conversationID {
			root = member
			break
		}
	}

	ordered := make([]*model.Post, 0, len(members)+1)
	if root != nil {
		ordered = append(ordered, root)
	}
	if root == nil || post.ID != root.ID {
		ordered = append(ordered, post)
	}
	for _, member := range members {
		if member.ID == post.ID {
			continue
		}
		if root != nil && member.ID == root.ID {
			continue
		}
		ordered = append(ordered, member)
	}

	return &Page{
		Posts: ordered,
		Users: e.RelevantUsers(ordered),
		Total: len(ordered),
		State: PageEnd,
	}
}

// Single returns one post on its own, not-found when the id is unknown.
func (e *Engine) Single(id string) *Page {
	post, ok := e.store.Post(id)
	if !ok {
		return &Page{State: PageNotFound}
	}
	posts := []*model.Post{post}
	return &Page{
		Posts: posts,
		Users: e.RelevantUsers(posts),
		Total: 1,
		State: PageEnd,
	}
}
