package model

import (
	"time"
)

/*

User is an author referenced by archived posts.

ID: primary key, the upstream string id
FormerHandles: handle-migration history supplied by the archive config, used
		to resolve historical mentions against the current handle.

Users are created once from the snapshot's user table and immutable after
load.

*/

type User struct {
	ID            string    `json:"id"`
	Handle        string    `json:"handle"`
	Name          string    `json:"name"`
	Bio           string    `json:"bio,omitempty"`
	Location      string    `json:"location,omitempty"`
	AvatarURL     string    `json:"avatar_url,omitempty"`
	BannerURL     string    `json:"banner_url,omitempty"`
	Followers     int       `json:"followers"`
	Following     int       `json:"following"`
	StatusesCount int       `json:"statuses_count"`
	JoinedAt      time.Time `json:"joined_at,omitempty"`
	FormerHandles []string  `json:"former_handles,omitempty"`
}
