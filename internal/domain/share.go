package domain

import "time"

// FollowCard is one entry of the viewer's local follow list.
type FollowCard struct {
	Key            string    `json:"key"` // owner#plantId
	OwnerOpenID    string    `json:"ownerOpenId"`
	PlantID        int64     `json:"plantId"`
	Name           string    `json:"name,omitempty"`
	OwnerNickname  string    `json:"ownerNickname,omitempty"`
	Thumb          string    `json:"thumb,omitempty"`
	LastStatus     string    `json:"lastStatus,omitempty"`
	FollowedAt     time.Time `json:"followedAt"`
	NotifyOnUpdate bool      `json:"notifyOnUpdate"`
}

// ShareLike is one like on one photo of a shared plant. At most one
// per (key, imageKey, liker).
type ShareLike struct {
	Key           string    `json:"key"` // owner#plantId
	ImageKey      string    `json:"imageKey"`
	LikerOpenID   string    `json:"likerOpenId"`
	LikerNickname string    `json:"likerNickname,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ShareComment is one comment on one photo of a shared plant.
// Append-only, newest-first on read.
type ShareComment struct {
	ID             int64     `json:"id,omitempty"`
	Key            string    `json:"key"` // owner#plantId
	ImageRef       string    `json:"imageRef"`
	AuthorOpenID   string    `json:"authorOpenId"`
	AuthorNickname string    `json:"authorNickname,omitempty"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// MaxCommentLength caps comment content.
const MaxCommentLength = 500

// SharedPlant is the sanitized single-record view served to viewers of
// a shared plant: image references already resolved to display URLs,
// care history summarized into a status line.
type SharedPlant struct {
	OwnerOpenID   string    `json:"ownerOpenId"`
	OwnerNickname string    `json:"ownerNickname,omitempty"`
	PlantID       int64     `json:"plantId"`
	Name          string    `json:"name,omitempty"`
	Images        []string  `json:"images"`
	ImageRefs     []string  `json:"imageRefs"`
	AIResult      *AIResult `json:"aiResult,omitempty"`
	LastStatus    string    `json:"lastStatus,omitempty"`
}
