package domain

import "time"

// UserProfile is the single profile document keyed by identity.
type UserProfile struct {
	OpenID    string    `json:"openId"`
	Nickname  string    `json:"nickname,omitempty"`
	AvatarRef string    `json:"avatarRef,omitempty"`
	Language  string    `json:"language,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
