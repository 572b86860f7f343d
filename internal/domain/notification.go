package domain

import "time"

// Notification types.
const (
	NotificationTypeLike    = "like"
	NotificationTypeComment = "comment"
)

// Notification is one "someone interacted with your content" entry.
// Created by the like/comment write paths, never for self-interactions.
type Notification struct {
	ID            int64     `json:"id"`
	OwnerOpenID   string    `json:"ownerOpenId"`
	Type          string    `json:"type"`
	PlantID       int64     `json:"plantId"`
	ActorOpenID   string    `json:"actorOpenId"`
	ActorNickname string    `json:"actorNickname,omitempty"`
	Time          time.Time `json:"time"`
	Read          bool      `json:"read"`
}

// NotificationStats summarizes an owner's feed.
type NotificationStats struct {
	Total  int64 `json:"total"`
	Unread int64 `json:"unread"`
}
