package models

import (
	"time"
)

// ShareLike is one like on one photo. The composite primary key keeps
// it unique per liker; counts are always recomputed with a count
// query, never incremented.
type ShareLike struct {
	Key           string    `json:"key" gorm:"primaryKey;type:text"` // owner#plantId
	ImageKey      string    `json:"imageKey" gorm:"primaryKey;type:text"`
	LikerOpenID   string    `json:"likerOpenId" gorm:"primaryKey;type:text"`
	LikerNickname string    `json:"likerNickname" gorm:"type:text"`
	CDate         time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

// ShareComment is one append-only comment on one photo.
type ShareComment struct {
	ID             int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Key            string    `json:"key" gorm:"type:text;index:idx_comment_thread"`
	ImageRef       string    `json:"imageRef" gorm:"type:text;index:idx_comment_thread"`
	AuthorOpenID   string    `json:"authorOpenId" gorm:"type:text"`
	AuthorNickname string    `json:"authorNickname" gorm:"type:text"`
	Content        string    `json:"content" gorm:"type:text"`
	CDate          time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

// Notification is one feed entry for an owner.
type Notification struct {
	ID            int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	OwnerOpenID   string    `json:"ownerOpenId" gorm:"type:text;index"`
	Type          string    `json:"type" gorm:"type:text"`
	PlantID       int64     `json:"plantId"`
	ActorOpenID   string    `json:"actorOpenId" gorm:"type:text"`
	ActorNickname string    `json:"actorNickname" gorm:"type:text"`
	Read          bool      `json:"read" gorm:"index;not null;default:false"`
	CDate         time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}
