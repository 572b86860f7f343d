package models

import (
	"time"
)

// PlantDocument holds one owner's entire plant list as a single
// document value. All synchronization operates at this granularity;
// writers overwrite the whole value, last writer wins.
type PlantDocument struct {
	Owner    string    `json:"owner" gorm:"primaryKey;type:text"`
	Value    string    `json:"value" gorm:"type:jsonb"`
	Revision int64     `json:"revision" gorm:"not null;default:0"`
	CDate    time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
	MDate    time.Time `json:"mdate" gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
}

// UserProfile is the single profile document keyed by identity.
type UserProfile struct {
	OpenID    string    `json:"openId" gorm:"primaryKey;type:text"`
	Nickname  string    `json:"nickname" gorm:"type:text"`
	AvatarRef string    `json:"avatarRef" gorm:"type:text"`
	Language  string    `json:"language" gorm:"type:text"`
	CDate     time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
	MDate     time.Time `json:"mdate" gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
}

// LocalEntry is one on-device key/value document (sqlite store).
type LocalEntry struct {
	Key   string    `json:"key" gorm:"primaryKey;type:text"`
	Value string    `json:"value" gorm:"type:text"`
	MDate time.Time `json:"mdate" gorm:"autoUpdateTime"`
}
