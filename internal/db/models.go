package db

import (
	"time"

	"gorm.io/datatypes"
)

type Room struct {
	ID         uint      `gorm:"primaryKey"`
	Code       string    `gorm:"size:8;uniqueIndex;not null"`
	Name       string    `gorm:"size:64;not null"`
	HostID     string    `gorm:"size:64;not null"`
	MaxPlayers int       `gorm:"not null;default:0"`
	IsPrivate  bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
	Events     []Event
}

type Event struct {
	ID        uint           `gorm:"primaryKey"`
	RoomID    uint           `gorm:"index;not null"`
	Type      string         `gorm:"size:64;not null"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null"`
}
