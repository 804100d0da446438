// Package models defines the GORM models persisted by Conjure.
package models

import "time"

// Agent is a reusable persona definition that users can summon into channels.
type Agent struct {
	Identifier  string `gorm:"primaryKey;size:64"`
	CreatorID   string `gorm:"size:32;index"`
	Name        string `gorm:"size:64;not null"`
	Description string `gorm:"type:text"` // system prompt
	AvatarURL   string `gorm:"size:512"`

	PricePerInvocation int64 `gorm:"default:0"`
	PricePerReply      int64 `gorm:"default:5"`

	Public bool `gorm:"default:false;index"`

	// Lifetime counters, mutated under the same read-modify-write
	// discipline as wallets.
	Invocations int64 `gorm:"default:0"`
	Replies     int64 `gorm:"default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
