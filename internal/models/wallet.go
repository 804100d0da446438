package models

import "time"

// UserWallet holds a user's credit balance.
type UserWallet struct {
	UserID    string `gorm:"primaryKey;size:32"`
	Credits   int64  `gorm:"default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AddCredits increases the balance.
func (w *UserWallet) AddCredits(amount int64) {
	w.Credits += amount
}

// RemoveCredits decreases the balance, floored at zero.
func (w *UserWallet) RemoveCredits(amount int64) {
	w.Credits -= amount
	if w.Credits < 0 {
		w.Credits = 0
	}
}

// GuildWallet holds a guild's shared public credit balance, spendable by any
// member who summons an agent with the guild payment method.
type GuildWallet struct {
	GuildID       string `gorm:"primaryKey;size:32"`
	PublicCredits int64  `gorm:"default:0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AddPublicCredits increases the public balance.
func (w *GuildWallet) AddPublicCredits(amount int64) {
	w.PublicCredits += amount
}

// RemovePublicCredits decreases the public balance, floored at zero.
func (w *GuildWallet) RemovePublicCredits(amount int64) {
	w.PublicCredits -= amount
	if w.PublicCredits < 0 {
		w.PublicCredits = 0
	}
}
