package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Payer kinds for Instance.PayerKind.
const (
	PayerUser  = "user"
	PayerGuild = "guild"
)

// InstanceMessage is one entry in an instance's conversation history.
type InstanceMessage struct {
	FromUser bool   `json:"from_user"`
	Content  string `json:"content"`
	ImageURL string `json:"image_url,omitempty"`
}

// Instance is one running persona bound to a channel. History is stored as a
// JSON column; use History/SetHistory rather than touching HistoryJSON.
type Instance struct {
	ID         string `gorm:"primaryKey;size:36"`
	ChannelID  string `gorm:"size:32;index"`
	GuildID    string `gorm:"size:32"`
	SummonerID string `gorm:"size:32"`

	AgentIdentifier  string `gorm:"size:64;index"`
	AgentName        string `gorm:"size:64"`
	AgentDescription string `gorm:"type:text"`
	AgentAvatarURL   string `gorm:"size:512"`

	// BrainKind is chosen at creation and immutable thereafter.
	BrainKind string `gorm:"size:16"`

	PricePerInvocation int64
	PricePerReply      int64

	PayerKind string `gorm:"size:8"`
	PayerID   string `gorm:"size:32"`

	WebhookID    string `gorm:"size:32"`
	WebhookToken string `gorm:"size:128"`

	HistoryJSON string `gorm:"column:history;type:json"`

	LastReceivedAt int64 // unix seconds
	LastSentAt     int64 // unix seconds

	AwaitingNewMessages bool
	ErrorCount          int
	Introduced          bool

	ExitReason *string `gorm:"size:256"`
	// Active mirrors ExitReason == nil. It is recomputed on every save by
	// the store and must never be set independently.
	Active bool `gorm:"index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminated reports whether an exit reason has been recorded. A terminated
// instance must never be charged or replied to again.
func (i *Instance) Terminated() bool {
	return i.ExitReason != nil
}

// Exit records reason as the terminal marker. The first reason wins.
func (i *Instance) Exit(reason string) {
	if i.ExitReason == nil {
		i.ExitReason = &reason
	}
}

// History decodes the stored conversation history. An empty column decodes
// to an empty slice.
func (i *Instance) History() ([]InstanceMessage, error) {
	if i.HistoryJSON == "" {
		return nil, nil
	}
	var history []InstanceMessage
	if err := json.Unmarshal([]byte(i.HistoryJSON), &history); err != nil {
		return nil, fmt.Errorf("models: decode history for instance %s: %w", i.ID, err)
	}
	return history, nil
}

// SetHistory encodes and stores the conversation history.
func (i *Instance) SetHistory(history []InstanceMessage) error {
	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("models: encode history for instance %s: %w", i.ID, err)
	}
	i.HistoryJSON = string(data)
	return nil
}
