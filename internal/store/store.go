// Package store provides persistence operations for agents and instances.
package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davenport-labs/conjure/internal/models"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("store: not found")

// CreateAgentOpts holds parameters for registering a new agent.
type CreateAgentOpts struct {
	CreatorID          string
	Name               string
	Description        string
	AvatarURL          string
	PricePerInvocation int64
	PricePerReply      int64
	Public             bool
}

// MakeIdentifier derives a unique agent identifier from its name.
func MakeIdentifier(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '-'
		default:
			return -1
		}
	}, slug)
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "agent"
	}
	return slug + "-" + uuid.NewString()[:8]
}

// CreateAgent registers a new agent definition.
func CreateAgent(db *gorm.DB, opts CreateAgentOpts) (*models.Agent, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("store: agent name is required")
	}
	if opts.Description == "" {
		return nil, fmt.Errorf("store: agent description is required")
	}
	if opts.PricePerReply <= 0 {
		opts.PricePerReply = 5
	}

	agent := models.Agent{
		Identifier:         MakeIdentifier(opts.Name),
		CreatorID:          opts.CreatorID,
		Name:               opts.Name,
		Description:        opts.Description,
		AvatarURL:          opts.AvatarURL,
		PricePerInvocation: opts.PricePerInvocation,
		PricePerReply:      opts.PricePerReply,
		Public:             opts.Public,
	}
	if err := db.Create(&agent).Error; err != nil {
		return nil, fmt.Errorf("store: create agent: %w", err)
	}
	return &agent, nil
}

// GetAgent fetches an agent by identifier.
func GetAgent(db *gorm.DB, identifier string) (*models.Agent, error) {
	var agent models.Agent
	if err := db.Where("identifier = ?", identifier).First(&agent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: agent %s", ErrNotFound, identifier)
		}
		return nil, fmt.Errorf("store: get agent %s: %w", identifier, err)
	}
	return &agent, nil
}

// ListPublicAgents returns every publicly summonable agent.
func ListPublicAgents(db *gorm.DB) ([]models.Agent, error) {
	var agents []models.Agent
	if err := db.Where("public = ?", true).Order("identifier").Find(&agents).Error; err != nil {
		return nil, fmt.Errorf("store: list public agents: %w", err)
	}
	return agents, nil
}

// ListAgentsByCreator returns every agent registered by creatorID.
func ListAgentsByCreator(db *gorm.DB, creatorID string) ([]models.Agent, error) {
	var agents []models.Agent
	if err := db.Where("creator_id = ?", creatorID).Order("identifier").Find(&agents).Error; err != nil {
		return nil, fmt.Errorf("store: list agents for %s: %w", creatorID, err)
	}
	return agents, nil
}

// BumpAgentStats adds to the agent's lifetime counters.
func BumpAgentStats(db *gorm.DB, identifier string, invocations, replies int64) error {
	err := db.Model(&models.Agent{}).
		Where("identifier = ?", identifier).
		Updates(map[string]any{
			"invocations": gorm.Expr("invocations + ?", invocations),
			"replies":     gorm.Expr("replies + ?", replies),
		}).Error
	if err != nil {
		return fmt.Errorf("store: bump stats for agent %s: %w", identifier, err)
	}
	return nil
}

// CreateInstanceOpts holds parameters for persisting a summoned instance.
type CreateInstanceOpts struct {
	ChannelID  string
	GuildID    string
	SummonerID string

	Agent     *models.Agent
	BrainKind string

	PayerKind string
	PayerID   string

	WebhookID    string
	WebhookToken string
}

// CreateInstance persists a freshly summoned instance snapshotting the
// agent's persona and pricing.
func CreateInstance(db *gorm.DB, opts CreateInstanceOpts) (*models.Instance, error) {
	if opts.Agent == nil {
		return nil, fmt.Errorf("store: agent is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("store: channel ID is required")
	}

	now := time.Now().Unix()
	inst := models.Instance{
		ID:         uuid.NewString(),
		ChannelID:  opts.ChannelID,
		GuildID:    opts.GuildID,
		SummonerID: opts.SummonerID,

		AgentIdentifier:  opts.Agent.Identifier,
		AgentName:        opts.Agent.Name,
		AgentDescription: opts.Agent.Description,
		AgentAvatarURL:   opts.Agent.AvatarURL,

		BrainKind: opts.BrainKind,

		PricePerInvocation: opts.Agent.PricePerInvocation,
		PricePerReply:      opts.Agent.PricePerReply,

		PayerKind: opts.PayerKind,
		PayerID:   opts.PayerID,

		WebhookID:    opts.WebhookID,
		WebhookToken: opts.WebhookToken,

		LastReceivedAt: now,
		LastSentAt:     now,
		Active:         true,
	}
	if err := db.Create(&inst).Error; err != nil {
		return nil, fmt.Errorf("store: create instance: %w", err)
	}
	return &inst, nil
}

// GetInstance fetches an instance by ID.
func GetInstance(db *gorm.DB, id string) (*models.Instance, error) {
	var inst models.Instance
	if err := db.Where("id = ?", id).First(&inst).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: instance %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("store: get instance %s: %w", id, err)
	}
	return &inst, nil
}

// SaveInstance writes back a mutated instance. Active is recomputed from
// the exit marker on every save so the two can never disagree.
func SaveInstance(db *gorm.DB, inst *models.Instance) error {
	inst.Active = inst.ExitReason == nil
	if err := db.Save(inst).Error; err != nil {
		return fmt.Errorf("store: save instance %s: %w", inst.ID, err)
	}
	return nil
}

// ActiveInstances returns every instance that has not terminated.
func ActiveInstances(db *gorm.DB) ([]models.Instance, error) {
	var instances []models.Instance
	if err := db.Where("active = ?", true).Find(&instances).Error; err != nil {
		return nil, fmt.Errorf("store: list active instances: %w", err)
	}
	return instances, nil
}

// ActiveInstancesInChannel returns the live instances bound to a channel.
func ActiveInstancesInChannel(db *gorm.DB, channelID string) ([]models.Instance, error) {
	var instances []models.Instance
	if err := db.Where("active = ? AND channel_id = ?", true, channelID).Find(&instances).Error; err != nil {
		return nil, fmt.Errorf("store: list instances in channel %s: %w", channelID, err)
	}
	return instances, nil
}

// TerminatedInstances returns instances that exited but are still persisted,
// awaiting purge.
func TerminatedInstances(db *gorm.DB) ([]models.Instance, error) {
	var instances []models.Instance
	if err := db.Where("active = ?", false).Find(&instances).Error; err != nil {
		return nil, fmt.Errorf("store: list terminated instances: %w", err)
	}
	return instances, nil
}

// DeleteInstance removes an instance row for good.
func DeleteInstance(db *gorm.DB, id string) error {
	if err := db.Where("id = ?", id).Delete(&models.Instance{}).Error; err != nil {
		return fmt.Errorf("store: delete instance %s: %w", id, err)
	}
	return nil
}
