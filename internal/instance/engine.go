// Package instance runs the lifecycle of summoned agent instances: summon,
// message intake, debounced replies, reaping and purge.
package instance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/davenport-labs/conjure/internal/brain"
	"github.com/davenport-labs/conjure/internal/config"
	"github.com/davenport-labs/conjure/internal/credit"
	"github.com/davenport-labs/conjure/internal/models"
	"github.com/davenport-labs/conjure/internal/store"
	"github.com/davenport-labs/conjure/internal/telegraph"
)

// maxStoredMessageLen caps each history entry so a single flood message
// cannot dominate the prompt.
const maxStoredMessageLen = 1024

// sentGraceSeconds nudges the clock after a reply so the instance does not
// immediately answer its own echo window.
const sentGraceSeconds = 3

// Exit reasons recorded on instances.
const (
	ExitReasonRequested    = "dismissed by user"
	ExitReasonAgentLeft    = "the agent chose to leave"
	ExitReasonErrors       = "too many backend errors"
	ExitReasonInactivity   = "inactivity"
	ExitReasonInsufficient = "insufficient credits"
)

// ErrInsufficientCredits is returned when the payer cannot cover the
// invocation price at summon time.
var ErrInsufficientCredits = errors.New("instance: insufficient credits")

// BrainFactory builds the backend for a stored kind. It exists so tests can
// inject scripted brains.
type BrainFactory func(kind brain.Kind) (brain.ArenaBrain, error)

// Engine owns instance lifecycle operations against one database and
// platform adapter.
type Engine struct {
	db       *gorm.DB
	adapter  telegraph.Adapter
	newBrain BrainFactory

	cooldown     time.Duration
	inactivity   time.Duration
	maxErrors    int
	historyLimit int
	pricing      config.PricingConfig
}

// Opts holds parameters for creating an Engine.
type Opts struct {
	DB       *gorm.DB
	Adapter  telegraph.Adapter
	NewBrain BrainFactory

	Scheduler config.SchedulerConfig
	Pricing   config.PricingConfig
}

// New creates an Engine.
func New(opts Opts) (*Engine, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("instance: db is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("instance: adapter is required")
	}
	if opts.NewBrain == nil {
		return nil, fmt.Errorf("instance: brain factory is required")
	}
	if opts.Scheduler.CooldownSeconds <= 0 {
		opts.Scheduler.CooldownSeconds = 10
	}
	if opts.Scheduler.InactivityMinutes <= 0 {
		opts.Scheduler.InactivityMinutes = 8
	}
	if opts.Scheduler.MaxErrorCount <= 0 {
		opts.Scheduler.MaxErrorCount = 10
	}
	if opts.Scheduler.HistoryLimit <= 0 {
		opts.Scheduler.HistoryLimit = 15
	}

	return &Engine{
		db:           opts.DB,
		adapter:      opts.Adapter,
		newBrain:     opts.NewBrain,
		cooldown:     time.Duration(opts.Scheduler.CooldownSeconds) * time.Second,
		inactivity:   time.Duration(opts.Scheduler.InactivityMinutes) * time.Minute,
		maxErrors:    opts.Scheduler.MaxErrorCount,
		historyLimit: opts.Scheduler.HistoryLimit,
		pricing:      opts.Pricing,
	}, nil
}

// SummonOpts holds parameters for summoning an instance into a channel.
type SummonOpts struct {
	ChannelID       string
	GuildID         string
	SummonerID      string
	SummonerName    string
	AgentIdentifier string
	BrainKind       string
	Payment         credit.Method
}

// Summon creates a live instance of an agent in a channel. Nothing is
// persisted and nothing is charged unless the whole operation succeeds;
// persona provisioning failures surface as telegraph.ErrResourceCreation.
func (e *Engine) Summon(ctx context.Context, opts SummonOpts) (*models.Instance, error) {
	agent, err := store.GetAgent(e.db, opts.AgentIdentifier)
	if err != nil {
		return nil, err
	}
	if !agent.Public && agent.CreatorID != opts.SummonerID {
		return nil, fmt.Errorf("instance: agent %s is private", agent.Identifier)
	}

	kind, err := brain.ParseKind(opts.BrainKind)
	if err != nil {
		return nil, err
	}

	price := agent.PricePerInvocation + e.pricing.PricePerInvocation
	balance, err := credit.Balance(e.db, opts.Payment)
	if err != nil {
		return nil, err
	}
	if balance < price {
		return nil, fmt.Errorf("%w: %d needed, %d available", ErrInsufficientCredits, price, balance)
	}

	persona, err := e.adapter.CreatePersona(ctx, opts.ChannelID, agent.Name)
	if err != nil {
		return nil, err
	}

	inst, err := store.CreateInstance(e.db, store.CreateInstanceOpts{
		ChannelID:    opts.ChannelID,
		GuildID:      opts.GuildID,
		SummonerID:   opts.SummonerID,
		Agent:        agent,
		BrainKind:    string(kind),
		PayerKind:    opts.Payment.Kind,
		PayerID:      opts.Payment.ID,
		WebhookID:    persona.ID,
		WebhookToken: persona.Token,
	})
	if err != nil {
		// Roll the persona back so a failed summon leaves no trace.
		if delErr := e.adapter.DeletePersona(ctx, persona); delErr != nil {
			log.Printf("instance: delete persona after failed summon: %v", delErr)
		}
		return nil, err
	}

	if _, err := credit.Settle(e.db, opts.Payment, price); err != nil {
		log.Printf("instance: settle invocation for %s: %v", inst.ID, err)
	}
	if err := credit.RewardCreator(e.db, agent.CreatorID, price, e.pricing.CreatorShare); err != nil {
		log.Printf("instance: reward creator of %s: %v", agent.Identifier, err)
	}
	if err := store.BumpAgentStats(e.db, agent.Identifier, 1, 0); err != nil {
		log.Printf("instance: bump invocations for %s: %v", agent.Identifier, err)
	}

	// Seed the history so the first sweep produces an introduction.
	summoner := opts.SummonerName
	if summoner == "" {
		summoner = opts.SummonerID
	}
	seed := fmt.Sprintf("[%s summoned you into this channel. Introduce yourself briefly.]", summoner)
	if err := inst.SetHistory([]models.InstanceMessage{{FromUser: true, Content: seed}}); err != nil {
		return nil, err
	}
	if err := store.SaveInstance(e.db, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// Dismiss marks an instance for termination on the summoner's request. The
// purge sweep tears the rest down.
func (e *Engine) Dismiss(ctx context.Context, instanceID string) error {
	inst, err := store.GetInstance(e.db, instanceID)
	if err != nil {
		return err
	}
	if inst.Terminated() {
		return nil
	}
	inst.Exit(ExitReasonRequested)
	return store.SaveInstance(e.db, inst)
}

// HandleInbound records a channel message into every live instance there.
// Consecutive user messages coalesce into one history entry so floods do
// not evict context.
func (e *Engine) HandleInbound(ctx context.Context, msg telegraph.InboundMessage) error {
	instances, err := store.ActiveInstancesInChannel(e.db, msg.ChannelID)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	entry := formatUserMessage(msg)
	for i := range instances {
		inst := &instances[i]
		history, err := inst.History()
		if err != nil {
			log.Printf("instance: history for %s: %v", inst.ID, err)
			continue
		}

		if n := len(history); n > 0 && history[n-1].FromUser {
			last := &history[n-1]
			last.Content = truncateStored(last.Content + "\n" + entry)
			if last.ImageURL == "" {
				last.ImageURL = msg.ImageURL
			}
		} else {
			history = append(history, models.InstanceMessage{
				FromUser: true,
				Content:  truncateStored(entry),
				ImageURL: msg.ImageURL,
			})
		}
		if len(history) > e.historyLimit {
			history = history[len(history)-e.historyLimit:]
		}

		if err := inst.SetHistory(history); err != nil {
			log.Printf("instance: set history for %s: %v", inst.ID, err)
			continue
		}
		inst.AwaitingNewMessages = false
		inst.LastReceivedAt = now
		if err := store.SaveInstance(e.db, inst); err != nil {
			log.Printf("instance: save %s: %v", inst.ID, err)
		}
	}
	return nil
}

// formatUserMessage renders an inbound message the way the model sees it.
func formatUserMessage(msg telegraph.InboundMessage) string {
	return fmt.Sprintf("<%s (@%s)>: %s", msg.DisplayName, msg.UserName, msg.Text)
}

func truncateStored(s string) string {
	if len(s) > maxStoredMessageLen {
		return s[:maxStoredMessageLen]
	}
	return s
}
