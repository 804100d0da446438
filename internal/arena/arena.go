// Package arena runs turn-based battles between two user-piloted
// characters, refereed by a model backend.
package arena

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/davenport-labs/conjure/internal/brain"
	"github.com/davenport-labs/conjure/internal/config"
	"github.com/davenport-labs/conjure/internal/credit"
	"github.com/davenport-labs/conjure/internal/telegraph"
)

// defaultAction substitutes for a fighter who stays silent past the input
// timeout.
const defaultAction = "Does nothing"

// PaymentMode selects who pays for the battle.
type PaymentMode int

const (
	// SinglePayer puts every charge on one payment method.
	SinglePayer PaymentMode = iota
	// SplitEvenly halves every charge across both fighters.
	SplitEvenly
)

// Fighter is one battle participant.
type Fighter struct {
	UserID      string
	DisplayName string
	Character   brain.Character
	Payment     credit.Method
}

// ErrBattleOver is returned by Tick once a winner has been declared or the
// session ended.
var ErrBattleOver = errors.New("arena: battle is over")

// Controller drives one battle. It is single-goroutine: Start, Tick and Run
// must not be called concurrently.
type Controller struct {
	db        *gorm.DB
	b         brain.ArenaBrain
	collector telegraph.Collector
	notifier  telegraph.Notifier

	channelID string
	fighters  [2]Fighter
	mode      PaymentMode
	payer     credit.Method // single-payer mode only

	priceStart   int64
	priceAction  int64
	inputTimeout time.Duration
	turnWindow   int
	maxActionLen int

	scenario  string
	turnIndex int
	turnLog   []brain.TurnEvent
	winner    string
	ended     bool
	endReason string

	luck func() int // injectable for tests
}

// Opts holds parameters for creating a battle Controller.
type Opts struct {
	DB        *gorm.DB
	Brain     brain.ArenaBrain
	Collector telegraph.Collector
	Notifier  telegraph.Notifier

	ChannelID string
	Fighters  [2]Fighter
	Mode      PaymentMode
	// Payer receives every charge in single-payer mode; ignored otherwise.
	Payer credit.Method
	// Scenario is optional; when empty the brain invents one at Start.
	Scenario string

	Config config.ArenaConfig
}

// New creates a battle Controller.
func New(opts Opts) (*Controller, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("arena: db is required")
	}
	if opts.Brain == nil {
		return nil, fmt.Errorf("arena: brain is required")
	}
	if opts.Collector == nil || opts.Notifier == nil {
		return nil, fmt.Errorf("arena: collector and notifier are required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("arena: channel ID is required")
	}
	for i, f := range opts.Fighters {
		if f.UserID == "" || f.Character.Name == "" {
			return nil, fmt.Errorf("arena: fighter %d is incomplete", i)
		}
	}
	if opts.Mode == SinglePayer && opts.Payer.ID == "" {
		return nil, fmt.Errorf("arena: single-payer mode needs a payer")
	}

	cfg := opts.Config
	if cfg.PricePerArena <= 0 {
		cfg.PricePerArena = 25
	}
	if cfg.PricePerAction <= 0 {
		cfg.PricePerAction = 10
	}
	if cfg.InputTimeoutSecs <= 0 {
		cfg.InputTimeoutSecs = 120
	}
	if cfg.TurnWindow <= 0 {
		cfg.TurnWindow = 6
	}
	if cfg.MaxActionLength <= 0 {
		cfg.MaxActionLength = 128
	}

	return &Controller{
		db:           opts.DB,
		b:            opts.Brain,
		collector:    opts.Collector,
		notifier:     opts.Notifier,
		channelID:    opts.ChannelID,
		fighters:     opts.Fighters,
		mode:         opts.Mode,
		payer:        opts.Payer,
		scenario:     opts.Scenario,
		priceStart:   cfg.PricePerArena,
		priceAction:  cfg.PricePerAction,
		inputTimeout: time.Duration(cfg.InputTimeoutSecs) * time.Second,
		turnWindow:   cfg.TurnWindow,
		maxActionLen: cfg.MaxActionLength,
		luck:         func() int { return rand.IntN(101) },
	}, nil
}

// Winner returns the declared winner's character name, if any.
func (c *Controller) Winner() string { return c.winner }

// Ended reports whether the session is over (winner declared or aborted).
func (c *Controller) Ended() bool { return c.ended }

// EndReason describes why an ended session stopped.
func (c *Controller) EndReason() string { return c.endReason }

// Log returns the full turn log.
func (c *Controller) Log() []brain.TurnEvent {
	out := make([]brain.TurnEvent, len(c.turnLog))
	copy(out, c.turnLog)
	return out
}

func (c *Controller) characters() []brain.Character {
	return []brain.Character{c.fighters[0].Character, c.fighters[1].Character}
}

// Start charges the arena price, invents a scenario when none was supplied
// and announces the battle.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.settle(ctx, c.priceStart); err != nil {
		return err
	}
	if c.ended {
		return fmt.Errorf("arena: %s", c.endReason)
	}

	if c.scenario == "" {
		scenario, err := c.b.GenerateScenario(ctx, c.characters())
		if err != nil {
			return fmt.Errorf("arena: generate scenario: %w", err)
		}
		c.scenario = strings.TrimSpace(scenario)
	}

	embed := &telegraph.Embed{
		Title: fmt.Sprintf("%s vs %s", c.fighters[0].Character.Name, c.fighters[1].Character.Name),
		Body:  c.scenario,
		Color: telegraph.ColorInfo,
		Fields: []telegraph.Field{
			{Name: c.fighters[0].Character.Name, Value: telegraph.Truncate(c.fighters[0].Character.Description, 512), Short: true},
			{Name: c.fighters[1].Character.Name, Value: telegraph.Truncate(c.fighters[1].Character.Description, 512), Short: true},
		},
		Footer: fmt.Sprintf("%s moves first", c.fighters[0].Character.Name),
	}
	if err := c.notifier.Notify(ctx, c.channelID, embed); err != nil {
		log.Printf("arena: announce battle: %v", err)
	}
	return nil
}

// Run plays turns until a winner is declared, the session ends or ctx is
// cancelled.
func (c *Controller) Run(ctx context.Context) error {
	for !c.ended {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.Tick(ctx); err != nil {
			if errors.Is(err, ErrBattleOver) {
				break
			}
			return err
		}
	}
	return nil
}

// Tick plays one turn: collect the current fighter's action, referee it,
// narrate the outcome and settle the action price. Once the battle is over
// every further call is a no-op returning ErrBattleOver.
func (c *Controller) Tick(ctx context.Context) error {
	if c.ended {
		return ErrBattleOver
	}

	fighter := c.fighters[c.turnIndex%2]
	action := c.collectAction(ctx, fighter)

	c.turnLog = append(c.turnLog, brain.InputEvent(fighter.Character.Name, action, c.luck()))

	out, err := c.refereeTurn(ctx)
	if err != nil {
		c.ended = true
		c.endReason = "the referee gave up"
		return fmt.Errorf("arena: referee turn: %w", err)
	}
	c.turnLog = append(c.turnLog, brain.OutputEvent(out))

	c.narrate(ctx, out)

	if out.Winner != "" {
		c.winner = out.Winner
		c.ended = true
		c.endReason = fmt.Sprintf("%s won", out.Winner)
		c.announceWinner(ctx)
		return nil
	}

	c.turnIndex++
	if err := c.settle(ctx, c.priceAction); err != nil {
		return err
	}
	if c.ended {
		return ErrBattleOver
	}
	return nil
}

// collectAction waits for the fighter's next message. Timeouts and empty
// messages become the default action; long actions are truncated.
func (c *Controller) collectAction(ctx context.Context, fighter Fighter) string {
	msg, err := c.collector.AwaitMessage(ctx, c.channelID, fighter.UserID, c.inputTimeout)
	if err != nil {
		return defaultAction
	}
	action := strings.TrimSpace(msg.Text)
	if action == "" {
		return defaultAction
	}
	if len(action) > c.maxActionLen {
		action = action[:c.maxActionLen]
	}
	return action
}

// refereeTurn calls the model over the prompt window, retrying exactly once
// with error feedback. A recovered turn leaves no trace of the failure in
// the log.
func (c *Controller) refereeTurn(ctx context.Context) (*brain.BattleOutput, error) {
	params := c.b.DefaultParams()

	out, err := c.b.BattleTurn(ctx, params, c.scenario, c.characters(), c.window())
	if err == nil {
		return out, nil
	}

	snapshot := len(c.turnLog)
	c.turnLog = append(c.turnLog,
		brain.OutputEvent(brain.InvalidBattleOutput("The previous output could not be parsed.")),
		brain.ErrorEvent(telegraph.Truncate(err.Error(), 1800)),
	)

	out, retryErr := c.b.BattleTurn(ctx, params, c.scenario, c.characters(), c.window())
	if retryErr != nil {
		return nil, retryErr
	}
	c.turnLog = c.turnLog[:snapshot]
	return out, nil
}

// window returns the tail of the log the model is prompted with.
func (c *Controller) window() []brain.TurnEvent {
	if len(c.turnLog) <= c.turnWindow {
		return c.turnLog
	}
	return c.turnLog[len(c.turnLog)-c.turnWindow:]
}

// narrate posts the referee's output to the channel.
func (c *Controller) narrate(ctx context.Context, out *brain.BattleOutput) {
	text := out.Message
	if out.Consequences != "" {
		text += "\n\n> " + out.Consequences
	}
	for _, chunk := range telegraph.SplitMessage(text) {
		if err := c.notifier.SendText(ctx, c.channelID, chunk); err != nil {
			log.Printf("arena: narrate: %v", err)
		}
	}
}

// settle charges amount according to the payment mode. An insufficient
// payer ends the session with a channel notice.
func (c *Controller) settle(ctx context.Context, amount int64) error {
	type charge struct {
		method credit.Method
		amount int64
		label  string
	}
	var charges []charge
	switch c.mode {
	case SinglePayer:
		charges = []charge{{method: c.payer, amount: amount, label: "the sponsor"}}
	case SplitEvenly:
		half := amount / 2
		charges = []charge{
			{method: c.fighters[0].Payment, amount: half, label: c.fighters[0].DisplayName},
			{method: c.fighters[1].Payment, amount: amount - half, label: c.fighters[1].DisplayName},
		}
	}

	for _, ch := range charges {
		settlement, err := credit.Settle(c.db, ch.method, ch.amount)
		if err != nil {
			return err
		}
		if settlement.Insufficient {
			c.ended = true
			c.endReason = fmt.Sprintf("%s ran out of credits", ch.label)
			notice := fmt.Sprintf("The battle is over: %s.", c.endReason)
			if err := c.notifier.SendText(ctx, c.channelID, notice); err != nil {
				log.Printf("arena: insufficiency notice: %v", err)
			}
			return nil
		}
	}
	return nil
}

// announceWinner posts the final embed with the full transcript.
func (c *Controller) announceWinner(ctx context.Context) {
	if err := c.notifier.Notify(ctx, c.channelID, c.TranscriptEmbed()); err != nil {
		log.Printf("arena: announce winner: %v", err)
	}
}

// TranscriptEmbed renders the whole battle (not just the prompt window) as
// an embed.
func (c *Controller) TranscriptEmbed() *telegraph.Embed {
	var sb strings.Builder
	for _, event := range c.turnLog {
		switch {
		case event.Input != nil:
			fmt.Fprintf(&sb, "**%s** (luck %d): %s\n", event.Input.CharacterName, event.Input.Luck, event.Input.Action)
		case event.Output != nil:
			fmt.Fprintf(&sb, "%s\n\n", event.Output.Message)
		}
	}

	title := fmt.Sprintf("%s vs %s", c.fighters[0].Character.Name, c.fighters[1].Character.Name)
	embed := &telegraph.Embed{
		Title: title,
		Body:  telegraph.Truncate(strings.TrimSpace(sb.String()), 4000),
		Color: telegraph.ColorSuccess,
	}
	if c.winner != "" {
		embed.Footer = fmt.Sprintf("Winner: %s", c.winner)
	}
	return embed
}
