package instance

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/davenport-labs/conjure/internal/brain"
	"github.com/davenport-labs/conjure/internal/credit"
	"github.com/davenport-labs/conjure/internal/models"
	"github.com/davenport-labs/conjure/internal/store"
	"github.com/davenport-labs/conjure/internal/telegraph"
)

// Tick runs one reply sweep over every live instance. Each instance is
// handled independently; a failure on one never blocks the rest.
func (e *Engine) Tick(ctx context.Context, now time.Time) error {
	instances, err := store.ActiveInstances(e.db)
	if err != nil {
		return err
	}
	for i := range instances {
		if err := e.tickInstance(ctx, &instances[i], now); err != nil {
			log.Printf("instance: tick %s: %v", instances[i].ID, err)
		}
	}
	return nil
}

// tickInstance decides whether one instance should reply now, and replies.
func (e *Engine) tickInstance(ctx context.Context, inst *models.Instance, now time.Time) error {
	if inst.Terminated() || inst.AwaitingNewMessages {
		return nil
	}

	history, err := inst.History()
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return nil
	}

	// Debounce: stay quiet while the conversation is still moving and
	// honor the post-reply cooldown.
	unixNow := now.Unix()
	if unixNow-inst.LastReceivedAt < int64(e.cooldown.Seconds()) {
		return nil
	}
	if unixNow-inst.LastSentAt < int64(e.cooldown.Seconds()) {
		return nil
	}

	// The guard goes up before the model call: whatever happens next, this
	// instance stays silent until a new message arrives.
	inst.AwaitingNewMessages = true
	if err := store.SaveInstance(e.db, inst); err != nil {
		return err
	}

	kind, err := brain.ParseKind(inst.BrainKind)
	if err != nil {
		inst.Exit(ExitReasonErrors)
		return store.SaveInstance(e.db, inst)
	}
	b, err := e.newBrain(kind)
	if err != nil {
		return err
	}

	params := b.DefaultParams()
	params.SystemPrompt = inst.AgentDescription

	reply, err := b.Chat(ctx, params, chatMessages(history))
	if err != nil {
		inst.ErrorCount++
		if inst.ErrorCount >= e.maxErrors {
			inst.Exit(ExitReasonErrors)
		}
		if saveErr := store.SaveInstance(e.db, inst); saveErr != nil {
			return saveErr
		}
		return err
	}

	switch reply.Content {
	case "", brain.AwaitToken:
		// An awaiting agent stays eligible: the guard comes back down so
		// the next sweep re-evaluates without waiting for a new message.
		inst.AwaitingNewMessages = false
		inst.ErrorCount = 0
		return store.SaveInstance(e.db, inst)
	case brain.ExitToken:
		inst.Exit(ExitReasonAgentLeft)
		return store.SaveInstance(e.db, inst)
	}

	price := inst.PricePerReply + kind.ExtraPricePerReply()
	if history[len(history)-1].ImageURL != "" {
		price += e.pricing.ImageSurcharge
	}
	settlement, err := credit.Settle(e.db, credit.Method{Kind: inst.PayerKind, ID: inst.PayerID}, price)
	if err != nil {
		return err
	}
	if settlement.Insufficient {
		inst.Exit(ExitReasonInsufficient)
		return store.SaveInstance(e.db, inst)
	}
	e.rewardCreator(inst, price)

	persona := &telegraph.Persona{ID: inst.WebhookID, Token: inst.WebhookToken}
	for _, chunk := range telegraph.SplitMessage(reply.Content) {
		if err := e.adapter.PersonaSend(ctx, persona, inst.AgentName, inst.AgentAvatarURL, chunk); err != nil {
			inst.ErrorCount++
			if inst.ErrorCount >= e.maxErrors {
				inst.Exit(ExitReasonErrors)
			}
			if saveErr := store.SaveInstance(e.db, inst); saveErr != nil {
				return saveErr
			}
			return err
		}
	}

	history = append(history, models.InstanceMessage{Content: reply.Content})
	if len(history) > e.historyLimit {
		history = history[len(history)-e.historyLimit:]
	}
	if err := inst.SetHistory(history); err != nil {
		return err
	}

	inst.ErrorCount = 0
	inst.Introduced = true
	inst.LastSentAt = now.Unix() + sentGraceSeconds
	if err := store.SaveInstance(e.db, inst); err != nil {
		return err
	}
	if err := store.BumpAgentStats(e.db, inst.AgentIdentifier, 0, 1); err != nil {
		log.Printf("instance: bump replies for %s: %v", inst.AgentIdentifier, err)
	}
	return nil
}

// rewardCreator pays the agent creator their share of a charge. Best
// effort: the creator or their agent may be gone.
func (e *Engine) rewardCreator(inst *models.Instance, amount int64) {
	agent, err := store.GetAgent(e.db, inst.AgentIdentifier)
	if err != nil {
		return
	}
	if err := credit.RewardCreator(e.db, agent.CreatorID, amount, e.pricing.CreatorShare); err != nil {
		log.Printf("instance: reward creator of %s: %v", inst.AgentIdentifier, err)
	}
}

// chatMessages converts stored history into the neutral chat form.
func chatMessages(history []models.InstanceMessage) []brain.ChatMessage {
	messages := make([]brain.ChatMessage, 0, len(history))
	for _, m := range history {
		role := brain.RoleAssistant
		if m.FromUser {
			role = brain.RoleUser
		}
		messages = append(messages, brain.ChatMessage{
			Role:     role,
			Content:  m.Content,
			ImageURL: m.ImageURL,
		})
	}
	return messages
}

// ReapInactive terminates instances that have heard and said nothing for
// the inactivity window.
func (e *Engine) ReapInactive(ctx context.Context, now time.Time) error {
	instances, err := store.ActiveInstances(e.db)
	if err != nil {
		return err
	}

	cutoff := now.Add(-e.inactivity).Unix()
	for i := range instances {
		inst := &instances[i]
		lastActivity := inst.LastReceivedAt
		if inst.LastSentAt > lastActivity {
			lastActivity = inst.LastSentAt
		}
		if lastActivity >= cutoff {
			continue
		}
		inst.Exit(ExitReasonInactivity)
		if err := store.SaveInstance(e.db, inst); err != nil {
			log.Printf("instance: reap %s: %v", inst.ID, err)
		}
	}
	return nil
}

// PurgeTerminated tears down every terminated instance: channel
// notification, persona deletion, then the row itself. Notification and
// persona teardown are best effort; the row always goes.
func (e *Engine) PurgeTerminated(ctx context.Context) error {
	instances, err := store.TerminatedInstances(e.db)
	if err != nil {
		return err
	}

	for i := range instances {
		inst := &instances[i]

		reason := "unknown"
		if inst.ExitReason != nil {
			reason = *inst.ExitReason
		}
		embed := &telegraph.Embed{
			Title: fmt.Sprintf("%s has left the channel", inst.AgentName),
			Body:  fmt.Sprintf("Reason: %s.", reason),
			Color: telegraph.ColorWarning,
		}
		if err := e.adapter.Notify(ctx, inst.ChannelID, embed); err != nil {
			log.Printf("instance: purge notify for %s: %v", inst.ID, err)
		}

		persona := &telegraph.Persona{ID: inst.WebhookID, Token: inst.WebhookToken}
		if err := e.adapter.DeletePersona(ctx, persona); err != nil {
			log.Printf("instance: delete persona for %s: %v", inst.ID, err)
		}

		if err := store.DeleteInstance(e.db, inst.ID); err != nil {
			log.Printf("instance: purge %s: %v", inst.ID, err)
		}
	}
	return nil
}
