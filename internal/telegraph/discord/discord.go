// Package discord implements the telegraph Adapter for Discord using the
// Gateway WebSocket plus channel webhooks for personas.
package discord

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/davenport-labs/conjure/internal/telegraph"
)

const (
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries = 3
	// baseBackoff is the initial backoff duration for rate-limit retries.
	baseBackoff = 2 * time.Second
	// maxBackoff caps the exponential backoff.
	maxBackoff = 2 * time.Minute
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	Open() error
	Close() error
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	WebhookCreate(channelID, name, avatar string, options ...discordgo.RequestOption) (*discordgo.Webhook, error)
	WebhookDelete(webhookID string, options ...discordgo.RequestOption) error
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
	AddHandler(handler interface{}) func()
}

// realSession wraps *discordgo.Session to implement the session interface.
type realSession struct {
	s *discordgo.Session
}

func (r *realSession) Open() error  { return r.s.Open() }
func (r *realSession) Close() error { return r.s.Close() }
func (r *realSession) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return r.s.ChannelMessageSend(channelID, content, options...)
}
func (r *realSession) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return r.s.ChannelMessageSendEmbed(channelID, embed, options...)
}
func (r *realSession) WebhookCreate(channelID, name, avatar string, options ...discordgo.RequestOption) (*discordgo.Webhook, error) {
	return r.s.WebhookCreate(channelID, name, avatar, options...)
}
func (r *realSession) WebhookDelete(webhookID string, options ...discordgo.RequestOption) error {
	return r.s.WebhookDelete(webhookID, options...)
}
func (r *realSession) WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return r.s.WebhookExecute(webhookID, token, wait, data, options...)
}
func (r *realSession) AddHandler(handler interface{}) func() {
	return r.s.AddHandler(handler)
}

// waiter is one pending AwaitMessage call.
type waiter struct {
	channelID string
	userID    string
	ch        chan telegraph.InboundMessage
}

// Adapter implements telegraph.Adapter for Discord.
type Adapter struct {
	sess          session
	botToken      string
	botUserID     string
	mu            sync.Mutex
	connected     bool
	closed        bool
	inbound       chan telegraph.InboundMessage
	waiters       []*waiter
	removeHandler func()
	baseBackoff   time.Duration
	maxBackoff    time.Duration
}

// AdapterOpts holds parameters for creating a Discord Adapter.
type AdapterOpts struct {
	BotToken string
	// For testing: inject a mock session instead of the real Discord API.
	Session session
}

// New creates a Discord Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}

	a := &Adapter{
		botToken:    opts.BotToken,
		inbound:     make(chan telegraph.InboundMessage, 100),
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
	}

	if opts.Session != nil {
		a.sess = opts.Session
	}

	return a, nil
}

// Connect establishes the Discord Gateway WebSocket connection.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("discord: adapter already closed")
	}
	if a.connected {
		return nil
	}

	if a.sess == nil {
		dg, err := discordgo.New("Bot " + a.botToken)
		if err != nil {
			return fmt.Errorf("discord: create session: %w", err)
		}
		dg.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent
		a.sess = &realSession{s: dg}
	}

	a.sess.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		a.mu.Lock()
		a.botUserID = r.User.ID
		a.mu.Unlock()
		log.Printf("discord: connected as %s (ID: %s)", r.User.Username, r.User.ID)
	})

	// discordgo reconnects on its own; log transitions for observability.
	a.sess.AddHandler(func(_ *discordgo.Session, d *discordgo.Disconnect) {
		log.Printf("discord: gateway disconnected, discordgo will auto-reconnect")
	})
	a.sess.AddHandler(func(_ *discordgo.Session, r *discordgo.Resumed) {
		log.Printf("discord: gateway session resumed")
	})

	if err := a.sess.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}

	a.connected = true
	return nil
}

// Listen returns a channel of inbound messages from Discord. Must be called
// after Connect.
func (a *Adapter) Listen(ctx context.Context) (<-chan telegraph.InboundMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return nil, fmt.Errorf("discord: not connected")
	}
	if a.removeHandler == nil {
		a.removeHandler = a.sess.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
			a.handleMessage(m)
		})
	}
	return a.inbound, nil
}

// SendText posts a plain text message under the bot's own identity.
func (a *Adapter) SendText(ctx context.Context, channelID, text string) error {
	if err := a.requireConnected(); err != nil {
		return err
	}
	err := a.retryOnRateLimit(ctx, func() error {
		_, sendErr := a.sess.ChannelMessageSend(channelID, text)
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	return nil
}

// Notify posts an embed under the bot's own identity.
func (a *Adapter) Notify(ctx context.Context, channelID string, embed *telegraph.Embed) error {
	if err := a.requireConnected(); err != nil {
		return err
	}
	err := a.retryOnRateLimit(ctx, func() error {
		_, sendErr := a.sess.ChannelMessageSendEmbed(channelID, embedToDiscord(embed))
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("discord: send embed: %w", err)
	}
	return nil
}

// CreatePersona provisions a channel webhook the instance will speak
// through.
func (a *Adapter) CreatePersona(ctx context.Context, channelID, name string) (*telegraph.Persona, error) {
	if err := a.requireConnected(); err != nil {
		return nil, err
	}

	var hook *discordgo.Webhook
	err := a.retryOnRateLimit(ctx, func() error {
		var apiErr error
		hook, apiErr = a.sess.WebhookCreate(channelID, name, "")
		return apiErr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create webhook in channel %s: %v", telegraph.ErrResourceCreation, channelID, err)
	}
	return &telegraph.Persona{ID: hook.ID, Token: hook.Token}, nil
}

// DeletePersona removes the instance's webhook. An already-deleted webhook
// is treated as success.
func (a *Adapter) DeletePersona(ctx context.Context, persona *telegraph.Persona) error {
	if err := a.requireConnected(); err != nil {
		return err
	}
	if persona == nil || persona.ID == "" {
		return nil
	}

	err := a.retryOnRateLimit(ctx, func() error {
		return a.sess.WebhookDelete(persona.ID)
	})
	if err != nil {
		if restErr, ok := err.(*discordgo.RESTError); ok && restErr.Response != nil && restErr.Response.StatusCode == 404 {
			return nil
		}
		return fmt.Errorf("discord: delete webhook %s: %w", persona.ID, err)
	}
	return nil
}

// PersonaSend posts content through the instance's webhook with its own
// name and avatar.
func (a *Adapter) PersonaSend(ctx context.Context, persona *telegraph.Persona, name, avatarURL, content string) error {
	if err := a.requireConnected(); err != nil {
		return err
	}
	if persona == nil || persona.ID == "" {
		return fmt.Errorf("discord: persona is required")
	}

	params := &discordgo.WebhookParams{
		Content:   content,
		Username:  name,
		AvatarURL: avatarURL,
	}
	err := a.retryOnRateLimit(ctx, func() error {
		_, sendErr := a.sess.WebhookExecute(persona.ID, persona.Token, false, params)
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("discord: execute webhook %s: %w", persona.ID, err)
	}
	return nil
}

// AwaitMessage blocks until userID posts in channelID or the timeout
// passes. Collected messages are consumed and never reach Listen.
func (a *Adapter) AwaitMessage(ctx context.Context, channelID, userID string, timeout time.Duration) (*telegraph.InboundMessage, error) {
	if err := a.requireConnected(); err != nil {
		return nil, err
	}

	w := &waiter{channelID: channelID, userID: userID, ch: make(chan telegraph.InboundMessage, 1)}
	a.mu.Lock()
	a.waiters = append(a.waiters, w)
	a.mu.Unlock()
	defer a.removeWaiter(w)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-w.ch:
		return &msg, nil
	case <-timer.C:
		return nil, telegraph.ErrAwaitTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *Adapter) removeWaiter(w *waiter) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, other := range a.waiters {
		if other == w {
			a.waiters = append(a.waiters[:i], a.waiters[i+1:]...)
			return
		}
	}
}

// Close gracefully shuts down the adapter connection.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	if a.removeHandler != nil {
		a.removeHandler()
	}
	close(a.inbound)
	if a.sess != nil {
		return a.sess.Close()
	}
	return nil
}

// BotUserID returns the bot's Discord user ID (available after Connect).
func (a *Adapter) BotUserID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.botUserID
}

// SetBotUserID sets the bot user ID (used for self-message filtering).
func (a *Adapter) SetBotUserID(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.botUserID = id
}

func (a *Adapter) requireConnected() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return fmt.Errorf("discord: not connected")
	}
	return nil
}

// handleMessage converts a Discord message event to an InboundMessage.
// Messages from the bot itself, other bots and webhooks are dropped so
// personas never talk to each other.
func (a *Adapter) handleMessage(m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}

	a.mu.Lock()
	botID := a.botUserID
	a.mu.Unlock()

	if m.Author.ID == botID || m.Author.Bot || m.WebhookID != "" {
		return
	}

	msg := telegraph.InboundMessage{
		ChannelID:   m.ChannelID,
		GuildID:     m.GuildID,
		UserID:      m.Author.ID,
		UserName:    m.Author.Username,
		DisplayName: displayName(m),
		Text:        m.Content,
		ImageURL:    firstImageURL(m),
		WebhookID:   m.WebhookID,
		Bot:         m.Author.Bot,
	}
	if ts, err := discordgo.SnowflakeTimestamp(m.ID); err == nil {
		msg.Timestamp = ts
	}

	// A pending collector consumes the message.
	a.mu.Lock()
	for i, w := range a.waiters {
		if w.channelID == msg.ChannelID && w.userID == msg.UserID {
			a.waiters = append(a.waiters[:i], a.waiters[i+1:]...)
			a.mu.Unlock()
			w.ch <- msg
			return
		}
	}
	a.mu.Unlock()

	select {
	case a.inbound <- msg:
	default:
		log.Printf("discord: inbound buffer full, dropping message in channel %s", msg.ChannelID)
	}
}

// displayName resolves the best human-readable name for the author.
func displayName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}

// firstImageURL returns the first image attachment URL, if any.
func firstImageURL(m *discordgo.MessageCreate) string {
	for _, att := range m.Attachments {
		if att == nil {
			continue
		}
		if strings.HasPrefix(att.ContentType, "image/") {
			return att.URL
		}
	}
	return ""
}

// embedToDiscord converts a telegraph.Embed to a Discord embed.
func embedToDiscord(embed *telegraph.Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       embed.Title,
		Description: embed.Body,
	}
	if embed.Color != "" {
		out.Color = parseHexColor(embed.Color)
	}
	for _, f := range embed.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Short,
		})
	}
	if embed.Footer != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: embed.Footer}
	}
	return out
}

// parseHexColor converts a hex color string (e.g. "#36a64f") to an int.
func parseHexColor(hex string) int {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	var color int
	for _, c := range hex {
		color <<= 4
		switch {
		case c >= '0' && c <= '9':
			color |= int(c - '0')
		case c >= 'a' && c <= 'f':
			color |= int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			color |= int(c-'A') + 10
		}
	}
	return color
}

// retryOnRateLimit calls fn and retries with exponential backoff on Discord
// rate limit errors. It respects context cancellation.
func (a *Adapter) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		restErr, ok := err.(*discordgo.RESTError)
		if !ok || restErr.Response == nil || restErr.Response.StatusCode != 429 {
			return err // not a rate limit error
		}

		if attempt == maxRetries {
			return err
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * a.baseBackoff
		if wait > a.maxBackoff {
			wait = a.maxBackoff
		}

		log.Printf("discord: rate limited (attempt %d/%d), retrying in %v",
			attempt+1, maxRetries, wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}
