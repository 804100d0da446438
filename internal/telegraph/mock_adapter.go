package telegraph

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockAdapter implements Adapter for testing. It records notifications and
// persona traffic and lets tests inject inbound messages.
type MockAdapter struct {
	mu             sync.Mutex
	connected      bool
	closed         bool
	inbound        chan InboundMessage
	texts          []SentText
	embeds         []SentEmbed
	personaSends   []PersonaMessage
	personas       map[string]bool // persona ID -> alive
	personaCounter int
	failCreate     bool
	awaitQueue     []InboundMessage
	botUserID      string
}

// SentText records one SendText call.
type SentText struct {
	ChannelID string
	Text      string
}

// SentEmbed records one Notify call.
type SentEmbed struct {
	ChannelID string
	Embed     *Embed
}

// PersonaMessage records one PersonaSend call.
type PersonaMessage struct {
	PersonaID string
	Name      string
	AvatarURL string
	Content   string
}

// NewMockAdapter creates a MockAdapter with a buffered inbound channel.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		inbound:  make(chan InboundMessage, 100),
		personas: make(map[string]bool),
	}
}

// Connect marks the adapter as connected.
func (m *MockAdapter) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("mock: adapter already closed")
	}
	m.connected = true
	return nil
}

// Listen returns the inbound channel.
func (m *MockAdapter) Listen(ctx context.Context) (<-chan InboundMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil, fmt.Errorf("mock: not connected")
	}
	return m.inbound, nil
}

// Close marks the adapter closed and closes the inbound channel.
func (m *MockAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.connected = false
	close(m.inbound)
	return nil
}

// SendText records a plain message.
func (m *MockAdapter) SendText(ctx context.Context, channelID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, SentText{ChannelID: channelID, Text: text})
	return nil
}

// Notify records an embed.
func (m *MockAdapter) Notify(ctx context.Context, channelID string, embed *Embed) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embeds = append(m.embeds, SentEmbed{ChannelID: channelID, Embed: embed})
	return nil
}

// CreatePersona provisions a fake persona, or fails with ErrResourceCreation
// when FailPersonaCreation was called.
func (m *MockAdapter) CreatePersona(ctx context.Context, channelID, name string) (*Persona, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate {
		return nil, fmt.Errorf("%w: mock failure", ErrResourceCreation)
	}
	m.personaCounter++
	id := fmt.Sprintf("persona-%d", m.personaCounter)
	m.personas[id] = true
	return &Persona{ID: id, Token: "token-" + id}, nil
}

// DeletePersona marks a persona as gone.
func (m *MockAdapter) DeletePersona(ctx context.Context, persona *Persona) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if persona != nil {
		delete(m.personas, persona.ID)
	}
	return nil
}

// PersonaSend records a persona message.
func (m *MockAdapter) PersonaSend(ctx context.Context, persona *Persona, name, avatarURL, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if persona == nil || !m.personas[persona.ID] {
		return fmt.Errorf("mock: unknown persona")
	}
	m.personaSends = append(m.personaSends, PersonaMessage{
		PersonaID: persona.ID,
		Name:      name,
		AvatarURL: avatarURL,
		Content:   content,
	})
	return nil
}

// AwaitMessage pops the next queued message matching the channel and user,
// or times out.
func (m *MockAdapter) AwaitMessage(ctx context.Context, channelID, userID string, timeout time.Duration) (*InboundMessage, error) {
	m.mu.Lock()
	for i, msg := range m.awaitQueue {
		if msg.ChannelID == channelID && msg.UserID == userID {
			m.awaitQueue = append(m.awaitQueue[:i], m.awaitQueue[i+1:]...)
			m.mu.Unlock()
			return &msg, nil
		}
	}
	m.mu.Unlock()
	return nil, ErrAwaitTimeout
}

// QueueAwaited stages a message for a future AwaitMessage call.
func (m *MockAdapter) QueueAwaited(msg InboundMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.awaitQueue = append(m.awaitQueue, msg)
}

// FailPersonaCreation makes every subsequent CreatePersona call fail.
func (m *MockAdapter) FailPersonaCreation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCreate = true
}

// SimulateInbound injects an inbound message as if received from the
// platform.
func (m *MockAdapter) SimulateInbound(msg InboundMessage) {
	m.inbound <- msg
}

// Texts returns a copy of the recorded plain messages.
func (m *MockAdapter) Texts() []SentText {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentText, len(m.texts))
	copy(out, m.texts)
	return out
}

// Embeds returns a copy of the recorded embeds.
func (m *MockAdapter) Embeds() []SentEmbed {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentEmbed, len(m.embeds))
	copy(out, m.embeds)
	return out
}

// PersonaMessages returns a copy of the recorded persona sends.
func (m *MockAdapter) PersonaMessages() []PersonaMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PersonaMessage, len(m.personaSends))
	copy(out, m.personaSends)
	return out
}

// PersonaAlive reports whether a persona still exists.
func (m *MockAdapter) PersonaAlive(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.personas[id]
}

// BotUserID returns the configured bot user ID.
func (m *MockAdapter) BotUserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.botUserID
}

// SetBotUserID sets the bot user ID for testing.
func (m *MockAdapter) SetBotUserID(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.botUserID = id
}
