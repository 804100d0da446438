// Package telegraph bridges Conjure to chat platforms.
package telegraph

import (
	"context"
	"errors"
	"time"
)

// ErrResourceCreation marks a failure to provision the platform resources an
// instance needs (e.g. its persona webhook). Summoning must not persist
// anything when this is returned.
var ErrResourceCreation = errors.New("telegraph: resource creation failed")

// ErrAwaitTimeout is returned by AwaitMessage when the deadline passes
// without a matching message.
var ErrAwaitTimeout = errors.New("telegraph: await timed out")

// Adapter is the full platform surface. Implementations handle connection
// management, inbound delivery, persona impersonation and notifications for
// a single chat platform.
type Adapter interface {
	// Connect establishes a connection to the chat platform.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound messages from the platform.
	// Listen must only be called after Connect.
	Listen(ctx context.Context) (<-chan InboundMessage, error)

	// Close gracefully shuts down the adapter connection.
	Close() error

	Notifier
	PersonaManager
	Collector
}

// Notifier posts messages under the bot's own identity.
type Notifier interface {
	// SendText posts a plain text message to a channel.
	SendText(ctx context.Context, channelID, text string) error

	// Notify posts a rich embed to a channel.
	Notify(ctx context.Context, channelID string, embed *Embed) error
}

// PersonaManager provisions and speaks through per-instance personas, so an
// agent appears in the channel with its own name and avatar.
type PersonaManager interface {
	// CreatePersona provisions a persona bound to a channel. The avatar
	// rides each PersonaSend, not the persona itself. Failures wrap
	// ErrResourceCreation.
	CreatePersona(ctx context.Context, channelID, name string) (*Persona, error)

	// DeletePersona tears a persona down. Deleting an already-gone persona
	// is not an error.
	DeletePersona(ctx context.Context, persona *Persona) error

	// PersonaSend posts content to the persona's channel under the given
	// name and avatar.
	PersonaSend(ctx context.Context, persona *Persona, name, avatarURL, content string) error
}

// Collector synchronously waits for one message from a specific user in a
// specific channel.
type Collector interface {
	// AwaitMessage blocks until userID posts in channelID, the timeout
	// passes (ErrAwaitTimeout) or ctx is cancelled. A collected message is
	// consumed: it is not delivered on the Listen channel.
	AwaitMessage(ctx context.Context, channelID, userID string, timeout time.Duration) (*InboundMessage, error)
}

// Persona is a provisioned platform identity an instance speaks through.
type Persona struct {
	ID    string
	Token string
}

// InboundMessage represents a message received from the chat platform.
type InboundMessage struct {
	ChannelID   string
	GuildID     string
	UserID      string
	UserName    string    // account username
	DisplayName string    // per-guild display name, falls back to UserName
	Text        string    // raw message text
	ImageURL    string    // first image attachment, if any
	WebhookID   string    // non-empty when sent by a webhook persona
	Bot         bool      // sent by a bot account
	Timestamp   time.Time // when the message was sent
}

// Embed is a platform-neutral rich notification.
type Embed struct {
	Title  string
	Body   string
	Color  string // sidebar color hint, e.g. "#f04747"
	Fields []Field
	Footer string
}

// Field is a key-value pair displayed in an embed.
type Field struct {
	Name  string
	Value string
	Short bool // hint: render side-by-side with another field
}

// BotUserIDer is an optional interface adapters can implement to expose the
// bot's own user ID for self-message filtering.
type BotUserIDer interface {
	BotUserID() string
}
