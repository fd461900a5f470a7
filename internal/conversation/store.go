package conversation

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no conversation matches a lookup.
var ErrNotFound = errors.New("conversation not found")

// Store is the persistence contract the orchestrator depends on. The
// sqlite implementation in this package is the reference; deployments may
// substitute their own tenant-scoped store.
type Store interface {
	// CreateConversation inserts a new conversation record.
	CreateConversation(ctx context.Context, c *Conversation) error

	// GetConversation returns a conversation by id, or ErrNotFound.
	GetConversation(ctx context.Context, id string) (*Conversation, error)

	// FindActive returns the non-terminal conversation bound to a platform
	// channel, or ErrNotFound. At most one is active per channel.
	FindActive(ctx context.Context, p string, channelID string) (*Conversation, error)

	// UpdateStatus sets the conversation status.
	UpdateStatus(ctx context.Context, id string, status Status) error

	// UpdateTurn records the result of one completed turn: new status and
	// message count together.
	UpdateTurn(ctx context.Context, id string, status Status, messageCount int) error

	// AppendMessage adds a message to the transcript.
	AppendMessage(ctx context.Context, m Message) error

	// ListMessages returns the transcript in insertion order.
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)

	// ExpireStale marks non-terminal conversations idle since before the
	// cutoff as expired and returns how many were affected.
	ExpireStale(ctx context.Context, cutoff time.Time) (int, error)
}
