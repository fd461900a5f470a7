package conversation

import (
	"time"

	"github.com/pulseloop/pulseloop/internal/platform"
)

// InteractionType identifies one of the supported conversation templates.
type InteractionType string

const (
	TypePeerReview     InteractionType = "peer_review"
	TypeSelfReflection InteractionType = "self_reflection"
	TypeThreeSixty     InteractionType = "three_sixty"
	TypePulseCheck     InteractionType = "pulse_check"
)

// Status is the conversation lifecycle state.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInitiated  Status = "initiated"
	StatusInProgress Status = "in_progress"
	StatusClosing    Status = "closing"
	StatusClosed     Status = "closed"
	StatusExpired    Status = "expired"
)

// Terminal reports whether the status accepts no further processing.
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusExpired
}

// Active reports whether outbound messages may be sent in this status.
func (s Status) Active() bool {
	return s == StatusInitiated || s == StatusInProgress || s == StatusClosing
}

// Conversation is one bounded feedback exchange with a single participant.
type Conversation struct {
	ID           string
	Type         InteractionType
	Platform     platform.Platform
	ChannelID    string
	ThreadID     string
	UserID       string
	SubjectName  string // person the feedback is about, if any
	Status       Status
	MessageCount int // processed user turns, compared against MaxMessages
	ScheduledAt  time.Time
	InitiatedAt  *time.Time
	ClosedAt     *time.Time
}

// Sender labels who produced a transcript message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one entry in a conversation transcript.
type Message struct {
	ID                string
	ConversationID    string
	Sender            Sender
	Text              string
	PlatformMessageID string
	CreatedAt         time.Time
}
