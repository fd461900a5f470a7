package conversation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pulseloop/pulseloop/internal/llm"
	"github.com/pulseloop/pulseloop/internal/platform"
)

// MessageSender delivers canonical outbound messages; satisfied by
// *platform.Registry.
type MessageSender interface {
	SendMessage(ctx context.Context, msg platform.OutboundMessage) (string, error)
}

// Completer produces the next follow-up question; satisfied by
// *llm.Gateway.
type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// Orchestrator drives the conversation state machine: it consumes
// normalized inbound messages, sanitizes them, enforces per-type turn
// limits, asks the gateway for the next question, and emits outbound
// messages through the adapter registry.
type Orchestrator struct {
	store   Store
	gateway Completer
	sender  MessageSender
	locks   *lockTable
	now     func() time.Time
}

// New creates an orchestrator over the given collaborators.
func New(store Store, gateway Completer, sender MessageSender) *Orchestrator {
	return &Orchestrator{
		store:   store,
		gateway: gateway,
		sender:  sender,
		locks:   newLockTable(),
		now:     time.Now,
	}
}

// StartConversation moves a scheduled conversation to initiated by sending
// its opening prompt. The conversation must already be persisted.
func (o *Orchestrator) StartConversation(ctx context.Context, id string) error {
	unlock := o.locks.acquire(id)
	defer unlock()

	conv, err := o.store.GetConversation(ctx, id)
	if err != nil {
		return fmt.Errorf("loading conversation %s: %w", id, err)
	}
	if conv.Status != StatusScheduled {
		return fmt.Errorf("conversation %s is %s, not scheduled", id, conv.Status)
	}

	opening := OpeningPrompt(conv.Type, conv.SubjectName)
	platformID, err := o.sender.SendMessage(ctx, platform.OutboundMessage{
		Platform:  conv.Platform,
		ChannelID: conv.ChannelID,
		ThreadID:  conv.ThreadID,
		Text:      opening,
	})
	if err != nil {
		return fmt.Errorf("sending opening prompt: %w", err)
	}

	return o.persistTurn(ctx, conv, StatusInitiated, conv.MessageCount, []Message{
		o.assistantMessage(conv.ID, opening, platformID),
	})
}

// HandleInboundMessage processes one user reply. A failed turn leaves the
// conversation in its pre-turn state; the webhook layer answers with a
// transient error so the platform redelivers.
func (o *Orchestrator) HandleInboundMessage(ctx context.Context, msg platform.InboundMessage) error {
	conv, err := o.store.FindActive(ctx, string(msg.Platform), msg.ChannelID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Printf("conversation: no active conversation for %s channel %s, ignoring message %s",
				msg.Platform, msg.ChannelID, msg.MessageID)
			return nil
		}
		return fmt.Errorf("finding conversation: %w", err)
	}

	unlock := o.locks.acquire(conv.ID)
	defer unlock()

	// Re-read under the lock: a racing turn may have advanced or closed
	// the conversation since the lookup.
	conv, err = o.store.GetConversation(ctx, conv.ID)
	if err != nil {
		return fmt.Errorf("loading conversation %s: %w", conv.ID, err)
	}
	if !conv.Status.Active() {
		log.Printf("conversation: %s is %s, ignoring inbound message %s", conv.ID, conv.Status, msg.MessageID)
		return nil
	}

	text := Sanitize(msg.Text)
	userMsg := Message{
		ID:                uuid.NewString(),
		ConversationID:    conv.ID,
		Sender:            SenderUser,
		Text:              text,
		PlatformMessageID: msg.MessageID,
		CreatedAt:         o.now(),
	}
	// MessageCount tracks processed user turns; the opening prompt does
	// not count against the budget.
	countAfterUser := conv.MessageCount + 1

	// A conversation stranded in closing by a half-finished close-out
	// resumes the close when the platform redelivers the final reply.
	if conv.Status == StatusClosing || countAfterUser >= MaxMessages(conv.Type) {
		return o.closeOut(ctx, conv, userMsg, countAfterUser)
	}

	question, err := o.nextQuestion(ctx, conv, text)
	if err != nil {
		return fmt.Errorf("generating follow-up for %s: %w", conv.ID, err)
	}

	platformID, err := o.sender.SendMessage(ctx, platform.OutboundMessage{
		Platform:  conv.Platform,
		ChannelID: conv.ChannelID,
		ThreadID:  conv.ThreadID,
		Text:      question,
	})
	if err != nil {
		return fmt.Errorf("sending follow-up for %s: %w", conv.ID, err)
	}

	return o.persistTurn(ctx, conv, StatusInProgress, countAfterUser,
		[]Message{userMsg, o.assistantMessage(conv.ID, question, platformID)})
}

// closeOut sends the static closing message and moves the conversation
// through closing to closed.
func (o *Orchestrator) closeOut(ctx context.Context, conv *Conversation, userMsg Message, countAfterUser int) error {
	closing := ClosingMessage(conv.Type)

	if err := o.store.UpdateStatus(ctx, conv.ID, StatusClosing); err != nil {
		return fmt.Errorf("marking %s closing: %w", conv.ID, err)
	}

	platformID, err := o.sender.SendMessage(ctx, platform.OutboundMessage{
		Platform:  conv.Platform,
		ChannelID: conv.ChannelID,
		ThreadID:  conv.ThreadID,
		Text:      closing,
	})
	if err != nil {
		// Roll back so the redelivered event finds the pre-turn state.
		if rbErr := o.store.UpdateStatus(ctx, conv.ID, conv.Status); rbErr != nil {
			log.Printf("conversation: rollback of %s failed: %v", conv.ID, rbErr)
		}
		return fmt.Errorf("sending closing message for %s: %w", conv.ID, err)
	}

	return o.persistTurn(ctx, conv, StatusClosed, countAfterUser,
		[]Message{userMsg, o.assistantMessage(conv.ID, closing, platformID)})
}

// nextQuestion builds the role-tagged prompt from the transcript and asks
// the gateway at the fast tier. Unusable output falls back to a neutral
// question instead of failing the turn.
func (o *Orchestrator) nextQuestion(ctx context.Context, conv *Conversation, userText string) (string, error) {
	transcript, err := o.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return "", fmt.Errorf("loading transcript: %w", err)
	}

	messages := []llm.Message{{Role: llm.RoleSystem, Content: SystemInstructions(conv.Type)}}
	for _, m := range transcript {
		role := llm.RoleUser
		if m.Sender == SenderAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: m.Text})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userText})

	resp, err := o.gateway.Complete(ctx, llm.CompletionRequest{
		Messages:    messages,
		Tier:        llm.TierFast,
		MaxTokens:   300,
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}

	question := strings.TrimSpace(resp.Content)
	if question == "" {
		log.Printf("conversation: empty completion for %s (model %s), using fallback", conv.ID, resp.Model)
		question = fallbackQuestion
	}
	return question, nil
}

// persistTurn records the messages of a completed turn and advances the
// conversation's status and message count.
func (o *Orchestrator) persistTurn(ctx context.Context, conv *Conversation, status Status, count int, msgs []Message) error {
	for _, m := range msgs {
		if err := o.store.AppendMessage(ctx, m); err != nil {
			return fmt.Errorf("persisting message for %s: %w", conv.ID, err)
		}
	}
	if err := o.store.UpdateTurn(ctx, conv.ID, status, count); err != nil {
		return fmt.Errorf("advancing %s to %s: %w", conv.ID, status, err)
	}
	return nil
}

func (o *Orchestrator) assistantMessage(conversationID, text, platformID string) Message {
	return Message{
		ID:                uuid.NewString(),
		ConversationID:    conversationID,
		Sender:            SenderAssistant,
		Text:              text,
		PlatformMessageID: platformID,
		CreatedAt:         o.now(),
	}
}

// ExpireStale delegates the idle-deadline sweep to the store.
func (o *Orchestrator) ExpireStale(ctx context.Context, maxIdle time.Duration) (int, error) {
	return o.store.ExpireStale(ctx, o.now().Add(-maxIdle))
}
