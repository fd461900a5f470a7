package platform

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pulseloop/pulseloop/internal/retry"
)

// TeamsAdapter implements Adapter for Microsoft Teams outgoing webhooks.
type TeamsAdapter struct {
	// securityToken is the base64 shared secret Teams generates for the
	// outgoing webhook; inbound requests carry an HMAC over the raw body.
	securityToken string
	webhookURL    string // incoming-webhook URL used for outbound sends
	client        *http.Client
}

// NewTeamsAdapter creates a Teams adapter.
func NewTeamsAdapter(securityToken, webhookURL string) *TeamsAdapter {
	return &TeamsAdapter{
		securityToken: securityToken,
		webhookURL:    webhookURL,
		client:        &http.Client{Timeout: 15 * time.Second},
	}
}

func (a *TeamsAdapter) Platform() Platform { return PlatformTeams }

// teamsActivity is a Bot Framework activity.
type teamsActivity struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Text      string `json:"text"`
	From      struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"from"`
	Conversation struct {
		ID string `json:"id"`
	} `json:"conversation"`
	ReplyToID string `json:"replyToId"`
}

// VerifyWebhook checks the Authorization "HMAC <sig>" header: a base64
// HMAC-SHA256 over the raw body keyed with the decoded security token.
func (a *TeamsAdapter) VerifyWebhook(headers http.Header, rawBody []byte) Verification {
	if a.securityToken == "" {
		// An empty token would decode to an empty HMAC key, which anyone
		// can sign with.
		return Verification{IsValid: false}
	}

	auth := headers.Get("Authorization")
	if !strings.HasPrefix(auth, "HMAC ") {
		return Verification{IsValid: false}
	}
	provided := strings.TrimPrefix(auth, "HMAC ")

	key, err := base64.StdEncoding.DecodeString(a.securityToken)
	if err != nil {
		return Verification{IsValid: false}
	}

	mac := hmac.New(sha256.New, key)
	mac.Write(rawBody)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return Verification{IsValid: false}
	}
	return Verification{IsValid: true}
}

// NormalizeInbound converts a message activity into a canonical message.
// Teams prefixes the text with the bot mention, which is stripped.
func (a *TeamsAdapter) NormalizeInbound(rawBody []byte) (*InboundMessage, error) {
	var activity teamsActivity
	if err := json.Unmarshal(rawBody, &activity); err != nil {
		return nil, fmt.Errorf("parsing teams activity: %w", err)
	}

	if activity.Type != "message" {
		return nil, nil
	}

	text := activity.Text
	if idx := strings.Index(text, "</at>"); idx >= 0 {
		text = strings.TrimSpace(text[idx+len("</at>"):])
	}

	return &InboundMessage{
		Platform:  PlatformTeams,
		MessageID: activity.ID,
		ChannelID: activity.Conversation.ID,
		UserID:    activity.From.ID,
		UserName:  activity.From.Name,
		Text:      text,
		ThreadID:  activity.ReplyToID,
		Timestamp: activity.Timestamp,
		Raw:       json.RawMessage(rawBody),
	}, nil
}

// teamsCardBuilders maps the generic block types to Adaptive Card elements.
var teamsCardBuilders = map[BlockType]func(Block) map[string]any{
	BlockText: func(b Block) map[string]any {
		return map[string]any{"type": "TextBlock", "text": b.Text, "wrap": true}
	},
	BlockSection: func(b Block) map[string]any {
		return map[string]any{"type": "TextBlock", "text": b.Text, "wrap": true, "separator": true}
	},
	BlockActions: func(b Block) map[string]any {
		actions := make([]map[string]any, 0, len(b.Buttons))
		for _, btn := range b.Buttons {
			action := map[string]any{
				"type":  "Action.Submit",
				"title": btn.Label,
				"data":  map[string]any{"action": btn.ActionID, "value": btn.Value},
			}
			switch btn.Style {
			case StylePrimary:
				action["style"] = "positive"
			case StyleDestructive:
				action["style"] = "destructive"
			}
			actions = append(actions, action)
		}
		return map[string]any{"type": "ActionSet", "actions": actions}
	},
	BlockDivider: func(Block) map[string]any {
		return map[string]any{"type": "TextBlock", "text": " ", "separator": true}
	},
}

// SendMessage posts a message activity to the configured webhook URL and
// returns the activity id (a generated one when Teams omits it).
func (a *TeamsAdapter) SendMessage(ctx context.Context, msg OutboundMessage) (string, error) {
	payload := map[string]any{
		"type": "message",
		"text": msg.Text,
	}
	if msg.ThreadID != "" {
		payload["replyToId"] = msg.ThreadID
	}
	if len(msg.Blocks) > 0 {
		elements := make([]map[string]any, 0, len(msg.Blocks))
		for _, b := range msg.Blocks {
			build, ok := teamsCardBuilders[b.Type]
			if !ok {
				return "", fmt.Errorf("unsupported block type %q", b.Type)
			}
			elements = append(elements, build(b))
		}
		payload["attachments"] = []map[string]any{
			{
				"contentType": "application/vnd.microsoft.card.adaptive",
				"content": map[string]any{
					"type":    "AdaptiveCard",
					"version": "1.4",
					"body":    elements,
				},
			},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshalling teams activity: %w", err)
	}

	id, err := retry.DoValue(ctx, retry.DefaultOptions(), func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := a.client.Do(req)
		if err != nil {
			return "", fmt.Errorf("teams send failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("reading teams response: %w", err)
		}
		if resp.StatusCode >= 300 {
			return "", &retry.HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
		}

		var created struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(respBody, &created); err == nil && created.ID != "" {
			return created.ID, nil
		}
		return uuid.NewString(), nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// ResolveUser returns the identity carried by the activity itself; webhook
// bots have no Graph access for lookups.
func (a *TeamsAdapter) ResolveUser(ctx context.Context, userID string) (*User, error) {
	return &User{ID: userID}, nil
}

// SendTypingIndicator posts a typing activity; failures are swallowed since
// the indicator is cosmetic.
func (a *TeamsAdapter) SendTypingIndicator(ctx context.Context, channelID string) error {
	body, err := json.Marshal(map[string]any{"type": "typing"})
	if err != nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(body))
	if err != nil {
		return nil
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return nil
	}
	resp.Body.Close()
	return nil
}
