package platform

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pulseloop/pulseloop/internal/retry"
)

const googleChatAPIBaseURL = "https://chat.googleapis.com/v1"

// GoogleChatAdapter implements Adapter for Google Chat app events.
type GoogleChatAdapter struct {
	// verificationToken is the static token Google Chat includes with every
	// event for apps configured with token verification.
	verificationToken string
	accessToken       string
	baseURL           string
	client            *http.Client
}

// NewGoogleChatAdapter creates a Google Chat adapter.
func NewGoogleChatAdapter(verificationToken, accessToken string) *GoogleChatAdapter {
	return &GoogleChatAdapter{
		verificationToken: verificationToken,
		accessToken:       accessToken,
		baseURL:           googleChatAPIBaseURL,
		client:            &http.Client{Timeout: 15 * time.Second},
	}
}

func (a *GoogleChatAdapter) Platform() Platform { return PlatformGoogleChat }

// chatEvent is the Google Chat event payload.
type chatEvent struct {
	Type      string `json:"type"`
	EventTime string `json:"eventTime"`
	Token     string `json:"token"`
	Message   struct {
		Name   string `json:"name"`
		Text   string `json:"text"`
		Thread struct {
			Name string `json:"name"`
		} `json:"thread"`
	} `json:"message"`
	User struct {
		Name        string `json:"name"`
		DisplayName string `json:"displayName"`
		Email       string `json:"email"`
	} `json:"user"`
	Space struct {
		Name string `json:"name"`
	} `json:"space"`
}

// VerifyWebhook compares the event's verification token against the
// configured one. Google Chat has no registration challenge handshake.
func (a *GoogleChatAdapter) VerifyWebhook(headers http.Header, rawBody []byte) Verification {
	if a.verificationToken == "" {
		return Verification{IsValid: false}
	}

	// The token travels in the event body; some deployments also send it as
	// a bearer header, which is accepted as an alternative.
	var event chatEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return Verification{IsValid: false}
	}
	candidate := event.Token
	if candidate == "" {
		candidate = strings.TrimPrefix(headers.Get("Authorization"), "Bearer ")
	}

	if subtle.ConstantTimeCompare([]byte(candidate), []byte(a.verificationToken)) != 1 {
		return Verification{IsValid: false}
	}
	return Verification{IsValid: true}
}

// NormalizeInbound converts a MESSAGE event into a canonical message.
// Membership and card-click events yield nil.
func (a *GoogleChatAdapter) NormalizeInbound(rawBody []byte) (*InboundMessage, error) {
	var event chatEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return nil, fmt.Errorf("parsing google chat event: %w", err)
	}

	if event.Type != "MESSAGE" {
		return nil, nil
	}

	return &InboundMessage{
		Platform:  PlatformGoogleChat,
		MessageID: event.Message.Name,
		ChannelID: event.Space.Name,
		UserID:    event.User.Name,
		UserName:  event.User.DisplayName,
		Text:      event.Message.Text,
		ThreadID:  event.Message.Thread.Name,
		Timestamp: event.EventTime,
		Raw:       json.RawMessage(rawBody),
	}, nil
}

// chatWidgetBuilders maps the generic block types to cardsV2 widgets.
var chatWidgetBuilders = map[BlockType]func(Block) map[string]any{
	BlockText: func(b Block) map[string]any {
		return map[string]any{"textParagraph": map[string]any{"text": b.Text}}
	},
	BlockSection: func(b Block) map[string]any {
		return map[string]any{"textParagraph": map[string]any{"text": b.Text}}
	},
	BlockActions: func(b Block) map[string]any {
		buttons := make([]map[string]any, 0, len(b.Buttons))
		for _, btn := range b.Buttons {
			button := map[string]any{
				"text": btn.Label,
				"onClick": map[string]any{
					"action": map[string]any{
						"function": btn.ActionID,
						"parameters": []map[string]any{
							{"key": "value", "value": btn.Value},
						},
					},
				},
			}
			switch btn.Style {
			case StylePrimary:
				button["type"] = "FILLED"
			case StyleDestructive:
				button["type"] = "FILLED"
				button["color"] = map[string]any{"red": 0.8, "green": 0.1, "blue": 0.1}
			}
			buttons = append(buttons, button)
		}
		return map[string]any{"buttonList": map[string]any{"buttons": buttons}}
	},
	BlockDivider: func(Block) map[string]any {
		return map[string]any{"divider": map[string]any{}}
	},
}

// SendMessage creates a message in the target space and returns its
// resource name.
func (a *GoogleChatAdapter) SendMessage(ctx context.Context, msg OutboundMessage) (string, error) {
	payload := map[string]any{"text": msg.Text}
	if msg.ThreadID != "" {
		payload["thread"] = map[string]any{"name": msg.ThreadID}
	}
	if len(msg.Blocks) > 0 {
		widgets := make([]map[string]any, 0, len(msg.Blocks))
		for _, b := range msg.Blocks {
			build, ok := chatWidgetBuilders[b.Type]
			if !ok {
				return "", fmt.Errorf("unsupported block type %q", b.Type)
			}
			widgets = append(widgets, build(b))
		}
		payload["cardsV2"] = []map[string]any{
			{
				"cardId": "pulseloop",
				"card": map[string]any{
					"sections": []map[string]any{{"widgets": widgets}},
				},
			},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshalling chat message: %w", err)
	}

	name, err := retry.DoValue(ctx, retry.DefaultOptions(), func(ctx context.Context) (string, error) {
		endpoint := fmt.Sprintf("%s/%s/messages", a.baseURL, msg.ChannelID)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+a.accessToken)

		resp, err := a.client.Do(req)
		if err != nil {
			return "", fmt.Errorf("google chat send failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("reading google chat response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return "", &retry.HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
		}

		var created struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(respBody, &created); err != nil {
			return "", fmt.Errorf("parsing google chat response: %w", err)
		}
		return created.Name, nil
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

// ResolveUser returns the identity carried by the event itself; the Chat
// API offers no standalone user lookup for apps.
func (a *GoogleChatAdapter) ResolveUser(ctx context.Context, userID string) (*User, error) {
	return &User{ID: userID}, nil
}

// SendTypingIndicator is a no-op: Google Chat apps cannot signal typing.
func (a *GoogleChatAdapter) SendTypingIndicator(ctx context.Context, channelID string) error {
	return nil
}
