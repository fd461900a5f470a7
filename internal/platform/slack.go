package platform

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pulseloop/pulseloop/internal/retry"
)

const slackAPIBaseURL = "https://slack.com/api"

// SlackAdapter implements Adapter for Slack's Events API and Web API.
type SlackAdapter struct {
	botToken      string
	signingSecret string
	baseURL       string
	client        *http.Client
}

// NewSlackAdapter creates a Slack adapter with the given bot token and
// signing secret.
func NewSlackAdapter(botToken, signingSecret string) *SlackAdapter {
	return &SlackAdapter{
		botToken:      botToken,
		signingSecret: signingSecret,
		baseURL:       slackAPIBaseURL,
		client:        &http.Client{Timeout: 15 * time.Second},
	}
}

func (a *SlackAdapter) Platform() Platform { return PlatformSlack }

// slackEvent is the top-level Slack event payload.
type slackEvent struct {
	Type      string          `json:"type"`
	Challenge string          `json:"challenge"`
	Event     slackInnerEvent `json:"event"`
}

// slackInnerEvent is the inner event of an event_callback.
type slackInnerEvent struct {
	Type     string `json:"type"`
	SubType  string `json:"subtype"`
	User     string `json:"user"`
	Text     string `json:"text"`
	Channel  string `json:"channel"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts"`
	BotID    string `json:"bot_id"`
}

// VerifyWebhook checks the v0 HMAC-SHA256 signature over the raw body and
// surfaces the url_verification challenge when Slack performs its handshake.
func (a *SlackAdapter) VerifyWebhook(headers http.Header, rawBody []byte) Verification {
	timestamp := headers.Get("X-Slack-Request-Timestamp")
	signature := headers.Get("X-Slack-Signature")
	if timestamp == "" || signature == "" {
		return Verification{IsValid: false}
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return Verification{IsValid: false}
	}
	// Reject replayed requests older than 5 minutes.
	diff := time.Now().Unix() - ts
	if diff < 0 {
		diff = -diff
	}
	if diff > 300 {
		return Verification{IsValid: false}
	}

	base := fmt.Sprintf("v0:%s:%s", timestamp, rawBody)
	mac := hmac.New(sha256.New, []byte(a.signingSecret))
	mac.Write([]byte(base))
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return Verification{IsValid: false}
	}

	var event slackEvent
	if err := json.Unmarshal(rawBody, &event); err == nil && event.Type == "url_verification" {
		return Verification{IsValid: true, Challenge: event.Challenge}
	}
	return Verification{IsValid: true}
}

// NormalizeInbound converts a Slack event payload into a canonical message.
// Bot messages and non-message events yield nil.
func (a *SlackAdapter) NormalizeInbound(rawBody []byte) (*InboundMessage, error) {
	var event slackEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return nil, fmt.Errorf("parsing slack event: %w", err)
	}

	if event.Type != "event_callback" {
		return nil, nil
	}
	inner := event.Event
	if inner.Type != "message" || inner.SubType != "" || inner.BotID != "" {
		return nil, nil
	}

	return &InboundMessage{
		Platform:  PlatformSlack,
		MessageID: inner.TS,
		ChannelID: inner.Channel,
		UserID:    inner.User,
		Text:      inner.Text,
		ThreadID:  inner.ThreadTS,
		Timestamp: inner.TS,
		Raw:       json.RawMessage(rawBody),
	}, nil
}

// slackBlockBuilders maps the generic block types to Block Kit builders.
var slackBlockBuilders = map[BlockType]func(Block) map[string]any{
	BlockText: func(b Block) map[string]any {
		return map[string]any{
			"type": "section",
			"text": map[string]any{"type": "plain_text", "text": b.Text, "emoji": true},
		}
	},
	BlockSection: func(b Block) map[string]any {
		return map[string]any{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": b.Text},
		}
	},
	BlockActions: func(b Block) map[string]any {
		elements := make([]map[string]any, 0, len(b.Buttons))
		for _, btn := range b.Buttons {
			el := map[string]any{
				"type":      "button",
				"action_id": btn.ActionID,
				"text":      map[string]any{"type": "plain_text", "text": btn.Label, "emoji": true},
			}
			if btn.Value != "" {
				el["value"] = btn.Value
			}
			switch btn.Style {
			case StylePrimary:
				el["style"] = "primary"
			case StyleDestructive:
				el["style"] = "danger"
			}
			elements = append(elements, el)
		}
		return map[string]any{"type": "actions", "elements": elements}
	},
	BlockDivider: func(Block) map[string]any {
		return map[string]any{"type": "divider"}
	},
}

// slackPostMessageResponse is the chat.postMessage response envelope.
type slackPostMessageResponse struct {
	OK    bool   `json:"ok"`
	TS    string `json:"ts"`
	Error string `json:"error"`
}

// SendMessage posts the message via chat.postMessage and returns its ts.
func (a *SlackAdapter) SendMessage(ctx context.Context, msg OutboundMessage) (string, error) {
	payload := map[string]any{
		"channel": msg.ChannelID,
		"text":    msg.Text,
	}
	if msg.ThreadID != "" {
		payload["thread_ts"] = msg.ThreadID
	}
	if len(msg.Blocks) > 0 {
		blocks := make([]map[string]any, 0, len(msg.Blocks))
		for _, b := range msg.Blocks {
			build, ok := slackBlockBuilders[b.Type]
			if !ok {
				return "", fmt.Errorf("unsupported block type %q", b.Type)
			}
			blocks = append(blocks, build(b))
		}
		payload["blocks"] = blocks
	}

	resp, err := retry.DoValue(ctx, retry.DefaultOptions(), func(ctx context.Context) (*slackPostMessageResponse, error) {
		return a.callAPI(ctx, "chat.postMessage", payload)
	})
	if err != nil {
		return "", err
	}
	return resp.TS, nil
}

// ResolveUser looks up a user via users.info.
func (a *SlackAdapter) ResolveUser(ctx context.Context, userID string) (*User, error) {
	type slackUserResponse struct {
		OK   bool   `json:"ok"`
		Err  string `json:"error"`
		User struct {
			ID      string `json:"id"`
			Name    string `json:"real_name"`
			Profile struct {
				Email string `json:"email"`
			} `json:"profile"`
		} `json:"user"`
	}

	u, err := retry.DoValue(ctx, retry.DefaultOptions(), func(ctx context.Context) (*slackUserResponse, error) {
		endpoint := a.baseURL + "/users.info?user=" + url.QueryEscape(userID)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+a.botToken)

		resp, err := a.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("slack users.info failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading slack response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
		}

		var out slackUserResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("parsing slack response: %w", err)
		}
		if !out.OK {
			return nil, fmt.Errorf("slack users.info error: %s", out.Err)
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}

	return &User{ID: u.User.ID, Name: u.User.Name, Email: u.User.Profile.Email}, nil
}

// SendTypingIndicator is a no-op: the Slack Web API exposes no typing
// indicator for bots.
func (a *SlackAdapter) SendTypingIndicator(ctx context.Context, channelID string) error {
	return nil
}

// callAPI POSTs a JSON payload to a Slack Web API method.
func (a *SlackAdapter) callAPI(ctx context.Context, method string, payload map[string]any) (*slackPostMessageResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+a.botToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("slack %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading slack response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var out slackPostMessageResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("parsing slack response: %w", err)
	}
	if !out.OK {
		return nil, fmt.Errorf("slack %s error: %s", method, out.Error)
	}
	return &out, nil
}
