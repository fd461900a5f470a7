package platform

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// --- Slack ---

const testSigningSecret = "8f742231b10e8888abcd99yyyzzz85a5"

func slackSign(secret string, body []byte, ts string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:%s", ts, body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func slackHeaders(body []byte) http.Header {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	h := http.Header{}
	h.Set("X-Slack-Request-Timestamp", ts)
	h.Set("X-Slack-Signature", slackSign(testSigningSecret, body, ts))
	return h
}

func TestSlackVerifyAcceptsValidSignature(t *testing.T) {
	a := NewSlackAdapter("xoxb-token", testSigningSecret)
	body := []byte(`{"type":"event_callback"}`)

	v := a.VerifyWebhook(slackHeaders(body), body)
	if !v.IsValid {
		t.Error("expected valid verification")
	}
	if v.Challenge != "" {
		t.Errorf("unexpected challenge %q", v.Challenge)
	}
}

func TestSlackVerifyRejectsBadSignature(t *testing.T) {
	a := NewSlackAdapter("xoxb-token", testSigningSecret)
	body := []byte(`{"type":"event_callback"}`)

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	h := http.Header{}
	h.Set("X-Slack-Request-Timestamp", ts)
	h.Set("X-Slack-Signature", slackSign("wrong-secret", body, ts))

	if a.VerifyWebhook(h, body).IsValid {
		t.Error("expected rejection for wrong secret")
	}
}

func TestSlackVerifyRejectsMissingHeaders(t *testing.T) {
	a := NewSlackAdapter("xoxb-token", testSigningSecret)
	if a.VerifyWebhook(http.Header{}, []byte(`{}`)).IsValid {
		t.Error("expected rejection without signature headers")
	}
}

func TestSlackVerifyRejectsStaleTimestamp(t *testing.T) {
	a := NewSlackAdapter("xoxb-token", testSigningSecret)
	body := []byte(`{"type":"event_callback"}`)

	ts := strconv.FormatInt(time.Now().Add(-10*time.Minute).Unix(), 10)
	h := http.Header{}
	h.Set("X-Slack-Request-Timestamp", ts)
	h.Set("X-Slack-Signature", slackSign(testSigningSecret, body, ts))

	if a.VerifyWebhook(h, body).IsValid {
		t.Error("expected rejection for a 10-minute-old timestamp")
	}
}

func TestSlackVerifySurfacesChallenge(t *testing.T) {
	a := NewSlackAdapter("xoxb-token", testSigningSecret)
	body := []byte(`{"type":"url_verification","challenge":"abc123"}`)

	v := a.VerifyWebhook(slackHeaders(body), body)
	if !v.IsValid || v.Challenge != "abc123" {
		t.Errorf("expected valid challenge verification, got %+v", v)
	}
}

func TestSlackNormalizeInbound(t *testing.T) {
	a := NewSlackAdapter("xoxb-token", testSigningSecret)
	body := []byte(`{
		"type": "event_callback",
		"event": {
			"type": "message",
			"user": "U123",
			"text": "hello there",
			"channel": "D456",
			"ts": "1700000000.000100",
			"thread_ts": "1700000000.000001"
		}
	}`)

	msg, err := a.NormalizeInbound(body)
	if err != nil {
		t.Fatal(err)
	}
	if msg == nil {
		t.Fatal("expected a message")
	}
	if msg.Platform != PlatformSlack || msg.UserID != "U123" || msg.ChannelID != "D456" {
		t.Errorf("normalization mismatch: %+v", msg)
	}
	if msg.Text != "hello there" || msg.ThreadID != "1700000000.000001" {
		t.Errorf("normalization mismatch: %+v", msg)
	}
}

func TestSlackNormalizeDropsIrrelevantEvents(t *testing.T) {
	a := NewSlackAdapter("xoxb-token", testSigningSecret)
	tests := []struct {
		name string
		body string
	}{
		{"url verification", `{"type":"url_verification","challenge":"x"}`},
		{"bot message", `{"type":"event_callback","event":{"type":"message","bot_id":"B1","text":"hi","channel":"D1"}}`},
		{"edited message", `{"type":"event_callback","event":{"type":"message","subtype":"message_changed","channel":"D1"}}`},
		{"reaction", `{"type":"event_callback","event":{"type":"reaction_added"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := a.NormalizeInbound([]byte(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			if msg != nil {
				t.Errorf("expected drop, got %+v", msg)
			}
		})
	}
}

func TestSlackSendMessagePostsBlocks(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer xoxb-token" {
			t.Errorf("missing bot token, got %q", got)
		}
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "ts": "1700.0001"})
	}))
	defer srv.Close()

	a := NewSlackAdapter("xoxb-token", testSigningSecret)
	a.baseURL = srv.URL

	id, err := a.SendMessage(context.Background(), OutboundMessage{
		Platform:  PlatformSlack,
		ChannelID: "D1",
		Text:      "question one",
		Blocks: []Block{
			{Type: BlockSection, Text: "*question one*"},
			{Type: BlockActions, Buttons: []Button{{ActionID: "skip", Label: "Skip", Style: StylePrimary}}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if id != "1700.0001" {
		t.Errorf("expected ts as message id, got %q", id)
	}
	blocks, ok := captured["blocks"].([]any)
	if !ok || len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %v", captured["blocks"])
	}
}

// --- Teams ---

func teamsHeaders(token string, body []byte) http.Header {
	key, _ := base64.StdEncoding.DecodeString(token)
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	h := http.Header{}
	h.Set("Authorization", "HMAC "+base64.StdEncoding.EncodeToString(mac.Sum(nil)))
	return h
}

func TestTeamsVerifyWebhook(t *testing.T) {
	token := base64.StdEncoding.EncodeToString([]byte("shared-secret-bytes"))
	a := NewTeamsAdapter(token, "https://example.invalid/webhook")
	body := []byte(`{"type":"message","text":"hi"}`)

	if !a.VerifyWebhook(teamsHeaders(token, body), body).IsValid {
		t.Error("expected valid HMAC to verify")
	}

	other := base64.StdEncoding.EncodeToString([]byte("different-secret"))
	if a.VerifyWebhook(teamsHeaders(other, body), body).IsValid {
		t.Error("expected wrong-key HMAC to fail")
	}

	h := http.Header{}
	h.Set("Authorization", "Bearer something")
	if a.VerifyWebhook(h, body).IsValid {
		t.Error("expected non-HMAC authorization to fail")
	}
}

func TestTeamsVerifyFailsClosedWithoutToken(t *testing.T) {
	a := NewTeamsAdapter("", "https://example.invalid/webhook")
	body := []byte(`{"type":"message"}`)

	// An HMAC computed with the empty key must not pass.
	if a.VerifyWebhook(teamsHeaders("", body), body).IsValid {
		t.Error("adapter without a configured token must reject everything")
	}
}

func TestTeamsNormalizeStripsMention(t *testing.T) {
	a := NewTeamsAdapter("dG9rZW4=", "https://example.invalid/webhook")
	body := []byte(`{
		"type": "message",
		"id": "act-1",
		"text": "<at>PulseLoop</at> feeling good this week",
		"from": {"id": "29:abc", "name": "Dana"},
		"conversation": {"id": "19:thread"}
	}`)

	msg, err := a.NormalizeInbound(body)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Text != "feeling good this week" {
		t.Errorf("mention not stripped: %q", msg.Text)
	}
	if msg.UserName != "Dana" || msg.ChannelID != "19:thread" {
		t.Errorf("normalization mismatch: %+v", msg)
	}
}

func TestTeamsNormalizeDropsNonMessageActivities(t *testing.T) {
	a := NewTeamsAdapter("dG9rZW4=", "https://example.invalid/webhook")
	msg, err := a.NormalizeInbound([]byte(`{"type":"conversationUpdate"}`))
	if err != nil {
		t.Fatal(err)
	}
	if msg != nil {
		t.Errorf("expected drop, got %+v", msg)
	}
}

// --- Google Chat ---

func TestGoogleChatVerifyToken(t *testing.T) {
	a := NewGoogleChatAdapter("chat-token", "access")

	body := []byte(`{"type":"MESSAGE","token":"chat-token"}`)
	if !a.VerifyWebhook(http.Header{}, body).IsValid {
		t.Error("expected matching body token to verify")
	}

	body = []byte(`{"type":"MESSAGE","token":"wrong"}`)
	if a.VerifyWebhook(http.Header{}, body).IsValid {
		t.Error("expected mismatched token to fail")
	}

	h := http.Header{}
	h.Set("Authorization", "Bearer chat-token")
	if !a.VerifyWebhook(h, []byte(`{"type":"MESSAGE"}`)).IsValid {
		t.Error("expected bearer token fallback to verify")
	}
}

func TestGoogleChatVerifyFailsClosedWithoutToken(t *testing.T) {
	a := NewGoogleChatAdapter("", "access")
	if a.VerifyWebhook(http.Header{}, []byte(`{"token":""}`)).IsValid {
		t.Error("adapter without a configured token must reject everything")
	}
}

func TestGoogleChatNormalizeInbound(t *testing.T) {
	a := NewGoogleChatAdapter("chat-token", "access")
	body := []byte(`{
		"type": "MESSAGE",
		"eventTime": "2026-08-28T10:00:00Z",
		"message": {"name": "spaces/S1/messages/M1", "text": "doing fine", "thread": {"name": "spaces/S1/threads/T1"}},
		"user": {"name": "users/U1", "displayName": "Alex"},
		"space": {"name": "spaces/S1"}
	}`)

	msg, err := a.NormalizeInbound(body)
	if err != nil {
		t.Fatal(err)
	}
	if msg.ChannelID != "spaces/S1" || msg.UserID != "users/U1" || msg.Text != "doing fine" {
		t.Errorf("normalization mismatch: %+v", msg)
	}

	msg, err = a.NormalizeInbound([]byte(`{"type":"ADDED_TO_SPACE"}`))
	if err != nil {
		t.Fatal(err)
	}
	if msg != nil {
		t.Errorf("expected membership event drop, got %+v", msg)
	}
}

// --- Registry ---

type stubAdapter struct {
	platform Platform
	valid    bool
	drop     bool
	sendErr  error
	sent     []OutboundMessage
}

func (s *stubAdapter) Platform() Platform { return s.platform }

func (s *stubAdapter) VerifyWebhook(http.Header, []byte) Verification {
	return Verification{IsValid: s.valid}
}

func (s *stubAdapter) NormalizeInbound(rawBody []byte) (*InboundMessage, error) {
	if s.drop {
		return nil, nil
	}
	return &InboundMessage{Platform: s.platform, MessageID: "m1", ChannelID: "c1", UserID: "u1", Text: string(rawBody)}, nil
}

func (s *stubAdapter) SendMessage(ctx context.Context, msg OutboundMessage) (string, error) {
	if s.sendErr != nil {
		return "", s.sendErr
	}
	s.sent = append(s.sent, msg)
	return "sent-1", nil
}

func (s *stubAdapter) ResolveUser(ctx context.Context, userID string) (*User, error) {
	return &User{ID: userID}, nil
}

func (s *stubAdapter) SendTypingIndicator(ctx context.Context, channelID string) error {
	return nil
}

func TestRegistryGetAndHas(t *testing.T) {
	reg := NewRegistry()
	if reg.Has(PlatformSlack) {
		t.Error("empty registry should have nothing")
	}

	reg.Register(&stubAdapter{platform: PlatformSlack})
	if !reg.Has(PlatformSlack) {
		t.Error("expected slack adapter after registration")
	}

	if _, err := reg.Get(PlatformTeams); err == nil {
		t.Error("expected error for unregistered platform")
	} else {
		var cerr *ConfigurationError
		if !errors.As(err, &cerr) {
			t.Errorf("expected ConfigurationError, got %v", err)
		}
	}
}

func TestRegistryOverwritesOnReRegister(t *testing.T) {
	reg := NewRegistry()
	first := &stubAdapter{platform: PlatformSlack}
	second := &stubAdapter{platform: PlatformSlack}
	reg.Register(first)
	reg.Register(second)

	got, err := reg.Get(PlatformSlack)
	if err != nil {
		t.Fatal(err)
	}
	if got != second {
		t.Error("re-registration should replace the adapter")
	}
}

func TestRegistrySendMessageDispatchesByPlatform(t *testing.T) {
	reg := NewRegistry()
	slack := &stubAdapter{platform: PlatformSlack}
	reg.Register(slack)

	id, err := reg.SendMessage(context.Background(), OutboundMessage{Platform: PlatformSlack, ChannelID: "c1", Text: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if id != "sent-1" || len(slack.sent) != 1 {
		t.Errorf("expected dispatch to slack adapter, got id=%q sent=%d", id, len(slack.sent))
	}

	if _, err := reg.SendMessage(context.Background(), OutboundMessage{Platform: PlatformTeams}); err == nil {
		t.Error("expected error for unconfigured platform")
	}
}

// --- Webhook routes ---

type stubDispatcher struct {
	err  error
	msgs []InboundMessage
}

func (d *stubDispatcher) Dispatch(ctx context.Context, msg InboundMessage) error {
	if d.err != nil {
		return d.err
	}
	d.msgs = append(d.msgs, msg)
	return nil
}

func webhookRequest(t *testing.T, r chi.Router, platform, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/"+platform, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestWebhookUnconfiguredPlatform(t *testing.T) {
	r := chi.NewRouter()
	RegisterRoutes(r, NewRegistry(), &stubDispatcher{})

	rec := webhookRequest(t, r, "slack", `{}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestWebhookInvalidSignature(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubAdapter{platform: PlatformSlack, valid: false})
	dispatcher := &stubDispatcher{}
	r := chi.NewRouter()
	RegisterRoutes(r, reg, dispatcher)

	rec := webhookRequest(t, r, "slack", `{"text":"hi"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if len(dispatcher.msgs) != 0 {
		t.Error("unverified payloads must never reach the dispatcher")
	}
}

func TestWebhookChallengeEcho(t *testing.T) {
	// A real Slack adapter so the handshake flows through the actual
	// signature and challenge path.
	reg := NewRegistry()
	reg.Register(NewSlackAdapter("xoxb-token", testSigningSecret))
	r := chi.NewRouter()
	RegisterRoutes(r, reg, &stubDispatcher{})

	body := `{"type":"url_verification","challenge":"ch-42"}`
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/slack", strings.NewReader(body))
	for k, vs := range slackHeaders([]byte(body)) {
		req.Header[k] = vs
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["challenge"] != "ch-42" {
		t.Errorf("expected challenge echo, got %v", resp)
	}
}

func TestWebhookDropsIrrelevantEvents(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubAdapter{platform: PlatformTeams, valid: true, drop: true})
	dispatcher := &stubDispatcher{}
	r := chi.NewRouter()
	RegisterRoutes(r, reg, dispatcher)

	rec := webhookRequest(t, r, "teams", `{"type":"conversationUpdate"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 acknowledgement, got %d", rec.Code)
	}
	if len(dispatcher.msgs) != 0 {
		t.Error("dropped events must not be dispatched")
	}
}

func TestWebhookDispatchFailureReturns500(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubAdapter{platform: PlatformGoogleChat, valid: true})
	dispatcher := &stubDispatcher{err: errors.New("store unavailable")}
	r := chi.NewRouter()
	RegisterRoutes(r, reg, dispatcher)

	rec := webhookRequest(t, r, "google_chat", `{"type":"MESSAGE"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 so the platform redelivers, got %d", rec.Code)
	}
}

func TestWebhookDispatchesNormalizedMessage(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubAdapter{platform: PlatformSlack, valid: true})
	dispatcher := &stubDispatcher{}
	r := chi.NewRouter()
	RegisterRoutes(r, reg, dispatcher)

	rec := webhookRequest(t, r, "slack", `payload`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(dispatcher.msgs) != 1 || dispatcher.msgs[0].Text != "payload" {
		t.Errorf("expected normalized message to reach dispatcher, got %+v", dispatcher.msgs)
	}
}
