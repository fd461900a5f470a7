package platform

import (
	"context"
	"net/http"
)

// Adapter normalizes one chat platform's wire protocol into the canonical
// message model and serializes canonical messages back out. Implementations
// exist for Slack, Google Chat, and Microsoft Teams; adding a platform means
// adding one implementation with zero changes to registry or orchestrator.
type Adapter interface {
	// Platform returns the identifier this adapter is registered under.
	Platform() Platform

	// VerifyWebhook checks the authenticity of an inbound webhook request.
	// HMAC-based schemes are computed over the exact original body bytes;
	// re-serializing a parsed payload breaks the signature.
	VerifyWebhook(headers http.Header, rawBody []byte) Verification

	// NormalizeInbound converts a platform payload into a canonical message.
	// Event types irrelevant to conversations yield (nil, nil) and are
	// silently dropped by the caller.
	NormalizeInbound(rawBody []byte) (*InboundMessage, error)

	// SendMessage delivers a canonical outbound message via the platform API
	// and returns the platform-native message id.
	SendMessage(ctx context.Context, msg OutboundMessage) (string, error)

	// ResolveUser looks up the identity behind a platform user id.
	// Best-effort: platforms without a lookup API return a minimal User.
	ResolveUser(ctx context.Context, userID string) (*User, error)

	// SendTypingIndicator is best-effort; platforms without bot typing
	// support implement it as a no-op, not an error.
	SendTypingIndicator(ctx context.Context, channelID string) error
}
